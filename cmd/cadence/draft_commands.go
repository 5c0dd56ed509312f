package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
	"github.com/evanschultz/cadence/internal/render"
)

// newDraftCommand groups the draft subcommands.
func newDraftCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Build an item across several invocations before submitting it",
	}
	cmd.AddCommand(newDraftSaveCommand(c), newDraftShowCommand(c), newDraftSubmitCommand(c), newDraftDiscardCommand(c))
	return cmd
}

// newDraftSaveCommand builds the draft save command.
func newDraftSaveCommand(c *cli) *cobra.Command {
	var flags itemFlags
	cmd := &cobra.Command{
		Use:   "save [title...]",
		Short: "Merge flags into the saved draft",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			base, err := svc.LoadDraft(cmd.Context())
			if err != nil && !errors.Is(err, app.ErrNotFound) {
				return err
			}
			draft, err := flags.draft(cmd, base, time.Local)
			if err != nil {
				return err
			}
			if err := svc.SaveDraft(cmd.Context(), draft); err != nil {
				return err
			}
			return c.emit(draft, func(*render.Renderer) string { return "draft saved" })
		},
	}
	flags.register(cmd)
	return cmd
}

// newDraftShowCommand builds the draft show command.
func newDraftShowCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			draft, err := svc.LoadDraft(cmd.Context())
			if err != nil {
				return err
			}
			preview := domain.ScheduleItem{
				Title:            draft.Title,
				Description:      draft.Description,
				ScheduleType:     draft.ScheduleType,
				Type:             draft.Type,
				Tags:             draft.Tags,
				Notes:            draft.Notes,
				Location:         draft.Location,
				StartDate:        draft.StartDate,
				EndDate:          draft.EndDate,
				Duration:         draft.Duration,
				Reminder:         draft.Reminder,
				Priority:         draft.Priority,
				Recurrence:       draft.Recurrence,
				BlockedBy:        draft.BlockedBy,
				MaxPostponements: draft.PostponementLimit(),
			}
			return c.emit(draft, func(r *render.Renderer) string {
				return r.Item(preview, "draft")
			})
		},
	}
}

// newDraftSubmitCommand builds the draft submit command.
func newDraftSubmitCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Create an item from the saved draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			item, err := svc.CreateFromDraft(cmd.Context())
			if err != nil {
				return err
			}
			c.warnConflicts(cmd, svc, item)
			return c.emit(item, func(r *render.Renderer) string {
				return r.Item(item, domain.CollectionActive)
			})
		},
	}
}

// newDraftDiscardCommand builds the draft discard command.
func newDraftDiscardCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Drop the saved draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			if err := svc.DiscardDraft(cmd.Context()); err != nil {
				return err
			}
			return c.emit(map[string]bool{"discarded": true}, func(*render.Renderer) string { return "draft discarded" })
		},
	}
}
