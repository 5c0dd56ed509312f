package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
	"github.com/evanschultz/cadence/internal/render"
)

// itemCommand builds a single-id command whose body returns the item to print.
func itemCommand(c *cli, use, short string, fn func(cmd *cobra.Command, svc *app.Service, id string) (domain.ScheduleItem, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			item, err := fn(cmd, svc, args[0])
			if err != nil {
				return err
			}
			return c.emit(item, func(r *render.Renderer) string {
				return r.Item(item, collectionOf(item))
			})
		},
	}
}

// collectionOf picks deleted or active from the item's deletedAt stamp.
func collectionOf(item domain.ScheduleItem) domain.Collection {
	if item.DeletedAt != nil {
		return domain.CollectionDeleted
	}
	return domain.CollectionActive
}

// warnConflicts prints advisory overlaps to stderr; they never fail the command.
func (c *cli) warnConflicts(cmd *cobra.Command, svc *app.Service, item domain.ScheduleItem) {
	if item.Completed {
		return
	}
	conflicts, err := svc.CheckSchedulingConflicts(cmd.Context(), item)
	if err != nil || len(conflicts) == 0 {
		return
	}
	for _, conflict := range conflicts {
		_, _ = fmt.Fprintf(c.stderr, "warning: overlaps %s (%s)\n", conflict.ConflictingID, conflict.Title)
	}
}

// newAddCommand creates an item from flags.
func newAddCommand(c *cli) *cobra.Command {
	var flags itemFlags
	cmd := &cobra.Command{
		Use:   "add [title...]",
		Short: "Create a schedule item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			draft, err := flags.draft(cmd, domain.ScheduleItemDraft{}, time.Local)
			if err != nil {
				return err
			}
			item, err := svc.CreateItem(cmd.Context(), draft)
			if err != nil {
				return err
			}
			c.warnConflicts(cmd, svc, item)
			return c.emit(item, func(r *render.Renderer) string {
				return r.Item(item, domain.CollectionActive)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// newListCommand prints one collection.
func newListCommand(c *cli) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items in a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			items, err := svc.ListItems(cmd.Context(), domain.Collection(collection))
			if err != nil {
				return err
			}
			return c.emit(items, func(r *render.Renderer) string {
				return r.Items(items, c.now())
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", string(domain.CollectionActive), "active|deleted|completed")
	return cmd
}

// newShowCommand prints one item and optionally copies its id.
func newShowCommand(c *cli) *cobra.Command {
	var copyID bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			item, coll, err := svc.GetItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if copyID {
				if err := clipboard.WriteAll(item.ID); err != nil {
					_, _ = fmt.Fprintf(c.stderr, "warning: copy id: %v\n", err)
				}
			}
			return c.emit(item, func(r *render.Renderer) string {
				return r.Item(item, coll)
			})
		},
	}
	cmd.Flags().BoolVar(&copyID, "copy-id", false, "copy the item id to the clipboard")
	return cmd
}

// newStartCommand marks an item in progress.
func newStartCommand(c *cli) *cobra.Command {
	return itemCommand(c, "start", "Mark an item in progress", func(cmd *cobra.Command, svc *app.Service, id string) (domain.ScheduleItem, error) {
		return svc.StartItem(cmd.Context(), id)
	})
}

// newDoneCommand completes an item and reports any spawned occurrence.
func newDoneCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "done <id>",
		Aliases: []string{"complete"},
		Short:   "Complete an item, spawning its next occurrence if it repeats",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			res, err := svc.MarkCompleted(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.emit(res, func(r *render.Renderer) string {
				out := "completed " + res.Item.ID
				if res.Next != nil {
					out += fmt.Sprintf("\nnext occurrence %s at %s", res.Next.ID, res.Next.StartDate.In(time.Local).Format("2006-01-02 15:04"))
				}
				return out
			})
		},
	}
}

// newPostponeCommand moves an item to a later start.
func newPostponeCommand(c *cli) *cobra.Command {
	var (
		to       string
		reason   string
		category string
		impact   string
	)
	cmd := itemCommand(c, "postpone", "Move an item to a later date", func(cmd *cobra.Command, svc *app.Service, id string) (domain.ScheduleItem, error) {
		newDate, err := parseWhen(to, time.Local)
		if err != nil {
			return domain.ScheduleItem{}, err
		}
		if newDate.IsZero() {
			return domain.ScheduleItem{}, errors.New("--to is required")
		}
		return svc.PostponeItem(cmd.Context(), id, newDate, domain.PostponeOptions{
			Reason:         reason,
			ReasonCategory: domain.ReasonCategory(category),
			Impact:         domain.Impact(impact),
		})
	})
	cmd.Flags().StringVar(&to, "to", "", "new start date")
	cmd.Flags().StringVar(&reason, "reason", "", "why the item moved")
	cmd.Flags().StringVar(&category, "category", "", "unavailable|conflict|emergency|other")
	cmd.Flags().StringVar(&impact, "impact", "", "low|medium|high")
	return cmd
}

// newDeleteCommand soft-deletes an item.
func newDeleteCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			if err := svc.DeleteItem(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.emit(map[string]string{"deleted": args[0]}, func(*render.Renderer) string {
				return "deleted " + args[0]
			})
		},
	}
}

// newRestoreCommand restores a deleted or completed item.
func newRestoreCommand(c *cli) *cobra.Command {
	var completed bool
	cmd := itemCommand(c, "restore", "Restore a deleted item, or reopen a completed one with --completed", func(cmd *cobra.Command, svc *app.Service, id string) (domain.ScheduleItem, error) {
		if completed {
			return svc.RestoreCompletedItem(cmd.Context(), id)
		}
		return svc.RestoreDeletedItem(cmd.Context(), id)
	})
	cmd.Flags().BoolVar(&completed, "completed", false, "reopen a completed item")
	return cmd
}

// newEditCommand applies the flags set on the command line as a patch.
func newEditCommand(c *cli) *cobra.Command {
	var flags itemFlags
	cmd := itemCommand(c, "edit", "Update item fields", func(cmd *cobra.Command, svc *app.Service, id string) (domain.ScheduleItem, error) {
		patch, err := flags.patch(cmd, time.Local)
		if err != nil {
			return domain.ScheduleItem{}, err
		}
		if patch.Empty() {
			return domain.ScheduleItem{}, errors.New("no fields to update")
		}
		item, err := svc.UpdateItem(cmd.Context(), id, patch)
		if err != nil {
			return domain.ScheduleItem{}, err
		}
		c.warnConflicts(cmd, svc, item)
		return item, nil
	})
	flags.register(cmd)
	return cmd
}

// newConflictsCommand lists items overlapping the given one.
func newConflictsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts <id>",
		Short: "List items overlapping one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			conflicts, err := svc.ItemConflicts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.emit(conflicts, func(r *render.Renderer) string {
				return r.Conflicts(conflicts)
			})
		},
	}
}
