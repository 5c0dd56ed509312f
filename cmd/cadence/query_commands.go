package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
	"github.com/evanschultz/cadence/internal/render"
)

// queryCommand builds a read-only command that lists the items a query returns.
func queryCommand(c *cli, cmd *cobra.Command, fetch func(ctx context.Context, svc *app.Service, args []string) ([]domain.ScheduleItem, error)) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		svc, err := c.service()
		if err != nil {
			return err
		}
		items, err := fetch(cmd.Context(), svc, args)
		if err != nil {
			return err
		}
		if items == nil {
			items = []domain.ScheduleItem{}
		}
		return c.emit(items, func(r *render.Renderer) string {
			return r.Items(items, c.now())
		})
	}
	return cmd
}

// newOverdueCommand lists incomplete items whose end has passed.
func newOverdueCommand(c *cli) *cobra.Command {
	return queryCommand(c, &cobra.Command{
		Use:   "overdue",
		Short: "List incomplete items whose end has passed",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, svc *app.Service, _ []string) ([]domain.ScheduleItem, error) {
		return svc.GetOverdueTasks(ctx)
	})
}

// newUpcomingCommand lists items starting within the next --days days.
func newUpcomingCommand(c *cli) *cobra.Command {
	var days int
	cmd := queryCommand(c, &cobra.Command{
		Use:   "upcoming",
		Short: "List incomplete items starting soon",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, svc *app.Service, _ []string) ([]domain.ScheduleItem, error) {
		if days < 0 {
			return nil, fmt.Errorf("--days must be >= 0")
		}
		return svc.GetUpcomingTasks(ctx, days)
	})
	cmd.Flags().IntVar(&days, "days", 0, "window in days (0 uses engine.upcoming_days)")
	return cmd
}

// newPriorityCommand lists active items with one priority.
func newPriorityCommand(c *cli) *cobra.Command {
	return queryCommand(c, &cobra.Command{
		Use:   "priority <low|medium|high|critical>",
		Short: "List active items with one priority",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, svc *app.Service, args []string) ([]domain.ScheduleItem, error) {
		p, err := domain.ParsePriority(args[0])
		if err != nil {
			return nil, err
		}
		return svc.GetTasksByPriority(ctx, p)
	})
}

// newBlockedCommand lists items waiting on unresolved blockers.
func newBlockedCommand(c *cli) *cobra.Command {
	return queryCommand(c, &cobra.Command{
		Use:   "blocked",
		Short: "List items waiting on an incomplete blocker",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, svc *app.Service, _ []string) ([]domain.ScheduleItem, error) {
		return svc.GetBlockedTasks(ctx)
	})
}

// newMetricsCommand recomputes and prints performance metrics.
func newMetricsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show performance metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			m, err := svc.GetPerformanceMetrics(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(m, func(r *render.Renderer) string {
				return r.Metrics(m)
			})
		},
	}
}
