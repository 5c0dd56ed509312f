package app

import (
	"context"
	"time"

	"github.com/evanschultz/cadence/internal/domain"
)

// defaultNotificationTimeout bounds a single notifier call when the config leaves it unset.
const defaultNotificationTimeout = 5 * time.Second

// notificationCoordinator turns committed lifecycle events into notifier calls.
// Every call is best-effort: failures and panics are logged and swallowed.
type notificationCoordinator struct {
	notifier Notifier
	timeout  time.Duration
	logger   Logger
}

// scheduled plans notifications for a live item, recurring or one-shot.
func (c notificationCoordinator) scheduled(ctx context.Context, item domain.ScheduleItem) {
	if item.Recurrence.Repeats() {
		n := domain.OccurrenceCount(item.Recurrence)
		c.call(ctx, "schedule_recurring", item.ID, func(ctx context.Context) error {
			return c.notifier.ScheduleRecurring(ctx, item, item.Recurrence, n)
		})
		return
	}
	c.call(ctx, "schedule_one_shot", item.ID, func(ctx context.Context) error {
		return c.notifier.ScheduleOneShot(ctx, item)
	})
}

// canceled drops every pending notification of itemID.
func (c notificationCoordinator) canceled(ctx context.Context, itemID string) {
	c.call(ctx, "cancel", itemID, func(ctx context.Context) error {
		return c.notifier.Cancel(ctx, itemID)
	})
}

// completed drops the item's pending plan and announces completion.
func (c notificationCoordinator) completed(ctx context.Context, item domain.ScheduleItem) {
	c.canceled(ctx, item.ID)
	c.call(ctx, "notify_completed", item.ID, func(ctx context.Context) error {
		return c.notifier.NotifyCompleted(ctx, item)
	})
}

// postponed replaces the plan for the shifted dates and announces the postponement.
func (c notificationCoordinator) postponed(ctx context.Context, item domain.ScheduleItem) {
	c.canceled(ctx, item.ID)
	c.scheduled(ctx, item)
	c.call(ctx, "notify_postponed", item.ID, func(ctx context.Context) error {
		return c.notifier.NotifyPostponed(ctx, item.ID)
	})
}

// rescheduled replaces the plan without announcing anything.
func (c notificationCoordinator) rescheduled(ctx context.Context, item domain.ScheduleItem) {
	c.canceled(ctx, item.ID)
	c.scheduled(ctx, item)
}

// call runs fn under a detached, bounded context so a canceled request cannot undo delivery bookkeeping.
func (c notificationCoordinator) call(ctx context.Context, op, itemID string, fn func(context.Context) error) {
	if c.notifier == nil {
		return
	}
	timeout := c.timeout
	if timeout <= 0 {
		timeout = defaultNotificationTimeout
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("notification call panicked", "op", op, "item_id", itemID, "panic", r)
		}
	}()
	if err := fn(callCtx); err != nil {
		c.logger.Warn("notification call failed", "op", op, "item_id", itemID, "err", err)
	}
}
