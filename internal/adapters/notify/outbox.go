// Package notify plans schedule notifications into a persistent outbox and delivers them when due.
package notify

import (
	"context"
	"time"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// Repository is the outbox persistence the sqlite adapter provides.
type Repository interface {
	InsertNotifications(context.Context, []domain.Notification) error
	CancelNotifications(context.Context, string, time.Time) (int64, error)
	ListDueNotifications(context.Context, time.Time, int) ([]domain.Notification, error)
	MarkNotificationDelivered(context.Context, string, time.Time) error
}

// Outbox implements app.Notifier by writing planned notifications to a Repository.
type Outbox struct {
	repo  Repository
	idGen app.IDGenerator
	clock app.Clock
}

// NewOutbox constructs an Outbox.
func NewOutbox(repo Repository, idGen app.IDGenerator, clock app.Clock) *Outbox {
	if clock == nil {
		clock = time.Now
	}
	return &Outbox{repo: repo, idGen: idGen, clock: clock}
}

// ScheduleOneShot plans the start, the optional pre-reminder, and the overdue check.
// Start and reminder times already in the past are skipped.
func (o *Outbox) ScheduleOneShot(ctx context.Context, item domain.ScheduleItem) error {
	now := o.clock()
	planned, err := o.plan(item, item.StartDate, now)
	if err != nil {
		return err
	}
	overdue, err := o.build(item, domain.NotificationOverdue, item.EndDate, now)
	if err != nil {
		return err
	}
	return o.repo.InsertNotifications(ctx, append(planned, overdue))
}

// ScheduleRecurring plans start and reminder notifications for the next occurrences of item.
// Only the current occurrence gets an overdue check; later ones are planned when they are spawned.
func (o *Outbox) ScheduleRecurring(ctx context.Context, item domain.ScheduleItem, pattern domain.Recurrence, occurrences int) error {
	now := o.clock()
	var out []domain.Notification
	for _, start := range domain.Occurrences(item.StartDate.In(now.Location()), pattern, occurrences) {
		planned, err := o.plan(item, start, now)
		if err != nil {
			return err
		}
		out = append(out, planned...)
	}
	overdue, err := o.build(item, domain.NotificationOverdue, item.EndDate, now)
	if err != nil {
		return err
	}
	return o.repo.InsertNotifications(ctx, append(out, overdue))
}

// Cancel marks every pending notification of itemID canceled. Items with none are fine.
func (o *Outbox) Cancel(ctx context.Context, itemID string) error {
	_, err := o.repo.CancelNotifications(ctx, itemID, o.clock())
	return err
}

// NotifyCompleted queues an immediate completion notice.
func (o *Outbox) NotifyCompleted(ctx context.Context, item domain.ScheduleItem) error {
	now := o.clock()
	n, err := o.build(item, domain.NotificationCompleted, now, now)
	if err != nil {
		return err
	}
	return o.repo.InsertNotifications(ctx, []domain.Notification{n})
}

// NotifyPostponed queues an immediate postponement notice.
func (o *Outbox) NotifyPostponed(ctx context.Context, itemID string) error {
	now := o.clock()
	n, err := domain.NewNotification(o.idGen(), itemID, domain.NotificationPostponed, "", now, now)
	if err != nil {
		return err
	}
	return o.repo.InsertNotifications(ctx, []domain.Notification{n})
}

// plan builds the start and reminder notifications of one occurrence starting at start.
func (o *Outbox) plan(item domain.ScheduleItem, start, now time.Time) ([]domain.Notification, error) {
	var out []domain.Notification
	if item.Reminder > 0 {
		at := start.Add(-time.Duration(item.Reminder) * time.Minute)
		if !at.Before(now) {
			n, err := o.build(item, domain.NotificationReminder, at, now)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	}
	if !start.Before(now) {
		n, err := o.build(item, domain.NotificationStart, start, now)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// build stamps a fresh notification for item.
func (o *Outbox) build(item domain.ScheduleItem, kind domain.NotificationKind, fireAt, now time.Time) (domain.Notification, error) {
	return domain.NewNotification(o.idGen(), item.ID, kind, item.Title, fireAt, now)
}

var _ app.Notifier = (*Outbox)(nil)
