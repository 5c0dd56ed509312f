package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// defaultBatchSize caps how many notifications one dispatch pass delivers.
const defaultBatchSize = 100

// Sink delivers one notification.
type Sink interface {
	Deliver(context.Context, domain.Notification) error
}

// LogSink delivers notifications as structured log lines.
type LogSink struct {
	Logger app.Logger
}

// Deliver implements Sink.
func (s LogSink) Deliver(_ context.Context, n domain.Notification) error {
	if s.Logger == nil {
		return errors.New("log sink has no logger")
	}
	s.Logger.Info(notificationHeadline(n), "item_id", n.ItemID, "kind", n.Kind, "fire_at", n.FireAt.Format(time.RFC3339))
	return nil
}

// WriterSink delivers notifications as plain text lines.
type WriterSink struct {
	W io.Writer
}

// Deliver implements Sink.
func (s WriterSink) Deliver(_ context.Context, n domain.Notification) error {
	_, err := fmt.Fprintf(s.W, "%s\t%s\t%s\t%s\n", n.FireAt.Local().Format(time.DateTime), n.Kind, n.ItemID, notificationHeadline(n))
	return err
}

// NewSink resolves a configured sink name.
func NewSink(name string, logger app.Logger, w io.Writer) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "log":
		return LogSink{Logger: logger}, nil
	case "stdout", "writer":
		return WriterSink{W: w}, nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", name)
	}
}

// notificationHeadline builds the human-readable line for n.
func notificationHeadline(n domain.Notification) string {
	title := n.Title
	if title == "" {
		title = n.ItemID
	}
	switch n.Kind {
	case domain.NotificationReminder:
		return "Coming up: " + title
	case domain.NotificationStart:
		return "Starting now: " + title
	case domain.NotificationOverdue:
		return "Overdue: " + title
	case domain.NotificationCompleted:
		return "Completed: " + title
	case domain.NotificationPostponed:
		return "Postponed: " + title
	default:
		return title
	}
}

// Dispatcher delivers due outbox notifications through a Sink.
type Dispatcher struct {
	repo   Repository
	sink   Sink
	clock  app.Clock
	logger app.Logger
	batch  int
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(repo Repository, sink Sink, clock app.Clock, logger app.Logger) *Dispatcher {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{repo: repo, sink: sink, clock: clock, logger: logger, batch: defaultBatchSize}
}

// DispatchDue delivers every pending notification whose fire time has passed and returns how many were delivered.
// A failed delivery stays pending for the next pass.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.clock()
	due, err := d.repo.ListDueNotifications(ctx, now, d.batch)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, n := range due {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := d.sink.Deliver(ctx, n); err != nil {
			d.logger.Warn("notification delivery failed", "id", n.ID, "item_id", n.ItemID, "err", err)
			continue
		}
		if err := d.repo.MarkNotificationDelivered(ctx, n.ID, now); err != nil {
			if errors.Is(err, app.ErrNotFound) {
				// Canceled between listing and delivery.
				continue
			}
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

// Run dispatches on every tick until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := d.DispatchDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("notification dispatch failed", "err", err)
		} else if n > 0 {
			d.logger.Debug("notifications dispatched", "count", n)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
