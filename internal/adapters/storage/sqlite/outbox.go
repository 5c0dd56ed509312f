package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evanschultz/cadence/internal/domain"
)

// notificationRow is the flat column form of a Notification.
type notificationRow struct {
	ID          string         `db:"id"`
	ItemID      string         `db:"item_id"`
	Kind        string         `db:"kind"`
	Title       string         `db:"title"`
	FireAt      string         `db:"fire_at"`
	CreatedAt   string         `db:"created_at"`
	DeliveredAt sql.NullString `db:"delivered_at"`
	CanceledAt  sql.NullString `db:"canceled_at"`
}

const notificationColumns = `id, item_id, kind, title, fire_at, created_at, delivered_at, canceled_at`

// InsertNotifications stores planned notifications in one transaction.
func (r *Repository) InsertNotifications(ctx context.Context, ns []domain.Notification) (err error) {
	if len(ns) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert notifications: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, n := range ns {
		row := notificationRow{
			ID:          n.ID,
			ItemID:      n.ItemID,
			Kind:        string(n.Kind),
			Title:       n.Title,
			FireAt:      ts(n.FireAt),
			CreatedAt:   ts(n.CreatedAt),
			DeliveredAt: nullableTS(n.DeliveredAt),
			CanceledAt:  nullableTS(n.CanceledAt),
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO notifications (`+notificationColumns+`)
			VALUES (:id, :item_id, :kind, :title, :fire_at, :created_at, :delivered_at, :canceled_at)`, row); err != nil {
			return fmt.Errorf("insert notification %s: %w", n.ID, err)
		}
	}
	err = tx.Commit()
	return err
}

// CancelNotifications marks every pending notification of itemID canceled and returns how many changed.
func (r *Repository) CancelNotifications(ctx context.Context, itemID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET canceled_at = ?
		WHERE item_id = ? AND delivered_at IS NULL AND canceled_at IS NULL
	`, ts(at), itemID)
	if err != nil {
		return 0, fmt.Errorf("cancel notifications of %s: %w", itemID, err)
	}
	return res.RowsAffected()
}

// ListDueNotifications returns pending notifications whose fire time is at or before now, oldest first.
func (r *Repository) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []notificationRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+notificationColumns+` FROM notifications
		WHERE delivered_at IS NULL AND canceled_at IS NULL AND fire_at <= ?
		ORDER BY fire_at, id LIMIT ?`, ts(now), limit)
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}
	return notificationsFromRows(rows), nil
}

// ListNotifications returns every notification recorded for itemID.
func (r *Repository) ListNotifications(ctx context.Context, itemID string) ([]domain.Notification, error) {
	var rows []notificationRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+notificationColumns+` FROM notifications
		WHERE item_id = ? ORDER BY fire_at, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list notifications of %s: %w", itemID, err)
	}
	return notificationsFromRows(rows), nil
}

// MarkNotificationDelivered stamps delivered_at on one pending notification.
func (r *Repository) MarkNotificationDelivered(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET delivered_at = ?
		WHERE id = ? AND delivered_at IS NULL AND canceled_at IS NULL
	`, ts(at), id)
	if err != nil {
		return fmt.Errorf("mark notification %s delivered: %w", id, err)
	}
	return translateNoRows(res)
}

// notificationsFromRows converts outbox rows to domain notifications.
func notificationsFromRows(rows []notificationRow) []domain.Notification {
	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Notification{
			ID:          row.ID,
			ItemID:      row.ItemID,
			Kind:        domain.NotificationKind(row.Kind),
			Title:       row.Title,
			FireAt:      parseTS(row.FireAt),
			CreatedAt:   parseTS(row.CreatedAt),
			DeliveredAt: parseNullTS(row.DeliveredAt),
			CanceledAt:  parseNullTS(row.CanceledAt),
		})
	}
	return out
}
