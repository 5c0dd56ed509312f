package domain

import (
	"strings"
	"time"
)

// NotificationKind names what a planned notification announces.
type NotificationKind string

// NotificationKind values.
const (
	NotificationStart     NotificationKind = "start"
	NotificationReminder  NotificationKind = "reminder"
	NotificationOverdue   NotificationKind = "overdue"
	NotificationCompleted NotificationKind = "completed"
	NotificationPostponed NotificationKind = "postponed"
)

// Valid reports enum membership.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationStart, NotificationReminder, NotificationOverdue, NotificationCompleted, NotificationPostponed:
		return true
	default:
		return false
	}
}

// Notification is one planned delivery tied to an item.
type Notification struct {
	ID          string           `json:"id"`
	ItemID      string           `json:"item_id"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	FireAt      time.Time        `json:"fire_at"`
	CreatedAt   time.Time        `json:"created_at"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty"`
	CanceledAt  *time.Time       `json:"canceled_at,omitempty"`
}

// NewNotification validates and builds a pending notification.
func NewNotification(id, itemID string, kind NotificationKind, title string, fireAt, now time.Time) (Notification, error) {
	id = strings.TrimSpace(id)
	itemID = strings.TrimSpace(itemID)
	if id == "" || itemID == "" {
		return Notification{}, ErrInvalidID
	}
	if !kind.Valid() {
		return Notification{}, NewValidationError([]Violation{{Field: "kind", Message: "unknown notification kind"}})
	}
	return Notification{
		ID:        id,
		ItemID:    itemID,
		Kind:      kind,
		Title:     strings.TrimSpace(title),
		FireAt:    fireAt.UTC(),
		CreatedAt: now.UTC(),
	}, nil
}

// Pending reports whether the notification still awaits delivery.
func (n Notification) Pending() bool {
	return n.DeliveredAt == nil && n.CanceledAt == nil
}
