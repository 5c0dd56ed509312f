package domain

import (
	"fmt"
	"strings"
)

// ScheduleType distinguishes tasks from events.
type ScheduleType string

// ScheduleType values.
const (
	ScheduleTypeTask  ScheduleType = "task"
	ScheduleTypeEvent ScheduleType = "event"
)

// Valid reports enum membership.
func (t ScheduleType) Valid() bool {
	switch t {
	case ScheduleTypeTask, ScheduleTypeEvent:
		return true
	default:
		return false
	}
}

// ItemType classifies the life area an item belongs to.
type ItemType string

// ItemType values.
const (
	ItemTypeWork     ItemType = "work"
	ItemTypePersonal ItemType = "personal"
	ItemTypeHealth   ItemType = "health"
	ItemTypeLearning ItemType = "learning"
	ItemTypeSocial   ItemType = "social"
	ItemTypeUrgent   ItemType = "urgent"
)

// Valid reports enum membership.
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeWork, ItemTypePersonal, ItemTypeHealth, ItemTypeLearning, ItemTypeSocial, ItemTypeUrgent:
		return true
	default:
		return false
	}
}

// Priority ranks items.
type Priority string

// Priority values.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports enum membership.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Recurrence is the repeat pattern of an item.
type Recurrence string

// Recurrence values.
const (
	RecurrenceNone     Recurrence = "none"
	RecurrenceDaily    Recurrence = "daily"
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceBiweekly Recurrence = "biweekly"
	RecurrenceMonthly  Recurrence = "monthly"
)

// Valid reports enum membership.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// Repeats reports whether completion spawns a successor.
func (r Recurrence) Repeats() bool {
	return r.Valid() && r != RecurrenceNone
}

// ReasonCategory classifies why an item was postponed.
type ReasonCategory string

// ReasonCategory values.
const (
	ReasonUnavailable ReasonCategory = "unavailable"
	ReasonConflict    ReasonCategory = "conflict"
	ReasonEmergency   ReasonCategory = "emergency"
	ReasonOther       ReasonCategory = "other"
)

// Valid reports enum membership.
func (c ReasonCategory) Valid() bool {
	switch c {
	case ReasonUnavailable, ReasonConflict, ReasonEmergency, ReasonOther:
		return true
	default:
		return false
	}
}

// Impact grades the consequence of a postponement.
type Impact string

// Impact values.
const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Valid reports enum membership.
func (i Impact) Valid() bool {
	switch i {
	case ImpactLow, ImpactMedium, ImpactHigh:
		return true
	default:
		return false
	}
}

// Collection names one of the three item collections owned by the store.
type Collection string

// Collection values.
const (
	CollectionActive    Collection = "active"
	CollectionDeleted   Collection = "deleted"
	CollectionCompleted Collection = "completed"
)

// Valid reports enum membership.
func (c Collection) Valid() bool {
	switch c {
	case CollectionActive, CollectionDeleted, CollectionCompleted:
		return true
	default:
		return false
	}
}

// ParseScheduleType parses case-insensitive input.
func ParseScheduleType(raw string) (ScheduleType, error) {
	v := ScheduleType(normalizeEnum(raw))
	if !v.Valid() {
		return "", fmt.Errorf("unknown schedule type %q", raw)
	}
	return v, nil
}

// ParseItemType parses case-insensitive input.
func ParseItemType(raw string) (ItemType, error) {
	v := ItemType(normalizeEnum(raw))
	if !v.Valid() {
		return "", fmt.Errorf("unknown item type %q", raw)
	}
	return v, nil
}

// ParsePriority parses case-insensitive input.
func ParsePriority(raw string) (Priority, error) {
	v := Priority(normalizeEnum(raw))
	if !v.Valid() {
		return "", fmt.Errorf("unknown priority %q", raw)
	}
	return v, nil
}

// ParseRecurrence parses case-insensitive input; empty means none.
func ParseRecurrence(raw string) (Recurrence, error) {
	if strings.TrimSpace(raw) == "" {
		return RecurrenceNone, nil
	}
	v := Recurrence(normalizeEnum(raw))
	if !v.Valid() {
		return "", fmt.Errorf("unknown recurrence %q", raw)
	}
	return v, nil
}

// ParseReasonCategory parses case-insensitive input.
func ParseReasonCategory(raw string) (ReasonCategory, error) {
	v := ReasonCategory(normalizeEnum(raw))
	if !v.Valid() {
		return "", fmt.Errorf("unknown reason category %q", raw)
	}
	return v, nil
}

// ParseImpact parses case-insensitive input.
func ParseImpact(raw string) (Impact, error) {
	v := Impact(normalizeEnum(raw))
	if !v.Valid() {
		return "", fmt.Errorf("unknown impact %q", raw)
	}
	return v, nil
}

// normalizeEnum lowercases and trims raw enum input.
func normalizeEnum(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
