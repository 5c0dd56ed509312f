package app

import (
	"context"

	"github.com/evanschultz/cadence/internal/domain"
)

// OpKind names one store mutation primitive.
type OpKind string

// OpKind values.
const (
	OpInsert  OpKind = "insert"
	OpReplace OpKind = "replace"
	OpMove    OpKind = "move"
)

// Op is one step of an atomic store batch.
type Op struct {
	Kind       OpKind
	Item       domain.ScheduleItem
	Collection domain.Collection
}

// Insert adds a new item to a collection. The id must be unused in every collection.
func Insert(c domain.Collection, item domain.ScheduleItem) Op {
	return Op{Kind: OpInsert, Item: item, Collection: c}
}

// Replace swaps the stored body of an existing item, wherever it lives.
func Replace(item domain.ScheduleItem) Op {
	return Op{Kind: OpReplace, Item: item}
}

// Move replaces the stored body and relocates the item to collection c in one step.
func Move(item domain.ScheduleItem, c domain.Collection) Op {
	return Op{Kind: OpMove, Item: item, Collection: c}
}

// Store owns the active, deleted, and completed collections plus the metrics cache and draft.
// Apply must be atomic: either every op in the batch lands or none does.
type Store interface {
	GetItem(context.Context, string) (domain.ScheduleItem, domain.Collection, error)
	ListItems(context.Context, domain.Collection) ([]domain.ScheduleItem, error)
	// ListAll reads every collection from one point in time.
	ListAll(context.Context) (Collections, error)
	Apply(context.Context, ...Op) error

	SaveMetrics(context.Context, domain.PerformanceMetrics) error
	LoadMetrics(context.Context) (domain.PerformanceMetrics, error)

	SaveDraft(context.Context, domain.ScheduleItemDraft) error
	LoadDraft(context.Context) (domain.ScheduleItemDraft, error)
	ClearDraft(context.Context) error
}

// Logger is the leveled logging surface the engine and its adapters write to.
// A *log.Logger from charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// Collections holds each collection's items in insertion order.
type Collections map[domain.Collection][]domain.ScheduleItem

// Notifier is the delivery capability the engine schedules against.
type Notifier interface {
	ScheduleOneShot(context.Context, domain.ScheduleItem) error
	ScheduleRecurring(context.Context, domain.ScheduleItem, domain.Recurrence, int) error
	Cancel(context.Context, string) error
	NotifyCompleted(context.Context, domain.ScheduleItem) error
	NotifyPostponed(context.Context, string) error
}

// ConflictReporter receives advisory overlap reports.
type ConflictReporter interface {
	ReportConflicts(context.Context, domain.ScheduleItem, []domain.Conflict)
}

// ValidateOp checks the shape of an op before a store applies it.
func ValidateOp(op Op) error {
	if op.Item.ID == "" {
		return domain.ErrInvalidID
	}
	switch op.Kind {
	case OpInsert, OpMove:
		if !op.Collection.Valid() {
			return domain.NewValidationError([]domain.Violation{{Field: "collection", Message: "unknown collection"}})
		}
	case OpReplace:
	default:
		return domain.NewValidationError([]domain.Violation{{Field: "op", Message: "unknown store op"}})
	}
	return nil
}
