package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service operations.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// CreateItem creates one item from a draft.
func (a *AppServiceAdapter) CreateItem(ctx context.Context, draft domain.ScheduleItemDraft) (domain.ScheduleItem, error) {
	if err := a.ready(); err != nil {
		return domain.ScheduleItem{}, err
	}
	return a.service.CreateItem(ctx, draft)
}

// GetItem resolves one item in any collection.
func (a *AppServiceAdapter) GetItem(ctx context.Context, id string) (ItemView, error) {
	if err := a.ready(); err != nil {
		return ItemView{}, err
	}
	id, err := requireID(id)
	if err != nil {
		return ItemView{}, err
	}
	item, coll, err := a.service.GetItem(ctx, id)
	if err != nil {
		return ItemView{}, mapAppError("get item", err)
	}
	return ItemView{ScheduleItem: item, Collection: coll, Status: item.Status()}, nil
}

// ListItems lists one collection in creation order.
func (a *AppServiceAdapter) ListItems(ctx context.Context, in ListItemsRequest) ([]domain.ScheduleItem, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	coll := domain.Collection(strings.ToLower(strings.TrimSpace(in.Collection)))
	if coll == "" {
		coll = domain.CollectionActive
	}
	if !coll.Valid() {
		return nil, fmt.Errorf("unknown collection %q: %w", in.Collection, ErrInvalidRequest)
	}
	return a.service.ListItems(ctx, coll)
}

// UpdateItem applies a partial update.
func (a *AppServiceAdapter) UpdateItem(ctx context.Context, id string, patch app.ItemPatch) (domain.ScheduleItem, error) {
	if err := a.ready(); err != nil {
		return domain.ScheduleItem{}, err
	}
	id, err := requireID(id)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	item, err := a.service.UpdateItem(ctx, id, patch)
	return item, mapAppError("update item", err)
}

// StartItem marks one item in progress.
func (a *AppServiceAdapter) StartItem(ctx context.Context, id string) (domain.ScheduleItem, error) {
	if err := a.ready(); err != nil {
		return domain.ScheduleItem{}, err
	}
	id, err := requireID(id)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	item, err := a.service.StartItem(ctx, id)
	return item, mapAppError("start item", err)
}

// CompleteItem completes one item and returns any spawned occurrence.
func (a *AppServiceAdapter) CompleteItem(ctx context.Context, id string) (app.CompletionResult, error) {
	if err := a.ready(); err != nil {
		return app.CompletionResult{}, err
	}
	id, err := requireID(id)
	if err != nil {
		return app.CompletionResult{}, err
	}
	res, err := a.service.MarkCompleted(ctx, id)
	return res, mapAppError("complete item", err)
}

// PostponeItem moves one item to a new start date and records why.
func (a *AppServiceAdapter) PostponeItem(ctx context.Context, in PostponeItemRequest) (domain.ScheduleItem, error) {
	if err := a.ready(); err != nil {
		return domain.ScheduleItem{}, err
	}
	id, err := requireID(in.ID)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	newDate, err := ParseTime(in.NewDate)
	if err != nil {
		return domain.ScheduleItem{}, fmt.Errorf("new_date: %w", err)
	}
	opts := domain.PostponeOptions{Reason: in.Reason}
	if raw := strings.TrimSpace(in.ReasonCategory); raw != "" {
		if opts.ReasonCategory, err = domain.ParseReasonCategory(raw); err != nil {
			return domain.ScheduleItem{}, errors.Join(ErrInvalidRequest, err)
		}
	}
	if raw := strings.TrimSpace(in.Impact); raw != "" {
		if opts.Impact, err = domain.ParseImpact(raw); err != nil {
			return domain.ScheduleItem{}, errors.Join(ErrInvalidRequest, err)
		}
	}
	item, err := a.service.PostponeItem(ctx, id, newDate, opts)
	return item, mapAppError("postpone item", err)
}

// DeleteItem soft-deletes one item.
func (a *AppServiceAdapter) DeleteItem(ctx context.Context, id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	id, err := requireID(id)
	if err != nil {
		return err
	}
	return mapAppError("delete item", a.service.DeleteItem(ctx, id))
}

// RestoreItem brings one soft-deleted item back.
func (a *AppServiceAdapter) RestoreItem(ctx context.Context, id string) (domain.ScheduleItem, error) {
	if err := a.ready(); err != nil {
		return domain.ScheduleItem{}, err
	}
	id, err := requireID(id)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	item, err := a.service.RestoreDeletedItem(ctx, id)
	return item, mapAppError("restore item", err)
}

// RestoreCompletedItem reopens one completed item.
func (a *AppServiceAdapter) RestoreCompletedItem(ctx context.Context, id string) (domain.ScheduleItem, error) {
	if err := a.ready(); err != nil {
		return domain.ScheduleItem{}, err
	}
	id, err := requireID(id)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	item, err := a.service.RestoreCompletedItem(ctx, id)
	return item, mapAppError("restore completed item", err)
}

// ItemConflicts lists active items overlapping one item.
func (a *AppServiceAdapter) ItemConflicts(ctx context.Context, id string) ([]domain.Conflict, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}
	conflicts, err := a.service.ItemConflicts(ctx, id)
	return conflicts, mapAppError("item conflicts", err)
}

// Query runs one named read-only query.
func (a *AppServiceAdapter) Query(ctx context.Context, in QueryRequest) ([]domain.ScheduleItem, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(in.Name)) {
	case QueryOverdue:
		return a.service.GetOverdueTasks(ctx)
	case QueryUpcoming:
		if in.Days < 0 {
			return nil, fmt.Errorf("days must be >= 0: %w", ErrInvalidRequest)
		}
		return a.service.GetUpcomingTasks(ctx, in.Days)
	case QueryBlocked:
		return a.service.GetBlockedTasks(ctx)
	case QueryPriority:
		p, err := domain.ParsePriority(in.Priority)
		if err != nil {
			return nil, errors.Join(ErrInvalidRequest, err)
		}
		return a.service.GetTasksByPriority(ctx, p)
	default:
		return nil, fmt.Errorf("unknown query %q: %w", in.Name, ErrInvalidRequest)
	}
}

// Metrics returns the cached performance metrics.
func (a *AppServiceAdapter) Metrics(ctx context.Context) (domain.PerformanceMetrics, error) {
	if err := a.ready(); err != nil {
		return domain.PerformanceMetrics{}, err
	}
	return a.service.GetPerformanceMetrics(ctx)
}

// ready reports whether the adapter has a service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

// ParseTime accepts RFC3339 timestamps with or without fractional seconds.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("timestamp is required: %w", ErrInvalidRequest)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errors.Join(ErrInvalidRequest, err)
	}
	return ts, nil
}

// requireID trims id and rejects blanks.
func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("id is required: %w", ErrInvalidRequest)
	}
	return id, nil
}

// mapAppError tags missing items with the transport not-found sentinel.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, app.ErrNotFound) {
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	}
	return fmt.Errorf("%s: %w", operation, err)
}

var _ ScheduleService = (*AppServiceAdapter)(nil)
