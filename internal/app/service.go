package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/cadence/internal/domain"
)

// DefaultUpcomingDays is the look-ahead window of GetUpcomingTasks when none is given.
const DefaultUpcomingDays = 7

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultMaxPostponements int
	ArchiveCompleted        bool
	UpcomingDays            int
	StreakWindowDays        int
	NotificationTimeout     time.Duration
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Option customizes a Service.
type Option func(*Service)

// WithLogger routes engine diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConflictReporter registers a receiver for advisory conflict reports.
func WithConflictReporter(r ConflictReporter) Option {
	return func(s *Service) {
		s.reporter = r
	}
}

// Service is the schedule item lifecycle engine. It is the only writer of its Store.
type Service struct {
	// mu serializes mutations so each runs to completion before the next starts.
	mu       sync.Mutex
	store    Store
	notify   notificationCoordinator
	idGen    IDGenerator
	clock    Clock
	cfg      ServiceConfig
	logger   Logger
	reporter ConflictReporter
}

// NewService constructs a new value for this package.
func NewService(store Store, notifier Notifier, idGen IDGenerator, clock Clock, cfg ServiceConfig, opts ...Option) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.DefaultMaxPostponements <= 0 {
		cfg.DefaultMaxPostponements = domain.DefaultMaxPostponements
	}
	if cfg.UpcomingDays <= 0 {
		cfg.UpcomingDays = DefaultUpcomingDays
	}
	if cfg.StreakWindowDays <= 0 {
		cfg.StreakWindowDays = domain.DefaultStreakWindowDays
	}
	if cfg.NotificationTimeout <= 0 {
		cfg.NotificationTimeout = defaultNotificationTimeout
	}
	s := &Service{
		store:  store,
		idGen:  idGen,
		clock:  clock,
		cfg:    cfg,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notify = notificationCoordinator{notifier: notifier, timeout: cfg.NotificationTimeout, logger: s.logger}
	return s
}

// CreateItem validates draft, stores the new item, and plans its notifications.
func (s *Service) CreateItem(ctx context.Context, draft domain.ScheduleItemDraft) (domain.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createItem(ctx, draft)
}

// createItem inserts the item and its blocker edges; callers hold s.mu.
// An unset postponement limit takes the configured default.
func (s *Service) createItem(ctx context.Context, draft domain.ScheduleItemDraft) (domain.ScheduleItem, error) {
	if draft.MaxPostponements == nil {
		limit := s.cfg.DefaultMaxPostponements
		draft.MaxPostponements = &limit
	}
	now := s.clock()
	item, err := domain.NewScheduleItem(s.idGen(), draft, now)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	ops := []Op{Insert(domain.CollectionActive, item)}
	edges, err := s.blockerEdges(ctx, item.ID, nil, item.BlockedBy)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	ops = append(ops, edges...)
	if err := s.store.Apply(ctx, ops...); err != nil {
		return domain.ScheduleItem{}, err
	}
	s.logger.Debug("item created", "item_id", item.ID, "title", item.Title, "recurrence", item.Recurrence)

	s.reportConflicts(ctx, item)
	s.notify.scheduled(ctx, item)
	s.refreshMetrics(ctx)
	return item, nil
}

// StartItem moves an item to in-progress. Starting an in-progress item changes nothing.
func (s *Service) StartItem(ctx context.Context, id string) (domain.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, _, err := s.liveItem(ctx, id)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	if item.InProgress {
		return item, nil
	}
	if item.Completed {
		return domain.ScheduleItem{}, domain.ErrAlreadyCompleted
	}
	if err := s.ensureUnblocked(ctx, item); err != nil {
		return domain.ScheduleItem{}, err
	}
	if err := item.Start(s.clock()); err != nil {
		return domain.ScheduleItem{}, err
	}
	if err := s.store.Apply(ctx, Replace(item)); err != nil {
		return domain.ScheduleItem{}, err
	}
	s.logger.Debug("item started", "item_id", item.ID)
	s.refreshMetrics(ctx)
	return item, nil
}

// CompletionResult describes what MarkCompleted changed.
type CompletionResult struct {
	Item domain.ScheduleItem  `json:"item"`
	Next *domain.ScheduleItem `json:"next,omitempty"`
}

// MarkCompleted completes an item and spawns its next occurrence when it recurs.
// Completing an already completed item changes nothing.
func (s *Service) MarkCompleted(ctx context.Context, id string) (CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, _, err := s.liveItem(ctx, id)
	if err != nil {
		return CompletionResult{}, err
	}
	if item.Completed {
		return CompletionResult{Item: item}, nil
	}
	now := s.clock()
	if err := item.Complete(now); err != nil {
		return CompletionResult{}, err
	}

	ops := make([]Op, 0, 2)
	if s.cfg.ArchiveCompleted {
		ops = append(ops, Move(item, domain.CollectionCompleted))
	} else {
		ops = append(ops, Replace(item))
	}
	var next *domain.ScheduleItem
	if item.Recurrence.Repeats() {
		spawned, err := item.NextOccurrence(s.idGen(), now)
		if err != nil {
			return CompletionResult{}, fmt.Errorf("spawn next occurrence of %s: %w", item.ID, err)
		}
		next = &spawned
		ops = append(ops, Insert(domain.CollectionActive, spawned))
	}
	if err := s.store.Apply(ctx, ops...); err != nil {
		return CompletionResult{}, err
	}
	s.logger.Debug("item completed", "item_id", item.ID, "actual_duration", item.ActualDuration, "archived", s.cfg.ArchiveCompleted)

	s.notify.completed(ctx, item)
	if next != nil {
		s.logger.Debug("next occurrence spawned", "item_id", next.ID, "from", item.ID, "start", next.StartDate)
		s.reportConflicts(ctx, *next)
		s.notify.scheduled(ctx, *next)
	}
	s.refreshMetrics(ctx)
	return CompletionResult{Item: item, Next: next}, nil
}

// PostponeItem shifts an item to newDate and appends a postponement record.
// Rejections leave the stored item untouched.
func (s *Service) PostponeItem(ctx context.Context, id string, newDate time.Time, opts domain.PostponeOptions) (domain.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, _, err := s.liveItem(ctx, id)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	if err := item.CanPostpone(); err != nil {
		return domain.ScheduleItem{}, err
	}
	if err := s.ensureUnblocked(ctx, item); err != nil {
		return domain.ScheduleItem{}, err
	}
	rec, err := item.Postpone(newDate, opts, s.clock())
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	if err := s.store.Apply(ctx, Replace(item)); err != nil {
		return domain.ScheduleItem{}, err
	}
	s.logger.Debug("item postponed", "item_id", item.ID, "record", rec.ID, "delay", rec.Delay(), "category", rec.ReasonCategory)

	s.reportConflicts(ctx, item)
	s.notify.postponed(ctx, item)
	s.refreshMetrics(ctx)
	return item, nil
}

// DeleteItem soft-deletes an item and cancels its notifications. Missing or already deleted ids are a no-op.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, coll, err := s.store.GetItem(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return err
	case coll == domain.CollectionDeleted:
		return nil
	}
	item.SoftDelete(s.clock())
	if err := s.store.Apply(ctx, Move(item, domain.CollectionDeleted)); err != nil {
		return err
	}
	s.logger.Debug("item deleted", "item_id", item.ID)
	s.notify.canceled(ctx, item.ID)
	s.refreshMetrics(ctx)
	return nil
}

// RestoreDeletedItem moves a soft-deleted item back into the active collection.
// Notifications are not re-planned; call RescheduleNotifications for that.
func (s *Service) RestoreDeletedItem(ctx context.Context, id string) (domain.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, coll, err := s.store.GetItem(ctx, id)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	if coll != domain.CollectionDeleted {
		return domain.ScheduleItem{}, fmt.Errorf("item %s is not deleted: %w", id, domain.ErrInvalidTransition)
	}
	item.RestoreDeleted()
	if err := s.store.Apply(ctx, Move(item, domain.CollectionActive)); err != nil {
		return domain.ScheduleItem{}, err
	}
	s.logger.Debug("item restored", "item_id", item.ID)
	s.refreshMetrics(ctx)
	return item, nil
}

// RestoreCompletedItem clears completion and returns the item to the active collection.
func (s *Service) RestoreCompletedItem(ctx context.Context, id string) (domain.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, _, err := s.liveItem(ctx, id)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	if err := item.RestoreCompleted(s.clock()); err != nil {
		return domain.ScheduleItem{}, fmt.Errorf("item %s is not completed: %w", id, err)
	}
	if err := s.store.Apply(ctx, Move(item, domain.CollectionActive)); err != nil {
		return domain.ScheduleItem{}, err
	}
	s.logger.Debug("completed item restored", "item_id", item.ID)
	s.refreshMetrics(ctx)
	return item, nil
}

// ItemPatch carries a partial update. Nil fields are left unchanged.
type ItemPatch struct {
	Title             *string             `json:"title,omitempty"`
	Description       *string             `json:"description,omitempty"`
	ScheduleType      *domain.ScheduleType `json:"schedule_type,omitempty"`
	Type              *domain.ItemType    `json:"type,omitempty"`
	Tags              *[]string           `json:"tags,omitempty"`
	Notes             *string             `json:"notes,omitempty"`
	Location          *string             `json:"location,omitempty"`
	StartDate         *time.Time          `json:"start_date,omitempty"`
	EndDate           *time.Time          `json:"end_date,omitempty"`
	Duration          *int                `json:"duration,omitempty"`
	EstimatedDuration *int                `json:"estimated_duration,omitempty"`
	Reminder          *int                `json:"reminder,omitempty"`
	Priority          *domain.Priority    `json:"priority,omitempty"`
	Recurrence        *domain.Recurrence  `json:"recurrence,omitempty"`
	BlockedBy         *[]string           `json:"blocked_by,omitempty"`
	MaxPostponements  *int                `json:"max_postponements,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p == ItemPatch{}
}

// timing reports whether the patch touches fields notifications depend on.
func (p ItemPatch) timing() bool {
	return p.StartDate != nil || p.EndDate != nil || p.Duration != nil || p.Reminder != nil || p.Recurrence != nil
}

// merge overlays the patch on d. Interval edits re-derive whichever side the patch left open.
func (p ItemPatch) merge(d domain.ScheduleItemDraft) domain.ScheduleItemDraft {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.ScheduleType != nil {
		d.ScheduleType = *p.ScheduleType
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.Tags != nil {
		d.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	if p.Location != nil {
		d.Location = *p.Location
	}
	if p.EstimatedDuration != nil {
		d.EstimatedDuration = *p.EstimatedDuration
	}
	if p.Reminder != nil {
		d.Reminder = *p.Reminder
	}
	if p.Priority != nil {
		d.Priority = *p.Priority
	}
	if p.Recurrence != nil {
		d.Recurrence = *p.Recurrence
	}
	if p.BlockedBy != nil {
		d.BlockedBy = append([]string(nil), (*p.BlockedBy)...)
	}
	if p.MaxPostponements != nil {
		limit := *p.MaxPostponements
		d.MaxPostponements = &limit
	}

	interval := d.EndDate.Sub(d.StartDate)
	switch {
	case p.Duration != nil && p.EndDate == nil:
		if p.StartDate != nil {
			d.StartDate = *p.StartDate
		}
		d.Duration = *p.Duration
		d.EndDate = time.Time{}
	case p.StartDate != nil && p.EndDate == nil:
		// Moving the start alone keeps the interval length.
		d.StartDate = *p.StartDate
		d.EndDate = d.StartDate.Add(interval)
		d.Duration = 0
	case p.EndDate != nil:
		if p.StartDate != nil {
			d.StartDate = *p.StartDate
		}
		d.EndDate = *p.EndDate
		d.Duration = 0
		if p.Duration != nil {
			d.Duration = *p.Duration
		}
	}
	return d
}

// UpdateItem merges patch into the item and re-validates the result as a whole.
func (s *Service) UpdateItem(ctx context.Context, id string, patch ItemPatch) (domain.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, _, err := s.liveItem(ctx, id)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	prevBlockers := append([]string(nil), item.BlockedBy...)
	if err := item.Revise(patch.merge(item.Draft()), s.clock()); err != nil {
		return domain.ScheduleItem{}, err
	}

	ops := []Op{Replace(item)}
	if patch.BlockedBy != nil {
		if err := s.ensureAcyclic(ctx, item.ID, item.BlockedBy); err != nil {
			return domain.ScheduleItem{}, err
		}
		edges, err := s.blockerEdges(ctx, item.ID, prevBlockers, item.BlockedBy)
		if err != nil {
			return domain.ScheduleItem{}, err
		}
		ops = append(ops, edges...)
	}
	if err := s.store.Apply(ctx, ops...); err != nil {
		return domain.ScheduleItem{}, err
	}
	s.logger.Debug("item updated", "item_id", item.ID)

	if !item.Completed {
		s.reportConflicts(ctx, item)
		if patch.timing() {
			s.notify.rescheduled(ctx, item)
		}
	}
	s.refreshMetrics(ctx)
	return item, nil
}

// RescheduleNotifications re-plans notifications for a live, incomplete item.
func (s *Service) RescheduleNotifications(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, _, err := s.liveItem(ctx, id)
	if err != nil {
		return err
	}
	if item.Completed {
		return domain.ErrAlreadyCompleted
	}
	s.notify.rescheduled(ctx, item)
	return nil
}

// CheckSchedulingConflicts reports non-completed active items overlapping item. It never blocks anything.
func (s *Service) CheckSchedulingConflicts(ctx context.Context, item domain.ScheduleItem) ([]domain.Conflict, error) {
	active, err := s.store.ListItems(ctx, domain.CollectionActive)
	if err != nil {
		return nil, err
	}
	conflicts := domain.FindConflicts(item, active)
	if len(conflicts) > 0 {
		s.logger.Warn("scheduling conflict", "item_id", item.ID, "title", item.Title, "conflicts", len(conflicts))
		if s.reporter != nil {
			s.reporter.ReportConflicts(ctx, item, conflicts)
		}
	}
	return conflicts, nil
}

// ItemConflicts loads id and runs CheckSchedulingConflicts on it.
func (s *Service) ItemConflicts(ctx context.Context, id string) ([]domain.Conflict, error) {
	item, _, err := s.liveItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.CheckSchedulingConflicts(ctx, item)
}

// GetItem returns an item from any collection.
func (s *Service) GetItem(ctx context.Context, id string) (domain.ScheduleItem, domain.Collection, error) {
	return s.store.GetItem(ctx, id)
}

// ListItems returns a point-in-time copy of one collection.
func (s *Service) ListItems(ctx context.Context, c domain.Collection) ([]domain.ScheduleItem, error) {
	if !c.Valid() {
		return nil, domain.NewValidationError([]domain.Violation{{Field: "collection", Message: "must be one of active, deleted, completed"}})
	}
	return s.store.ListItems(ctx, c)
}

// reportConflicts runs the advisory check and only logs its own failures.
func (s *Service) reportConflicts(ctx context.Context, item domain.ScheduleItem) {
	if _, err := s.CheckSchedulingConflicts(ctx, item); err != nil {
		s.logger.Warn("conflict check failed", "item_id", item.ID, "err", err)
	}
}

// liveItem loads an item that is not soft-deleted. Deleted items count as missing for mutations.
func (s *Service) liveItem(ctx context.Context, id string) (domain.ScheduleItem, domain.Collection, error) {
	item, coll, err := s.store.GetItem(ctx, id)
	if err != nil {
		return domain.ScheduleItem{}, "", err
	}
	if coll == domain.CollectionDeleted {
		return domain.ScheduleItem{}, "", fmt.Errorf("item %s is deleted: %w", id, ErrNotFound)
	}
	return item, coll, nil
}
