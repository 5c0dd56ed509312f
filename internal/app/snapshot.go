package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/cadence/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "cadence.snapshot.v1"

// Snapshot is the portable form of every collection plus the last metrics.
type Snapshot struct {
	Version        string                     `json:"version"`
	ExportedAt     time.Time                  `json:"exported_at"`
	Items          []domain.ScheduleItem      `json:"items"`
	DeletedItems   []domain.ScheduleItem      `json:"deleted_items"`
	CompletedItems []domain.ScheduleItem      `json:"completed_items"`
	Metrics        *domain.PerformanceMetrics `json:"metrics,omitempty"`
}

// ExportSnapshot copies all three collections and the cached metrics.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
	}
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Items = all[domain.CollectionActive]
	snap.DeletedItems = all[domain.CollectionDeleted]
	snap.CompletedItems = all[domain.CollectionCompleted]
	m, err := s.store.LoadMetrics(ctx)
	switch {
	case err == nil:
		snap.Metrics = &m
	case !errors.Is(err, ErrNotFound):
		return Snapshot{}, err
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot validates snap and writes every item in one batch.
// Items already stored under the same id are overwritten and moved to the snapshot's collection.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]Op, 0, len(snap.Items)+len(snap.DeletedItems)+len(snap.CompletedItems))
	for _, group := range snap.groups() {
		for _, item := range group.items {
			_, _, err := s.store.GetItem(ctx, item.ID)
			switch {
			case err == nil:
				ops = append(ops, Move(item, group.coll))
			case errors.Is(err, ErrNotFound):
				ops = append(ops, Insert(group.coll, item))
			default:
				return err
			}
		}
	}
	if err := s.store.Apply(ctx, ops...); err != nil {
		return err
	}
	s.logger.Info("snapshot imported", "items", len(snap.Items), "deleted", len(snap.DeletedItems), "completed", len(snap.CompletedItems))
	s.refreshMetrics(ctx)
	return nil
}

// Validate checks the version, ids, and every item's interval and postponement invariants.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}
	seen := map[string]struct{}{}
	for _, group := range s.groups() {
		for i, it := range group.items {
			field := fmt.Sprintf("%s[%d]", group.field, i)
			if strings.TrimSpace(it.ID) == "" {
				return fmt.Errorf("%w: %s.id is required", ErrInvalidSnapshot, field)
			}
			if _, dup := seen[it.ID]; dup {
				return fmt.Errorf("%w: duplicate item id %q", ErrInvalidSnapshot, it.ID)
			}
			seen[it.ID] = struct{}{}
			if strings.TrimSpace(it.Title) == "" {
				return fmt.Errorf("%w: %s.title is required", ErrInvalidSnapshot, field)
			}
			if it.StartDate.IsZero() || !it.StartDate.Before(it.EndDate) {
				return fmt.Errorf("%w: %s must have start_date before end_date", ErrInvalidSnapshot, field)
			}
			if len(it.Postponements) > it.MaxPostponements {
				return fmt.Errorf("%w: %s exceeds max_postponements", ErrInvalidSnapshot, field)
			}
			if !it.Priority.Valid() || !it.Type.Valid() || !it.Recurrence.Valid() || !it.ScheduleType.Valid() {
				return fmt.Errorf("%w: %s has an unknown enum value", ErrInvalidSnapshot, field)
			}
		}
	}
	return nil
}

// snapshotGroup is one snapshot field with its target collection.
type snapshotGroup struct {
	field string
	coll  domain.Collection
	items []domain.ScheduleItem
}

// groups pairs each snapshot field with the collection it imports into.
func (s *Snapshot) groups() []snapshotGroup {
	return []snapshotGroup{
		{field: "items", coll: domain.CollectionActive, items: s.Items},
		{field: "deleted_items", coll: domain.CollectionDeleted, items: s.DeletedItems},
		{field: "completed_items", coll: domain.CollectionCompleted, items: s.CompletedItems},
	}
}

// sort replaces each collection with a copy ordered by creation time then id, so exports
// are deterministic and the caller's slices keep their order.
func (s *Snapshot) sort() {
	byCreation := func(a, b domain.ScheduleItem) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	}
	for _, items := range []*[]domain.ScheduleItem{&s.Items, &s.DeletedItems, &s.CompletedItems} {
		sorted := make([]domain.ScheduleItem, len(*items))
		copy(sorted, *items)
		slices.SortStableFunc(sorted, byCreation)
		*items = sorted
	}
}
