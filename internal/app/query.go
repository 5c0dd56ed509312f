package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/cadence/internal/domain"
)

// GetOverdueTasks returns incomplete active items whose end date has passed.
func (s *Service) GetOverdueTasks(ctx context.Context) ([]domain.ScheduleItem, error) {
	items, err := s.store.ListItems(ctx, domain.CollectionActive)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	return filterSorted(items, func(it domain.ScheduleItem) bool {
		return !it.Completed && it.EndDate.Before(now)
	}), nil
}

// GetUpcomingTasks returns incomplete active items starting within [now, now+days).
// days <= 0 uses the configured window.
func (s *Service) GetUpcomingTasks(ctx context.Context, days int) ([]domain.ScheduleItem, error) {
	if days <= 0 {
		days = s.cfg.UpcomingDays
	}
	items, err := s.store.ListItems(ctx, domain.CollectionActive)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	until := now.Add(time.Duration(days) * 24 * time.Hour)
	return filterSorted(items, func(it domain.ScheduleItem) bool {
		return !it.Completed && !it.StartDate.Before(now) && it.StartDate.Before(until)
	}), nil
}

// GetTasksByPriority returns active items with priority p.
func (s *Service) GetTasksByPriority(ctx context.Context, p domain.Priority) ([]domain.ScheduleItem, error) {
	if !p.Valid() {
		return nil, domain.NewValidationError([]domain.Violation{{Field: "priority", Message: "must be one of low, medium, high, critical"}})
	}
	items, err := s.store.ListItems(ctx, domain.CollectionActive)
	if err != nil {
		return nil, err
	}
	return filterSorted(items, func(it domain.ScheduleItem) bool {
		return it.Priority == p
	}), nil
}

// GetBlockedTasks returns incomplete active items with at least one unresolved blocker.
func (s *Service) GetBlockedTasks(ctx context.Context) ([]domain.ScheduleItem, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	index := map[string]located{}
	for coll, items := range all {
		for _, it := range items {
			index[it.ID] = located{item: it, coll: coll}
		}
	}
	active := all[domain.CollectionActive]
	lookup := func(id string) (located, bool, error) {
		found, ok := index[id]
		return found, ok, nil
	}

	out := make([]domain.ScheduleItem, 0)
	for _, it := range active {
		if it.Completed || len(it.BlockedBy) == 0 {
			continue
		}
		ids, _ := unresolvedBlockers(it, lookup)
		if len(ids) > 0 {
			out = append(out, it)
		}
	}
	sortByStart(out)
	return out, nil
}

// filterSorted keeps the items matching keep, ordered by start.
func filterSorted(items []domain.ScheduleItem, keep func(domain.ScheduleItem) bool) []domain.ScheduleItem {
	out := make([]domain.ScheduleItem, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sortByStart(out)
	return out
}

// sortByStart orders items by start date, then id.
func sortByStart(items []domain.ScheduleItem) {
	slices.SortFunc(items, func(a, b domain.ScheduleItem) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
