// Package memory provides a mutex-guarded, process-local schedule item store.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// entry is one stored item with its collection and insertion sequence.
type entry struct {
	item domain.ScheduleItem
	coll domain.Collection
	seq  uint64
}

// Store keeps every collection in one map so a move never shows an item twice or not at all.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	seq     uint64
	metrics *domain.PerformanceMetrics
	draft   *domain.ScheduleItemDraft
}

// New returns an empty store.
func New() *Store {
	return &Store{entries: map[string]entry{}}
}

// GetItem returns a copy of the item and the collection holding it.
func (s *Store) GetItem(_ context.Context, id string) (domain.ScheduleItem, domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.ScheduleItem{}, "", app.ErrNotFound
	}
	return e.item.Clone(), e.coll, nil
}

// ListItems returns copies of one collection in insertion order.
func (s *Store) ListItems(_ context.Context, c domain.Collection) ([]domain.ScheduleItem, error) {
	s.mu.RLock()
	matched := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.coll == c {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()
	return cloneInOrder(matched), nil
}

// ListAll copies every collection under one read lock.
func (s *Store) ListAll(_ context.Context) (app.Collections, error) {
	s.mu.RLock()
	grouped := map[domain.Collection][]entry{}
	for _, e := range s.entries {
		grouped[e.coll] = append(grouped[e.coll], e)
	}
	s.mu.RUnlock()

	out := app.Collections{}
	for coll, entries := range grouped {
		out[coll] = cloneInOrder(entries)
	}
	return out, nil
}

// cloneInOrder copies entries' items in insertion order.
func cloneInOrder(entries []entry) []domain.ScheduleItem {
	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	out := make([]domain.ScheduleItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.item.Clone())
	}
	return out
}

// Apply stages the batch on a copy of the index and swaps it in only when every op succeeds.
func (s *Store) Apply(_ context.Context, ops ...app.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := maps.Clone(s.entries)
	seq := s.seq
	for _, op := range ops {
		if err := app.ValidateOp(op); err != nil {
			return err
		}
		cur, exists := staged[op.Item.ID]
		switch op.Kind {
		case app.OpInsert:
			if exists {
				return fmt.Errorf("insert %s: %w", op.Item.ID, app.ErrDuplicateID)
			}
			seq++
			staged[op.Item.ID] = entry{item: op.Item.Clone(), coll: op.Collection, seq: seq}
		case app.OpReplace:
			if !exists {
				return fmt.Errorf("replace %s: %w", op.Item.ID, app.ErrNotFound)
			}
			cur.item = op.Item.Clone()
			staged[op.Item.ID] = cur
		case app.OpMove:
			if !exists {
				return fmt.Errorf("move %s: %w", op.Item.ID, app.ErrNotFound)
			}
			cur.item = op.Item.Clone()
			cur.coll = op.Collection
			staged[op.Item.ID] = cur
		}
	}
	s.entries = staged
	s.seq = seq
	return nil
}

// SaveMetrics caches m.
func (s *Store) SaveMetrics(_ context.Context, m domain.PerformanceMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ProductiveHours = slices.Clone(m.ProductiveHours)
	s.metrics = &m
	return nil
}

// LoadMetrics returns the cached metrics or app.ErrNotFound.
func (s *Store) LoadMetrics(_ context.Context) (domain.PerformanceMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.metrics == nil {
		return domain.PerformanceMetrics{}, app.ErrNotFound
	}
	m := *s.metrics
	m.ProductiveHours = slices.Clone(m.ProductiveHours)
	return m, nil
}

// SaveDraft replaces the saved draft.
func (s *Store) SaveDraft(_ context.Context, d domain.ScheduleItemDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Tags = slices.Clone(d.Tags)
	d.BlockedBy = slices.Clone(d.BlockedBy)
	if d.MaxPostponements != nil {
		limit := *d.MaxPostponements
		d.MaxPostponements = &limit
	}
	s.draft = &d
	return nil
}

// LoadDraft returns the saved draft or app.ErrNotFound.
func (s *Store) LoadDraft(_ context.Context) (domain.ScheduleItemDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draft == nil {
		return domain.ScheduleItemDraft{}, app.ErrNotFound
	}
	d := *s.draft
	d.Tags = slices.Clone(d.Tags)
	d.BlockedBy = slices.Clone(d.BlockedBy)
	if d.MaxPostponements != nil {
		limit := *d.MaxPostponements
		d.MaxPostponements = &limit
	}
	return d, nil
}

// ClearDraft drops the saved draft.
func (s *Store) ClearDraft(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
	return nil
}

var _ app.Store = (*Store)(nil)
