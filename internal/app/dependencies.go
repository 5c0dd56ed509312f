package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/evanschultz/cadence/internal/domain"
)

// located pairs an item with the collection it was found in.
type located struct {
	item domain.ScheduleItem
	coll domain.Collection
}

// lookupFunc resolves an id to its stored item; ok is false when the id is unknown.
type lookupFunc func(id string) (located, bool, error)

// unresolvedBlockers returns the blockedBy ids that still hold the item.
// Completed blockers are resolved wherever they live, unknown ids count as resolved,
// and soft-deleted blockers still hold.
func unresolvedBlockers(item domain.ScheduleItem, lookup lookupFunc) ([]string, error) {
	var out []string
	for _, id := range item.BlockedBy {
		found, ok, err := lookup(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if found.coll == domain.CollectionDeleted || !found.item.Completed {
			out = append(out, id)
		}
	}
	return out, nil
}

// storeLookup resolves ids through the store one at a time.
func (s *Service) storeLookup(ctx context.Context) lookupFunc {
	return func(id string) (located, bool, error) {
		item, coll, err := s.store.GetItem(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return located{}, false, nil
		}
		if err != nil {
			return located{}, false, err
		}
		return located{item: item, coll: coll}, true, nil
	}
}

// ensureUnblocked fails with BlockedError while any blocker is unresolved.
func (s *Service) ensureUnblocked(ctx context.Context, item domain.ScheduleItem) error {
	ids, err := unresolvedBlockers(item, s.storeLookup(ctx))
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return &domain.BlockedError{ItemID: item.ID, BlockerIDs: ids}
	}
	return nil
}

// blockerEdges validates newly added blockers and returns the ops that keep the
// reverse blocking lists in sync with itemID's blockedBy list.
func (s *Service) blockerEdges(ctx context.Context, itemID string, prev, next []string) ([]Op, error) {
	var (
		ops        []Op
		violations []domain.Violation
	)
	for _, id := range next {
		if slices.Contains(prev, id) {
			continue
		}
		blocker, coll, err := s.store.GetItem(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			violations = append(violations, domain.Violation{Field: "blocked_by", Message: fmt.Sprintf("unknown item %s", id)})
			continue
		case err != nil:
			return nil, err
		case coll == domain.CollectionDeleted:
			violations = append(violations, domain.Violation{Field: "blocked_by", Message: fmt.Sprintf("item %s is deleted", id)})
			continue
		}
		blocker.AddBlocking(itemID)
		ops = append(ops, Replace(blocker))
	}
	if err := domain.NewValidationError(violations); err != nil {
		return nil, err
	}
	for _, id := range prev {
		if slices.Contains(next, id) {
			continue
		}
		blocker, _, err := s.store.GetItem(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		blocker.RemoveBlocking(itemID)
		ops = append(ops, Replace(blocker))
	}
	return ops, nil
}

// ensureAcyclic rejects a blockedBy list that would let itemID transitively wait on itself.
func (s *Service) ensureAcyclic(ctx context.Context, itemID string, blockedBy []string) error {
	lookup := s.storeLookup(ctx)
	seen := map[string]struct{}{}
	stack := append([]string(nil), blockedBy...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == itemID {
			return domain.NewValidationError([]domain.Violation{{Field: "blocked_by", Message: "would create a dependency cycle"}})
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		found, ok, err := lookup(id)
		if err != nil {
			return err
		}
		if ok {
			stack = append(stack, found.item.BlockedBy...)
		}
	}
	return nil
}
