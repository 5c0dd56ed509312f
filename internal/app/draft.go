package app

import (
	"context"

	"github.com/evanschultz/cadence/internal/domain"
)

// SaveDraft stores the in-progress creation draft. Drafts are not validated until submitted.
func (s *Service) SaveDraft(ctx context.Context, draft domain.ScheduleItemDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SaveDraft(ctx, draft)
}

// LoadDraft returns the saved draft, or ErrNotFound.
func (s *Service) LoadDraft(ctx context.Context) (domain.ScheduleItemDraft, error) {
	return s.store.LoadDraft(ctx)
}

// DiscardDraft drops the saved draft. Discarding with no draft saved is a no-op.
func (s *Service) DiscardDraft(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ClearDraft(ctx)
}

// CreateFromDraft submits the saved draft through CreateItem and clears it on success.
// A rejected draft stays saved so the caller can fix it.
func (s *Service) CreateFromDraft(ctx context.Context) (domain.ScheduleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.store.LoadDraft(ctx)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	item, err := s.createItem(ctx, draft)
	if err != nil {
		return domain.ScheduleItem{}, err
	}
	if err := s.store.ClearDraft(ctx); err != nil {
		s.logger.Warn("clear draft failed", "item_id", item.ID, "err", err)
	}
	return item, nil
}
