package app

import (
	"context"
	"errors"

	"github.com/evanschultz/cadence/internal/domain"
)

// GetPerformanceMetrics returns the cached metrics, computing them when nothing is cached yet.
func (s *Service) GetPerformanceMetrics(ctx context.Context) (domain.PerformanceMetrics, error) {
	m, err := s.store.LoadMetrics(ctx)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.PerformanceMetrics{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeMetrics(ctx)
}

// recomputeMetrics derives metrics over active items plus the completed archive and caches them.
func (s *Service) recomputeMetrics(ctx context.Context) (domain.PerformanceMetrics, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return domain.PerformanceMetrics{}, err
	}
	items := append(all[domain.CollectionActive], all[domain.CollectionCompleted]...)
	m := domain.ComputeMetrics(items, s.clock(), domain.MetricsOptions{StreakWindowDays: s.cfg.StreakWindowDays})
	if err := s.store.SaveMetrics(ctx, m); err != nil {
		return domain.PerformanceMetrics{}, err
	}
	return m, nil
}

// refreshMetrics recomputes after a committed mutation. The cache is recomputable, so failures are only logged.
func (s *Service) refreshMetrics(ctx context.Context) {
	if _, err := s.recomputeMetrics(ctx); err != nil {
		s.logger.Error("metrics refresh failed", "err", err)
	}
}
