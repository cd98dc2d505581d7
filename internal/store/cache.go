package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bloodcell-ai-server/internal/domain"
)

// CachedStore wraps a Store with an LRU cache over report lookups.
// Results are read repeatedly while a client polls, asks for explanations
// and follow-ups; the cache keeps those hot reads off the database.
// Writes that change a report update or invalidate its entry.
type CachedStore struct {
	inner domain.Store
	cache *lru.Cache[string, *domain.AnalysisReport]
}

// NewCachedStore wraps the store with a report cache of the given capacity.
func NewCachedStore(inner domain.Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, *domain.AnalysisReport](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create report cache: %w", err)
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

func (s *CachedStore) SaveReport(ctx context.Context, report *domain.AnalysisReport) error {
	if err := s.inner.SaveReport(ctx, report); err != nil {
		return err
	}
	s.cache.Add(report.AnalysisID, report)
	return nil
}

func (s *CachedStore) GetReport(ctx context.Context, analysisID string) (*domain.AnalysisReport, error) {
	if report, ok := s.cache.Get(analysisID); ok {
		return report, nil
	}

	report, err := s.inner.GetReport(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if report != nil {
		s.cache.Add(analysisID, report)
	}
	return report, nil
}

func (s *CachedStore) UpdateExplanation(ctx context.Context, analysisID, explanation string) error {
	if err := s.inner.UpdateExplanation(ctx, analysisID, explanation); err != nil {
		return err
	}
	// Drop the stale entry; the next read refills it.
	s.cache.Remove(analysisID)
	return nil
}

func (s *CachedStore) AppendFollowUp(ctx context.Context, analysisID, question, answer string) error {
	return s.inner.AppendFollowUp(ctx, analysisID, question, answer)
}

func (s *CachedStore) ListFollowUps(ctx context.Context, analysisID string) ([]domain.FollowUp, error) {
	return s.inner.ListFollowUps(ctx, analysisID)
}

func (s *CachedStore) RecentAnalyses(ctx context.Context, limit int) ([]domain.AnalysisSummary, error) {
	return s.inner.RecentAnalyses(ctx, limit)
}

func (s *CachedStore) DeleteAnalysis(ctx context.Context, analysisID string) error {
	if err := s.inner.DeleteAnalysis(ctx, analysisID); err != nil {
		return err
	}
	s.cache.Remove(analysisID)
	return nil
}

func (s *CachedStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return s.inner.Stats(ctx)
}

func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}
