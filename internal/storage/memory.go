package storage

import (
	"context"
	"errors"
	"sync"

	"evocosm/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	generations map[string][]model.GenerationStats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.generations = make(map[string][]model.GenerationStats)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortNewestFirst(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) SaveGenerationStats(_ context.Context, runID string, stats []model.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	copied := make([]model.GenerationStats, len(stats))
	copy(copied, stats)
	s.generations[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationStats(_ context.Context, runID string) ([]model.GenerationStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.generations[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationStats, len(stats))
	copy(copied, stats)
	return copied, true, nil
}
