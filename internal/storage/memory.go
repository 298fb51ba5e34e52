package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"bioevo/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	stats       map[string][]model.GenerationStats
	hallOfFame  map[string][]model.HallOfFameEntry
	patterns    map[string]model.PatternRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.stats = make(map[string][]model.GenerationStats)
	s.hallOfFame = make(map[string][]model.HallOfFameEntry)
	s.patterns = make(map[string]model.PatternRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
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

// ListRuns returns runs newest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sortRuns(out)
	return out, nil
}

func (s *MemoryStore) SaveGenerationStats(_ context.Context, runID string, stats []model.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.stats[runID] = append([]model.GenerationStats(nil), stats...)
	return nil
}

func (s *MemoryStore) GetGenerationStats(_ context.Context, runID string) ([]model.GenerationStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.stats[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationStats(nil), stats...), true, nil
}

func (s *MemoryStore) SaveHallOfFame(_ context.Context, runID string, entries []model.HallOfFameEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.hallOfFame[runID] = append([]model.HallOfFameEntry(nil), entries...)
	return nil
}

func (s *MemoryStore) GetHallOfFame(_ context.Context, runID string) ([]model.HallOfFameEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.hallOfFame[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.HallOfFameEntry(nil), entries...), true, nil
}

func (s *MemoryStore) SavePattern(_ context.Context, record model.PatternRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	if err := record.Pattern.Validate(); err != nil {
		return err
	}

	record.Pattern = record.Pattern.Clone()
	s.patterns[record.Name] = record
	return nil
}

func (s *MemoryStore) GetPattern(_ context.Context, name string) (model.PatternRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.patterns[name]
	if !ok {
		return model.PatternRecord{}, false, nil
	}
	record.Pattern = record.Pattern.Clone()
	return record, true, nil
}

var errNotInitialized = errors.New("store is not initialized")

func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
}
