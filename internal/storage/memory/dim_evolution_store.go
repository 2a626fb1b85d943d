package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/storage"
)

// DIMEvolutionStore is an in-memory implementation of storage.DIMEvolutionStore.
type DIMEvolutionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DIMEvolutionRow // keyed by run_id|netting_set|time_step
}

// NewDIMEvolutionStore creates a new in-memory DIM evolution store.
func NewDIMEvolutionStore() *DIMEvolutionStore {
	return &DIMEvolutionStore{
		data: make(map[string]*domain.DIMEvolutionRow),
	}
}

func evolutionKey(r *domain.DIMEvolutionRow) string {
	return fmt.Sprintf("%s|%s|%d", r.RunID, r.NettingSet, r.TimeStep)
}

// InsertBulk adds rows atomically. Fails entire batch on any duplicate.
func (s *DIMEvolutionStore) InsertBulk(_ context.Context, rows []*domain.DIMEvolutionRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))

	for _, r := range rows {
		if r == nil || r.RunID == "" || r.NettingSet == "" || r.TimeStep < 0 {
			return storage.ErrInvalidInput
		}
		key := evolutionKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		rCopy := *r
		s.data[evolutionKey(r)] = &rCopy
	}
	return nil
}

// GetByRunID retrieves all rows of a run, ordered by netting_set, time_step.
func (s *DIMEvolutionStore) GetByRunID(_ context.Context, runID string) ([]*domain.DIMEvolutionRow, error) {
	return s.filter(runID, ""), nil
}

// GetByNettingSet retrieves rows of one netting set, ordered by time_step.
func (s *DIMEvolutionStore) GetByNettingSet(_ context.Context, runID, nettingSet string) ([]*domain.DIMEvolutionRow, error) {
	return s.filter(runID, nettingSet), nil
}

func (s *DIMEvolutionStore) filter(runID, nettingSet string) []*domain.DIMEvolutionRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DIMEvolutionRow
	for _, r := range s.data {
		if r.RunID == runID && (nettingSet == "" || r.NettingSet == nettingSet) {
			rCopy := *r
			result = append(result, &rCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].NettingSet != result[j].NettingSet {
			return result[i].NettingSet < result[j].NettingSet
		}
		return result[i].TimeStep < result[j].TimeStep
	})
	return result
}

var _ storage.DIMEvolutionStore = (*DIMEvolutionStore)(nil)
