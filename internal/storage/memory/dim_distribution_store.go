package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/storage"
)

// DIMDistributionStore is an in-memory implementation of storage.DIMDistributionStore.
type DIMDistributionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DIMDistributionRow // keyed by run_id|netting_set|time_step|bound
}

// NewDIMDistributionStore creates a new in-memory DIM distribution store.
func NewDIMDistributionStore() *DIMDistributionStore {
	return &DIMDistributionStore{
		data: make(map[string]*domain.DIMDistributionRow),
	}
}

func distributionKey(r *domain.DIMDistributionRow) string {
	return fmt.Sprintf("%s|%s|%d|%g", r.RunID, r.NettingSet, r.TimeStep, r.Bound)
}

// InsertBulk adds rows atomically. Fails entire batch on any duplicate.
func (s *DIMDistributionStore) InsertBulk(_ context.Context, rows []*domain.DIMDistributionRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))

	for _, r := range rows {
		if r == nil || r.RunID == "" || r.NettingSet == "" || r.TimeStep < 0 || r.Count < 0 {
			return storage.ErrInvalidInput
		}
		key := distributionKey(r)
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
		s.data[distributionKey(r)] = &rCopy
	}
	return nil
}

// GetByRunID retrieves all rows of a run, ordered by netting_set, time_step, bound.
func (s *DIMDistributionStore) GetByRunID(_ context.Context, runID string) ([]*domain.DIMDistributionRow, error) {
	return s.filter(runID, ""), nil
}

// GetByNettingSet retrieves rows of one netting set, ordered by time_step, bound.
func (s *DIMDistributionStore) GetByNettingSet(_ context.Context, runID, nettingSet string) ([]*domain.DIMDistributionRow, error) {
	return s.filter(runID, nettingSet), nil
}

func (s *DIMDistributionStore) filter(runID, nettingSet string) []*domain.DIMDistributionRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DIMDistributionRow
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
		if result[i].TimeStep != result[j].TimeStep {
			return result[i].TimeStep < result[j].TimeStep
		}
		return result[i].Bound < result[j].Bound
	})
	return result
}

var _ storage.DIMDistributionStore = (*DIMDistributionStore)(nil)
