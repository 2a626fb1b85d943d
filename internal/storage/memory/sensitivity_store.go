package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/storage"
)

// SensitivityStore is an in-memory implementation of storage.SensitivityStore.
type SensitivityStore struct {
	mu         sync.RWMutex
	data       map[string]*domain.SensitivityRecord // keyed by run_id|trade_id|factor
	crossGamma map[string]*domain.CrossGammaRecord  // keyed by run_id|trade_id|factor_1|factor_2
}

// NewSensitivityStore creates a new in-memory sensitivity store.
func NewSensitivityStore() *SensitivityStore {
	return &SensitivityStore{
		data:       make(map[string]*domain.SensitivityRecord),
		crossGamma: make(map[string]*domain.CrossGammaRecord),
	}
}

func sensitivityKey(r *domain.SensitivityRecord) string {
	return fmt.Sprintf("%s|%s|%s", r.RunID, r.TradeID, r.Factor)
}

func crossGammaKey(r *domain.CrossGammaRecord) string {
	return fmt.Sprintf("%s|%s|%s|%s", r.RunID, r.TradeID, r.Factor1, r.Factor2)
}

// InsertBulk adds sensitivity rows atomically. Fails entire batch on any duplicate.
func (s *SensitivityStore) InsertBulk(_ context.Context, records []*domain.SensitivityRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(records))

	for _, r := range records {
		if r == nil || r.RunID == "" || r.TradeID == "" || r.Factor == "" {
			return storage.ErrInvalidInput
		}
		key := sensitivityKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		rCopy := *r
		s.data[sensitivityKey(r)] = &rCopy
	}
	return nil
}

// InsertCrossGammaBulk adds cross-gamma rows atomically. Fails entire batch on any duplicate.
func (s *SensitivityStore) InsertCrossGammaBulk(_ context.Context, records []*domain.CrossGammaRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))

	for _, r := range records {
		if r == nil || r.RunID == "" || r.TradeID == "" || r.Factor1 == "" || r.Factor2 == "" {
			return storage.ErrInvalidInput
		}
		key := crossGammaKey(r)
		if _, exists := s.crossGamma[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		rCopy := *r
		s.crossGamma[crossGammaKey(r)] = &rCopy
	}
	return nil
}

// GetByRunID retrieves sensitivities of a run, ordered by trade_id, factor.
func (s *SensitivityStore) GetByRunID(_ context.Context, runID string) ([]*domain.SensitivityRecord, error) {
	return s.filter(func(r *domain.SensitivityRecord) bool { return r.RunID == runID }), nil
}

// GetByTradeID retrieves sensitivities of one trade in a run, ordered by factor.
func (s *SensitivityStore) GetByTradeID(_ context.Context, runID, tradeID string) ([]*domain.SensitivityRecord, error) {
	return s.filter(func(r *domain.SensitivityRecord) bool {
		return r.RunID == runID && r.TradeID == tradeID
	}), nil
}

func (s *SensitivityStore) filter(keep func(*domain.SensitivityRecord) bool) []*domain.SensitivityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SensitivityRecord
	for _, r := range s.data {
		if keep(r) {
			rCopy := *r
			result = append(result, &rCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TradeID != result[j].TradeID {
			return result[i].TradeID < result[j].TradeID
		}
		return result[i].Factor < result[j].Factor
	})
	return result
}

// GetCrossGammaByRunID retrieves cross gammas of a run, ordered by trade_id, factor_1, factor_2.
func (s *SensitivityStore) GetCrossGammaByRunID(_ context.Context, runID string) ([]*domain.CrossGammaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CrossGammaRecord
	for _, r := range s.crossGamma {
		if r.RunID == runID {
			rCopy := *r
			result = append(result, &rCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TradeID != result[j].TradeID {
			return result[i].TradeID < result[j].TradeID
		}
		if result[i].Factor1 != result[j].Factor1 {
			return result[i].Factor1 < result[j].Factor1
		}
		return result[i].Factor2 < result[j].Factor2
	})
	return result, nil
}

var _ storage.SensitivityStore = (*SensitivityStore)(nil)
