package memory

import (
	"context"
	"sort"
	"sync"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/storage"
)

// CubeStore is an in-memory implementation of storage.CubeStore.
type CubeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CubeRecord // keyed by run_id
}

// NewCubeStore creates a new in-memory cube store.
func NewCubeStore() *CubeStore {
	return &CubeStore{
		data: make(map[string]*domain.CubeRecord),
	}
}

// copyRecord returns a deep copy; payload bytes are not shared with callers.
func copyRecord(c *domain.CubeRecord, withPayload bool) *domain.CubeRecord {
	cp := *c
	cp.Payload = nil
	if withPayload && c.Payload != nil {
		cp.Payload = append([]byte(nil), c.Payload...)
	}
	return &cp
}

// Insert adds a new cube. Returns ErrDuplicateKey if run_id exists.
func (s *CubeStore) Insert(_ context.Context, c *domain.CubeRecord) error {
	if c == nil || c.RunID == "" || len(c.Payload) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[c.RunID] = copyRecord(c, true)
	return nil
}

// GetByRunID retrieves a cube with its payload. Returns ErrNotFound if not exists.
func (s *CubeStore) GetByRunID(_ context.Context, runID string) (*domain.CubeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(c, true), nil
}

// GetByFingerprint retrieves all cubes with the given payload fingerprint.
func (s *CubeStore) GetByFingerprint(_ context.Context, fingerprint string) ([]*domain.CubeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CubeRecord
	for _, c := range s.data {
		if c.Fingerprint == fingerprint {
			result = append(result, copyRecord(c, true))
		}
	}
	sortCubes(result)
	return result, nil
}

// List retrieves cube metadata without payloads.
func (s *CubeStore) List(_ context.Context) ([]*domain.CubeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CubeRecord, 0, len(s.data))
	for _, c := range s.data {
		result = append(result, copyRecord(c, false))
	}
	sortCubes(result)
	return result, nil
}

// sortCubes orders by created_at, then run_id.
func sortCubes(result []*domain.CubeRecord) {
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})
}

var _ storage.CubeStore = (*CubeStore)(nil)
