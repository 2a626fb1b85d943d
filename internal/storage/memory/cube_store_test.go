package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/storage"
)

func testCube(runID, fingerprint string, created time.Time) *domain.CubeRecord {
	return &domain.CubeRecord{
		RunID:       runID,
		Label:       "exposure",
		Fingerprint: fingerprint,
		Asof:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Layout:      "regular",
		Precision:   "double",
		NumIDs:      3,
		NumDates:    4,
		Samples:     10,
		Depth:       1,
		Payload:     []byte{'X', 'C', 'U', 'B', 1},
		CreatedAt:   created,
	}
}

func TestCubeStore_InsertAndGet(t *testing.T) {
	store := NewCubeStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	rec := testCube("run-1", "fp1", now)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the caller's payload must not affect the stored copy
	rec.Payload[0] = 'Z'

	got, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if got.Payload[0] != 'X' {
		t.Errorf("Payload aliased with caller: got %q", got.Payload)
	}
	if got.NumIDs != 3 || got.Samples != 10 {
		t.Errorf("Shape mismatch: got %d ids, %d samples", got.NumIDs, got.Samples)
	}
}

func TestCubeStore_DuplicateAndNotFound(t *testing.T) {
	store := NewCubeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testCube("run-1", "fp1", time.Now())); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, testCube("run-1", "fp2", time.Now())); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByRunID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	empty := testCube("run-2", "fp", time.Now())
	empty.Payload = nil
	if err := store.Insert(ctx, empty); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestCubeStore_ListAndFingerprint(t *testing.T) {
	store := NewCubeStore()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	for _, rec := range []*domain.CubeRecord{
		testCube("run-c", "same", t0.Add(2*time.Hour)),
		testCube("run-a", "same", t0),
		testCube("run-b", "other", t0.Add(time.Hour)),
	} {
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 cubes, got %d", len(list))
	}
	for i, want := range []string{"run-a", "run-b", "run-c"} {
		if list[i].RunID != want {
			t.Errorf("List[%d] = %s, want %s", i, list[i].RunID, want)
		}
		if list[i].Payload != nil {
			t.Errorf("List[%d] should not carry payload", i)
		}
	}

	same, err := store.GetByFingerprint(ctx, "same")
	if err != nil {
		t.Fatalf("GetByFingerprint failed: %v", err)
	}
	if len(same) != 2 || same[0].RunID != "run-a" || same[1].RunID != "run-c" {
		t.Errorf("GetByFingerprint returned unexpected cubes: %+v", same)
	}
}
