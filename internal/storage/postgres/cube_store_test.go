package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/idhash"
	"exposure-cube-lab/internal/storage"
)

func encodedCube(t *testing.T) ([]byte, cube.Cube) {
	t.Helper()
	asof := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{asof.AddDate(0, 3, 0), asof.AddDate(0, 6, 0)}
	ids, err := cube.NewIDIndex([]string{"T1", "T2"})
	require.NoError(t, err)
	c, err := cube.NewRegular[float64](asof, ids, dates, 3, 1)
	require.NoError(t, err)
	require.NoError(t, c.SetT0(42, 0, 0))
	require.NoError(t, c.Set(-7.25, 1, 1, 2, 0))

	payload, err := cube.Marshal(c)
	require.NoError(t, err)
	return payload, c
}

func TestCubeStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCubeStore(pool)
	ctx := context.Background()

	payload, c := encodedCube(t)
	rec := &domain.CubeRecord{
		RunID:       idhash.ComputeRunID(c.Asof(), "exposure", "regular", "double"),
		Label:       "exposure",
		Fingerprint: idhash.CubeFingerprint(payload),
		Asof:        c.Asof(),
		Layout:      "regular",
		Precision:   "double",
		NumIDs:      c.NumIDs(),
		NumDates:    c.NumDates(),
		Samples:     c.Samples(),
		Depth:       c.Depth(),
		Payload:     payload,
		CreatedAt:   time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByRunID(ctx, rec.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec.Payload, got.Payload)
	assert.True(t, rec.Asof.Equal(got.Asof))
	assert.Equal(t, rec.Fingerprint, got.Fingerprint)
	assert.True(t, idhash.VerifyFingerprint(got.Payload, got.Fingerprint))

	decoded, err := cube.Unmarshal(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, 42.0, decoded.GetT0(0, 0))
	assert.Equal(t, -7.25, decoded.Get(1, 1, 2, 0))

	err = store.Insert(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	bad := *rec
	bad.RunID = "unknown-layout"
	bad.Layout = "sparse"
	assert.ErrorIs(t, store.Insert(ctx, &bad), storage.ErrInvalidInput)

	_, err = store.GetByRunID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCubeStore_ListAndFingerprint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCubeStore(pool)
	ctx := context.Background()
	payload, c := encodedCube(t)
	fp := idhash.CubeFingerprint(payload)
	t0 := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	for i, label := range []string{"eod", "intraday"} {
		require.NoError(t, store.Insert(ctx, &domain.CubeRecord{
			RunID:       idhash.ComputeRunID(c.Asof(), label, "regular", "double"),
			Label:       label,
			Fingerprint: fp,
			Asof:        c.Asof(),
			Layout:      "regular",
			Precision:   "double",
			NumIDs:      2,
			NumDates:    2,
			Samples:     3,
			Depth:       1,
			Payload:     payload,
			CreatedAt:   t0.Add(time.Duration(i) * time.Hour),
		}))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "eod", list[0].Label)
	assert.Nil(t, list[0].Payload)

	same, err := store.GetByFingerprint(ctx, fp)
	require.NoError(t, err)
	assert.Len(t, same, 2)
}
