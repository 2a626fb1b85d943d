package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/observability"
	"exposure-cube-lab/internal/storage"
)

// CubeStore implements storage.CubeStore using PostgreSQL.
type CubeStore struct {
	pool *Pool
}

// NewCubeStore creates a new CubeStore.
func NewCubeStore(pool *Pool) *CubeStore {
	return &CubeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CubeStore = (*CubeStore)(nil)

// Insert adds a new cube. Returns ErrDuplicateKey if run_id exists.
func (s *CubeStore) Insert(ctx context.Context, c *domain.CubeRecord) error {
	if c == nil || c.RunID == "" || len(c.Payload) == 0 {
		return storage.ErrInvalidInput
	}
	start := time.Now()

	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	query := `
		INSERT INTO cubes (
			run_id, label, fingerprint, asof,
			layout, value_precision,
			num_ids, num_dates, samples, depth,
			payload, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10,
			$11, $12
		)
	`

	_, err := s.pool.Exec(ctx, query,
		c.RunID, c.Label, c.Fingerprint, c.Asof,
		c.Layout, c.Precision,
		c.NumIDs, c.NumDates, c.Samples, c.Depth,
		c.Payload, created,
	)
	observability.RecordDBQuery("postgres", "insert_cube", time.Since(start).Seconds(), err)
	if err != nil {
		return writeError("insert cube", err)
	}
	return nil
}

// GetByRunID retrieves a cube with its payload. Returns ErrNotFound if not exists.
func (s *CubeStore) GetByRunID(ctx context.Context, runID string) (*domain.CubeRecord, error) {
	query := `
		SELECT
			run_id, label, fingerprint, asof,
			layout, value_precision,
			num_ids, num_dates, samples, depth,
			payload, created_at
		FROM cubes
		WHERE run_id = $1
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, runID)
	c, err := scanCube(row, true)
	observability.RecordDBQuery("postgres", "get_cube", time.Since(start).Seconds(), err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cube by run id: %w", err)
	}
	return c, nil
}

// GetByFingerprint retrieves all cubes with the given payload fingerprint.
func (s *CubeStore) GetByFingerprint(ctx context.Context, fingerprint string) ([]*domain.CubeRecord, error) {
	query := `
		SELECT
			run_id, label, fingerprint, asof,
			layout, value_precision,
			num_ids, num_dates, samples, depth,
			payload, created_at
		FROM cubes
		WHERE fingerprint = $1
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("get cubes by fingerprint: %w", err)
	}
	defer rows.Close()

	return scanCubes(rows, true)
}

// List retrieves cube metadata without payloads.
func (s *CubeStore) List(ctx context.Context) ([]*domain.CubeRecord, error) {
	query := `
		SELECT
			run_id, label, fingerprint, asof,
			layout, value_precision,
			num_ids, num_dates, samples, depth,
			created_at
		FROM cubes
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cubes: %w", err)
	}
	defer rows.Close()

	return scanCubes(rows, false)
}

// scanCube scans a single row. Payload is expected before created_at when withPayload is set.
func scanCube(row pgx.Row, withPayload bool) (*domain.CubeRecord, error) {
	var c domain.CubeRecord
	dest := []any{
		&c.RunID, &c.Label, &c.Fingerprint, &c.Asof,
		&c.Layout, &c.Precision,
		&c.NumIDs, &c.NumDates, &c.Samples, &c.Depth,
	}
	if withPayload {
		dest = append(dest, &c.Payload)
	}
	dest = append(dest, &c.CreatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.Asof = c.Asof.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// scanCubes scans multiple rows into a slice.
func scanCubes(rows pgx.Rows, withPayload bool) ([]*domain.CubeRecord, error) {
	var result []*domain.CubeRecord
	for rows.Next() {
		c, err := scanCube(rows, withPayload)
		if err != nil {
			return nil, fmt.Errorf("scan cube row: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cube rows: %w", err)
	}
	return result, nil
}
