package clickhouse

import (
	"context"
	"fmt"
	"time"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/observability"
	"exposure-cube-lab/internal/storage"
)

// DIMDistributionStore implements storage.DIMDistributionStore using ClickHouse.
type DIMDistributionStore struct {
	conn *Conn
}

// NewDIMDistributionStore creates a new DIMDistributionStore.
func NewDIMDistributionStore(conn *Conn) *DIMDistributionStore {
	return &DIMDistributionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DIMDistributionStore = (*DIMDistributionStore)(nil)

func distributionKey(runID, nettingSet string, step int64) string {
	return fmt.Sprintf("%s|%s|%d", runID, nettingSet, step)
}

// InsertBulk adds rows atomically. Fails entire batch on any duplicate.
// A (run, netting set, time step) histogram is written once: a batch may not
// add buckets to a step that is already stored.
func (s *DIMDistributionStore) InsertBulk(ctx context.Context, rows []*domain.DIMDistributionRow) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()

	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.NettingSet == "" || r.TimeStep < 0 || r.Count < 0 {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%g", distributionKey(r.RunID, r.NettingSet, int64(r.TimeStep)), r.Bound)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	checked := make(map[string]struct{})
	for _, r := range rows {
		step := distributionKey(r.RunID, r.NettingSet, int64(r.TimeStep))
		if _, ok := checked[step]; ok {
			continue
		}
		checked[step] = struct{}{}
		exists, err := s.stepExists(ctx, r.RunID, r.NettingSet, r.TimeStep)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO dim_distribution (
			run_id, netting_set, time_step, value_date,
			bound, sample_count
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.RunID, r.NettingSet, int64(r.TimeStep), r.Date,
			r.Bound, int64(r.Count),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_dim_distribution", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves all rows of a run, ordered by netting_set, time_step, bound.
func (s *DIMDistributionStore) GetByRunID(ctx context.Context, runID string) ([]*domain.DIMDistributionRow, error) {
	query := `
		SELECT run_id, netting_set, time_step, value_date, bound, sample_count
		FROM dim_distribution FINAL
		WHERE run_id = ?
		ORDER BY netting_set ASC, time_step ASC, bound ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanDistributionRows(rows)
}

// GetByNettingSet retrieves rows of one netting set, ordered by time_step, bound.
func (s *DIMDistributionStore) GetByNettingSet(ctx context.Context, runID, nettingSet string) ([]*domain.DIMDistributionRow, error) {
	query := `
		SELECT run_id, netting_set, time_step, value_date, bound, sample_count
		FROM dim_distribution FINAL
		WHERE run_id = ? AND netting_set = ?
		ORDER BY time_step ASC, bound ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, nettingSet)
	if err != nil {
		return nil, fmt.Errorf("query by netting set: %w", err)
	}
	defer rows.Close()

	return scanDistributionRows(rows)
}

// stepExists checks if any bucket of the histogram is already stored.
func (s *DIMDistributionStore) stepExists(ctx context.Context, runID, nettingSet string, step int) (bool, error) {
	query := `
		SELECT count(*) FROM dim_distribution FINAL
		WHERE run_id = ? AND netting_set = ? AND time_step = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID, nettingSet, int64(step)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanDistributionRows scans multiple rows into a slice.
func scanDistributionRows(rows chRows) ([]*domain.DIMDistributionRow, error) {
	var result []*domain.DIMDistributionRow

	for rows.Next() {
		var r domain.DIMDistributionRow
		var step, count int64
		if err := rows.Scan(&r.RunID, &r.NettingSet, &step, &r.Date, &r.Bound, &count); err != nil {
			return nil, fmt.Errorf("scan dim distribution row: %w", err)
		}
		r.TimeStep = int(step)
		r.Count = int(count)
		r.Date = r.Date.UTC()
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dim distribution rows: %w", err)
	}

	return result, nil
}
