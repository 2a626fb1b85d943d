package clickhouse

import (
	"context"
	"fmt"
	"time"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/observability"
	"exposure-cube-lab/internal/storage"
)

// DIMEvolutionStore implements storage.DIMEvolutionStore using ClickHouse.
type DIMEvolutionStore struct {
	conn *Conn
}

// NewDIMEvolutionStore creates a new DIMEvolutionStore.
func NewDIMEvolutionStore(conn *Conn) *DIMEvolutionStore {
	return &DIMEvolutionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DIMEvolutionStore = (*DIMEvolutionStore)(nil)

// InsertBulk adds rows atomically. Fails entire batch on any duplicate.
func (s *DIMEvolutionStore) InsertBulk(ctx context.Context, rows []*domain.DIMEvolutionRow) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.NettingSet == "" || r.TimeStep < 0 {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%s|%d", r.RunID, r.NettingSet, r.TimeStep)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	// Check for duplicates against existing rows (ReplacingMergeTree would replace them)
	existing, err := s.existingKeys(ctx, rows)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, r := range rows {
		if _, dup := existing[fmt.Sprintf("%s|%s|%d", r.RunID, r.NettingSet, r.TimeStep)]; dup {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO dim_evolution (
			run_id, netting_set, time_step, value_date,
			days_in_period, average_dim, average_flow, year_fraction
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.RunID, r.NettingSet, int64(r.TimeStep), r.Date,
			int64(r.DaysInPeriod), r.AverageDIM, r.AverageFlow, r.Time,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_dim_evolution", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves all rows of a run, ordered by netting_set, time_step.
func (s *DIMEvolutionStore) GetByRunID(ctx context.Context, runID string) ([]*domain.DIMEvolutionRow, error) {
	query := `
		SELECT
			run_id, netting_set, time_step, value_date,
			days_in_period, average_dim, average_flow, year_fraction
		FROM dim_evolution FINAL
		WHERE run_id = ?
		ORDER BY netting_set ASC, time_step ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanEvolutionRows(rows)
}

// GetByNettingSet retrieves rows of one netting set, ordered by time_step.
func (s *DIMEvolutionStore) GetByNettingSet(ctx context.Context, runID, nettingSet string) ([]*domain.DIMEvolutionRow, error) {
	query := `
		SELECT
			run_id, netting_set, time_step, value_date,
			days_in_period, average_dim, average_flow, year_fraction
		FROM dim_evolution FINAL
		WHERE run_id = ? AND netting_set = ?
		ORDER BY time_step ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, nettingSet)
	if err != nil {
		return nil, fmt.Errorf("query by netting set: %w", err)
	}
	defer rows.Close()

	return scanEvolutionRows(rows)
}

// existingKeys returns the keys already stored for the runs in rows.
func (s *DIMEvolutionStore) existingKeys(ctx context.Context, rows []*domain.DIMEvolutionRow) (map[string]struct{}, error) {
	runs := make(map[string]struct{})
	for _, r := range rows {
		runs[r.RunID] = struct{}{}
	}

	keys := make(map[string]struct{})
	for runID := range runs {
		res, err := s.conn.Query(ctx, `
			SELECT netting_set, time_step FROM dim_evolution FINAL
			WHERE run_id = ?
		`, runID)
		if err != nil {
			return nil, err
		}
		for res.Next() {
			var ns string
			var step int64
			if err := res.Scan(&ns, &step); err != nil {
				res.Close()
				return nil, err
			}
			keys[fmt.Sprintf("%s|%s|%d", runID, ns, step)] = struct{}{}
		}
		err = res.Err()
		res.Close()
		if err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// scanEvolutionRows scans multiple rows into a slice.
func scanEvolutionRows(rows chRows) ([]*domain.DIMEvolutionRow, error) {
	var result []*domain.DIMEvolutionRow

	for rows.Next() {
		var r domain.DIMEvolutionRow
		var step, days int64
		err := rows.Scan(
			&r.RunID, &r.NettingSet, &step, &r.Date,
			&days, &r.AverageDIM, &r.AverageFlow, &r.Time,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dim evolution row: %w", err)
		}
		r.TimeStep = int(step)
		r.DaysInPeriod = int(days)
		r.Date = r.Date.UTC()
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dim evolution rows: %w", err)
	}

	return result, nil
}
