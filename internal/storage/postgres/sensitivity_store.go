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

// SensitivityStore implements storage.SensitivityStore using PostgreSQL.
type SensitivityStore struct {
	pool *Pool
}

// NewSensitivityStore creates a new SensitivityStore.
func NewSensitivityStore(pool *Pool) *SensitivityStore {
	return &SensitivityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SensitivityStore = (*SensitivityStore)(nil)

// InsertBulk adds sensitivity rows atomically. Fails entire batch on any duplicate.
func (s *SensitivityStore) InsertBulk(ctx context.Context, records []*domain.SensitivityRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.RunID == "" || r.TradeID == "" || r.Factor == "" {
			return storage.ErrInvalidInput
		}
	}
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO sensitivities (
			run_id, trade_id, factor,
			shift_size, base_npv, delta, gamma, has_gamma
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8
		)
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query,
			r.RunID, r.TradeID, r.Factor,
			r.ShiftSize, r.BaseNPV, r.Delta, r.Gamma, r.HasGamma,
		)
	}
	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			observability.RecordDBQuery("postgres", "insert_sensitivities", time.Since(start).Seconds(), err)
			return writeError("insert sensitivity in bulk", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	observability.RecordDBQuery("postgres", "insert_sensitivities", time.Since(start).Seconds(), nil)
	return nil
}

// InsertCrossGammaBulk adds cross-gamma rows atomically using COPY.
// Fails entire batch on any duplicate.
func (s *SensitivityStore) InsertCrossGammaBulk(ctx context.Context, records []*domain.CrossGammaRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]any, len(records))
	for i, r := range records {
		if r == nil || r.RunID == "" || r.TradeID == "" || r.Factor1 == "" || r.Factor2 == "" {
			return storage.ErrInvalidInput
		}
		rows[i] = []any{
			r.RunID, r.TradeID,
			r.Factor1, r.ShiftSize1, r.Factor2, r.ShiftSize2,
			r.BaseNPV, r.CrossGamma,
		}
	}
	start := time.Now()

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"cross_gammas"},
		[]string{
			"run_id", "trade_id",
			"factor_1", "shift_size_1", "factor_2", "shift_size_2",
			"base_npv", "cross_gamma",
		},
		pgx.CopyFromRows(rows),
	)
	observability.RecordDBQuery("postgres", "copy_cross_gammas", time.Since(start).Seconds(), err)
	if err != nil {
		return writeError("copy cross gammas", err)
	}
	return nil
}

// GetByRunID retrieves sensitivities of a run, ordered by trade_id, factor.
func (s *SensitivityStore) GetByRunID(ctx context.Context, runID string) ([]*domain.SensitivityRecord, error) {
	query := `
		SELECT
			run_id, trade_id, factor,
			shift_size, base_npv, delta, gamma, has_gamma
		FROM sensitivities
		WHERE run_id = $1
		ORDER BY trade_id ASC, factor ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get sensitivities by run id: %w", err)
	}
	defer rows.Close()

	return scanSensitivities(rows)
}

// GetByTradeID retrieves sensitivities of one trade in a run, ordered by factor.
func (s *SensitivityStore) GetByTradeID(ctx context.Context, runID, tradeID string) ([]*domain.SensitivityRecord, error) {
	query := `
		SELECT
			run_id, trade_id, factor,
			shift_size, base_npv, delta, gamma, has_gamma
		FROM sensitivities
		WHERE run_id = $1 AND trade_id = $2
		ORDER BY factor ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, tradeID)
	if err != nil {
		return nil, fmt.Errorf("get sensitivities by trade id: %w", err)
	}
	defer rows.Close()

	return scanSensitivities(rows)
}

// GetCrossGammaByRunID retrieves cross gammas of a run, ordered by trade_id, factor_1, factor_2.
func (s *SensitivityStore) GetCrossGammaByRunID(ctx context.Context, runID string) ([]*domain.CrossGammaRecord, error) {
	query := `
		SELECT
			run_id, trade_id,
			factor_1, shift_size_1, factor_2, shift_size_2,
			base_npv, cross_gamma
		FROM cross_gammas
		WHERE run_id = $1
		ORDER BY trade_id ASC, factor_1 ASC, factor_2 ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get cross gammas by run id: %w", err)
	}
	defer rows.Close()

	var result []*domain.CrossGammaRecord
	for rows.Next() {
		var r domain.CrossGammaRecord
		err := rows.Scan(
			&r.RunID, &r.TradeID,
			&r.Factor1, &r.ShiftSize1, &r.Factor2, &r.ShiftSize2,
			&r.BaseNPV, &r.CrossGamma,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cross gamma row: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cross gamma rows: %w", err)
	}
	return result, nil
}

// scanSensitivities scans multiple rows into a slice.
func scanSensitivities(rows pgx.Rows) ([]*domain.SensitivityRecord, error) {
	var result []*domain.SensitivityRecord
	for rows.Next() {
		var r domain.SensitivityRecord
		err := rows.Scan(
			&r.RunID, &r.TradeID, &r.Factor,
			&r.ShiftSize, &r.BaseNPV, &r.Delta, &r.Gamma, &r.HasGamma,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sensitivity row: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensitivity rows: %w", err)
	}
	return result, nil
}
