package storage

import (
	"context"

	"exposure-cube-lab/internal/domain"
)

// CubeStore provides access to serialized cube storage.
type CubeStore interface {
	// Insert adds a new cube. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, c *domain.CubeRecord) error

	// GetByRunID retrieves a cube with its payload. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.CubeRecord, error)

	// GetByFingerprint retrieves all cubes with the given payload fingerprint.
	GetByFingerprint(ctx context.Context, fingerprint string) ([]*domain.CubeRecord, error)

	// List retrieves cube metadata without payloads, ordered by created_at, run_id ASC.
	List(ctx context.Context) ([]*domain.CubeRecord, error)
}

// SensitivityStore provides access to sensitivity and cross-gamma results.
type SensitivityStore interface {
	// InsertBulk adds sensitivity rows atomically.
	// Fails entire batch on duplicate (run_id, trade_id, factor).
	InsertBulk(ctx context.Context, records []*domain.SensitivityRecord) error

	// InsertCrossGammaBulk adds cross-gamma rows atomically.
	// Fails entire batch on duplicate (run_id, trade_id, factor_1, factor_2).
	InsertCrossGammaBulk(ctx context.Context, records []*domain.CrossGammaRecord) error

	// GetByRunID retrieves sensitivities of a run, ordered by trade_id, factor ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.SensitivityRecord, error)

	// GetByTradeID retrieves sensitivities of one trade in a run, ordered by factor ASC.
	GetByTradeID(ctx context.Context, runID, tradeID string) ([]*domain.SensitivityRecord, error)

	// GetCrossGammaByRunID retrieves cross gammas of a run, ordered by trade_id, factor_1, factor_2 ASC.
	GetCrossGammaByRunID(ctx context.Context, runID string) ([]*domain.CrossGammaRecord, error)
}

// DIMEvolutionStore provides access to dim_evolution storage.
type DIMEvolutionStore interface {
	// InsertBulk adds rows atomically. Fails entire batch on duplicate (run_id, netting_set, time_step).
	InsertBulk(ctx context.Context, rows []*domain.DIMEvolutionRow) error

	// GetByRunID retrieves all rows of a run, ordered by netting_set, time_step ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.DIMEvolutionRow, error)

	// GetByNettingSet retrieves rows of one netting set, ordered by time_step ASC.
	GetByNettingSet(ctx context.Context, runID, nettingSet string) ([]*domain.DIMEvolutionRow, error)
}

// DIMDistributionStore provides access to dim_distribution storage.
type DIMDistributionStore interface {
	// InsertBulk adds rows atomically.
	// Fails entire batch on duplicate (run_id, netting_set, time_step, bound).
	InsertBulk(ctx context.Context, rows []*domain.DIMDistributionRow) error

	// GetByRunID retrieves all rows of a run, ordered by netting_set, time_step, bound ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.DIMDistributionRow, error)

	// GetByNettingSet retrieves rows of one netting set, ordered by time_step, bound ASC.
	GetByNettingSet(ctx context.Context, runID, nettingSet string) ([]*domain.DIMDistributionRow, error)
}
