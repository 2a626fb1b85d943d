// Package backend wires the storage implementations selected at startup.
package backend

import (
	"context"
	"fmt"
	"log"

	"exposure-cube-lab/internal/storage"
	chstore "exposure-cube-lab/internal/storage/clickhouse"
	"exposure-cube-lab/internal/storage/memory"
	"exposure-cube-lab/internal/storage/migrations"
	pgstore "exposure-cube-lab/internal/storage/postgres"
)

// Stores holds all storage implementations.
type Stores struct {
	Cubes         storage.CubeStore
	Sensitivities storage.SensitivityStore
	Evolution     storage.DIMEvolutionStore
	Distribution  storage.DIMDistributionStore
}

// Options selects the backend.
type Options struct {
	PostgresDSN   string
	ClickHouseDSN string
	UseMemory     bool
	// PostgresMaxConns caps the pool; zero keeps the pgxpool default.
	PostgresMaxConns int32
	// Migrate applies the embedded migrations before use.
	Migrate bool
}

// Open creates the stores. The returned cleanup closes any connections.
func Open(ctx context.Context, opts Options) (*Stores, func(), error) {
	if opts.UseMemory {
		stores := &Stores{
			Cubes:         memory.NewCubeStore(),
			Sensitivities: memory.NewSensitivityStore(),
			Evolution:     memory.NewDIMEvolutionStore(),
			Distribution:  memory.NewDIMDistributionStore(),
		}
		return stores, func() {}, nil
	}
	if opts.PostgresDSN == "" || opts.ClickHouseDSN == "" {
		return nil, nil, fmt.Errorf("%w: postgres and clickhouse DSNs are required without memory storage", storage.ErrInvalidInput)
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, opts.PostgresDSN, pgstore.PoolOptions{MaxConns: opts.PostgresMaxConns})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if opts.Migrate {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logApplied("postgres", applied)
	}

	// ClickHouse
	var chConn *chstore.Conn
	if opts.Migrate {
		var applied []string
		chConn, applied, err = migrations.RunClickhouseMigrations(ctx, opts.ClickHouseDSN)
		if err == nil {
			logApplied("clickhouse", applied)
		}
	} else {
		chConn, err = chstore.NewConn(ctx, opts.ClickHouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &Stores{
		// PostgreSQL stores (cube blobs + sensitivities)
		Cubes:         pgstore.NewCubeStore(pool),
		Sensitivities: pgstore.NewSensitivityStore(pool),
		// ClickHouse stores (DIM analytics)
		Evolution:    chstore.NewDIMEvolutionStore(chConn),
		Distribution: chstore.NewDIMDistributionStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

func logApplied(backend string, applied []string) {
	if len(applied) == 0 {
		log.Printf("%s schema up to date", backend)
		return
	}
	log.Printf("%s migrations applied: %v", backend, applied)
}
