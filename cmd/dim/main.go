// Package main computes DIM profiles from a stored cube and portfolio.
// Outputs dim_evolution.csv and dim_distribution.csv; --persist also writes
// the rows to the configured stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"exposure-cube-lab/internal/config"
	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/exposure"
	"exposure-cube-lab/internal/idhash"
	"exposure-cube-lab/internal/observability"
	"exposure-cube-lab/internal/portfolio"
	"exposure-cube-lab/internal/reporting"
	"exposure-cube-lab/internal/storage"
	"exposure-cube-lab/internal/storage/backend"
	"exposure-cube-lab/internal/storage/blob"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	// Parse flags (env vars as defaults)
	cubeRef := flag.String("cube", filepath.Join(cfg.OutputDir, "cube.bin"), "Cube location (path or s3://bucket/key)")
	portfolioPath := flag.String("portfolio", filepath.Join(cfg.OutputDir, "portfolio.csv"), "Portfolio CSV")
	outputDir := flag.String("output-dir", cfg.OutputDir, "Output directory for CSV files")
	label := flag.String("label", "exposure", "Run label")
	quantile := flag.Float64("quantile", cfg.Quantile, "DIM confidence level")
	horizon := flag.Int("horizon-days", cfg.HorizonDays, "DIM horizon in calendar days")
	order := flag.Int("regression-order", cfg.RegressionOrder, "Polynomial regression order")
	closeOutLag := flag.Bool("close-out-lag", cfg.CloseOutLag, "Read close-out values and flows from depths 1 and 2")
	mporDays := flag.Int("mpor-days", cfg.MporDays, "MPOR in calendar days for --close-out-lag")
	gridSize := flag.Int("grid-size", cfg.GridSize, "Distribution buckets")
	stdDevs := flag.Float64("covered-std-devs", cfg.CoveredStdDevs, "Distribution width in standard deviations")
	nettingSets := flag.String("netting-sets", strings.Join(cfg.NettingSets, ","), "Comma-separated netting sets in report order (default: all, sorted)")
	persist := flag.Bool("persist", false, "Store DIM rows")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage with --persist")
	flag.Parse()

	logger := log.New(os.Stdout, "[dim] ", log.LstdFlags)
	ctx := context.Background()

	cfg.Quantile, cfg.HorizonDays, cfg.RegressionOrder = *quantile, *horizon, *order
	cfg.CloseOutLag, cfg.MporDays = *closeOutLag, *mporDays
	cfg.GridSize, cfg.CoveredStdDevs = *gridSize, *stdDevs
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid settings: %v", err)
	}

	// Load inputs
	loc, err := blob.ParseLocation(*cubeRef)
	if err != nil {
		logger.Fatalf("Invalid --cube: %v", err)
	}
	store, err := blob.Open(ctx, loc, cfg.S3Config())
	if err != nil {
		logger.Fatalf("Open cube store: %v", err)
	}
	c, fp, err := blob.LoadCube(ctx, store, loc.Key)
	if err != nil {
		logger.Fatalf("Load cube: %v", err)
	}
	trades, err := readPortfolio(*portfolioPath)
	if err != nil {
		logger.Fatalf("Read portfolio: %v", err)
	}
	logger.Printf("Loaded cube %s: %d trades x %d dates x %d samples", fp, c.NumIDs(), c.NumDates(), c.Samples())

	// Aggregate
	start := time.Now()
	interp := cfg.Interpretation()
	agg, err := exposure.Aggregate(c, trades, exposure.Options{
		NettingSets:    splitList(*nettingSets),
		Interpretation: &interp,
		DIM:            cfg.DIMConfig(),
		Logger:         logger,
	})
	if err != nil {
		logger.Fatalf("Aggregate: %v", err)
	}
	observability.RecordNettingSets(len(agg.NettingSets()))

	layout, precision := cube.Describe(c)
	runID := idhash.ComputeRunID(c.Asof(), *label, string(layout), string(precision))
	evolution, err := agg.DimEvolution(runID)
	if err != nil {
		logger.Fatalf("DIM evolution: %v", err)
	}
	distribution, err := agg.DimDistribution(runID, cfg.GridSize, cfg.CoveredStdDevs)
	if err != nil {
		logger.Fatalf("DIM distribution: %v", err)
	}
	logger.Printf("Computed DIM for %d netting sets in %v", len(agg.NettingSets()), time.Since(start))

	// Write reports
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatalf("Create output directory: %v", err)
	}
	files := map[string]string{
		"dim_evolution.csv":    reporting.RenderDIMEvolutionCSV(evolution),
		"dim_distribution.csv": reporting.RenderDIMDistributionCSV(distribution),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(*outputDir, name), []byte(content), 0644); err != nil {
			logger.Fatalf("Write %s: %v", name, err)
		}
	}
	observability.RecordReportRows("dim_evolution", len(evolution))
	observability.RecordReportRows("dim_distribution", len(distribution))

	if *persist {
		stores, cleanup, err := backend.Open(ctx, backend.Options{
			PostgresDSN:      *postgresDSN,
			PostgresMaxConns: cfg.PostgresMaxConns,
			ClickHouseDSN:    *clickhouseDSN,
			UseMemory:        *useMemory,
		})
		if err != nil {
			logger.Fatalf("Failed to create stores: %v", err)
		}
		defer cleanup()
		if err := persistRows(ctx, stores, evolution, distribution); err != nil {
			logger.Fatalf("Persist DIM rows: %v", err)
		}
		logger.Printf("Stored %d evolution and %d distribution rows for run %s", len(evolution), len(distribution), runID)
	}

	fmt.Println("DIM reports generated:")
	fmt.Printf("  - %s/dim_evolution.csv\n", *outputDir)
	fmt.Printf("  - %s/dim_distribution.csv\n", *outputDir)
}

func readPortfolio(path string) ([]domain.TradeEnvelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return portfolio.Read(f)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func persistRows(ctx context.Context, stores *backend.Stores, evolution []domain.DIMEvolutionRow, distribution []domain.DIMDistributionRow) error {
	evoPtrs := make([]*domain.DIMEvolutionRow, len(evolution))
	for i := range evolution {
		evoPtrs[i] = &evolution[i]
	}
	distPtrs := make([]*domain.DIMDistributionRow, len(distribution))
	for i := range distribution {
		distPtrs[i] = &distribution[i]
	}
	if err := stores.Evolution.InsertBulk(ctx, evoPtrs); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return err
	}
	if err := stores.Distribution.InsertBulk(ctx, distPtrs); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return err
	}
	return nil
}
