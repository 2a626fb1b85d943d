// Package main computes trade sensitivities from a stored sensitivity cube.
// Outputs sensitivity.csv, crossgamma.csv and scenario.csv.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"exposure-cube-lab/internal/config"
	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/idhash"
	"exposure-cube-lab/internal/observability"
	"exposure-cube-lab/internal/reporting"
	"exposure-cube-lab/internal/sensitivity"
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
	cubeRef := flag.String("cube", filepath.Join(cfg.OutputDir, "sensitivity.bin"), "Sensitivity cube location (path or s3://bucket/key)")
	scenarioPath := flag.String("scenarios", "scenarios.yaml", "Scenario YAML describing the cube's samples")
	outputDir := flag.String("output-dir", cfg.OutputDir, "Output directory for CSV files")
	label := flag.String("label", "sensitivity", "Run label")
	threshold := flag.Float64("threshold", cfg.SensitivityThreshold, "Omit rows with values within threshold of zero")
	persist := flag.Bool("persist", false, "Store sensitivity rows")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage with --persist")
	flag.Parse()

	logger := log.New(os.Stdout, "[sensi] ", log.LstdFlags)
	ctx := context.Background()

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

	f, err := os.Open(*scenarioPath)
	if err != nil {
		logger.Fatalf("Open scenarios: %v", err)
	}
	scenarios, shiftType, err := sensitivity.ReadScenarioFile(f)
	f.Close()
	if err != nil {
		logger.Fatalf("Read scenarios: %v", err)
	}

	index, err := sensitivity.New(c, scenarios, shiftType)
	if err != nil {
		logger.Fatalf("Index scenarios: %v", err)
	}
	observability.RecordScenariosIndexed(len(scenarios))
	logger.Printf("Indexed cube %s: %d trades, %d scenarios, %d risk factors",
		fp, c.NumIDs(), len(scenarios), len(index.RelevantRiskFactors()))

	layout, precision := cube.Describe(c)
	runID := idhash.ComputeRunID(c.Asof(), *label, string(layout), string(precision))
	sensitivities := index.SensitivityReport(runID, *threshold)
	crossGammas := index.CrossGammaReport(runID, *threshold)
	scenarioRows := index.ScenarioReport(*threshold)

	// Write reports
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatalf("Create output directory: %v", err)
	}
	files := []struct {
		name    string
		content string
		rows    int
	}{
		{"sensitivity.csv", reporting.RenderSensitivityCSV(sensitivities), len(sensitivities)},
		{"crossgamma.csv", reporting.RenderCrossGammaCSV(crossGammas), len(crossGammas)},
		{"scenario.csv", reporting.RenderScenarioCSV(scenarioRows), len(scenarioRows)},
	}
	for _, file := range files {
		if err := os.WriteFile(filepath.Join(*outputDir, file.name), []byte(file.content), 0644); err != nil {
			logger.Fatalf("Write %s: %v", file.name, err)
		}
		observability.RecordReportRows(file.name, file.rows)
	}

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
		if err := persistRows(ctx, stores.Sensitivities, sensitivities, crossGammas); err != nil {
			logger.Fatalf("Persist sensitivities: %v", err)
		}
		logger.Printf("Stored %d sensitivities and %d cross gammas for run %s", len(sensitivities), len(crossGammas), runID)
	}

	fmt.Println("Sensitivity reports generated:")
	for _, file := range files {
		fmt.Printf("  - %s/%s (%d rows)\n", *outputDir, file.name, file.rows)
	}
}

func persistRows(ctx context.Context, s storage.SensitivityStore, sensitivities []domain.SensitivityRecord, crossGammas []domain.CrossGammaRecord) error {
	sensPtrs := make([]*domain.SensitivityRecord, len(sensitivities))
	for i := range sensitivities {
		sensPtrs[i] = &sensitivities[i]
	}
	cgPtrs := make([]*domain.CrossGammaRecord, len(crossGammas))
	for i := range crossGammas {
		cgPtrs[i] = &crossGammas[i]
	}
	if err := s.InsertBulk(ctx, sensPtrs); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return err
	}
	if err := s.InsertCrossGammaBulk(ctx, cgPtrs); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return err
	}
	return nil
}
