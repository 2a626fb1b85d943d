// Package main provides E2E pipeline entry point.
// Executes: valuation → cube storage → DIM aggregation → sensitivities → reporting
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"exposure-cube-lab/internal/config"
	"exposure-cube-lab/internal/daycount"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/exposure"
	"exposure-cube-lab/internal/orchestrator"
	"exposure-cube-lab/internal/portfolio"
	"exposure-cube-lab/internal/reporting"
	"exposure-cube-lab/internal/sensitivity"
	"exposure-cube-lab/internal/storage/backend"
	"exposure-cube-lab/internal/valuation"
	"exposure-cube-lab/internal/verification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	// Parse flags (env vars as defaults)
	outputDir := flag.String("output-dir", cfg.OutputDir, "Output directory for generated files")
	asofStr := flag.String("asof", "2024-01-02", "Valuation date (YYYY-MM-DD)")
	grid := flag.String("grid", "24,1M", "Date grid as <count>,<tenor>")
	portfolioIn := flag.String("portfolio", "", "Portfolio CSV (default: generate synthetic trades)")
	numTrades := flag.Int("trades", 50, "Number of synthetic trades")
	nettingSets := flag.String("netting-sets", "CPTY_A,CPTY_B", "Comma-separated netting sets for synthetic trades")
	samples := flag.Int("samples", cfg.Samples, "Monte Carlo samples")
	seed := flag.Uint64("seed", 42, "Random seed")
	volatility := flag.Float64("volatility", 100, "Absolute NPV volatility per year")
	splitSamples := flag.Bool("split-samples", false, "Partition samples instead of trades across workers")
	scenarioFile := flag.String("scenarios", "", "Scenario YAML for the sensitivity phase (optional)")
	label := flag.String("label", "exposure", "Run label")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	migrate := flag.Bool("migrate", false, "Apply database migrations before the run")
	verify := flag.Bool("verify", false, "Replay the stored cube with the other partitioning and compare")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	asof, err := time.Parse(portfolio.DateLayout, *asofStr)
	if err != nil {
		logger.Fatalf("Invalid --asof: %v", err)
	}
	dates, err := daycount.ParseGrid(asof, *grid)
	if err != nil {
		logger.Fatalf("Invalid --grid: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling pipeline...\n", sig)
		cancel()
	}()

	stores, cleanup, err := backend.Open(ctx, backend.Options{
		PostgresDSN:      *postgresDSN,
		PostgresMaxConns: cfg.PostgresMaxConns,
		ClickHouseDSN:    *clickhouseDSN,
		UseMemory:        *useMemory,
		Migrate:          *migrate,
	})
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	trades, err := loadPortfolio(*portfolioIn, *numTrades, *nettingSets, dates)
	if err != nil {
		logger.Fatalf("Load portfolio: %v", err)
	}

	depth := 1
	if cfg.CloseOutLag {
		depth = 3
	}
	interp := cfg.Interpretation()
	opts := orchestrator.Options{
		CubeStore:            stores.Cubes,
		DIMEvolutionStore:    stores.Evolution,
		DIMDistributionStore: stores.Distribution,
		SensitivityStore:     stores.Sensitivities,
		Pricer:               valuation.SyntheticPricer{Seed: *seed, Volatility: *volatility, MporDays: mporFor(cfg)},
		Valuation:            cfg.ValuationOptions(depth),
		SplitSamples:         *splitSamples,
		Aggregation: exposure.Options{
			NettingSets:    cfg.NettingSets,
			Interpretation: &interp,
			DIM:            cfg.DIMConfig(),
		},
		GridSize:             cfg.GridSize,
		CoveredStdDevs:       cfg.CoveredStdDevs,
		SensitivityThreshold: cfg.SensitivityThreshold,
		Label:                *label,
		Verbose:              *verbose,
		Logger:               logger,
	}
	if *scenarioFile != "" {
		scenarios, shiftType, err := readScenarios(*scenarioFile)
		if err != nil {
			logger.Fatalf("Read scenarios: %v", err)
		}
		opts.SensitivityPricer = valuation.NewScenarioPricer(*seed, scenarios)
		opts.Scenarios = scenarios
		opts.ShiftType = shiftType
	}

	// Phase 1-5: Run orchestrator
	fmt.Println("=== E2E Pipeline ===")
	result, err := orchestrator.New(opts).Run(ctx, orchestrator.Input{
		Asof:      asof,
		Portfolio: trades,
		Dates:     dates,
		Samples:   *samples,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Orchestrator error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Orchestrator completed:\n")
	fmt.Printf("  Run: %s\n", result.RunID)
	fmt.Printf("  Fingerprint: %s\n", result.Fingerprint)
	fmt.Printf("  Netting sets: %d\n", len(result.Aggregator.NettingSets()))
	fmt.Printf("  DIM evolution rows: %d\n", len(result.EvolutionRows))
	fmt.Printf("  DIM distribution rows: %d\n", len(result.DistributionRows))
	if result.SensitivityRunID != "" {
		fmt.Printf("  Sensitivities: %d (cross gammas: %d)\n", len(result.Sensitivities), len(result.CrossGammas))
	}
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	if *verify {
		fmt.Println("\n=== Verification ===")
		v := verification.NewCubeVerifier(stores.Cubes, opts.Pricer, trades, verification.Options{
			Valuation:    opts.Valuation,
			SplitSamples: !*splitSamples,
		})
		report, err := v.VerifyRun(ctx, result.RunID)
		if err != nil {
			logger.Fatalf("Verify run: %v", err)
		}
		fmt.Printf("  Trades: %d matched, %d divergent\n", report.MatchedTrades, report.DivergentTrades)
		fmt.Printf("  Fingerprint match: %v\n", report.FingerprintMatch)
		for _, r := range report.Results {
			if !r.Match {
				fmt.Printf("    - %s: %d cells, max diff %g\n", r.TradeID, r.Divergent, r.MaxAbsDiff)
			}
		}
		if report.DivergentTrades > 0 {
			os.Exit(1)
		}
	}

	// Phase 6: Reporting
	fmt.Println("\n=== Reporting ===")
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatalf("Create output directory: %v", err)
	}
	sensitivityRunID := result.SensitivityRunID
	if sensitivityRunID == "" {
		sensitivityRunID = result.RunID
	}
	report, err := reporting.NewGenerator(stores.Cubes, stores.Evolution, stores.Sensitivities).
		GenerateRun(ctx, result.RunID, sensitivityRunID)
	if err != nil {
		logger.Fatalf("Generate report: %v", err)
	}

	files := map[string]string{
		"REPORT.md":            reporting.RenderMarkdown(report),
		"dim_evolution.csv":    reporting.RenderDIMEvolutionCSV(result.EvolutionRows),
		"dim_distribution.csv": reporting.RenderDIMDistributionCSV(result.DistributionRows),
	}
	if result.SensitivityRunID != "" {
		files["sensitivity.csv"] = reporting.RenderSensitivityCSV(result.Sensitivities)
		files["crossgamma.csv"] = reporting.RenderCrossGammaCSV(result.CrossGammas)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(*outputDir, name), []byte(content), 0644); err != nil {
			logger.Fatalf("Write %s: %v", name, err)
		}
	}

	fmt.Println("\nE2E Pipeline completed successfully:")
	for _, name := range []string{"REPORT.md", "dim_evolution.csv", "dim_distribution.csv", "sensitivity.csv", "crossgamma.csv"} {
		if _, ok := files[name]; ok {
			fmt.Printf("  - %s/%s\n", *outputDir, name)
		}
	}
}

func mporFor(cfg config.Config) int {
	if cfg.CloseOutLag {
		return cfg.MporDays
	}
	return 0
}

func loadPortfolio(path string, n int, nettingSets string, dates []time.Time) ([]domain.TradeEnvelope, error) {
	if path == "" {
		var sets []string
		for _, s := range strings.Split(nettingSets, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sets = append(sets, s)
			}
		}
		return portfolio.Synthetic(n, sets, dates), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return portfolio.Read(f)
}

func readScenarios(path string) ([]sensitivity.Scenario, domain.ShiftType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	return sensitivity.ReadScenarioFile(f)
}
