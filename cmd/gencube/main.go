// Package main generates a demo cube with the synthetic pricer.
// Writes the binary cube file and the portfolio it was priced for.
package main

import (
	"bytes"
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
	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/daycount"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/portfolio"
	"exposure-cube-lab/internal/sensitivity"
	"exposure-cube-lab/internal/storage/blob"
	"exposure-cube-lab/internal/valuation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	// Parse flags (env vars as defaults)
	asofStr := flag.String("asof", time.Now().UTC().Format(portfolio.DateLayout), "Valuation date (YYYY-MM-DD)")
	grid := flag.String("grid", "24,1M", "Date grid as <count>,<tenor>")
	portfolioIn := flag.String("portfolio", "", "Portfolio CSV (default: generate synthetic trades)")
	portfolioOut := flag.String("portfolio-out", filepath.Join(cfg.OutputDir, "portfolio.csv"), "Where to write the priced portfolio")
	numTrades := flag.Int("trades", 50, "Number of synthetic trades")
	nettingSets := flag.String("netting-sets", "CPTY_A,CPTY_B", "Comma-separated netting sets for synthetic trades")
	samples := flag.Int("samples", cfg.Samples, "Monte Carlo samples")
	threads := flag.Int("threads", cfg.Threads, "Valuation workers (0 = NumCPU)")
	layout := flag.String("layout", cfg.Layout, "Cube layout (regular, jagged)")
	precision := flag.String("precision", cfg.Precision, "Cube precision (single, double)")
	policy := flag.String("failure-policy", cfg.FailurePolicy, "Pricing failure policy (fail_run, zero_fill)")
	seed := flag.Uint64("seed", 42, "Random seed")
	volatility := flag.Float64("volatility", 100, "Absolute NPV volatility per year")
	mporDays := flag.Int("mpor-days", 0, "Write close-out values and flows for this MPOR (0 = plain NPV cube)")
	splitSamples := flag.Bool("split-samples", false, "Partition samples instead of trades across workers")
	scenarioFile := flag.String("scenarios", "", "Scenario YAML; generates a sensitivity cube instead of an exposure cube")
	out := flag.String("out", filepath.Join(cfg.OutputDir, "cube.bin"), "Cube location (path or s3://bucket/key)")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[gencube] ", log.LstdFlags)

	asof, err := time.Parse(portfolio.DateLayout, *asofStr)
	if err != nil {
		logger.Fatalf("Invalid --asof: %v", err)
	}
	dates, err := daycount.ParseGrid(asof, *grid)
	if err != nil {
		logger.Fatalf("Invalid --grid: %v", err)
	}

	opts, err := valuationOptions(*threads, *layout, *precision, *policy)
	if err != nil {
		logger.Fatalf("Invalid cube options: %v", err)
	}
	opts.Logger = logger

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling...", sig)
		cancel()
	}()

	trades, err := loadPortfolio(*portfolioIn, *numTrades, *nettingSets, dates)
	if err != nil {
		logger.Fatalf("Load portfolio: %v", err)
	}

	var pricer valuation.Pricer
	if *scenarioFile != "" {
		scenarios, err := readScenarios(*scenarioFile)
		if err != nil {
			logger.Fatalf("Read scenarios: %v", err)
		}
		pricer = valuation.NewScenarioPricer(*seed, scenarios)
		*samples = len(scenarios)
		dates = dates[:1]
		opts.Cube.Layout = cube.LayoutRegular
		opts.Cube.Depth = 1
		for i := range trades {
			trades[i].Maturity = time.Time{}
		}
		logger.Printf("Sensitivity cube: %d scenarios", len(scenarios))
	} else {
		pricer = valuation.SyntheticPricer{Seed: *seed, Volatility: *volatility, MporDays: *mporDays}
		if *mporDays > 0 {
			opts.Cube.Depth = 3
		}
	}

	// Populate
	start := time.Now()
	engine := valuation.NewEngine(pricer, opts)
	var res *valuation.Result
	if *splitSamples {
		res, err = engine.RunScenarios(ctx, asof, trades, dates, *samples)
	} else {
		res, err = engine.Run(ctx, asof, trades, dates, *samples)
	}
	if err != nil {
		logger.Fatalf("Populate cube: %v", err)
	}
	logger.Printf("Populated %d trades x %d dates x %d samples in %v (%d failed)",
		res.Cube.NumIDs(), res.Cube.NumDates(), res.Cube.Samples(), time.Since(start), len(res.Failed))

	// Write cube
	loc, err := blob.ParseLocation(*out)
	if err != nil {
		logger.Fatalf("Invalid --out: %v", err)
	}
	store, err := blob.Open(ctx, loc, cfg.S3Config())
	if err != nil {
		logger.Fatalf("Open cube store: %v", err)
	}
	fp, err := blob.SaveCube(ctx, store, loc.Key, res.Cube)
	if err != nil {
		logger.Fatalf("Write cube: %v", err)
	}

	// Write portfolio
	if *portfolioIn == "" && *portfolioOut != "" {
		if err := writePortfolio(*portfolioOut, trades); err != nil {
			logger.Fatalf("Write portfolio: %v", err)
		}
		fmt.Printf("  - %s\n", *portfolioOut)
	}
	fmt.Printf("  - %s (fingerprint %s)\n", *out, fp)
}

func valuationOptions(threads int, layout, precision, policy string) (valuation.Options, error) {
	l, err := cube.ParseLayout(layout)
	if err != nil {
		return valuation.Options{}, err
	}
	p, err := cube.ParsePrecision(precision)
	if err != nil {
		return valuation.Options{}, err
	}
	fp, err := valuation.ParseFailurePolicy(policy)
	if err != nil {
		return valuation.Options{}, err
	}
	return valuation.Options{
		Threads: threads,
		Cube:    cube.Config{Layout: l, Precision: p, Depth: 1},
		Policy:  fp,
	}, nil
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

func readScenarios(path string) ([]sensitivity.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scenarios, _, err := sensitivity.ReadScenarioFile(f)
	return scenarios, err
}

func writePortfolio(path string, trades []domain.TradeEnvelope) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := portfolio.Write(&buf, trades); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
