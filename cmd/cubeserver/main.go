// Package main provides the exposure service that runs components together:
// - Pipeline (scheduled): valuation → cube storage → DIM → sensitivities
// - Reporting (after each run): REPORT.md and DIM CSVs
// - HTTP: health, metrics, status and stored cube metadata
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"exposure-cube-lab/internal/config"
	"exposure-cube-lab/internal/daycount"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/exposure"
	"exposure-cube-lab/internal/observability"
	"exposure-cube-lab/internal/orchestrator"
	"exposure-cube-lab/internal/portfolio"
	"exposure-cube-lab/internal/reporting"
	"exposure-cube-lab/internal/sensitivity"
	"exposure-cube-lab/internal/storage"
	"exposure-cube-lab/internal/storage/backend"
	"exposure-cube-lab/internal/valuation"
)

// Server holds all components of the exposure service.
type Server struct {
	// Configuration
	cfg              config.Config
	outputDir        string
	portfolioPath    string
	grid             string
	numTrades        int
	nettingSets      []string
	scenarios        []sensitivity.Scenario
	shiftType        domain.ShiftType
	pipelineInterval time.Duration

	// Stores
	stores *backend.Stores
	logger *log.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastPipelineRun time.Time
	lastRunID       string
	pipelineRunning bool
	pipelineRuns    int
	pipelineErrors  int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	migrate := flag.Bool("migrate", false, "Apply database migrations on startup")
	outputDir := flag.String("output-dir", cfg.OutputDir, "Output directory for reports")
	portfolioPath := flag.String("portfolio", "", "Portfolio CSV (default: generate synthetic trades)")
	grid := flag.String("grid", "24,1M", "Date grid as <count>,<tenor>")
	numTrades := flag.Int("trades", 50, "Number of synthetic trades")
	nettingSets := flag.String("netting-sets", "CPTY_A,CPTY_B", "Comma-separated netting sets for synthetic trades")
	scenarioFile := flag.String("scenarios", "", "Scenario YAML for the sensitivity phase (optional)")
	pipelineInterval := flag.Duration("pipeline-interval", 1*time.Hour, "Pipeline run interval")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "HTTP address for health, metrics and cube endpoints")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
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

	server := &Server{
		cfg:              cfg,
		outputDir:        *outputDir,
		portfolioPath:    *portfolioPath,
		grid:             *grid,
		numTrades:        *numTrades,
		nettingSets:      splitList(*nettingSets),
		pipelineInterval: *pipelineInterval,
		stores:           stores,
		logger:           logger,
		started:          time.Now(),
	}
	if *scenarioFile != "" {
		f, err := os.Open(*scenarioFile)
		if err != nil {
			logger.Fatalf("Open scenarios: %v", err)
		}
		server.scenarios, server.shiftType, err = sensitivity.ReadScenarioFile(f)
		f.Close()
		if err != nil {
			logger.Fatalf("Read scenarios: %v", err)
		}
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*metricsAddr)

	err = server.runPipelineScheduler(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
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

// runPipelineScheduler runs the pipeline on schedule.
func (s *Server) runPipelineScheduler(ctx context.Context) error {
	s.logger.Printf("Starting pipeline scheduler (interval: %v)...", s.pipelineInterval)

	// Run immediately on start
	s.runPipeline(ctx, time.Now().UTC())

	ticker := time.NewTicker(s.pipelineInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.runPipeline(ctx, now.UTC())
		}
	}
}

// runPipeline values the portfolio as of now's date and writes the reports.
func (s *Server) runPipeline(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if s.pipelineRunning {
		s.mu.Unlock()
		s.logger.Println("Pipeline already running, skipping...")
		return
	}
	s.pipelineRunning = true
	s.mu.Unlock()

	var runID string
	var runErr error
	defer func() {
		s.mu.Lock()
		s.pipelineRunning = false
		s.lastPipelineRun = time.Now()
		s.pipelineRuns++
		if runErr != nil {
			s.pipelineErrors++
		} else {
			s.lastRunID = runID
		}
		s.mu.Unlock()
	}()

	s.logger.Println("Running pipeline...")
	start := time.Now()
	runID, runErr = s.pipeline(ctx, now)
	if runErr != nil {
		s.logger.Printf("Pipeline error: %v", runErr)
		return
	}
	s.logger.Printf("Pipeline completed in %v: run %s, reports in %s/", time.Since(start), runID, s.outputDir)
}

func (s *Server) pipeline(ctx context.Context, now time.Time) (string, error) {
	asof := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dates, err := daycount.ParseGrid(asof, s.grid)
	if err != nil {
		return "", err
	}
	trades, err := s.portfolio(dates)
	if err != nil {
		return "", fmt.Errorf("load portfolio: %w", err)
	}

	depth, mporDays := 1, 0
	if s.cfg.CloseOutLag {
		depth, mporDays = 3, s.cfg.MporDays
	}
	interp := s.cfg.Interpretation()
	opts := orchestrator.Options{
		CubeStore:            s.stores.Cubes,
		DIMEvolutionStore:    s.stores.Evolution,
		DIMDistributionStore: s.stores.Distribution,
		SensitivityStore:     s.stores.Sensitivities,
		Pricer:               valuation.SyntheticPricer{Seed: uint64(asof.Unix()), Volatility: 100, MporDays: mporDays},
		Valuation:            s.cfg.ValuationOptions(depth),
		Aggregation: exposure.Options{
			NettingSets:    s.cfg.NettingSets,
			Interpretation: &interp,
			DIM:            s.cfg.DIMConfig(),
		},
		GridSize:             s.cfg.GridSize,
		CoveredStdDevs:       s.cfg.CoveredStdDevs,
		SensitivityThreshold: s.cfg.SensitivityThreshold,
		Verbose:              true,
		Logger:               log.New(os.Stdout, "[orchestrator] ", log.LstdFlags),
	}
	if len(s.scenarios) > 0 {
		opts.SensitivityPricer = valuation.NewScenarioPricer(uint64(asof.Unix()), s.scenarios)
		opts.Scenarios = s.scenarios
		opts.ShiftType = s.shiftType
	}

	result, err := orchestrator.New(opts).Run(ctx, orchestrator.Input{
		Asof:      asof,
		Portfolio: trades,
		Dates:     dates,
		Samples:   s.cfg.Samples,
	})
	if err != nil {
		return "", err
	}

	sensitivityRunID := result.SensitivityRunID
	if sensitivityRunID == "" {
		sensitivityRunID = result.RunID
	}
	report, err := reporting.NewGenerator(s.stores.Cubes, s.stores.Evolution, s.stores.Sensitivities).
		GenerateRun(ctx, result.RunID, sensitivityRunID)
	if err != nil {
		return "", fmt.Errorf("generate report: %w", err)
	}
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", err
	}
	files := map[string]string{
		"REPORT.md":            reporting.RenderMarkdown(report),
		"dim_evolution.csv":    reporting.RenderDIMEvolutionCSV(result.EvolutionRows),
		"dim_distribution.csv": reporting.RenderDIMDistributionCSV(result.DistributionRows),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(s.outputDir, name), []byte(content), 0644); err != nil {
			return "", err
		}
	}
	return result.RunID, nil
}

func (s *Server) portfolio(dates []time.Time) ([]domain.TradeEnvelope, error) {
	if s.portfolioPath == "" {
		return portfolio.Synthetic(s.numTrades, s.nettingSets, dates), nil
	}
	f, err := os.Open(s.portfolioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return portfolio.Read(f)
}

// routes returns the HTTP handler for health/metrics/status/cubes.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("GET /status", s.handleStatus)

	// Stored cubes
	mux.HandleFunc("GET /cubes", s.handleCubes)
	mux.HandleFunc("GET /cubes/{runID}", s.handleCube)
	mux.HandleFunc("GET /cubes/{runID}/dim", s.handleCubeDIM)

	return mux
}

// startHTTPServer starts the HTTP server.
func (s *Server) startHTTPServer(addr string) {
	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, s.routes()); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	LastPipelineRun time.Time `json:"last_pipeline_run,omitempty"`
	LastRunID       string    `json:"last_run_id,omitempty"`
	PipelineRuns    int       `json:"pipeline_runs"`
	PipelineErrors  int       `json:"pipeline_errors"`
	PipelineRunning bool      `json:"pipeline_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		LastPipelineRun: s.lastPipelineRun,
		LastRunID:       s.lastRunID,
		PipelineRuns:    s.pipelineRuns,
		PipelineErrors:  s.pipelineErrors,
		PipelineRunning: s.pipelineRunning,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// CubeResponse is the JSON form of stored cube metadata.
type CubeResponse struct {
	RunID       string    `json:"run_id"`
	Label       string    `json:"label"`
	Fingerprint string    `json:"fingerprint"`
	Asof        string    `json:"asof"`
	Layout      string    `json:"layout"`
	Precision   string    `json:"precision"`
	NumIDs      int       `json:"num_ids"`
	NumDates    int       `json:"num_dates"`
	Samples     int       `json:"samples"`
	Depth       int       `json:"depth"`
	SizeBytes   int       `json:"size_bytes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func cubeResponse(c *domain.CubeRecord) CubeResponse {
	return CubeResponse{
		RunID:       c.RunID,
		Label:       c.Label,
		Fingerprint: c.Fingerprint,
		Asof:        c.Asof.Format(portfolio.DateLayout),
		Layout:      c.Layout,
		Precision:   c.Precision,
		NumIDs:      c.NumIDs,
		NumDates:    c.NumDates,
		Samples:     c.Samples,
		Depth:       c.Depth,
		SizeBytes:   len(c.Payload),
		CreatedAt:   c.CreatedAt,
	}
}

// handleCubes lists stored cubes without payloads.
func (s *Server) handleCubes(w http.ResponseWriter, r *http.Request) {
	cubes, err := s.stores.Cubes.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]CubeResponse, len(cubes))
	for i, c := range cubes {
		resp[i] = cubeResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCube returns the metadata of one stored cube.
func (s *Server) handleCube(w http.ResponseWriter, r *http.Request) {
	c, err := s.stores.Cubes.GetByRunID(r.Context(), r.PathValue("runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cubeResponse(c))
}

// handleCubeDIM returns the DIM evolution of a run, optionally filtered by
// the netting_set query parameter.
func (s *Server) handleCubeDIM(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	var (
		rows []*domain.DIMEvolutionRow
		err  error
	)
	if ns := r.URL.Query().Get("netting_set"); ns != "" {
		rows, err = s.stores.Evolution.GetByNettingSet(r.Context(), runID, ns)
	} else {
		rows, err = s.stores.Evolution.GetByRunID(r.Context(), runID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	out := make([]domain.DIMEvolutionRow, len(rows))
	for i, row := range rows {
		out[i] = *row
	}
	w.Write([]byte(reporting.RenderDIMEvolutionCSV(out)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
