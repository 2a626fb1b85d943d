// Package orchestrator runs the exposure pipeline end to end.
// It coordinates: valuation → cube storage → DIM aggregation → sensitivities
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/exposure"
	"exposure-cube-lab/internal/idhash"
	"exposure-cube-lab/internal/observability"
	"exposure-cube-lab/internal/sensitivity"
	"exposure-cube-lab/internal/storage"
	"exposure-cube-lab/internal/valuation"
)

// Default distribution grid.
const (
	DefaultGridSize       = 50
	DefaultCoveredStdDevs = 5.0
)

// ErrNoPricer is returned when a phase needs a pricer that was not configured.
var ErrNoPricer = errors.New("no pricer configured")

// Orchestrator coordinates the pipeline execution.
// Flow: valuation → cube storage → aggregation → DIM export → sensitivities
type Orchestrator struct {
	// Stores
	cubeStore         storage.CubeStore
	evolutionStore    storage.DIMEvolutionStore
	distributionStore storage.DIMDistributionStore
	sensitivityStore  storage.SensitivityStore

	// Valuation
	pricer            valuation.Pricer
	sensitivityPricer valuation.Pricer
	valuation         valuation.Options
	splitSamples      bool

	// Aggregation
	aggregation    exposure.Options
	gridSize       int
	coveredStdDevs float64

	// Sensitivities
	scenarios []sensitivity.Scenario
	shiftType domain.ShiftType
	threshold float64

	// Options
	label   string
	verbose bool
	logger  *log.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Stores. DIM and sensitivity stores are optional; a nil store skips
	// persistence of that phase's rows.
	CubeStore            storage.CubeStore
	DIMEvolutionStore    storage.DIMEvolutionStore
	DIMDistributionStore storage.DIMDistributionStore
	SensitivityStore     storage.SensitivityStore

	// Pricer fills the exposure cube.
	Pricer    valuation.Pricer
	Valuation valuation.Options
	// SplitSamples partitions the sample axis across workers instead of the
	// portfolio.
	SplitSamples bool

	Aggregation    exposure.Options
	GridSize       int     // Default: DefaultGridSize
	CoveredStdDevs float64 // Default: DefaultCoveredStdDevs

	// SensitivityPricer fills a cube with one sample per scenario. The
	// sensitivity phase runs only when both it and Scenarios are set.
	SensitivityPricer    valuation.Pricer
	Scenarios            []sensitivity.Scenario
	ShiftType            domain.ShiftType // Default: domain.ShiftAbsolute
	SensitivityThreshold float64

	Label   string // Default: "exposure"
	Verbose bool
	Logger  *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.GridSize <= 0 {
		opts.GridSize = DefaultGridSize
	}
	if opts.CoveredStdDevs <= 0 {
		opts.CoveredStdDevs = DefaultCoveredStdDevs
	}
	if opts.ShiftType == "" {
		opts.ShiftType = domain.ShiftAbsolute
	}
	if opts.Label == "" {
		opts.Label = "exposure"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Valuation.Logger == nil {
		opts.Valuation.Logger = opts.Logger
	}
	if opts.Aggregation.Logger == nil {
		opts.Aggregation.Logger = opts.Logger
	}
	return &Orchestrator{
		cubeStore:         opts.CubeStore,
		evolutionStore:    opts.DIMEvolutionStore,
		distributionStore: opts.DIMDistributionStore,
		sensitivityStore:  opts.SensitivityStore,
		pricer:            opts.Pricer,
		sensitivityPricer: opts.SensitivityPricer,
		valuation:         opts.Valuation,
		splitSamples:      opts.SplitSamples,
		aggregation:       opts.Aggregation,
		gridSize:          opts.GridSize,
		coveredStdDevs:    opts.CoveredStdDevs,
		scenarios:         opts.Scenarios,
		shiftType:         opts.ShiftType,
		threshold:         opts.SensitivityThreshold,
		label:             opts.Label,
		verbose:           opts.Verbose,
		logger:            opts.Logger,
	}
}

// Input describes one pipeline run.
type Input struct {
	Asof      time.Time
	Portfolio []domain.TradeEnvelope
	Dates     []time.Time
	Samples   int
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunID       string
	Fingerprint string
	Cube        cube.Cube
	Aggregator  *exposure.Aggregator

	FailedTrades     []string
	EvolutionRows    []domain.DIMEvolutionRow
	DistributionRows []domain.DIMDistributionRow

	SensitivityRunID string
	Sensitivities    []domain.SensitivityRecord
	CrossGammas      []domain.CrossGammaRecord

	CubeStored bool
	Errors     []string
}

// Run executes the full pipeline.
// Phases:
//  1. Populate the exposure cube
//  2. Serialize and store it
//  3. Aggregate netting sets and compute DIM
//  4. Export and store DIM evolution and distribution
//  5. Populate the sensitivity cube and store its reports (optional)
func (o *Orchestrator) Run(ctx context.Context, in Input) (*RunResult, error) {
	if o.pricer == nil {
		return nil, ErrNoPricer
	}
	start := time.Now()
	result := &RunResult{}

	// Phase 1: Population
	o.log("Phase 1: Populating cube (%d trades, %d dates, %d samples)...", len(in.Portfolio), len(in.Dates), in.Samples)
	populated, err := o.populate(ctx, in)
	if err != nil {
		observability.RecordPipelineRun("population", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("phase 1 (population) failed: %w", err)
	}
	result.Cube = populated.Cube
	result.FailedTrades = populated.Failed
	for _, id := range populated.Failed {
		result.Errors = append(result.Errors, fmt.Sprintf("trade %s zero-filled", id))
	}
	observability.RecordPipelineRun("population", "ok", time.Since(start).Seconds())
	o.log("  Populated %d trades (%d failed)", result.Cube.NumIDs(), len(populated.Failed))

	// Phase 2: Storage
	o.log("Phase 2: Storing cube...")
	rec, stored, err := o.storeCube(ctx, in.Asof, o.label, result.Cube)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (store cube) failed: %w", err)
	}
	result.RunID = rec.RunID
	result.Fingerprint = rec.Fingerprint
	result.CubeStored = stored
	o.log("  Run %s, fingerprint %s (%d bytes)", rec.RunID, rec.Fingerprint, len(rec.Payload))

	// Phase 3: Aggregation
	o.log("Phase 3: Aggregating netting sets...")
	phase := time.Now()
	agg, err := exposure.Aggregate(result.Cube, in.Portfolio, o.aggregation)
	if err != nil {
		observability.RecordPipelineRun("aggregation", "error", time.Since(phase).Seconds())
		return nil, fmt.Errorf("phase 3 (aggregation) failed: %w", err)
	}
	result.Aggregator = agg
	observability.RecordNettingSets(len(agg.NettingSets()))
	observability.RecordPipelineRun("aggregation", "ok", time.Since(phase).Seconds())
	o.log("  Aggregated %d netting sets", len(agg.NettingSets()))

	// Phase 4: DIM export
	o.log("Phase 4: Exporting DIM...")
	if err := o.exportDIM(ctx, agg, result); err != nil {
		return nil, fmt.Errorf("phase 4 (dim export) failed: %w", err)
	}
	o.log("  Exported %d evolution rows, %d distribution rows", len(result.EvolutionRows), len(result.DistributionRows))

	// Phase 5: Sensitivities
	if o.sensitivityPricer != nil && len(o.scenarios) > 0 {
		o.log("Phase 5: Computing sensitivities over %d scenarios...", len(o.scenarios))
		if err := o.runSensitivities(ctx, in, result); err != nil {
			return nil, fmt.Errorf("phase 5 (sensitivities) failed: %w", err)
		}
		o.log("  Created %d sensitivity rows, %d cross gamma rows", len(result.Sensitivities), len(result.CrossGammas))
	} else {
		o.log("Phase 5: Skipping sensitivities (no scenarios)")
	}

	observability.RecordPipelineRun("total", "ok", time.Since(start).Seconds())
	observability.RecordPipelineSuccess(time.Now().Unix())
	o.log("Pipeline completed: run %s, %d netting sets, %d errors", result.RunID, len(agg.NettingSets()), len(result.Errors))

	return result, nil
}

func (o *Orchestrator) populate(ctx context.Context, in Input) (*valuation.Result, error) {
	engine := valuation.NewEngine(o.pricer, o.valuation)
	if o.splitSamples {
		return engine.RunScenarios(ctx, in.Asof, in.Portfolio, in.Dates, in.Samples)
	}
	return engine.Run(ctx, in.Asof, in.Portfolio, in.Dates, in.Samples)
}

// storeCube encodes c and inserts it under a deterministic run id. A cube
// already stored under that id is kept; the bool reports whether c was inserted.
func (o *Orchestrator) storeCube(ctx context.Context, asof time.Time, label string, c cube.Cube) (*domain.CubeRecord, bool, error) {
	payload, err := cube.Marshal(c)
	if err != nil {
		return nil, false, err
	}
	layout, precision := cube.Describe(c)
	observability.RecordCubeSize(string(layout), string(precision), c.NumIDs()*c.NumDates()*c.Samples()*c.Depth(), len(payload))

	rec := &domain.CubeRecord{
		RunID:       idhash.ComputeRunID(asof, label, string(layout), string(precision)),
		Label:       label,
		Fingerprint: idhash.CubeFingerprint(payload),
		Asof:        asof,
		Layout:      string(layout),
		Precision:   string(precision),
		NumIDs:      c.NumIDs(),
		NumDates:    c.NumDates(),
		Samples:     c.Samples(),
		Depth:       c.Depth(),
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	if o.cubeStore == nil {
		return rec, false, nil
	}
	if err := o.cubeStore.Insert(ctx, rec); err != nil {
		// Skip duplicate key errors (already stored)
		if errors.Is(err, storage.ErrDuplicateKey) {
			o.log("  Cube %s already stored", rec.RunID)
			return rec, false, nil
		}
		return nil, false, err
	}
	return rec, true, nil
}

func (o *Orchestrator) exportDIM(ctx context.Context, agg *exposure.Aggregator, result *RunResult) error {
	evolution, err := agg.DimEvolution(result.RunID)
	if err != nil {
		return err
	}
	distribution, err := agg.DimDistribution(result.RunID, o.gridSize, o.coveredStdDevs)
	if err != nil {
		return err
	}
	result.EvolutionRows = evolution
	result.DistributionRows = distribution
	observability.RecordReportRows("dim_evolution", len(evolution))
	observability.RecordReportRows("dim_distribution", len(distribution))

	if o.evolutionStore != nil && len(evolution) > 0 {
		rows := make([]*domain.DIMEvolutionRow, len(evolution))
		for i := range evolution {
			rows[i] = &evolution[i]
		}
		if err := o.evolutionStore.InsertBulk(ctx, rows); err != nil {
			// Skip duplicate key errors (already exported)
			if !errors.Is(err, storage.ErrDuplicateKey) {
				return fmt.Errorf("store dim evolution: %w", err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("dim evolution for run %s already stored", result.RunID))
		}
	}
	if o.distributionStore != nil && len(distribution) > 0 {
		rows := make([]*domain.DIMDistributionRow, len(distribution))
		for i := range distribution {
			rows[i] = &distribution[i]
		}
		if err := o.distributionStore.InsertBulk(ctx, rows); err != nil {
			if !errors.Is(err, storage.ErrDuplicateKey) {
				return fmt.Errorf("store dim distribution: %w", err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("dim distribution for run %s already stored", result.RunID))
		}
	}
	return nil
}

func (o *Orchestrator) runSensitivities(ctx context.Context, in Input, result *RunResult) error {
	if len(in.Dates) == 0 {
		return fmt.Errorf("%w: sensitivity cube needs a valuation date", sensitivity.ErrInvalidInput)
	}

	// Scenario NPVs live on the first grid date at depth 0; trades are
	// never truncated by maturity, so the sensitivity cube is regular.
	opts := o.valuation
	opts.Cube.Layout = cube.LayoutRegular
	opts.Cube.Depth = 1
	opts.Cube.Calculator = nil
	portfolio := make([]domain.TradeEnvelope, len(in.Portfolio))
	for i, t := range in.Portfolio {
		t.Maturity = time.Time{}
		portfolio[i] = t
	}

	engine := valuation.NewEngine(o.sensitivityPricer, opts)
	res, err := engine.Run(ctx, in.Asof, portfolio, in.Dates[:1], len(o.scenarios))
	if err != nil {
		return err
	}

	label := o.label + "/sensitivity"
	rec, _, err := o.storeCube(ctx, in.Asof, label, res.Cube)
	if err != nil {
		return err
	}
	result.SensitivityRunID = rec.RunID

	index, err := sensitivity.New(res.Cube, o.scenarios, o.shiftType)
	if err != nil {
		return err
	}
	observability.RecordScenariosIndexed(len(o.scenarios))

	result.Sensitivities = index.SensitivityReport(rec.RunID, o.threshold)
	result.CrossGammas = index.CrossGammaReport(rec.RunID, o.threshold)
	observability.RecordReportRows("sensitivity", len(result.Sensitivities))
	observability.RecordReportRows("cross_gamma", len(result.CrossGammas))

	if o.sensitivityStore == nil {
		return nil
	}
	if len(result.Sensitivities) > 0 {
		rows := make([]*domain.SensitivityRecord, len(result.Sensitivities))
		for i := range result.Sensitivities {
			rows[i] = &result.Sensitivities[i]
		}
		if err := o.sensitivityStore.InsertBulk(ctx, rows); err != nil {
			if !errors.Is(err, storage.ErrDuplicateKey) {
				return fmt.Errorf("store sensitivities: %w", err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("sensitivities for run %s already stored", rec.RunID))
		}
	}
	if len(result.CrossGammas) > 0 {
		rows := make([]*domain.CrossGammaRecord, len(result.CrossGammas))
		for i := range result.CrossGammas {
			rows[i] = &result.CrossGammas[i]
		}
		if err := o.sensitivityStore.InsertCrossGammaBulk(ctx, rows); err != nil {
			if !errors.Is(err, storage.ErrDuplicateKey) {
				return fmt.Errorf("store cross gammas: %w", err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("cross gammas for run %s already stored", rec.RunID))
		}
	}
	return nil
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		o.logger.Printf("[orchestrator] "+format, args...)
	}
}
