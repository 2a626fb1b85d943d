package verification

import (
	"context"
	"fmt"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/idhash"
	"exposure-cube-lab/internal/storage"
	"exposure-cube-lab/internal/valuation"
)

// DefaultMaxDivergences caps the divergent cells kept per trade.
const DefaultMaxDivergences = 10

// Options configures a CubeVerifier.
type Options struct {
	// Valuation configures the replay. An unset cube layout, precision or
	// depth is taken from the stored record.
	Valuation valuation.Options
	// SplitSamples replays with samples partitioned across workers.
	SplitSamples   bool
	MaxDivergences int // Default: DefaultMaxDivergences
}

// CubeVerifier replays stored cubes with a pricer.
type CubeVerifier struct {
	store     storage.CubeStore
	pricer    valuation.Pricer
	portfolio map[string]domain.TradeEnvelope
	opts      Options
}

// NewCubeVerifier creates a verifier for cubes priced from portfolio.
func NewCubeVerifier(store storage.CubeStore, pricer valuation.Pricer, portfolio []domain.TradeEnvelope, opts Options) *CubeVerifier {
	if opts.MaxDivergences <= 0 {
		opts.MaxDivergences = DefaultMaxDivergences
	}
	trades := make(map[string]domain.TradeEnvelope, len(portfolio))
	for _, t := range portfolio {
		trades[t.TradeID] = t
	}
	return &CubeVerifier{store: store, pricer: pricer, portfolio: trades, opts: opts}
}

// VerifyRun replays the stored cube of runID and compares all trades.
func (v *CubeVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	rec, stored, err := v.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	ids := stored.IDsAndIndexes().IDs()
	replayed, err := v.replay(ctx, rec, stored, ids)
	if err != nil {
		return nil, err
	}
	report, err := CompareCubes(stored, replayed, v.opts.MaxDivergences)
	if err != nil {
		return nil, err
	}
	report.RunID = runID

	payload, err := cube.Marshal(replayed)
	if err != nil {
		return nil, err
	}
	report.FingerprintMatch = idhash.CubeFingerprint(payload) == rec.Fingerprint
	return report, nil
}

// VerifyTrade replays a single trade of the stored cube of runID.
func (v *CubeVerifier) VerifyTrade(ctx context.Context, runID, tradeID string) (*VerificationResult, error) {
	rec, stored, err := v.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	idx, ok := stored.IDsAndIndexes().Index(tradeID)
	if !ok {
		return nil, fmt.Errorf("trade %s in run %s: %w", tradeID, runID, storage.ErrNotFound)
	}
	replayed, err := v.replay(ctx, rec, stored, []string{tradeID})
	if err != nil {
		return nil, err
	}
	// Compare through a one-trade view of the stored cube.
	view := tradeView{Cube: stored, trade: idx}
	res := CompareTrade(view, replayed, 0, v.opts.MaxDivergences)
	return &res, nil
}

func (v *CubeVerifier) load(ctx context.Context, runID string) (*domain.CubeRecord, cube.Cube, error) {
	rec, err := v.store.GetByRunID(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if !idhash.VerifyFingerprint(rec.Payload, rec.Fingerprint) {
		return nil, nil, fmt.Errorf("run %s: %w", runID, ErrFingerprintMismatch)
	}
	c, err := cube.Unmarshal(rec.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return rec, c, nil
}

func (v *CubeVerifier) replay(ctx context.Context, rec *domain.CubeRecord, stored cube.Cube, ids []string) (cube.Cube, error) {
	trades := make([]domain.TradeEnvelope, len(ids))
	for i, id := range ids {
		t, ok := v.portfolio[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTrade, id)
		}
		trades[i] = t
	}

	opts := v.opts.Valuation
	if opts.Cube.Layout == "" {
		opts.Cube.Layout = cube.Layout(rec.Layout)
	}
	if opts.Cube.Precision == "" {
		opts.Cube.Precision = cube.Precision(rec.Precision)
	}
	if opts.Cube.Depth == 0 && opts.Cube.Calculator == nil {
		opts.Cube.Depth = rec.Depth
	}

	engine := valuation.NewEngine(v.pricer, opts)
	var (
		res *valuation.Result
		err error
	)
	if v.opts.SplitSamples {
		res, err = engine.RunScenarios(ctx, stored.Asof(), trades, stored.Dates(), stored.Samples())
	} else {
		res, err = engine.Run(ctx, stored.Asof(), trades, stored.Dates(), stored.Samples())
	}
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", rec.RunID, err)
	}
	return res.Cube, nil
}

// tradeView exposes one trade of a cube at index 0.
type tradeView struct {
	cube.Cube
	trade int
}

func (t tradeView) Get(_, date, sample, depth int) float64 {
	return t.Cube.Get(t.trade, date, sample, depth)
}

func (t tradeView) GetT0(_, depth int) float64 {
	return t.Cube.GetT0(t.trade, depth)
}

func (t tradeView) IDsAndIndexes() *cube.IDIndex {
	ids, _ := cube.NewIDIndex([]string{t.Cube.IDsAndIndexes().ID(t.trade)})
	return ids
}
