// Package exposure aggregates trade valuations from a cube into netting sets
// and derives dynamic initial margin (DIM) profiles from them.
package exposure

import (
	"fmt"
	"log"
	"sort"
	"time"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
)

// Options configures an Aggregator.
type Options struct {
	// NettingSets declares the allowed netting sets in report order. When
	// empty, netting sets are taken from the portfolio in sorted order.
	NettingSets    []string
	Interpretation *Interpretation // Default: RegularInterpretation()
	ScenarioData   ScenarioData    // Default: ConstantNumeraire(1)
	DIM            DIMConfig
	Logger         *log.Logger
}

// nettingSet is the aggregation state of one netting set. Matrices are
// indexed [date][sample].
type nettingSet struct {
	id       string
	trades   []string
	npv      [][]float64
	closeOut [][]float64
	flow     [][]float64
	deltaNPV [][]float64
	dim      [][]float64

	expectedDIM  []float64
	zeroOrderDIM []float64
	simpleDIM    []float64
	t0DIM        float64
	scaling      float64
}

func newMatrix(rows, cols int) [][]float64 {
	backing := make([]float64, rows*cols)
	m := make([][]float64, rows)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}

func copyMatrix(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return nil
	}
	out := newMatrix(len(m), len(m[0]))
	for i := range m {
		copy(out[i], m[i])
	}
	return out
}

// Aggregator accumulates trade NPVs and flows into netting sets. Netting set
// membership is fixed by the portfolio passed to New; cubes are added with
// Accumulate in any order and DIM is computed by Build.
type Aggregator struct {
	asof    time.Time
	dates   []time.Time
	samples int
	interp  Interpretation
	data    ScenarioData
	dimCfg  DIMConfig
	logger  *log.Logger

	trades  map[string]domain.TradeEnvelope
	pending map[string]struct{}
	order   []string
	sets    map[string]*nettingSet

	built   bool
	dimCube *cube.Regular[float64]
}

// New creates an aggregator for portfolio over the date grid.
func New(asof time.Time, portfolio []domain.TradeEnvelope, dates []time.Time, samples int, opts Options) (*Aggregator, error) {
	interp := RegularInterpretation()
	if opts.Interpretation != nil {
		interp = *opts.Interpretation
	}
	if err := interp.validate(); err != nil {
		return nil, err
	}
	data := opts.ScenarioData
	if data == nil {
		data = ConstantNumeraire(1)
	}
	if g, ok := data.(*NumeraireGrid); ok {
		if nd, ns := g.Shape(); nd < len(dates) || ns < samples {
			return nil, fmt.Errorf("%w: numeraire grid %dx%d smaller than %dx%d", ErrInvalidInput, nd, ns, len(dates), samples)
		}
	}
	if samples <= 0 {
		return nil, fmt.Errorf("%w: samples must be positive", ErrInvalidInput)
	}
	dimCfg := opts.DIM.withDefaults()
	if err := dimCfg.validate(samples); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	a := &Aggregator{
		asof:    asof,
		dates:   dates,
		samples: samples,
		interp:  interp,
		data:    data,
		dimCfg:  dimCfg,
		logger:  logger,
		trades:  make(map[string]domain.TradeEnvelope, len(portfolio)),
		pending: make(map[string]struct{}, len(portfolio)),
		sets:    make(map[string]*nettingSet),
	}

	declared := make(map[string]bool, len(opts.NettingSets))
	for _, ns := range opts.NettingSets {
		declared[ns] = true
	}
	for _, t := range portfolio {
		if _, dup := a.trades[t.TradeID]; dup {
			return nil, fmt.Errorf("%w: duplicate trade %s", ErrInvalidInput, t.TradeID)
		}
		if t.NettingSetID == "" {
			return nil, fmt.Errorf("%w: trade %s has no netting set", ErrInvalidInput, t.TradeID)
		}
		if len(declared) > 0 && !declared[t.NettingSetID] {
			return nil, fmt.Errorf("trade %s netting set %s not declared: %w", t.TradeID, t.NettingSetID, ErrNotFound)
		}
		a.trades[t.TradeID] = t
		a.pending[t.TradeID] = struct{}{}

		ns, ok := a.sets[t.NettingSetID]
		if !ok {
			ns = &nettingSet{
				id:       t.NettingSetID,
				npv:      newMatrix(len(dates), samples),
				closeOut: newMatrix(len(dates), samples),
				flow:     newMatrix(len(dates), samples),
				deltaNPV: newMatrix(len(dates), samples),
				scaling:  1,
			}
			a.sets[t.NettingSetID] = ns
		}
		ns.trades = append(ns.trades, t.TradeID)
	}

	if len(declared) > 0 {
		for _, id := range opts.NettingSets {
			if _, ok := a.sets[id]; ok {
				a.order = append(a.order, id)
			}
		}
	} else {
		for id := range a.sets {
			a.order = append(a.order, id)
		}
		sort.Strings(a.order)
	}
	return a, nil
}

// Accumulate adds every trade of c into its netting set. Trades may be spread
// over several cubes; each trade must be accumulated exactly once.
func (a *Aggregator) Accumulate(c cube.Cube) error {
	if a.built {
		return fmt.Errorf("%w: accumulate after build", ErrInvalidInput)
	}
	if c.NumDates() != len(a.dates) || c.Samples() != a.samples {
		return fmt.Errorf("%w: cube is %d dates x %d samples, aggregator expects %d x %d",
			ErrInvalidInput, c.NumDates(), c.Samples(), len(a.dates), a.samples)
	}
	if c.NumIDs() > 0 {
		if err := a.interp.checkDepth(c); err != nil {
			return err
		}
	}

	ids := c.IDsAndIndexes()
	// validate first so a failed call leaves the state untouched
	for i := 0; i < ids.Len(); i++ {
		id := ids.ID(i)
		if _, ok := a.trades[id]; !ok {
			return fmt.Errorf("trade %s not in portfolio: %w", id, ErrNotFound)
		}
		if _, ok := a.pending[id]; !ok {
			return fmt.Errorf("%w: %s", ErrAlreadyAggregated, id)
		}
	}

	loop := a.interp.DatesLoopSize(len(a.dates))
	for i := 0; i < ids.Len(); i++ {
		t := a.trades[ids.ID(i)]
		ns := a.sets[t.NettingSetID]
		limit := loop
		if s, ok := c.(cube.Shaper); ok {
			if shape, ok := s.Shape(i); ok {
				limit = min(loop, shape.DateLen)
			}
		}
		for j := 0; j < limit; j++ {
			npv, co, flow := ns.npv[j], ns.closeOut[j], ns.flow[j]
			for k := 0; k < a.samples; k++ {
				npv[k] += a.interp.NPV(c, i, j, k)
				co[k] += a.interp.CloseOutNPV(c, i, j, k)
				flow[k] += a.interp.Flow(c, i, j, k)
			}
		}
		delete(a.pending, t.TradeID)
	}
	return nil
}

// Build computes DIM for every netting set. It fails if any portfolio trade
// has not been accumulated.
func (a *Aggregator) Build() error {
	if a.built {
		return nil
	}
	if len(a.pending) > 0 {
		missing := make([]string, 0, len(a.pending))
		for id := range a.pending {
			missing = append(missing, id)
		}
		sort.Strings(missing)
		return fmt.Errorf("%w: %d trades never aggregated, first %s", ErrIncomplete, len(missing), missing[0])
	}

	ids, err := cube.NewIDIndex(a.order)
	if err != nil {
		return err
	}
	dc, err := cube.NewRegular[float64](a.asof, ids, a.dates, a.samples, 1)
	if err != nil {
		return fmt.Errorf("allocate dim cube: %w", err)
	}
	a.dimCube = dc

	for n, id := range a.order {
		ns := a.sets[id]
		if err := a.computeDIM(ns); err != nil {
			return fmt.Errorf("netting set %s: %w", id, err)
		}
		for j, row := range ns.dim {
			for k, v := range row {
				if err := dc.Set(v, n, j, k, 0); err != nil {
					return err
				}
			}
		}
		if err := dc.SetT0(ns.t0DIM*ns.scaling, n, 0); err != nil {
			return err
		}
		a.logger.Printf("[dim] netting set %s: %d trades, t0 dim %.2f, scaling %.6f", id, len(ns.trades), ns.t0DIM, ns.scaling)
	}
	a.built = true
	return nil
}

// Aggregate runs New, Accumulate and Build over a single cube holding the
// whole portfolio.
func Aggregate(c cube.Cube, portfolio []domain.TradeEnvelope, opts Options) (*Aggregator, error) {
	a, err := New(c.Asof(), portfolio, c.Dates(), c.Samples(), opts)
	if err != nil {
		return nil, err
	}
	if err := a.Accumulate(c); err != nil {
		return nil, err
	}
	if err := a.Build(); err != nil {
		return nil, err
	}
	return a, nil
}

// NettingSets returns netting set ids in report order.
func (a *Aggregator) NettingSets() []string {
	return append([]string(nil), a.order...)
}

// Asof returns the valuation date.
func (a *Aggregator) Asof() time.Time { return a.asof }

// Dates returns the date grid.
func (a *Aggregator) Dates() []time.Time { return a.dates }

// Samples returns the number of samples.
func (a *Aggregator) Samples() int { return a.samples }

// DatesLoopSize returns the number of dates with DIM results.
func (a *Aggregator) DatesLoopSize() int { return a.interp.DatesLoopSize(len(a.dates)) }

func (a *Aggregator) set(id string) (*nettingSet, error) {
	ns, ok := a.sets[id]
	if !ok {
		return nil, fmt.Errorf("netting set %s: %w", id, ErrNotFound)
	}
	return ns, nil
}

func (a *Aggregator) builtSet(id string) (*nettingSet, error) {
	ns, err := a.set(id)
	if err != nil {
		return nil, err
	}
	if !a.built {
		return nil, ErrNotBuilt
	}
	return ns, nil
}

// Trades returns the trade ids of a netting set in portfolio order.
func (a *Aggregator) Trades(nettingSet string) ([]string, error) {
	ns, err := a.set(nettingSet)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), ns.trades...), nil
}

// NPV returns the default NPV matrix [date][sample] of a netting set.
func (a *Aggregator) NPV(nettingSet string) ([][]float64, error) {
	ns, err := a.set(nettingSet)
	if err != nil {
		return nil, err
	}
	return copyMatrix(ns.npv), nil
}

// CloseOutNPV returns the close-out NPV matrix of a netting set.
func (a *Aggregator) CloseOutNPV(nettingSet string) ([][]float64, error) {
	ns, err := a.set(nettingSet)
	if err != nil {
		return nil, err
	}
	return copyMatrix(ns.closeOut), nil
}

// Flow returns the flow matrix of a netting set.
func (a *Aggregator) Flow(nettingSet string) ([][]float64, error) {
	ns, err := a.set(nettingSet)
	if err != nil {
		return nil, err
	}
	return copyMatrix(ns.flow), nil
}

// DeltaNPV returns the close-out minus default value matrix of a netting set.
func (a *Aggregator) DeltaNPV(nettingSet string) ([][]float64, error) {
	ns, err := a.builtSet(nettingSet)
	if err != nil {
		return nil, err
	}
	return copyMatrix(ns.deltaNPV), nil
}

// DIM returns the per-sample DIM matrix of a netting set.
func (a *Aggregator) DIM(nettingSet string) ([][]float64, error) {
	ns, err := a.builtSet(nettingSet)
	if err != nil {
		return nil, err
	}
	return copyMatrix(ns.dim), nil
}

// ExpectedDIM returns the sample mean of DIM per date.
func (a *Aggregator) ExpectedDIM(nettingSet string) ([]float64, error) {
	ns, err := a.builtSet(nettingSet)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), ns.expectedDIM...), nil
}

// ZeroOrderDIM returns the unconditional DIM per date.
func (a *Aggregator) ZeroOrderDIM(nettingSet string) ([]float64, error) {
	ns, err := a.builtSet(nettingSet)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), ns.zeroOrderDIM...), nil
}

// SimpleDIM returns the empirical quantile DIM per date.
func (a *Aggregator) SimpleDIM(nettingSet string) ([]float64, error) {
	ns, err := a.builtSet(nettingSet)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), ns.simpleDIM...), nil
}

// T0Scaling returns the factor applied to regression DIM to match the
// current IM, 1 when no current IM was supplied.
func (a *Aggregator) T0Scaling(nettingSet string) (float64, error) {
	ns, err := a.builtSet(nettingSet)
	if err != nil {
		return 0, err
	}
	return ns.scaling, nil
}

// DimCube returns DIM per (netting set, date, sample) with the scaled T0 DIM
// estimate in the T0 slice.
func (a *Aggregator) DimCube() (cube.Cube, error) {
	if !a.built {
		return nil, ErrNotBuilt
	}
	return a.dimCube, nil
}

// ExpectedExposure returns the expected positive and negative exposure per
// date of a netting set.
func (a *Aggregator) ExpectedExposure(nettingSet string) (epe, ene []float64, err error) {
	ns, err := a.set(nettingSet)
	if err != nil {
		return nil, nil, err
	}
	epe = make([]float64, len(a.dates))
	ene = make([]float64, len(a.dates))
	for j, row := range ns.npv {
		for _, v := range row {
			if v > 0 {
				epe[j] += v
			} else {
				ene[j] -= v
			}
		}
		epe[j] /= float64(a.samples)
		ene[j] /= float64(a.samples)
	}
	return epe, ene, nil
}
