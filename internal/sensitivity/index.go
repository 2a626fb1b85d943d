// Package sensitivity indexes a scenario cube by shifted risk factor and
// derives finite-difference deltas, gammas and cross gammas from it.
package sensitivity

import (
	"fmt"
	"math"
	"sort"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
)

// shiftTolerance is the relative difference above which two declarations of
// the same shift are considered inconsistent.
const shiftTolerance = 1e-8

// Scenario is one row of the sensitivity cube's sample axis.
type Scenario struct {
	Description domain.ShiftScenarioDescription
	TargetShift float64
	ActualShift float64
}

// CrossFactor is a cross scenario with the up rows of its two components.
type CrossFactor struct {
	Key1  domain.RiskFactorKey
	Key2  domain.RiskFactorKey
	Data1 domain.FactorData
	Data2 domain.FactorData
	Index int // scenario row of the joint shift
}

// FactorEntry pairs a key with its scenario row.
type FactorEntry struct {
	Key  domain.RiskFactorKey
	Data domain.FactorData
}

type pairKey struct {
	a, b domain.RiskFactorKey
}

func orderedPair(k1, k2 domain.RiskFactorKey) pairKey {
	if k2.Less(k1) {
		return pairKey{a: k2, b: k1}
	}
	return pairKey{a: k1, b: k2}
}

// Index maps scenario descriptions onto the sample axis of a cube. The cube
// holds NPVs at date 0, depth 0; base NPVs are read from the T0 slice.
// Index is read-only after construction and safe for concurrent queries.
type Index struct {
	cube      cube.Cube
	shiftType domain.ShiftType
	scenarios []Scenario

	upFactors    map[domain.RiskFactorKey]domain.FactorData
	downFactors  map[domain.RiskFactorKey]domain.FactorData
	crossFactors map[pairKey]CrossFactor
	factorAt     map[int]domain.RiskFactorKey
	baseIndex    int
}

// New builds an index over c. scenarios must have one entry per sample of c.
func New(c cube.Cube, scenarios []Scenario, shiftType domain.ShiftType) (*Index, error) {
	if len(scenarios) != c.Samples() {
		return nil, fmt.Errorf("%w: %d scenarios for %d cube samples", ErrInvalidInput, len(scenarios), c.Samples())
	}
	if c.NumDates() == 0 {
		return nil, fmt.Errorf("%w: sensitivity cube has no dates", ErrInvalidInput)
	}

	x := &Index{
		cube:         c,
		shiftType:    shiftType,
		scenarios:    append([]Scenario(nil), scenarios...),
		upFactors:    make(map[domain.RiskFactorKey]domain.FactorData),
		downFactors:  make(map[domain.RiskFactorKey]domain.FactorData),
		crossFactors: make(map[pairKey]CrossFactor),
		factorAt:     make(map[int]domain.RiskFactorKey),
		baseIndex:    -1,
	}

	for i, s := range scenarios {
		d := s.Description
		switch d.Type {
		case domain.ScenarioBase:
			if x.baseIndex < 0 {
				x.baseIndex = i
			}
		case domain.ScenarioUp:
			if err := x.addShift(x.upFactors, i, s); err != nil {
				return nil, err
			}
		case domain.ScenarioDown:
			if err := x.addShift(x.downFactors, i, s); err != nil {
				return nil, err
			}
		case domain.ScenarioCross:
			if err := x.addCross(i, s); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: scenario %d has unknown type %q", ErrInvalidInput, i, d.Type)
		}
	}
	return x, nil
}

func (x *Index) addShift(m map[domain.RiskFactorKey]domain.FactorData, i int, s Scenario) error {
	key := s.Description.Key1
	if s.ActualShift == 0 {
		return fmt.Errorf("%w: scenario %d (%s) has zero actual shift", ErrMissingShiftSize, i, s.Description)
	}
	if prev, ok := m[key]; ok {
		if differs(prev.ActualShift, s.ActualShift) || differs(prev.TargetShift, s.TargetShift) {
			return fmt.Errorf("%w: %s declared at rows %d and %d with shifts %g and %g",
				ErrDuplicateScenario, s.Description, prev.Index, i, prev.ActualShift, s.ActualShift)
		}
		return nil
	}
	m[key] = domain.FactorData{
		Index:       i,
		TargetShift: s.TargetShift,
		ActualShift: s.ActualShift,
		ShiftType:   x.shiftType,
		Description: s.Description.Factor1(),
	}
	x.factorAt[i] = key
	return nil
}

func (x *Index) addCross(i int, s Scenario) error {
	d := s.Description
	up1, ok1 := x.upFactors[d.Key1]
	up2, ok2 := x.upFactors[d.Key2]
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: cross scenario %d (%s) precedes its up scenarios", ErrMissingScenario, i, d)
	}
	pk := orderedPair(d.Key1, d.Key2)
	if _, exists := x.crossFactors[pk]; exists {
		return nil
	}
	cf := CrossFactor{Key1: d.Key1, Key2: d.Key2, Data1: up1, Data2: up2, Index: i}
	if pk.a != d.Key1 {
		cf = CrossFactor{Key1: d.Key2, Key2: d.Key1, Data1: up2, Data2: up1, Index: i}
	}
	x.crossFactors[pk] = cf
	return nil
}

func differs(a, b float64) bool {
	return math.Abs(a-b) > shiftTolerance*math.Max(math.Abs(a), math.Abs(b))
}

// Cube returns the underlying scenario cube.
func (x *Index) Cube() cube.Cube { return x.cube }

// ShiftType returns the shift type of the run.
func (x *Index) ShiftType() domain.ShiftType { return x.shiftType }

// Scenarios returns the scenario rows in sample order.
func (x *Index) Scenarios() []Scenario {
	return append([]Scenario(nil), x.scenarios...)
}

// TradeIndex resolves a trade id.
func (x *Index) TradeIndex(tradeID string) (int, error) {
	i, ok := x.cube.IDsAndIndexes().Index(tradeID)
	if !ok {
		return 0, fmt.Errorf("trade %s: %w", tradeID, ErrNotFound)
	}
	return i, nil
}

func (x *Index) checkTrade(trade int) error {
	if trade < 0 || trade >= x.cube.NumIDs() {
		return fmt.Errorf("trade index %d: %w", trade, ErrNotFound)
	}
	return nil
}

// BaseNPV returns the unshifted NPV of a trade.
func (x *Index) BaseNPV(trade int) (float64, error) {
	if err := x.checkTrade(trade); err != nil {
		return 0, err
	}
	return x.cube.GetT0(trade, 0), nil
}

// ScenarioNPV returns the NPV of a trade in scenario row scenario.
func (x *Index) ScenarioNPV(trade, scenario int) (float64, error) {
	if err := x.checkTrade(trade); err != nil {
		return 0, err
	}
	if scenario < 0 || scenario >= x.cube.Samples() {
		return 0, fmt.Errorf("scenario %d: %w", scenario, ErrNotFound)
	}
	return x.npv(trade, scenario), nil
}

func (x *Index) npv(trade, scenario int) float64 {
	return x.cube.Get(trade, 0, scenario, 0)
}

// Delta returns the first order sensitivity of a trade to key: central
// difference when both sides exist, one-sided otherwise, 0 when the factor
// was not shifted.
func (x *Index) Delta(trade int, key domain.RiskFactorKey) (float64, error) {
	if err := x.checkTrade(trade); err != nil {
		return 0, err
	}
	up, hasUp := x.upFactors[key]
	down, hasDown := x.downFactors[key]
	base := x.cube.GetT0(trade, 0)
	switch {
	case hasUp && hasDown:
		return (x.npv(trade, up.Index) - x.npv(trade, down.Index)) / (2 * up.ActualShift), nil
	case hasUp:
		return (x.npv(trade, up.Index) - base) / up.ActualShift, nil
	case hasDown:
		return (base - x.npv(trade, down.Index)) / down.ActualShift, nil
	}
	return 0, nil
}

// Gamma returns the second order sensitivity of a trade to key.
func (x *Index) Gamma(trade int, key domain.RiskFactorKey) (float64, error) {
	if err := x.checkTrade(trade); err != nil {
		return 0, err
	}
	up, hasUp := x.upFactors[key]
	down, hasDown := x.downFactors[key]
	if !hasUp || !hasDown {
		return 0, fmt.Errorf("gamma %s: %w", key, ErrMissingScenario)
	}
	base := x.cube.GetT0(trade, 0)
	s := up.ActualShift
	return (x.npv(trade, up.Index) - 2*base + x.npv(trade, down.Index)) / (s * s), nil
}

// CrossGamma returns the mixed second order sensitivity of a trade to the
// pair (k1, k2). Pair order does not matter.
func (x *Index) CrossGamma(trade int, k1, k2 domain.RiskFactorKey) (float64, error) {
	if err := x.checkTrade(trade); err != nil {
		return 0, err
	}
	cf, ok := x.crossFactors[orderedPair(k1, k2)]
	if !ok {
		return 0, fmt.Errorf("cross gamma %s, %s: %w", k1, k2, ErrMissingScenario)
	}
	base := x.cube.GetT0(trade, 0)
	cross := x.npv(trade, cf.Index)
	up1 := x.npv(trade, cf.Data1.Index)
	up2 := x.npv(trade, cf.Data2.Index)
	return (cross - up1 - up2 + base) / (cf.Data1.ActualShift * cf.Data2.ActualShift), nil
}

// DeltaFor resolves a trade id and factor string and returns the delta.
func (x *Index) DeltaFor(tradeID, factor string) (float64, error) {
	trade, key, err := x.resolve(tradeID, factor)
	if err != nil {
		return 0, err
	}
	return x.Delta(trade, key)
}

// GammaFor resolves a trade id and factor string and returns the gamma.
func (x *Index) GammaFor(tradeID, factor string) (float64, error) {
	trade, key, err := x.resolve(tradeID, factor)
	if err != nil {
		return 0, err
	}
	return x.Gamma(trade, key)
}

// CrossGammaFor resolves a trade id and two factor strings and returns the
// cross gamma.
func (x *Index) CrossGammaFor(tradeID, factor1, factor2 string) (float64, error) {
	trade, k1, err := x.resolve(tradeID, factor1)
	if err != nil {
		return 0, err
	}
	k2, err := domain.ParseRiskFactorKey(factor2)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return x.CrossGamma(trade, k1, k2)
}

func (x *Index) resolve(tradeID, factor string) (int, domain.RiskFactorKey, error) {
	trade, err := x.TradeIndex(tradeID)
	if err != nil {
		return 0, domain.RiskFactorKey{}, err
	}
	key, err := domain.ParseRiskFactorKey(factor)
	if err != nil {
		return 0, domain.RiskFactorKey{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return trade, key, nil
}

// RelevantRiskFactors returns every key with an up or down scenario, sorted.
func (x *Index) RelevantRiskFactors() []domain.RiskFactorKey {
	seen := make(map[domain.RiskFactorKey]struct{}, len(x.upFactors)+len(x.downFactors))
	for k := range x.upFactors {
		seen[k] = struct{}{}
	}
	for k := range x.downFactors {
		seen[k] = struct{}{}
	}
	keys := make([]domain.RiskFactorKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// UpFactors returns up shifts ordered by scenario row.
func (x *Index) UpFactors() []FactorEntry { return entries(x.upFactors) }

// DownFactors returns down shifts ordered by scenario row.
func (x *Index) DownFactors() []FactorEntry { return entries(x.downFactors) }

func entries(m map[domain.RiskFactorKey]domain.FactorData) []FactorEntry {
	out := make([]FactorEntry, 0, len(m))
	for k, d := range m {
		out = append(out, FactorEntry{Key: k, Data: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Data.Index < out[j].Data.Index })
	return out
}

// CrossFactors returns cross shifts ordered by scenario row.
func (x *Index) CrossFactors() []CrossFactor {
	out := make([]CrossFactor, 0, len(x.crossFactors))
	for _, cf := range x.crossFactors {
		out = append(out, cf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// FactorAt returns the key shifted in an up or down scenario row.
func (x *Index) FactorAt(scenario int) (domain.RiskFactorKey, bool) {
	k, ok := x.factorAt[scenario]
	return k, ok
}

// UpFactor returns the up row of key.
func (x *Index) UpFactor(key domain.RiskFactorKey) (domain.FactorData, bool) {
	d, ok := x.upFactors[key]
	return d, ok
}

// DownFactor returns the down row of key.
func (x *Index) DownFactor(key domain.RiskFactorKey) (domain.FactorData, bool) {
	d, ok := x.downFactors[key]
	return d, ok
}

// BaseScenarioIndex returns the first base row, or -1 if none was declared.
func (x *Index) BaseScenarioIndex() int { return x.baseIndex }
