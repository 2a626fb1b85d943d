// Package verification checks that stored cubes match a fresh population
// with the same pricer and portfolio.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"

	"exposure-cube-lab/internal/cube"
)

// FloatTolerance is the relative tolerance for cell comparisons.
const FloatTolerance = 1e-7

// T0Date marks a divergence in a T0 cell.
const T0Date = -1

var (
	// ErrShapeMismatch is returned when two cubes do not share axes.
	ErrShapeMismatch = errors.New("cube shape mismatch")
	// ErrFingerprintMismatch is returned when a stored payload no longer
	// matches its recorded fingerprint.
	ErrFingerprintMismatch = errors.New("stored payload does not match fingerprint")
	// ErrUnknownTrade is returned when a stored trade is missing from the
	// verification portfolio.
	ErrUnknownTrade = errors.New("trade not in portfolio")
)

// CellDivergence is a mismatch between a stored and a replayed cell.
type CellDivergence struct {
	Date     int // T0Date for T0 cells
	Sample   int
	Depth    int
	Expected float64 // stored value
	Actual   float64 // replayed value
}

// VerificationResult contains the result of verifying a single trade.
type VerificationResult struct {
	TradeID     string           // verified trade ID
	Match       bool             // true if all cells match
	Divergences []CellDivergence // first divergent cells, capped
	Divergent   int              // number of divergent cells
	MaxAbsDiff  float64
}

// VerificationReport contains results for a whole cube.
type VerificationReport struct {
	RunID            string
	FingerprintMatch bool // replayed payload encodes to the stored fingerprint
	TotalTrades      int
	MatchedTrades    int
	DivergentTrades  int
	Results          []VerificationResult
}

// Verifier verifies stored cubes against replayed populations.
type Verifier interface {
	// VerifyTrade verifies one trade of a stored run.
	VerifyTrade(ctx context.Context, runID, tradeID string) (*VerificationResult, error)

	// VerifyRun verifies every trade of a stored run.
	VerifyRun(ctx context.Context, runID string) (*VerificationReport, error)
}

// checkAxes reports whether replayed shares the axes of stored.
func checkAxes(stored, replayed cube.Cube) error {
	switch {
	case !stored.Asof().Equal(replayed.Asof()):
		return fmt.Errorf("%w: asof %s vs %s", ErrShapeMismatch, stored.Asof(), replayed.Asof())
	case stored.NumIDs() != replayed.NumIDs():
		return fmt.Errorf("%w: %d vs %d ids", ErrShapeMismatch, stored.NumIDs(), replayed.NumIDs())
	case stored.NumDates() != replayed.NumDates():
		return fmt.Errorf("%w: %d vs %d dates", ErrShapeMismatch, stored.NumDates(), replayed.NumDates())
	case stored.Samples() != replayed.Samples():
		return fmt.Errorf("%w: %d vs %d samples", ErrShapeMismatch, stored.Samples(), replayed.Samples())
	case stored.Depth() != replayed.Depth():
		return fmt.Errorf("%w: depth %d vs %d", ErrShapeMismatch, stored.Depth(), replayed.Depth())
	}
	sids, rids := stored.IDsAndIndexes(), replayed.IDsAndIndexes()
	for i := 0; i < sids.Len(); i++ {
		if sids.ID(i) != rids.ID(i) {
			return fmt.Errorf("%w: id %d is %s vs %s", ErrShapeMismatch, i, sids.ID(i), rids.ID(i))
		}
	}
	return nil
}

// CompareTrade compares every cell of one trade, keeping at most
// maxDivergences divergent cells in the result.
func CompareTrade(stored, replayed cube.Cube, trade, maxDivergences int) VerificationResult {
	res := VerificationResult{TradeID: stored.IDsAndIndexes().ID(trade)}
	check := func(date, sample, depth int, expected, actual float64) {
		diff := math.Abs(expected - actual)
		res.MaxAbsDiff = math.Max(res.MaxAbsDiff, diff)
		if floatEquals(expected, actual) {
			return
		}
		res.Divergent++
		if len(res.Divergences) < maxDivergences {
			res.Divergences = append(res.Divergences, CellDivergence{
				Date: date, Sample: sample, Depth: depth, Expected: expected, Actual: actual,
			})
		}
	}

	depth := stored.Depth()
	for d := 0; d < depth; d++ {
		check(T0Date, 0, d, stored.GetT0(trade, d), replayed.GetT0(trade, d))
	}
	for k := 0; k < stored.Samples(); k++ {
		for j := 0; j < stored.NumDates(); j++ {
			for d := 0; d < depth; d++ {
				check(j, k, d, stored.Get(trade, j, k, d), replayed.Get(trade, j, k, d))
			}
		}
	}
	res.Match = res.Divergent == 0
	return res
}

// CompareCubes compares two cubes trade by trade.
func CompareCubes(stored, replayed cube.Cube, maxDivergences int) (*VerificationReport, error) {
	if err := checkAxes(stored, replayed); err != nil {
		return nil, err
	}
	report := &VerificationReport{TotalTrades: stored.NumIDs()}
	for i := 0; i < stored.NumIDs(); i++ {
		res := CompareTrade(stored, replayed, i, maxDivergences)
		if res.Match {
			report.MatchedTrades++
		} else {
			report.DivergentTrades++
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// floatEquals compares within FloatTolerance relative to the larger
// magnitude, and absolutely below 1.
func floatEquals(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= FloatTolerance*scale
}
