package exposure

import (
	"fmt"
	"time"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/daycount"
)

// Interpretation tells the aggregator where default NPV, close-out NPV and
// flows live in a cube.
//
// In the regular interpretation the close-out NPV of date j is the default
// NPV of date j+1, so the last grid date only serves as a close-out date. In
// the close-out-lag interpretation every date carries its own close-out NPV
// at CloseOutDepth, and the margin period of risk is MporDays.
type Interpretation struct {
	CloseOutLag   bool
	NPVDepth      int
	CloseOutDepth int
	// FlowDepth < 0 means the cube stores no flows.
	FlowDepth int
	MporDays  int
}

// RegularInterpretation reads NPVs at depth 0 and no flows.
func RegularInterpretation() Interpretation {
	return Interpretation{NPVDepth: 0, CloseOutDepth: 0, FlowDepth: -1}
}

// CloseOutLagInterpretation reads NPVs at depth 0, close-out NPVs at depth 1
// and flows at depth 2.
func CloseOutLagInterpretation(mporDays int) Interpretation {
	return Interpretation{CloseOutLag: true, NPVDepth: 0, CloseOutDepth: 1, FlowDepth: 2, MporDays: mporDays}
}

func (in Interpretation) validate() error {
	if in.NPVDepth < 0 || in.CloseOutDepth < 0 {
		return fmt.Errorf("%w: negative depth in interpretation", ErrInvalidInput)
	}
	if in.CloseOutLag && in.MporDays <= 0 {
		return fmt.Errorf("%w: close-out lag needs positive mpor days, got %d", ErrInvalidInput, in.MporDays)
	}
	return nil
}

func (in Interpretation) checkDepth(c cube.Cube) error {
	need := max(in.NPVDepth, in.FlowDepth)
	if in.CloseOutLag {
		need = max(need, in.CloseOutDepth)
	}
	if need >= c.Depth() {
		return fmt.Errorf("%w: interpretation reads depth %d, cube depth is %d", ErrInvalidInput, need, c.Depth())
	}
	return nil
}

// DatesLoopSize returns how many grid dates carry a default/close-out pair.
func (in Interpretation) DatesLoopSize(numDates int) int {
	if in.CloseOutLag {
		return numDates
	}
	return max(numDates-1, 0)
}

// NPV returns the default NPV of a trade.
func (in Interpretation) NPV(c cube.Cube, trade, date, sample int) float64 {
	return c.Get(trade, date, sample, in.NPVDepth)
}

// CloseOutNPV returns the close-out NPV matching default date date.
func (in Interpretation) CloseOutNPV(c cube.Cube, trade, date, sample int) float64 {
	if in.CloseOutLag {
		return c.Get(trade, date, sample, in.CloseOutDepth)
	}
	return c.Get(trade, date+1, sample, in.NPVDepth)
}

// Flow returns the flow paid during the margin period starting at date.
func (in Interpretation) Flow(c cube.Cube, trade, date, sample int) float64 {
	if in.FlowDepth < 0 {
		return 0
	}
	return c.Get(trade, date, sample, in.FlowDepth)
}

// MporCalendarDays returns the calendar days of the margin period that starts
// at dates[j].
func (in Interpretation) MporCalendarDays(dates []time.Time, j int) int {
	if in.CloseOutLag || j+1 >= len(dates) {
		return in.MporDays
	}
	return daycount.Days(dates[j], dates[j+1])
}

// ScenarioData supplies simulated market data needed by the aggregator.
type ScenarioData interface {
	Numeraire(date, sample int) float64
}

// ConstantNumeraire is scenario data with the same numeraire everywhere.
type ConstantNumeraire float64

// Numeraire implements ScenarioData.
func (n ConstantNumeraire) Numeraire(int, int) float64 { return float64(n) }

// NumeraireGrid holds a numeraire per (date, sample).
type NumeraireGrid struct {
	values [][]float64
}

// NewNumeraireGrid wraps values indexed [date][sample].
func NewNumeraireGrid(values [][]float64) (*NumeraireGrid, error) {
	for j, row := range values {
		if len(row) != len(values[0]) {
			return nil, fmt.Errorf("%w: numeraire row %d has %d samples, expected %d", ErrInvalidInput, j, len(row), len(values[0]))
		}
		for k, v := range row {
			if v <= 0 {
				return nil, fmt.Errorf("%w: numeraire at (%d, %d) is %g", ErrInvalidInput, j, k, v)
			}
		}
	}
	return &NumeraireGrid{values: values}, nil
}

// Numeraire implements ScenarioData.
func (g *NumeraireGrid) Numeraire(date, sample int) float64 {
	return g.values[date][sample]
}

// Shape returns the number of dates and samples.
func (g *NumeraireGrid) Shape() (int, int) {
	if len(g.values) == 0 {
		return 0, 0
	}
	return len(g.values), len(g.values[0])
}

func (in Interpretation) closeOutNumeraire(sd ScenarioData, date, sample int) float64 {
	if in.CloseOutLag {
		return sd.Numeraire(date, sample)
	}
	return sd.Numeraire(date+1, sample)
}
