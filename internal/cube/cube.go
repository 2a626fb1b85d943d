// Package cube stores per-trade simulated valuations addressed by
// (trade, date, sample, depth) plus a sample-independent T0 slice.
package cube

import (
	"fmt"
	"time"
)

// Cube is the consumer-facing view of a valuation cube. Aggregators and
// indexes depend on this interface only, never on a concrete layout.
//
// Reads outside the valid extent return 0. Writes of 0 outside the extent are
// no-ops; any other value fails with an *OutOfRangeError.
type Cube interface {
	Asof() time.Time
	// Dates returns the shared date grid. Callers must not modify it.
	Dates() []time.Time
	IDsAndIndexes() *IDIndex

	NumIDs() int
	NumDates() int
	Samples() int
	// Depth is the maximum depth over all trades.
	Depth() int

	Get(trade, date, sample, depth int) float64
	Set(value float64, trade, date, sample, depth int) error
	GetT0(trade, depth int) float64
	SetT0(value float64, trade, depth int) error
}

// Real is the element type of cube storage.
type Real interface {
	~float32 | ~float64
}

// Layout selects the physical storage scheme.
type Layout string

// Layouts
const (
	LayoutRegular Layout = "regular"
	LayoutJagged  Layout = "jagged"
)

// Precision selects the element type.
type Precision string

// Precisions
const (
	PrecisionSingle Precision = "single"
	PrecisionDouble Precision = "double"
)

// ParseLayout resolves a layout name.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutRegular, LayoutJagged:
		return Layout(s), nil
	}
	return "", fmt.Errorf("%w: unknown layout %q", ErrInvalidShape, s)
}

// ParsePrecision resolves a precision name.
func ParsePrecision(s string) (Precision, error) {
	switch Precision(s) {
	case PrecisionSingle, PrecisionDouble:
		return Precision(s), nil
	}
	return "", fmt.Errorf("%w: unknown precision %q", ErrInvalidShape, s)
}

// axes holds the immutable shape shared by all layouts.
type axes struct {
	asof    time.Time
	dates   []time.Time
	ids     *IDIndex
	samples int
}

func newAxes(asof time.Time, ids *IDIndex, dates []time.Time, samples int) (axes, error) {
	if samples <= 0 {
		return axes{}, fmt.Errorf("%w: samples must be positive, got %d", ErrInvalidShape, samples)
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i-1].Before(dates[i]) {
			return axes{}, fmt.Errorf("%w: dates not strictly increasing at %d", ErrInvalidShape, i)
		}
	}
	return axes{asof: asof, dates: dates, ids: ids, samples: samples}, nil
}

func (a *axes) Asof() time.Time         { return a.asof }
func (a *axes) Dates() []time.Time      { return a.dates }
func (a *axes) IDsAndIndexes() *IDIndex { return a.ids }
func (a *axes) NumIDs() int             { return a.ids.Len() }
func (a *axes) NumDates() int           { return len(a.dates) }
func (a *axes) Samples() int            { return a.samples }

// violation returns the first axis that (trade, date, sample, depth) breaks,
// given the date and depth limits that apply to the trade.
func (a *axes) violation(trade, date, sample, depth, dateLimit, depthLimit int) (string, int) {
	switch {
	case trade < 0 || trade >= a.ids.Len():
		return "trade", a.ids.Len()
	case date < 0 || date >= len(a.dates):
		return "date", len(a.dates)
	case date >= dateLimit:
		return "live date", dateLimit
	case sample < 0 || sample >= a.samples:
		return "sample", a.samples
	case depth < 0 || depth >= depthLimit:
		return "depth", depthLimit
	}
	return "", 0
}

func (a *axes) t0Violation(trade, depth, depthLimit int) (string, int) {
	switch {
	case trade < 0 || trade >= a.ids.Len():
		return "trade", a.ids.Len()
	case depth < 0 || depth >= depthLimit:
		return "depth", depthLimit
	}
	return "", 0
}

func (a *axes) outOfRange(value float64, trade, date, sample, depth int, field string, limit int) error {
	return &OutOfRangeError{
		TradeID: a.ids.ID(trade),
		Trade:   trade,
		Date:    date,
		Sample:  sample,
		Depth:   depth,
		Value:   value,
		Field:   field,
		Limit:   limit,
	}
}

// ZeroTrade resets every cell of a trade, T0 included, to zero.
func ZeroTrade(c Cube, trade int) {
	for d := 0; d < c.Depth(); d++ {
		_ = c.SetT0(0, trade, d)
		for j := 0; j < c.NumDates(); j++ {
			for k := 0; k < c.Samples(); k++ {
				_ = c.Set(0, trade, j, k, d)
			}
		}
	}
}
