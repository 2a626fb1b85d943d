package cube

import (
	"fmt"
	"time"
)

// Regular is a dense cube: every trade owns NumDates × Samples × Depth cells.
type Regular[T Real] struct {
	axes
	depth int
	t0    []T // [trade][depth]
	data  []T // [trade][date][sample][depth]
}

var (
	_ Cube = (*Regular[float32])(nil)
	_ Cube = (*Regular[float64])(nil)
)

// NewRegular allocates a zero-filled dense cube.
func NewRegular[T Real](asof time.Time, ids *IDIndex, dates []time.Time, samples, depth int) (*Regular[T], error) {
	ax, err := newAxes(asof, ids, dates, samples)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		return nil, fmt.Errorf("%w: depth must be positive, got %d", ErrInvalidShape, depth)
	}
	n := ids.Len()
	return &Regular[T]{
		axes:  ax,
		depth: depth,
		t0:    make([]T, n*depth),
		data:  make([]T, n*len(dates)*samples*depth),
	}, nil
}

// Depth returns the uniform depth.
func (c *Regular[T]) Depth() int { return c.depth }

func (c *Regular[T]) index(trade, date, sample, depth int) int {
	return ((trade*len(c.dates)+date)*c.samples+sample)*c.depth + depth
}

// Get returns the value at the address, or 0 outside the extent.
func (c *Regular[T]) Get(trade, date, sample, depth int) float64 {
	if f, _ := c.violation(trade, date, sample, depth, len(c.dates), c.depth); f != "" {
		return 0
	}
	return float64(c.data[c.index(trade, date, sample, depth)])
}

// Set stores value at the address.
func (c *Regular[T]) Set(value float64, trade, date, sample, depth int) error {
	if f, limit := c.violation(trade, date, sample, depth, len(c.dates), c.depth); f != "" {
		if value == 0 {
			return nil
		}
		return c.outOfRange(value, trade, date, sample, depth, f, limit)
	}
	c.data[c.index(trade, date, sample, depth)] = T(value)
	return nil
}

// GetT0 returns the T0 value, or 0 outside the extent.
func (c *Regular[T]) GetT0(trade, depth int) float64 {
	if f, _ := c.t0Violation(trade, depth, c.depth); f != "" {
		return 0
	}
	return float64(c.t0[trade*c.depth+depth])
}

// SetT0 stores the T0 value.
func (c *Regular[T]) SetT0(value float64, trade, depth int) error {
	if f, limit := c.t0Violation(trade, depth, c.depth); f != "" {
		if value == 0 {
			return nil
		}
		return c.outOfRange(value, trade, -1, -1, depth, f, limit)
	}
	c.t0[trade*c.depth+depth] = T(value)
	return nil
}
