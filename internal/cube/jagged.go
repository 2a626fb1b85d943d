package cube

import (
	"fmt"
	"time"
)

// block locates one trade's region inside the jagged arena. A region holds
// depth T0 cells followed by depth × dateLen × samples simulated cells:
//
//	T0:        offset + d
//	simulated: offset + depth + d + depth*(date + dateLen*sample)
type block struct {
	offset  int
	dateLen int
	depth   int
}

func (b block) size(samples int) int {
	return b.depth * (1 + b.dateLen*samples)
}

// Jagged sizes each trade's storage to its own live dates and depth. All
// regions share one arena allocation.
type Jagged[T Real] struct {
	axes
	maxDepth int
	blocks   []block
	arena    []T
}

var (
	_ Cube = (*Jagged[float32])(nil)
	_ Cube = (*Jagged[float64])(nil)
)

// TradeShape is the per-trade extent of a jagged cube.
type TradeShape struct {
	DateLen int // dates strictly before maturity
	Depth   int
}

// NewJagged allocates a zero-filled jagged cube with one shape per id.
func NewJagged[T Real](asof time.Time, ids *IDIndex, dates []time.Time, samples int, shapes []TradeShape) (*Jagged[T], error) {
	ax, err := newAxes(asof, ids, dates, samples)
	if err != nil {
		return nil, err
	}
	if len(shapes) != ids.Len() {
		return nil, fmt.Errorf("%w: %d shapes for %d ids", ErrInvalidShape, len(shapes), ids.Len())
	}
	c := &Jagged[T]{axes: ax, blocks: make([]block, len(shapes))}
	total := 0
	for i, s := range shapes {
		if s.Depth <= 0 {
			return nil, fmt.Errorf("%w: trade %s depth must be positive, got %d", ErrInvalidShape, ids.ID(i), s.Depth)
		}
		if s.DateLen < 0 || s.DateLen > len(dates) {
			return nil, fmt.Errorf("%w: trade %s date length %d outside [0, %d]", ErrInvalidShape, ids.ID(i), s.DateLen, len(dates))
		}
		b := block{offset: total, dateLen: s.DateLen, depth: s.Depth}
		c.blocks[i] = b
		total += b.size(samples)
		if s.Depth > c.maxDepth {
			c.maxDepth = s.Depth
		}
	}
	c.arena = make([]T, total)
	return c, nil
}

// Depth returns the maximum depth over all trades.
func (c *Jagged[T]) Depth() int { return c.maxDepth }

// Shape returns the extent of a trade's block.
func (c *Jagged[T]) Shape(trade int) (TradeShape, bool) {
	if trade < 0 || trade >= len(c.blocks) {
		return TradeShape{}, false
	}
	b := c.blocks[trade]
	return TradeShape{DateLen: b.dateLen, Depth: b.depth}, true
}

func (c *Jagged[T]) slot(trade, date, sample, depth int) (int, string, int) {
	if trade < 0 || trade >= len(c.blocks) {
		return 0, "trade", len(c.blocks)
	}
	b := c.blocks[trade]
	if f, limit := c.violation(trade, date, sample, depth, b.dateLen, b.depth); f != "" {
		return 0, f, limit
	}
	return b.offset + b.depth + depth + b.depth*(date+b.dateLen*sample), "", 0
}

func (c *Jagged[T]) t0Slot(trade, depth int) (int, string, int) {
	if trade < 0 || trade >= len(c.blocks) {
		return 0, "trade", len(c.blocks)
	}
	b := c.blocks[trade]
	if depth < 0 || depth >= b.depth {
		return 0, "depth", b.depth
	}
	return b.offset + depth, "", 0
}

// Get returns the value at the address, or 0 outside the trade's extent.
func (c *Jagged[T]) Get(trade, date, sample, depth int) float64 {
	i, f, _ := c.slot(trade, date, sample, depth)
	if f != "" {
		return 0
	}
	return float64(c.arena[i])
}

// Set stores value at the address.
func (c *Jagged[T]) Set(value float64, trade, date, sample, depth int) error {
	i, f, limit := c.slot(trade, date, sample, depth)
	if f != "" {
		if value == 0 {
			return nil
		}
		return c.outOfRange(value, trade, date, sample, depth, f, limit)
	}
	c.arena[i] = T(value)
	return nil
}

// GetT0 returns the T0 value, or 0 outside the trade's extent.
func (c *Jagged[T]) GetT0(trade, depth int) float64 {
	i, f, _ := c.t0Slot(trade, depth)
	if f != "" {
		return 0
	}
	return float64(c.arena[i])
}

// SetT0 stores the T0 value.
func (c *Jagged[T]) SetT0(value float64, trade, depth int) error {
	i, f, limit := c.t0Slot(trade, depth)
	if f != "" {
		if value == 0 {
			return nil
		}
		return c.outOfRange(value, trade, -1, -1, depth, f, limit)
	}
	c.arena[i] = T(value)
	return nil
}
