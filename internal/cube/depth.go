package cube

import (
	"fmt"

	"exposure-cube-lab/internal/domain"
)

// DepthCalculator resolves the number of stored quantities for a trade.
type DepthCalculator interface {
	Depth(t domain.TradeEnvelope) (int, error)
}

// ConstantDepth assigns the same depth to every trade.
type ConstantDepth int

// Depth implements DepthCalculator.
func (c ConstantDepth) Depth(domain.TradeEnvelope) (int, error) {
	if c <= 0 {
		return 0, fmt.Errorf("%w: constant depth %d", ErrUndefinedDepth, int(c))
	}
	return int(c), nil
}

// DepthByType maps trade types to depths. Default applies to unmapped types
// when positive.
type DepthByType struct {
	Depths  map[string]int
	Default int
}

// Depth implements DepthCalculator.
func (c DepthByType) Depth(t domain.TradeEnvelope) (int, error) {
	if d, ok := c.Depths[t.TradeType]; ok && d > 0 {
		return d, nil
	}
	if c.Default > 0 {
		return c.Default, nil
	}
	return 0, fmt.Errorf("%w: trade %s type %q", ErrUndefinedDepth, t.TradeID, t.TradeType)
}

// DepthFunc adapts a function to DepthCalculator.
type DepthFunc func(t domain.TradeEnvelope) (int, error)

// Depth implements DepthCalculator.
func (f DepthFunc) Depth(t domain.TradeEnvelope) (int, error) {
	return f(t)
}
