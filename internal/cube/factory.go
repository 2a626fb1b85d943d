package cube

import (
	"fmt"
	"time"

	"exposure-cube-lab/internal/domain"
)

// Config selects the layout and precision of cubes built by New.
type Config struct {
	Layout    Layout
	Precision Precision
	// Depth is used when Calculator is nil.
	Depth      int
	Calculator DepthCalculator
}

// DefaultConfig returns a regular double-precision cube of depth 1.
func DefaultConfig() Config {
	return Config{
		Layout:    LayoutRegular,
		Precision: PrecisionDouble,
		Depth:     1,
	}
}

func (cfg Config) calculator() DepthCalculator {
	if cfg.Calculator != nil {
		return cfg.Calculator
	}
	return ConstantDepth(cfg.Depth)
}

// New builds a zero-filled cube for trades over the date grid.
// Trade order defines the cube's id index.
func New(cfg Config, asof time.Time, trades []domain.TradeEnvelope, dates []time.Time, samples int) (Cube, error) {
	names := make([]string, len(trades))
	for i, t := range trades {
		names[i] = t.TradeID
	}
	ids, err := NewIDIndex(names)
	if err != nil {
		return nil, err
	}

	calc := cfg.calculator()
	shapes := make([]TradeShape, len(trades))
	maxDepth := 0
	for i, t := range trades {
		d, err := calc.Depth(t)
		if err != nil {
			return nil, err
		}
		shapes[i] = TradeShape{DateLen: t.LiveDates(dates), Depth: d}
		if d > maxDepth {
			maxDepth = d
		}
	}
	if maxDepth == 0 {
		// empty portfolio
		if maxDepth, err = calc.Depth(domain.TradeEnvelope{}); err != nil {
			maxDepth = 1
		}
	}

	switch cfg.Layout {
	case LayoutRegular, "":
		switch cfg.Precision {
		case PrecisionDouble, "":
			return NewRegular[float64](asof, ids, dates, samples, maxDepth)
		case PrecisionSingle:
			return NewRegular[float32](asof, ids, dates, samples, maxDepth)
		}
	case LayoutJagged:
		switch cfg.Precision {
		case PrecisionDouble, "":
			return NewJagged[float64](asof, ids, dates, samples, shapes)
		case PrecisionSingle:
			return NewJagged[float32](asof, ids, dates, samples, shapes)
		}
	default:
		return nil, fmt.Errorf("%w: unknown layout %q", ErrInvalidShape, cfg.Layout)
	}
	return nil, fmt.Errorf("%w: unknown precision %q", ErrInvalidShape, cfg.Precision)
}

// Describe reports the layout and precision a cube is stored with. Cubes that
// are not a concrete layout encode as regular double.
func Describe(c Cube) (Layout, Precision) {
	switch c.(type) {
	case *Regular[float32]:
		return LayoutRegular, PrecisionSingle
	case *Jagged[float32]:
		return LayoutJagged, PrecisionSingle
	case *Jagged[float64]:
		return LayoutJagged, PrecisionDouble
	}
	return LayoutRegular, PrecisionDouble
}
