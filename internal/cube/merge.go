package cube

import (
	"fmt"

	"exposure-cube-lab/internal/domain"
)

// Shaper is implemented by layouts whose valid extent varies per trade.
type Shaper interface {
	Shape(trade int) (TradeShape, bool)
}

// Merge copies src into a new cube built by cfg over trades. The result has
// src's axes and indexes trades in the order given. Every trade must be
// present in src.
func Merge(cfg Config, src Cube, trades []domain.TradeEnvelope) (Cube, error) {
	dst, err := New(cfg, src.Asof(), trades, src.Dates(), src.Samples())
	if err != nil {
		return nil, err
	}
	if err := Copy(dst, src); err != nil {
		return nil, err
	}
	return dst, nil
}

// Copy writes every T0 and simulated cell of src into dst, matching trades by
// id over dst's valid extent. Both cubes must share asof, dates and samples.
func Copy(dst, src Cube) error {
	if !dst.Asof().Equal(src.Asof()) || dst.NumDates() != src.NumDates() || dst.Samples() != src.Samples() {
		return fmt.Errorf("%w: copy between cubes of different axes", ErrInvalidShape)
	}
	srcIDs := src.IDsAndIndexes()
	dstIDs := dst.IDsAndIndexes()
	for i := 0; i < dstIDs.Len(); i++ {
		id := dstIDs.ID(i)
		si, ok := srcIDs.Index(id)
		if !ok {
			return fmt.Errorf("%w: %s not in source cube", ErrNotFound, id)
		}
		dateLen, depth := dst.NumDates(), dst.Depth()
		if s, ok := dst.(Shaper); ok {
			if shape, ok := s.Shape(i); ok {
				dateLen, depth = shape.DateLen, shape.Depth
			}
		}
		for d := 0; d < depth; d++ {
			if err := dst.SetT0(src.GetT0(si, d), i, d); err != nil {
				return err
			}
		}
		for j := 0; j < dateLen; j++ {
			for k := 0; k < dst.Samples(); k++ {
				for d := 0; d < depth; d++ {
					if err := dst.Set(src.Get(si, j, k, d), i, j, k, d); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
