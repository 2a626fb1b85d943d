package cube

import (
	"errors"
	"fmt"
)

// Cube errors.
var (
	// ErrOutOfRange is returned when a non-zero value is written outside the
	// valid extent of a cube or of a trade's block.
	ErrOutOfRange = errors.New("out of range")

	// ErrNotFound is returned when a trade identifier is not part of a cube.
	ErrNotFound = errors.New("not found")

	// ErrInvalidShape is returned when cube axes are inconsistent.
	ErrInvalidShape = errors.New("invalid cube shape")

	// ErrUndefinedDepth is returned when a depth calculator cannot resolve a trade.
	ErrUndefinedDepth = errors.New("undefined depth")

	// ErrDuplicateID is returned when a trade identifier appears twice.
	ErrDuplicateID = errors.New("duplicate trade id")
)

// OutOfRangeError carries the offending address of a rejected write.
// Date and Sample are -1 for T0 writes.
type OutOfRangeError struct {
	TradeID string
	Trade   int
	Date    int
	Sample  int
	Depth   int
	Value   float64
	Field   string // axis that was violated
	Limit   int    // exclusive bound of that axis
}

func (e *OutOfRangeError) Error() string {
	if e.Date < 0 {
		return fmt.Sprintf("set %g at t0 trade %d (%s) depth %d: %s must be < %d: %v",
			e.Value, e.Trade, e.TradeID, e.Depth, e.Field, e.Limit, ErrOutOfRange)
	}
	return fmt.Sprintf("set %g at trade %d (%s) date %d sample %d depth %d: %s must be < %d: %v",
		e.Value, e.Trade, e.TradeID, e.Date, e.Sample, e.Depth, e.Field, e.Limit, ErrOutOfRange)
}

// Is reports ErrOutOfRange equivalence for errors.Is.
func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
