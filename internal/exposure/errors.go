package exposure

import "errors"

// Aggregator errors.
var (
	// ErrNotFound is returned for an unknown netting set or trade.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for inconsistent configuration or cube shape.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIncomplete is returned by Build when a portfolio trade was never aggregated.
	ErrIncomplete = errors.New("incomplete aggregation")

	// ErrAlreadyAggregated is returned when a trade is accumulated twice.
	ErrAlreadyAggregated = errors.New("trade already aggregated")

	// ErrNotBuilt is returned when DIM results are read before Build.
	ErrNotBuilt = errors.New("aggregation not built")
)
