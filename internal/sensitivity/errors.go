package sensitivity

import "errors"

// Sensitivity index errors.
var (
	// ErrNotFound is returned for an unknown trade id or trade index.
	ErrNotFound = errors.New("not found")

	// ErrMissingScenario is returned when the scenario rows needed for a
	// gamma or cross gamma were never generated, or when a cross scenario
	// precedes its component up scenarios.
	ErrMissingScenario = errors.New("missing scenario")

	// ErrDuplicateScenario is returned when a factor/direction is declared
	// twice with materially different shift sizes.
	ErrDuplicateScenario = errors.New("duplicate scenario")

	// ErrMissingShiftSize is returned when a shifted scenario has no usable
	// shift size.
	ErrMissingShiftSize = errors.New("missing shift size")

	// ErrInvalidInput is returned when scenarios do not match the cube.
	ErrInvalidInput = errors.New("invalid input")
)
