package storage

import "errors"

// Errors shared by the cube, sensitivity and DIM stores. Every backend
// returns these, wrapped or bare, so callers can match with errors.Is.
var (
	// ErrNotFound reports an unknown run id, fingerprint or netting set.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey reports a second write for a run id or sensitivity
	// row. Stored runs are immutable; a rerun needs a new run id.
	ErrDuplicateKey = errors.New("duplicate key: stored runs are immutable")

	// ErrInvalidInput reports a record the store refuses, such as a cube
	// without payload or with an unknown layout.
	ErrInvalidInput = errors.New("invalid input")
)
