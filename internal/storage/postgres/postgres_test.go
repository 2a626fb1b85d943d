package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"exposure-cube-lab/internal/storage"
)

func TestWriteError(t *testing.T) {
	dup := writeError("insert cube", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "cubes_pkey"})
	assert.ErrorIs(t, dup, storage.ErrDuplicateKey)

	check := writeError("insert cube", &pgconn.PgError{Code: pgErrCheckViolation, ConstraintName: "cubes_layout_check"})
	assert.ErrorIs(t, check, storage.ErrInvalidInput)
	assert.Contains(t, check.Error(), "cubes_layout_check")

	null := writeError("copy cross gammas", &pgconn.PgError{Code: pgErrNotNullViolation})
	assert.ErrorIs(t, null, storage.ErrInvalidInput)

	other := &pgconn.PgError{Code: "40001"}
	err := writeError("insert cube", other)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, storage.ErrInvalidInput)

	plain := errors.New("connection reset")
	assert.ErrorIs(t, writeError("insert cube", plain), plain)
}
