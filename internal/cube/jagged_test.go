package cube

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJagged_TradeExtent(t *testing.T) {
	dates := testDates(4)
	trades := []struct {
		id    string
		shape TradeShape
	}{
		{"SHORT", TradeShape{DateLen: 2, Depth: 1}},
		{"LONG", TradeShape{DateLen: 4, Depth: 3}},
		{"EXPIRED", TradeShape{DateLen: 0, Depth: 1}},
	}
	ids := make([]string, len(trades))
	shapes := make([]TradeShape, len(trades))
	for i, tr := range trades {
		ids[i] = tr.id
		shapes[i] = tr.shape
	}

	for name, c := range map[string]Cube{
		"double": mustJagged[float64](t, ids, dates, shapes),
		"single": mustJagged[float32](t, ids, dates, shapes),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 3, c.Depth())
			assert.Equal(t, 4, c.NumDates())

			n := fill(t, c, func(trade, date, depth int) bool {
				s := shapes[trade]
				return depth < s.Depth && date < s.DateLen
			})
			assert.Equal(t, 5*(2*1+4*3), n)

			for i, s := range shapes {
				for d := 0; d < 3; d++ {
					for j := 0; j < 4; j++ {
						for k := 0; k < 5; k++ {
							want := 0.0
							if d < s.Depth && j < s.DateLen {
								want = cellValue(i, j, k, d)
							}
							assert.Equal(t, want, c.Get(i, j, k, d), "trade %d date %d sample %d depth %d", i, j, k, d)
						}
					}
				}
			}

			// beyond live dates
			assert.NoError(t, c.Set(0, 0, 2, 0, 0))
			err := c.Set(3.5, 0, 2, 0, 0)
			require.Error(t, err)
			var oor *OutOfRangeError
			require.True(t, errors.As(err, &oor))
			assert.Equal(t, "SHORT", oor.TradeID)
			assert.Equal(t, "live date", oor.Field)
			assert.Equal(t, 2, oor.Limit)

			// beyond own depth though within cube depth
			assert.Equal(t, 0.0, c.GetT0(0, 2))
			assert.ErrorIs(t, c.SetT0(1, 0, 2), ErrOutOfRange)
			assert.NoError(t, c.SetT0(0, 0, 2))

			// expired trade still carries T0
			assert.Equal(t, cellValue(2, -1, -1, 0), c.GetT0(2, 0))
			assert.ErrorIs(t, c.Set(1, 2, 0, 0, 0), ErrOutOfRange)
		})
	}
}

func TestJagged_BlocksDoNotOverlap(t *testing.T) {
	shapes := []TradeShape{{DateLen: 1, Depth: 2}, {DateLen: 2, Depth: 1}}
	c := mustJagged[float64](t, []string{"A", "B"}, testDates(2), shapes)

	require.NoError(t, c.Set(7, 0, 0, 2, 1))
	require.NoError(t, c.SetT0(9, 1, 0))

	assert.Equal(t, 2*(1+1*5)+1*(1+2*5), len(c.arena))
	assert.Equal(t, 7.0, c.Get(0, 0, 2, 1))
	assert.Equal(t, 9.0, c.GetT0(1, 0))
	assert.Equal(t, 0.0, c.Get(1, 0, 0, 0))

	s, ok := c.Shape(1)
	assert.True(t, ok)
	assert.Equal(t, TradeShape{DateLen: 2, Depth: 1}, s)
}

func TestJagged_InvalidShape(t *testing.T) {
	ids := testIDs(t, "A")
	_, err := NewJagged[float64](testAsof, ids, testDates(2), 1, []TradeShape{{DateLen: 3, Depth: 1}})
	assert.ErrorIs(t, err, ErrInvalidShape)
	_, err = NewJagged[float64](testAsof, ids, testDates(2), 1, []TradeShape{{DateLen: 1, Depth: 0}})
	assert.ErrorIs(t, err, ErrInvalidShape)
	_, err = NewJagged[float64](testAsof, ids, testDates(2), 1, nil)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func mustJagged[T Real](t *testing.T, ids []string, dates []time.Time, shapes []TradeShape) *Jagged[T] {
	t.Helper()
	c, err := NewJagged[T](testAsof, testIDs(t, ids...), dates, 5, shapes)
	require.NoError(t, err)
	return c
}
