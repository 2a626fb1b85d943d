package cube

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exposure-cube-lab/internal/domain"
)

var testAsof = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testDates(n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = testAsof.AddDate(0, 3*(i+1), 0)
	}
	return dates
}

func testIDs(t *testing.T, ids ...string) *IDIndex {
	t.Helper()
	x, err := NewIDIndex(ids)
	require.NoError(t, err)
	return x
}

func testTrade(id, typ string, maturity time.Time) domain.TradeEnvelope {
	return domain.TradeEnvelope{TradeID: id, TradeType: typ, NettingSetID: "NS1", Maturity: maturity}
}

// fill writes a distinct value to every valid address of c and returns the
// number of cells written.
func fill(t *testing.T, c Cube, valid func(trade, date, depth int) bool) int {
	t.Helper()
	n := 0
	for i := 0; i < c.NumIDs(); i++ {
		for d := 0; d < c.Depth(); d++ {
			if !valid(i, -1, d) {
				continue
			}
			require.NoError(t, c.SetT0(cellValue(i, -1, -1, d), i, d))
			for j := 0; j < c.NumDates(); j++ {
				if !valid(i, j, d) {
					continue
				}
				for k := 0; k < c.Samples(); k++ {
					require.NoError(t, c.Set(cellValue(i, j, k, d), i, j, k, d))
					n++
				}
			}
		}
	}
	return n
}

// cellValue is exactly representable in single precision.
func cellValue(trade, date, sample, depth int) float64 {
	return float64(trade*1000+(date+1)*100+(sample+1)*10+depth) + 0.5
}
