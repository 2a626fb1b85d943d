package exposure

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
)

var testAsof = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fortnightly grid so that the first date sits exactly on the DIM horizon
func testDates(n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = testAsof.AddDate(0, 0, 14*(i+1))
	}
	return dates
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

func trade(id, nettingSet string) domain.TradeEnvelope {
	return domain.TradeEnvelope{TradeID: id, TradeType: "Swap", NettingSetID: nettingSet}
}

// cellFunc returns default NPV, close-out NPV and flow of a trade.
type cellFunc func(id string, date, sample int) (npv, closeOut, flow float64)

// lagCube builds a close-out-lag cube with depths (npv, close-out, flow).
func lagCube(t *testing.T, ids []string, dates []time.Time, samples int, f cellFunc) cube.Cube {
	t.Helper()
	envs := make([]domain.TradeEnvelope, len(ids))
	for i, id := range ids {
		envs[i] = trade(id, "")
	}
	c, err := cube.New(cube.Config{Layout: cube.LayoutRegular, Depth: 3}, testAsof, envs, dates, samples)
	require.NoError(t, err)
	for i, id := range ids {
		for j := range dates {
			for k := 0; k < samples; k++ {
				npv, co, flow := f(id, j, k)
				require.NoError(t, c.Set(npv, i, j, k, 0))
				require.NoError(t, c.Set(co, i, j, k, 1))
				require.NoError(t, c.Set(flow, i, j, k, 2))
			}
		}
	}
	return c
}

func lagOptions(nettingSets ...string) Options {
	interp := CloseOutLagInterpretation(14)
	return Options{
		NettingSets:    nettingSets,
		Interpretation: &interp,
		Logger:         testLogger(),
	}
}
