package valuation

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
)

var testAsof = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testDates(n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = testAsof.AddDate(0, i+1, 0)
	}
	return dates
}

func testPortfolio(n int) []domain.TradeEnvelope {
	out := make([]domain.TradeEnvelope, n)
	for i := range out {
		out[i] = domain.TradeEnvelope{
			TradeID:        string(rune('A' + i)),
			TradeType:      "Swap",
			NettingSetID:   "NS1",
			Maturity:       testAsof.AddDate(0, 2+i, 0),
			AvgPricingCost: float64(i % 3),
		}
	}
	return out
}

func testOptions(threads int) Options {
	return Options{
		Threads: threads,
		Cube:    cube.Config{Layout: cube.LayoutJagged, Precision: cube.PrecisionDouble, Depth: 3},
		Logger:  log.New(os.Stderr, "[test] ", log.LstdFlags),
	}
}

func assertSameCube(t *testing.T, want, got cube.Cube) {
	t.Helper()
	require.Equal(t, want.IDsAndIndexes().IDs(), got.IDsAndIndexes().IDs())
	require.Equal(t, want.Samples(), got.Samples())
	for i := 0; i < want.NumIDs(); i++ {
		assert.Equal(t, want.GetT0(i, 0), got.GetT0(i, 0))
		for j := 0; j < want.NumDates(); j++ {
			for k := 0; k < want.Samples(); k++ {
				for d := 0; d < want.Depth(); d++ {
					require.Equal(t, want.Get(i, j, k, d), got.Get(i, j, k, d), "trade %d date %d sample %d depth %d", i, j, k, d)
				}
			}
		}
	}
}

func TestEngine_ResultIndependentOfWorkers(t *testing.T) {
	pricer := SyntheticPricer{Seed: 7, Volatility: 50, MporDays: 14}
	portfolio := testPortfolio(7)
	dates := testDates(8)

	ref, err := NewEngine(pricer, testOptions(1)).Run(context.Background(), testAsof, portfolio, dates, 20)
	require.NoError(t, err)
	assert.Equal(t, ids(portfolio), ref.Cube.IDsAndIndexes().IDs())

	for _, threads := range []int{2, 3, 16} {
		res, err := NewEngine(pricer, testOptions(threads)).Run(context.Background(), testAsof, portfolio, dates, 20)
		require.NoError(t, err)
		assert.Len(t, res.Parts, min(threads, len(portfolio)))
		assertSameCube(t, ref.Cube, res.Cube)
	}

	scen, err := NewEngine(pricer, testOptions(3)).RunScenarios(context.Background(), testAsof, portfolio, dates, 20)
	require.NoError(t, err)
	assert.Len(t, scen.Parts, 3)
	assertSameCube(t, ref.Cube, scen.Cube)
}

func TestEngine_KeepsConfiguredLayout(t *testing.T) {
	pricer := SyntheticPricer{Seed: 5, Volatility: 20}
	portfolio := testPortfolio(5)
	dates := testDates(4)

	for _, split := range []bool{false, true} {
		opts := testOptions(2)
		opts.Cube = cube.Config{Layout: cube.LayoutJagged, Precision: cube.PrecisionSingle, Depth: 1}
		engine := NewEngine(pricer, opts)

		var res *Result
		var err error
		if split {
			res, err = engine.RunScenarios(context.Background(), testAsof, portfolio, dates, 6)
		} else {
			res, err = engine.Run(context.Background(), testAsof, portfolio, dates, 6)
		}
		require.NoError(t, err)

		layout, precision := cube.Describe(res.Cube)
		assert.Equal(t, cube.LayoutJagged, layout)
		assert.Equal(t, cube.PrecisionSingle, precision)
		assertSameCube(t, res.Joint, res.Cube)

		payload, err := cube.Marshal(res.Cube)
		require.NoError(t, err)
		decoded, err := cube.Unmarshal(payload)
		require.NoError(t, err)
		layout, precision = cube.Describe(decoded)
		assert.Equal(t, cube.LayoutJagged, layout)
		assert.Equal(t, cube.PrecisionSingle, precision)
		assertSameCube(t, res.Cube, decoded)
	}
}

func TestEngine_RespectsMaturity(t *testing.T) {
	pricer := SyntheticPricer{Seed: 1, Volatility: 10}
	portfolio := testPortfolio(2)
	res, err := NewEngine(pricer, testOptions(2)).Run(context.Background(), testAsof, portfolio, testDates(6), 4)
	require.NoError(t, err)

	// trade A matures after two months: one live date
	assert.NotEqual(t, 0.0, res.Cube.Get(0, 0, 0, 0))
	assert.Equal(t, 0.0, res.Cube.Get(0, 1, 0, 0))
}

func failing(bad string, panics bool) PricerFunc {
	return func(ctx context.Context, job Job) error {
		if err := (SyntheticPricer{Seed: 3, Volatility: 1}).Price(ctx, job); err != nil {
			return err
		}
		if job.Trade.TradeID != bad {
			return nil
		}
		if panics {
			panic("bad trade")
		}
		return errors.New("no model for trade")
	}
}

func TestEngine_FailRun(t *testing.T) {
	_, err := NewEngine(failing("C", false), testOptions(2)).Run(context.Background(), testAsof, testPortfolio(5), testDates(3), 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPricing)
	assert.Contains(t, err.Error(), "trade C")
}

func TestEngine_ZeroFill(t *testing.T) {
	for _, panics := range []bool{false, true} {
		opts := testOptions(2)
		opts.Policy = ZeroFill
		res, err := NewEngine(failing("C", panics), opts).Run(context.Background(), testAsof, testPortfolio(5), testDates(3), 4)
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, res.Failed)

		idx, ok := res.Cube.IDsAndIndexes().Index("C")
		require.True(t, ok)
		assert.Equal(t, 0.0, res.Cube.GetT0(idx, 0))
		for j := 0; j < 3; j++ {
			for k := 0; k < 4; k++ {
				assert.Equal(t, 0.0, res.Cube.Get(idx, j, k, 0))
			}
		}
		assert.NotEqual(t, 0.0, res.Cube.GetT0(0, 0))
	}
}

func TestEngine_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(SyntheticPricer{Volatility: 1}, testOptions(2)).Run(ctx, testAsof, testPortfolio(4), testDates(2), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_EmptyPortfolio(t *testing.T) {
	res, err := NewEngine(SyntheticPricer{}, testOptions(4)).Run(context.Background(), testAsof, nil, testDates(2), 2)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Cube.NumIDs())
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("zero_fill")
	require.NoError(t, err)
	assert.Equal(t, ZeroFill, p)
	_, err = ParseFailurePolicy("retry")
	assert.Error(t, err)
}
