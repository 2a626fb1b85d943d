package exposure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
)

var weights = map[string]int{"A": 1, "B": 2, "C": 3, "D": 4}

// integerCells keeps every value integral so sums are exact in any order.
func integerCells(id string, date, sample int) (float64, float64, float64) {
	w := weights[id]
	npv := float64(w * (date + 2) * (sample%5 - 2))
	return npv, npv + float64(w*(sample%3)), float64(w * date)
}

func TestAggregator_AdditiveAndOrderIndependent(t *testing.T) {
	dates := testDates(3)
	const samples = 12
	portfolio := []domain.TradeEnvelope{
		trade("A", "NS1"), trade("B", "NS1"), trade("C", "NS1"), trade("D", "NS2"),
	}

	single := lagCube(t, []string{"A", "B", "C", "D"}, dates, samples, integerCells)
	ref, err := Aggregate(single, portfolio, lagOptions())
	require.NoError(t, err)

	partitions := [][][]string{
		{{"A", "B"}, {"C", "D"}},
		{{"D"}, {"C"}, {"B", "A"}},
		{{"C", "A"}, {"D", "B"}},
	}
	for _, parts := range partitions {
		agg, err := New(testAsof, portfolio, dates, samples, lagOptions())
		require.NoError(t, err)
		for _, ids := range parts {
			require.NoError(t, agg.Accumulate(lagCube(t, ids, dates, samples, integerCells)))
		}
		require.NoError(t, agg.Build())

		for _, ns := range []string{"NS1", "NS2"} {
			for _, get := range []func(*Aggregator, string) ([][]float64, error){
				(*Aggregator).NPV, (*Aggregator).CloseOutNPV, (*Aggregator).Flow, (*Aggregator).DeltaNPV, (*Aggregator).DIM,
			} {
				want, err := get(ref, ns)
				require.NoError(t, err)
				got, err := get(agg, ns)
				require.NoError(t, err)
				assert.Equal(t, want, got, "netting set %s partition %v", ns, parts)
			}
		}
	}

	npv, err := ref.NPV("NS1")
	require.NoError(t, err)
	// A+B+C weights 6, date 1, sample 0: 6 * 3 * -2
	assert.Equal(t, -36.0, npv[1][0])
}

func TestAggregator_RegularInterpretation(t *testing.T) {
	dates := testDates(4)
	const samples = 4
	portfolio := []domain.TradeEnvelope{trade("A", "NS1")}

	c, err := cube.New(cube.DefaultConfig(), testAsof, portfolio, dates, samples)
	require.NoError(t, err)
	for j := range dates {
		for k := 0; k < samples; k++ {
			require.NoError(t, c.Set(float64(10*j+k), 0, j, k, 0))
		}
	}

	agg, err := Aggregate(c, portfolio, Options{Logger: testLogger()})
	require.NoError(t, err)
	assert.Equal(t, 3, agg.DatesLoopSize())

	npv, err := agg.NPV("NS1")
	require.NoError(t, err)
	co, err := agg.CloseOutNPV("NS1")
	require.NoError(t, err)
	for j := 0; j < 3; j++ {
		for k := 0; k < samples; k++ {
			assert.Equal(t, float64(10*j+k), npv[j][k])
			assert.Equal(t, float64(10*(j+1)+k), co[j][k])
		}
	}
	// last date only serves as close-out
	assert.Equal(t, 0.0, npv[3][0])

	delta, err := agg.DeltaNPV("NS1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, delta[2][3])
}

func TestAggregator_RespectsTradeExtent(t *testing.T) {
	dates := testDates(4)
	short := trade("SHORT", "NS1")
	short.Maturity = dates[1]
	portfolio := []domain.TradeEnvelope{short, trade("LONG", "NS1")}

	tests := []struct {
		layout cube.Layout
		// SHORT's contribution after its maturity
		after float64
	}{
		{layout: cube.LayoutJagged, after: 0},
		// a regular cube's extent is the full grid for every trade
		{layout: cube.LayoutRegular, after: 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.layout), func(t *testing.T) {
			c, err := cube.New(cube.Config{Layout: tt.layout, Depth: 3}, testAsof, portfolio, dates, 5)
			require.NoError(t, err)
			for i := range portfolio {
				for j := range dates {
					for k := 0; k < 5; k++ {
						if tt.layout == cube.LayoutJagged && i == 0 && j >= 1 {
							continue
						}
						require.NoError(t, c.Set(1, i, j, k, 0))
					}
				}
			}

			agg, err := Aggregate(c, portfolio, lagOptions())
			require.NoError(t, err)
			npv, err := agg.NPV("NS1")
			require.NoError(t, err)
			assert.Equal(t, 2.0, npv[0][0])
			assert.Equal(t, 1.0+tt.after, npv[1][0])
			assert.Equal(t, 1.0+tt.after, npv[3][4])
		})
	}
}

func TestAggregator_Errors(t *testing.T) {
	dates := testDates(2)
	portfolio := []domain.TradeEnvelope{trade("A", "NS1"), trade("B", "NS2")}

	_, err := New(testAsof, portfolio, dates, 10, Options{NettingSets: []string{"NS1"}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = New(testAsof, append(portfolio, trade("A", "NS1")), dates, 10, Options{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(testAsof, []domain.TradeEnvelope{trade("X", "")}, dates, 10, Options{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(testAsof, portfolio, dates, 3, Options{})
	assert.ErrorIs(t, err, ErrInvalidInput, "too few samples for quadratic regression")

	agg, err := New(testAsof, portfolio, dates, 10, lagOptions("NS1", "NS2"))
	require.NoError(t, err)

	stranger := lagCube(t, []string{"Z"}, dates, 10, integerCells)
	assert.ErrorIs(t, agg.Accumulate(stranger), ErrNotFound)

	require.NoError(t, agg.Accumulate(lagCube(t, []string{"A"}, dates, 10, integerCells)))
	assert.ErrorIs(t, agg.Accumulate(lagCube(t, []string{"A"}, dates, 10, integerCells)), ErrAlreadyAggregated)
	assert.ErrorIs(t, agg.Accumulate(lagCube(t, []string{"B"}, dates, 7, integerCells)), ErrInvalidInput)

	_, err = agg.DIM("NS1")
	assert.ErrorIs(t, err, ErrNotBuilt)
	assert.ErrorIs(t, agg.Build(), ErrIncomplete)

	require.NoError(t, agg.Accumulate(lagCube(t, []string{"B"}, dates, 10, integerCells)))
	require.NoError(t, agg.Build())

	_, err = agg.NPV("NS9")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = agg.ExpectedDIM("NS9")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = agg.Trades("NS9")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"NS1", "NS2"}, agg.NettingSets())
}

func TestAggregator_ExpectedExposure(t *testing.T) {
	dates := testDates(2)
	portfolio := []domain.TradeEnvelope{trade("A", "NS1")}
	c := lagCube(t, []string{"A"}, dates, 4, func(_ string, _, k int) (float64, float64, float64) {
		return []float64{-2, -1, 1, 4}[k], 0, 0
	})
	interp := CloseOutLagInterpretation(14)
	agg, err := New(testAsof, portfolio, dates, 4, Options{Interpretation: &interp, DIM: DIMConfig{RegressionOrder: 1}})
	require.NoError(t, err)
	require.NoError(t, agg.Accumulate(c))

	epe, ene, err := agg.ExpectedExposure("NS1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.25, 1.25}, epe)
	assert.Equal(t, []float64{0.75, 0.75}, ene)
}
