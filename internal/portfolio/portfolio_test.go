package portfolio

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	in := `# demo book
NettingSetId,TradeId,Maturity,TradeType
CPTY_A,SWAP_1,2030-06-15,Swap
CPTY_B, FX_1 ,,FxForward
`
	trades, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "SWAP_1", trades[0].TradeID)
	assert.Equal(t, "CPTY_A", trades[0].NettingSetID)
	assert.Equal(t, time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC), trades[0].Maturity)
	assert.Equal(t, "FX_1", trades[1].TradeID)
	assert.True(t, trades[1].Maturity.IsZero())
	assert.Zero(t, trades[1].AvgPricingCost)
}

func TestRead_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing column": "TradeId,TradeType\nA,Swap\n",
		"empty id":       "TradeId,NettingSetId\n,NS\n",
		"duplicate id":   "TradeId,NettingSetId\nA,NS\nA,NS\n",
		"bad maturity":   "TradeId,NettingSetId,Maturity\nA,NS,15/06/2030\n",
		"bad cost":       "TradeId,NettingSetId,AvgPricingCost\nA,NS,-1\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(in))
			assert.True(t, errors.Is(err, ErrInvalidPortfolio), "got %v", err)
		})
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	asof := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{asof.AddDate(0, 6, 0), asof.AddDate(1, 0, 0), asof.AddDate(2, 0, 0)}
	trades := Synthetic(9, []string{"CPTY_A", "CPTY_B"}, dates)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, trades))
	assert.True(t, strings.HasPrefix(buf.String(), "TradeId,TradeType,NettingSetId,Maturity,AvgPricingCost\n"))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, trades, got)
}

func TestSynthetic(t *testing.T) {
	asof := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{asof.AddDate(0, 1, 0), asof.AddDate(0, 2, 0), asof.AddDate(0, 3, 0), asof.AddDate(0, 4, 0)}
	trades := Synthetic(8, []string{"A", "B"}, dates)

	require.Len(t, trades, 8)
	assert.Equal(t, "TRADE_0001", trades[0].TradeID)
	assert.Equal(t, "A", trades[0].NettingSetID)
	assert.Equal(t, "B", trades[1].NettingSetID)
	assert.True(t, trades[0].Maturity.IsZero())
	assert.Equal(t, dates[1], trades[1].Maturity)
	assert.Equal(t, dates[3], trades[3].Maturity)
	assert.Equal(t, 4, trades[0].LiveDates(dates))
	assert.Equal(t, 1, trades[1].LiveDates(dates))
}
