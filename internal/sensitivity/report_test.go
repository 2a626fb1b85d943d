package sensitivity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposure-cube-lab/internal/domain"
)

func TestScenarioReport(t *testing.T) {
	x := standardIndex(t)

	rows := x.ScenarioReport(0.6)
	// T1: IR up/down differ by 1, FX up by 0.5; T2: FX up by 1
	require.Len(t, rows, 3)
	assert.Equal(t, "T1", rows[0].TradeID)
	assert.Equal(t, irKey.String(), rows[0].Factor)
	assert.Equal(t, domain.ScenarioUp, rows[0].UpDown)
	assert.InDelta(t, 1, rows[0].Difference, 1e-12)
	assert.Equal(t, domain.ScenarioDown, rows[1].UpDown)
	assert.InDelta(t, -1, rows[1].Difference, 1e-12)
	assert.Equal(t, "T2", rows[2].TradeID)
	assert.Equal(t, fxKey.String(), rows[2].Factor)
}

func TestSensitivityReport(t *testing.T) {
	x := standardIndex(t)

	rows := x.SensitivityReport("run-1", 1e-9)
	require.Len(t, rows, 3)

	assert.Equal(t, "T1", rows[0].TradeID)
	assert.Equal(t, irKey.String(), rows[0].Factor)
	assert.InDelta(t, 10000, rows[0].Delta, 1e-6)
	assert.True(t, rows[0].HasGamma)
	assert.Equal(t, 0.0001, rows[0].ShiftSize)
	assert.Equal(t, 100.0, rows[0].BaseNPV)

	assert.Equal(t, fxKey.String(), rows[1].Factor)
	assert.False(t, rows[1].HasGamma)

	assert.Equal(t, "T2", rows[2].TradeID)
	assert.InDelta(t, 100, rows[2].Delta, 1e-9)
	assert.Equal(t, "run-1", rows[2].RunID)
}

func TestCrossGammaReport(t *testing.T) {
	x := standardIndex(t)

	rows := x.CrossGammaReport("run-1", 1e-9)
	// T2: (-49 - (-50) - (-49) + (-50)) = 0
	require.Len(t, rows, 1)
	assert.Equal(t, "T1", rows[0].TradeID)
	assert.Equal(t, irKey.String(), rows[0].Factor1)
	assert.Equal(t, fxKey.String(), rows[0].Factor2)
	assert.InDelta(t, 200000, rows[0].CrossGamma, 1e-3)
}
