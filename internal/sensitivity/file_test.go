package sensitivity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposure-cube-lab/internal/domain"
)

const scenarioYAML = `
shift_type: Relative
shifts:
  DiscountCurve/EUR/3: 0.0001
  FXSpot/USDEUR/0: 0.01
actual_shifts:
  FXSpot/USDEUR/0: 0.0099
labels:
  DiscountCurve/EUR/3: EUR-EONIA/3/5Y
scenarios:
  - Base
  - Up:DiscountCurve/EUR/3
  - Down:DiscountCurve/EUR/3
  - Up:FXSpot/USDEUR/0
  - Cross:DiscountCurve/EUR/3:FXSpot/USDEUR/0
`

func TestReadScenarioFile(t *testing.T) {
	scenarios, shiftType, err := ReadScenarioFile(strings.NewReader(scenarioYAML))
	require.NoError(t, err)
	require.Len(t, scenarios, 5)

	assert.Equal(t, domain.ShiftRelative, shiftType)
	assert.Equal(t, domain.ScenarioBase, scenarios[0].Description.Type)

	up := scenarios[1]
	assert.Equal(t, irKey, up.Description.Key1)
	assert.Equal(t, "EUR-EONIA/3/5Y", up.Description.IndexDesc1)
	assert.Equal(t, 0.0001, up.ActualShift)

	fx := scenarios[3]
	assert.Equal(t, 0.01, fx.TargetShift)
	assert.Equal(t, 0.0099, fx.ActualShift)

	cross := scenarios[4]
	assert.Equal(t, domain.ScenarioCross, cross.Description.Type)
	assert.Equal(t, "EUR-EONIA/3/5Y", cross.Description.IndexDesc1)
	assert.Empty(t, cross.Description.IndexDesc2)
}

func TestReadScenarioFile_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":   "scenario: [Base]\n",
		"no scenarios":    "shifts: {}\n",
		"bad shift type":  "shift_type: Log\nscenarios: [Base]\n",
		"bad shift key":   "shifts: {EUR: 0.1}\nscenarios: [Base]\n",
		"bad description": "scenarios: [Sideways]\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadScenarioFile(strings.NewReader(in))
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}

	_, _, err := ReadScenarioFile(strings.NewReader("scenarios: [Base, Up:FXSpot/USDEUR/0]\n"))
	assert.ErrorIs(t, err, ErrMissingShiftSize)
}
