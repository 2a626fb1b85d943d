package sensitivity

import (
	"fmt"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
)

// ParseScenarios converts string scenario descriptions into scenarios, taking
// each shifted factor's size from shifts. Target and actual shift are equal.
func ParseScenarios(descriptions []string, shifts map[domain.RiskFactorKey]float64) ([]Scenario, error) {
	out := make([]Scenario, len(descriptions))
	for i, s := range descriptions {
		d, err := domain.ParseShiftScenarioDescription(s)
		if err != nil {
			return nil, fmt.Errorf("%w: scenario %d: %v", ErrInvalidInput, i, err)
		}
		out[i] = Scenario{Description: d}
		if d.Type != domain.ScenarioUp && d.Type != domain.ScenarioDown {
			continue
		}
		size, ok := shifts[d.Key1]
		if !ok {
			return nil, fmt.Errorf("%w: scenario %d (%s)", ErrMissingShiftSize, i, s)
		}
		out[i].TargetShift = size
		out[i].ActualShift = size
	}
	return out, nil
}

// NewFromStrings is New over string scenario descriptions.
func NewFromStrings(c cube.Cube, descriptions []string, shifts map[domain.RiskFactorKey]float64, shiftType domain.ShiftType) (*Index, error) {
	scenarios, err := ParseScenarios(descriptions, shifts)
	if err != nil {
		return nil, err
	}
	return New(c, scenarios, shiftType)
}
