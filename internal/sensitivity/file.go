package sensitivity

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"exposure-cube-lab/internal/domain"
)

// ScenarioFile is the YAML description of a sensitivity run's sample axis.
//
//	shift_type: Absolute
//	shifts:
//	  DiscountCurve/EUR/3: 0.0001
//	labels:
//	  DiscountCurve/EUR/3: EUR-EONIA/3/5Y
//	scenarios:
//	  - Base
//	  - Up:DiscountCurve/EUR/3
type ScenarioFile struct {
	ShiftType domain.ShiftType   `yaml:"shift_type"`
	Shifts    map[string]float64 `yaml:"shifts"`
	// ActualShifts overrides the realised shift per factor when it differs
	// from the requested one.
	ActualShifts map[string]float64 `yaml:"actual_shifts"`
	Labels       map[string]string  `yaml:"labels"`
	Scenarios    []string           `yaml:"scenarios"`
}

// ReadScenarioFile parses a scenario file and resolves its scenarios.
func ReadScenarioFile(r io.Reader) ([]Scenario, domain.ShiftType, error) {
	var f ScenarioFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, "", fmt.Errorf("%w: scenario file: %v", ErrInvalidInput, err)
	}
	return f.Resolve()
}

func parseKeyed[V any](m map[string]V) (map[domain.RiskFactorKey]V, error) {
	out := make(map[domain.RiskFactorKey]V, len(m))
	for s, v := range m {
		key, err := domain.ParseRiskFactorKey(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		out[key] = v
	}
	return out, nil
}

// Resolve converts the file into scenarios, applying labels and actual shifts.
func (f ScenarioFile) Resolve() ([]Scenario, domain.ShiftType, error) {
	shiftType := f.ShiftType
	switch shiftType {
	case "":
		shiftType = domain.ShiftAbsolute
	case domain.ShiftAbsolute, domain.ShiftRelative:
	default:
		return nil, "", fmt.Errorf("%w: unknown shift type %q", ErrInvalidInput, f.ShiftType)
	}
	if len(f.Scenarios) == 0 {
		return nil, "", fmt.Errorf("%w: no scenarios", ErrInvalidInput)
	}

	shifts, err := parseKeyed(f.Shifts)
	if err != nil {
		return nil, "", err
	}
	actual, err := parseKeyed(f.ActualShifts)
	if err != nil {
		return nil, "", err
	}
	labels, err := parseKeyed(f.Labels)
	if err != nil {
		return nil, "", err
	}

	scenarios, err := ParseScenarios(f.Scenarios, shifts)
	if err != nil {
		return nil, "", err
	}
	for i := range scenarios {
		d := &scenarios[i].Description
		d.IndexDesc1 = labels[d.Key1]
		if d.Type == domain.ScenarioCross {
			d.IndexDesc2 = labels[d.Key2]
		}
		if d.Type != domain.ScenarioUp && d.Type != domain.ScenarioDown {
			continue
		}
		if v, ok := actual[d.Key1]; ok {
			scenarios[i].ActualShift = v
		}
	}
	return scenarios, shiftType, nil
}
