package domain

import (
	"fmt"
	"strings"
)

// ScenarioType classifies a sensitivity scenario row.
type ScenarioType string

// Scenario types
const (
	ScenarioBase  ScenarioType = "Base"
	ScenarioUp    ScenarioType = "Up"
	ScenarioDown  ScenarioType = "Down"
	ScenarioCross ScenarioType = "Cross"
)

// ShiftScenarioDescription identifies one scenario row of a sensitivity run.
// Key1 is set for Up, Down and Cross; Key2 only for Cross.
type ShiftScenarioDescription struct {
	Type ScenarioType
	Key1 RiskFactorKey
	Key2 RiskFactorKey

	// IndexDesc1/IndexDesc2 are optional human-readable labels of the shifted
	// points, e.g. "EUR-EURIBOR-6M/3/5Y".
	IndexDesc1 string
	IndexDesc2 string
}

// BaseScenario returns the description of the unshifted scenario.
func BaseScenario() ShiftScenarioDescription {
	return ShiftScenarioDescription{Type: ScenarioBase}
}

// UpScenario returns the description of an up shift of key.
func UpScenario(key RiskFactorKey) ShiftScenarioDescription {
	return ShiftScenarioDescription{Type: ScenarioUp, Key1: key}
}

// DownScenario returns the description of a down shift of key.
func DownScenario(key RiskFactorKey) ShiftScenarioDescription {
	return ShiftScenarioDescription{Type: ScenarioDown, Key1: key}
}

// CrossScenario returns the description of a joint up shift of two keys.
func CrossScenario(key1, key2 RiskFactorKey) ShiftScenarioDescription {
	return ShiftScenarioDescription{Type: ScenarioCross, Key1: key1, Key2: key2}
}

// String encodes the description as "Base", "Up:<key>", "Down:<key>" or
// "Cross:<key1>:<key2>".
func (d ShiftScenarioDescription) String() string {
	switch d.Type {
	case ScenarioUp, ScenarioDown:
		return string(d.Type) + ":" + d.Key1.String()
	case ScenarioCross:
		return string(d.Type) + ":" + d.Key1.String() + ":" + d.Key2.String()
	default:
		return string(ScenarioBase)
	}
}

// Factor1 returns the label of the first factor, including the index description if any.
func (d ShiftScenarioDescription) Factor1() string {
	return factorLabel(d.Key1, d.IndexDesc1)
}

// Factor2 returns the label of the second factor, empty unless Cross.
func (d ShiftScenarioDescription) Factor2() string {
	if d.Type != ScenarioCross {
		return ""
	}
	return factorLabel(d.Key2, d.IndexDesc2)
}

func factorLabel(k RiskFactorKey, desc string) string {
	if desc == "" {
		return k.String()
	}
	return k.String() + "/" + desc
}

// ParseShiftScenarioDescription parses the String form of a description.
func ParseShiftScenarioDescription(s string) (ShiftScenarioDescription, error) {
	s = strings.TrimSpace(s)
	if s == string(ScenarioBase) {
		return BaseScenario(), nil
	}

	parts := strings.Split(s, ":")
	switch ScenarioType(parts[0]) {
	case ScenarioUp, ScenarioDown:
		if len(parts) != 2 {
			return ShiftScenarioDescription{}, fmt.Errorf("parse scenario %q: expected 2 fields, got %d", s, len(parts))
		}
		key, err := ParseRiskFactorKey(parts[1])
		if err != nil {
			return ShiftScenarioDescription{}, fmt.Errorf("parse scenario %q: %w", s, err)
		}
		return ShiftScenarioDescription{Type: ScenarioType(parts[0]), Key1: key}, nil
	case ScenarioCross:
		if len(parts) != 3 {
			return ShiftScenarioDescription{}, fmt.Errorf("parse scenario %q: expected 3 fields, got %d", s, len(parts))
		}
		k1, err := ParseRiskFactorKey(parts[1])
		if err != nil {
			return ShiftScenarioDescription{}, fmt.Errorf("parse scenario %q: %w", s, err)
		}
		k2, err := ParseRiskFactorKey(parts[2])
		if err != nil {
			return ShiftScenarioDescription{}, fmt.Errorf("parse scenario %q: %w", s, err)
		}
		return CrossScenario(k1, k2), nil
	default:
		return ShiftScenarioDescription{}, fmt.Errorf("parse scenario %q: unknown type %q", s, parts[0])
	}
}
