package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyType is the market object a risk factor belongs to.
type KeyType string

// Risk factor key types
const (
	KeyDiscountCurve       KeyType = "DiscountCurve"
	KeyIndexCurve          KeyType = "IndexCurve"
	KeyYieldCurve          KeyType = "YieldCurve"
	KeyFXSpot              KeyType = "FXSpot"
	KeyFXVolatility        KeyType = "FXVolatility"
	KeySwaptionVolatility  KeyType = "SwaptionVolatility"
	KeyEquitySpot          KeyType = "EquitySpot"
	KeySurvivalProbability KeyType = "SurvivalProbability"
)

// RiskFactorKey identifies one shiftable market input: type, name (qualifier)
// and the tenor/strike bucket index.
type RiskFactorKey struct {
	Type  KeyType
	Name  string
	Index int
}

// String encodes the key as "<Type>/<Name>/<Index>".
func (k RiskFactorKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Type, k.Name, k.Index)
}

// Less orders keys by type, name, index.
func (k RiskFactorKey) Less(o RiskFactorKey) bool {
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	if k.Name != o.Name {
		return k.Name < o.Name
	}
	return k.Index < o.Index
}

// ParseRiskFactorKey parses the String form of a key. The name may itself
// contain '/', the type is the first field and the index the last.
func ParseRiskFactorKey(s string) (RiskFactorKey, error) {
	first := strings.Index(s, "/")
	last := strings.LastIndex(s, "/")
	if first <= 0 || last == first || last == len(s)-1 {
		return RiskFactorKey{}, fmt.Errorf("parse risk factor key %q: want <type>/<name>/<index>", s)
	}
	idx, err := strconv.Atoi(s[last+1:])
	if err != nil || idx < 0 {
		return RiskFactorKey{}, fmt.Errorf("parse risk factor key %q: bad index", s)
	}
	return RiskFactorKey{
		Type:  KeyType(s[:first]),
		Name:  s[first+1 : last],
		Index: idx,
	}, nil
}

// ShiftType tells how a shift was applied to the base market value.
type ShiftType string

// Shift types
const (
	ShiftAbsolute ShiftType = "Absolute"
	ShiftRelative ShiftType = "Relative"
)
