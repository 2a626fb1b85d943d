package domain

// FactorData describes the scenario row that realises one shift of a risk factor.
type FactorData struct {
	Index       int     // scenario row in the sensitivity cube
	TargetShift float64 // requested shift size
	ActualShift float64 // realised shift size, used as the finite-difference step
	ShiftType   ShiftType
	Description string
}

// SensitivityRecord is one row of the sensitivity report.
type SensitivityRecord struct {
	RunID     string
	TradeID   string
	Factor    string // RiskFactorKey string form
	ShiftSize float64
	BaseNPV   float64
	Delta     float64
	Gamma     float64
	HasGamma  bool // false when only one side of the shift was generated
}

// CrossGammaRecord is one row of the cross-gamma report.
type CrossGammaRecord struct {
	RunID      string
	TradeID    string
	Factor1    string
	ShiftSize1 float64
	Factor2    string
	ShiftSize2 float64
	BaseNPV    float64
	CrossGamma float64
}

// ScenarioNPVRecord is one row of the scenario report: the NPV of a trade
// under one shifted scenario compared with the base.
type ScenarioNPVRecord struct {
	TradeID     string
	Factor      string
	UpDown      ScenarioType
	BaseNPV     float64
	ScenarioNPV float64
	Difference  float64
}
