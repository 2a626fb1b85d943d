package reporting

import "time"

// Report summarises one stored run.
type Report struct {
	GeneratedAt time.Time

	Cube CubeSummary

	// Netting sets sorted by id
	NettingSets []NettingSetSummary

	// Largest absolute deltas, sorted by |delta| desc, trade, factor
	TopSensitivities []SensitivityRow
	SensitivityCount int
	CrossGammaCount  int
}

// CubeSummary describes the stored cube of the run.
type CubeSummary struct {
	RunID       string
	Label       string
	Fingerprint string
	Asof        time.Time
	Layout      string
	Precision   string
	NumIDs      int
	NumDates    int
	Samples     int
	Depth       int
	SizeBytes   int
}

// NettingSetSummary condenses the DIM evolution of one netting set.
type NettingSetSummary struct {
	NettingSet string
	Steps      int
	InitialDIM float64 // expected DIM at the first step
	PeakDIM    float64
	PeakStep   int
	PeakDate   time.Time
	TotalFlow  float64 // sum of average flows over steps
}

// SensitivityRow is one entry of the top sensitivities table.
type SensitivityRow struct {
	TradeID string
	Factor  string
	Delta   float64
	Gamma   float64
}
