package domain

import "time"

// DIMEvolutionRow is one row of the DIM evolution report, one per
// (netting set, time step).
type DIMEvolutionRow struct {
	RunID        string
	TimeStep     int
	Date         time.Time
	DaysInPeriod int     // margin period of risk in calendar days
	AverageDIM   float64 // expected DIM over samples
	AverageFlow  float64 // mean realised flow over samples
	NettingSet   string
	Time         float64 // year fraction from asof (Actual/Actual ISDA)
}

// DIMDistributionRow is one histogram bucket of the cross-sectional DIM
// distribution for a (netting set, time step).
type DIMDistributionRow struct {
	RunID      string
	NettingSet string
	TimeStep   int
	Date       time.Time
	Bound      float64 // bucket mid point
	Count      int
}
