package domain

import "time"

// TradeEnvelope carries the per-trade data the cube layers need from the portfolio.
// Valuation itself happens elsewhere; this is only the envelope.
type TradeEnvelope struct {
	TradeID      string    // unique trade identifier
	TradeType    string    // e.g. "Swap", "FxForward"; drives depth policies
	NettingSetID string    // netting set the trade belongs to
	Maturity     time.Time // last date with a live valuation; zero means unbounded

	// AvgPricingCost is the average wall time of one pricing call (ns).
	// Used only for load balancing across valuation workers.
	AvgPricingCost float64
}

// LiveDates returns the number of grid dates strictly before the trade maturity.
// A zero maturity means the trade is live on every grid date.
func (t TradeEnvelope) LiveDates(dates []time.Time) int {
	if t.Maturity.IsZero() {
		return len(dates)
	}
	n := 0
	for _, d := range dates {
		if !d.Before(t.Maturity) {
			break
		}
		n++
	}
	return n
}
