package valuation

import (
	"sort"

	"exposure-cube-lab/internal/domain"
)

// Partition spreads trades over at most workers groups. Trades are sorted by
// average pricing cost, most expensive first with ties broken by id, and
// dealt round robin so each group receives a similar load.
func Partition(trades []domain.TradeEnvelope, workers int) [][]domain.TradeEnvelope {
	n := min(workers, len(trades))
	if n <= 0 {
		return nil
	}
	sorted := make([]domain.TradeEnvelope, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AvgPricingCost != sorted[j].AvgPricingCost {
			return sorted[i].AvgPricingCost > sorted[j].AvgPricingCost
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	groups := make([][]domain.TradeEnvelope, n)
	for i, t := range sorted {
		groups[i%n] = append(groups[i%n], t)
	}
	return groups
}

// SampleRange is a half-open range [Start, End) of samples.
type SampleRange struct {
	Start int
	End   int
}

// Len returns the number of samples in the range.
func (r SampleRange) Len() int { return r.End - r.Start }

// SplitSamples divides [0, samples) into at most parts contiguous ranges
// whose sizes differ by at most one.
func SplitSamples(samples, parts int) []SampleRange {
	n := min(parts, samples)
	if n <= 0 {
		return nil
	}
	out := make([]SampleRange, n)
	size, extra := samples/n, samples%n
	start := 0
	for i := range out {
		end := start + size
		if i < extra {
			end++
		}
		out[i] = SampleRange{Start: start, End: end}
		start = end
	}
	return out
}
