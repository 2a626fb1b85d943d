package exposure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"exposure-cube-lab/internal/daycount"
	"exposure-cube-lab/internal/domain"
)

// DimEvolution returns one row per (netting set, date step), netting set
// major, with the expected DIM and the sample mean flow.
func (a *Aggregator) DimEvolution(runID string) ([]domain.DIMEvolutionRow, error) {
	if !a.built {
		return nil, ErrNotBuilt
	}
	loop := a.DatesLoopSize()
	rows := make([]domain.DIMEvolutionRow, 0, len(a.order)*loop)
	for _, id := range a.order {
		ns := a.sets[id]
		for j := 0; j < loop; j++ {
			rows = append(rows, domain.DIMEvolutionRow{
				RunID:        runID,
				TimeStep:     j,
				Date:         a.dates[j],
				DaysInPeriod: a.interp.MporCalendarDays(a.dates, j),
				AverageDIM:   ns.expectedDIM[j],
				AverageFlow:  stat.Mean(ns.flow[j], nil),
				NettingSet:   id,
				Time:         daycount.YearFraction(a.asof, a.dates[j], daycount.ActualActualISDA),
			})
		}
	}
	return rows, nil
}

// DimDistribution histograms the per-sample DIM of every (netting set, date
// step) into gridSize buckets spanning mean ± coveredStdDevs standard
// deviations. Samples outside the span are counted in the outer buckets, so
// counts always sum to Samples(). Bound is the bucket midpoint.
func (a *Aggregator) DimDistribution(runID string, gridSize int, coveredStdDevs float64) ([]domain.DIMDistributionRow, error) {
	if !a.built {
		return nil, ErrNotBuilt
	}
	if gridSize <= 0 {
		return nil, fmt.Errorf("%w: grid size %d", ErrInvalidInput, gridSize)
	}
	if coveredStdDevs <= 0 {
		return nil, fmt.Errorf("%w: covered std devs %g", ErrInvalidInput, coveredStdDevs)
	}

	loop := a.DatesLoopSize()
	rows := make([]domain.DIMDistributionRow, 0, len(a.order)*loop*gridSize)
	counts := make([]int, gridSize)
	for _, id := range a.order {
		ns := a.sets[id]
		for j := 0; j < loop; j++ {
			bounds := histogram(ns.dim[j], gridSize, coveredStdDevs, counts)
			for b := 0; b < gridSize; b++ {
				rows = append(rows, domain.DIMDistributionRow{
					RunID:      runID,
					NettingSet: id,
					TimeStep:   j,
					Date:       a.dates[j],
					Bound:      bounds[b],
					Count:      counts[b],
				})
			}
		}
	}
	return rows, nil
}

// histogram fills counts and returns the bucket midpoints. A degenerate
// distribution lands entirely in the middle bucket.
func histogram(values []float64, gridSize int, coveredStdDevs float64, counts []int) []float64 {
	for i := range counts {
		counts[i] = 0
	}
	bounds := make([]float64, gridSize)
	mean, variance := stat.PopMeanVariance(values, nil)
	std := math.Sqrt(variance)
	if nearZero(std) {
		for b := range bounds {
			bounds[b] = mean
		}
		counts[gridSize/2] = len(values)
		return bounds
	}

	lo := mean - coveredStdDevs*std
	width := 2 * coveredStdDevs * std / float64(gridSize)
	for b := range bounds {
		bounds[b] = lo + (float64(b)+0.5)*width
	}
	for _, v := range values {
		b := int(math.Floor((v - lo) / width))
		b = max(0, min(b, gridSize-1))
		counts[b]++
	}
	return bounds
}
