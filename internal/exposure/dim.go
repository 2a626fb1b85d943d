package exposure

import (
	"fmt"
	"math"
	"sort"

	"exposure-cube-lab/internal/daycount"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DIMConfig parameterises the DIM calculation.
type DIMConfig struct {
	Quantile            float64 // Default: 0.99
	HorizonCalendarDays int     // Default: 14
	RegressionOrder     int     // Default: 2
	// CurrentIM maps netting sets to their current initial margin. DIM of a
	// listed netting set is scaled so its T0 estimate matches.
	CurrentIM map[string]float64
}

// DefaultDIMConfig returns a 99% ten business day (14 calendar day) DIM with
// quadratic regression.
func DefaultDIMConfig() DIMConfig {
	return DIMConfig{Quantile: 0.99, HorizonCalendarDays: 14, RegressionOrder: 2}
}

func (c DIMConfig) withDefaults() DIMConfig {
	d := DefaultDIMConfig()
	if c.Quantile == 0 {
		c.Quantile = d.Quantile
	}
	if c.HorizonCalendarDays == 0 {
		c.HorizonCalendarDays = d.HorizonCalendarDays
	}
	if c.RegressionOrder == 0 {
		c.RegressionOrder = d.RegressionOrder
	}
	return c
}

func (c DIMConfig) validate(samples int) error {
	if c.Quantile <= 0 || c.Quantile >= 1 {
		return fmt.Errorf("%w: quantile %g outside (0, 1)", ErrInvalidInput, c.Quantile)
	}
	if c.HorizonCalendarDays < 0 {
		return fmt.Errorf("%w: negative horizon %d", ErrInvalidInput, c.HorizonCalendarDays)
	}
	if c.RegressionOrder < 0 {
		return fmt.Errorf("%w: negative regression order %d", ErrInvalidInput, c.RegressionOrder)
	}
	if samples <= c.RegressionOrder+1 {
		return fmt.Errorf("%w: %d samples not enough for regression order %d", ErrInvalidInput, samples, c.RegressionOrder)
	}
	return nil
}

// nearZero reports a standard deviation indistinguishable from zero.
func nearZero(std float64) bool {
	return std <= 1e-12
}

// computeDIM fills deltaNPV, dim and the per-date DIM vectors of ns.
func (a *Aggregator) computeDIM(ns *nettingSet) error {
	loop := a.DatesLoopSize()
	n := a.samples
	conf := distuv.UnitNormal.Quantile(a.dimCfg.Quantile)
	simpleIdx := int(math.Floor(a.dimCfg.Quantile*float64(n-1) + 0.5))

	ns.dim = newMatrix(len(a.dates), n)
	ns.expectedDIM = make([]float64, len(a.dates))
	ns.zeroOrderDIM = make([]float64, len(a.dates))
	ns.simpleDIM = make([]float64, len(a.dates))

	if im, ok := a.dimCfg.CurrentIM[ns.id]; ok {
		ns.t0DIM = a.t0DIM(ns, conf)
		if ns.t0DIM > 0 {
			ns.scaling = im / ns.t0DIM
		} else {
			a.logger.Printf("[dim] netting set %s: model t0 dim is zero, current im %.2f ignored", ns.id, im)
		}
	} else if loop > 0 {
		ns.t0DIM = a.t0DIM(ns, conf)
	}

	invNum := make([]float64, n)
	sorted := make([]float64, n)
	for j := 0; j < loop; j++ {
		z := ns.deltaNPV[j]
		for k := 0; k < n; k++ {
			numDef := a.data.Numeraire(j, k)
			numCO := a.interp.closeOutNumeraire(a.data, j, k)
			z[k] = ns.closeOut[j][k]*numCO + ns.flow[j][k]*numDef - ns.npv[j][k]*numDef
			invNum[k] = 1 / numDef
		}

		mpor := a.interp.MporCalendarDays(a.dates, j)
		if mpor <= 0 {
			return fmt.Errorf("%w: non-positive margin period at date %d", ErrInvalidInput, j)
		}
		horizonScaling := math.Sqrt(float64(a.dimCfg.HorizonCalendarDays) / float64(mpor))
		eInvNum := stat.Mean(invNum, nil)
		std := math.Sqrt(stat.PopVariance(z, nil))

		ns.zeroOrderDIM[j] = std * horizonScaling * conf * eInvNum

		copy(sorted, z)
		sort.Float64s(sorted)
		ns.simpleDIM[j] = sorted[simpleIdx] * horizonScaling * eInvNum

		if nearZero(std) {
			continue
		}

		y := make([]float64, n)
		for k, v := range z {
			y[k] = v * v
		}
		fit, err := fitPolynomial(ns.npv[j], y, a.dimCfg.RegressionOrder)
		if err != nil {
			return fmt.Errorf("regression at date %d: %w", j, err)
		}
		scale := horizonScaling * conf * ns.scaling
		row := ns.dim[j]
		for k := 0; k < n; k++ {
			e := fit.eval(ns.npv[j][k])
			row[k] = math.Sqrt(math.Max(e, 0)) * scale / a.data.Numeraire(j, k)
		}
		ns.expectedDIM[j] = floats.Sum(row) / float64(n)
	}
	return nil
}

// t0DIM proxies the model implied T0 IM from the netting set value
// distribution at the grid date closest to asof + horizon.
func (a *Aggregator) t0DIM(ns *nettingSet, conf float64) float64 {
	idx, days := a.horizonDate()
	if idx < 0 || days <= 0 {
		return 0
	}
	timeScaling := math.Sqrt(float64(a.dimCfg.HorizonCalendarDays) / float64(days))
	if timeScaling < math.Sqrt(0.5) || timeScaling > math.Sqrt(2) {
		a.logger.Printf("[dim] netting set %s: grid date %d days out is far from the %d day horizon, t0 im estimate may be inaccurate",
			ns.id, days, a.dimCfg.HorizonCalendarDays)
	}

	dist := ns.npv[idx]
	mean := stat.Mean(dist, nil)
	diffs := make([]float64, len(dist))
	invNum := make([]float64, len(dist))
	for k, v := range dist {
		num := a.data.Numeraire(idx, k)
		diffs[k] = num * (v - mean) * timeScaling
		invNum[k] = 1 / num
	}
	return math.Sqrt(stat.PopVariance(diffs, nil)) * conf * stat.Mean(invNum, nil)
}

// horizonDate returns the grid index closest to asof + horizon and its
// distance from asof in days. Ties resolve to the later date.
func (a *Aggregator) horizonDate() (int, int) {
	best, bestDays := -1, 0
	h := a.dimCfg.HorizonCalendarDays
	for i, d := range a.dates {
		days := daycount.Days(a.asof, d)
		if best < 0 || abs(days-h) <= abs(bestDays-h) {
			best, bestDays = i, days
		}
		if days >= h {
			break
		}
	}
	return best, bestDays
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
