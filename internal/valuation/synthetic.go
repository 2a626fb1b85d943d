package valuation

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"exposure-cube-lab/internal/daycount"
)

// SyntheticPricer simulates trade values as driftless random walks. Values
// depend only on the seed, trade id and global sample index, so any
// partitioning of trades or samples yields the same cube.
type SyntheticPricer struct {
	Seed       uint64
	Volatility float64 // absolute, per year
	// MporDays > 0 also writes a close-out value at depth 1 and a flow at
	// depth 2, as expected by a close-out-lag interpretation.
	MporDays int
}

// Price implements Pricer.
func (p SyntheticPricer) Price(ctx context.Context, job Job) error {
	c, idx := job.Cube, job.Index
	h := tradeHash(job.Trade.TradeID)
	base := float64(h%2001) - 1000
	if err := c.SetT0(base, idx, 0); err != nil {
		return err
	}

	dates := c.Dates()
	live := job.Trade.LiveDates(dates)
	mporVol := p.Volatility * math.Sqrt(float64(p.MporDays)/365)
	for k := 0; k < c.Samples(); k++ {
		if k%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rng := rand.New(rand.NewPCG(p.Seed^h, uint64(job.SampleOffset+k)))
		v, prev := base, c.Asof()
		for j := 0; j < live; j++ {
			dt := daycount.YearFraction(prev, dates[j], daycount.Actual365Fixed)
			v += p.Volatility * math.Sqrt(dt) * rng.NormFloat64()
			if err := c.Set(v, idx, j, k, 0); err != nil {
				return err
			}
			if p.MporDays > 0 {
				if err := c.Set(v+mporVol*rng.NormFloat64(), idx, j, k, 1); err != nil {
					return err
				}
				// coupon-like flow on every fourth date
				if j%4 == 3 {
					if err := c.Set(base*0.01, idx, j, k, 2); err != nil {
						return err
					}
				}
			}
			prev = dates[j]
		}
	}
	return nil
}

func tradeHash(id string) uint64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(id))
	return f.Sum64()
}
