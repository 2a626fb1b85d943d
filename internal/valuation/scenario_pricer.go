package valuation

import (
	"context"
	"fmt"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/sensitivity"
)

// ScenarioPricer fills a sensitivity cube with NPVs that are quadratic in the
// shifted factors:
//
//	npv = base + Σ a_f·x_f + Σ b_f·x_f² + Σ c_fg·x_f·x_g
//
// so central differences recover delta a_f, gamma 2·b_f and cross gamma c_fg
// exactly. Coefficients are derived from the trade id and factor keys.
type ScenarioPricer struct {
	seed      uint64
	scenarios []sensitivity.Scenario
	upShift   map[domain.RiskFactorKey]float64
}

// NewScenarioPricer builds a pricer for a cube whose sample k is scenarios[k].
func NewScenarioPricer(seed uint64, scenarios []sensitivity.Scenario) *ScenarioPricer {
	p := &ScenarioPricer{
		seed:      seed,
		scenarios: scenarios,
		upShift:   make(map[domain.RiskFactorKey]float64),
	}
	for _, s := range scenarios {
		if s.Description.Type == domain.ScenarioUp {
			if _, ok := p.upShift[s.Description.Key1]; !ok {
				p.upShift[s.Description.Key1] = s.ActualShift
			}
		}
	}
	return p
}

// Base returns the unshifted NPV of a trade.
func (p *ScenarioPricer) Base(tradeID string) float64 {
	return float64(tradeHash(tradeID)%2001) - 1000
}

// Delta returns the linear coefficient of a trade in key.
func (p *ScenarioPricer) Delta(tradeID string, key domain.RiskFactorKey) float64 {
	return p.coefficient(tradeID, key.String(), 200)
}

// Gamma returns the second derivative of a trade in key.
func (p *ScenarioPricer) Gamma(tradeID string, key domain.RiskFactorKey) float64 {
	return 2 * p.coefficient(tradeID, "gamma|"+key.String(), 50)
}

// CrossGamma returns the mixed derivative of a trade in (k1, k2).
func (p *ScenarioPricer) CrossGamma(tradeID string, k1, k2 domain.RiskFactorKey) float64 {
	if k2.Less(k1) {
		k1, k2 = k2, k1
	}
	return p.coefficient(tradeID, "cross|"+k1.String()+"|"+k2.String(), 20)
}

// coefficient maps (seed, trade, tag) onto an integer in [-scale, scale].
func (p *ScenarioPricer) coefficient(tradeID, tag string, scale uint64) float64 {
	h := tradeHash(fmt.Sprintf("%d|%s|%s", p.seed, tradeID, tag))
	return float64(h%(2*scale+1)) - float64(scale)
}

func (p *ScenarioPricer) shifted(tradeID string, key domain.RiskFactorKey, x float64) float64 {
	return p.Delta(tradeID, key)*x + p.Gamma(tradeID, key)/2*x*x
}

// Price implements Pricer.
func (p *ScenarioPricer) Price(ctx context.Context, job Job) error {
	c, idx, id := job.Cube, job.Index, job.Trade.TradeID
	if c.Samples() != len(p.scenarios) {
		return fmt.Errorf("cube has %d samples for %d scenarios", c.Samples(), len(p.scenarios))
	}
	base := p.Base(id)
	if err := c.SetT0(base, idx, 0); err != nil {
		return err
	}
	if c.NumDates() == 0 {
		return nil
	}
	for k, s := range p.scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := s.Description
		v := base
		switch d.Type {
		case domain.ScenarioUp:
			v += p.shifted(id, d.Key1, s.ActualShift)
		case domain.ScenarioDown:
			v += p.shifted(id, d.Key1, -s.ActualShift)
		case domain.ScenarioCross:
			x1, x2 := p.upShift[d.Key1], p.upShift[d.Key2]
			v += p.shifted(id, d.Key1, x1) + p.shifted(id, d.Key2, x2) + p.CrossGamma(id, d.Key1, d.Key2)*x1*x2
		}
		if err := c.Set(v, idx, 0, k, 0); err != nil {
			return err
		}
	}
	return nil
}
