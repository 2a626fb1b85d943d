package sensitivity

import (
	"math"

	"exposure-cube-lab/internal/domain"
)

// ScenarioReport lists, per trade, every up and down scenario whose NPV
// differs from the base by more than threshold in absolute value.
func (x *Index) ScenarioReport(threshold float64) []domain.ScenarioNPVRecord {
	ids := x.cube.IDsAndIndexes()
	ups, downs := x.UpFactors(), x.DownFactors()
	var out []domain.ScenarioNPVRecord
	for i := 0; i < ids.Len(); i++ {
		base := x.cube.GetT0(i, 0)
		emit := func(e FactorEntry, dir domain.ScenarioType) {
			npv := x.npv(i, e.Data.Index)
			diff := npv - base
			if math.Abs(diff) <= threshold {
				return
			}
			out = append(out, domain.ScenarioNPVRecord{
				TradeID:     ids.ID(i),
				Factor:      e.Data.Description,
				UpDown:      dir,
				BaseNPV:     base,
				ScenarioNPV: npv,
				Difference:  diff,
			})
		}
		for _, e := range ups {
			emit(e, domain.ScenarioUp)
		}
		for _, e := range downs {
			emit(e, domain.ScenarioDown)
		}
	}
	return out
}

// SensitivityReport lists delta and gamma per trade and relevant factor,
// skipping rows where both are within threshold of zero.
func (x *Index) SensitivityReport(runID string, threshold float64) []domain.SensitivityRecord {
	ids := x.cube.IDsAndIndexes()
	factors := x.RelevantRiskFactors()
	var out []domain.SensitivityRecord
	for i := 0; i < ids.Len(); i++ {
		base := x.cube.GetT0(i, 0)
		for _, key := range factors {
			delta, _ := x.Delta(i, key)
			gamma, err := x.Gamma(i, key)
			hasGamma := err == nil
			if math.Abs(delta) <= threshold && (!hasGamma || math.Abs(gamma) <= threshold) {
				continue
			}
			shift, label := x.shiftOf(key)
			out = append(out, domain.SensitivityRecord{
				RunID:     runID,
				TradeID:   ids.ID(i),
				Factor:    label,
				ShiftSize: shift,
				BaseNPV:   base,
				Delta:     delta,
				Gamma:     gamma,
				HasGamma:  hasGamma,
			})
		}
	}
	return out
}

func (x *Index) shiftOf(key domain.RiskFactorKey) (float64, string) {
	if d, ok := x.upFactors[key]; ok {
		return d.ActualShift, d.Description
	}
	d := x.downFactors[key]
	return d.ActualShift, d.Description
}

// CrossGammaReport lists the cross gamma per trade and cross pair, skipping
// values within threshold of zero.
func (x *Index) CrossGammaReport(runID string, threshold float64) []domain.CrossGammaRecord {
	ids := x.cube.IDsAndIndexes()
	crosses := x.CrossFactors()
	var out []domain.CrossGammaRecord
	for i := 0; i < ids.Len(); i++ {
		base := x.cube.GetT0(i, 0)
		for _, cf := range crosses {
			cg, err := x.CrossGamma(i, cf.Key1, cf.Key2)
			if err != nil || math.Abs(cg) <= threshold {
				continue
			}
			out = append(out, domain.CrossGammaRecord{
				RunID:      runID,
				TradeID:    ids.ID(i),
				Factor1:    cf.Data1.Description,
				ShiftSize1: cf.Data1.ActualShift,
				Factor2:    cf.Data2.Description,
				ShiftSize2: cf.Data2.ActualShift,
				BaseNPV:    base,
				CrossGamma: cg,
			})
		}
	}
	return out
}
