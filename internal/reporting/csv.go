package reporting

import (
	"fmt"
	"strings"

	"exposure-cube-lab/internal/domain"
)

const dateLayout = "2006-01-02"

// field quotes a value containing a separator, quote or newline.
func field(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// RenderDIMEvolutionCSV renders DIM evolution rows as CSV string.
// Rows are written in the given order.
func RenderDIMEvolutionCSV(rows []domain.DIMEvolutionRow) string {
	var sb strings.Builder

	sb.WriteString("TimeStep,Date,DaysInPeriod,AverageDIM,AverageFLOW,NettingSet,Time\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%d,%.6f,%.6f,%s,%.6f\n",
			r.TimeStep,
			r.Date.Format(dateLayout),
			r.DaysInPeriod,
			r.AverageDIM,
			r.AverageFlow,
			field(r.NettingSet),
			r.Time,
		))
	}

	return sb.String()
}

// RenderDIMDistributionCSV renders DIM histogram rows as CSV string.
func RenderDIMDistributionCSV(rows []domain.DIMDistributionRow) string {
	var sb strings.Builder

	sb.WriteString("NettingSet,TimeStep,Date,Bound,Count\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%.6f,%d\n",
			field(r.NettingSet),
			r.TimeStep,
			r.Date.Format(dateLayout),
			r.Bound,
			r.Count,
		))
	}

	return sb.String()
}

// RenderSensitivityCSV renders sensitivity rows as CSV string. A gamma that
// could not be computed is written as #N/A.
func RenderSensitivityCSV(rows []domain.SensitivityRecord) string {
	var sb strings.Builder

	sb.WriteString("TradeId,Factor,ShiftSize,Base NPV,Delta,Gamma\n")

	for _, r := range rows {
		gamma := "#N/A"
		if r.HasGamma {
			gamma = fmt.Sprintf("%.2f", r.Gamma)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%.6f,%.2f,%.2f,%s\n",
			field(r.TradeID),
			field(r.Factor),
			r.ShiftSize,
			r.BaseNPV,
			r.Delta,
			gamma,
		))
	}

	return sb.String()
}

// RenderCrossGammaCSV renders cross-gamma rows as CSV string.
func RenderCrossGammaCSV(rows []domain.CrossGammaRecord) string {
	var sb strings.Builder

	sb.WriteString("TradeId,Factor 1,ShiftSize1,Factor 2,ShiftSize2,Base NPV,CrossGamma\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%.6f,%s,%.6f,%.2f,%.2f\n",
			field(r.TradeID),
			field(r.Factor1),
			r.ShiftSize1,
			field(r.Factor2),
			r.ShiftSize2,
			r.BaseNPV,
			r.CrossGamma,
		))
	}

	return sb.String()
}

// RenderScenarioCSV renders scenario NPV rows as CSV string.
func RenderScenarioCSV(rows []domain.ScenarioNPVRecord) string {
	var sb strings.Builder

	sb.WriteString("TradeId,Factor,Up/Down,Base NPV,Scenario NPV,Difference\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.2f,%.2f,%.2f\n",
			field(r.TradeID),
			field(r.Factor),
			r.UpDown,
			r.BaseNPV,
			r.ScenarioNPV,
			r.Difference,
		))
	}

	return sb.String()
}
