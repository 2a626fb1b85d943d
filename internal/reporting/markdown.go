package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Exposure Run Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Cube
	c := r.Cube
	sb.WriteString("## Cube\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run | %s |\n", c.RunID))
	sb.WriteString(fmt.Sprintf("| Label | %s |\n", c.Label))
	sb.WriteString(fmt.Sprintf("| Fingerprint | %s |\n", c.Fingerprint))
	sb.WriteString(fmt.Sprintf("| As of | %s |\n", c.Asof.Format(dateLayout)))
	sb.WriteString(fmt.Sprintf("| Layout | %s / %s |\n", c.Layout, c.Precision))
	sb.WriteString(fmt.Sprintf("| Shape | %d ids x %d dates x %d samples x depth %d |\n", c.NumIDs, c.NumDates, c.Samples, c.Depth))
	sb.WriteString(fmt.Sprintf("| Encoded size | %d bytes |\n", c.SizeBytes))
	sb.WriteString("\n")

	// DIM
	sb.WriteString("## Dynamic Initial Margin\n\n")
	if len(r.NettingSets) > 0 {
		sb.WriteString("| Netting Set | Steps | Initial DIM | Peak DIM | Peak Step | Peak Date | Total Flow |\n")
		sb.WriteString("|-------------|-------|-------------|----------|-----------|-----------|------------|\n")
		for _, ns := range r.NettingSets {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f | %d | %s | %.2f |\n",
				ns.NettingSet, ns.Steps, ns.InitialDIM, ns.PeakDIM, ns.PeakStep,
				ns.PeakDate.Format(dateLayout), ns.TotalFlow))
		}
	} else {
		sb.WriteString("No DIM evolution available.\n")
	}
	sb.WriteString("\n")

	// Sensitivities
	sb.WriteString("## Sensitivities\n\n")
	sb.WriteString(fmt.Sprintf("Sensitivity rows: %d | Cross-gamma rows: %d\n\n", r.SensitivityCount, r.CrossGammaCount))
	if len(r.TopSensitivities) > 0 {
		sb.WriteString("| Trade | Factor | Delta | Gamma |\n")
		sb.WriteString("|-------|--------|-------|-------|\n")
		for _, s := range r.TopSensitivities {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f | %.2f |\n", s.TradeID, s.Factor, s.Delta, s.Gamma))
		}
	} else {
		sb.WriteString("No sensitivities available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
