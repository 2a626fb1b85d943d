package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/storage"
)

// DefaultTopSensitivities is the size of the top sensitivities table.
const DefaultTopSensitivities = 10

// Generator produces run reports from stored data.
type Generator struct {
	cubeStore        storage.CubeStore
	evolutionStore   storage.DIMEvolutionStore
	sensitivityStore storage.SensitivityStore // optional
	top              int
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. sensitivityStore may be nil.
func NewGenerator(
	cubeStore storage.CubeStore,
	evolutionStore storage.DIMEvolutionStore,
	sensitivityStore storage.SensitivityStore,
) *Generator {
	return &Generator{
		cubeStore:        cubeStore,
		evolutionStore:   evolutionStore,
		sensitivityStore: sensitivityStore,
		top:              DefaultTopSensitivities,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTop sets the number of rows in the top sensitivities table.
func (g *Generator) WithTop(n int) *Generator {
	g.top = n
	return g
}

// Generate produces the report of run runID.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	return g.GenerateRun(ctx, runID, runID)
}

// GenerateRun produces the report of run runID with sensitivities read from
// sensitivityRunID, the run of a separately stored sensitivity cube.
func (g *Generator) GenerateRun(ctx context.Context, runID, sensitivityRunID string) (*Report, error) {
	rec, err := g.cubeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load cube %s: %w", runID, err)
	}

	r := &Report{
		GeneratedAt: g.now(),
		Cube: CubeSummary{
			RunID:       rec.RunID,
			Label:       rec.Label,
			Fingerprint: rec.Fingerprint,
			Asof:        rec.Asof,
			Layout:      rec.Layout,
			Precision:   rec.Precision,
			NumIDs:      rec.NumIDs,
			NumDates:    rec.NumDates,
			Samples:     rec.Samples,
			Depth:       rec.Depth,
			SizeBytes:   len(rec.Payload),
		},
	}

	if g.evolutionStore != nil {
		rows, err := g.evolutionStore.GetByRunID(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("load dim evolution: %w", err)
		}
		r.NettingSets = summariseNettingSets(rows)
	}

	if g.sensitivityStore != nil {
		sensi, err := g.sensitivityStore.GetByRunID(ctx, sensitivityRunID)
		if err != nil {
			return nil, fmt.Errorf("load sensitivities: %w", err)
		}
		cross, err := g.sensitivityStore.GetCrossGammaByRunID(ctx, sensitivityRunID)
		if err != nil {
			return nil, fmt.Errorf("load cross gammas: %w", err)
		}
		r.SensitivityCount = len(sensi)
		r.CrossGammaCount = len(cross)
		r.TopSensitivities = topSensitivities(sensi, g.top)
	}

	return r, nil
}

// summariseNettingSets condenses evolution rows per netting set.
func summariseNettingSets(rows []*domain.DIMEvolutionRow) []NettingSetSummary {
	byID := make(map[string]*NettingSetSummary)
	first := make(map[string]int)
	for _, row := range rows {
		s, ok := byID[row.NettingSet]
		if !ok {
			s = &NettingSetSummary{NettingSet: row.NettingSet, PeakStep: -1}
			byID[row.NettingSet] = s
			first[row.NettingSet] = math.MaxInt
		}
		s.Steps++
		s.TotalFlow += row.AverageFlow
		if row.TimeStep < first[row.NettingSet] {
			first[row.NettingSet] = row.TimeStep
			s.InitialDIM = row.AverageDIM
		}
		if s.PeakStep < 0 || row.AverageDIM > s.PeakDIM {
			s.PeakDIM = row.AverageDIM
			s.PeakStep = row.TimeStep
			s.PeakDate = row.Date
		}
	}

	out := make([]NettingSetSummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NettingSet < out[j].NettingSet })
	return out
}

// topSensitivities returns the n rows with the largest absolute delta.
func topSensitivities(records []*domain.SensitivityRecord, n int) []SensitivityRow {
	rows := make([]SensitivityRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, SensitivityRow{TradeID: r.TradeID, Factor: r.Factor, Delta: r.Delta, Gamma: r.Gamma})
	}
	sort.Slice(rows, func(i, j int) bool {
		ai, aj := math.Abs(rows[i].Delta), math.Abs(rows[j].Delta)
		if ai != aj {
			return ai > aj
		}
		if rows[i].TradeID != rows[j].TradeID {
			return rows[i].TradeID < rows[j].TradeID
		}
		return rows[i].Factor < rows[j].Factor
	})
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}
