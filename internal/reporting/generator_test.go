package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/storage"
	"exposure-cube-lab/internal/storage/memory"
)

func setupTestData(t *testing.T) (*memory.CubeStore, *memory.DIMEvolutionStore, *memory.SensitivityStore) {
	t.Helper()
	ctx := context.Background()
	asof := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cubes := memory.NewCubeStore()
	if err := cubes.Insert(ctx, &domain.CubeRecord{
		RunID: "run-1", Label: "exposure", Fingerprint: "fp", Asof: asof,
		Layout: "jagged", Precision: "single",
		NumIDs: 3, NumDates: 4, Samples: 100, Depth: 3,
		Payload: make([]byte, 256), CreatedAt: asof,
	}); err != nil {
		t.Fatalf("Insert cube failed: %v", err)
	}

	evolution := memory.NewDIMEvolutionStore()
	var rows []*domain.DIMEvolutionRow
	for step, dim := range []float64{100, 140, 120} {
		rows = append(rows, &domain.DIMEvolutionRow{
			RunID: "run-1", NettingSet: "NS_B", TimeStep: step,
			Date: asof.AddDate(0, 0, 14*(step+1)), DaysInPeriod: 14,
			AverageDIM: dim, AverageFlow: 1,
		})
	}
	rows = append(rows, &domain.DIMEvolutionRow{RunID: "run-1", NettingSet: "NS_A", TimeStep: 0, Date: asof.AddDate(0, 0, 14), AverageDIM: 5})
	if err := evolution.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("Insert evolution failed: %v", err)
	}

	sensi := memory.NewSensitivityStore()
	if err := sensi.InsertBulk(ctx, []*domain.SensitivityRecord{
		{RunID: "run-1", TradeID: "T1", Factor: "F/A/0", Delta: 3},
		{RunID: "run-1", TradeID: "T2", Factor: "F/A/0", Delta: -50},
		{RunID: "run-1", TradeID: "T1", Factor: "F/B/0", Delta: 10},
	}); err != nil {
		t.Fatalf("Insert sensitivities failed: %v", err)
	}
	if err := sensi.InsertCrossGammaBulk(ctx, []*domain.CrossGammaRecord{
		{RunID: "run-1", TradeID: "T1", Factor1: "F/A/0", Factor2: "F/B/0", CrossGamma: 1},
	}); err != nil {
		t.Fatalf("Insert cross gamma failed: %v", err)
	}

	return cubes, evolution, sensi
}

func TestGenerate(t *testing.T) {
	cubes, evolution, sensi := setupTestData(t)
	fixed := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	r, err := NewGenerator(cubes, evolution, sensi).
		WithClock(func() time.Time { return fixed }).
		WithTop(2).
		Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !r.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt = %v, want %v", r.GeneratedAt, fixed)
	}
	if r.Cube.SizeBytes != 256 || r.Cube.Layout != "jagged" {
		t.Errorf("Unexpected cube summary: %+v", r.Cube)
	}

	if len(r.NettingSets) != 2 || r.NettingSets[0].NettingSet != "NS_A" {
		t.Fatalf("Unexpected netting sets: %+v", r.NettingSets)
	}
	b := r.NettingSets[1]
	if b.Steps != 3 || b.InitialDIM != 100 || b.PeakDIM != 140 || b.PeakStep != 1 || b.TotalFlow != 3 {
		t.Errorf("Unexpected NS_B summary: %+v", b)
	}

	if r.SensitivityCount != 3 || r.CrossGammaCount != 1 {
		t.Errorf("Unexpected counts: %d, %d", r.SensitivityCount, r.CrossGammaCount)
	}
	if len(r.TopSensitivities) != 2 || r.TopSensitivities[0].TradeID != "T2" || r.TopSensitivities[1].Factor != "F/B/0" {
		t.Errorf("Unexpected top sensitivities: %+v", r.TopSensitivities)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cubes, evolution, sensi := setupTestData(t)
	fixed := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator(cubes, evolution, sensi).WithClock(func() time.Time { return fixed })

	r1, err := gen.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	r2, err := gen.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if RenderMarkdown(r1) != RenderMarkdown(r2) {
		t.Error("Markdown output is not deterministic")
	}
}

func TestGenerateRun_SeparateSensitivityRun(t *testing.T) {
	cubes, evolution, sensi := setupTestData(t)

	r, err := NewGenerator(cubes, evolution, sensi).GenerateRun(context.Background(), "run-1", "run-2")
	if err != nil {
		t.Fatalf("GenerateRun failed: %v", err)
	}
	if len(r.NettingSets) != 2 {
		t.Errorf("Expected netting sets of run-1, got %+v", r.NettingSets)
	}
	if r.SensitivityCount != 0 || len(r.TopSensitivities) != 0 {
		t.Errorf("Expected no sensitivities for run-2, got %d", r.SensitivityCount)
	}
}

func TestGenerate_MissingRun(t *testing.T) {
	cubes, evolution, _ := setupTestData(t)
	_, err := NewGenerator(cubes, evolution, nil).Generate(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRenderMarkdown_Sections(t *testing.T) {
	cubes, _, _ := setupTestData(t)
	r, err := NewGenerator(cubes, nil, nil).Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(r)
	for _, section := range []string{"# Exposure Run Report", "## Cube", "## Dynamic Initial Margin", "## Sensitivities"} {
		if !strings.Contains(md, section) {
			t.Errorf("Missing section %q", section)
		}
	}
	if !strings.Contains(md, "No DIM evolution available.") || !strings.Contains(md, "No sensitivities available.") {
		t.Error("Expected empty-state messages")
	}
	if !strings.Contains(md, "3 ids x 4 dates x 100 samples x depth 3") {
		t.Error("Missing cube shape")
	}
}
