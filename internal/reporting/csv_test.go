package reporting

import (
	"strings"
	"testing"
	"time"

	"exposure-cube-lab/internal/domain"
)

func TestRenderDIMEvolutionCSV(t *testing.T) {
	rows := []domain.DIMEvolutionRow{
		{TimeStep: 0, Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), DaysInPeriod: 14, AverageDIM: 1234.5678912, AverageFlow: -0.5, NettingSet: "CPTY_A", Time: 0.038251},
		{TimeStep: 1, Date: time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC), DaysInPeriod: 14, AverageDIM: 0, NettingSet: "CPTY, B", Time: 0.076503},
	}

	got := RenderDIMEvolutionCSV(rows)
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "TimeStep,Date,DaysInPeriod,AverageDIM,AverageFLOW,NettingSet,Time" {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if lines[1] != "0,2024-01-15,14,1234.567891,-0.500000,CPTY_A,0.038251" {
		t.Errorf("Unexpected row: %s", lines[1])
	}
	if lines[2] != `1,2024-01-29,14,0.000000,0.000000,"CPTY, B",0.076503` {
		t.Errorf("Unexpected quoted row: %s", lines[2])
	}
}

func TestRenderDIMDistributionCSV(t *testing.T) {
	rows := []domain.DIMDistributionRow{
		{NettingSet: "CPTY_A", TimeStep: 3, Date: time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), Bound: 12.25, Count: 40},
	}
	want := "NettingSet,TimeStep,Date,Bound,Count\nCPTY_A,3,2024-02-26,12.250000,40\n"
	if got := RenderDIMDistributionCSV(rows); got != want {
		t.Errorf("RenderDIMDistributionCSV() = %q, want %q", got, want)
	}
}

func TestRenderSensitivityCSV(t *testing.T) {
	rows := []domain.SensitivityRecord{
		{TradeID: "T1", Factor: "DiscountCurve/EUR/0", ShiftSize: 0.0001, BaseNPV: 100, Delta: 10000, Gamma: 0, HasGamma: true},
		{TradeID: "T2", Factor: "FXSpot/EURUSD/0", ShiftSize: 0.01, BaseNPV: 50.125, Delta: -2.5},
	}
	got := RenderSensitivityCSV(rows)
	if !strings.Contains(got, "T1,DiscountCurve/EUR/0,0.000100,100.00,10000.00,0.00\n") {
		t.Errorf("Missing T1 row in %q", got)
	}
	if !strings.Contains(got, "T2,FXSpot/EURUSD/0,0.010000,50.12,-2.50,#N/A\n") {
		t.Errorf("Missing T2 row with #N/A gamma in %q", got)
	}
}

func TestRenderCrossGammaAndScenarioCSV(t *testing.T) {
	cross := RenderCrossGammaCSV([]domain.CrossGammaRecord{
		{TradeID: "T1", Factor1: "F/A/0", ShiftSize1: 0.01, Factor2: "F/B/0", ShiftSize2: 0.01, BaseNPV: 1, CrossGamma: 200000},
	})
	if !strings.HasSuffix(cross, "T1,F/A/0,0.010000,F/B/0,0.010000,1.00,200000.00\n") {
		t.Errorf("Unexpected cross gamma CSV: %q", cross)
	}

	scen := RenderScenarioCSV([]domain.ScenarioNPVRecord{
		{TradeID: "T1", Factor: "F/A/0", UpDown: domain.ScenarioUp, BaseNPV: 100, ScenarioNPV: 101, Difference: 1},
	})
	if !strings.HasPrefix(scen, "TradeId,Factor,Up/Down,Base NPV,Scenario NPV,Difference\n") {
		t.Errorf("Unexpected scenario header: %q", scen)
	}
	if !strings.Contains(scen, "T1,F/A/0,Up,100.00,101.00,1.00\n") {
		t.Errorf("Unexpected scenario row: %q", scen)
	}
}
