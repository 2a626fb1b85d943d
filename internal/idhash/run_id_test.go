package idhash

import (
	"testing"
	"time"
)

func TestComputeRunID(t *testing.T) {
	asof := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		label     string
		layout    string
		precision string
		wantLen   int // hash length should be 64
	}{
		{name: "regular double", label: "eod", layout: "regular", precision: "double", wantLen: 64},
		{name: "jagged single", label: "eod", layout: "jagged", precision: "single", wantLen: 64},
		{name: "empty label", label: "", layout: "regular", precision: "double", wantLen: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRunID(asof, tt.label, tt.layout, tt.precision)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeRunID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeRunID(asof, tt.label, tt.layout, tt.precision)
			if got != got2 {
				t.Errorf("ComputeRunID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeRunID_DifferentInputs(t *testing.T) {
	asof := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := ComputeRunID(asof, "eod", "regular", "double")

	if base == ComputeRunID(asof.AddDate(0, 0, 1), "eod", "regular", "double") {
		t.Error("Different asof should produce different hash")
	}
	if base == ComputeRunID(asof, "intraday", "regular", "double") {
		t.Error("Different label should produce different hash")
	}
	if base == ComputeRunID(asof, "eod", "jagged", "double") {
		t.Error("Different layout should produce different hash")
	}

	// Same instant in another zone is the same run
	ny, _ := time.LoadLocation("America/New_York")
	if ny != nil && base != ComputeRunID(asof.In(ny), "eod", "regular", "double") {
		t.Error("Run id should not depend on the asof time zone")
	}
}
