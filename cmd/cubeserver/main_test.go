package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"exposure-cube-lab/internal/config"
	"exposure-cube-lab/internal/storage/backend"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	stores, cleanup, err := backend.Open(context.Background(), backend.Options{UseMemory: true})
	if err != nil {
		t.Fatalf("open stores: %v", err)
	}
	t.Cleanup(cleanup)

	return &Server{
		cfg: config.Config{
			Layout:          "regular",
			Precision:       "double",
			Samples:         200,
			FailurePolicy:   "fail_run",
			Quantile:        0.99,
			HorizonDays:     14,
			RegressionOrder: 2,
			MporDays:        14,
			GridSize:        10,
			CoveredStdDevs:  5,
		},
		outputDir:   t.TempDir(),
		grid:        "6,1M",
		numTrades:   8,
		nettingSets: []string{"CPTY_A", "CPTY_B"},
		stores:      stores,
		logger:      log.New(io.Discard, "", 0),
		started:     time.Now(),
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_PipelineAndEndpoints(t *testing.T) {
	s := newTestServer(t)
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	s.runPipeline(context.Background(), now)
	if s.pipelineRuns != 1 || s.pipelineErrors != 0 {
		t.Fatalf("expected one successful run, got runs=%d errors=%d", s.pipelineRuns, s.pipelineErrors)
	}
	if s.lastRunID == "" {
		t.Fatal("expected last run id")
	}
	for _, name := range []string{"REPORT.md", "dim_evolution.csv", "dim_distribution.csv"} {
		if _, err := os.Stat(filepath.Join(s.outputDir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	h := s.routes()

	if rec := get(t, h, "/health"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("health: %d %q", rec.Code, rec.Body.String())
	}

	rec := get(t, h, "/status")
	var status StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.LastRunID != s.lastRunID || status.PipelineRuns != 1 {
		t.Errorf("unexpected status: %+v", status)
	}

	rec = get(t, h, "/cubes")
	var cubes []CubeResponse
	if err := json.NewDecoder(rec.Body).Decode(&cubes); err != nil {
		t.Fatalf("decode cubes: %v", err)
	}
	if len(cubes) != 1 || cubes[0].RunID != s.lastRunID {
		t.Fatalf("unexpected cubes: %+v", cubes)
	}
	if cubes[0].SizeBytes != 0 {
		t.Errorf("list should not carry payloads, got %d bytes", cubes[0].SizeBytes)
	}

	rec = get(t, h, "/cubes/"+s.lastRunID)
	var one CubeResponse
	if err := json.NewDecoder(rec.Body).Decode(&one); err != nil {
		t.Fatalf("decode cube: %v", err)
	}
	if one.Asof != "2024-03-15" || one.NumIDs != 8 || one.NumDates != 6 || one.Samples != 200 {
		t.Errorf("unexpected cube: %+v", one)
	}
	if one.SizeBytes == 0 {
		t.Error("expected payload size")
	}

	rec = get(t, h, "/cubes/"+s.lastRunID+"/dim?netting_set=CPTY_A")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], "TimeStep,") {
		t.Fatalf("unexpected DIM csv: %q", rec.Body.String())
	}
	for _, line := range lines[1:] {
		if !strings.Contains(line, ",CPTY_A,") {
			t.Errorf("row from another netting set: %q", line)
		}
	}
}

func TestServer_CubeNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s.routes(), "/cubes/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_PipelineError(t *testing.T) {
	s := newTestServer(t)
	s.grid = "bogus"

	s.runPipeline(context.Background(), time.Now())
	if s.pipelineErrors != 1 || s.lastRunID != "" {
		t.Errorf("expected failed run, got errors=%d lastRunID=%q", s.pipelineErrors, s.lastRunID)
	}
}
