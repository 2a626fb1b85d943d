package blob

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/idhash"
	"exposure-cube-lab/internal/storage"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		ref  string
		want Location
	}{
		{ref: "cube.bin", want: Location{Dir: ".", Key: "cube.bin"}},
		{ref: "out/run1/cube.bin", want: Location{Dir: "out/run1/", Key: "cube.bin"}},
		{ref: "s3://cubes/2024/run1.bin", want: Location{Bucket: "cubes", Key: "2024/run1.bin"}},
	}
	for _, tt := range tests {
		got, err := ParseLocation(tt.ref)
		if err != nil {
			t.Fatalf("ParseLocation(%q): %v", tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.ref, got, tt.want)
		}
	}

	for _, bad := range []string{"", "out/", "s3://bucket", "s3:///key"} {
		if _, err := ParseLocation(bad); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("ParseLocation(%q): expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestFSStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	if err := s.Put(ctx, "runs/b.bin", []byte("second")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "runs/a.bin", []byte("first")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "other.bin", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Replace
	if err := s.Put(ctx, "runs/a.bin", []byte("replaced")); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := s.Get(ctx, "runs/a.bin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "replaced" {
		t.Errorf("expected replaced content, got %q", data)
	}

	keys, err := s.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0] != "runs/a.bin" || keys[1] != "runs/b.bin" {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestFSStore_Errors(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	if _, err := s.Get(ctx, "missing.bin"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	for _, key := range []string{"", "/etc/passwd", "../escape.bin", "a/../../escape.bin"} {
		if err := s.Put(ctx, key, []byte("x")); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("Put(%q): expected ErrInvalidInput, got %v", key, err)
		}
	}
}

func TestSaveLoadCube(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	asof := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{asof.AddDate(0, 1, 0), asof.AddDate(0, 2, 0)}
	trades := []domain.TradeEnvelope{{TradeID: "T1"}, {TradeID: "T2", Maturity: dates[1]}}
	cfg := cube.Config{Layout: cube.LayoutJagged, Precision: cube.PrecisionSingle, Depth: 1}
	c, err := cube.New(cfg, asof, trades, dates, 3)
	if err != nil {
		t.Fatalf("new cube: %v", err)
	}
	if err := c.SetT0(7, 0, 0); err != nil {
		t.Fatalf("set t0: %v", err)
	}
	if err := c.Set(1.5, 1, 0, 2, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	fp, err := SaveCube(ctx, s, "cube.bin", c)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, loadedFP, err := LoadCube(ctx, s, "cube.bin")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fp != loadedFP {
		t.Errorf("fingerprint changed: %s -> %s", fp, loadedFP)
	}
	payload, _ := cube.Marshal(c)
	if !idhash.VerifyFingerprint(payload, fp) {
		t.Error("fingerprint does not match payload")
	}
	if got.GetT0(0, 0) != 7 || got.Get(1, 0, 2, 0) != 1.5 {
		t.Error("loaded cube values differ")
	}
	if layout, precision := cube.Describe(got); layout != cube.LayoutJagged || precision != cube.PrecisionSingle {
		t.Errorf("expected jagged single, got %s %s", layout, precision)
	}

	if _, _, err := LoadCube(ctx, s, "missing.bin"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
