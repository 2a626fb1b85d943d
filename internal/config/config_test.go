package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/valuation"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "regular", cfg.Layout)
	assert.Equal(t, "double", cfg.Precision)
	assert.Equal(t, 0.99, cfg.Quantile)
	assert.Equal(t, 14, cfg.HorizonDays)
	assert.Equal(t, 50, cfg.GridSize)
	assert.False(t, cfg.CloseOutLag)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("XCUBE_LAYOUT", "jagged")
	t.Setenv("XCUBE_PRECISION", "single")
	t.Setenv("XCUBE_FAILURE_POLICY", "zero_fill")
	t.Setenv("DIM_CLOSE_OUT_LAG", "true")
	t.Setenv("DIM_MPOR_DAYS", "10")
	t.Setenv("DIM_NETTING_SETS", "CPTY_A,CPTY_B")
	t.Setenv("POSTGRES_MAX_CONNS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cc := cfg.CubeConfig(3)
	assert.Equal(t, cube.LayoutJagged, cc.Layout)
	assert.Equal(t, cube.PrecisionSingle, cc.Precision)
	assert.Equal(t, 3, cc.Depth)

	in := cfg.Interpretation()
	assert.True(t, in.CloseOutLag)
	assert.Equal(t, 10, in.MporDays)

	assert.Equal(t, []string{"CPTY_A", "CPTY_B"}, cfg.NettingSets)
	assert.Equal(t, int32(8), cfg.PostgresMaxConns)
	assert.Equal(t, valuation.ZeroFill, cfg.ValuationOptions(1).Policy)
}

func TestLoad_S3(t *testing.T) {
	t.Setenv("XCUBE_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("XCUBE_S3_PATH_STYLE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	s3 := cfg.S3Config()
	assert.Equal(t, "us-east-1", s3.Region)
	assert.Equal(t, "http://localhost:9000", s3.Endpoint)
	assert.True(t, s3.PathStyle)
	assert.Empty(t, s3.Bucket)
}

func TestValidate(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad layout", func(c *Config) { c.Layout = "sparse" }},
		{"bad precision", func(c *Config) { c.Precision = "half" }},
		{"bad policy", func(c *Config) { c.FailurePolicy = "retry" }},
		{"no samples", func(c *Config) { c.Samples = 0 }},
		{"quantile", func(c *Config) { c.Quantile = 1 }},
		{"grid", func(c *Config) { c.GridSize = 0 }},
		{"mpor", func(c *Config) { c.CloseOutLag = true; c.MporDays = 0 }},
		{"pool", func(c *Config) { c.PostgresMaxConns = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nXCUBE_TEST_A=one\nXCUBE_TEST_B = \"two\"\nbroken line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("XCUBE_TEST_B", "kept")
	t.Setenv("XCUBE_TEST_A", "")
	LoadEnvFile(path)

	assert.Equal(t, "one", os.Getenv("XCUBE_TEST_A"))
	assert.Equal(t, "kept", os.Getenv("XCUBE_TEST_B"))

	LoadEnvFile(filepath.Join(t.TempDir(), "missing"))
}
