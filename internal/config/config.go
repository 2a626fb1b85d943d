// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/exposure"
	"exposure-cube-lab/internal/storage/blob"
	"exposure-cube-lab/internal/valuation"
)

// Config holds settings shared by the command line tools. Values act as
// flag defaults; flags win.
type Config struct {
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickHouseDSN string `env:"CLICKHOUSE_DSN"`
	// PostgresMaxConns caps the cube and sensitivity pool; 0 keeps the driver default.
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"0"`
	MetricsAddr      string `env:"METRICS_ADDR" envDefault:":9090"`
	OutputDir        string `env:"OUTPUT_DIR" envDefault:"output"`

	// Valuation
	Threads       int    `env:"XCUBE_THREADS" envDefault:"0"`
	Layout        string `env:"XCUBE_LAYOUT" envDefault:"regular"`
	Precision     string `env:"XCUBE_PRECISION" envDefault:"double"`
	Samples       int    `env:"XCUBE_SAMPLES" envDefault:"1000"`
	FailurePolicy string `env:"XCUBE_FAILURE_POLICY" envDefault:"fail_run"`

	// DIM
	Quantile        float64  `env:"DIM_QUANTILE" envDefault:"0.99"`
	HorizonDays     int      `env:"DIM_HORIZON_DAYS" envDefault:"14"`
	RegressionOrder int      `env:"DIM_REGRESSION_ORDER" envDefault:"2"`
	CloseOutLag     bool     `env:"DIM_CLOSE_OUT_LAG" envDefault:"false"`
	MporDays        int      `env:"DIM_MPOR_DAYS" envDefault:"14"`
	GridSize        int      `env:"DIM_GRID_SIZE" envDefault:"50"`
	CoveredStdDevs  float64  `env:"DIM_COVERED_STD_DEVS" envDefault:"5"`
	NettingSets     []string `env:"DIM_NETTING_SETS" envSeparator:","`

	// Sensitivity
	SensitivityThreshold float64 `env:"SENSI_THRESHOLD" envDefault:"0"`

	// Cube files on s3:// locations
	S3Region          string `env:"XCUBE_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"XCUBE_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"XCUBE_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"XCUBE_S3_SECRET_ACCESS_KEY"`
	S3PathStyle       bool   `env:"XCUBE_S3_PATH_STYLE" envDefault:"false"`
}

// Load reads .env (if present) and parses the environment.
func Load() (Config, error) {
	LoadEnvFile(".env")
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile sets KEY=VALUE pairs from path without overriding variables
// already present. A missing file is ignored.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"`)

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	if _, err := cube.ParseLayout(c.Layout); err != nil {
		return err
	}
	if _, err := cube.ParsePrecision(c.Precision); err != nil {
		return err
	}
	if _, err := valuation.ParseFailurePolicy(c.FailurePolicy); err != nil {
		return err
	}
	if c.Samples <= 0 {
		return fmt.Errorf("samples must be positive, got %d", c.Samples)
	}
	if c.Quantile <= 0 || c.Quantile >= 1 {
		return fmt.Errorf("quantile %g outside (0, 1)", c.Quantile)
	}
	if c.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %d", c.GridSize)
	}
	if c.PostgresMaxConns < 0 {
		return fmt.Errorf("postgres max conns must not be negative, got %d", c.PostgresMaxConns)
	}
	if c.CloseOutLag && c.MporDays <= 0 {
		return fmt.Errorf("close-out lag needs a positive MPOR, got %d", c.MporDays)
	}
	return nil
}

// CubeConfig returns the cube layout and precision settings with depth.
func (c Config) CubeConfig(depth int) cube.Config {
	layout, _ := cube.ParseLayout(c.Layout)
	precision, _ := cube.ParsePrecision(c.Precision)
	return cube.Config{Layout: layout, Precision: precision, Depth: depth}
}

// DIMConfig returns the DIM calculation settings.
func (c Config) DIMConfig() exposure.DIMConfig {
	return exposure.DIMConfig{
		Quantile:            c.Quantile,
		HorizonCalendarDays: c.HorizonDays,
		RegressionOrder:     c.RegressionOrder,
	}
}

// Interpretation returns how cube depths are read by the aggregator.
func (c Config) Interpretation() exposure.Interpretation {
	if c.CloseOutLag {
		return exposure.CloseOutLagInterpretation(c.MporDays)
	}
	return exposure.RegularInterpretation()
}

// ValuationOptions returns the valuation engine options, without a logger.
func (c Config) ValuationOptions(depth int) valuation.Options {
	policy, _ := valuation.ParseFailurePolicy(c.FailurePolicy)
	return valuation.Options{
		Threads: c.Threads,
		Cube:    c.CubeConfig(depth),
		Policy:  policy,
	}
}

// S3Config returns the object store settings for s3:// cube locations. The
// bucket comes from the location itself.
func (c Config) S3Config() blob.S3Config {
	return blob.S3Config{
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		PathStyle:       c.S3PathStyle,
	}
}
