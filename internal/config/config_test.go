package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.InDelta(t, 5.0, cfg.Classify.BudgetUSD, 0.001)
	assert.InDelta(t, 6.0, cfg.Classify.MinIntervalSecs, 0.001)
	assert.Equal(t, 5, cfg.Classify.MaxRetries)
	assert.Equal(t, 5, cfg.Classify.SampleSpeeches)
	assert.Equal(t, 8000, cfg.Classify.ExcerptChars)
	assert.InDelta(t, 0.075, cfg.Pricing.InputPerMTok, 0.001)
	assert.InDelta(t, 0.30, cfg.Pricing.OutputPerMTok, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
  database_url: hansard.db
log:
  level: debug
  format: console
classify:
  budget_usd: 2.5
  sample_speeches: 3
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "hansard.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.InDelta(t, 2.5, cfg.Classify.BudgetUSD, 0.001)
	assert.Equal(t, 3, cfg.Classify.SampleSpeeches)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Classify.MaxRetries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("HANSARD_STORE_DRIVER", "postgres")
	t.Setenv("HANSARD_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("HANSARD_CLASSIFY_BUDGET_USD", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg.Classify.BudgetUSD, 0.001)
}

// validClassify returns a Config that passes classify validation.
func validClassify() *Config {
	return &Config{
		Store:     StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/hansard"},
		Anthropic: AnthropicConfig{Key: "sk-ant-key", Model: "claude-haiku-4-5-20251001"},
		Classify:  ClassifyConfig{MinIntervalSecs: 6, MaxRetries: 5, SampleSpeeches: 5, ExcerptChars: 8000},
	}
}

func TestValidateClassify_AllPresent(t *testing.T) {
	assert.NoError(t, validClassify().Validate("classify"))
}

func TestValidateClassify_MissingFields(t *testing.T) {
	cfg := validClassify()
	cfg.Store.DatabaseURL = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateClassify_Bounds(t *testing.T) {
	cfg := validClassify()
	cfg.Classify.MaxRetries = 11
	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")

	cfg = validClassify()
	cfg.Classify.SampleSpeeches = 0
	err = cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_speeches")

	cfg = validClassify()
	cfg.Pricing.InputPerMTok = -1
	err = cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricing")
}

func TestValidateDriver(t *testing.T) {
	cfg := validClassify()
	cfg.Store.Driver = "duckdb"
	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateMigrate_NeedsDB(t *testing.T) {
	cfg := validClassify()
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")

	cfg.Store.DatabaseURL = "hansard.db"
	cfg.Store.Driver = "sqlite"
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validClassify().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
