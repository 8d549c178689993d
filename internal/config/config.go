// Package config loads application configuration from file and
// environment, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/commons-lab/hansard-classify/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Pricing   cost.Pricing    `yaml:"pricing" mapstructure:"pricing"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ClassifyConfig configures a classification run.
type ClassifyConfig struct {
	BudgetUSD       float64 `yaml:"budget_usd" mapstructure:"budget_usd"`
	MinIntervalSecs float64 `yaml:"min_interval_secs" mapstructure:"min_interval_secs"`
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	SampleSpeeches  int     `yaml:"sample_speeches" mapstructure:"sample_speeches"`
	ExcerptChars    int     `yaml:"excerpt_chars" mapstructure:"excerpt_chars"`
	LexiconPath     string  `yaml:"lexicon_path" mapstructure:"lexicon_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the fields a command needs are present and sane.
// Mode is the command name: "classify", "runs", or "migrate".
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "classify":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.Classify.MinIntervalSecs < 0 {
			missing = append(missing, "classify.min_interval_secs must be >= 0")
		}
		if c.Classify.MaxRetries < 0 || c.Classify.MaxRetries > 10 {
			missing = append(missing, "classify.max_retries must be between 0 and 10")
		}
		if c.Classify.SampleSpeeches < 1 {
			missing = append(missing, "classify.sample_speeches must be >= 1")
		}
		if c.Pricing.InputPerMTok < 0 || c.Pricing.OutputPerMTok < 0 {
			missing = append(missing, "pricing values must be >= 0")
		}
	case "runs", "migrate":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	default:
		return eris.New("config: unknown mode " + mode)
	}

	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		missing = append(missing, "store.driver must be postgres or sqlite")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HANSARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("classify.budget_usd", 5.0)
	v.SetDefault("classify.min_interval_secs", 6.0)
	v.SetDefault("classify.max_retries", 5)
	v.SetDefault("classify.sample_speeches", 5)
	v.SetDefault("classify.excerpt_chars", 8000)
	v.SetDefault("pricing.input_per_mtok", 0.075)
	v.SetDefault("pricing.output_per_mtok", 0.30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
