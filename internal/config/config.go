package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/catalog-etl/internal/resilience"
	"github.com/sells-group/catalog-etl/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	TMDB    TMDBConfig    `yaml:"tmdb" mapstructure:"tmdb"`
	OMDB    OMDBConfig    `yaml:"omdb" mapstructure:"omdb"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Pacing  PacingConfig  `yaml:"pacing" mapstructure:"pacing"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// TMDBConfig holds TMDB API settings.
type TMDBConfig struct {
	Token          string   `yaml:"token" mapstructure:"token"`
	BaseURL        string   `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	Languages      []string `yaml:"languages" mapstructure:"languages" validate:"min=1,dive,required"`
	MaxPages       int      `yaml:"max_pages" mapstructure:"max_pages" validate:"gte=0"`
	ProvidersLimit int      `yaml:"providers_limit" mapstructure:"providers_limit" validate:"gte=0"`
	Region         string   `yaml:"region" mapstructure:"region" validate:"len=2"`
	RatePerSec     float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gte=0"`
}

// OMDBConfig holds OMDB API settings.
type OMDBConfig struct {
	APIKey     string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gte=0"`
}

// MatchConfig configures the title match decision.
type MatchConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold" validate:"gte=0,lte=1"`
	// YearTolerance is the allowed release year difference; negative disables
	// the check.
	YearTolerance int `yaml:"year_tolerance" mapstructure:"year_tolerance"`
}

// PacingConfig configures how OMDB lookups are spread out.
type PacingConfig struct {
	BatchSize   int           `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=0"`
	BatchPause  time.Duration `yaml:"batch_pause" mapstructure:"batch_pause" validate:"gte=0"`
	SubsetPause time.Duration `yaml:"subset_pause" mapstructure:"subset_pause" validate:"gte=0"`
	Quota       int           `yaml:"quota" mapstructure:"quota" validate:"gte=0"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gte=0"`
	Workers     int           `yaml:"workers" mapstructure:"workers" validate:"gte=1"`
}

// RetryConfig configures HTTP retries for both catalogs.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// Settings converts to the resilience package configuration.
func (c RetryConfig) Settings() resilience.RetryConfig {
	return resilience.RetryFromSettings(c.MaxAttempts, c.InitialBackoff, c.MaxBackoff)
}

// CircuitConfig configures the per-catalog circuit breaker.
type CircuitConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=1"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
}

// Settings converts to the resilience package configuration.
func (c CircuitConfig) Settings() resilience.CircuitBreakerConfig {
	return resilience.CircuitFromSettings(c.FailureThreshold, c.ResetTimeout)
}

// DataConfig configures the bronze/silver/gold data directory.
type DataConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir" validate:"required"`
	Formats []string `yaml:"formats" mapstructure:"formats" validate:"min=1,dive,oneof=csv jsonl json xlsx"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url" validate:"required"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("tmdb.token", "")
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.languages", []string{"es-ES", "en-US"})
	v.SetDefault("tmdb.max_pages", 500)
	v.SetDefault("tmdb.providers_limit", 2000)
	v.SetDefault("tmdb.region", "ES")
	v.SetDefault("tmdb.rate_per_sec", 40)
	v.SetDefault("omdb.api_key", "")
	v.SetDefault("omdb.base_url", "https://www.omdbapi.com/")
	v.SetDefault("omdb.rate_per_sec", 10)
	v.SetDefault("match.threshold", 0.6)
	v.SetDefault("match.year_tolerance", -1)
	v.SetDefault("pacing.batch_size", 0)
	v.SetDefault("pacing.batch_pause", "60s")
	v.SetDefault("pacing.subset_pause", "60s")
	v.SetDefault("pacing.quota", 1000)
	v.SetDefault("pacing.rate_per_sec", 5)
	v.SetDefault("pacing.workers", 1)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", "500ms")
	v.SetDefault("retry.max_backoff", "30s")
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout", "30s")
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.formats", []string{"csv", "jsonl", "xlsx"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/catalog.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

var validate = validator.New()

// Validate checks field constraints. Credentials are checked by the commands
// that need them.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Namespace() + " (" + fe.Tag() + ")"
			}
			return eris.Errorf("config: invalid %s", strings.Join(fields, ", "))
		}
		return eris.Wrap(err, "config: validate")
	}
	return nil
}

// RequireTMDB reports a missing TMDB token.
func (c *Config) RequireTMDB() error {
	if c.TMDB.Token == "" {
		return eris.New("config: tmdb.token is required (set CATALOG_TMDB_TOKEN)")
	}
	return nil
}

// RequireOMDB reports a missing OMDB key.
func (c *Config) RequireOMDB() error {
	if c.OMDB.APIKey == "" {
		return eris.New("config: omdb.api_key is required (set CATALOG_OMDB_API_KEY)")
	}
	return nil
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
