// Package config loads application configuration from an optional YAML file
// plus SCRAPER_-prefixed environment variables, and initializes the global
// logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/startup-scraper/internal/crawl"
	"github.com/sells-group/startup-scraper/internal/pipeline"
	"github.com/sells-group/startup-scraper/internal/resilience"
	"github.com/sells-group/startup-scraper/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Scraper ScraperConfig `yaml:"scraper" mapstructure:"scraper"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ScraperConfig configures the directory scraper.
type ScraperConfig struct {
	Source            string  `yaml:"source" mapstructure:"source"`
	DirectoryURL      string  `yaml:"directory_url" mapstructure:"directory_url"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	DelayMillis       int     `yaml:"delay_ms" mapstructure:"delay_ms"`
	SettleSecs        int     `yaml:"settle_secs" mapstructure:"settle_secs"`

	ParseAttempts        int `yaml:"parse_attempts" mapstructure:"parse_attempts"`
	ParseRetryDelayMs    int `yaml:"parse_retry_delay_ms" mapstructure:"parse_retry_delay_ms"`
	StoreFailureLimit    int `yaml:"store_failure_limit" mapstructure:"store_failure_limit"`
	NavigateMaxAttempts  int `yaml:"navigate_max_attempts" mapstructure:"navigate_max_attempts"`
	NavigateBackoffMs    int `yaml:"navigate_backoff_ms" mapstructure:"navigate_backoff_ms"`
	NavigateMaxBackoffMs int `yaml:"navigate_max_backoff_ms" mapstructure:"navigate_max_backoff_ms"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CollyConfig maps the scraper section onto the crawl driver config.
func (c ScraperConfig) CollyConfig() crawl.CollyConfig {
	return crawl.CollyConfig{
		BaseURL:           c.DirectoryURL,
		UserAgent:         c.UserAgent,
		RequestsPerSecond: c.RequestsPerSecond,
		Delay:             time.Duration(c.DelayMillis) * time.Millisecond,
	}
}

// SessionConfig maps the scraper section onto the pipeline session config.
func (c ScraperConfig) SessionConfig() pipeline.SessionConfig {
	return pipeline.SessionConfig{
		Source:                c.Source,
		ParseAttempts:         c.ParseAttempts,
		ParseRetryDelay:       time.Duration(c.ParseRetryDelayMs) * time.Millisecond,
		StoreFailureThreshold: c.StoreFailureLimit,
		NavigateRetry: resilience.RetryConfig{
			MaxAttempts:    c.NavigateMaxAttempts,
			InitialBackoff: time.Duration(c.NavigateBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(c.NavigateMaxBackoffMs) * time.Millisecond,
		},
	}
}

// Settle returns the per-navigation page-load budget.
func (c ScraperConfig) Settle() time.Duration {
	return time.Duration(c.SettleSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "startups.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("scraper.source", "YC")
	v.SetDefault("scraper.directory_url", "https://www.ycombinator.com/companies")
	v.SetDefault("scraper.requests_per_second", 1)
	v.SetDefault("scraper.delay_ms", 500)
	v.SetDefault("scraper.settle_secs", 30)
	v.SetDefault("scraper.parse_attempts", 3)
	v.SetDefault("scraper.parse_retry_delay_ms", 100)
	v.SetDefault("scraper.store_failure_limit", 5)
	v.SetDefault("scraper.navigate_max_attempts", 3)
	v.SetDefault("scraper.navigate_backoff_ms", 1000)
	v.SetDefault("scraper.navigate_max_backoff_ms", 30000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
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
