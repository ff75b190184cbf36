// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Gazette    GazetteConfig    `mapstructure:"gazette"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Output     OutputConfig     `mapstructure:"output"`
	DB         DBConfig         `mapstructure:"db"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CrawlConfig governs the date-range crawl.
type CrawlConfig struct {
	StartDate   string   `mapstructure:"start_date"`
	EndDate     string   `mapstructure:"end_date"`
	Workers     int      `mapstructure:"workers"`
	SearchTerms []string `mapstructure:"search_terms"`
}

// GazetteConfig controls the headless gazette session.
type GazetteConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	UserAgent     string `mapstructure:"user_agent"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	PageDelayMs   int    `mapstructure:"page_delay_ms"`
}

// EnrichmentConfig controls the case-portal lookup client.
type EnrichmentConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BaseURL       string `mapstructure:"base_url"`
	UserAgent     string `mapstructure:"user_agent"`
	TimeoutSec    int    `mapstructure:"timeout_seconds"`
	LookupDelayMs int    `mapstructure:"lookup_delay_ms"`
}

// RetryConfig controls per-date retry behavior.
type RetryConfig struct {
	MaxRetries   int `mapstructure:"max_retries"`
	BaseDelaySec int `mapstructure:"base_delay_seconds"`
}

// ProgressConfig locates the resumable progress snapshot.
type ProgressConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig selects where enriched publications go.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// DBConfig controls the optional relational sink.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StorageConfig sets the archive destination for raw documents.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion-event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MonitorConfig controls the progress/metrics HTTP endpoint.
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RPV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.workers", 3)
	v.SetDefault("crawl.search_terms", []string{`"RPV"`, `"pagamento pelo INSS"`})
	v.SetDefault("gazette.base_url", "https://dje.tjsp.jus.br")
	v.SetDefault("gazette.nav_timeout_seconds", 30)
	v.SetDefault("gazette.page_delay_ms", 1000)
	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.base_url", "https://esaj.tjsp.jus.br")
	v.SetDefault("enrichment.timeout_seconds", 15)
	v.SetDefault("enrichment.lookup_delay_ms", 2000)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_seconds", 5)
	v.SetDefault("progress.path", "progress.json")
	v.SetDefault("output.dir", "publications")
	v.SetDefault("storage.prefix", "gazettes")
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be > 0")
	}
	if len(c.Crawl.SearchTerms) == 0 {
		return fmt.Errorf("crawl.search_terms must not be empty")
	}
	if c.Gazette.NavTimeoutSec <= 0 {
		return fmt.Errorf("gazette.nav_timeout_seconds must be > 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.Progress.Path == "" {
		return fmt.Errorf("progress.path is required")
	}
	if c.Output.Dir == "" && c.DB.DSN == "" {
		return fmt.Errorf("either output.dir or db.dsn must be set")
	}
	if c.Monitor.Enabled && c.Monitor.Port <= 0 {
		return fmt.Errorf("monitor.port must be > 0 when monitor is enabled")
	}
	return nil
}

// NavTimeout converts the gazette navigation timeout to a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Gazette.NavTimeoutSec) * time.Second
}

// RetryBaseDelay converts the retry base delay to a duration.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelaySec) * time.Second
}
