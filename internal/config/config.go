package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for PriceStalk.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"   yaml:"crawl"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Store   StoreConfig   `mapstructure:"store"   yaml:"store"`
	Export  ExportConfig  `mapstructure:"export"  yaml:"export"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CrawlConfig controls the per-website crawl lanes.
type CrawlConfig struct {
	// Concurrency is the number of in-flight fetches per website lane.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// MaxPages bounds how many search-result pages one lane may expand.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`

	// ItemLimit caps observations emitted per website (0 = unlimited).
	ItemLimit int `mapstructure:"item_limit" yaml:"item_limit"`

	// SearchAttempts is how many consecutive failures of the initial
	// search fetch mark the lane Failed.
	SearchAttempts int `mapstructure:"search_attempts" yaml:"search_attempts"`

	RequestTimeout  time.Duration `mapstructure:"request_timeout"  yaml:"request_timeout"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
	MaxRetries      int           `mapstructure:"max_retries"      yaml:"max_retries"`
	UserAgents      []string      `mapstructure:"user_agents"      yaml:"user_agents"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// StoreConfig selects the persistence collaborator.
type StoreConfig struct {
	Type       string `mapstructure:"type"       yaml:"type"` // memory, mongodb
	MongoURI   string `mapstructure:"mongo_uri"  yaml:"mongo_uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// ExportConfig controls observation export after a run.
type ExportConfig struct {
	Format     string `mapstructure:"format"      yaml:"format"` // none, csv, json
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			Concurrency:     4,
			MaxPages:        10,
			SearchAttempts:  3,
			RequestTimeout:  30 * time.Second,
			PolitenessDelay: 1 * time.Second,
			MaxRetries:      2,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Fetcher: FetcherConfig{
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Store: StoreConfig{
			Type:       "memory",
			MongoURI:   "mongodb://localhost:27017",
			Database:   "pricestalk",
			Collection: "observations",
		},
		Export: ExportConfig{
			Format:     "none",
			OutputPath: "./data/exports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
			Port: 9190,
		},
	}
}
