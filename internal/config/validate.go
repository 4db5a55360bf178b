package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawl.Concurrency < 1 {
		return fmt.Errorf("crawl.concurrency must be >= 1, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.Concurrency > 100 {
		return fmt.Errorf("crawl.concurrency must be <= 100, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.MaxPages < 1 {
		return fmt.Errorf("crawl.max_pages must be >= 1, got %d", cfg.Crawl.MaxPages)
	}
	if cfg.Crawl.ItemLimit < 0 {
		return fmt.Errorf("crawl.item_limit must be >= 0, got %d", cfg.Crawl.ItemLimit)
	}
	if cfg.Crawl.SearchAttempts < 1 {
		return fmt.Errorf("crawl.search_attempts must be >= 1, got %d", cfg.Crawl.SearchAttempts)
	}
	if cfg.Crawl.RequestTimeout <= 0 {
		return fmt.Errorf("crawl.request_timeout must be > 0")
	}
	if cfg.Crawl.PolitenessDelay < 0 {
		return fmt.Errorf("crawl.politeness_delay must be >= 0")
	}
	if cfg.Crawl.MaxRetries < 0 {
		return fmt.Errorf("crawl.max_retries must be >= 0, got %d", cfg.Crawl.MaxRetries)
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	switch cfg.Store.Type {
	case "memory", "mongodb":
	default:
		return fmt.Errorf("store.type must be 'memory' or 'mongodb', got %q", cfg.Store.Type)
	}
	if cfg.Store.Type == "mongodb" && strings.TrimSpace(cfg.Store.MongoURI) == "" {
		return fmt.Errorf("store.mongo_uri is required when store.type is 'mongodb'")
	}

	switch cfg.Export.Format {
	case "none", "csv", "json":
	default:
		return fmt.Errorf("export.format must be none/csv/json, got %q", cfg.Export.Format)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}
