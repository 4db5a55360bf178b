// Package pricestalk provides a public SDK for embedding the crawler as a
// library.
//
// Example usage:
//
//	client, err := pricestalk.New(
//	    pricestalk.WithConcurrency(4),
//	    pricestalk.WithItemLimit(20),
//	)
//	if err != nil { ... }
//	defer client.Close(ctx)
//
//	summary, err := client.Crawl(ctx, "mechanical keyboard", types.Amazon, types.Ebay)
//	latest := client.Latest("keyboard")
package pricestalk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pricestalk/pricestalk/internal/config"
	"github.com/pricestalk/pricestalk/internal/engine"
	"github.com/pricestalk/pricestalk/internal/fetcher"
	"github.com/pricestalk/pricestalk/internal/store"
	"github.com/pricestalk/pricestalk/internal/types"
)

// Client is the high-level API for running crawls and querying prices.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger
	fetch  fetcher.Fetcher
	st     store.Store
	agg    *store.Aggregator
	runner *engine.Runner
}

// Option configures a Client.
type Option func(*config.Config)

// WithConcurrency sets per-website fetch concurrency.
func WithConcurrency(n int) Option {
	return func(cfg *config.Config) { cfg.Crawl.Concurrency = n }
}

// WithItemLimit caps observations per website.
func WithItemLimit(n int) Option {
	return func(cfg *config.Config) { cfg.Crawl.ItemLimit = n }
}

// WithRequestTimeout sets the per-fetch timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *config.Config) { cfg.Crawl.RequestTimeout = d }
}

// WithPolitenessDelay sets the per-site delay between fetches.
func WithPolitenessDelay(d time.Duration) Option {
	return func(cfg *config.Config) { cfg.Crawl.PolitenessDelay = d }
}

// WithMongo persists observations to MongoDB instead of process memory.
func WithMongo(uri, database, collection string) Option {
	return func(cfg *config.Config) {
		cfg.Store.Type = "mongodb"
		cfg.Store.MongoURI = uri
		cfg.Store.Database = database
		cfg.Store.Collection = collection
	}
}

// New creates a Client with defaults overridden by the given options.
func New(opts ...Option) (*Client, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	f, err := fetcher.NewHTTPFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	var st store.Store
	switch cfg.Store.Type {
	case "mongodb":
		st, err = store.NewMongoStore(context.Background(),
			cfg.Store.MongoURI, cfg.Store.Database, cfg.Store.Collection, logger)
		if err != nil {
			return nil, err
		}
	default:
		st = store.NewMemoryStore()
	}

	agg := store.NewAggregator(st, logger)

	return &Client{
		cfg:    cfg,
		logger: logger,
		fetch:  f,
		st:     st,
		agg:    agg,
		runner: engine.NewRunner(cfg, f, agg, logger),
	}, nil
}

// Crawl runs one crawl for the query across the given websites (all
// supported sites when none are named) and blocks until completion.
func (c *Client) Crawl(ctx context.Context, query string, websites ...types.WebsiteId) (*engine.CrawlRunSummary, error) {
	return c.runner.RunCrawl(ctx, types.CrawlTarget{
		ProductQuery: query,
		Websites:     websites,
		ItemLimit:    c.cfg.Crawl.ItemLimit,
	})
}

// Latest returns the most recent observation per (product, website)
// matching the query substring, from the in-memory index of this run.
func (c *Client) Latest(query string) []*types.Observation {
	return c.agg.LatestFor(query)
}

// History returns the persisted price timeline for one (product, website).
func (c *Client) History(ctx context.Context, productName string, website types.WebsiteId) ([]*types.Observation, error) {
	return c.agg.HistoryFor(ctx, productName, website)
}

// Status reports per-website lane states while a crawl is running.
func (c *Client) Status() map[types.WebsiteId]engine.LaneStatus {
	return c.runner.Status()
}

// Close releases the fetcher and the store.
func (c *Client) Close(ctx context.Context) error {
	if err := c.fetch.Close(); err != nil {
		return err
	}
	return c.st.Close(ctx)
}
