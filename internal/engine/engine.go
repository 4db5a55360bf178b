package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pricestalk/pricestalk/internal/config"
	"github.com/pricestalk/pricestalk/internal/fetcher"
	"github.com/pricestalk/pricestalk/internal/normalize"
	"github.com/pricestalk/pricestalk/internal/sites"
	"github.com/pricestalk/pricestalk/internal/store"
	"github.com/pricestalk/pricestalk/internal/types"
)

// SiteResolver maps a WebsiteId to its extractor implementation. Overridable
// so tests can point lanes at fixture servers.
type SiteResolver func(types.WebsiteId) (sites.Site, error)

// CrawlRunSummary is what a crawl run always returns: per-website outcomes
// plus run-wide counters. Individual listing failures never surface here as
// errors; they only move the counters.
type CrawlRunSummary struct {
	PerWebsite map[types.WebsiteId]WebsiteResult
	Stats      map[string]any
	Duration   time.Duration
}

// Runner owns one crawl run across all requested websites. Each website
// gets its own lane goroutine; the aggregator is the only shared state.
type Runner struct {
	cfg        *config.Config
	logger     *slog.Logger
	fetch      fetcher.Fetcher
	agg        *store.Aggregator
	normalizer *normalize.Normalizer
	stats      *Stats
	siteFor    SiteResolver

	mu    sync.RWMutex
	lanes map[types.WebsiteId]*lane
}

// NewRunner creates a Runner with the production site registry.
func NewRunner(cfg *config.Config, f fetcher.Fetcher, agg *store.Aggregator, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		logger:     logger.With("component", "runner"),
		fetch:      f,
		agg:        agg,
		normalizer: normalize.New(),
		stats:      &Stats{},
		siteFor:    sites.ForWebsite,
		lanes:      make(map[types.WebsiteId]*lane),
	}
}

// SetSiteResolver overrides site dispatch, primarily for tests.
func (r *Runner) SetSiteResolver(fn SiteResolver) {
	r.siteFor = fn
}

// Stats returns the run-wide counters.
func (r *Runner) Stats() *Stats {
	return r.stats
}

// Status reports every lane's current state, for polling while a run is in
// progress.
func (r *Runner) Status() map[types.WebsiteId]LaneStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[types.WebsiteId]LaneStatus, len(r.lanes))
	for id, l := range r.lanes {
		out[id] = l.Status()
	}
	return out
}

// RunCrawl drives one crawl target to completion and returns a summary.
// The returned error joins lane-level failures (unreachable search entry
// points, persistence failures); the summary is always populated.
func (r *Runner) RunCrawl(ctx context.Context, target types.CrawlTarget) (*CrawlRunSummary, error) {
	if target.ProductQuery == "" {
		return nil, types.ErrEmptyQuery
	}
	websites := target.Websites
	if len(websites) == 0 {
		websites = types.AllWebsites
	}

	r.stats.StartTime = time.Now()
	r.logger.Info("crawl starting",
		"query", target.ProductQuery,
		"websites", websites,
		"item_limit", target.ItemLimit,
	)

	summary := &CrawlRunSummary{
		PerWebsite: make(map[types.WebsiteId]WebsiteResult, len(websites)),
	}

	itemLimit := target.ItemLimit
	if itemLimit == 0 {
		itemLimit = r.cfg.Crawl.ItemLimit
	}

	var (
		wg        sync.WaitGroup
		resultsMu sync.Mutex
	)

	for _, id := range websites {
		site, err := r.siteFor(id)
		if err != nil {
			resultsMu.Lock()
			summary.PerWebsite[id] = WebsiteResult{Status: LaneFailed, Err: err}
			resultsMu.Unlock()
			continue
		}

		l := newLane(site, r.cfg, r.fetch, r.normalizer, r.agg, r.stats, r.logger,
			target.ProductQuery, itemLimit)
		r.mu.Lock()
		r.lanes[id] = l
		r.mu.Unlock()

		wg.Add(1)
		go func(id types.WebsiteId, l *lane) {
			defer wg.Done()
			result := l.run(ctx)
			resultsMu.Lock()
			summary.PerWebsite[id] = result
			resultsMu.Unlock()
		}(id, l)
	}

	wg.Wait()

	summary.Duration = time.Since(r.stats.StartTime)
	summary.Stats = r.stats.Snapshot()

	var errs []error
	for id, res := range summary.PerWebsite {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
		r.logger.Info("website done",
			"website", id,
			"status", res.Status.String(),
			"emitted", res.Emitted,
		)
	}

	r.logger.Info("crawl finished", "duration", summary.Duration, "stats", summary.Stats)
	return summary, errors.Join(errs...)
}
