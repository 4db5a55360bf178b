package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pricestalk/pricestalk/internal/config"
	"github.com/pricestalk/pricestalk/internal/fetcher"
	"github.com/pricestalk/pricestalk/internal/normalize"
	"github.com/pricestalk/pricestalk/internal/sites"
	"github.com/pricestalk/pricestalk/internal/store"
	"github.com/pricestalk/pricestalk/internal/types"
)

// LaneStatus is the lifecycle state of one website's crawl lane.
type LaneStatus int32

const (
	LaneIdle LaneStatus = iota
	LaneRunning
	LaneCompleted
	LaneLimitReached
	LaneFailed
)

func (s LaneStatus) String() string {
	switch s {
	case LaneIdle:
		return "idle"
	case LaneRunning:
		return "running"
	case LaneCompleted:
		return "completed"
	case LaneLimitReached:
		return "limit_reached"
	case LaneFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WebsiteResult summarizes one lane's outcome.
type WebsiteResult struct {
	Emitted int
	Status  LaneStatus
	Err     error
}

// lane drives one website's frontier to completion. Lanes run independently
// and concurrently; the aggregator is the only state they share.
type lane struct {
	site       sites.Site
	cfg        *config.Config
	fetch      fetcher.Fetcher
	normalizer *normalize.Normalizer
	agg        *store.Aggregator
	stats      *Stats
	logger     *slog.Logger

	searchTerm string
	itemLimit  int

	frontier *Frontier
	visited  *Visited

	status   atomic.Int32
	emitted  atomic.Int64
	limitHit atomic.Bool
	pending  atomic.Int64 // queued + in-flight requests

	throttleMu sync.Mutex
	lastFetch  time.Time

	errMu   sync.Mutex
	laneErr error
}

func newLane(site sites.Site, cfg *config.Config, f fetcher.Fetcher, n *normalize.Normalizer,
	agg *store.Aggregator, stats *Stats, logger *slog.Logger, searchTerm string, itemLimit int) *lane {
	return &lane{
		site:       site,
		cfg:        cfg,
		fetch:      f,
		normalizer: n,
		agg:        agg,
		stats:      stats,
		logger:     logger.With("component", "lane", "website", site.ID()),
		searchTerm: searchTerm,
		itemLimit:  itemLimit,
		frontier:   NewFrontier(),
		visited:    NewVisited(),
	}
}

// Status returns the lane's current lifecycle state.
func (l *lane) Status() LaneStatus {
	return LaneStatus(l.status.Load())
}

// run executes the lane to completion and returns its result.
func (l *lane) run(ctx context.Context) WebsiteResult {
	l.status.Store(int32(LaneRunning))
	defer l.frontier.Close()

	// The initial search is the lane's entry point: consecutive failures
	// here mean no product data at all, so the lane fails outright.
	resp, err := l.fetchSearchEntry(ctx)
	if err != nil {
		l.status.Store(int32(LaneFailed))
		l.logger.Error("search entry point unreachable", "error", err)
		return WebsiteResult{
			Status: LaneFailed,
			Err:    fmt.Errorf("%w: %v", types.ErrSearchFailed, err),
		}
	}

	l.handleResponse(ctx, resp)

	var wg sync.WaitGroup
	for i := 0; i < l.cfg.Crawl.Concurrency; i++ {
		wg.Add(1)
		go l.worker(ctx, &wg)
	}
	wg.Wait()

	status := LaneCompleted
	if l.limitHit.Load() {
		status = LaneLimitReached
	}
	l.status.Store(int32(status))

	result := WebsiteResult{
		Emitted: int(l.emitted.Load()),
		Status:  status,
		Err:     l.err(),
	}
	l.logger.Info("lane finished",
		"status", status.String(),
		"emitted", result.Emitted,
		"visited", l.visited.Count(),
	)
	return result
}

// fetchSearchEntry fetches the seed search page, allowing a bounded number
// of consecutive attempts before giving up.
func (l *lane) fetchSearchEntry(ctx context.Context) (*types.Response, error) {
	searchURL := l.site.SearchURL(l.searchTerm)
	req, err := types.NewPageRequest(searchURL, types.SearchResults, l.searchTerm)
	if err != nil {
		return nil, err
	}
	req.Priority = types.PrioritySeed
	l.visited.Add(searchURL)

	var lastErr error
	for attempt := 1; attempt <= l.cfg.Crawl.SearchAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := l.fetchOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		l.logger.Warn("initial search fetch failed",
			"attempt", attempt,
			"max_attempts", l.cfg.Crawl.SearchAttempts,
			"error", err,
		)
	}
	return nil, lastErr
}

// worker drains the frontier until no requests remain queued or in flight.
func (l *lane) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		req := l.frontier.TryPop()
		if req == nil {
			if l.pending.Load() == 0 {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		l.process(ctx, req)
	}
}

// process fetches one request and routes the response. A failed page drops
// only that request; the frontier keeps draining.
func (l *lane) process(ctx context.Context, req *types.PageRequest) {
	defer l.pending.Add(-1)

	resp, err := l.fetchOnce(ctx, req)
	if err != nil {
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.IsRetryable() && req.Retries < l.cfg.Crawl.MaxRetries {
			if fe.RetryAfter > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(fe.RetryAfter):
				}
			}
			req.Retries++
			req.Priority = types.PriorityPagination // retries go to the back
			l.enqueue(req)
			l.logger.Warn("retrying request", "url", req.URLString(), "retry", req.Retries)
			return
		}
		l.logger.Warn("request dropped", "url", req.URLString(), "error", err)
		return
	}

	l.handleResponse(ctx, resp)
}

// handleResponse dispatches a fetched page to the site's extractor chain.
func (l *lane) handleResponse(ctx context.Context, resp *types.Response) {
	l.stats.PagesParsed.Add(1)

	switch resp.Request.Kind {
	case types.SearchResults:
		l.handleSearchResults(resp)
	case types.DetailPage:
		l.handleDetailPage(ctx, resp)
	}
}

func (l *lane) handleSearchResults(resp *types.Response) {
	page, err := l.site.ParseSearchResults(resp)
	if err != nil {
		l.logger.Warn("search results parse failed", "url", resp.Request.URLString(), "error", err)
		return
	}

	for _, detailURL := range page.DetailURLs {
		if l.limitHit.Load() {
			// Limit reached: in-flight requests drain, nothing new enters.
			l.stats.URLsFiltered.Add(1)
			continue
		}
		if !l.visited.Add(detailURL) {
			l.stats.URLsFiltered.Add(1)
			continue
		}
		req, err := types.NewPageRequest(detailURL, types.DetailPage, resp.Request.SearchTerm)
		if err != nil {
			continue
		}
		req.Depth = resp.Request.Depth
		l.enqueue(req)
	}

	// Absent next-page link is natural termination for this branch.
	if page.NextPage == "" || l.limitHit.Load() {
		return
	}
	if resp.Request.Depth+1 >= l.cfg.Crawl.MaxPages {
		l.stats.URLsFiltered.Add(1)
		return
	}
	if !l.visited.Add(page.NextPage) {
		// Cyclic pagination: the link points back at a fetched page.
		l.stats.URLsFiltered.Add(1)
		l.logger.Debug("pagination loop detected", "url", page.NextPage)
		return
	}
	req, err := types.NewPageRequest(page.NextPage, types.SearchResults, resp.Request.SearchTerm)
	if err != nil {
		return
	}
	req.Depth = resp.Request.Depth + 1
	l.enqueue(req)
}

func (l *lane) handleDetailPage(ctx context.Context, resp *types.Response) {
	raw, err := l.site.ParseDetailPage(resp)
	if err != nil {
		l.logger.Warn("detail page parse failed", "url", resp.Request.URLString(), "error", err)
		return
	}

	obs := l.normalizer.Normalize(raw, l.site.ID(), resp.Request.SearchTerm)
	if obs == nil {
		// Extraction miss or normalization reject: skip the item, keep going.
		l.stats.ItemsRejected.Add(1)
		l.logger.Info("item skipped", "url", resp.Request.URLString())
		return
	}

	hitLimit := false
	if l.itemLimit > 0 {
		n := l.emitted.Add(1)
		if n > int64(l.itemLimit) {
			// Already at the limit; this in-flight result is discarded.
			l.emitted.Add(-1)
			return
		}
		if n >= int64(l.itemLimit) {
			l.limitHit.Store(true)
			hitLimit = true
		}
	} else {
		l.emitted.Add(1)
	}

	if err := l.agg.Record(ctx, obs); err != nil {
		l.emitted.Add(-1)
		if hitLimit {
			// The reservation that tripped the limit never landed.
			l.limitHit.Store(false)
		}
		l.setErr(err)
		l.logger.Error("record failed", "product", obs.ProductName, "error", err)
		return
	}
	l.stats.ItemsEmitted.Add(1)
	l.logger.Debug("observation recorded",
		"product", obs.ProductName,
		"price", obs.Price,
		"currency", obs.Currency,
	)
}

// fetchOnce applies the politeness delay and a per-request timeout.
func (l *lane) fetchOnce(ctx context.Context, req *types.PageRequest) (*types.Response, error) {
	l.applyThrottle()

	fetchCtx, cancel := context.WithTimeout(ctx, l.cfg.Crawl.RequestTimeout)
	defer cancel()

	l.stats.RequestsSent.Add(1)
	resp, err := l.fetch.Fetch(fetchCtx, req)
	if err != nil {
		l.stats.RequestsFailed.Add(1)
		return nil, err
	}
	l.stats.BytesDownloaded.Add(int64(len(resp.Body)))
	return resp, nil
}

func (l *lane) enqueue(req *types.PageRequest) {
	l.pending.Add(1)
	l.frontier.Push(req)
}

// applyThrottle enforces the per-site politeness delay. One lane maps to one
// site, so the lane-local clock is the per-domain clock.
func (l *lane) applyThrottle() {
	delay := l.cfg.Crawl.PolitenessDelay
	if delay <= 0 {
		return
	}

	l.throttleMu.Lock()
	defer l.throttleMu.Unlock()

	elapsed := time.Since(l.lastFetch)
	if elapsed < delay {
		time.Sleep(delay - elapsed)
	}
	l.lastFetch = time.Now()
}

func (l *lane) setErr(err error) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if l.laneErr == nil {
		l.laneErr = err
	}
}

func (l *lane) err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.laneErr
}
