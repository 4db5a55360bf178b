package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pricestalk/pricestalk/internal/config"
	"github.com/pricestalk/pricestalk/internal/fetcher"
	"github.com/pricestalk/pricestalk/internal/normalize"
	"github.com/pricestalk/pricestalk/internal/sites"
	"github.com/pricestalk/pricestalk/internal/store"
	"github.com/pricestalk/pricestalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Crawl.Concurrency = 3
	cfg.Crawl.MaxPages = 10
	cfg.Crawl.PolitenessDelay = 0
	cfg.Crawl.RequestTimeout = 5 * time.Second
	cfg.Crawl.MaxRetries = 0
	return cfg
}

// scriptedSite replays canned parse results keyed by request URL, so engine
// tests exercise scheduling without depending on real site markup.
type scriptedSite struct {
	id        types.WebsiteId
	searchURL string
	results   map[string]*sites.SearchPage
	items     map[string]types.RawFieldSet
}

func (s *scriptedSite) ID() types.WebsiteId           { return s.id }
func (s *scriptedSite) SearchURL(query string) string { return s.searchURL }

func (s *scriptedSite) ParseSearchResults(resp *types.Response) (*sites.SearchPage, error) {
	if page, ok := s.results[resp.Request.URLString()]; ok {
		return page, nil
	}
	return &sites.SearchPage{}, nil
}

func (s *scriptedSite) ParseDetailPage(resp *types.Response) (types.RawFieldSet, error) {
	return s.items[resp.Request.URLString()], nil
}

func newTestRunner(t *testing.T, cfg *config.Config, site sites.Site) (*Runner, *store.Aggregator) {
	t.Helper()

	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	agg := store.NewAggregator(store.NewMemoryStore(), testLogger)
	r := NewRunner(cfg, f, agg, testLogger)
	r.SetSiteResolver(func(types.WebsiteId) (sites.Site, error) { return site, nil })
	return r, agg
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rawItem(name string) types.RawFieldSet {
	return types.RawFieldSet{ProductName: name, Price: "$10.00"}
}

func TestRunCrawlCompletes(t *testing.T) {
	srv := okServer(t)

	page1 := srv.URL + "/search?page=1"
	page2 := srv.URL + "/search?page=2"
	site := &scriptedSite{
		id:        types.Amazon,
		searchURL: page1,
		results: map[string]*sites.SearchPage{
			page1: {
				DetailURLs: []string{srv.URL + "/item/1", srv.URL + "/item/2"},
				NextPage:   page2,
			},
			page2: {
				DetailURLs: []string{srv.URL + "/item/3"},
			},
		},
		items: map[string]types.RawFieldSet{
			srv.URL + "/item/1": rawItem("Item One"),
			srv.URL + "/item/2": rawItem("Item Two"),
			srv.URL + "/item/3": rawItem("Item Three"),
		},
	}

	r, agg := newTestRunner(t, testConfig(), site)
	summary, err := r.RunCrawl(context.Background(), types.CrawlTarget{
		ProductQuery: "item",
		Websites:     []types.WebsiteId{types.Amazon},
	})
	if err != nil {
		t.Fatalf("RunCrawl: %v", err)
	}

	res := summary.PerWebsite[types.Amazon]
	if res.Status != LaneCompleted {
		t.Errorf("status = %s, want completed", res.Status)
	}
	if res.Emitted != 3 {
		t.Errorf("emitted = %d, want 3", res.Emitted)
	}
	if got := len(agg.LatestFor("")); got != 3 {
		t.Errorf("aggregator holds %d observations, want 3", got)
	}
}

func TestRunCrawlItemLimit(t *testing.T) {
	srv := okServer(t)

	page1 := srv.URL + "/search?page=1"
	site := &scriptedSite{
		id:        types.Ebay,
		searchURL: page1,
		results:   map[string]*sites.SearchPage{page1: {}},
		items:     map[string]types.RawFieldSet{},
	}
	for i := 0; i < 20; i++ {
		u := fmt.Sprintf("%s/item/%d", srv.URL, i)
		site.results[page1].DetailURLs = append(site.results[page1].DetailURLs, u)
		site.items[u] = rawItem(fmt.Sprintf("Item %d", i))
	}

	r, agg := newTestRunner(t, testConfig(), site)
	summary, err := r.RunCrawl(context.Background(), types.CrawlTarget{
		ProductQuery: "item",
		Websites:     []types.WebsiteId{types.Ebay},
		ItemLimit:    5,
	})
	if err != nil {
		t.Fatalf("RunCrawl: %v", err)
	}

	res := summary.PerWebsite[types.Ebay]
	if res.Status != LaneLimitReached {
		t.Errorf("status = %s, want limit_reached", res.Status)
	}
	if res.Emitted != 5 {
		t.Errorf("emitted = %d, want exactly 5", res.Emitted)
	}
	if got := len(agg.LatestFor("")); got != 5 {
		t.Errorf("aggregator holds %d observations, want exactly 5", got)
	}
}

func TestRunCrawlPaginationLoop(t *testing.T) {
	srv := okServer(t)

	page1 := srv.URL + "/search?page=1"
	page2 := srv.URL + "/search?page=2"
	site := &scriptedSite{
		id:        types.Walmart,
		searchURL: page1,
		results: map[string]*sites.SearchPage{
			page1: {
				DetailURLs: []string{srv.URL + "/item/a"},
				NextPage:   page2,
			},
			// Cycle: page 2 links back to page 1.
			page2: {NextPage: page1},
		},
		items: map[string]types.RawFieldSet{
			srv.URL + "/item/a": rawItem("Item A"),
		},
	}

	r, _ := newTestRunner(t, testConfig(), site)

	done := make(chan *CrawlRunSummary, 1)
	go func() {
		summary, _ := r.RunCrawl(context.Background(), types.CrawlTarget{
			ProductQuery: "item",
			Websites:     []types.WebsiteId{types.Walmart},
		})
		done <- summary
	}()

	select {
	case summary := <-done:
		res := summary.PerWebsite[types.Walmart]
		if res.Status != LaneCompleted {
			t.Errorf("status = %s, want completed", res.Status)
		}
		if res.Emitted != 1 {
			t.Errorf("emitted = %d, want 1", res.Emitted)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("crawl did not terminate; pagination loop guard failed")
	}
}

func TestRunCrawlSearchFailure(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	site := &scriptedSite{
		id:        types.Amazon,
		searchURL: srv.URL + "/search",
	}

	r, _ := newTestRunner(t, testConfig(), site)
	summary, err := r.RunCrawl(context.Background(), types.CrawlTarget{
		ProductQuery: "item",
		Websites:     []types.WebsiteId{types.Amazon},
	})
	if err == nil {
		t.Fatal("expected error from failed search entry")
	}
	if !errors.Is(err, types.ErrSearchFailed) {
		t.Errorf("error = %v, want ErrSearchFailed", err)
	}

	res := summary.PerWebsite[types.Amazon]
	if res.Status != LaneFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	if res.Emitted != 0 {
		t.Errorf("emitted = %d, want 0", res.Emitted)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("search attempts = %d, want 3 before failing", got)
	}
}

func TestRunCrawlEmptyQuery(t *testing.T) {
	r, _ := newTestRunner(t, testConfig(), &scriptedSite{id: types.Amazon})

	_, err := r.RunCrawl(context.Background(), types.CrawlTarget{})
	if !errors.Is(err, types.ErrEmptyQuery) {
		t.Errorf("error = %v, want ErrEmptyQuery", err)
	}
}

func TestLimitRollsBackWhenRecordFails(t *testing.T) {
	detailURL := "https://example.com/item/1"
	site := &scriptedSite{
		id:    types.Amazon,
		items: map[string]types.RawFieldSet{detailURL: rawItem("Failing Item")},
	}

	ms := store.NewMemoryStore()
	ms.Close(context.Background())
	agg := store.NewAggregator(ms, testLogger)

	l := newLane(site, testConfig(), nil, normalize.New(), agg, &Stats{}, testLogger, "item", 1)

	req, err := types.NewPageRequest(detailURL, types.DetailPage, "item")
	if err != nil {
		t.Fatal(err)
	}
	l.handleDetailPage(context.Background(), &types.Response{Request: req, FinalURL: detailURL})

	// The observation that would have hit the limit never landed, so the
	// lane must not report the limit as reached.
	if l.limitHit.Load() {
		t.Error("limitHit must roll back when the store rejects the record")
	}
	if got := l.emitted.Load(); got != 0 {
		t.Errorf("emitted = %d, want 0 after rollback", got)
	}
	if l.err() == nil {
		t.Error("store failure should surface as the lane error")
	}
}

func TestRunCrawlSkipsDuplicateDetailURLs(t *testing.T) {
	srv := okServer(t)

	page1 := srv.URL + "/search?page=1"
	dup := srv.URL + "/item/dup"
	site := &scriptedSite{
		id:        types.Amazon,
		searchURL: page1,
		results: map[string]*sites.SearchPage{
			page1: {DetailURLs: []string{dup, dup, dup}},
		},
		items: map[string]types.RawFieldSet{dup: rawItem("Dup Item")},
	}

	r, _ := newTestRunner(t, testConfig(), site)
	summary, err := r.RunCrawl(context.Background(), types.CrawlTarget{
		ProductQuery: "item",
		Websites:     []types.WebsiteId{types.Amazon},
	})
	if err != nil {
		t.Fatalf("RunCrawl: %v", err)
	}
	if res := summary.PerWebsite[types.Amazon]; res.Emitted != 1 {
		t.Errorf("emitted = %d, want duplicate links collapsed to 1", res.Emitted)
	}
}
