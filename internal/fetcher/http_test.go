package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/pricestalk/pricestalk/internal/config"
	"github.com/pricestalk/pricestalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Crawl.RequestTimeout = 5 * time.Second
	f, err := NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func fetchURL(t *testing.T, f *HTTPFetcher, url string) (*types.Response, error) {
	t.Helper()
	req, err := types.NewPageRequest(url, types.DetailPage, "q")
	if err != nil {
		t.Fatalf("bad URL: %v", err)
	}
	return f.Fetch(context.Background(), req)
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	resp, err := fetchURL(t, f, srv.URL+"/page")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != "<html><body>hello</body></html>" {
		t.Errorf("body = %q", resp.Body)
	}
	if resp.FinalURL != srv.URL+"/page" {
		t.Errorf("final URL = %q", resp.FinalURL)
	}
}

func TestFetchGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("<html>compressed</html>"))
		gz.Close()
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	resp, err := fetchURL(t, f, srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(resp.Body) != "<html>compressed</html>" {
		t.Errorf("body = %q, want decompressed", resp.Body)
	}
}

func TestFetchStatusTaxonomy(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"not found", http.StatusNotFound, false},
		{"forbidden", http.StatusForbidden, false},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			f := newTestFetcher(t)
			_, err := fetchURL(t, f, srv.URL)
			var fe *types.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want FetchError", err)
			}
			if fe.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", fe.StatusCode, tt.status)
			}
			if fe.IsRetryable() != tt.retryable {
				t.Errorf("retryable = %v, want %v", fe.IsRetryable(), tt.retryable)
			}
		})
	}
}

func TestFetchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := fetchURL(t, f, srv.URL)
	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want FetchError", err)
	}
	if !fe.IsRetryable() {
		t.Error("429 must be retryable")
	}
	if fe.RetryAfter != 7*time.Second {
		t.Errorf("retry after = %s, want 7s", fe.RetryAfter)
	}
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := fetchURL(t, f, srv.URL)
	if !errors.Is(err, types.ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestUserAgentRotation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Crawl.UserAgents = []string{"ua-one", "ua-two"}
	f, err := NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		seen[f.nextUserAgent()] = true
	}
	if !seen["ua-one"] || !seen["ua-two"] {
		t.Errorf("rotation hit %v, want both agents", seen)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 5 * time.Second},
		{"10", 10 * time.Second},
		{"300", 120 * time.Second}, // capped
		{"garbage", 5 * time.Second},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
}
