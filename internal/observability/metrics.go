package observability

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pricestalk/pricestalk/internal/engine"
)

// Metrics serves the crawl run counters over HTTP in Prometheus text
// exposition format.
type Metrics struct {
	stats  *engine.Stats
	logger *slog.Logger
}

// NewMetrics creates a Metrics handler over the given run counters.
func NewMetrics(stats *engine.Stats, logger *slog.Logger) *Metrics {
	return &Metrics{
		stats:  stats,
		logger: logger.With("component", "metrics"),
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"pricestalk_requests_total", "Total requests made", m.stats.RequestsSent.Load()},
		{"pricestalk_requests_failed_total", "Total failed requests", m.stats.RequestsFailed.Load()},
		{"pricestalk_pages_parsed_total", "Total pages parsed", m.stats.PagesParsed.Load()},
		{"pricestalk_items_emitted_total", "Total observations recorded", m.stats.ItemsEmitted.Load()},
		{"pricestalk_items_rejected_total", "Total items skipped", m.stats.ItemsRejected.Load()},
		{"pricestalk_urls_filtered_total", "Total URLs filtered", m.stats.URLsFiltered.Load()},
		{"pricestalk_bytes_downloaded_total", "Total bytes downloaded", m.stats.BytesDownloaded.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
}
