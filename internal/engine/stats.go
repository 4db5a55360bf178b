package engine

import (
	"sync/atomic"
	"time"
)

// Stats tracks crawl-run counters across all website lanes.
type Stats struct {
	RequestsSent    atomic.Int64
	RequestsFailed  atomic.Int64
	PagesParsed     atomic.Int64
	ItemsEmitted    atomic.Int64
	ItemsRejected   atomic.Int64
	URLsFiltered    atomic.Int64
	BytesDownloaded atomic.Int64
	StartTime       time.Time
}

// Snapshot returns a copy of the counters safe for logging or serving.
func (s *Stats) Snapshot() map[string]any {
	out := map[string]any{
		"requests_sent":    s.RequestsSent.Load(),
		"requests_failed":  s.RequestsFailed.Load(),
		"pages_parsed":     s.PagesParsed.Load(),
		"items_emitted":    s.ItemsEmitted.Load(),
		"items_rejected":   s.ItemsRejected.Load(),
		"urls_filtered":    s.URLsFiltered.Load(),
		"bytes_downloaded": s.BytesDownloaded.Load(),
	}
	if !s.StartTime.IsZero() {
		out["elapsed"] = time.Since(s.StartTime).String()
	}
	return out
}
