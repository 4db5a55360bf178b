package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/pricestalk/pricestalk/internal/types"
)

// Aggregator owns the latest-price index and routes every observation to the
// persistence collaborator. It is the only state shared between website
// lanes; the index update is serialized under one mutex.
type Aggregator struct {
	mu     sync.RWMutex
	latest map[types.Key]*types.Observation
	store  Store
	logger *slog.Logger
}

// NewAggregator creates an Aggregator backed by the given store.
func NewAggregator(s Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		latest: make(map[types.Key]*types.Observation),
		store:  s,
		logger: logger.With("component", "aggregator"),
	}
}

// Record appends the observation to persistent history and updates the
// latest index. The index only moves on a strictly later timestamp, so
// equal-timestamp collisions keep the first writer: recording the same
// observation twice is a no-op for the index. Store failures propagate;
// retry policy belongs to the store.
func (a *Aggregator) Record(ctx context.Context, obs *types.Observation) error {
	if err := a.store.Append(ctx, obs); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := obs.Key()
	cur, ok := a.latest[key]
	if !ok || obs.Timestamp.After(cur.Timestamp) {
		a.latest[key] = obs
	}
	return nil
}

// LatestFor returns one observation per distinct (productName, website)
// whose productName or searchTerm contains the query, case-insensitive.
// Substring match only; no fuzzy tolerance.
func (a *Aggregator) LatestFor(query string) []*types.Observation {
	a.mu.RLock()
	defer a.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]*types.Observation, 0, len(a.latest))
	for _, o := range a.latest {
		if matches(o, q) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Website != out[j].Website {
			return out[i].Website < out[j].Website
		}
		return out[i].ProductName < out[j].ProductName
	})
	return out
}

// HistoryFor returns the persisted timeline for one (productName, website),
// ascending by timestamp.
func (a *Aggregator) HistoryFor(ctx context.Context, productName string, website types.WebsiteId) ([]*types.Observation, error) {
	return a.store.QueryHistory(ctx, productName, website)
}

// Len returns the number of distinct (productName, website) entries indexed.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.latest)
}
