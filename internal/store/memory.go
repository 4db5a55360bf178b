package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pricestalk/pricestalk/internal/types"
)

// MemoryStore keeps the observation history in process memory. It backs
// tests and single-shot runs that only export at the end.
type MemoryStore struct {
	mu     sync.RWMutex
	obs    []*types.Observation
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Append(_ context.Context, obs *types.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &types.StoreError{Backend: s.Name(), Err: types.ErrStoreClosed}
	}
	s.obs = append(s.obs, obs)
	return nil
}

func (s *MemoryStore) QueryLatest(_ context.Context, query string) ([]*types.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))

	// Insertion order plus a strictly-after comparison gives
	// first-writer-wins on equal timestamps.
	latest := make(map[types.Key]*types.Observation)
	for _, o := range s.obs {
		if !matches(o, q) {
			continue
		}
		cur, ok := latest[o.Key()]
		if !ok || o.Timestamp.After(cur.Timestamp) {
			latest[o.Key()] = o
		}
	}

	out := make([]*types.Observation, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Website != out[j].Website {
			return out[i].Website < out[j].Website
		}
		return out[i].ProductName < out[j].ProductName
	})
	return out, nil
}

func (s *MemoryStore) QueryHistory(_ context.Context, productName string, website types.WebsiteId) ([]*types.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Observation
	for _, o := range s.obs {
		if o.ProductName == productName && o.Website == website {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// All returns every stored observation in insertion order, for export.
func (s *MemoryStore) All() []*types.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Observation, len(s.obs))
	copy(out, s.obs)
	return out
}

func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func matches(o *types.Observation, q string) bool {
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(o.ProductName), q) ||
		strings.Contains(strings.ToLower(o.SearchTerm), q)
}
