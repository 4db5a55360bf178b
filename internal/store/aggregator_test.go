package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/pricestalk/pricestalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func obsAt(name string, website types.WebsiteId, price float64, ts time.Time) *types.Observation {
	return &types.Observation{
		ProductName: name,
		Price:       price,
		Currency:    "USD",
		Website:     website,
		SearchTerm:  "test",
		Timestamp:   ts,
	}
}

func TestAggregatorLatestByTimestamp(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), testLogger)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Older observation recorded after a newer one must not displace it.
	for _, o := range []*types.Observation{
		obsAt("Widget", types.Amazon, 10.00, base),
		obsAt("Widget", types.Amazon, 12.00, base.Add(2*time.Hour)),
		obsAt("Widget", types.Amazon, 11.00, base.Add(1*time.Hour)),
		obsAt("Widget", types.Ebay, 9.50, base),
	} {
		if err := agg.Record(ctx, o); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	latest := agg.LatestFor("widget")
	if len(latest) != 2 {
		t.Fatalf("latest entries = %d, want one per (product, website)", len(latest))
	}
	// Sorted by website, then name: Amazon < eBay.
	if latest[0].Website != types.Amazon || latest[0].Price != 12.00 {
		t.Errorf("Amazon latest = %v @ %v, want 12.00 at newest timestamp", latest[0].Price, latest[0].Timestamp)
	}
	if latest[1].Website != types.Ebay || latest[1].Price != 9.50 {
		t.Errorf("eBay latest = %v", latest[1].Price)
	}
}

func TestAggregatorFirstWriterWinsOnEqualTimestamps(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), testLogger)
	ctx := context.Background()
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first := obsAt("Widget", types.Amazon, 10.00, ts)
	second := obsAt("Widget", types.Amazon, 99.00, ts)

	if err := agg.Record(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := agg.Record(ctx, second); err != nil {
		t.Fatal(err)
	}

	latest := agg.LatestFor("")
	if len(latest) != 1 {
		t.Fatalf("latest entries = %d, want 1", len(latest))
	}
	if latest[0].Price != 10.00 {
		t.Errorf("price = %v, want the first writer kept on equal timestamps", latest[0].Price)
	}
}

func TestAggregatorRecordIdempotentForIndex(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), testLogger)
	ctx := context.Background()
	o := obsAt("Widget", types.Walmart, 5.00, time.Now())

	agg.Record(ctx, o)
	agg.Record(ctx, o)

	if agg.Len() != 1 {
		t.Errorf("index size = %d, want re-recording to be a no-op", agg.Len())
	}
}

func TestAggregatorHistoryAscending(t *testing.T) {
	ms := NewMemoryStore()
	agg := NewAggregator(ms, testLogger)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Recorded out of order on purpose.
	agg.Record(ctx, obsAt("Widget", types.Amazon, 12.00, base.Add(2*time.Hour)))
	agg.Record(ctx, obsAt("Widget", types.Amazon, 10.00, base))
	agg.Record(ctx, obsAt("Widget", types.Amazon, 11.00, base.Add(time.Hour)))
	agg.Record(ctx, obsAt("Other", types.Amazon, 1.00, base))
	agg.Record(ctx, obsAt("Widget", types.Ebay, 2.00, base))

	hist, err := agg.HistoryFor(ctx, "Widget", types.Amazon)
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("history entries = %d, want 3", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].Timestamp.Before(hist[i-1].Timestamp) {
			t.Errorf("history not non-decreasing at %d: %v after %v", i, hist[i].Timestamp, hist[i-1].Timestamp)
		}
	}
	if hist[0].Price != 10.00 || hist[2].Price != 12.00 {
		t.Errorf("history order = %v, %v, %v", hist[0].Price, hist[1].Price, hist[2].Price)
	}
}

func TestAggregatorStoreFailurePropagates(t *testing.T) {
	ms := NewMemoryStore()
	ms.Close(context.Background())
	agg := NewAggregator(ms, testLogger)

	err := agg.Record(context.Background(), obsAt("Widget", types.Amazon, 1.00, time.Now()))
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
	if !errors.Is(err, types.ErrStoreClosed) {
		t.Errorf("error = %v, want ErrStoreClosed", err)
	}
	if agg.Len() != 0 {
		t.Error("index must not advance when the store rejects the append")
	}
}

func TestMemoryStoreQueryLatest(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	ms.Append(ctx, obsAt("Alpha Keyboard", types.Amazon, 50, base))
	ms.Append(ctx, obsAt("Alpha Keyboard", types.Amazon, 45, base.Add(time.Hour)))
	ms.Append(ctx, obsAt("Beta Mouse", types.Ebay, 20, base))

	got, err := ms.QueryLatest(ctx, "keyboard")
	if err != nil {
		t.Fatalf("QueryLatest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("results = %d, want substring filter to keep 1", len(got))
	}
	if got[0].Price != 45 {
		t.Errorf("price = %v, want newest", got[0].Price)
	}

	all, err := ms.QueryLatest(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("empty query results = %d, want every key", len(all))
	}
}

func TestMemoryStoreAllKeepsFullHistory(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	ms.Append(ctx, obsAt("Widget", types.Amazon, 10, base))
	ms.Append(ctx, obsAt("Widget", types.Amazon, 12, base.Add(time.Hour)))
	ms.Append(ctx, obsAt("Other", types.Ebay, 3, base))

	all := ms.All()
	if len(all) != 3 {
		t.Fatalf("All returned %d observations, want every appended one", len(all))
	}
	// Insertion order, superseded prices included.
	if all[0].Price != 10 || all[1].Price != 12 || all[2].Price != 3 {
		t.Errorf("order = %v, %v, %v", all[0].Price, all[1].Price, all[2].Price)
	}
}

func TestMemoryStoreClosedRejectsAppend(t *testing.T) {
	ms := NewMemoryStore()
	ms.Close(context.Background())

	err := ms.Append(context.Background(), obsAt("X", types.Amazon, 1, time.Now()))
	var se *types.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want StoreError", err)
	}
	if se.Backend != "memory" {
		t.Errorf("backend = %q", se.Backend)
	}
}
