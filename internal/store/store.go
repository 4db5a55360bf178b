package store

import (
	"context"

	"github.com/pricestalk/pricestalk/internal/types"
)

// Store is the persistence collaborator for observations. The crawl core
// treats history as append-only: observations are never updated or deleted.
// Implementations must be safe under concurrent writers from multiple
// website lanes.
type Store interface {
	// Append persists one observation.
	Append(ctx context.Context, obs *types.Observation) error

	// QueryLatest returns the most recent observation per distinct
	// (productName, website) whose productName or searchTerm contains the
	// query, case-insensitive.
	QueryLatest(ctx context.Context, query string) ([]*types.Observation, error)

	// QueryHistory returns every observation for one (productName, website),
	// ascending by timestamp.
	QueryHistory(ctx context.Context, productName string, website types.WebsiteId) ([]*types.Observation, error)

	// Close flushes pending writes and releases resources.
	Close(ctx context.Context) error

	// Name returns the backend identifier.
	Name() string
}
