package fetcher

import (
	"context"

	"github.com/pricestalk/pricestalk/internal/types"
)

// Fetcher retrieves pages for the crawl lanes. Implementations must be safe
// for concurrent use by multiple lanes.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.PageRequest) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
