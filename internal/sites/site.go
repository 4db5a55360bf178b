package sites

import (
	"fmt"

	"github.com/pricestalk/pricestalk/internal/types"
)

// SearchPage is the outcome of parsing one search-results page: the detail
// pages it links to and the next pagination hop, if any. An empty NextPage
// terminates that branch of the frontier.
type SearchPage struct {
	DetailURLs []string
	NextPage   string
}

// Site is the per-website extraction capability. Implementations are pure
// with respect to the response: they never fetch, they only read markup.
type Site interface {
	// ID identifies the website this implementation understands.
	ID() types.WebsiteId

	// SearchURL builds the search entry point for a product query.
	SearchURL(query string) string

	// ParseSearchResults extracts detail-page links and the next-page link
	// from a search-results page. URLs are absolute.
	ParseSearchResults(resp *types.Response) (*SearchPage, error)

	// ParseDetailPage extracts a raw field set from a product detail page.
	// A set missing both name and price means "no product found, skip".
	ParseDetailPage(resp *types.Response) (types.RawFieldSet, error)
}

// ForWebsite returns the Site implementation for the given id.
func ForWebsite(id types.WebsiteId) (Site, error) {
	switch id {
	case types.Amazon:
		return amazonSite{}, nil
	case types.Ebay:
		return ebaySite{}, nil
	case types.Walmart:
		return walmartSite{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownSite, id)
	}
}
