package types

import (
	"fmt"
	"net/url"
	"time"
)

// PageKind distinguishes the two page layouts the extractor chains understand.
type PageKind int

const (
	SearchResults PageKind = iota
	DetailPage
)

func (k PageKind) String() string {
	switch k {
	case SearchResults:
		return "search_results"
	case DetailPage:
		return "detail_page"
	default:
		return "unknown"
	}
}

// Priority levels for frontier scheduling. Detail pages outrank pagination so
// item limits are reached before more search pages are expanded.
const (
	PrioritySeed       = 0
	PriorityDetail     = 1
	PriorityPagination = 2
)

// PageRequest is one pending fetch in a website's frontier.
type PageRequest struct {
	// URL is the target page.
	URL *url.URL

	// Kind tells the extractor chain which layout to expect.
	Kind PageKind

	// SearchTerm is the product query that spawned this request. It is
	// carried through pagination and onto every emitted observation.
	SearchTerm string

	// Depth counts pagination hops from the seed search page.
	Depth int

	// Priority controls frontier ordering (lower = sooner).
	Priority int

	// Retries tracks how many times this request has been re-queued.
	Retries int

	// CreatedAt is when this request entered the frontier.
	CreatedAt time.Time
}

// NewPageRequest builds a PageRequest with defaults appropriate to its kind.
func NewPageRequest(rawURL string, kind PageKind, searchTerm string) (*PageRequest, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	priority := PriorityDetail
	if kind == SearchResults {
		priority = PriorityPagination
	}

	return &PageRequest{
		URL:        u,
		Kind:       kind,
		SearchTerm: searchTerm,
		Priority:   priority,
		CreatedAt:  time.Now(),
	}, nil
}

// URLString returns the string form of the request URL.
func (r *PageRequest) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *PageRequest) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
