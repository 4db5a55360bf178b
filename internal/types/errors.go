package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrDuplicate     = errors.New("duplicate URL")
	ErrLimitReached  = errors.New("item limit reached")
	ErrUnknownSite   = errors.New("unknown website")
	ErrEmptyQuery    = errors.New("empty product query")
	ErrSearchFailed  = errors.New("search entry point unreachable")
	ErrStoreClosed   = errors.New("store is closed")
	ErrNotFound      = errors.New("no observations found")
	ErrEmptyResponse = errors.New("empty response body")
)

// FetchError wraps errors that occur while fetching a page. A FetchError
// drops only the request that caused it; the frontier keeps draining.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ExtractError wraps errors raised while extracting fields from a page.
// Extraction misses are not errors; this covers malformed documents only.
type ExtractError struct {
	URL     string
	Website WebsiteId
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract error for %s (%s): %v", e.URL, e.Website, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// StoreError wraps persistence collaborator failures. The aggregator
// propagates these to its caller without retrying.
type StoreError struct {
	Backend string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s): %v", e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
