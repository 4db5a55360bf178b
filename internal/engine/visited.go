package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Visited tracks fetched URLs for one website, guarding the frontier against
// cyclic pagination and duplicate detail links.
type Visited struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewVisited creates an empty visited-URL set.
func NewVisited() *Visited {
	return &Visited{seen: make(map[string]struct{}, 1024)}
}

// Seen returns true if the URL (after canonicalization) was already added.
func (v *Visited) Seen(rawURL string) bool {
	hash := hashURL(CanonicalizeURL(rawURL))
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.seen[hash]
	return ok
}

// Add marks a URL as visited. Returns false if it was already present,
// letting callers check-and-mark in one step.
func (v *Visited) Add(rawURL string) bool {
	hash := hashURL(CanonicalizeURL(rawURL))
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[hash]; ok {
		return false
	}
	v.seen[hash] = struct{}{}
	return true
}

// Count returns the number of unique URLs seen.
func (v *Visited) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.seen)
}

// CanonicalizeURL normalizes a URL for visited-set membership:
// - lowercases scheme and host
// - removes fragment
// - sorts query parameters
// - removes trailing slash (except root)
// - removes default ports (80 for http, 443 for https)
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, val := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(val))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// hashURL creates a compact hash of a canonical URL.
func hashURL(canonicalURL string) string {
	h := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(h[:16]) // 128-bit hash
}
