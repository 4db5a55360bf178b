package types

import (
	"encoding/json"
	"strings"
	"time"
)

// WebsiteId identifies a supported e-commerce site.
type WebsiteId string

const (
	Amazon  WebsiteId = "Amazon"
	Ebay    WebsiteId = "eBay"
	Walmart WebsiteId = "Walmart"
)

// AllWebsites lists every supported site in canonical order.
var AllWebsites = []WebsiteId{Amazon, Ebay, Walmart}

// ParseWebsiteId resolves a case-insensitive site name to a WebsiteId.
func ParseWebsiteId(name string) (WebsiteId, bool) {
	for _, w := range AllWebsites {
		if strings.EqualFold(name, string(w)) {
			return w, true
		}
	}
	return "", false
}

// CrawlTarget describes a single crawl invocation. Immutable once created.
type CrawlTarget struct {
	ProductQuery string
	Websites     []WebsiteId
	ItemLimit    int // 0 = unlimited
}

// RawFieldSet holds the raw strings captured from one detail page before
// normalization. Every field is optional; absence is the zero value.
type RawFieldSet struct {
	ProductName  string
	Price        string
	Currency     string
	URL          string
	Availability string
	Rating       string
	ReviewsCount string
	ProductID    string
	Description  string
	ImageURL     string
}

// IsEmpty reports whether no field was captured at all.
func (r RawFieldSet) IsEmpty() bool {
	return r == RawFieldSet{}
}

// Observation is one normalized, timestamped price snapshot for a product at
// a website. Append-only: never mutated after construction. Field order
// follows ExportHeader so every serialized form reads the same; the optional
// extras trail the canonical columns.
type Observation struct {
	ProductName  string    `json:"product_name" bson:"product_name"`
	Price        float64   `json:"price" bson:"price"`
	Currency     string    `json:"currency" bson:"currency"`
	Website      WebsiteId `json:"website" bson:"website"`
	URL          string    `json:"url" bson:"url"`
	ProductID    string    `json:"product_id,omitempty" bson:"product_id,omitempty"`
	Availability string    `json:"availability,omitempty" bson:"availability,omitempty"`
	Rating       *float64  `json:"rating,omitempty" bson:"rating,omitempty"`
	ReviewsCount *int      `json:"reviews_count,omitempty" bson:"reviews_count,omitempty"`
	SearchTerm   string    `json:"search_term" bson:"search_term"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	ImageURL     string    `json:"image_url,omitempty" bson:"image_url,omitempty"`
}

// Key returns the (productName, website) identity used by the latest-price index.
type Key struct {
	ProductName string
	Website     WebsiteId
}

// Key returns the deduplication identity of this observation.
func (o *Observation) Key() Key {
	return Key{ProductName: o.ProductName, Website: o.Website}
}

// ExportHeader is the canonical column order for any serialized hand-off.
var ExportHeader = []string{
	"product_name", "price", "currency", "website", "url", "product_id",
	"availability", "rating", "reviews_count", "search_term", "timestamp",
}

// ToJSON serializes the observation with the canonical field layout.
func (o *Observation) ToJSON() ([]byte, error) {
	return json.Marshal(o)
}
