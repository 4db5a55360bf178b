package sites

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// productLD is the subset of a schema.org Product block the extraction
// chains consume. All values are kept as raw strings; the normalizer owns
// type coercion.
type productLD struct {
	Name         string
	Price        string
	Currency     string
	Availability string
	Rating       string
	ReviewCount  string
	Image        string
	Description  string
	SKU          string
}

// findProductLD scans <script type="application/ld+json"> blocks for the
// first schema.org Product record. Malformed JSON is skipped, never raised.
func findProductLD(doc *goquery.Document) *productLD {
	var found *productLD

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}

		for _, obj := range decodeLDObjects(raw) {
			if !isProductType(obj["@type"]) {
				continue
			}
			found = productFromLD(obj)
			return false
		}
		return true
	})

	return found
}

// decodeLDObjects flattens a JSON-LD payload into candidate objects,
// handling single objects, arrays, and @graph containers.
func decodeLDObjects(raw string) []map[string]any {
	var objs []map[string]any

	var single map[string]any
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		if graph, ok := single["@graph"].([]any); ok {
			for _, g := range graph {
				if m, ok := g.(map[string]any); ok {
					objs = append(objs, m)
				}
			}
		}
		objs = append(objs, single)
		return objs
	}

	var arr []map[string]any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		objs = append(objs, arr...)
	}
	return objs
}

// isProductType handles @type as both "Product" and ["Product", ...].
func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Product"
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func productFromLD(obj map[string]any) *productLD {
	ld := &productLD{
		Name:        ldString(obj["name"]),
		Description: ldString(obj["description"]),
		SKU:         ldString(obj["sku"]),
		Image:       ldImageString(obj["image"]),
	}

	if offers := firstObject(obj["offers"]); offers != nil {
		ld.Price = ldString(offers["price"])
		ld.Currency = ldString(offers["priceCurrency"])
		avail := ldString(offers["availability"])
		avail = strings.TrimPrefix(avail, "http://schema.org/")
		avail = strings.TrimPrefix(avail, "https://schema.org/")
		ld.Availability = avail
	}

	if agg := firstObject(obj["aggregateRating"]); agg != nil {
		ld.Rating = ldString(agg["ratingValue"])
		ld.ReviewCount = ldString(agg["reviewCount"])
	}

	return ld
}

// firstObject unwraps a value that may be an object or an array of objects.
func firstObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// ldString renders a JSON-LD scalar as a string. Numbers come back from
// encoding/json as float64; trailing zeros are trimmed so "99.00" survives
// round-tripping as "99".
func ldString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	}
	return ""
}

// ldImageString handles image as a string or an array of strings.
func ldImageString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
