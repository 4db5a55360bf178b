package types

import (
	"strings"
	"testing"
	"time"
)

func TestParseWebsiteIdCaseInsensitive(t *testing.T) {
	tests := []struct {
		in   string
		want WebsiteId
		ok   bool
	}{
		{"amazon", Amazon, true},
		{"EBAY", Ebay, true},
		{"Walmart", Walmart, true},
		{"etsy", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseWebsiteId(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseWebsiteId(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestObservationJSONFollowsCanonicalOrder(t *testing.T) {
	rating := 4.5
	reviews := 12
	o := &Observation{
		ProductName:  "Widget",
		Price:        9.99,
		Currency:     "USD",
		Website:      Amazon,
		URL:          "https://www.amazon.com/dp/B0X",
		ProductID:    "B0X",
		Availability: "In Stock",
		Rating:       &rating,
		ReviewsCount: &reviews,
		SearchTerm:   "widget",
		Timestamp:    time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		Description:  "A widget.",
		ImageURL:     "https://example.com/w.jpg",
	}

	data, err := o.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	s := string(data)

	// Canonical columns first, in ExportHeader order; extras trail.
	keys := append(append([]string{}, ExportHeader...), "description", "image_url")
	last := -1
	for _, k := range keys {
		idx := strings.Index(s, `"`+k+`"`)
		if idx < 0 {
			t.Fatalf("serialized form missing %q: %s", k, s)
		}
		if idx < last {
			t.Errorf("key %q out of canonical order in %s", k, s)
		}
		last = idx
	}
}

func TestRawFieldSetIsEmpty(t *testing.T) {
	if !(RawFieldSet{}).IsEmpty() {
		t.Error("zero value should be empty")
	}
	if (RawFieldSet{Price: "$1"}).IsEmpty() {
		t.Error("set with a field should not be empty")
	}
}
