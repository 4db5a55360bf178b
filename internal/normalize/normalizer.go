package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pricestalk/pricestalk/internal/types"
)

// Normalizer converts raw field sets captured by the extraction chains into
// canonical observations. Pure and deterministic apart from the clock.
type Normalizer struct {
	now func() time.Time
}

// New creates a Normalizer stamping observations with the wall clock.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock creates a Normalizer with a fixed clock, for tests.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

var (
	reAmount   = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)
	reCurrency = regexp.MustCompile(`\b([A-Z]{3})\b`)
	reDecimal  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	reInteger  = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
}

// Normalize turns one raw field set into an Observation, or nil when the
// record is unusable (missing name or unparseable price). Optional fields
// that fail to parse degrade to absent without rejecting the record. The
// timestamp is stamped here, at capture time.
func (n *Normalizer) Normalize(raw types.RawFieldSet, website types.WebsiteId, searchTerm string) *types.Observation {
	name := strings.TrimSpace(raw.ProductName)
	if name == "" {
		return nil
	}

	price, priceCurrency, ok := ParsePrice(raw.Price)
	if !ok {
		return nil
	}

	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if currency == "" {
		currency = priceCurrency
	}
	if currency == "" {
		currency = "USD"
	}

	obs := &types.Observation{
		ProductName:  name,
		Price:        price,
		Currency:     currency,
		Website:      website,
		URL:          strings.TrimSpace(raw.URL),
		ProductID:    strings.TrimSpace(raw.ProductID),
		Description:  strings.TrimSpace(raw.Description),
		ImageURL:     strings.TrimSpace(raw.ImageURL),
		Availability: strings.TrimSpace(raw.Availability),
		SearchTerm:   strings.TrimSpace(searchTerm),
		Timestamp:    n.now(),
	}

	if r, ok := parseRating(raw.Rating); ok {
		obs.Rating = &r
	}
	if c, ok := parseCount(raw.ReviewsCount); ok {
		obs.ReviewsCount = &c
	}

	return obs
}

// ParsePrice coerces locale-ish price text to a plain decimal, stripping
// thousands separators. The second return is the currency token found in the
// text ("" when none): "$1,234.56" -> (1234.56, "USD"), "EUR 99.00" ->
// (99.00, "EUR").
func ParsePrice(text string) (float64, string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", false
	}

	amount := reAmount.FindString(text)
	if amount == "" {
		return 0, "", false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(amount, ",", ""), 64)
	if err != nil || value < 0 {
		return 0, "", false
	}

	currency := ""
	if m := reCurrency.FindStringSubmatch(text); m != nil {
		currency = m[1]
	} else {
		for _, c := range currencySymbols {
			if strings.Contains(text, c.symbol) {
				currency = c.code
				break
			}
		}
	}

	return value, currency, true
}

// parseRating takes the first decimal in the text and accepts it only inside
// the 0-5 scale. Malformed or out-of-scale text resolves to absent.
func parseRating(text string) (float64, bool) {
	m := reDecimal.FindString(text)
	if m == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(m, 64)
	if err != nil || value < 0 || value > 5 {
		return 0, false
	}
	return value, true
}

// parseCount extracts a comma-grouped integer ("1,234 ratings" -> 1234).
func parseCount(text string) (int, bool) {
	m := reInteger.FindString(text)
	if m == "" {
		return 0, false
	}
	value, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
