package sites

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/pricestalk/pricestalk/internal/types"
)

// page wraps one fetched document with the handles the extraction strategies
// need: a goquery document for CSS, a parsed node tree for XPath, the raw
// body for regex scans, and the base URL for resolving relative links.
type page struct {
	doc  *goquery.Document
	body string
	base *url.URL

	node     *html.Node // lazily parsed for XPath strategies
	nodeDone bool

	ld     *productLD // lazily extracted JSON-LD Product block
	ldDone bool
}

func newPage(resp *types.Response) (*page, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}

	rawBase := resp.FinalURL
	if rawBase == "" && resp.Request != nil {
		rawBase = resp.Request.URLString()
	}
	base, err := url.Parse(rawBase)
	if err != nil {
		base = nil
	}

	return &page{
		doc:  doc,
		body: string(resp.Body),
		base: base,
	}, nil
}

// xpathNode returns the html.Node tree, parsing it on first use.
func (p *page) xpathNode() *html.Node {
	if !p.nodeDone {
		p.nodeDone = true
		node, err := html.Parse(strings.NewReader(p.body))
		if err == nil {
			p.node = node
		}
	}
	return p.node
}

// productLD returns the page's JSON-LD Product block, extracting it on first use.
func (p *page) productLD() *productLD {
	if !p.ldDone {
		p.ldDone = true
		p.ld = findProductLD(p.doc)
	}
	return p.ld
}

// resolve turns a possibly-relative href into an absolute URL string.
func (p *page) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if p.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := p.base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// strategy produces one candidate raw value for a field. An empty string is
// a miss; the next strategy in the chain gets its turn.
type strategy func(p *page) string

// firstMatch evaluates a chain of strategies in order and returns the first
// non-empty trimmed result. Exhausting the chain resolves to absent, never
// an error.
func firstMatch(p *page, chain ...strategy) string {
	for _, s := range chain {
		if v := strings.TrimSpace(s(p)); v != "" {
			return v
		}
	}
	return ""
}

// cssText matches the first element for a CSS selector and returns its text.
func cssText(selector string) strategy {
	return func(p *page) string {
		return p.doc.Find(selector).First().Text()
	}
}

// cssAttr matches the first element for a CSS selector and returns an attribute.
func cssAttr(selector, attr string) strategy {
	return func(p *page) string {
		return p.doc.Find(selector).First().AttrOr(attr, "")
	}
}

// cssJoin concatenates the text of every match, separated by sep.
func cssJoin(selector, sep string) strategy {
	return func(p *page) string {
		var parts []string
		p.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if t := strings.TrimSpace(sel.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		return strings.Join(parts, sep)
	}
}

// xpathText evaluates an XPath expression and returns the first node's text.
func xpathText(expr string) strategy {
	return func(p *page) string {
		root := p.xpathNode()
		if root == nil {
			return ""
		}
		node, err := htmlquery.Query(root, expr)
		if err != nil || node == nil {
			return ""
		}
		return htmlquery.InnerText(node)
	}
}

// Last-resort free-text patterns. These scan the whole body, so they sit at
// the end of every chain.
var (
	// A currency symbol or ISO code followed by a decimal amount.
	rePriceText = regexp.MustCompile(`(?:[$€£]\s?|[A-Z]{3}\s)\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?`)

	// A 1-5 rating like "4.5 out of 5" or "4.5 stars".
	reRatingText = regexp.MustCompile(`([0-5](?:\.\d+)?)\s*(?:out of 5|stars)`)

	// A comma-grouped integer next to a ratings/reviews word.
	reReviewsText = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)\s*(?:global )?(?:ratings|reviews|review)`)
)

// regexFirst scans the raw body with a compiled pattern and returns the first
// capture group when the pattern has one, otherwise the full match.
func regexFirst(re *regexp.Regexp) strategy {
	return func(p *page) string {
		m := re.FindStringSubmatch(p.body)
		if m == nil {
			return ""
		}
		if len(m) > 1 {
			return m[1]
		}
		return m[0]
	}
}

// JSON-LD backed strategies. These sit at the head of every chain: a present
// Product block supersedes the structural selectors for each field it
// supplies, and fields it omits fall through to the rest of the chain.

func ldName(p *page) string {
	if ld := p.productLD(); ld != nil {
		return ld.Name
	}
	return ""
}

func ldPrice(p *page) string {
	if ld := p.productLD(); ld != nil {
		return ld.Price
	}
	return ""
}

func ldCurrency(p *page) string {
	if ld := p.productLD(); ld != nil {
		return ld.Currency
	}
	return ""
}

func ldAvailability(p *page) string {
	if ld := p.productLD(); ld != nil {
		return ld.Availability
	}
	return ""
}

func ldRating(p *page) string {
	if ld := p.productLD(); ld != nil {
		return ld.Rating
	}
	return ""
}

func ldReviewCount(p *page) string {
	if ld := p.productLD(); ld != nil {
		return ld.ReviewCount
	}
	return ""
}

func ldImage(p *page) string {
	if ld := p.productLD(); ld != nil {
		return ld.Image
	}
	return ""
}

func ldDescription(p *page) string {
	if ld := p.productLD(); ld != nil {
		return ld.Description
	}
	return ""
}

func ldSKU(p *page) string {
	if ld := p.productLD(); ld != nil {
		return ld.SKU
	}
	return ""
}
