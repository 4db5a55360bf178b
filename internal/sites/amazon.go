package sites

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricestalk/pricestalk/internal/types"
)

// amazonSite extracts product listings from amazon.com markup.
type amazonSite struct{}

func (amazonSite) ID() types.WebsiteId { return types.Amazon }

func (amazonSite) SearchURL(query string) string {
	params := url.Values{}
	params.Set("k", query)
	params.Set("ref", "nb_sb_noss")
	return "https://www.amazon.com/s?" + params.Encode()
}

func (amazonSite) ParseSearchResults(resp *types.Response) (*SearchPage, error) {
	p, err := newPage(resp)
	if err != nil {
		return nil, &types.ExtractError{URL: resp.Request.URLString(), Website: types.Amazon, Err: err}
	}

	out := &SearchPage{}

	p.doc.Find(`div[data-component-type="s-search-result"]`).Each(func(_ int, sel *goquery.Selection) {
		href := sel.Find("a.a-link-normal.s-no-outline").AttrOr("href", "")
		if href == "" {
			// Layout variant: title link instead of image link
			href = sel.Find("h2 a").AttrOr("href", "")
		}
		if abs := p.resolve(href); abs != "" {
			out.DetailURLs = append(out.DetailURLs, abs)
		}
	})

	next := p.doc.Find("a.s-pagination-item.s-pagination-next").AttrOr("href", "")
	out.NextPage = p.resolve(next)

	return out, nil
}

func (amazonSite) ParseDetailPage(resp *types.Response) (types.RawFieldSet, error) {
	p, err := newPage(resp)
	if err != nil {
		return types.RawFieldSet{}, &types.ExtractError{URL: resp.Request.URLString(), Website: types.Amazon, Err: err}
	}

	raw := types.RawFieldSet{
		ProductName: firstMatch(p,
			ldName,
			cssText("#productTitle"),
			xpathText(`//h1[@id='title']//span`),
		),
		Price: firstMatch(p,
			ldPrice,
			amazonPriceParts,
			cssText("span.a-price span.a-offscreen"),
			regexFirst(rePriceText),
		),
		Currency: firstMatch(p,
			ldCurrency,
		),
		ProductID: firstMatch(p,
			ldSKU,
			cssAttr("input#ASIN", "value"),
			xpathText(`//th[contains(text(),'ASIN')]/following-sibling::td`),
		),
		Availability: firstMatch(p,
			ldAvailability,
			cssText("#availability span"),
			xpathText(`//div[@id='availability']//span`),
		),
		Rating: firstMatch(p,
			ldRating,
			cssText("span.a-icon-alt"),
			cssText(`span[data-hook="rating-out-of-text"]`),
			regexFirst(reRatingText),
		),
		ReviewsCount: firstMatch(p,
			ldReviewCount,
			cssText("#acrCustomerReviewText"),
			regexFirst(reReviewsText),
		),
		ImageURL: firstMatch(p,
			ldImage,
			cssAttr("img#landingImage", "src"),
			cssAttr("#imgTagWrapperId img", "src"),
		),
		Description: firstMatch(p,
			ldDescription,
			cssJoin("#feature-bullets .a-list-item", " "),
			cssText("#productDescription p"),
		),
		URL: resp.FinalURL,
	}

	return raw, nil
}

// amazonPriceParts reassembles the split whole/fraction price markup
// ("1,234" + "56" -> "1,234.56").
func amazonPriceParts(p *page) string {
	whole := strings.TrimSpace(p.doc.Find("span.a-price-whole").First().Text())
	fraction := strings.TrimSpace(p.doc.Find("span.a-price-fraction").First().Text())
	if whole == "" {
		return ""
	}
	whole = strings.TrimSuffix(whole, ".")
	if fraction == "" {
		return whole
	}
	return whole + "." + fraction
}
