package sites

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricestalk/pricestalk/internal/types"
)

// walmartSite extracts product listings from walmart.com markup. Detail
// pages usually carry a JSON-LD Product block, so the structured strategy
// carries most of the weight here.
type walmartSite struct{}

func (walmartSite) ID() types.WebsiteId { return types.Walmart }

func (walmartSite) SearchURL(query string) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "best_match")
	return "https://www.walmart.com/search?" + params.Encode()
}

func (walmartSite) ParseSearchResults(resp *types.Response) (*SearchPage, error) {
	p, err := newPage(resp)
	if err != nil {
		return nil, &types.ExtractError{URL: resp.Request.URLString(), Website: types.Walmart, Err: err}
	}

	out := &SearchPage{}

	p.doc.Find("div[data-item-id]").Each(func(_ int, sel *goquery.Selection) {
		href := sel.Find("a.absolute").AttrOr("href", "")
		if href == "" {
			href = sel.Find("a[link-identifier]").AttrOr("href", "")
		}
		if abs := p.resolve(href); abs != "" {
			out.DetailURLs = append(out.DetailURLs, abs)
		}
	})

	next := p.doc.Find(`a[aria-label="Next Page"]`).AttrOr("href", "")
	out.NextPage = p.resolve(next)

	return out, nil
}

func (walmartSite) ParseDetailPage(resp *types.Response) (types.RawFieldSet, error) {
	p, err := newPage(resp)
	if err != nil {
		return types.RawFieldSet{}, &types.ExtractError{URL: resp.Request.URLString(), Website: types.Walmart, Err: err}
	}

	raw := types.RawFieldSet{
		ProductName: firstMatch(p,
			ldName,
			cssText("h1.f3.b.lh-copy.dark-gray.mt1.mb2"),
			xpathText(`//h1[@itemprop='name']`),
		),
		Price: firstMatch(p,
			ldPrice,
			cssText("span.b.black.f1.mr1"),
			cssAttr(`span[itemprop="price"]`, "content"),
			regexFirst(rePriceText),
		),
		Currency: firstMatch(p,
			ldCurrency,
			cssAttr(`span[itemprop="priceCurrency"]`, "content"),
		),
		ProductID: walmartItemNumber(p),
		Availability: firstMatch(p,
			ldAvailability,
			cssText(`div[data-testid="fulfillment-shipping-text"]`),
		),
		Rating: firstMatch(p,
			ldRating,
			cssText("span.f7.rating-number"),
			regexFirst(reRatingText),
		),
		ReviewsCount: firstMatch(p,
			ldReviewCount,
			cssText(`a[data-testid="product-reviews-link"] span`),
			regexFirst(reReviewsText),
		),
		ImageURL: firstMatch(p,
			ldImage,
			cssAttr("img.db.center.mw100.mh100", "src"),
		),
		Description: firstMatch(p,
			ldDescription,
			cssText(`div[data-testid="product-description"] div`),
		),
		URL: resp.FinalURL,
	}

	return raw, nil
}

// walmartItemNumber strips the "Item #" label from the product details block.
func walmartItemNumber(p *page) string {
	v := firstMatch(p,
		ldSKU,
		cssText(`div[data-testid="product-details"] span.item-number`),
	)
	return strings.TrimSpace(strings.TrimPrefix(v, "Item #"))
}
