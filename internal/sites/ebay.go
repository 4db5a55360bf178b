package sites

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricestalk/pricestalk/internal/types"
)

// ebaySite extracts product listings from ebay.com markup.
type ebaySite struct{}

func (ebaySite) ID() types.WebsiteId { return types.Ebay }

func (ebaySite) SearchURL(query string) string {
	params := url.Values{}
	params.Set("_nkw", query)
	params.Set("_sacat", "0")
	params.Set("LH_TitleDesc", "0")
	return "https://www.ebay.com/sch/i.html?" + params.Encode()
}

func (ebaySite) ParseSearchResults(resp *types.Response) (*SearchPage, error) {
	p, err := newPage(resp)
	if err != nil {
		return nil, &types.ExtractError{URL: resp.Request.URLString(), Website: types.Ebay, Err: err}
	}

	out := &SearchPage{}

	p.doc.Find("li.s-item").Each(func(_ int, sel *goquery.Selection) {
		// Skip the "More items like this" banner entry
		if sel.Find(".s-item__title--tagblock").Length() > 0 {
			return
		}
		href := sel.Find("a.s-item__link").AttrOr("href", "")
		if abs := p.resolve(href); abs != "" {
			out.DetailURLs = append(out.DetailURLs, abs)
		}
	})

	next := p.doc.Find("a.pagination__next").AttrOr("href", "")
	out.NextPage = p.resolve(next)

	return out, nil
}

func (ebaySite) ParseDetailPage(resp *types.Response) (types.RawFieldSet, error) {
	p, err := newPage(resp)
	if err != nil {
		return types.RawFieldSet{}, &types.ExtractError{URL: resp.Request.URLString(), Website: types.Ebay, Err: err}
	}

	raw := types.RawFieldSet{
		ProductName: firstMatch(p,
			ldName,
			cssText("h1.x-item-title__mainTitle span"),
			cssText("h1.it-ttl"),
		),
		Price: firstMatch(p,
			ldPrice,
			cssText("div.x-price-primary span"),
			cssText("span#prcIsum"),
			regexFirst(rePriceText),
		),
		Currency: firstMatch(p,
			ldCurrency,
		),
		ProductID: ebayItemNumber(p),
		Rating: firstMatch(p,
			ldRating,
			cssText("div.ebay-review-start-rating"),
			xpathText(`//span[@class='reviews-star-rating']`),
			regexFirst(reRatingText),
		),
		ReviewsCount: firstMatch(p,
			ldReviewCount,
			cssText("div.reviews-right span"),
			regexFirst(reReviewsText),
		),
		ImageURL: firstMatch(p,
			ldImage,
			cssAttr("img#icImg", "src"),
			cssAttr("div.ux-image-carousel-item img", "src"),
		),
		Description: firstMatch(p,
			ldDescription,
			cssText("div.x-item-description div.d-item-description-text"),
			ebayDescriptionIframe,
		),
		Availability: ebayAvailability(p),
		URL:          resp.FinalURL,
	}

	return raw, nil
}

// ebayItemNumber strips the "Item number:" label the listing wraps around
// the identifier.
func ebayItemNumber(p *page) string {
	v := firstMatch(p,
		ldSKU,
		cssText("div.x-item-number span"),
	)
	return strings.TrimSpace(strings.TrimPrefix(v, "Item number:"))
}

// ebayAvailability folds quantity and sold-count hints into one string.
// Listings rarely say "in stock" outright, so "Available" is the baseline.
func ebayAvailability(p *page) string {
	availability := "Available"

	qty := strings.TrimSpace(p.doc.Find("span.qtyTxt span").First().Text())
	if qty != "" && strings.Contains(strings.ToLower(qty), "available") {
		availability = qty
	}

	sold := strings.TrimSpace(p.doc.Find("span.vi-qtyS-hot-red").First().Text())
	if sold != "" && strings.Contains(strings.ToLower(sold), "sold") {
		availability = availability + " (" + sold + ")"
	}

	return availability
}

// ebayDescriptionIframe marks descriptions that live behind the seller
// iframe; following it would be a second fetch, which the chains never do.
func ebayDescriptionIframe(p *page) string {
	if p.doc.Find("iframe#desc_ifr").Length() > 0 {
		return "See full description on eBay"
	}
	return ""
}
