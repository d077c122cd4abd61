package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rule is one ordered extraction attempt for a field. Match returns the raw
// candidate text; the field's normalizer decides whether it actually counts.
// Rules are pure: they never mutate the document.
type Rule struct {
	Name  string
	Match func(d *Document) (string, bool)
}

// firstMatch tries rules strictly in declared order and returns the first
// candidate that the normalizer accepts. Later rules are never consulted once
// a rule wins, even if they would also match.
func firstMatch[T any](d *Document, rules []Rule, normalize func(string) (T, bool)) (T, bool) {
	var zero T
	for _, rule := range rules {
		raw, ok := rule.Match(d)
		if !ok {
			continue
		}
		if value, ok := normalize(raw); ok {
			return value, true
		}
	}
	return zero, false
}

// regexRule matches the first capture group of pattern against the raw HTML.
func regexRule(name, pattern string) Rule {
	re := regexp.MustCompile(pattern)
	return Rule{
		Name: name,
		Match: func(d *Document) (string, bool) {
			m := re.FindStringSubmatch(d.HTML())
			if len(m) < 2 || strings.TrimSpace(m[1]) == "" {
				return "", false
			}
			return html.UnescapeString(strings.TrimSpace(m[1])), true
		},
	}
}

// splitRegexRule matches a pattern with two capture groups holding the whole
// and fractional parts of a price, joining them as "whole.fraction". Amazon
// renders most prices this way (a-price-whole next to a-price-fraction), so
// the join has to happen before normalization or the fraction is lost.
func splitRegexRule(name, pattern string) Rule {
	re := regexp.MustCompile(pattern)
	return Rule{
		Name: name,
		Match: func(d *Document) (string, bool) {
			m := re.FindStringSubmatch(d.HTML())
			if len(m) < 3 {
				return "", false
			}
			return strings.TrimSpace(m[1]) + "." + strings.TrimSpace(m[2]), true
		},
	}
}

// selectorRule matches the text of the first element selected by a CSS query.
func selectorRule(name, selector string) Rule {
	return Rule{
		Name: name,
		Match: func(d *Document) (string, bool) {
			text := strings.TrimSpace(d.Find(selector).First().Text())
			return text, text != ""
		},
	}
}

// The rule lists below are priority-ordered: modern layout first, legacy
// layouts next, structured-data and plain-text fallbacks last. Amazon's
// markup is not stable, so the redundancy is deliberate.

var titleRules = []Rule{
	selectorRule("product-title-element", "#productTitle"),
	regexRule("product-title-span", `(?i)<span[^>]*id="productTitle"[^>]*>\s*([^<]+?)\s*</span>`),
	regexRule("h1-product-title", `(?i)<h1[^>]*class="[^"]*product[^"]*title[^"]*"[^>]*>\s*([^<]+?)\s*</h1>`),
	regexRule("page-title", `(?is)<title>\s*([^<]+?)\s*</title>`),
}

var priceRules = []Rule{
	splitRegexRule("price-whole-fraction",
		`<span[^>]*class="[^"]*a-price-whole[^"]*"[^>]*>([\d,]+)</span><span[^>]*class="[^"]*a-price-fraction[^"]*"[^>]*>(\d+)</span>`),
	regexRule("price-offscreen",
		`<span[^>]*class="[^"]*a-offscreen[^"]*"[^>]*>\s*[₹$£]?\s*([\d,]+(?:\.\d{2})?)[^<]*</span>`),
	regexRule("price-whole-only",
		`<span[^>]*class="[^"]*a-price-whole[^"]*"[^>]*>([\d,]+)</span>`),
	selectorRule("priceblock-deal", "#priceblock_dealprice"),
	selectorRule("priceblock-our", "#priceblock_ourprice"),
	regexRule("json-price-amount", `"priceAmount":\s*([\d.]+)`),
	regexRule("rupee-text", `₹\s*([\d,]+(?:\.\d{2})?)`),
	regexRule("inr-text", `(?i)(?:INR|Rs\.?)\s*([\d,]+(?:\.\d{2})?)`),
	regexRule("dollar-text", `\$\s*([\d,]+(?:\.\d{2})?)`),
	regexRule("pound-text", `£\s*([\d,]+(?:\.\d{2})?)`),
}

var originalPriceRules = []Rule{
	regexRule("text-price-offscreen",
		`<span[^>]*class="[^"]*a-price[^"]*a-text-price[^"]*"[^>]*><span[^>]*class="[^"]*a-offscreen[^"]*"[^>]*>([^<]+)</span>`),
	regexRule("strike-price",
		`<span[^>]*class="[^"]*a-text-strike[^"]*"[^>]*>([^<]+)</span>`),
	regexRule("list-price", `<span[^>]*id="listPrice"[^>]*>([^<]+)</span>`),
	regexRule("mrp-text", `(?i)M\.R\.P\.?:?\s*[₹$£]?\s*([\d,]+(?:\.\d{2})?)`),
}

var discountRules = []Rule{
	regexRule("savings-percentage",
		`<span[^>]*class="[^"]*savingsPercentage[^"]*"[^>]*>\s*-?(\d+)%`),
	regexRule("percent-off", `\((\d+)%\s*off\)`),
	regexRule("save-percent", `(?i)Save\s+(\d+)%`),
}

var ratingRules = []Rule{
	regexRule("stars-alt-text", `(?i)(\d+(?:\.\d+)?)\s*out of 5 stars`),
	regexRule("json-rating-value", `"ratingValue":\s*"?(\d+(?:\.\d+)?)"?`),
	regexRule("average-star-rating",
		`(?s)data-hook="average-star-rating"[^>]*>.*?<span[^>]*>(\d+(?:\.\d+)?)`),
}

var reviewCountRules = []Rule{
	regexRule("acr-review-text",
		`(?i)<span[^>]*id="acrCustomerReviewText"[^>]*>([\d,]+)\s*ratings?`),
	regexRule("json-review-count", `"reviewCount":\s*"?([\d,]+)"?`),
	regexRule("ratings-text", `(?i)([\d,]+)\s*ratings?\b`),
}

var availabilityRules = []Rule{
	selectorRule("availability-element", "#availability span"),
	regexRule("availability-div",
		`(?s)<div[^>]*id="availability"[^>]*>.*?<span[^>]*>([^<]+)</span>`),
}

var brandRules = []Rule{
	regexRule("po-brand-row",
		`(?s)<tr[^>]*class="[^"]*po-brand[^"]*"[^>]*>.*?<span[^>]*class="[^"]*po-break-word[^"]*"[^>]*>([^<]+)</span>`),
	selectorRule("byline-info", "#bylineInfo"),
	regexRule("brand-link", `by <a[^>]*href="[^"]*/brand/[^"]*"[^>]*>([^<]+)</a>`),
}

var (
	colorImagesRe = regexp.MustCompile(`(?s)"colorImages":\s*\{[^{]*"initial":\s*\[(.*?)\]`)
	largeImageRe  = regexp.MustCompile(`"large":"([^"]+)"`)
)

// extractImages collects image URLs in priority order: the structured image
// JSON block, then the thumbnail strip, then the landing image. The result is
// deduplicated and capped by the caller.
func extractImages(d *Document) []string {
	var images []string

	if block := colorImagesRe.FindStringSubmatch(d.HTML()); len(block) > 1 {
		for _, m := range largeImageRe.FindAllStringSubmatch(block[1], -1) {
			images = append(images, m[1])
		}
	}

	if len(images) == 0 {
		d.Find("#altImages ul li img").Each(func(i int, s *goquery.Selection) {
			if src, exists := s.Attr("src"); exists {
				images = append(images, strings.Replace(src, "_AC_US40_", "_AC_SL1500_", 1))
			}
		})
	}

	if len(images) == 0 {
		if src, exists := d.Find("#landingImage").Attr("src"); exists {
			images = append(images, src)
		}
	}

	return dedupe(images)
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
