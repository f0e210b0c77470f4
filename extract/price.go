package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/sellerscope/pdpfetch/models"
)

// priceContainers are probed in order for the first currency-prefixed
// numeric text node. Compiled once; these selectors run on every request.
var priceContainers = compileAll(
	"#corePrice_feature_div .a-offscreen",
	"#corePriceDisplay_desktop_feature_div .a-offscreen",
	"#apex_desktop .a-offscreen",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	".a-price .a-offscreen",
	"#price_inside_buybox",
)

func compileAll(selectors ...string) []cascadia.Selector {
	compiled := make([]cascadia.Selector, len(selectors))
	for i, s := range selectors {
		compiled[i] = cascadia.MustCompile(s)
	}
	return compiled
}

var (
	currencyPriceRe = regexp.MustCompile(`(?:[$€£¥₹]|USD|EUR|GBP|CAD|JPY)\s?\d[\d,]*(?:\.\d{1,2})?`)
	barePriceRe     = regexp.MustCompile(`\d[\d,]*(?:\.\d{1,2})?`)
	currencyMarkRe  = regexp.MustCompile(`[$€£¥₹]|\b(?:USD|EUR|GBP|CAD|JPY)\b`)
	symbolRe        = regexp.MustCompile(`[$€£¥₹]`)
	isoCodeRe       = regexp.MustCompile(`\b[A-Z]{3}\b`)
	centsGroupRe    = regexp.MustCompile(`^(.*\d)[, ](\d{2})$`)
)

// priceChain: currency-prefixed text in a known price container, else a bare
// numeric with a symbol borrowed from a nearby symbol element or a currency
// meta tag.
var priceChain = []fieldProbe{
	{"priceContainers", func(doc *goquery.Document) (string, bool) {
		for _, sel := range priceContainers {
			var found string
			doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text := normalizeSpace(s.Text())
				if m := currencyPriceRe.FindString(text); m != "" {
					found = m
					return false
				}
				return true
			})
			if found != "" {
				return found, true
			}
		}
		return "", false
	}},
	{"borrowedSymbol", func(doc *goquery.Document) (string, bool) {
		for _, sel := range priceContainers {
			text := normalizeSpace(doc.FindMatcher(sel).First().Text())
			num := barePriceRe.FindString(text)
			if num == "" {
				continue
			}
			if sym := normalizeSpace(doc.Find(".a-price-symbol").First().Text()); sym != "" {
				return sym + num, true
			}
			if code, ok := doc.Find(`meta[itemprop="priceCurrency"], meta[property="og:price:currency"]`).Attr("content"); ok && code != "" {
				return code + " " + num, true
			}
		}
		return "", false
	}},
}

// superscripts maps the Unicode super/subscript digits the site styles cents
// with back to plain digits.
var superscripts = map[rune]rune{
	'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4',
	'⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9',
	'₀': '0', '₁': '1', '₂': '2', '₃': '3', '₄': '4',
	'₅': '5', '₆': '6', '₇': '7', '₈': '8', '₉': '9',
}

// NormalizePrice normalizes a price string as read by the vision model:
//
//   - super/subscript numerals become plain digits;
//   - a comma- or space-separated cents group becomes a decimal point
//     ("34,95" → "34.95");
//   - if digits were superscripted and still lack a decimal point, one is
//     inserted two digits from the end ("³⁴⁹⁹" → "34.99");
//   - a missing currency symbol/ISO code is borrowed from the DOM-derived
//     price.
//
// The routine is idempotent: an already-normalized price passes through
// unchanged.
func NormalizePrice(visionPrice, domPrice string) string {
	s := strings.TrimSpace(visionPrice)
	if s == "" || s == models.Unspecified {
		return models.Unspecified
	}

	hadSuper := false
	var b strings.Builder
	for _, r := range s {
		if plain, ok := superscripts[r]; ok {
			hadSuper = true
			b.WriteRune(plain)
		} else {
			b.WriteRune(r)
		}
	}
	s = b.String()

	if !strings.Contains(s, ".") {
		if m := centsGroupRe.FindStringSubmatch(s); m != nil {
			s = m[1] + "." + m[2]
		} else if hadSuper {
			s = insertCentsPoint(s)
		}
	}

	if !currencyMarkRe.MatchString(s) && domPrice != "" && domPrice != models.Unspecified {
		if sym := symbolRe.FindString(domPrice); sym != "" {
			s = sym + s
		} else if code := isoCodeRe.FindString(domPrice); code != "" {
			s = code + " " + s
		}
	}

	return s
}

// insertCentsPoint places a decimal point two digits before the end of the
// last digit run. Positions are rune-indexed: the digits may sit next to a
// multibyte currency mark, and slicing by byte offset would split it.
func insertCentsPoint(s string) string {
	runes := []rune(s)

	end := -1
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] >= '0' && runes[i] <= '9' {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return s
	}
	start := end
	for start > 0 && runes[start-1] >= '0' && runes[start-1] <= '9' {
		start--
	}
	if end-start <= 2 {
		return s
	}

	out := make([]rune, 0, len(runes)+1)
	out = append(out, runes[:end-2]...)
	out = append(out, '.')
	out = append(out, runes[end-2:]...)
	return string(out)
}
