package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sellerscope/pdpfetch/models"
)

var (
	ratingRe      = regexp.MustCompile(`([\d.]+)\s+out of\s+5`)
	reviewCountRe = regexp.MustCompile(`[\d,]+`)
	dateRe        = regexp.MustCompile(`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}`)
	rankRe        = regexp.MustCompile(`#([\d,]+)\s+in\s+([^(#\n]+)`)
)

// ratingChain: the review-hook element, the popover title attribute, then
// the star-icon alt text.
var ratingChain = []fieldProbe{
	{"ratingHook", func(doc *goquery.Document) (string, bool) {
		text, ok := textOf(doc, `span[data-hook="rating-out-of-text"]`)
		if !ok {
			return "", false
		}
		return parseRating(text)
	}},
	{"popoverTitle", func(doc *goquery.Document) (string, bool) {
		if v, ok := doc.Find("#acrPopover").Attr("title"); ok {
			return parseRating(v)
		}
		return "", false
	}},
	{"starAlt", func(doc *goquery.Document) (string, bool) {
		text, ok := textOf(doc, "i.a-icon-star span.a-icon-alt, span.a-icon-alt")
		if !ok {
			return "", false
		}
		return parseRating(text)
	}},
}

func parseRating(s string) (string, bool) {
	if m := ratingRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// reviewCountChain: the review-count element, then a text-pattern scan of
// the reviews section.
var reviewCountChain = []fieldProbe{
	{"reviewCountElement", func(doc *goquery.Document) (string, bool) {
		text, ok := textOf(doc, "#acrCustomerReviewText")
		if !ok {
			return "", false
		}
		if m := reviewCountRe.FindString(text); m != "" {
			return m, true
		}
		return "", false
	}},
	{"reviewSectionScan", func(doc *goquery.Document) (string, bool) {
		text, ok := textOf(doc, `span[data-hook="total-review-count"], #averageCustomerReviews`)
		if !ok {
			return "", false
		}
		if m := reviewCountRe.FindString(text); m != "" {
			return m, true
		}
		return "", false
	}},
}

// availabilityDateChain: availability block, detail-list containers, then
// the technical-specs table — each reduced to a date-shaped match.
var availabilityDateChain = []fieldProbe{
	{"availabilityBlock", func(doc *goquery.Document) (string, bool) {
		text, ok := textOf(doc, "#availability")
		if !ok {
			return "", false
		}
		if m := dateRe.FindString(text); m != "" {
			return m, true
		}
		return "", false
	}},
	{"detailList", func(doc *goquery.Document) (string, bool) {
		return detailListDate(doc, "#detailBulletsWrapper_feature_div li, #detailBullets_feature_div li")
	}},
	{"specsTable", func(doc *goquery.Document) (string, bool) {
		return detailListDate(doc, "#productDetails_detailBullets_sections1 tr, #productDetails_techSpec_section_1 tr")
	}},
}

func detailListDate(doc *goquery.Document, selector string) (string, bool) {
	var date string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeSpace(s.Text())
		if !strings.Contains(strings.ToLower(text), "date first available") {
			return true
		}
		if m := dateRe.FindString(text); m != "" {
			date = m
			return false
		}
		return true
	})
	return date, date != ""
}

// salesRanks reads the "#<rank> in <category>" tuples from the detail-list
// containers first, then the technical-specs table. The first tuple is the
// primary rank; the nested sub-rank, when present, is the secondary.
func salesRanks(doc *goquery.Document) (primary, secondary models.SalesRank) {
	primary = models.UnspecifiedRank()
	secondary = models.UnspecifiedRank()

	containers := []string{
		"#detailBulletsWrapper_feature_div li",
		"#detailBullets_feature_div li",
		"#SalesRank",
		"#productDetails_detailBullets_sections1 tr",
		"#productDetails_techSpec_section_1 tr",
	}

	for _, sel := range containers {
		var matches [][]string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := normalizeSpace(s.Text())
			if !strings.Contains(strings.ToLower(text), "best sellers rank") {
				return true
			}
			matches = rankRe.FindAllStringSubmatch(text, 2)
			return len(matches) == 0
		})
		if len(matches) > 0 {
			primary = models.SalesRank{
				Rank:     matches[0][1],
				Category: cleanCategory(matches[0][2]),
			}
			if len(matches) > 1 {
				secondary = models.SalesRank{
					Rank:     matches[1][1],
					Category: cleanCategory(matches[1][2]),
				}
			}
			return primary, secondary
		}
	}
	return primary, secondary
}

func cleanCategory(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "See Top 100 in")
	return strings.TrimSpace(strings.Trim(s, ")"))
}
