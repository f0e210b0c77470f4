package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// titleChain: primary title element, secondary title container, meta tag,
// document title.
var titleChain = []fieldProbe{
	{"productTitle", func(doc *goquery.Document) (string, bool) {
		return textOf(doc, "#productTitle")
	}},
	{"titleSection", func(doc *goquery.Document) (string, bool) {
		return textOf(doc, "#title_feature_div span, #title span")
	}},
	{"metaTitle", func(doc *goquery.Document) (string, bool) {
		if v, ok := doc.Find(`meta[name="title"]`).Attr("content"); ok {
			return normalizeSpace(v), v != ""
		}
		if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			return normalizeSpace(v), v != ""
		}
		return "", false
	}},
	{"documentTitle", func(doc *goquery.Document) (string, bool) {
		return textOf(doc, "title")
	}},
}

// brandChain: byline element, labeled product-overview row, generic
// label/value scan.
var brandChain = []fieldProbe{
	{"byline", func(doc *goquery.Document) (string, bool) {
		text, ok := textOf(doc, "#bylineInfo")
		if !ok {
			return "", false
		}
		return cleanByline(text), true
	}},
	{"overviewRow", func(doc *goquery.Document) (string, bool) {
		return overviewValue(doc, "po-brand", "brand")
	}},
	{"labelScan", func(doc *goquery.Document) (string, bool) {
		return labeledValue(doc, "brand")
	}},
}

// attributeChain builds the chain for a labeled attribute field: the
// class-named overview row, any table row whose label cell matches, then a
// "label: value" bullet.
func attributeChain(label, overviewClass string) []fieldProbe {
	return []fieldProbe{
		{"overviewRow", func(doc *goquery.Document) (string, bool) {
			return overviewValue(doc, overviewClass, label)
		}},
		{"labelScan", func(doc *goquery.Document) (string, bool) {
			return labeledValue(doc, label)
		}},
		{"bulletScan", func(doc *goquery.Document) (string, bool) {
			return bulletValue(doc, label)
		}},
	}
}

// cleanByline strips the decoration the byline wraps around the brand name.
func cleanByline(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Visit the ")
	s = strings.TrimPrefix(s, "Brand: ")
	s = strings.TrimSuffix(s, " Store")
	return strings.TrimSpace(s)
}

// overviewValue reads a structured product-overview table row, first by its
// class name, then by matching the label cell case-insensitively.
func overviewValue(doc *goquery.Document, rowClass, label string) (string, bool) {
	if v, ok := textOf(doc, "tr."+rowClass+" td.a-span9, tr."+rowClass+" td:nth-child(2)"); ok {
		return v, true
	}

	var value string
	doc.Find("#productOverview_feature_div tr, table.a-normal tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return true
		}
		if strings.EqualFold(normalizeSpace(cells.First().Text()), label) {
			value = normalizeSpace(cells.Eq(1).Text())
			return false
		}
		return true
	})
	return value, value != ""
}

// labeledValue scans every table row on the page for a label cell matching
// the field name case-insensitively.
func labeledValue(doc *goquery.Document, label string) (string, bool) {
	var value string
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return true
		}
		cellLabel := strings.TrimSuffix(normalizeSpace(cells.First().Text()), ":")
		if strings.EqualFold(cellLabel, label) {
			value = normalizeSpace(cells.Eq(1).Text())
			return false
		}
		return true
	})
	return value, value != ""
}

// bulletValue scans list items for a "Label : Value" entry.
func bulletValue(doc *goquery.Document, label string) (string, bool) {
	var value string
	doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		text := normalizeSpace(li.Text())
		idx := strings.Index(text, ":")
		if idx <= 0 {
			return true
		}
		if strings.EqualFold(strings.TrimSpace(text[:idx]), label) {
			value = strings.TrimSpace(text[idx+1:])
			return false
		}
		return true
	})
	return value, value != ""
}

// bullets returns the feature-bullet list, whitespace-normalized.
func bullets(doc *goquery.Document) []string {
	out := []string{}
	doc.Find("#feature-bullets li span.a-list-item, #featurebullets_feature_div li span.a-list-item").Each(func(_ int, s *goquery.Selection) {
		if text := normalizeSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// description returns the plain-text description and the raw HTML fragment
// it came from (for markdown conversion).
func description(doc *goquery.Document) (text, html string, ok bool) {
	for _, sel := range []string{"#productDescription", "#aplus_feature_div", "#aplus"} {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text = normalizeSpace(node.Text())
		if text == "" {
			continue
		}
		if h, err := goquery.OuterHtml(node); err == nil {
			html = h
		}
		return text, html, true
	}
	return "", "", false
}
