// Package extract pulls the normalized product record out of a confirmed
// product page. Every field is read through an ordered chain of
// (probe, extractor) pairs evaluated in sequence, so the fallback order is
// an enumerable, testable data structure rather than nested recovery logic.
package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/sellerscope/pdpfetch/classify"
	"github.com/sellerscope/pdpfetch/models"
)

// fieldProbe is one step of a field's fallback chain.
type fieldProbe struct {
	name string
	fn   func(doc *goquery.Document) (string, bool)
}

// runChain evaluates probes in order and returns the first hit, or the
// sentinel when the whole chain misses.
func runChain(doc *goquery.Document, chain []fieldProbe) string {
	for _, p := range chain {
		if v, ok := p.fn(doc); ok && v != "" {
			return v
		}
	}
	return models.Unspecified
}

// Extractor runs the full pipeline. The markdown converter is created once
// and reused across requests (goroutine-safe).
type Extractor struct {
	mdConverter *converter.Converter
}

// New initialises the Extractor.
func New() *Extractor {
	return &Extractor{mdConverter: newMarkdownConverter()}
}

// Extract assembles the product record from a snapshot. It must only be
// called once classification has confirmed a product page; on anything else
// the chains simply miss and the record stays at its sentinels.
func (e *Extractor) Extract(snap *classify.Snapshot) *models.ExtractionResult {
	doc := snap.Doc()
	result := models.NewExtractionResult()

	result.Title = runChain(doc, titleChain)
	result.Brand = runChain(doc, brandChain)
	result.ItemForm = runChain(doc, attributeChain("item form", "po-item_form"))
	result.Price = runChain(doc, priceChain)

	result.Bullets = bullets(doc)

	if desc, html, ok := description(doc); ok {
		result.Description = desc
		if md, err := toMarkdown(e.mdConverter, html, snap.URL); err == nil && strings.TrimSpace(md) != "" {
			result.DescriptionMarkdown = strings.TrimSpace(md)
		}
	}

	primary, others := Images(doc, snap.HTML)
	if primary != "" {
		result.MainImage = primary
	}
	result.OtherImages = others

	result.Rating = runChain(doc, ratingChain)
	result.ReviewCount = runChain(doc, reviewCountChain)
	result.AvailabilityDate = runChain(doc, availabilityDateChain)
	result.PrimaryRank, result.SecondaryRank = salesRanks(doc)

	return result
}

// normalizeSpace collapses all whitespace runs to single spaces and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textOf returns the whitespace-normalized text of the first match.
func textOf(doc *goquery.Document, selector string) (string, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	text := normalizeSpace(sel.Text())
	return text, text != ""
}
