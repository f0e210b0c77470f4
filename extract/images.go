package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// hiResSweepRe matches the site's hi-res image naming convention
	// anywhere in the document, the lowest-priority discovery fallback.
	hiResSweepRe = regexp.MustCompile(`https://[^"'\s\\]+/images/I/[^"'\s\\]+?\._AC_SL\d{3,4}_\.(?:jpg|jpeg|png)`)

	// badImageRe filters sprite/overlay/icon candidates that are never
	// product photography.
	badImageRe = regexp.MustCompile(`(?i)sprite|icon|overlay|play-button|grey-pixel|transparent-pixel|loading|\.gif$|/G/01/`)
)

// Images merges image candidates from every known source in a fixed
// priority order, filters out sprite/icon patterns, deduplicates, and
// returns the first survivor as the primary image with the rest as the
// secondary set. The primary is never a member of the secondary set.
//
// Source priority:
//  1. the dedicated hi-res attribute on the primary image element;
//  2. the size-keyed dynamic-image mapping on the same element, ordered by
//     declared pixel area;
//  3. the embedded gallery object in a script payload (located by
//     brace-matching, not a full-document parse);
//  4. a full-document sweep for the hi-res naming convention.
func Images(doc *goquery.Document, rawHTML string) (primary string, others []string) {
	var candidates []string

	if v, ok := doc.Find("#landingImage, #imgBlkFront").Attr("data-old-hires"); ok {
		candidates = append(candidates, v)
	}

	if v, ok := doc.Find("#landingImage, #imgBlkFront").Attr("data-a-dynamic-image"); ok {
		candidates = append(candidates, dynamicImageURLs(v)...)
	}

	candidates = append(candidates, galleryURLs(doc)...)

	candidates = append(candidates, hiResSweepRe.FindAllString(rawHTML, -1)...)

	seen := make(map[string]struct{}, len(candidates))
	kept := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || !strings.HasPrefix(c, "http") {
			continue
		}
		if badImageRe.MatchString(c) {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		kept = append(kept, c)
	}

	if len(kept) == 0 {
		return "", []string{}
	}
	return kept[0], kept[1:]
}

// dynamicImageURLs decodes the size-keyed mapping attribute
// ({"url": [width, height], ...}) and returns its URLs ordered by declared
// pixel area, largest first.
func dynamicImageURLs(attr string) []string {
	var m map[string][2]float64
	if err := json.Unmarshal([]byte(attr), &m); err != nil {
		return nil
	}

	type sized struct {
		url  string
		area float64
	}
	entries := make([]sized, 0, len(m))
	for u, dims := range m {
		entries = append(entries, sized{url: u, area: dims[0] * dims[1]})
	}
	// Insertion sort: the mapping holds a handful of entries at most.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].area > entries[j-1].area; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = e.url
	}
	return urls
}

// galleryEntry mirrors one image record of the embedded gallery object.
type galleryEntry struct {
	HiRes   string `json:"hiRes"`
	Large   string `json:"large"`
	MainURL string `json:"mainUrl"`
}

// galleryURLs locates the color/image gallery object embedded in a script
// payload and returns its hi-res (falling back to large) URLs. The payload
// sits inside a larger non-JSON script, so it is isolated with the
// best-effort fragment scanner; failure contributes nothing.
func galleryURLs(doc *goquery.Document) []string {
	var urls []string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "colorImages") {
			return true
		}
		fragment, ok := ScanJSONObject(text, "colorImages")
		if !ok {
			return true
		}

		var gallery struct {
			Initial []galleryEntry `json:"initial"`
		}
		if err := json.Unmarshal(fragment, &gallery); err != nil {
			return true
		}
		for _, entry := range gallery.Initial {
			switch {
			case entry.HiRes != "":
				urls = append(urls, entry.HiRes)
			case entry.Large != "":
				urls = append(urls, entry.Large)
			case entry.MainURL != "":
				urls = append(urls, entry.MainURL)
			}
		}
		return len(urls) == 0
	})
	return urls
}
