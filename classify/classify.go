package classify

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/sellerscope/pdpfetch/models"
)

// State is the enumerated judgment of what kind of page currently loaded.
type State int

const (
	// Unknown is the initial/default state and the terminal label for pages
	// nothing else matched.
	Unknown State = iota

	// Product is the target content type: a product detail page.
	Product

	// BotChallenge is a captcha or interrogation page.
	BotChallenge

	// ContinueOverlay is a "continue shopping" / add-to-cart side sheet
	// blocking the content.
	ContinueOverlay

	// Detour is an unrelated intermediate page (sign-in, navigation,
	// preferences) the site redirected to.
	Detour

	// TransientError is an upstream 503/504-style failure page.
	TransientError
)

func (s State) String() string {
	switch s {
	case Product:
		return "product"
	case BotChallenge:
		return "botChallenge"
	case ContinueOverlay:
		return "continueOverlay"
	case Detour:
		return "detour"
	case TransientError:
		return "transientError"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of a loaded page. Classification runs on
// snapshots, never on the live page, so it is side-effect-free and the same
// snapshot always yields the same state.
type Snapshot struct {
	URL        string
	StatusCode int
	Title      string
	HTML       string

	doc *goquery.Document
}

// NewSnapshot builds a snapshot from raw page state.
func NewSnapshot(url string, statusCode int, html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeInternal, "failed to parse page HTML", err)
	}
	return &Snapshot{
		URL:        url,
		StatusCode: statusCode,
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		HTML:       html,
		doc:        doc,
	}, nil
}

// FromPage snapshots a live page. The snapshot is derived fresh on every
// call; a stale classification is never trusted across navigations.
func FromPage(page *rod.Page, statusCode int) (*Snapshot, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeSessionClosed, "failed to read page HTML", err)
	}
	url := ""
	if info, infoErr := page.Info(); infoErr == nil {
		url = info.URL
	}
	return NewSnapshot(url, statusCode, html)
}

// Doc exposes the parsed document for the extraction pipeline.
func (s *Snapshot) Doc() *goquery.Document {
	return s.doc
}

var (
	productPathRe   = regexp.MustCompile(`/(?:dp|gp/product)/[A-Z0-9]{10}`)
	challengePathRe = regexp.MustCompile(`(?i)/errors/validatecaptcha|showcaptcha`)
	detourPathRe    = regexp.MustCompile(`(?i)/ap/signin|/gp/navigation|/gp/yourstore|/gp/customer-preferences|/hz/mobile/mission`)
)

var transientMarkers = []string{
	"service unavailable",
	"gateway timeout",
	"sorry! something went wrong",
}

var challengeMarkers = []string{
	"enter the characters you see below",
	"type the characters you see in this image",
	"verifying you are human",
	"robot check",
	"sorry, we just need to make sure you're not a robot",
}

var overlayPhrases = []string{
	"continue shopping",
	"keep shopping",
}

// Classify decides which state the snapshot represents. First match wins;
// the ordering is part of the contract (a challenge page may well contain a
// "continue" button, so BotChallenge is checked before ContinueOverlay).
func Classify(snap *Snapshot) State {
	lowerHTML := strings.ToLower(snap.HTML)
	lowerTitle := strings.ToLower(snap.Title)

	// 1. Transient upstream failure.
	if snap.StatusCode == 503 || snap.StatusCode == 504 {
		return TransientError
	}
	for _, m := range transientMarkers {
		if strings.Contains(lowerTitle, m) || strings.Contains(lowerHTML, m) {
			return TransientError
		}
	}

	// 2. Bot challenge: address, interrogation phrases, or a captcha-shaped
	// image/input pair.
	if challengePathRe.MatchString(snap.URL) {
		return BotChallenge
	}
	for _, m := range challengeMarkers {
		if strings.Contains(lowerTitle, m) || strings.Contains(lowerHTML, m) {
			return BotChallenge
		}
	}
	if snap.doc.Find(`img[src*="captcha"]`).Length() > 0 &&
		snap.doc.Find(`input#captchacharacters, input[name="field-keywords"][id*="captcha"]`).Length() > 0 {
		return BotChallenge
	}

	// 3. Continue-shopping overlay / attach side sheet.
	if hasContinueOverlay(snap.doc) {
		return ContinueOverlay
	}

	// 4. Detour: known non-content path family without the product path.
	if detourPathRe.MatchString(snap.URL) && !productPathRe.MatchString(snap.URL) {
		return Detour
	}

	// 5. Product: title element plus at least one strong secondary signal.
	if snap.doc.Find("#productTitle").Length() > 0 {
		if snap.doc.Find("#bylineInfo").Length() > 0 ||
			snap.doc.Find("#add-to-cart-button").Length() > 0 ||
			snap.doc.Find("#dp-container").Length() > 0 {
			return Product
		}
	}

	return Unknown
}

// hasContinueOverlay looks for a visible dismiss/continue control: the known
// side-sheet close button, a button/link labeled with a continue phrase, or
// an attach-style child frame.
func hasContinueOverlay(doc *goquery.Document) bool {
	if sel := doc.Find("#attach-close_sideSheet-link"); sel.Length() > 0 && !hiddenInline(sel) {
		return true
	}

	found := false
	doc.Find(`button, a, input[type="submit"], span.a-button-inner`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if text == "" {
			if v, ok := s.Attr("value"); ok {
				text = strings.ToLower(v)
			} else if v, ok := s.Attr("aria-label"); ok {
				text = strings.ToLower(v)
			}
		}
		for _, phrase := range overlayPhrases {
			if strings.Contains(text, phrase) && !hiddenInline(s) {
				found = true
				return false
			}
		}
		return true
	})
	if found {
		return true
	}

	attach := false
	doc.Find("iframe").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		src, _ := s.Attr("src")
		id := name + " " + src
		if strings.Contains(strings.ToLower(id), "attach") ||
			strings.Contains(strings.ToLower(id), "sidesheet") {
			attach = true
			return false
		}
		return true
	})
	return attach
}

// hiddenInline is a static-HTML visibility approximation: an element whose
// own or ancestor inline style hides it, or that carries the site's hidden
// utility class, is treated as not visible.
func hiddenInline(sel *goquery.Selection) bool {
	for s := sel; s.Length() > 0; s = s.Parent() {
		if style, ok := s.Attr("style"); ok {
			compact := strings.ReplaceAll(strings.ToLower(style), " ", "")
			if strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden") {
				return true
			}
		}
		if s.HasClass("aok-hidden") || s.HasClass("a-hidden") {
			return true
		}
		if goquery.NodeName(s) == "body" || goquery.NodeName(s) == "html" {
			break
		}
	}
	return false
}
