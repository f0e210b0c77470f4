package extract

import (
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// excerptLimit caps the diagnostic excerpt length in runes.
const excerptLimit = 300

// Excerpt runs the Readability algorithm over a non-product page and returns
// a short readable-text excerpt for the degraded response, so a caller can
// see what actually loaded without decoding the screenshot. Best-effort:
// any failure returns the empty string.
func Excerpt(rawHTML, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		return ""
	}

	text := normalizeSpace(article.TextContent)
	runes := []rune(text)
	if len(runes) > excerptLimit {
		return string(runes[:excerptLimit]) + "…"
	}
	return text
}
