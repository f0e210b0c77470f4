package navigate

import "strings"

// challengePaths are URL fragments the site uses for its bot interrogation
// endpoints.
var challengePaths = []string{
	"/errors/validatecaptcha",
	"/captcha",
	"showcaptcha",
}

// blockPhrases are interrogation phrases seen in the title or body of a
// challenge page. Matching is case-insensitive.
var blockPhrases = []string{
	"enter the characters you see below",
	"type the characters you see in this image",
	"verifying you are human",
	"to discuss automated access",
	"robot check",
	"automated access to amazon data",
	"sorry, we just need to make sure you're not a robot",
}

// Blocked reports whether the loaded page is a bot challenge, judged from
// the resulting address and a small set of block phrases in the title and
// body text. Pure so the phrase tables are testable without a browser.
func Blocked(finalURL, title, body string) bool {
	lowerURL := strings.ToLower(finalURL)
	for _, p := range challengePaths {
		if strings.Contains(lowerURL, p) {
			return true
		}
	}

	haystack := strings.ToLower(title + "\n" + body)
	for _, p := range blockPhrases {
		if strings.Contains(haystack, p) {
			return true
		}
	}
	return false
}
