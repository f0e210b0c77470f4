package fetcher

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sellerscope/pdpfetch/models"
)

// itemIDRe matches a bare 10-character item identifier.
var itemIDRe = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// CanonicalURL resolves a locator to the URL the browser should load. A bare
// item identifier maps onto the canonical product path; anything else must
// parse as an http(s) URL, with a missing scheme tolerated.
func CanonicalURL(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", models.NewFetchError(models.ErrCodeInvalidInput, "locator is required", nil)
	}

	if id := strings.ToUpper(locator); itemIDRe.MatchString(id) {
		return "https://www.amazon.com/dp/" + id, nil
	}

	raw := locator
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", models.NewFetchError(models.ErrCodeInvalidInput, "locator is not a valid URL or item id", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", models.NewFetchError(models.ErrCodeInvalidInput, "locator scheme must be http or https", nil)
	}
	return u.String(), nil
}
