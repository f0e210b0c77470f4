package session

import (
	"github.com/go-rod/rod"
	"github.com/sellerscope/pdpfetch/models"
)

// ActivePage re-derives the live page the session should operate on. Clicks
// on an adversarial site can spawn pop-up pages, and the original page may
// have been closed out from under us, so the active page is always computed
// from the browser's full page list: the most recently opened page with a
// non-blank URL wins.
func (s *Session) ActivePage() (*rod.Page, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, models.NewFetchError(
			models.ErrCodeSessionClosed,
			"failed to enumerate pages",
			err,
		)
	}

	urls := make([]string, len(pages))
	for i, p := range pages {
		if info, infoErr := p.Info(); infoErr == nil {
			urls[i] = info.URL
		}
	}

	idx := pickActive(urls)
	if idx < 0 {
		return nil, models.NewFetchError(
			models.ErrCodeSessionClosed,
			"no live page left in session",
			nil,
		)
	}

	s.page = pages[idx]
	return s.page, nil
}

// pickActive chooses the index of the most recently opened non-blank page.
// If every page is blank, the most recent page is still preferred over
// nothing; -1 means the session has no pages at all.
func pickActive(urls []string) int {
	for i := len(urls) - 1; i >= 0; i-- {
		if urls[i] != "" && urls[i] != "about:blank" {
			return i
		}
	}
	if len(urls) > 0 {
		return len(urls) - 1
	}
	return -1
}
