package navigate

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/sellerscope/pdpfetch/config"
	"github.com/sellerscope/pdpfetch/models"
	"github.com/sellerscope/pdpfetch/session"
)

// Navigator performs timed, retried loads of a target URL into the session's
// active page and runs the block-detection probe after every load.
type Navigator struct {
	cfg config.NavigationConfig
}

// New creates a Navigator.
func New(cfg config.NavigationConfig) *Navigator {
	return &Navigator{cfg: cfg}
}

// Outcome describes a completed navigation.
type Outcome struct {
	Page       *rod.Page
	StatusCode int
	FinalURL   string
	Attempts   int
	Blocked    bool
}

// Navigate loads the target into the session with a bounded timeout per
// attempt, using a "stop at first committed response" policy: waiting for an
// adversarial page to fully settle is unbounded, so after commit we only
// race a short ceiling for DOM-ready or the product-title marker.
//
// Transport errors back off with jitter and retry up to the configured
// budget; the final transport failure is a NAVIGATION_FAILED error. A page
// that loads but trips the block probe also consumes retries (a reload often
// passes), but if the block persists the outcome is returned with Blocked
// set so the classifier and the captcha strategy can take over — a persistent
// challenge is a recoverable state, not a navigation failure.
func (n *Navigator) Navigate(ctx context.Context, sess *session.Session, target string) (*Outcome, error) {
	var lastErr error

	for attempt := 0; attempt <= n.cfg.Retries; attempt++ {
		if attempt > 0 {
			if !backoff(ctx, attempt) {
				break
			}
		}

		page, err := sess.ActivePage()
		if err != nil {
			lastErr = err
			continue
		}

		navCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
		p := page.Context(navCtx)

		if err := p.Navigate(target); err != nil {
			cancel()
			lastErr = err
			slog.Warn("navigation attempt failed",
				"target", target, "attempt", attempt, "error", err)
			continue
		}

		n.waitReady(p)

		outcome := &Outcome{
			Page:       page,
			StatusCode: StatusCode(p),
			FinalURL:   finalURL(p, target),
			Attempts:   attempt,
		}

		title, body := titleAndBody(p)
		cancel()

		if Blocked(outcome.FinalURL, title, body) {
			slog.Warn("block probe tripped",
				"target", target, "finalURL", outcome.FinalURL, "attempt", attempt)
			outcome.Blocked = true
			if attempt < n.cfg.Retries {
				continue
			}
			return outcome, nil
		}

		return outcome, nil
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	code := models.ErrCodeNavigation
	if errors.Is(lastErr, context.DeadlineExceeded) {
		code = models.ErrCodeTimeout
	}
	return nil, models.NewFetchError(code, "navigation to target failed", lastErr)
}

// waitReady waits for either a DOM-ready signal or the primary content
// marker, whichever comes first, capped at a short ceiling. Once meaningful
// content is present there is no reason to keep burning timeout budget.
func (n *Navigator) waitReady(p *rod.Page) {
	const readyJS = `() => document.readyState !== "loading" ||
		!!document.querySelector("#productTitle")`

	deadline := time.Now().Add(n.cfg.ReadyCeiling)
	for time.Now().Before(deadline) {
		res, err := p.Eval(readyJS)
		if err == nil && res.Value.Bool() {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// StatusCode reads the current navigation's HTTP status via the Performance
// API. This avoids CDP network-event listeners, which conflict with request
// interception on recent Chromium builds. Re-reading after a renavigation
// yields the status of the new document, not the original load.
func StatusCode(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func finalURL(p *rod.Page, fallback string) string {
	if info, err := p.Info(); err == nil && info.URL != "" {
		return info.URL
	}
	return fallback
}

// titleAndBody pulls the document title and a capped slice of visible body
// text for the block probe.
func titleAndBody(p *rod.Page) (string, string) {
	var title, body string
	if res, err := p.Eval(`() => document.title`); err == nil {
		title = res.Value.Str()
	}
	if res, err := p.Eval(`() => document.body ? document.body.innerText.slice(0, 4000) : ""`); err == nil {
		body = res.Value.Str()
	}
	return title, body
}

// backoff sleeps with exponential growth plus jitter, respecting ctx.
// Returns false if the context expired during the sleep.
func backoff(ctx context.Context, attempt int) bool {
	d := time.Duration(1<<uint(attempt-1)) * 1500 * time.Millisecond
	d += time.Duration(rand.Intn(500)) * time.Millisecond
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
