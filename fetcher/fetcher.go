package fetcher

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sellerscope/pdpfetch/classify"
	"github.com/sellerscope/pdpfetch/config"
	"github.com/sellerscope/pdpfetch/extract"
	"github.com/sellerscope/pdpfetch/models"
	"github.com/sellerscope/pdpfetch/navigate"
	"github.com/sellerscope/pdpfetch/resolve"
	"github.com/sellerscope/pdpfetch/session"
	"github.com/sellerscope/pdpfetch/vision"
)

// maxResolveRounds caps classify→recover cycles per request. Each strategy
// additionally runs at most once, so this is a backstop against states that
// keep flapping, not the primary budget.
const maxResolveRounds = 4

// storefrontURL is the hop target for mission pages, which reassert
// themselves on a direct renavigation.
const storefrontURL = "https://www.amazon.com/"

// Fetcher runs the full product-fetch pipeline for one request: session,
// probe, navigation, interstitial recovery, extraction, and the vision
// cross-check.
type Fetcher struct {
	cfg       *config.Config
	sessions  *session.Factory
	prefetch  *navigate.Prefetcher
	resolver  *resolve.Resolver
	solver    *resolve.Solver
	extractor *extract.Extractor
	vision    *vision.Client
}

// New wires the pipeline from configuration.
func New(cfg *config.Config, sessions *session.Factory) *Fetcher {
	return &Fetcher{
		cfg:       cfg,
		sessions:  sessions,
		prefetch:  navigate.NewPrefetcher(cfg.Browser.Proxy),
		resolver:  resolve.New(cfg.Resolver),
		solver:    resolve.NewSolver(cfg.Solver),
		extractor: extract.New(),
		vision:    vision.New(cfg.Vision),
	}
}

// Fetch executes one isolated fetch. Degraded outcomes (a challenge that
// outlived its budget, an overlay that would not clear) return a successful
// nonProduct response; only failures that prevent producing any page view at
// all return an error.
func (f *Fetcher) Fetch(ctx context.Context, req models.FetchRequest) (*models.FetchResponse, error) {
	start := time.Now()
	req.Defaults()

	target, err := CanonicalURL(req.Locator)
	if err != nil {
		return nil, err
	}

	diag := models.Diagnostics{}

	if f.cfg.Navigation.Prefetch {
		diag.PrefetchStatus, diag.PrefetchChallenge = f.prefetch.Probe(ctx, target)
		slog.Debug("prefetch probe",
			"target", target,
			"status", diag.PrefetchStatus,
			"challenge", diag.PrefetchChallenge)
	}

	sess, err := f.sessions.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	// The deferred close must target whichever session is current at return
	// time; navigateWithRecovery can replace it mid-request, and a plain
	// `defer sess.Close()` would bind the original receiver and leak the
	// replacement browser.
	defer func() { sess.Close() }()

	navStart := time.Now()
	outcome, err := f.navigateWithRecovery(ctx, &sess, target, req.Timeout)
	if err != nil {
		return nil, err
	}
	diag.NavRetries = outcome.Attempts

	// currentPage re-derives the live page before every interaction: a
	// dismissal click can spawn a pop-up or close the page that navigation
	// originally landed on.
	currentPage := func() *rod.Page {
		if p, pageErr := sess.ActivePage(); pageErr == nil {
			return p
		}
		return outcome.Page
	}
	// snapshot re-reads both the document and its status code from the
	// active page. A page that closed mid-read is retried once against a
	// freshly adopted active page before the error propagates.
	snapshot := func() (*classify.Snapshot, error) {
		p := currentPage()
		snap, snapErr := classify.FromPage(p, navigate.StatusCode(p))
		if snapErr == nil {
			return snap, nil
		}
		p = currentPage()
		return classify.FromPage(p, navigate.StatusCode(p))
	}

	initial, err := classify.FromPage(outcome.Page, outcome.StatusCode)
	if err != nil {
		if initial, err = snapshot(); err != nil {
			return nil, models.NewFetchError(models.ErrCodeSessionClosed, "page disappeared after navigation", err)
		}
	}

	ops := resolve.NewRodOps(currentPage, f.cfg.Resolver.SettleWindow)
	captchaOps := resolve.NewRodCaptchaOps(currentPage, f.cfg.Resolver.SettleWindow)

	snap, state := f.resolveLoop(ctx, ops, captchaOps, snapshot, initial, target, &diag)
	navMs := time.Since(navStart).Milliseconds()
	diag.FinalState = state.String()

	shot := f.screenshot(currentPage())

	resp := &models.FetchResponse{
		Success:     true,
		PageType:    models.PageTypeNonProduct,
		StatusCode:  snap.StatusCode,
		FinalURL:    snap.URL,
		Screenshot:  base64.StdEncoding.EncodeToString(shot),
		Diagnostics: diag,
	}

	var extractMs, visionMs int64
	if state == classify.Product {
		extractStart := time.Now()
		result := f.extractor.Extract(snap)
		extractMs = time.Since(extractStart).Milliseconds()

		visionStart := time.Now()
		f.crossCheck(ctx, shot, result)
		visionMs = time.Since(visionStart).Milliseconds()

		resp.PageType = models.PageTypeProduct
		resp.Result = result
	} else {
		resp.PageExcerpt = extract.Excerpt(snap.HTML, snap.URL)
	}

	resp.Timing = models.TimingInfo{
		TotalMs:      time.Since(start).Milliseconds(),
		NavigationMs: navMs,
		ExtractionMs: extractMs,
		VisionMs:     visionMs,
	}
	return resp, nil
}

// navigateWithRecovery performs the navigation, replacing the session once if
// the browser died underneath it. The session pointer is swapped in place so
// the deferred close in Fetch always closes the live session.
func (f *Fetcher) navigateWithRecovery(ctx context.Context, sess **session.Session, target string, timeoutSec int) (*navigate.Outcome, error) {
	navCfg := f.cfg.Navigation
	if timeoutSec > 0 {
		navCfg.Timeout = time.Duration(timeoutSec) * time.Second
	}
	nav := navigate.New(navCfg)

	outcome, err := nav.Navigate(ctx, *sess, target)
	if err == nil {
		return outcome, nil
	}

	var fetchErr *models.FetchError
	if errors.As(err, &fetchErr) &&
		(fetchErr.Code == models.ErrCodeSessionClosed || fetchErr.Code == models.ErrCodeBrowserCrash) {
		slog.Warn("browser died mid-navigation, retrying with a fresh session", "error", err)
		(*sess).Close()
		fresh, sessErr := f.sessions.NewSession(ctx)
		if sessErr != nil {
			return nil, sessErr
		}
		*sess = fresh
		return nav.Navigate(ctx, fresh, target)
	}
	return nil, err
}

// resolveLoop classifies the page and applies the matching recovery strategy
// until the page is a product, nothing applies, or the round backstop trips.
// Each strategy runs at most once per request; its internal attempt budget is
// its real bound. After every action the snapshot is re-derived through
// snapshot(), never reused, so classification always reflects the page the
// action produced.
func (f *Fetcher) resolveLoop(
	ctx context.Context,
	ops resolve.PageOps,
	captcha resolve.CaptchaOps,
	snapshot func() (*classify.Snapshot, error),
	initial *classify.Snapshot,
	target string,
	diag *models.Diagnostics,
) (*classify.Snapshot, classify.State) {
	snap := initial
	state := classify.Classify(snap)

	var overlayTried, bounceTried, reloadTried bool

	for round := 0; round < maxResolveRounds; round++ {
		if ctx.Err() != nil {
			break
		}

		acted := false
		switch state {
		case classify.BotChallenge:
			if f.solver.Enabled() && !diag.SolverAttempted {
				diag.SolverAttempted = true
				ok, solveErr := f.solver.Solve(ctx, captcha)
				if solveErr != nil {
					slog.Warn("challenge solve failed", "error", solveErr)
				}
				diag.SolverOK = ok
				acted = ok
			}
		case classify.ContinueOverlay:
			if !overlayTried {
				overlayTried = true
				acted = f.resolver.DismissOverlay(ctx, ops, diag)
				if !acted {
					acted = f.resolver.ClickThrough(ctx, ops, diag)
				}
			}
		case classify.Detour:
			if !bounceTried {
				bounceTried = true
				// Mission pages reassert themselves on a direct renavigation;
				// hopping through the storefront root first clears that state.
				if strings.Contains(snap.URL, "/hz/mobile/mission") {
					if hopErr := ops.Navigate(storefrontURL); hopErr == nil {
						ops.Settle()
					}
				}
				acted = f.resolver.Bounce(ctx, ops, target, diag)
			}
		case classify.TransientError:
			// An upstream 5xx interstitial often clears on a straight
			// reload; renavigate to the target within the bounce budget and
			// let the fresh snapshot decide what the page became.
			if !reloadTried {
				reloadTried = true
				acted = f.resolver.Bounce(ctx, ops, target, diag)
			}
		default:
			// Product and Unknown are terminal here.
		}
		if !acted {
			break
		}

		fresh, snapErr := snapshot()
		if snapErr != nil {
			slog.Warn("failed to re-snapshot page after recovery", "error", snapErr)
			break
		}
		snap = fresh
		state = classify.Classify(snap)
		if state == classify.Product {
			break
		}
	}
	return snap, state
}

// screenshot captures a full-page PNG, retrying once; a challenge page can
// swap its DOM mid-capture and fail the first CDP call.
func (f *Fetcher) screenshot(page *rod.Page) []byte {
	capture := &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	}
	for attempt := 0; attempt < 2; attempt++ {
		data, err := page.Screenshot(true, capture)
		if err == nil {
			return data
		}
		slog.Warn("screenshot failed", "attempt", attempt, "error", err)
	}
	return nil
}

// crossCheck runs the vision reading over the screenshot and folds it into
// the record. The vision price passes through normalization and may borrow a
// currency marker from the structural price; a vision failure leaves the
// sentinels in place.
func (f *Fetcher) crossCheck(ctx context.Context, shot []byte, result *models.ExtractionResult) {
	if len(shot) == 0 {
		return
	}
	check, err := f.vision.CrossCheck(ctx, shot)
	if err != nil {
		slog.Warn("vision cross-check failed", "error", err)
	}
	result.VisionBrand = check.Brand
	result.VisionPrice = extract.NormalizePrice(check.Price, result.Price)
}
