package resolve

import (
	"context"
	"log/slog"

	"github.com/sellerscope/pdpfetch/config"
	"github.com/sellerscope/pdpfetch/models"
)

// PageOps is the minimal surface the resolver needs from a live page. Each
// click method returns true if it found and actuated a target; the resolver
// never cares how the click happened, only whether one landed.
type PageOps interface {
	// ClickCloseControl clicks the known side-sheet close link.
	ClickCloseControl() bool

	// ClickContinueButton clicks a button or link labeled with a
	// continue-shopping phrase in the main document.
	ClickContinueButton() bool

	// ClickInAttachFrames repeats the labeled-button search inside
	// attach/side-sheet child frames.
	ClickInAttachFrames() bool

	// ClickTextScan sweeps every clickable element and clicks the first one
	// whose text contains a continue phrase. Broadest and least precise, so
	// it runs last.
	ClickTextScan() bool

	// PressEscape sends the Escape key to the focused document.
	PressEscape() bool

	// Navigate loads a URL into the page.
	Navigate(url string) error

	// ProductMarkerVisible reports whether the product title element is
	// present and visible.
	ProductMarkerVisible() bool

	// OverlayGone reports whether no continue-shopping control remains
	// visible.
	OverlayGone() bool

	// Settle waits briefly for the page to react to an interaction.
	Settle()
}

// Resolver applies bounded recovery strategies to interstitial pages. Every
// strategy has an independent attempt budget; exhausting a budget is a normal
// degraded outcome, never an error.
type Resolver struct {
	cfg config.ResolverConfig
}

// New creates a Resolver.
func New(cfg config.ResolverConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// dismissSteps is the ordered dismissal chain, most precise first. The order
// matters: the known close control is surgical, the text scan can hit
// unrelated buttons, and Escape is the no-op-safe last resort.
func dismissSteps(ops PageOps) []func() bool {
	return []func() bool{
		ops.ClickCloseControl,
		ops.ClickContinueButton,
		ops.ClickInAttachFrames,
		ops.ClickTextScan,
		ops.PressEscape,
	}
}

// DismissOverlay tries to clear a continue-shopping overlay. Each attempt
// walks the dismissal chain until one interaction lands, lets the page
// settle, and declares success if the product marker is visible or every
// overlay control is gone. Attempts are counted into diag whether or not
// they succeed.
func (r *Resolver) DismissOverlay(ctx context.Context, ops PageOps, diag *models.Diagnostics) bool {
	for attempt := 0; attempt < r.cfg.OverlayAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		diag.OverlayDismissals++

		clicked := false
		for _, step := range dismissSteps(ops) {
			if step() {
				clicked = true
				break
			}
		}
		ops.Settle()

		if ops.ProductMarkerVisible() || ops.OverlayGone() {
			slog.Debug("overlay dismissed", "attempt", attempt, "clicked", clicked)
			return true
		}
		if !clicked {
			// Nothing left to actuate; further attempts would be identical.
			return false
		}
	}
	return false
}

// Bounce recovers from a detour page by renavigating straight to the target.
// A detour that keeps reasserting itself within the attempt budget is left
// for the caller to report as degraded.
func (r *Resolver) Bounce(ctx context.Context, ops PageOps, target string, diag *models.Diagnostics) bool {
	for attempt := 0; attempt < r.cfg.BounceAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		diag.BounceAttempts++

		if err := ops.Navigate(target); err != nil {
			slog.Warn("bounce navigation failed", "attempt", attempt, "error", err)
			continue
		}
		ops.Settle()

		if ops.ProductMarkerVisible() {
			slog.Debug("bounce landed on product", "attempt", attempt)
			return true
		}
	}
	return false
}

// ClickThrough handles the page that re-presents its interstitial after each
// dismissal: it alternates click and settle, stopping as soon as the product
// marker shows. It draws on the same per-request dismissal budget as
// DismissOverlay, with diag.OverlayDismissals as the shared counter, so the
// two strategies together never exceed OverlayAttempts interactions.
func (r *Resolver) ClickThrough(ctx context.Context, ops PageOps, diag *models.Diagnostics) bool {
	for diag.OverlayDismissals < r.cfg.OverlayAttempts {
		if ctx.Err() != nil {
			return false
		}
		if ops.ProductMarkerVisible() {
			return true
		}
		diag.OverlayDismissals++
		if !ops.ClickContinueButton() && !ops.ClickTextScan() {
			return false
		}
		ops.Settle()
	}
	return ops.ProductMarkerVisible()
}
