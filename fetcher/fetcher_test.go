package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/sellerscope/pdpfetch/classify"
	"github.com/sellerscope/pdpfetch/config"
	"github.com/sellerscope/pdpfetch/models"
	"github.com/sellerscope/pdpfetch/session"
)

const productHTML = `<html><head><title>Acme Widget Deluxe</title></head><body>
	<div id="dp-container"><span id="productTitle">Acme Widget Deluxe</span>
	<a id="bylineInfo">Acme</a></div></body></html>`

const unavailableHTML = `<html><head><title>Temporarily Unavailable</title></head>
	<body><p>Please try again shortly.</p></body></html>`

// loopOps is a scriptable PageOps for the recovery loop: Navigate flips the
// product marker on when recovers is true, mimicking a renavigation that
// lands on the real page.
type loopOps struct {
	recovers    bool
	marker      bool
	navigations int
	settles     int
}

func (o *loopOps) ClickCloseControl() bool   { return false }
func (o *loopOps) ClickContinueButton() bool { return false }
func (o *loopOps) ClickInAttachFrames() bool { return false }
func (o *loopOps) ClickTextScan() bool       { return false }
func (o *loopOps) PressEscape() bool         { return false }
func (o *loopOps) Settle()                   { o.settles++ }
func (o *loopOps) OverlayGone() bool         { return o.marker }
func (o *loopOps) ProductMarkerVisible() bool {
	return o.marker
}
func (o *loopOps) Navigate(url string) error {
	o.navigations++
	if o.recovers {
		o.marker = true
	}
	return nil
}

type idleCaptcha struct{}

func (idleCaptcha) ImageJPEG(maxBytes int) ([]byte, error) { return nil, nil }
func (idleCaptcha) Enter(answer string) error              { return nil }
func (idleCaptcha) ChallengeGone() bool                    { return false }

func loopFetcher() *Fetcher {
	return New(&config.Config{
		Resolver: config.ResolverConfig{
			OverlayAttempts: 3,
			BounceAttempts:  3,
			SettleWindow:    time.Millisecond,
		},
	}, session.NewFactory(config.BrowserConfig{}))
}

func mustSnapshot(t *testing.T, url string, status int, html string) *classify.Snapshot {
	t.Helper()
	snap, err := classify.NewSnapshot(url, status, html)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

// An upstream 503 is not terminal: the loop renavigates to the target and
// re-classifies whatever the reload produced.
func TestResolveLoopRetriesTransientUpstream(t *testing.T) {
	target := "https://www.amazon.com/dp/B0TESTASIN1"
	initial := mustSnapshot(t, target, 503, unavailableHTML)

	ops := &loopOps{recovers: true}
	diag := &models.Diagnostics{}
	snapshot := func() (*classify.Snapshot, error) {
		return classify.NewSnapshot(target, 200, productHTML)
	}

	snap, state := loopFetcher().resolveLoop(
		context.Background(), ops, idleCaptcha{}, snapshot, initial, target, diag)

	if state != classify.Product {
		t.Fatalf("state = %v, want %v after the reload", state, classify.Product)
	}
	if snap.StatusCode != 200 {
		t.Errorf("snapshot status = %d, want the post-reload 200", snap.StatusCode)
	}
	if ops.navigations != 1 {
		t.Errorf("navigations = %d, want 1", ops.navigations)
	}
	if diag.BounceAttempts != 1 {
		t.Errorf("BounceAttempts = %d, want 1", diag.BounceAttempts)
	}
}

// A 503 that survives every renavigation degrades after the bounce budget
// instead of looping.
func TestResolveLoopTransientExhaustsBudget(t *testing.T) {
	target := "https://www.amazon.com/dp/B0TESTASIN1"
	initial := mustSnapshot(t, target, 503, unavailableHTML)

	ops := &loopOps{recovers: false}
	diag := &models.Diagnostics{}
	snapshotCalls := 0
	snapshot := func() (*classify.Snapshot, error) {
		snapshotCalls++
		return classify.NewSnapshot(target, 503, unavailableHTML)
	}

	_, state := loopFetcher().resolveLoop(
		context.Background(), ops, idleCaptcha{}, snapshot, initial, target, diag)

	if state != classify.TransientError {
		t.Fatalf("state = %v, want %v", state, classify.TransientError)
	}
	if diag.BounceAttempts != 3 {
		t.Errorf("BounceAttempts = %d, want the full budget", diag.BounceAttempts)
	}
	if snapshotCalls != 0 {
		t.Errorf("snapshot calls = %d, want 0 when no renavigation landed", snapshotCalls)
	}
}

// A page nothing matches is left alone: no strategy fires and the snapshot
// is never re-derived.
func TestResolveLoopUnknownIsTerminal(t *testing.T) {
	target := "https://www.amazon.com/dp/B0TESTASIN1"
	initial := mustSnapshot(t, target, 200, "<html><head><title>Hm</title></head><body></body></html>")

	ops := &loopOps{}
	diag := &models.Diagnostics{}
	snapshot := func() (*classify.Snapshot, error) {
		t.Fatal("snapshot must not be re-derived without an action")
		return nil, nil
	}

	_, state := loopFetcher().resolveLoop(
		context.Background(), ops, idleCaptcha{}, snapshot, initial, target, diag)

	if state != classify.Unknown {
		t.Fatalf("state = %v, want %v", state, classify.Unknown)
	}
	if ops.navigations != 0 {
		t.Errorf("navigations = %d, want 0", ops.navigations)
	}
}

// A product page short-circuits the loop untouched.
func TestResolveLoopProductPassesThrough(t *testing.T) {
	target := "https://www.amazon.com/dp/B0TESTASIN1"
	initial := mustSnapshot(t, target, 200, productHTML)

	ops := &loopOps{}
	diag := &models.Diagnostics{}
	snapshot := func() (*classify.Snapshot, error) {
		t.Fatal("snapshot must not be re-derived for a product page")
		return nil, nil
	}

	snap, state := loopFetcher().resolveLoop(
		context.Background(), ops, idleCaptcha{}, snapshot, initial, target, diag)

	if state != classify.Product {
		t.Fatalf("state = %v, want %v", state, classify.Product)
	}
	if snap != initial {
		t.Error("expected the initial snapshot back unchanged")
	}
}
