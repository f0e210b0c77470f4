package resolve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sellerscope/pdpfetch/config"
	"github.com/sellerscope/pdpfetch/models"
)

// fakeOps is a scriptable PageOps: each click method reports whether it can
// actuate, and succeedAfter controls how many settle cycles pass before the
// page exposes the product marker.
type fakeOps struct {
	closeControl bool
	continueBtn  bool
	frames       bool
	textScan     bool

	succeedAfter int // -1 means never
	settles      int
	navigations  int
	navErr       error
}

func (f *fakeOps) ClickCloseControl() bool    { return f.closeControl }
func (f *fakeOps) ClickContinueButton() bool  { return f.continueBtn }
func (f *fakeOps) ClickInAttachFrames() bool  { return f.frames }
func (f *fakeOps) ClickTextScan() bool        { return f.textScan }
func (f *fakeOps) PressEscape() bool          { return true }
func (f *fakeOps) Settle()                    { f.settles++ }
func (f *fakeOps) OverlayGone() bool          { return f.ProductMarkerVisible() }
func (f *fakeOps) Navigate(url string) error {
	f.navigations++
	return f.navErr
}
func (f *fakeOps) ProductMarkerVisible() bool {
	return f.succeedAfter >= 0 && f.settles > f.succeedAfter
}

func testResolverConfig() config.ResolverConfig {
	return config.ResolverConfig{
		OverlayAttempts: 3,
		BounceAttempts:  3,
		SettleWindow:    time.Millisecond,
	}
}

func TestDismissOverlayFirstAttempt(t *testing.T) {
	ops := &fakeOps{closeControl: true, succeedAfter: 0}
	diag := &models.Diagnostics{}

	if !New(testResolverConfig()).DismissOverlay(context.Background(), ops, diag) {
		t.Fatal("expected dismissal to succeed")
	}
	if diag.OverlayDismissals != 1 {
		t.Errorf("OverlayDismissals = %d, want 1", diag.OverlayDismissals)
	}
}

func TestDismissOverlayExhaustsBudget(t *testing.T) {
	ops := &fakeOps{continueBtn: true, succeedAfter: -1}
	diag := &models.Diagnostics{}

	if New(testResolverConfig()).DismissOverlay(context.Background(), ops, diag) {
		t.Fatal("expected dismissal to fail against a persistent overlay")
	}
	if diag.OverlayDismissals != 3 {
		t.Errorf("OverlayDismissals = %d, want exactly the budget", diag.OverlayDismissals)
	}
}

func TestDismissOverlayStopsWhenNothingClickable(t *testing.T) {
	// Escape always "lands", so force it to count as the only interaction:
	// a page with no controls at all still burns exactly the attempts where
	// an interaction happened.
	ops := &fakeOps{succeedAfter: 1}
	diag := &models.Diagnostics{}

	if !New(testResolverConfig()).DismissOverlay(context.Background(), ops, diag) {
		t.Fatal("expected escape-only dismissal to eventually succeed")
	}
	if diag.OverlayDismissals != 2 {
		t.Errorf("OverlayDismissals = %d, want 2", diag.OverlayDismissals)
	}
}

func TestBounceSucceeds(t *testing.T) {
	ops := &fakeOps{succeedAfter: 0}
	diag := &models.Diagnostics{}

	if !New(testResolverConfig()).Bounce(context.Background(), ops, "https://www.amazon.com/dp/B0TESTASIN1", diag) {
		t.Fatal("expected bounce to land")
	}
	if ops.navigations != 1 || diag.BounceAttempts != 1 {
		t.Errorf("navigations = %d, BounceAttempts = %d, want 1/1", ops.navigations, diag.BounceAttempts)
	}
}

func TestBounceExhaustsBudget(t *testing.T) {
	ops := &fakeOps{succeedAfter: -1}
	diag := &models.Diagnostics{}

	if New(testResolverConfig()).Bounce(context.Background(), ops, "https://www.amazon.com/dp/B0TESTASIN1", diag) {
		t.Fatal("expected bounce to give up")
	}
	if diag.BounceAttempts != 3 {
		t.Errorf("BounceAttempts = %d, want exactly the budget", diag.BounceAttempts)
	}
}

func TestBounceRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ops := &fakeOps{succeedAfter: 0}
	diag := &models.Diagnostics{}
	if New(testResolverConfig()).Bounce(ctx, ops, "https://www.amazon.com/dp/B0TESTASIN1", diag) {
		t.Fatal("expected cancelled context to stop the bounce")
	}
	if ops.navigations != 0 {
		t.Errorf("navigations = %d, want 0 after cancellation", ops.navigations)
	}
}

func TestClickThroughBounded(t *testing.T) {
	ops := &fakeOps{continueBtn: true, succeedAfter: -1}
	diag := &models.Diagnostics{}

	if New(testResolverConfig()).ClickThrough(context.Background(), ops, diag) {
		t.Fatal("expected click-through to give up")
	}
	if ops.settles != 3 {
		t.Errorf("settles = %d, want exactly the dismissal budget", ops.settles)
	}
	if diag.OverlayDismissals != 3 {
		t.Errorf("OverlayDismissals = %d, want every click counted", diag.OverlayDismissals)
	}
}

// The dismissal budget is shared: once DismissOverlay has spent it, the
// click-through fallback gets no additional interactions of its own.
func TestOverlayBudgetSharedAcrossStrategies(t *testing.T) {
	ops := &fakeOps{continueBtn: true, succeedAfter: -1}
	diag := &models.Diagnostics{}
	r := New(testResolverConfig())

	if r.DismissOverlay(context.Background(), ops, diag) {
		t.Fatal("expected dismissal to fail against a persistent overlay")
	}
	if r.ClickThrough(context.Background(), ops, diag) {
		t.Fatal("expected click-through to report the overlay as unresolved")
	}
	if diag.OverlayDismissals != 3 {
		t.Errorf("OverlayDismissals = %d, want the shared budget", diag.OverlayDismissals)
	}
	if ops.settles != 3 {
		t.Errorf("settles = %d, want no interactions past the budget", ops.settles)
	}
}

// --- solver ---

type fakeCaptcha struct {
	image   []byte
	entered string
	gone    bool
}

func (f *fakeCaptcha) ImageJPEG(maxBytes int) ([]byte, error) { return f.image, nil }
func (f *fakeCaptcha) Enter(answer string) error {
	f.entered = answer
	return nil
}
func (f *fakeCaptcha) ChallengeGone() bool { return f.gone }

func solverConfig(baseURL string) config.SolverConfig {
	return config.SolverConfig{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		PollInterval: time.Millisecond,
		MaxRounds:    5,
		MaxImageSize: 100 * 1024,
	}
}

func TestSolverDisabledWithoutCredential(t *testing.T) {
	s := NewSolver(config.SolverConfig{})
	if s.Enabled() {
		t.Fatal("solver must be disabled without a credential")
	}
	ok, err := s.Solve(context.Background(), &fakeCaptcha{})
	if ok || err != nil {
		t.Errorf("Solve() = %v, %v; want false, nil", ok, err)
	}
}

func TestSolverRoundTrip(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			json.NewEncoder(w).Encode(map[string]any{"status": 1, "request": "task-42"})
		case "/res.php":
			polls++
			if polls < 2 {
				json.NewEncoder(w).Encode(map[string]any{"status": 0, "request": "CAPCHA_NOT_READY"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"status": 1, "request": "XK7PQ"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ops := &fakeCaptcha{image: []byte("jpeg-bytes"), gone: true}
	ok, err := NewSolver(solverConfig(srv.URL)).Solve(context.Background(), ops)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !ok {
		t.Fatal("expected a solved challenge")
	}
	if ops.entered != "XK7PQ" {
		t.Errorf("entered = %q, want the recognized text", ops.entered)
	}
}

func TestSolverAnswerDidNotClear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			json.NewEncoder(w).Encode(map[string]any{"status": 1, "request": "task-1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": 1, "request": "WRONG"})
	}))
	defer srv.Close()

	ops := &fakeCaptcha{image: []byte("jpeg"), gone: false}
	ok, err := NewSolver(solverConfig(srv.URL)).Solve(context.Background(), ops)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if ok {
		t.Fatal("challenge still present must report not-solved")
	}
}

func TestSolverPollBudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			json.NewEncoder(w).Encode(map[string]any{"status": 1, "request": "task-1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": 0, "request": "CAPCHA_NOT_READY"})
	}))
	defer srv.Close()

	ok, err := NewSolver(solverConfig(srv.URL)).Solve(context.Background(), &fakeCaptcha{image: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if ok {
		t.Fatal("an exhausted poll budget must report not-solved")
	}
}

func TestSolverRejectedSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": 0, "request": "ERROR_ZERO_BALANCE"})
	}))
	defer srv.Close()

	_, err := NewSolver(solverConfig(srv.URL)).Solve(context.Background(), &fakeCaptcha{image: []byte("jpeg")})
	if err == nil {
		t.Fatal("expected an error for a rejected submission")
	}
}
