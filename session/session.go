package session

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sellerscope/pdpfetch/config"
	"github.com/sellerscope/pdpfetch/models"
	"github.com/ysmood/gson"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Factory creates one isolated browser session per request. Sessions are
// never pooled or reused; every request pays for a fresh profile so no
// cookies, storage, or fingerprint state leaks across requests.
type Factory struct {
	cfg    config.BrowserConfig
	active atomic.Int32
}

// NewFactory creates a session factory.
func NewFactory(cfg config.BrowserConfig) *Factory {
	return &Factory{cfg: cfg}
}

// ActiveSessions returns the number of sessions currently open.
func (f *Factory) ActiveSessions() int {
	return int(f.active.Load())
}

// Session owns a browser process and its pages for the duration of a single
// request. Close must run on every exit path; leaked Chrome processes are
// the primary failure mode being guarded against.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	factory  *Factory
	closed   atomic.Bool
}

// NewSession launches a fresh browser process with a fixed viewport, spoofed
// client identity, and anti-automation fingerprint suppression, and opens
// one blank page ready to navigate.
func (f *Factory) NewSession(ctx context.Context) (*Session, error) {
	l := launcher.New().
		Headless(f.cfg.Headless).
		NoSandbox(f.cfg.NoSandbox)

	if f.cfg.BrowserBin != "" {
		l = l.Bin(f.cfg.BrowserBin)
	}
	if f.cfg.Proxy != "" {
		l = l.Proxy(f.cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "en-US")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewFetchError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, models.NewFetchError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return nil, models.NewFetchError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}

	// Stealth JS must be installed before the first navigation or it never
	// takes effect for the target document.
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth",
			"error", evalErr,
		)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      chromeUA,
		AcceptLanguage: "en-US,en;q=0.9",
		Platform:       "Win32",
	}); err != nil {
		slog.Warn("user-agent override failed", "error", err)
	}

	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language":           "en-US,en;q=0.9",
			"Upgrade-Insecure-Requests": "1",
		}),
	}).Call(page); err != nil {
		slog.Warn("extra header override failed", "error", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             f.cfg.ViewportWidth,
		Height:            f.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		slog.Warn("viewport override failed", "error", err)
	}

	f.active.Add(1)
	slog.Debug("session opened", "controlURL", controlURL)

	return &Session{
		launcher: l,
		browser:  browser,
		page:     page,
		factory:  f,
	}, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// Browser exposes the underlying browser for screenshot and page enumeration.
func (s *Session) Browser() *rod.Browser {
	return s.browser
}

// Close closes every spawned page and kills the browser process. Safe to
// call on any exit path and safe to call more than once: only the first call
// tears down and releases the active-session counter. Errors are logged, not
// returned, because there is nothing a caller can do about a page that
// refuses to close.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	if s.browser != nil {
		if pages, err := s.browser.Pages(); err == nil {
			for _, p := range pages {
				if closeErr := p.Close(); closeErr != nil {
					slog.Debug("page close failed", "error", closeErr)
				}
			}
		}
		if err := s.browser.Close(); err != nil {
			slog.Debug("browser close failed", "error", err)
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	s.factory.active.Add(-1)
	slog.Debug("session closed")
}
