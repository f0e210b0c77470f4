package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Navigation NavigationConfig
	Resolver   ResolverConfig
	Vision     VisionConfig
	Solver     SolverConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the per-request Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL used by both the browser and the prefetch probe.
	Proxy string

	// ViewportWidth/ViewportHeight fix the page viewport.
	ViewportWidth  int // default: 1366
	ViewportHeight int // default: 900
}

// NavigationConfig controls the navigator.
type NavigationConfig struct {
	// Timeout is the ceiling for a single navigation attempt.
	Timeout time.Duration // default: 60s

	// ReadyCeiling caps the post-commit wait for DOM-ready or the product
	// marker, whichever comes first.
	ReadyCeiling time.Duration // default: 5s

	// Retries is the navigation retry budget per request.
	Retries int // default: 2

	// Prefetch toggles the uTLS HTTP probe before launching the browser.
	Prefetch bool // default: true
}

// ResolverConfig bounds the interstitial recovery strategies. Each budget is
// independent; exhausting one converts the request into a degraded
// non-product result, never an unbounded loop.
type ResolverConfig struct {
	// OverlayAttempts is the shared dismissal budget: every overlay
	// interaction, whichever strategy performs it, draws from this count.
	OverlayAttempts int           // default: 3
	BounceAttempts  int           // default: 3
	SettleWindow    time.Duration // default: 2s
}

// VisionConfig controls the vision-model cross-check client.
type VisionConfig struct {
	APIKey  string // required; startup is fatal without it
	Model   string // default: "gpt-4o-mini"
	BaseURL string // default: "https://api.openai.com/v1"
}

// SolverConfig controls the optional captcha-solving service client.
type SolverConfig struct {
	APIKey       string        // empty disables the captcha strategy
	BaseURL      string        // default: "https://2captcha.com"
	PollInterval time.Duration // default: 5s
	MaxRounds    int           // default: 20
	MaxImageSize int           // submit payload ceiling; default: 100 KiB
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PDPFETCH_HOST", "0.0.0.0"),
			Port: envIntOr("PDPFETCH_PORT", 8080),
			Mode: envOr("PDPFETCH_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("PDPFETCH_HEADLESS", true),
			NoSandbox:      envBoolOr("PDPFETCH_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("PDPFETCH_BROWSER_BIN"),
			Proxy:          os.Getenv("PDPFETCH_PROXY"),
			ViewportWidth:  envIntOr("PDPFETCH_VIEWPORT_WIDTH", 1366),
			ViewportHeight: envIntOr("PDPFETCH_VIEWPORT_HEIGHT", 900),
		},
		Navigation: NavigationConfig{
			Timeout:      envDurationOr("PDPFETCH_NAV_TIMEOUT", 60*time.Second),
			ReadyCeiling: envDurationOr("PDPFETCH_READY_CEILING", 5*time.Second),
			Retries:      envIntOr("PDPFETCH_NAV_RETRIES", 2),
			Prefetch:     envBoolOr("PDPFETCH_PREFETCH", true),
		},
		Resolver: ResolverConfig{
			OverlayAttempts: envIntOr("PDPFETCH_OVERLAY_ATTEMPTS", 3),
			BounceAttempts:  envIntOr("PDPFETCH_BOUNCE_ATTEMPTS", 3),
			SettleWindow:    envDurationOr("PDPFETCH_SETTLE_WINDOW", 2*time.Second),
		},
		Vision: VisionConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envOr("PDPFETCH_VISION_MODEL", "gpt-4o-mini"),
			BaseURL: envOr("PDPFETCH_VISION_BASE_URL", "https://api.openai.com/v1"),
		},
		Solver: SolverConfig{
			APIKey:       os.Getenv("PDPFETCH_SOLVER_API_KEY"),
			BaseURL:      envOr("PDPFETCH_SOLVER_BASE_URL", "https://2captcha.com"),
			PollInterval: envDurationOr("PDPFETCH_SOLVER_POLL", 5*time.Second),
			MaxRounds:    envIntOr("PDPFETCH_SOLVER_ROUNDS", 20),
			MaxImageSize: envIntOr("PDPFETCH_SOLVER_MAX_IMAGE", 100*1024),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PDPFETCH_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PDPFETCH_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PDPFETCH_RATE_RPS", 1.0),
			Burst:             envIntOr("PDPFETCH_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  envOr("PDPFETCH_LOG_LEVEL", "info"),
			Format: envOr("PDPFETCH_LOG_FORMAT", "json"),
		},
	}
}

// Validate checks the invariants that must hold before serving requests.
// A missing vision credential is a fatal startup condition; a missing solver
// credential only disables the captcha strategy.
func (c *Config) Validate() error {
	if c.Vision.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required for the vision cross-check")
	}
	if c.Navigation.Retries < 0 {
		return errors.New("PDPFETCH_NAV_RETRIES must be >= 0")
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
