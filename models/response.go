package models

// Page types reported in FetchResponse.
const (
	PageTypeProduct    = "product"
	PageTypeNonProduct = "nonProduct"
)

// FetchResponse is the response for GET /api/v1/product.
//
// A degraded recovery outcome (bot challenge that outlived its budget, an
// overlay that would not dismiss, and so on) is still a successful response
// with PageType "nonProduct"; only session-level catastrophic failures
// populate Error and map to a non-2xx status.
type FetchResponse struct {
	// Success indicates whether the fetch completed without a fatal error.
	Success bool `json:"success"`

	// PageType is "product" when extraction ran, "nonProduct" otherwise.
	PageType string `json:"page_type"`

	// StatusCode is the HTTP status observed for the final navigation.
	StatusCode int `json:"status_code"`

	// FinalURL is the address the browser ended up on.
	FinalURL string `json:"final_url"`

	// Result is the normalized product record. Present only for "product".
	Result *ExtractionResult `json:"result,omitempty"`

	// PageExcerpt is a short readable-text excerpt of the page, attached to
	// nonProduct outcomes to help diagnose what actually loaded.
	PageExcerpt string `json:"page_excerpt,omitempty"`

	// Screenshot is a base64-encoded full-page PNG of the final page.
	Screenshot string `json:"screenshot,omitempty"`

	// Diagnostics reports the recovery counters for this request.
	Diagnostics Diagnostics `json:"diagnostics"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs covers navigation plus interstitial recovery.
	NavigationMs int64 `json:"navigation_ms"`

	// ExtractionMs covers structural extraction of the product record.
	ExtractionMs int64 `json:"extraction_ms"`

	// VisionMs covers the screenshot cross-check round trip.
	VisionMs int64 `json:"vision_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"` // "healthy" or "degraded"
	Uptime         string `json:"uptime"`
	ActiveSessions int    `json:"active_sessions"`
	Version        string `json:"version"`
}
