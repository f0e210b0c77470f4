package models

// FetchRequest is the query payload for GET /api/v1/product.
type FetchRequest struct {
	// Locator is the target product page: either a full URL or a bare
	// 10-character item identifier resolvable to a canonical URL. Required.
	Locator string `form:"locator" binding:"required"`

	// Timeout is the maximum duration in seconds for a single navigation
	// attempt. Default: 60. Max: 120.
	Timeout int `form:"timeout" binding:"omitempty,min=1,max=120"`
}

// Defaults applies default values to unset fields.
func (r *FetchRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 60
	}
}
