package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sellerscope/pdpfetch/api/handler"
	"github.com/sellerscope/pdpfetch/api/middleware"
	"github.com/sellerscope/pdpfetch/config"
	"github.com/sellerscope/pdpfetch/fetcher"
	"github.com/sellerscope/pdpfetch/session"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(f *fetcher.Fetcher, sessions *session.Factory, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(sessions, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/product", handler.Product(f))

	return r
}
