package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sellerscope/pdpfetch/models"
	"github.com/sellerscope/pdpfetch/session"
)

// maxHealthySessions is the session count above which health degrades; each
// session is a whole Chrome process, so a pile-up means requests are backing
// up behind slow upstreams.
const maxHealthySessions = 8

// Health returns a handler for GET /api/v1/health.
func Health(sessions *session.Factory, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := sessions.ActiveSessions()

		status := "healthy"
		if active > maxHealthySessions {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			ActiveSessions: active,
			Version:        "0.1.0",
		})
	}
}
