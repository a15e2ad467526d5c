package middleware

import (
	"github.com/gin-gonic/gin"

	"resume-agent/internal/ratelimit"
	"resume-agent/internal/transport/http/response"
)

// RateLimit rejects requests over the per-client budget. It runs before any
// body parsing or session lookup so limited clients cost almost nothing.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(ratelimit.ClientKey(c.Request)) {
			response.RateLimited(c, 60)
			c.Abort()
			return
		}
		c.Next()
	}
}
