package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plexward/internal/infrastructure/ratelimit"
	"plexward/internal/shared/utils"
)

// RateLimit enforces a per-IP request budget on the wrapped routes. A
// limiter backend failure lets the request through; dropping webhooks
// because Redis is down would be worse than a burst.
func RateLimit(limiter ratelimit.RateLimiter, requestsPerMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP(), requestsPerMinute, time.Minute)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
