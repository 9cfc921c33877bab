package delivery

import (
	"errors"
	"net/http"

	"loopchat-backend/internal/resilience"

	"github.com/gin-gonic/gin"
)

// RateLimit gates one operation per authenticated identity. Must run after
// the auth middleware so userID is set.
func RateLimit(limiter *resilience.RateLimiter, operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		decision := limiter.Check(userID, operation)
		if !decision.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "resource exhausted",
				"retry_after_seconds": decision.RetryAfterSeconds,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// respondError maps an operation error onto the HTTP contract. A fast-fail
// from an open circuit is a 503 with a retry hint, not a generic failure.
func respondError(c *gin.Context, err error) {
	var open *resilience.CircuitOpenError
	if errors.As(err, &open) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":               "temporarily unavailable",
			"retry_after_seconds": int(open.RetryAfter.Seconds()),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
