package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wrensec/keygate/internal/infrastructure/ratelimit"
	"github.com/wrensec/keygate/pkg/constants"
	"github.com/wrensec/keygate/pkg/logger"
)

// RateLimit bounds request volume per authenticated api key. It runs after
// the guard, so the context carries the key; unauthenticated routes should
// not use it.
func RateLimit(limiter *ratelimit.RedisRateLimiter, log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("ratelimit")

	return func(c *gin.Context) {
		key := c.GetString(string(constants.ContextKeyAPIKey))
		if key == "" {
			c.Next()
			return
		}

		allowed, remaining := limiter.Allow(c.Request.Context(), key)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !allowed {
			log.Warn(c.Request.Context(), "rate limit exceeded",
				logger.String("api_key", logger.MaskKey(key)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too_many_requests",
			})
			return
		}
		c.Next()
	}
}
