package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/gatewarden/internal/shared/constants"
)

var (
	corsAllowHeaders = strings.Join([]string{
		"Content-Type", "Accept", "Origin", "Cache-Control", "X-Requested-With",
		constants.HeaderAuthorization, constants.HeaderXRequestID,
	}, ", ")

	// Browsers hide response headers from scripts unless they are exposed.
	corsExposeHeaders = strings.Join([]string{
		constants.HeaderXRequestID,
		constants.HeaderRateLimitLimit,
		constants.HeaderRateLimitRemaining,
		constants.HeaderRateLimitReset,
		constants.HeaderRetryAfter,
	}, ", ")
)

// CORS answers preflight requests for allowedOrigins before admission control,
// so preflights never consume rate limit budget.
func CORS(allowedOrigins []string, apiKeyHeader string) gin.HandlerFunc {
	allowHeaders := corsAllowHeaders
	if apiKeyHeader != "" {
		allowHeaders += ", " + apiKeyHeader
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			c.Next()
			return
		}

		if allowed := getAllowedOrigin(origin, allowedOrigins); allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
			c.Header("Access-Control-Expose-Headers", corsExposeHeaders)
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions && c.Request.Header.Get("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// getAllowedOrigin returns origin when it is whitelisted, "" otherwise
func getAllowedOrigin(origin string, allowedOrigins []string) string {
	for _, allowedOrigin := range allowedOrigins {
		if allowedOrigin == "*" || origin == allowedOrigin {
			return origin
		}
	}
	return ""
}
