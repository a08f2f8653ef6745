package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/shared/constants"
)

func TestCORS_PreflightSkipsRateLimit(t *testing.T) {
	ev := &stubEvaluator{decision: domain.Decision{Allowed: false, Reason: domain.ReasonRateLimited, Tier: "global", RetryAfter: 1}}
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}, "X-API-Key"))
	r.Use(NewRateLimitMiddleware(ev, "", 0).Limit())
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), constants.HeaderRateLimitRemaining)
	assert.Empty(t, ev.last.Path, "preflight must not reach the limiter")
}

func TestCORS_UnknownOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}, ""))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
