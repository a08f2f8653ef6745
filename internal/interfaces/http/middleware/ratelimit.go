package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/shared/constants"
)

// Evaluator makes the admission decision for one request.
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.RequestContext) domain.Decision
}

// RateLimitMiddleware maps admission decisions onto HTTP: rate limit headers
// on every evaluated request and a JSON body on denial.
type RateLimitMiddleware struct {
	evaluator         Evaluator
	apiKeyHeader      string
	unavailableStatus int
}

type rateLimitBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Tier       string `json:"tier,omitempty"`
	RetryAfter int64  `json:"retryAfter"`
}

func NewRateLimitMiddleware(evaluator Evaluator, apiKeyHeader string, unavailableStatus int) *RateLimitMiddleware {
	if apiKeyHeader == "" {
		apiKeyHeader = constants.HeaderAPIKey
	}
	if unavailableStatus != http.StatusTooManyRequests && unavailableStatus != http.StatusServiceUnavailable {
		unavailableStatus = http.StatusServiceUnavailable
	}
	return &RateLimitMiddleware{
		evaluator:         evaluator,
		apiKeyHeader:      apiKeyHeader,
		unavailableStatus: unavailableStatus,
	}
}

// Limit must run after OptionalAuth so the principal is known.
func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := m.evaluator.Evaluate(c.Request.Context(), m.requestContext(c))

		if decision.Evaluated() {
			c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
			c.Header(constants.HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
			c.Header(constants.HeaderRateLimitReset, strconv.FormatInt(ceilUnixSeconds(decision.ResetAt), 10))
		}

		if decision.Allowed {
			c.Next()
			return
		}

		retryAfter := ceilSeconds(decision.RetryAfter)
		c.Header(constants.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))

		status := http.StatusTooManyRequests
		message := constants.ErrMsgRateLimited
		if decision.Reason == domain.ReasonStoreUnavailable {
			status = m.unavailableStatus
			message = constants.ErrMsgLimiterUnavailable
		}

		c.AbortWithStatusJSON(status, rateLimitBody{
			Error:      string(decision.Reason),
			Message:    message,
			Tier:       decision.Tier,
			RetryAfter: retryAfter,
		})
	}
}

func (m *RateLimitMiddleware) requestContext(c *gin.Context) domain.RequestContext {
	return domain.RequestContext{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		SourceAddress: c.ClientIP(),
		PrincipalID:   c.GetString(constants.ContextKeyUserID),
		APIKey:        strings.TrimSpace(c.GetHeader(m.apiKeyHeader)),
	}
}

// ceilSeconds rounds up so clients never retry early; at least one second.
func ceilSeconds(d time.Duration) int64 {
	s := int64((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

func ceilUnixSeconds(t time.Time) int64 {
	ms := t.UnixMilli()
	return (ms + 999) / 1000
}
