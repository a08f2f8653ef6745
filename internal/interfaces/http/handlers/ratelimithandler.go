package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/gatewarden/internal/application/ratelimit"
	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/shared/constants"
	"github.com/orris-inc/gatewarden/internal/shared/errors"
	"github.com/orris-inc/gatewarden/internal/shared/logger"
	"github.com/orris-inc/gatewarden/internal/shared/utils"
)

type bucketAdmin interface {
	Reset(ctx context.Context, q ratelimit.BucketQuery) (domain.Key, error)
	Inspect(ctx context.Context, q ratelimit.BucketQuery) (*ratelimit.BucketStatus, error)
}

// RateLimitHandler exposes bucket inspection and reset to operators.
type RateLimitHandler struct {
	admin  bucketAdmin
	logger logger.Interface
}

func NewRateLimitHandler(admin bucketAdmin, logger logger.Interface) *RateLimitHandler {
	return &RateLimitHandler{admin: admin, logger: logger}
}

// ResetBucket handles DELETE /admin/ratelimit/buckets.
func (h *RateLimitHandler) ResetBucket(c *gin.Context) {
	var req ratelimit.BucketQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for reset bucket", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	key, err := h.admin.Reset(c.Request.Context(), req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.logger.Infow("rate limit bucket reset by admin",
		"key", key,
		"admin_id", c.GetString(constants.ContextKeyUserID),
	)
	utils.SuccessResponse(c, http.StatusOK, "bucket reset", gin.H{"key": key.String()})
}

// InspectBucket handles GET /admin/ratelimit/buckets.
func (h *RateLimitHandler) InspectBucket(c *gin.Context) {
	var req ratelimit.BucketQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	status, err := h.admin.Inspect(c.Request.Context(), req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", status)
}
