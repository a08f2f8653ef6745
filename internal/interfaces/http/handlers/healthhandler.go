package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/gatewarden/internal/shared/logger"
	"github.com/orris-inc/gatewarden/internal/shared/utils"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store  Pinger
	logger logger.Interface
}

func NewHealthHandler(store Pinger, logger logger.Interface) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// Live always answers while the process serves HTTP.
func (h *HealthHandler) Live(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"status": "ok"})
}

// Ready fails while the rate limit store is unreachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warnw("readiness check failed", "error", err)
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "rate limit store unavailable")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"status": "ready"})
}
