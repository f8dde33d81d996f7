package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	"github.com/noah-isme/sma-risk-monitor/internal/middleware"
	"github.com/noah-isme/sma-risk-monitor/pkg/response"
)

type dashboardService interface {
	Stats(ctx context.Context) (*dto.DashboardStats, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Stats godoc
// @Summary Admin dashboard rollup
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, cacheHit, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ResponseMeta(c))
}
