package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
	"github.com/noah-isme/sma-risk-monitor/pkg/response"
)

type performanceService interface {
	History(ctx context.Context, studentID string, days int) ([]models.PerformanceHistory, error)
}

// PerformanceHandler exposes performance history.
type PerformanceHandler struct {
	performance performanceService
}

// NewPerformanceHandler constructs PerformanceHandler.
func NewPerformanceHandler(performance performanceService) *PerformanceHandler {
	return &PerformanceHandler{performance: performance}
}

// History godoc
// @Summary Student performance history
// @Tags Performance
// @Produce json
// @Param id path string true "Student internal ID"
// @Param days query int false "Window in days (default 30)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/performance [get]
func (h *PerformanceHandler) History(c *gin.Context) {
	days, err := intQuery(c, "days", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.performance.History(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
