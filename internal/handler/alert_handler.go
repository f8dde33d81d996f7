package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	"github.com/noah-isme/sma-risk-monitor/internal/models"
	"github.com/noah-isme/sma-risk-monitor/pkg/response"
)

type alertService interface {
	Unread(ctx context.Context) ([]models.Alert, error)
	List(ctx context.Context, limit int) ([]models.Alert, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (*dto.MarkAllAlertsReadResult, error)
}

// AlertHandler exposes staff alerts.
type AlertHandler struct {
	alerts alertService
}

// NewAlertHandler constructs AlertHandler.
func NewAlertHandler(alerts alertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// List godoc
// @Summary List alerts
// @Tags Alerts
// @Produce json
// @Param unread query bool false "Only the 50 newest unread alerts"
// @Param limit query int false "Maximum alerts when unread is not set (default 100)"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	var (
		alerts []models.Alert
		err    error
	)
	if c.Query("unread") == "true" {
		alerts, err = h.alerts.Unread(c.Request.Context())
	} else {
		var limit int
		if limit, err = intQuery(c, "limit", 0); err != nil {
			response.Error(c, err)
			return
		}
		alerts, err = h.alerts.List(c.Request.Context(), limit)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// MarkRead godoc
// @Summary Mark alert read
// @Tags Alerts
// @Param id path string true "Alert ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /alerts/{id}/read [patch]
func (h *AlertHandler) MarkRead(c *gin.Context) {
	if err := h.alerts.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark every alert read
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts/read-all [post]
func (h *AlertHandler) MarkAllRead(c *gin.Context) {
	result, err := h.alerts.MarkAllRead(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
