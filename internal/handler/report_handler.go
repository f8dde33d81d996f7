package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	"github.com/noah-isme/sma-risk-monitor/internal/models"
	"github.com/noah-isme/sma-risk-monitor/pkg/response"
)

type reportService interface {
	ExportRiskRoster(ctx context.Context, format string, risk models.RiskLevel) (*dto.ReportFile, error)
}

// ReportHandler serves downloadable reports.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// RiskRoster godoc
// @Summary Download risk roster
// @Description Every student ordered by performance score ascending.
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param riskLevel query string false "Restrict to one risk level"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/risk-roster [get]
func (h *ReportHandler) RiskRoster(c *gin.Context) {
	file, err := h.reports.ExportRiskRoster(c.Request.Context(), c.Query("format"), models.RiskLevel(c.Query("riskLevel")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
