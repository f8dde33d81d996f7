package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	"github.com/noah-isme/sma-risk-monitor/internal/models"
	"github.com/noah-isme/sma-risk-monitor/internal/service"
	"github.com/noah-isme/sma-risk-monitor/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, req service.MarkAttendanceRequest) (*dto.MarkAttendanceResult, error)
	List(ctx context.Context, studentID string, days int) ([]models.AttendanceRecord, error)
	Stats(ctx context.Context, studentID string) (*models.AttendanceStats, error)
}

// AttendanceHandler exposes attendance recording and per-student reads.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Mark godoc
// @Summary Mark today's attendance
// @Description Upserts the student's status for the current UTC day and schedules a performance recompute.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	result, err := h.attendance.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListForStudent godoc
// @Summary Student attendance history
// @Tags Attendance
// @Produce json
// @Param id path string true "Student internal ID"
// @Param days query int false "Window in days (default 30)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) ListForStudent(c *gin.Context) {
	days, err := intQuery(c, "days", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.attendance.List(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// StatsForStudent godoc
// @Summary Student attendance stats over the last 30 days
// @Tags Attendance
// @Produce json
// @Param id path string true "Student internal ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance/stats [get]
func (h *AttendanceHandler) StatsForStudent(c *gin.Context) {
	stats, err := h.attendance.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
