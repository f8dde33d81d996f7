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

type assignmentService interface {
	Create(ctx context.Context, req service.CreateAssignmentRequest) (*models.Assignment, error)
	ListActive(ctx context.Context) ([]models.Assignment, error)
	Deactivate(ctx context.Context, id string) error
	Submit(ctx context.Context, assignmentID string, req service.SubmitAssignmentRequest) (*dto.SubmitAssignmentResult, error)
	StudentSubmissions(ctx context.Context, studentID string) ([]models.AssignmentSubmissionDetail, error)
	Stats(ctx context.Context, studentID string) (*models.AssignmentStats, error)
}

// AssignmentHandler exposes assignment management and submission endpoints.
type AssignmentHandler struct {
	assignments assignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments assignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// ListActive godoc
// @Summary List active assignments
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) ListActive(c *gin.Context) {
	assignments, err := h.assignments.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Deactivate godoc
// @Summary Deactivate assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Deactivate(c *gin.Context) {
	if err := h.assignments.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit assignment
// @Description One submission per student. Repeats fail with 409 ALREADY_SUBMITTED.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.SubmitAssignmentRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/submissions [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	var req service.SubmitAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	result, err := h.assignments.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListForStudent godoc
// @Summary Student assignment submissions
// @Tags Assignments
// @Produce json
// @Param id path string true "Student internal ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/assignments [get]
func (h *AssignmentHandler) ListForStudent(c *gin.Context) {
	subs, err := h.assignments.StudentSubmissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// StatsForStudent godoc
// @Summary Student assignment stats
// @Tags Assignments
// @Produce json
// @Param id path string true "Student internal ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/assignments/stats [get]
func (h *AssignmentHandler) StatsForStudent(c *gin.Context) {
	stats, err := h.assignments.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
