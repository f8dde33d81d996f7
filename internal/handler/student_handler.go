package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
	"github.com/noah-isme/sma-risk-monitor/internal/service"
	"github.com/noah-isme/sma-risk-monitor/pkg/response"
)

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Student, error)
	GetByStudentID(ctx context.Context, studentID string) (*models.Student, error)
	Create(ctx context.Context, req service.CreateStudentRequest) (*models.Student, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name, email or student id"
// @Param riskLevel query string false "Filter by risk level (low, medium, high)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column (name, student_id, performance_score, enrollment_date)"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		RiskLevel: models.RiskLevel(strings.ToLower(strings.TrimSpace(c.Query("riskLevel")))),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	var err error
	if filter.Page, err = intQuery(c, "page", 1); err != nil {
		response.Error(c, err)
		return
	}
	if filter.PageSize, err = intQuery(c, "limit", 20); err != nil {
		response.Error(c, err)
		return
	}

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student
// @Tags Students
// @Produce json
// @Param id path string true "Student internal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Lookup godoc
// @Summary Get student by school-issued id
// @Tags Students
// @Produce json
// @Param studentId path string true "School-issued student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/lookup/{studentId} [get]
func (h *StudentHandler) Lookup(c *gin.Context) {
	student, err := h.students.GetByStudentID(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Register student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}
