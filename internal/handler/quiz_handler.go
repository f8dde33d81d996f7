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

type quizService interface {
	Create(ctx context.Context, req service.CreateQuizRequest) (*models.Quiz, error)
	ListActive(ctx context.Context) ([]models.Quiz, error)
	Deactivate(ctx context.Context, id string) error
	Submit(ctx context.Context, quizID string, req service.SubmitQuizRequest) (*dto.SubmitQuizResult, error)
	StudentSubmissions(ctx context.Context, studentID string) ([]models.QuizSubmissionDetail, error)
	Stats(ctx context.Context, studentID string) (*models.QuizStats, error)
}

// QuizHandler exposes quiz management and submission endpoints.
type QuizHandler struct {
	quizzes quizService
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(quizzes quizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

// Create godoc
// @Summary Create quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param payload body service.CreateQuizRequest true "Quiz payload"
// @Success 201 {object} response.Envelope
// @Router /quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
	var req service.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	quiz, err := h.quizzes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// ListActive godoc
// @Summary List active quizzes
// @Tags Quizzes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /quizzes [get]
func (h *QuizHandler) ListActive(c *gin.Context) {
	quizzes, err := h.quizzes.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quizzes, nil)
}

// Deactivate godoc
// @Summary Deactivate quiz
// @Tags Quizzes
// @Param id path string true "Quiz ID"
// @Success 204
// @Router /quizzes/{id} [delete]
func (h *QuizHandler) Deactivate(c *gin.Context) {
	if err := h.quizzes.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit quiz attempt
// @Description Keeps the student's best attempt. The response reports this attempt's accuracy.
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body service.SubmitQuizRequest true "Attempt payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quizzes/{id}/submissions [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	var req service.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	result, err := h.quizzes.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListForStudent godoc
// @Summary Student quiz submissions
// @Tags Quizzes
// @Produce json
// @Param id path string true "Student internal ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/quizzes [get]
func (h *QuizHandler) ListForStudent(c *gin.Context) {
	subs, err := h.quizzes.StudentSubmissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// StatsForStudent godoc
// @Summary Student quiz stats
// @Tags Quizzes
// @Produce json
// @Param id path string true "Student internal ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/quizzes/stats [get]
func (h *QuizHandler) StatsForStudent(c *gin.Context) {
	stats, err := h.quizzes.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
