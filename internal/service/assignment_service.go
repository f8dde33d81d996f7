package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	"github.com/noah-isme/sma-risk-monitor/internal/models"
	appErrors "github.com/noah-isme/sma-risk-monitor/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Assignment, error)
	ListActive(ctx context.Context) ([]models.Assignment, error)
	Deactivate(ctx context.Context, id string) error
	SubmissionExists(ctx context.Context, exec sqlx.ExtContext, studentID, assignmentID string) (bool, error)
	InsertSubmission(ctx context.Context, exec sqlx.ExtContext, sub *models.AssignmentSubmission) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AssignmentSubmissionDetail, error)
	Tally(ctx context.Context, exec sqlx.ExtContext, studentID string) (models.AssignmentTally, error)
}

// CreateAssignmentRequest defines a new assignment.
type CreateAssignmentRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	DueDate     time.Time `json:"dueDate" validate:"required"`
	TotalPoints float64   `json:"totalPoints" validate:"required,gt=0"`
}

// SubmitAssignmentRequest carries the one allowed submission. Score is in points.
type SubmitAssignmentRequest struct {
	StudentID string   `json:"studentId" validate:"required"`
	Score     *float64 `json:"score" validate:"required"`
}

// AssignmentService records assignments. Submissions are immutable: a second submission for the
// same student and assignment is rejected.
type AssignmentService struct {
	tx        transactor
	students  recorderStudentRepository
	repo      assignmentRepository
	scheduler PerformanceScheduler
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssignmentService constructs the assignment recorder.
func NewAssignmentService(tx transactor, students recorderStudentRepository, repo assignmentRepository, scheduler PerformanceScheduler, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tx:        tx,
		students:  students,
		repo:      repo,
		scheduler: scheduler,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create registers an active assignment.
func (s *AssignmentService) Create(ctx context.Context, req CreateAssignmentRequest) (*models.Assignment, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	assignment := &models.Assignment{
		Title:       req.Title,
		DueDate:     req.DueDate.UTC(),
		TotalPoints: req.TotalPoints,
		IsActive:    true,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// ListActive returns active assignments.
func (s *AssignmentService) ListActive(ctx context.Context) ([]models.Assignment, error) {
	assignments, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}
	return assignments, nil
}

// Deactivate removes an assignment from the active set used for completion rates.
func (s *AssignmentService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate assignment")
	}
	return nil
}

// Submit stores the student's submission, flagging it late when past the due date.
func (s *AssignmentService) Submit(ctx context.Context, assignmentID string, req SubmitAssignmentRequest) (*dto.SubmitAssignmentResult, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment submission")
	}

	now := s.now().UTC()
	var (
		studentID string
		isLate    bool
	)
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		student, err := resolveStudent(ctx, s.students, exec, req.StudentID)
		if err != nil {
			return err
		}
		assignment, err := s.repo.FindByID(ctx, exec, assignmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
		}

		exists, err := s.repo.SubmissionExists(ctx, exec, student.ID, assignment.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check submission")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrAlreadySubmitted, "assignment already submitted")
		}

		studentID = student.ID
		isLate = now.After(assignment.DueDate)
		inserted, err := s.repo.InsertSubmission(ctx, exec, &models.AssignmentSubmission{
			StudentID:    student.ID,
			AssignmentID: assignment.ID,
			Score:        *req.Score,
			SubmittedAt:  now,
			IsLate:       isLate,
			TotalPoints:  assignment.TotalPoints,
		})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record assignment submission")
		}
		if !inserted {
			return appErrors.Clone(appErrors.ErrAlreadySubmitted, "assignment already submitted")
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	scheduleRecompute(ctx, s.scheduler, s.logger, studentID)
	return &dto.SubmitAssignmentResult{Success: true, IsLate: isLate}, nil
}

// StudentSubmissions returns the student's submissions.
func (s *AssignmentService) StudentSubmissions(ctx context.Context, studentID string) ([]models.AssignmentSubmissionDetail, error) {
	if err := requireStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	subs, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignment submissions")
	}
	if subs == nil {
		subs = []models.AssignmentSubmissionDetail{}
	}
	return subs, nil
}

// Stats summarises the student's submissions against the active assignment set.
func (s *AssignmentService) Stats(ctx context.Context, studentID string) (*models.AssignmentStats, error) {
	if err := requireStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	tally, err := s.repo.Tally(ctx, nil, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment stats")
	}
	stats := &models.AssignmentStats{
		OnTimeSubmissions: tally.OnTime,
		TotalSubmissions:  tally.Submissions,
		TotalAssignments:  tally.ActiveAssignments,
	}
	if tally.Submissions == 0 {
		return stats, nil
	}
	stats.AverageScore = tally.MeanPercent
	if tally.ActiveAssignments > 0 {
		stats.CompletionRate = float64(tally.Submissions) / float64(tally.ActiveAssignments) * 100
	}
	return stats, nil
}
