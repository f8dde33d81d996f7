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

type quizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Quiz, error)
	ListActive(ctx context.Context) ([]models.Quiz, error)
	Deactivate(ctx context.Context, id string) error
	SaveBestSubmission(ctx context.Context, exec sqlx.ExtContext, sub *models.QuizSubmission) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.QuizSubmissionDetail, error)
	Tally(ctx context.Context, exec sqlx.ExtContext, studentID string) (models.QuizTally, error)
}

// CreateQuizRequest defines a new quiz.
type CreateQuizRequest struct {
	Title          string `json:"title" validate:"required,max=255"`
	TotalQuestions int    `json:"totalQuestions" validate:"required,gt=0"`
}

// SubmitQuizRequest carries one attempt. Score counts correct answers.
type SubmitQuizRequest struct {
	StudentID string   `json:"studentId" validate:"required"`
	Score     *float64 `json:"score" validate:"required"`
}

// QuizService records quizzes and keeps each student's best attempt.
type QuizService struct {
	tx        transactor
	students  recorderStudentRepository
	repo      quizRepository
	scheduler PerformanceScheduler
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewQuizService constructs the quiz recorder.
func NewQuizService(tx transactor, students recorderStudentRepository, repo quizRepository, scheduler PerformanceScheduler, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		tx:        tx,
		students:  students,
		repo:      repo,
		scheduler: scheduler,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create registers an active quiz.
func (s *QuizService) Create(ctx context.Context, req CreateQuizRequest) (*models.Quiz, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	quiz := &models.Quiz{Title: req.Title, TotalQuestions: req.TotalQuestions, IsActive: true, CreatedAt: s.now().UTC()}
	if err := s.repo.Create(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	return quiz, nil
}

// ListActive returns active quizzes.
func (s *QuizService) ListActive(ctx context.Context) ([]models.Quiz, error) {
	quizzes, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	if quizzes == nil {
		quizzes = []models.Quiz{}
	}
	return quizzes, nil
}

// Deactivate hides a quiz. Stored submissions keep counting towards scores.
func (s *QuizService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate quiz")
	}
	return nil
}

// Submit records an attempt. The stored submission is replaced only by a strictly higher score,
// but the response always reports this attempt's accuracy.
func (s *QuizService) Submit(ctx context.Context, quizID string, req SubmitQuizRequest) (*dto.SubmitQuizResult, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz submission")
	}

	now := s.now().UTC()
	var (
		studentID string
		accuracy  float64
	)
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		student, err := resolveStudent(ctx, s.students, exec, req.StudentID)
		if err != nil {
			return err
		}
		quiz, err := s.repo.FindByID(ctx, exec, quizID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
		}
		studentID = student.ID
		accuracy = QuizAccuracy(*req.Score, quiz.TotalQuestions)

		stored, err := s.repo.SaveBestSubmission(ctx, exec, &models.QuizSubmission{
			StudentID:      student.ID,
			QuizID:         quiz.ID,
			Score:          *req.Score,
			Accuracy:       accuracy,
			SubmittedAt:    now,
			TotalQuestions: quiz.TotalQuestions,
		})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record quiz submission")
		}
		if !stored {
			s.logger.Debug("quiz attempt below stored best", zap.String("student_id", student.ID), zap.String("quiz_id", quiz.ID))
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	scheduleRecompute(ctx, s.scheduler, s.logger, studentID)
	return &dto.SubmitQuizResult{Success: true, Accuracy: accuracy}, nil
}

// StudentSubmissions returns the student's stored best attempts.
func (s *QuizService) StudentSubmissions(ctx context.Context, studentID string) ([]models.QuizSubmissionDetail, error) {
	if err := requireStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	subs, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quiz submissions")
	}
	if subs == nil {
		subs = []models.QuizSubmissionDetail{}
	}
	return subs, nil
}

// Stats summarises the student's stored attempts. BestScore is the highest accuracy.
func (s *QuizService) Stats(ctx context.Context, studentID string) (*models.QuizStats, error) {
	if err := requireStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	tally, err := s.repo.Tally(ctx, nil, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz stats")
	}
	return &models.QuizStats{
		AverageAccuracy: QuizScore(tally),
		TotalQuizzes:    tally.Count,
		BestScore:       tally.BestAccuracy,
	}, nil
}

// QuizAccuracy converts a raw score to a percentage of the quiz's questions. It is not clamped.
func QuizAccuracy(score float64, totalQuestions int) float64 {
	return score / float64(totalQuestions) * 100
}
