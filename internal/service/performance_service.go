package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
	appErrors "github.com/noah-isme/sma-risk-monitor/pkg/errors"
)

const defaultHistoryDays = 30

type transactor interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type engineStudentRepository interface {
	studentFinder
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
	UpdatePerformance(ctx context.Context, exec sqlx.ExtContext, id string, score float64, risk models.RiskLevel, at time.Time) error
}

type attendanceTallier interface {
	TallySince(ctx context.Context, exec sqlx.ExtContext, studentID string, since time.Time) (models.AttendanceTally, error)
}

type quizTallier interface {
	Tally(ctx context.Context, exec sqlx.ExtContext, studentID string) (models.QuizTally, error)
}

type assignmentTallier interface {
	Tally(ctx context.Context, exec sqlx.ExtContext, studentID string) (models.AssignmentTally, error)
}

type performanceHistoryRepository interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, entry *models.PerformanceHistory) error
	ListSince(ctx context.Context, studentID string, since time.Time) ([]models.PerformanceHistory, error)
}

type alertWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, alert *models.Alert) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// PerformanceDeps groups the collaborators of the performance engine.
type PerformanceDeps struct {
	Tx          transactor
	Students    engineStudentRepository
	Attendance  attendanceTallier
	Quizzes     quizTallier
	Assignments assignmentTallier
	History     performanceHistoryRepository
	Alerts      alertWriter
	Cache       cacheInvalidator
	Metrics     *MetricsService
	Logger      *zap.Logger
}

// RecomputeResult describes the outcome of one engine run.
type RecomputeResult struct {
	StudentID    string
	Skipped      bool
	PreviousRisk models.RiskLevel
	Scores       PerformanceScores
	AlertEmitted bool
	CalculatedAt time.Time
}

// PerformanceService derives student risk from recorded activity.
type PerformanceService struct {
	tx          transactor
	students    engineStudentRepository
	attendance  attendanceTallier
	quizzes     quizTallier
	assignments assignmentTallier
	history     performanceHistoryRepository
	alerts      alertWriter
	cache       cacheInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewPerformanceService constructs the performance engine.
func NewPerformanceService(deps PerformanceDeps) *PerformanceService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{
		tx:          deps.Tx,
		students:    deps.Students,
		attendance:  deps.Attendance,
		quizzes:     deps.Quizzes,
		assignments: deps.Assignments,
		history:     deps.History,
		alerts:      deps.Alerts,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Recompute rescores one student inside a single transaction: patch the student, append a
// history row and, on the transition into high risk, raise an alert. A student that no longer
// exists is skipped without error.
func (s *PerformanceService) Recompute(ctx context.Context, studentID string) (*RecomputeResult, error) {
	start := time.Now()
	result := &RecomputeResult{StudentID: studentID}

	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		return s.recompute(ctx, exec, result)
	})
	if err != nil {
		s.metrics.ObserveRecompute(RecomputeOutcomeError, time.Since(start), false)
		s.logger.Error("performance recompute failed", zap.String("student_id", studentID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to recompute performance")
	}

	if result.Skipped {
		s.metrics.ObserveRecompute(RecomputeOutcomeNoop, time.Since(start), false)
		s.logger.Debug("performance recompute skipped, student not found", zap.String("student_id", studentID))
		return result, nil
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, DashboardCachePattern)
	}
	s.metrics.ObserveRecompute(RecomputeOutcomeSuccess, time.Since(start), result.AlertEmitted)
	s.logger.Info("performance recomputed",
		zap.String("student_id", studentID),
		zap.Float64("overall_score", result.Scores.Overall),
		zap.String("previous_risk", string(result.PreviousRisk)),
		zap.String("risk", string(result.Scores.Risk)),
		zap.Bool("alert_emitted", result.AlertEmitted),
	)
	return result, nil
}

func (s *PerformanceService) recompute(ctx context.Context, exec sqlx.ExtContext, result *RecomputeResult) error {
	student, err := s.students.LockByID(ctx, exec, result.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Skipped = true
			return nil
		}
		return fmt.Errorf("load student: %w", err)
	}
	result.PreviousRisk = student.CurrentRiskLevel

	now := s.now().UTC()
	attendance, err := s.attendance.TallySince(ctx, exec, student.ID, now.AddDate(0, 0, -AttendanceWindowDays))
	if err != nil {
		return err
	}
	quizzes, err := s.quizzes.Tally(ctx, exec, student.ID)
	if err != nil {
		return err
	}
	assignments, err := s.assignments.Tally(ctx, exec, student.ID)
	if err != nil {
		return err
	}

	scores := ComputeScores(attendance, quizzes, assignments)
	result.Scores = scores
	result.CalculatedAt = now

	if err := s.students.UpdatePerformance(ctx, exec, student.ID, scores.Overall, scores.Risk, now); err != nil {
		return err
	}
	entry := &models.PerformanceHistory{
		StudentID:       student.ID,
		AttendanceScore: scores.Attendance,
		QuizScore:       scores.Quiz,
		AssignmentScore: scores.Assignment,
		OverallScore:    scores.Overall,
		RiskLevel:       scores.Risk,
		CalculatedAt:    now,
	}
	if err := s.history.Insert(ctx, exec, entry); err != nil {
		return err
	}

	if !ShouldAlertHighRisk(result.PreviousRisk, scores.Risk) {
		return nil
	}
	alert := &models.Alert{
		StudentID: student.ID,
		Type:      models.AlertTypeHighRisk,
		Message:   HighRiskMessage(student.Name, scores.Overall),
		IsRead:    false,
		CreatedAt: now,
	}
	if err := s.alerts.Create(ctx, exec, alert); err != nil {
		return err
	}
	result.AlertEmitted = true
	return nil
}

// History returns a student's snapshots from the last days days, newest first.
func (s *PerformanceService) History(ctx context.Context, studentID string, days int) ([]models.PerformanceHistory, error) {
	if err := requireStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = defaultHistoryDays
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	history, err := s.history.ListSince(ctx, studentID, since)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load performance history")
	}
	if history == nil {
		history = []models.PerformanceHistory{}
	}
	return history, nil
}

// HighRiskMessage renders the alert text for a student entering high risk.
func HighRiskMessage(name string, overall float64) string {
	return fmt.Sprintf("Student %s has entered HIGH RISK status with a performance score of %.1f%%", name, overall)
}
