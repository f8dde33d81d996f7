package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	"github.com/noah-isme/sma-risk-monitor/internal/models"
	appErrors "github.com/noah-isme/sma-risk-monitor/pkg/errors"
)

const defaultAttendanceDays = 30

type attendanceRepository interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error
	ListSince(ctx context.Context, studentID string, since time.Time) ([]models.AttendanceRecord, error)
	TallySince(ctx context.Context, exec sqlx.ExtContext, studentID string, since time.Time) (models.AttendanceTally, error)
}

type recorderStudentRepository interface {
	studentFinder
	studentResolver
}

// MarkAttendanceRequest marks today's attendance for a student identified by school ID.
type MarkAttendanceRequest struct {
	StudentID string                  `json:"studentId" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
}

// AttendanceService records daily attendance. One mark per student per UTC calendar day;
// marking again the same day overwrites the status.
type AttendanceService struct {
	tx        transactor
	students  recorderStudentRepository
	repo      attendanceRepository
	scheduler PerformanceScheduler
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance recorder.
func NewAttendanceService(tx transactor, students recorderStudentRepository, repo attendanceRepository, scheduler PerformanceScheduler, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		tx:        tx,
		students:  students,
		repo:      repo,
		scheduler: scheduler,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Mark upserts the student's mark for the current day and schedules a recompute.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*dto.MarkAttendanceResult, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be present, absent or late")
	}

	now := s.now().UTC()
	var studentID string
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		student, err := resolveStudent(ctx, s.students, exec, req.StudentID)
		if err != nil {
			return err
		}
		studentID = student.ID
		record := &models.AttendanceRecord{
			StudentID: student.ID,
			Date:      now.Format(models.AttendanceDateLayout),
			Status:    req.Status,
			Timestamp: now,
		}
		if err := s.repo.Upsert(ctx, exec, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	scheduleRecompute(ctx, s.scheduler, s.logger, studentID)
	return &dto.MarkAttendanceResult{Success: true}, nil
}

// List returns the student's marks from the last days days, newest first.
func (s *AttendanceService) List(ctx context.Context, studentID string, days int) ([]models.AttendanceRecord, error) {
	if err := requireStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = defaultAttendanceDays
	}
	records, err := s.repo.ListSince(ctx, studentID, s.now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return records, nil
}

// Stats summarises the student's last 30 days. Late counts as attended.
func (s *AttendanceService) Stats(ctx context.Context, studentID string) (*models.AttendanceStats, error) {
	if err := requireStudent(ctx, s.students, studentID); err != nil {
		return nil, err
	}
	tally, err := s.repo.TallySince(ctx, nil, studentID, s.now().UTC().AddDate(0, 0, -AttendanceWindowDays))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance stats")
	}
	stats := &models.AttendanceStats{
		Total:   tally.Total,
		Present: tally.Present,
		Late:    tally.Late,
		Absent:  tally.Absent,
	}
	if tally.Total > 0 {
		stats.AttendanceRate = float64(tally.Present+tally.Late) / float64(tally.Total) * 100
	}
	return stats, nil
}
