package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
	"github.com/noah-isme/sma-risk-monitor/internal/repository"
	appErrors "github.com/noah-isme/sma-risk-monitor/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
	FindByStudentID(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.Student, error)
	ExistsByStudentID(ctx context.Context, studentID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	Email     string `json:"email" validate:"required,email,max=255"`
	StudentID string `json:"studentId" validate:"required,max=64"`
}

// StudentService handles student registry use-cases.
type StudentService struct {
	repo      studentRepository
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.RiskLevel != "" && !filter.RiskLevel.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid risk level")
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student by internal ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// GetByStudentID returns a student by school-issued identifier.
func (s *StudentService) GetByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.repo.FindByStudentID(ctx, nil, strings.TrimSpace(studentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student with a perfect initial score and low risk.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	exists, err := s.repo.ExistsByStudentID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student id already exists")
	}

	student := &models.Student{
		StudentID:        req.StudentID,
		Name:             req.Name,
		Email:            req.Email,
		CurrentRiskLevel: models.RiskLevelLow,
		PerformanceScore: models.InitialPerformanceScore,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicateStudentID) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student id already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, DashboardCachePattern)
	}
	s.logger.Info("student registered", zap.String("id", student.ID), zap.String("student_id", student.StudentID))
	return student, nil
}

type studentFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
}

type studentResolver interface {
	FindByStudentID(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.Student, error)
}

// requireStudent maps a missing internal student ID onto NotFound.
func requireStudent(ctx context.Context, repo studentFinder, id string) error {
	if _, err := repo.FindByID(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return nil
}

// resolveStudent loads a student by school-issued identifier inside exec.
func resolveStudent(ctx context.Context, repo studentResolver, exec sqlx.ExtContext, studentID string) (*models.Student, error) {
	student, err := repo.FindByStudentID(ctx, exec, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}
