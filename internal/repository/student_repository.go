package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
)

// ErrDuplicateStudentID reports an insert that collided with an existing school-issued identifier.
var ErrDuplicateStudentID = errors.New("student id already exists")

const studentColumns = "id, student_id, name, email, enrollment_date, current_risk_level, performance_score, last_updated"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.RiskLevel != "" {
		conditions = append(conditions, fmt.Sprintf("current_risk_level = $%d", len(args)+1))
		args = append(args, filter.RiskLevel)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(student_id) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":              "name",
		"student_id":        "student_id",
		"performance_score": "performance_score",
		"enrollment_date":   "enrollment_date",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, where, column, order, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by internal ID. Missing rows surface as sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	if err := sqlx.GetContext(ctx, r.exec(exec), &student, query, id); err != nil {
		return nil, missingOnMalformedID(err)
	}
	return &student, nil
}

// LockByID loads a student and holds a row lock until the surrounding transaction ends,
// serialising concurrent recomputes of the same student.
func (r *StudentRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1 FOR UPDATE", studentColumns)
	if err := sqlx.GetContext(ctx, r.exec(exec), &student, query, id); err != nil {
		return nil, missingOnMalformedID(err)
	}
	return &student, nil
}

// FindByStudentID fetches a student by school-issued identifier.
func (r *StudentRepository) FindByStudentID(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE student_id = $1", studentColumns)
	if err := sqlx.GetContext(ctx, r.exec(exec), &student, query, studentID); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByStudentID reports whether the school-issued identifier is taken.
func (r *StudentRepository) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE student_id = $1 LIMIT 1", studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student id: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.EnrollmentDate.IsZero() {
		student.EnrollmentDate = now
	}
	if student.LastUpdated.IsZero() {
		student.LastUpdated = now
	}
	const query = `INSERT INTO students (id, student_id, name, email, enrollment_date, current_risk_level, performance_score, last_updated)
        VALUES (:id, :student_id, :name, :email, :enrollment_date, :current_risk_level, :performance_score, :last_updated)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if hasCode(err, uniqueViolation) {
			return ErrDuplicateStudentID
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpdatePerformance patches the derived score fields of a student.
func (r *StudentRepository) UpdatePerformance(ctx context.Context, exec sqlx.ExtContext, id string, score float64, risk models.RiskLevel, at time.Time) error {
	const query = `UPDATE students SET performance_score = $2, current_risk_level = $3, last_updated = $4 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, score, risk, at); err != nil {
		return fmt.Errorf("update student performance: %w", err)
	}
	return nil
}

// ListByRisk returns every student, optionally filtered by risk level, weakest score first.
func (r *StudentRepository) ListByRisk(ctx context.Context, risk models.RiskLevel) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students", studentColumns)
	args := []interface{}{}
	if risk != "" {
		query += " WHERE current_risk_level = $1"
		args = append(args, risk)
	}
	query += " ORDER BY performance_score ASC, name ASC"

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students by risk: %w", err)
	}
	return students, nil
}
