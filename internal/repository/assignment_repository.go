package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
)

// AssignmentRepository persists assignments and their immutable submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an assignment definition.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignments (id, title, due_date, total_points, is_active, created_at)
        VALUES (:id, :title, :due_date, :total_points, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID fetches an assignment by ID regardless of its active flag.
func (r *AssignmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Assignment, error) {
	const query = `SELECT id, title, due_date, total_points, is_active, created_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := sqlx.GetContext(ctx, r.exec(exec), &assignment, query, id); err != nil {
		return nil, missingOnMalformedID(err)
	}
	return &assignment, nil
}

// ListActive returns active assignments ordered by due date.
func (r *AssignmentRepository) ListActive(ctx context.Context) ([]models.Assignment, error) {
	const query = `SELECT id, title, due_date, total_points, is_active, created_at FROM assignments WHERE is_active = TRUE ORDER BY due_date ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// Deactivate removes an assignment from the active set. Unknown IDs return sql.ErrNoRows.
func (r *AssignmentRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE assignments SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate assignment: %w", missingOnMalformedID(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SubmissionExists reports whether the student already submitted the assignment.
func (r *AssignmentRepository) SubmissionExists(ctx context.Context, exec sqlx.ExtContext, studentID, assignmentID string) (bool, error) {
	var exists int
	err := sqlx.GetContext(ctx, r.exec(exec), &exists,
		`SELECT 1 FROM assignment_submissions WHERE student_id = $1 AND assignment_id = $2 LIMIT 1`, studentID, assignmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check assignment submission: %w", err)
	}
	return true, nil
}

// InsertSubmission stores a first submission. It reports false, without writing, when a
// concurrent submission for the same pair won the race.
func (r *AssignmentRepository) InsertSubmission(ctx context.Context, exec sqlx.ExtContext, sub *models.AssignmentSubmission) (bool, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	const query = `INSERT INTO assignment_submissions (id, student_id, assignment_id, score, submitted_at, is_late, total_points)
        VALUES (:id, :student_id, :assignment_id, :score, :submitted_at, :is_late, :total_points)
        ON CONFLICT (student_id, assignment_id) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, sub)
	if err != nil {
		return false, fmt.Errorf("insert assignment submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert assignment submission rows: %w", err)
	}
	return affected > 0, nil
}

// ListByStudent returns a student's submissions with assignment metadata, newest first.
func (r *AssignmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AssignmentSubmissionDetail, error) {
	const query = `SELECT s.id, s.student_id, s.assignment_id, s.score, s.submitted_at, s.is_late, s.total_points,
        a.title AS assignment_title, a.due_date
        FROM assignment_submissions s JOIN assignments a ON a.id = s.assignment_id
        WHERE s.student_id = $1 ORDER BY s.submitted_at DESC`
	var subs []models.AssignmentSubmissionDetail
	if err := r.db.SelectContext(ctx, &subs, query, studentID); err != nil {
		return nil, fmt.Errorf("list assignment submissions: %w", err)
	}
	return subs, nil
}

// Tally aggregates a student's submissions together with the current active assignment count.
// Submissions to since-deactivated assignments still count towards the student's totals, and
// each score is taken against the points recorded with the submission.
func (r *AssignmentRepository) Tally(ctx context.Context, exec sqlx.ExtContext, studentID string) (models.AssignmentTally, error) {
	const query = `SELECT (SELECT COUNT(*) FROM assignments WHERE is_active = TRUE) AS active_assignments,
        COUNT(s.id) AS submissions,
        COUNT(s.id) FILTER (WHERE NOT s.is_late) AS on_time,
        COALESCE(AVG(s.score / s.total_points * 100), 0) AS mean_percent
        FROM assignment_submissions s
        WHERE s.student_id = $1`
	var tally models.AssignmentTally
	if err := sqlx.GetContext(ctx, r.exec(exec), &tally, query, studentID); err != nil {
		return models.AssignmentTally{}, fmt.Errorf("tally assignment submissions: %w", err)
	}
	return tally, nil
}
