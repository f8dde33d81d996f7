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

// QuizRepository persists quizzes and best-attempt submissions.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs a QuizRepository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

func (r *QuizRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a quiz definition.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO quizzes (id, title, total_questions, is_active, created_at)
        VALUES (:id, :title, :total_questions, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

// FindByID fetches a quiz by ID regardless of its active flag.
func (r *QuizRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Quiz, error) {
	const query = `SELECT id, title, total_questions, is_active, created_at FROM quizzes WHERE id = $1`
	var quiz models.Quiz
	if err := sqlx.GetContext(ctx, r.exec(exec), &quiz, query, id); err != nil {
		return nil, missingOnMalformedID(err)
	}
	return &quiz, nil
}

// ListActive returns active quizzes, newest first.
func (r *QuizRepository) ListActive(ctx context.Context) ([]models.Quiz, error) {
	const query = `SELECT id, title, total_questions, is_active, created_at FROM quizzes WHERE is_active = TRUE ORDER BY created_at DESC`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

// Deactivate hides a quiz from active listings. Unknown IDs return sql.ErrNoRows.
func (r *QuizRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE quizzes SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate quiz: %w", missingOnMalformedID(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate quiz rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveBestSubmission inserts the submission or replaces the stored one when the new score is
// strictly higher. It reports whether a row was written.
func (r *QuizRepository) SaveBestSubmission(ctx context.Context, exec sqlx.ExtContext, sub *models.QuizSubmission) (bool, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	const query = `INSERT INTO quiz_submissions (id, student_id, quiz_id, score, accuracy, submitted_at, total_questions)
        VALUES (:id, :student_id, :quiz_id, :score, :accuracy, :submitted_at, :total_questions)
        ON CONFLICT (student_id, quiz_id) DO UPDATE
        SET score = EXCLUDED.score, accuracy = EXCLUDED.accuracy, submitted_at = EXCLUDED.submitted_at,
            total_questions = EXCLUDED.total_questions
        WHERE quiz_submissions.score < EXCLUDED.score`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, sub)
	if err != nil {
		return false, fmt.Errorf("save quiz submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save quiz submission rows: %w", err)
	}
	return affected > 0, nil
}

// ListByStudent returns a student's stored submissions with quiz titles, newest first.
func (r *QuizRepository) ListByStudent(ctx context.Context, studentID string) ([]models.QuizSubmissionDetail, error) {
	const query = `SELECT qs.id, qs.student_id, qs.quiz_id, qs.score, qs.accuracy, qs.submitted_at, qs.total_questions, q.title AS quiz_title
        FROM quiz_submissions qs JOIN quizzes q ON q.id = qs.quiz_id
        WHERE qs.student_id = $1 ORDER BY qs.submitted_at DESC`
	var subs []models.QuizSubmissionDetail
	if err := r.db.SelectContext(ctx, &subs, query, studentID); err != nil {
		return nil, fmt.Errorf("list quiz submissions: %w", err)
	}
	return subs, nil
}

// Tally aggregates every stored submission of the student.
func (r *QuizRepository) Tally(ctx context.Context, exec sqlx.ExtContext, studentID string) (models.QuizTally, error) {
	const query = `SELECT COUNT(*) AS count, COALESCE(AVG(accuracy), 0) AS mean_accuracy, COALESCE(MAX(accuracy), 0) AS best_accuracy
        FROM quiz_submissions WHERE student_id = $1`
	var tally models.QuizTally
	if err := sqlx.GetContext(ctx, r.exec(exec), &tally, query, studentID); err != nil {
		return models.QuizTally{}, fmt.Errorf("tally quiz submissions: %w", err)
	}
	return tally, nil
}
