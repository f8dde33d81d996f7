package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
)

// PerformanceRepository appends and reads performance history snapshots.
type PerformanceRepository struct {
	db *sqlx.DB
}

// NewPerformanceRepository constructs a PerformanceRepository.
func NewPerformanceRepository(db *sqlx.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

func (r *PerformanceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Insert appends one history row.
func (r *PerformanceRepository) Insert(ctx context.Context, exec sqlx.ExtContext, entry *models.PerformanceHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO performance_history (id, student_id, attendance_score, quiz_score, assignment_score, overall_score, risk_level, calculated_at)
        VALUES (:id, :student_id, :attendance_score, :quiz_score, :assignment_score, :overall_score, :risk_level, :calculated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("insert performance history: %w", err)
	}
	return nil
}

// ListSince returns a student's snapshots calculated at or after since, newest first.
func (r *PerformanceRepository) ListSince(ctx context.Context, studentID string, since time.Time) ([]models.PerformanceHistory, error) {
	const query = `SELECT id, student_id, attendance_score, quiz_score, assignment_score, overall_score, risk_level, calculated_at
        FROM performance_history WHERE student_id = $1 AND calculated_at >= $2 ORDER BY calculated_at DESC`
	var history []models.PerformanceHistory
	if err := r.db.SelectContext(ctx, &history, query, studentID, since); err != nil {
		return nil, fmt.Errorf("list performance history: %w", err)
	}
	return history, nil
}
