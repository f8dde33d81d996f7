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

const alertColumns = "id, student_id, type, message, is_read, created_at"

// AlertRepository persists staff-facing alerts.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs an AlertRepository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an alert.
func (r *AlertRepository) Create(ctx context.Context, exec sqlx.ExtContext, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO alerts (id, student_id, type, message, is_read, created_at)
        VALUES (:id, :student_id, :type, :message, :is_read, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, alert); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// List returns the newest alerts. unreadOnly restricts the result to unread alerts.
func (r *AlertRepository) List(ctx context.Context, unreadOnly bool, limit int) ([]models.Alert, error) {
	query := fmt.Sprintf("SELECT %s FROM alerts", alertColumns)
	if unreadOnly {
		query += " WHERE is_read = FALSE"
	}
	query += " ORDER BY created_at DESC LIMIT $1"

	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, limit); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// MarkRead flags one alert as read. Unknown IDs return sql.ErrNoRows.
func (r *AlertRepository) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", missingOnMalformedID(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark alert read rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllRead flags every unread alert as read and returns how many changed.
func (r *AlertRepository) MarkAllRead(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_read = TRUE WHERE is_read = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read rows: %w", err)
	}
	return affected, nil
}
