package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
)

// DashboardRepository aggregates read-side rollups.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

type studentRollup struct {
	Total        int     `db:"total"`
	Low          int     `db:"low"`
	Medium       int     `db:"medium"`
	High         int     `db:"high"`
	AverageScore float64 `db:"average_score"`
	UnreadAlerts int     `db:"unread_alerts"`
}

// Stats counts students per risk level, averages their scores and counts unread alerts.
func (r *DashboardRepository) Stats(ctx context.Context) (*dto.DashboardStats, error) {
	const query = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE current_risk_level = 'low') AS low,
        COUNT(*) FILTER (WHERE current_risk_level = 'medium') AS medium,
        COUNT(*) FILTER (WHERE current_risk_level = 'high') AS high,
        COALESCE(AVG(performance_score), 0) AS average_score,
        (SELECT COUNT(*) FROM alerts WHERE is_read = FALSE) AS unread_alerts
        FROM students`
	var rollup studentRollup
	if err := r.db.GetContext(ctx, &rollup, query); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &dto.DashboardStats{
		TotalStudents: rollup.Total,
		RiskCounts: dto.RiskCounts{
			Low:    rollup.Low,
			Medium: rollup.Medium,
			High:   rollup.High,
		},
		AverageScore:      rollup.AverageScore,
		UnreadAlertsCount: rollup.UnreadAlerts,
	}, nil
}
