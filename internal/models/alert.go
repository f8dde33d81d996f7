package models

import "time"

// AlertType categorises alerts. Only AlertTypeHighRisk is currently emitted.
type AlertType string

const (
	AlertTypeHighRisk        AlertType = "high_risk"
	AlertTypePerformanceDrop AlertType = "performance_drop"
	AlertTypeAttendanceLow   AlertType = "attendance_low"
)

// Valid returns true when the type is a supported value.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeHighRisk, AlertTypePerformanceDrop, AlertTypeAttendanceLow:
		return true
	default:
		return false
	}
}

// Alert notifies staff about a student state transition.
type Alert struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Type      AlertType `db:"type" json:"type"`
	Message   string    `db:"message" json:"message"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
