package models

import "time"

// RiskLevel classifies a student's overall performance score.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Valid returns true when the level is a supported value.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh:
		return true
	default:
		return false
	}
}

// InitialPerformanceScore is assigned to newly registered students.
const InitialPerformanceScore = 100.0

// Student is a monitored learner. ID is the internal key, StudentID the school-issued identifier.
type Student struct {
	ID               string    `db:"id" json:"id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	EnrollmentDate   time.Time `db:"enrollment_date" json:"enrollment_date"`
	CurrentRiskLevel RiskLevel `db:"current_risk_level" json:"current_risk_level"`
	PerformanceScore float64   `db:"performance_score" json:"performance_score"`
	LastUpdated      time.Time `db:"last_updated" json:"last_updated"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	RiskLevel RiskLevel
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
