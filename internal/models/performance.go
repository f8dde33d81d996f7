package models

import "time"

// PerformanceHistory is an append-only snapshot written on every recompute.
type PerformanceHistory struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	AttendanceScore float64   `db:"attendance_score" json:"attendance_score"`
	QuizScore       float64   `db:"quiz_score" json:"quiz_score"`
	AssignmentScore float64   `db:"assignment_score" json:"assignment_score"`
	OverallScore    float64   `db:"overall_score" json:"overall_score"`
	RiskLevel       RiskLevel `db:"risk_level" json:"risk_level"`
	CalculatedAt    time.Time `db:"calculated_at" json:"calculated_at"`
}
