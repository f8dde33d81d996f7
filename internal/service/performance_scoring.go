package service

import (
	"math"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
)

// Score weights and risk thresholds.
const (
	attendanceWeight = 0.3
	quizWeight       = 0.4
	assignmentWeight = 0.3

	completionWeight = 0.6
	qualityWeight    = 0.4

	lowRiskThreshold    = 80.0
	mediumRiskThreshold = 50.0

	// AttendanceWindowDays bounds the attendance records that feed the score.
	AttendanceWindowDays = 30
)

// PerformanceScores holds one recompute's sub-scores and result.
type PerformanceScores struct {
	Attendance float64
	Quiz       float64
	Assignment float64
	Overall    float64
	Risk       models.RiskLevel
}

// AttendanceScore weights present as full credit and late as half. No records scores 100.
func AttendanceScore(t models.AttendanceTally) float64 {
	if t.Total == 0 {
		return 100
	}
	score := float64(t.Present*100+t.Late*50) / float64(t.Total*100) * 100
	return math.Max(0, math.Min(100, score))
}

// QuizScore is the mean stored accuracy. No submissions scores 0. Accuracy is not clamped.
func QuizScore(t models.QuizTally) float64 {
	if t.Count == 0 {
		return 0
	}
	return t.MeanAccuracy
}

// AssignmentScore blends completion rate with mean percentage. With no active assignments the
// student passes vacuously; with active assignments but no submissions the score is 0.
// Neither component is clamped, so over-scoring can push the result above 100.
func AssignmentScore(t models.AssignmentTally) float64 {
	if t.ActiveAssignments == 0 {
		return 100
	}
	if t.Submissions == 0 {
		return 0
	}
	completion := float64(t.Submissions) / float64(t.ActiveAssignments) * 100
	return completion*completionWeight + t.MeanPercent*qualityWeight
}

// OverallScore applies the 30/40/30 attendance, quiz and assignment weighting.
func OverallScore(attendance, quiz, assignment float64) float64 {
	return attendance*attendanceWeight + quiz*quizWeight + assignment*assignmentWeight
}

// ClassifyRisk maps an overall score onto a risk level. Both thresholds are inclusive lower bounds.
func ClassifyRisk(overall float64) models.RiskLevel {
	switch {
	case overall >= lowRiskThreshold:
		return models.RiskLevelLow
	case overall >= mediumRiskThreshold:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelHigh
	}
}

// ComputeScores derives every sub-score and the risk level from the tallies.
func ComputeScores(attendance models.AttendanceTally, quiz models.QuizTally, assignment models.AssignmentTally) PerformanceScores {
	scores := PerformanceScores{
		Attendance: AttendanceScore(attendance),
		Quiz:       QuizScore(quiz),
		Assignment: AssignmentScore(assignment),
	}
	scores.Overall = OverallScore(scores.Attendance, scores.Quiz, scores.Assignment)
	scores.Risk = ClassifyRisk(scores.Overall)
	return scores
}

// ShouldAlertHighRisk fires only on the transition into high risk.
func ShouldAlertHighRisk(previous, current models.RiskLevel) bool {
	return current == models.RiskLevelHigh && previous != models.RiskLevelHigh
}
