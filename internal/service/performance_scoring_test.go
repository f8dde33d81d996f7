package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
)

func TestAttendanceScore(t *testing.T) {
	cases := []struct {
		name  string
		tally models.AttendanceTally
		want  float64
	}{
		{"no records is perfect", models.AttendanceTally{}, 100},
		{"all present", models.AttendanceTally{Total: 10, Present: 10}, 100},
		{"late is half credit", models.AttendanceTally{Total: 4, Present: 2, Late: 2}, 75},
		{"all absent", models.AttendanceTally{Total: 3, Absent: 3}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, AttendanceScore(tc.tally), 1e-9)
		})
	}
}

func TestQuizScore(t *testing.T) {
	assert.Equal(t, 0.0, QuizScore(models.QuizTally{}))
	assert.InDelta(t, 85.0, QuizScore(models.QuizTally{Count: 2, MeanAccuracy: 85}), 1e-9)
}

func TestQuizScoreIsNotClamped(t *testing.T) {
	// a quiz scored above its question count yields accuracy above 100 and is kept as-is
	assert.InDelta(t, 120.0, QuizScore(models.QuizTally{Count: 1, MeanAccuracy: 120}), 1e-9)
}

func TestAssignmentScore(t *testing.T) {
	assert.Equal(t, 100.0, AssignmentScore(models.AssignmentTally{}))
	assert.Equal(t, 0.0, AssignmentScore(models.AssignmentTally{ActiveAssignments: 3}))
	assert.InDelta(t, 98.0, AssignmentScore(models.AssignmentTally{ActiveAssignments: 1, Submissions: 1, MeanPercent: 95}), 1e-9)
	assert.InDelta(t, 30.0+32.0, AssignmentScore(models.AssignmentTally{ActiveAssignments: 2, Submissions: 1, MeanPercent: 80}), 1e-9)
}

func TestAssignmentScoreIsNotClamped(t *testing.T) {
	score := AssignmentScore(models.AssignmentTally{ActiveAssignments: 1, Submissions: 2, MeanPercent: 110})
	assert.InDelta(t, 200*0.6+110*0.4, score, 1e-9)
	assert.Greater(t, score, 100.0)
}

func TestOverallScoreWeights(t *testing.T) {
	assert.InDelta(t, 30.0, OverallScore(100, 0, 0), 1e-9)
	assert.InDelta(t, 40.0, OverallScore(0, 100, 0), 1e-9)
	assert.InDelta(t, 30.0, OverallScore(0, 0, 100), 1e-9)
}

func TestClassifyRiskBoundaries(t *testing.T) {
	assert.Equal(t, models.RiskLevelLow, ClassifyRisk(80.0))
	assert.Equal(t, models.RiskLevelMedium, ClassifyRisk(79.999))
	assert.Equal(t, models.RiskLevelMedium, ClassifyRisk(50.0))
	assert.Equal(t, models.RiskLevelHigh, ClassifyRisk(49.999))
	assert.Equal(t, models.RiskLevelLow, ClassifyRisk(100))
	assert.Equal(t, models.RiskLevelHigh, ClassifyRisk(0))
}

func TestComputeScoresWorkedExample(t *testing.T) {
	scores := ComputeScores(
		models.AttendanceTally{Total: 10, Present: 10},
		models.QuizTally{Count: 1, MeanAccuracy: 90, BestAccuracy: 90},
		models.AssignmentTally{ActiveAssignments: 1, Submissions: 1, OnTime: 1, MeanPercent: 95},
	)
	assert.InDelta(t, 100.0, scores.Attendance, 1e-9)
	assert.InDelta(t, 90.0, scores.Quiz, 1e-9)
	assert.InDelta(t, 98.0, scores.Assignment, 1e-9)
	assert.InDelta(t, 95.4, scores.Overall, 1e-9)
	assert.Equal(t, models.RiskLevelLow, scores.Risk)
}

func TestComputeScoresNewStudentIsMedium(t *testing.T) {
	// no attendance (100), no quizzes (0), no active assignments (100)
	scores := ComputeScores(models.AttendanceTally{}, models.QuizTally{}, models.AssignmentTally{})
	assert.InDelta(t, 60.0, scores.Overall, 1e-9)
	assert.Equal(t, models.RiskLevelMedium, scores.Risk)
}

func TestShouldAlertHighRisk(t *testing.T) {
	assert.True(t, ShouldAlertHighRisk(models.RiskLevelMedium, models.RiskLevelHigh))
	assert.True(t, ShouldAlertHighRisk(models.RiskLevelLow, models.RiskLevelHigh))
	assert.False(t, ShouldAlertHighRisk(models.RiskLevelHigh, models.RiskLevelHigh))
	assert.False(t, ShouldAlertHighRisk(models.RiskLevelHigh, models.RiskLevelMedium))
}
