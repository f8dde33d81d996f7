package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
	appErrors "github.com/noah-isme/sma-risk-monitor/pkg/errors"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func markAttendance(store *memStore, studentID string, day time.Time, status models.AttendanceStatus) {
	date := day.Format(models.AttendanceDateLayout)
	store.attendance[subKey(studentID, date)] = models.AttendanceRecord{
		ID:        store.nextID("att"),
		StudentID: studentID,
		Date:      date,
		Status:    status,
		Timestamp: day,
	}
}

func storeQuizAccuracy(store *memStore, studentID, quizID string, accuracy float64) {
	store.quizSubs[subKey(studentID, quizID)] = models.QuizSubmission{
		ID:        store.nextID("qs"),
		StudentID: studentID,
		QuizID:    quizID,
		Accuracy:  accuracy,
	}
}

func TestRecomputeEmitsAlertOnlyOnTransitionIntoHighRisk(t *testing.T) {
	f := newFixture()
	st := f.store.addStudent("S-1", "Ada")
	quiz := f.store.addQuiz(10)
	f.store.addAssignment(testNow.Add(24*time.Hour), 100)
	engine := f.engine(testNow)
	ctx := context.Background()

	// attendance 0, quiz 10, assignment 0 → overall 4
	markAttendance(f.store, st.ID, testNow, models.AttendanceStatusAbsent)
	storeQuizAccuracy(f.store, st.ID, quiz.ID, 10)

	res, err := engine.Recompute(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelLow, res.PreviousRisk)
	assert.Equal(t, models.RiskLevelHigh, res.Scores.Risk)
	assert.InDelta(t, 4.0, res.Scores.Overall, 1e-9)
	assert.True(t, res.AlertEmitted)
	require.Len(t, f.store.alerts, 1)
	assert.Equal(t, models.AlertTypeHighRisk, f.store.alerts[0].Type)
	assert.False(t, f.store.alerts[0].IsRead)
	assert.Equal(t, "Student Ada has entered HIGH RISK status with a performance score of 4.0%", f.store.alerts[0].Message)

	res, err = engine.Recompute(ctx, st.ID)
	require.NoError(t, err)
	assert.False(t, res.AlertEmitted)
	assert.Len(t, f.store.alerts, 1)

	// attendance 100, quiz 100, assignment 0 → overall 70
	markAttendance(f.store, st.ID, testNow, models.AttendanceStatusPresent)
	storeQuizAccuracy(f.store, st.ID, quiz.ID, 100)
	res, err = engine.Recompute(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelMedium, res.Scores.Risk)
	assert.False(t, res.AlertEmitted)

	markAttendance(f.store, st.ID, testNow, models.AttendanceStatusAbsent)
	res, err = engine.Recompute(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelMedium, res.PreviousRisk)
	assert.Equal(t, models.RiskLevelHigh, res.Scores.Risk)
	assert.True(t, res.AlertEmitted)
	assert.Len(t, f.store.alerts, 2)

	assert.Len(t, f.store.history, 4)
	updated := f.store.students[st.ID]
	assert.Equal(t, models.RiskLevelHigh, updated.CurrentRiskLevel)
	assert.InDelta(t, 40.0, updated.PerformanceScore, 1e-9)
	assert.Equal(t, testNow, updated.LastUpdated)
	assert.Equal(t, []string{DashboardCachePattern, DashboardCachePattern, DashboardCachePattern, DashboardCachePattern}, f.cache.patterns)
}

func TestRecomputeNewStudentWithoutActivityIsMedium(t *testing.T) {
	f := newFixture()
	st := f.store.addStudent("S-2", "Grace")

	res, err := f.engine(testNow).Recompute(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Scores.Attendance)
	assert.Equal(t, 0.0, res.Scores.Quiz)
	assert.Equal(t, 100.0, res.Scores.Assignment)
	assert.InDelta(t, 60.0, res.Scores.Overall, 1e-9)
	assert.Equal(t, models.RiskLevelMedium, res.Scores.Risk)
	assert.Empty(t, f.store.alerts)
}

func TestRecomputeIgnoresAttendanceOutsideWindow(t *testing.T) {
	f := newFixture()
	st := f.store.addStudent("S-3", "Linus")
	markAttendance(f.store, st.ID, testNow.AddDate(0, 0, -AttendanceWindowDays-1), models.AttendanceStatusAbsent)

	res, err := f.engine(testNow).Recompute(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Scores.Attendance)
}

func TestRecomputeMissingStudentIsNoop(t *testing.T) {
	f := newFixture()

	res, err := f.engine(testNow).Recompute(context.Background(), "missing")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, f.store.history)
	assert.Empty(t, f.store.alerts)
	assert.Empty(t, f.cache.patterns)
}

func TestRecomputeRollsBackOnFailure(t *testing.T) {
	f := newFixture()
	st := f.store.addStudent("S-4", "Barbara")
	f.store.addAssignment(testNow.Add(time.Hour), 10)
	markAttendance(f.store, st.ID, testNow, models.AttendanceStatusAbsent)
	f.alerts.createErr = errBoom
	engine := f.engine(testNow)

	_, err := engine.Recompute(context.Background(), st.ID)
	require.Error(t, err)
	assert.Empty(t, f.store.history)
	assert.Equal(t, models.RiskLevelLow, f.store.students[st.ID].CurrentRiskLevel)
	assert.Equal(t, models.InitialPerformanceScore, f.store.students[st.ID].PerformanceScore)
	assert.Empty(t, f.cache.patterns)

	// the transition was never committed, so the next successful run still alerts
	f.alerts.createErr = nil
	res, err := engine.Recompute(context.Background(), st.ID)
	require.NoError(t, err)
	assert.True(t, res.AlertEmitted)
	assert.Len(t, f.store.alerts, 1)
}

func TestRecomputeLockFailureSurfacesInternal(t *testing.T) {
	f := newFixture()
	f.students.lockErr = errBoom

	_, err := f.engine(testNow).Recompute(context.Background(), "any")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to recompute performance")
}

func TestPerformanceHistoryWindow(t *testing.T) {
	f := newFixture()
	st := f.store.addStudent("S-5", "Ken")
	f.store.history = []models.PerformanceHistory{
		{ID: "h1", StudentID: st.ID, CalculatedAt: testNow.AddDate(0, 0, -40)},
		{ID: "h2", StudentID: st.ID, CalculatedAt: testNow.AddDate(0, 0, -5)},
		{ID: "h3", StudentID: st.ID, CalculatedAt: testNow.AddDate(0, 0, -1)},
		{ID: "h4", StudentID: "other", CalculatedAt: testNow},
	}

	rows, err := f.engine(testNow).History(context.Background(), st.ID, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "h3", rows[0].ID)
	assert.Equal(t, "h2", rows[1].ID)

	rows, err = f.engine(testNow).History(context.Background(), st.ID, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestPerformanceHistoryUnknownStudent(t *testing.T) {
	f := newFixture()

	_, err := f.engine(testNow).History(context.Background(), "missing", 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
