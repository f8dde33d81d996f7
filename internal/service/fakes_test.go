package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	"github.com/noah-isme/sma-risk-monitor/internal/models"
)

// memStore is an in-memory stand-in for the PostgreSQL schema. fakeTransactor snapshots it
// before each transaction and restores the snapshot when the callback fails.
type memStore struct {
	mu             sync.Mutex
	seq            int
	students       map[string]models.Student
	attendance     map[string]models.AttendanceRecord
	quizzes        map[string]models.Quiz
	quizSubs       map[string]models.QuizSubmission
	assignments    map[string]models.Assignment
	assignmentSubs map[string]models.AssignmentSubmission
	history        []models.PerformanceHistory
	alerts         []models.Alert
}

func newMemStore() *memStore {
	return &memStore{
		students:       map[string]models.Student{},
		attendance:     map[string]models.AttendanceRecord{},
		quizzes:        map[string]models.Quiz{},
		quizSubs:       map[string]models.QuizSubmission{},
		assignments:    map[string]models.Assignment{},
		assignmentSubs: map[string]models.AssignmentSubmission{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) snapshot() *memStore {
	cp := newMemStore()
	cp.seq = m.seq
	for k, v := range m.students {
		cp.students[k] = v
	}
	for k, v := range m.attendance {
		cp.attendance[k] = v
	}
	for k, v := range m.quizzes {
		cp.quizzes[k] = v
	}
	for k, v := range m.quizSubs {
		cp.quizSubs[k] = v
	}
	for k, v := range m.assignments {
		cp.assignments[k] = v
	}
	for k, v := range m.assignmentSubs {
		cp.assignmentSubs[k] = v
	}
	cp.history = append([]models.PerformanceHistory(nil), m.history...)
	cp.alerts = append([]models.Alert(nil), m.alerts...)
	return cp
}

func (m *memStore) restore(from *memStore) {
	m.seq = from.seq
	m.students = from.students
	m.attendance = from.attendance
	m.quizzes = from.quizzes
	m.quizSubs = from.quizSubs
	m.assignments = from.assignments
	m.assignmentSubs = from.assignmentSubs
	m.history = from.history
	m.alerts = from.alerts
}

func (m *memStore) addStudent(studentID, name string) models.Student {
	st := models.Student{
		ID:               m.nextID("stu"),
		StudentID:        studentID,
		Name:             name,
		Email:            studentID + "@school.test",
		CurrentRiskLevel: models.RiskLevelLow,
		PerformanceScore: models.InitialPerformanceScore,
	}
	m.students[st.ID] = st
	return st
}

func (m *memStore) addQuiz(total int) models.Quiz {
	q := models.Quiz{ID: m.nextID("quiz"), Title: "Quiz", TotalQuestions: total, IsActive: true}
	m.quizzes[q.ID] = q
	return q
}

func (m *memStore) addAssignment(due time.Time, points float64) models.Assignment {
	a := models.Assignment{ID: m.nextID("asg"), Title: "Essay", DueDate: due, TotalPoints: points, IsActive: true}
	m.assignments[a.ID] = a
	return a
}

func subKey(studentID, itemID string) string {
	return studentID + "|" + itemID
}

type fakeTransactor struct {
	store *memStore
	calls int
}

func (f *fakeTransactor) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	f.calls++
	f.store.mu.Lock()
	before := f.store.snapshot()
	f.store.mu.Unlock()
	if err := fn(nil); err != nil {
		f.store.mu.Lock()
		f.store.restore(before)
		f.store.mu.Unlock()
		return err
	}
	return nil
}

type fakeStudentRepo struct {
	store     *memStore
	lockErr   error
	updateErr error
	createErr error
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, st := range f.store.students {
		if filter.RiskLevel != "" && st.CurrentRiskLevel != filter.RiskLevel {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	st, ok := f.store.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (f *fakeStudentRepo) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return f.FindByID(ctx, exec, id)
}

func (f *fakeStudentRepo) FindByStudentID(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.Student, error) {
	for _, st := range f.store.students {
		if st.StudentID == studentID {
			st := st
			return &st, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	_, err := f.FindByStudentID(ctx, nil, studentID)
	return err == nil, nil
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if f.createErr != nil {
		return f.createErr
	}
	student.ID = f.store.nextID("stu")
	f.store.students[student.ID] = *student
	return nil
}

func (f *fakeStudentRepo) UpdatePerformance(ctx context.Context, exec sqlx.ExtContext, id string, score float64, risk models.RiskLevel, at time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	st, ok := f.store.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	st.PerformanceScore = score
	st.CurrentRiskLevel = risk
	st.LastUpdated = at
	f.store.students[id] = st
	return nil
}

func (f *fakeStudentRepo) ListByRisk(ctx context.Context, risk models.RiskLevel) ([]models.Student, error) {
	var out []models.Student
	for _, st := range f.store.students {
		if risk == "" || st.CurrentRiskLevel == risk {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PerformanceScore < out[j].PerformanceScore })
	return out, nil
}

type fakeAttendanceRepo struct {
	store *memStore
	err   error
}

func (f *fakeAttendanceRepo) Upsert(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	if f.err != nil {
		return f.err
	}
	key := subKey(record.StudentID, record.Date)
	if existing, ok := f.store.attendance[key]; ok {
		record.ID = existing.ID
	} else {
		record.ID = f.store.nextID("att")
	}
	f.store.attendance[key] = *record
	return nil
}

func (f *fakeAttendanceRepo) ListSince(ctx context.Context, studentID string, since time.Time) ([]models.AttendanceRecord, error) {
	cutoff := since.Format(models.AttendanceDateLayout)
	var out []models.AttendanceRecord
	for _, rec := range f.store.attendance {
		if rec.StudentID == studentID && rec.Date >= cutoff {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (f *fakeAttendanceRepo) TallySince(ctx context.Context, exec sqlx.ExtContext, studentID string, since time.Time) (models.AttendanceTally, error) {
	records, _ := f.ListSince(ctx, studentID, since)
	var t models.AttendanceTally
	for _, rec := range records {
		t.Total++
		switch rec.Status {
		case models.AttendanceStatusPresent:
			t.Present++
		case models.AttendanceStatusLate:
			t.Late++
		case models.AttendanceStatusAbsent:
			t.Absent++
		}
	}
	return t, nil
}

type fakeQuizRepo struct {
	store *memStore
}

func (f *fakeQuizRepo) Create(ctx context.Context, quiz *models.Quiz) error {
	quiz.ID = f.store.nextID("quiz")
	f.store.quizzes[quiz.ID] = *quiz
	return nil
}

func (f *fakeQuizRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Quiz, error) {
	q, ok := f.store.quizzes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &q, nil
}

func (f *fakeQuizRepo) ListActive(ctx context.Context) ([]models.Quiz, error) {
	var out []models.Quiz
	for _, q := range f.store.quizzes {
		if q.IsActive {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuizRepo) Deactivate(ctx context.Context, id string) error {
	q, ok := f.store.quizzes[id]
	if !ok {
		return sql.ErrNoRows
	}
	q.IsActive = false
	f.store.quizzes[id] = q
	return nil
}

func (f *fakeQuizRepo) SaveBestSubmission(ctx context.Context, exec sqlx.ExtContext, sub *models.QuizSubmission) (bool, error) {
	key := subKey(sub.StudentID, sub.QuizID)
	if existing, ok := f.store.quizSubs[key]; ok && existing.Score >= sub.Score {
		return false, nil
	}
	sub.ID = f.store.nextID("qs")
	f.store.quizSubs[key] = *sub
	return true, nil
}

func (f *fakeQuizRepo) ListByStudent(ctx context.Context, studentID string) ([]models.QuizSubmissionDetail, error) {
	var out []models.QuizSubmissionDetail
	for _, sub := range f.store.quizSubs {
		if sub.StudentID == studentID {
			out = append(out, models.QuizSubmissionDetail{QuizSubmission: sub, QuizTitle: f.store.quizzes[sub.QuizID].Title})
		}
	}
	return out, nil
}

func (f *fakeQuizRepo) Tally(ctx context.Context, exec sqlx.ExtContext, studentID string) (models.QuizTally, error) {
	var (
		t   models.QuizTally
		sum float64
	)
	for _, sub := range f.store.quizSubs {
		if sub.StudentID != studentID {
			continue
		}
		t.Count++
		sum += sub.Accuracy
		if sub.Accuracy > t.BestAccuracy {
			t.BestAccuracy = sub.Accuracy
		}
	}
	if t.Count > 0 {
		t.MeanAccuracy = sum / float64(t.Count)
	}
	return t, nil
}

type fakeAssignmentRepo struct {
	store *memStore
	// insertConflict simulates a concurrent submission landing between the exists check and the insert.
	insertConflict bool
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.ID = f.store.nextID("asg")
	f.store.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Assignment, error) {
	a, ok := f.store.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (f *fakeAssignmentRepo) ListActive(ctx context.Context) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range f.store.assignments {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) Deactivate(ctx context.Context, id string) error {
	a, ok := f.store.assignments[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.IsActive = false
	f.store.assignments[id] = a
	return nil
}

func (f *fakeAssignmentRepo) SubmissionExists(ctx context.Context, exec sqlx.ExtContext, studentID, assignmentID string) (bool, error) {
	_, ok := f.store.assignmentSubs[subKey(studentID, assignmentID)]
	return ok, nil
}

func (f *fakeAssignmentRepo) InsertSubmission(ctx context.Context, exec sqlx.ExtContext, sub *models.AssignmentSubmission) (bool, error) {
	key := subKey(sub.StudentID, sub.AssignmentID)
	if _, ok := f.store.assignmentSubs[key]; ok || f.insertConflict {
		return false, nil
	}
	sub.ID = f.store.nextID("as")
	f.store.assignmentSubs[key] = *sub
	return true, nil
}

func (f *fakeAssignmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.AssignmentSubmissionDetail, error) {
	var out []models.AssignmentSubmissionDetail
	for _, sub := range f.store.assignmentSubs {
		if sub.StudentID == studentID {
			a := f.store.assignments[sub.AssignmentID]
			out = append(out, models.AssignmentSubmissionDetail{AssignmentSubmission: sub, AssignmentTitle: a.Title, DueDate: a.DueDate})
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) Tally(ctx context.Context, exec sqlx.ExtContext, studentID string) (models.AssignmentTally, error) {
	var (
		t   models.AssignmentTally
		sum float64
	)
	for _, a := range f.store.assignments {
		if a.IsActive {
			t.ActiveAssignments++
		}
	}
	for _, sub := range f.store.assignmentSubs {
		if sub.StudentID != studentID {
			continue
		}
		t.Submissions++
		if !sub.IsLate {
			t.OnTime++
		}
		sum += sub.Score / sub.TotalPoints * 100
	}
	if t.Submissions > 0 {
		t.MeanPercent = sum / float64(t.Submissions)
	}
	return t, nil
}

type fakeHistoryRepo struct {
	store *memStore
}

func (f *fakeHistoryRepo) Insert(ctx context.Context, exec sqlx.ExtContext, entry *models.PerformanceHistory) error {
	entry.ID = f.store.nextID("hist")
	f.store.history = append(f.store.history, *entry)
	return nil
}

func (f *fakeHistoryRepo) ListSince(ctx context.Context, studentID string, since time.Time) ([]models.PerformanceHistory, error) {
	var out []models.PerformanceHistory
	for i := len(f.store.history) - 1; i >= 0; i-- {
		h := f.store.history[i]
		if h.StudentID == studentID && !h.CalculatedAt.Before(since) {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeAlertRepo struct {
	store     *memStore
	createErr error
}

func (f *fakeAlertRepo) Create(ctx context.Context, exec sqlx.ExtContext, alert *models.Alert) error {
	if f.createErr != nil {
		return f.createErr
	}
	alert.ID = f.store.nextID("alert")
	f.store.alerts = append(f.store.alerts, *alert)
	return nil
}

func (f *fakeAlertRepo) List(ctx context.Context, unreadOnly bool, limit int) ([]models.Alert, error) {
	var out []models.Alert
	for i := len(f.store.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		a := f.store.alerts[i]
		if unreadOnly && a.IsRead {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAlertRepo) MarkRead(ctx context.Context, id string) error {
	for i := range f.store.alerts {
		if f.store.alerts[i].ID == id {
			f.store.alerts[i].IsRead = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeAlertRepo) MarkAllRead(ctx context.Context) (int64, error) {
	var n int64
	for i := range f.store.alerts {
		if !f.store.alerts[i].IsRead {
			f.store.alerts[i].IsRead = true
			n++
		}
	}
	return n, nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []string
	err       error
}

func (f *fakeScheduler) Schedule(ctx context.Context, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, studentID)
	return nil
}

type fakeInvalidator struct {
	patterns []string
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, pattern string) {
	f.patterns = append(f.patterns, pattern)
}

type fakeDashboardRepo struct {
	stats *dto.DashboardStats
	calls int
	err   error
}

func (f *fakeDashboardRepo) Stats(ctx context.Context) (*dto.DashboardStats, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	stats := *f.stats
	return &stats, nil
}

var errBoom = errors.New("boom")

// fixture wires every service onto one memStore.
type fixture struct {
	store       *memStore
	tx          *fakeTransactor
	students    *fakeStudentRepo
	attendance  *fakeAttendanceRepo
	quizzes     *fakeQuizRepo
	assignments *fakeAssignmentRepo
	history     *fakeHistoryRepo
	alerts      *fakeAlertRepo
	scheduler   *fakeScheduler
	cache       *fakeInvalidator
}

func newFixture() *fixture {
	store := newMemStore()
	return &fixture{
		store:       store,
		tx:          &fakeTransactor{store: store},
		students:    &fakeStudentRepo{store: store},
		attendance:  &fakeAttendanceRepo{store: store},
		quizzes:     &fakeQuizRepo{store: store},
		assignments: &fakeAssignmentRepo{store: store},
		history:     &fakeHistoryRepo{store: store},
		alerts:      &fakeAlertRepo{store: store},
		scheduler:   &fakeScheduler{},
		cache:       &fakeInvalidator{},
	}
}

func (f *fixture) engine(now time.Time) *PerformanceService {
	svc := NewPerformanceService(PerformanceDeps{
		Tx:          f.tx,
		Students:    f.students,
		Attendance:  f.attendance,
		Quizzes:     f.quizzes,
		Assignments: f.assignments,
		History:     f.history,
		Alerts:      f.alerts,
		Cache:       f.cache,
	})
	svc.now = func() time.Time { return now }
	return svc
}
