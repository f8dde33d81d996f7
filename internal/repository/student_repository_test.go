package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var studentRowColumns = []string{"id", "student_id", "name", "email", "enrollment_date", "current_risk_level", "performance_score", "last_updated"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("st-1", "S-001", "Ada", "ada@school.test", time.Now(), "high", 42.5, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + studentColumns + " FROM students WHERE 1=1 AND current_risk_level = $1 AND (LOWER(name) LIKE $2 OR LOWER(student_id) LIKE $2 OR LOWER(email) LIKE $2) ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WithArgs(models.RiskLevelHigh, "%ada%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1 AND current_risk_level = $1")).
		WithArgs(models.RiskLevelHigh, "%ada%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{RiskLevel: models.RiskLevelHigh, Search: "Ada"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, models.RiskLevelHigh, students[0].CurrentRiskLevel)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "S-001", "Ada", "ada@school.test", sqlmock.AnyArg(), models.RiskLevelLow, 100.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{StudentID: "S-001", Name: "Ada", Email: "ada@school.test", CurrentRiskLevel: models.RiskLevelLow, PerformanceScore: 100}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.False(t, student.EnrollmentDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByStudentIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE student_id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByStudentID(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryLockAndUpdateInTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow("st-1", "S-001", "Ada", "a@x", now, "medium", 60.0, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET performance_score = $2, current_risk_level = $3, last_updated = $4 WHERE id = $1")).
		WithArgs("st-1", 40.0, models.RiskLevelHigh, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	student, err := repo.LockByID(context.Background(), tx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelMedium, student.CurrentRiskLevel)
	require.NoError(t, repo.UpdatePerformance(context.Background(), tx, "st-1", 40, models.RiskLevelHigh, now))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByStudentID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE student_id = $1 LIMIT 1")).
		WithArgs("S-404").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByStudentID(context.Background(), "S-404")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStudentRepositoryListByRisk(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE current_risk_level = $1 ORDER BY performance_score ASC, name ASC")).
		WithArgs(models.RiskLevelMedium).
		WillReturnRows(sqlmock.NewRows(studentRowColumns))

	students, err := repo.ListByRisk(context.Background(), models.RiskLevelMedium)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestStudentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Student{StudentID: "S-001", Name: "Ada", Email: "a@x"})
	assert.ErrorIs(t, err, ErrDuplicateStudentID)
}

func TestStudentRepositoryMalformedIDReadsAsMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs("abc").
		WillReturnError(&pq.Error{Code: invalidTextRepresentation})
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("abc").
		WillReturnError(&pq.Error{Code: invalidTextRepresentation})

	_, err := repo.LockByID(context.Background(), nil, "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = repo.FindByID(context.Background(), nil, "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
