package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presensia/attendance-api/internal/models"
)

func TestSummaryRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSummaryRepository(db)

	mock.ExpectExec("INSERT INTO attendance_summary").
		WithArgs("s1", 3, 2025, 20, 15, 75.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.AttendanceSummary{
		StudentID: "s1", Month: 3, Year: 2025, TotalDays: 20, PresentDays: 15, Percentage: 75.0,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSummaryRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "month", "year", "total_days", "present_days", "percentage", "updated_at"}).
		AddRow("s1", 3, 2025, 20, 15, 75.0, time.Now())
	mock.ExpectQuery("SELECT student_id, month, year, total_days, present_days, percentage, updated_at").
		WithArgs("s1", 3, 2025).
		WillReturnRows(rows)

	summary, err := repo.Get(context.Background(), "s1", 3, 2025)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 75.0, summary.Percentage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSummaryRepository(db)

	mock.ExpectQuery("SELECT student_id, month, year, total_days, present_days, percentage, updated_at").
		WithArgs("s1", 1, 2025).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}))

	summary, err := repo.Get(context.Background(), "s1", 1, 2025)
	require.NoError(t, err)
	assert.Nil(t, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryRequiredPercentage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "required_attendance_percentage", "is_active"}).
		AddRow("c1", "10-A", 80.0, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, required_attendance_percentage, is_active FROM classes WHERE name = $1")).
		WithArgs("10-A").
		WillReturnRows(rows)

	required, err := repo.RequiredPercentage(context.Background(), "10-A", 75.0)
	require.NoError(t, err)
	assert.Equal(t, 80.0, required)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, required_attendance_percentage, is_active FROM classes WHERE name = $1")).
		WithArgs("10-Z").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	required, err = repo.RequiredPercentage(context.Background(), "10-Z", 75.0)
	require.NoError(t, err)
	assert.Equal(t, 75.0, required)
	assert.NoError(t, mock.ExpectationsWereMet())
}
