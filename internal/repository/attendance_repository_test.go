package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presensia/attendance-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceRows(id string, date time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "student_name", "roll_no", "class_name", "date", "time", "marked_by", "created_at"}).
		AddRow(id, "s1", "Alice", "10A01", "10-A", date, "08:30:00", "t1", time.Now())
}

func TestAttendanceRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnRows(attendanceRows("r1", date))

	stored, inserted, err := repo.Insert(context.Background(), &models.AttendanceRecord{
		StudentID: "s1", StudentName: "Alice", RollNo: "10A01", ClassName: "10-A",
		Date: date, Time: "08:30:00", MarkedBy: "t1",
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "r1", stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	// ON CONFLICT DO NOTHING returns no rows for the duplicate day.
	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	stored, inserted, err := repo.Insert(context.Background(), &models.AttendanceRecord{
		StudentID: "s1", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Nil(t, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, student_name, roll_no, class_name, date, time, marked_by, created_at FROM attendance WHERE id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	record, err := repo.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance WHERE id = $1")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.Delete(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance WHERE id = $1")).
		WithArgs("r2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err = repo.Delete(context.Background(), "r2")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, student_name, roll_no, class_name, date, time, marked_by, created_at FROM attendance WHERE 1=1 AND class_name = $1 AND date = $2 ORDER BY date DESC, time DESC LIMIT 20 OFFSET 0")).
		WithArgs("10-A", date).
		WillReturnRows(attendanceRows("r1", date))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance WHERE 1=1 AND class_name = $1 AND date = $2")).
		WithArgs("10-A", date).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, total, err := repo.List(context.Background(), models.AttendanceFilter{ClassName: "10-A", Date: &date})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountClassWorkingDays(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT date) FROM attendance WHERE class_name = $1 AND date BETWEEN $2 AND $3")).
		WithArgs("10-A", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(20))

	count, err := repo.CountClassWorkingDays(context.Background(), "10-A", start, end)
	require.NoError(t, err)
	assert.Equal(t, 20, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryAbsentStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "roll_no", "class", "qr_uuid", "is_active", "email", "mobile"}).
		AddRow("s2", nil, "Bob", "10A02", "10-A", "qr-2", true, nil, nil)
	mock.ExpectQuery("SELECT s.id, s.user_id, s.name, s.roll_no, s.class, s.qr_uuid, s.is_active, u.email, u.mobile").
		WithArgs("10-A", date).
		WillReturnRows(rows)

	absent, err := repo.AbsentStudents(context.Background(), "10-A", date)
	require.NoError(t, err)
	require.Len(t, absent, 1)
	assert.Equal(t, "10A02", absent[0].RollNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryPresenceByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"student_id", "name", "roll_no", "present_days"}).
		AddRow("s1", "Alice", "10A01", 15).
		AddRow("s2", "Bob", "10A02", 0)
	mock.ExpectQuery("SELECT s.id AS student_id, s.name, s.roll_no, COUNT").
		WithArgs("10-A", start, end).
		WillReturnRows(rows)

	presence, err := repo.PresenceByStudent(context.Background(), "10-A", start, end)
	require.NoError(t, err)
	require.Len(t, presence, 2)
	assert.Equal(t, 15, presence[0].PresentDays)
	assert.Equal(t, 0, presence[1].PresentDays)
	assert.NoError(t, mock.ExpectationsWereMet())
}
