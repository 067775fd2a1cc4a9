package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/presensia/attendance-api/internal/models"
)

// AttendanceRepository owns the attendance ledger. The (student_id, date)
// uniqueness constraint lives in the database; duplicate detection happens at
// commit time, never as a separate read.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = "id, student_id, student_name, roll_no, class_name, date, time, marked_by, created_at"

// Insert persists a presence event. The insert and the duplicate check are a
// single atomic statement: ON CONFLICT DO NOTHING plus RETURNING yields
// sql.ErrNoRows when a row for (student_id, date) already exists, in which
// case Insert reports inserted=false and leaves the existing row untouched.
func (r *AttendanceRepository) Insert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO attendance (id, student_id, student_name, roll_no, class_name, date, time, marked_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, date) DO NOTHING
RETURNING ` + attendanceColumns
	var stored models.AttendanceRecord
	err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.StudentID, record.StudentName, record.RollNo,
		record.ClassName, record.Date, record.Time, record.MarkedBy, record.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("insert attendance: %w", err)
	}
	return &stored, true, nil
}

// FindByStudentAndDate returns the record for a student on a given date.
func (r *AttendanceRepository) FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE student_id = $1 AND date = $2`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance by student and date: %w", err)
	}
	return &record, nil
}

// FindByID returns a single ledger row.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE id = $1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance by id: %w", err)
	}
	return &record, nil
}

// Delete removes a ledger row and reports whether one existed.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete attendance rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns ledger rows matching the filter, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassName != "" {
		where = append(where, fmt.Sprintf("class_name = $%d", len(args)+1))
		args = append(args, filter.ClassName)
	}
	if filter.RollNo != "" {
		where = append(where, fmt.Sprintf("roll_no = $%d", len(args)+1))
		args = append(args, filter.RollNo)
	}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	} else {
		if filter.StartDate != nil {
			where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
			args = append(args, *filter.StartDate)
		}
		if filter.EndDate != nil {
			where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
			args = append(args, *filter.EndDate)
		}
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE %s ORDER BY date DESC, time DESC LIMIT %d OFFSET %d`,
		attendanceColumns, whereClause, size, offset)
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// ListByRollNo returns a student's records within an inclusive range, newest
// first.
func (r *AttendanceRepository) ListByRollNo(ctx context.Context, rollNo string, start, end time.Time) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + `
FROM attendance
WHERE roll_no = $1 AND date BETWEEN $2 AND $3
ORDER BY date DESC, time DESC`
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, rollNo, start, end); err != nil {
		return nil, fmt.Errorf("list attendance by roll no: %w", err)
	}
	return rows, nil
}

// CountClassWorkingDays counts distinct dates in the inclusive range on which
// any student of the class has a record: the observed working days.
func (r *AttendanceRepository) CountClassWorkingDays(ctx context.Context, className string, start, end time.Time) (int, error) {
	query := `SELECT COUNT(DISTINCT date) FROM attendance WHERE class_name = $1 AND date BETWEEN $2 AND $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, className, start, end); err != nil {
		return 0, fmt.Errorf("count class working days: %w", err)
	}
	return count, nil
}

// CountStudentPresentDays counts distinct dates in the inclusive range on
// which the student has a record.
func (r *AttendanceRepository) CountStudentPresentDays(ctx context.Context, studentID string, start, end time.Time) (int, error) {
	query := `SELECT COUNT(DISTINCT date) FROM attendance WHERE student_id = $1 AND date BETWEEN $2 AND $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, start, end); err != nil {
		return 0, fmt.Errorf("count student present days: %w", err)
	}
	return count, nil
}

// CountPresentStudents counts distinct students of a class with a record on
// the given date.
func (r *AttendanceRepository) CountPresentStudents(ctx context.Context, className string, date time.Time) (int, error) {
	query := `SELECT COUNT(DISTINCT student_id) FROM attendance WHERE class_name = $1 AND date = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, className, date); err != nil {
		return 0, fmt.Errorf("count present students: %w", err)
	}
	return count, nil
}

// AbsentStudents returns active students of the class with no record on the
// date, ordered by roll number.
func (r *AttendanceRepository) AbsentStudents(ctx context.Context, className string, date time.Time) ([]models.Student, error) {
	query := `SELECT s.id, s.user_id, s.name, s.roll_no, s.class, s.qr_uuid, s.is_active, u.email, u.mobile
FROM students s
LEFT JOIN users u ON s.user_id = u.id
WHERE s.class = $1 AND s.is_active = TRUE
  AND s.id NOT IN (
      SELECT student_id FROM attendance WHERE class_name = $1 AND date = $2
  )
ORDER BY s.roll_no`
	var rows []models.Student
	if err := r.db.SelectContext(ctx, &rows, query, className, date); err != nil {
		return nil, fmt.Errorf("list absent students: %w", err)
	}
	return rows, nil
}

// PresenceByStudent returns, for every active student of the class, the count
// of distinct dates with a record inside the inclusive range. Students with no
// records appear with zero present days.
func (r *AttendanceRepository) PresenceByStudent(ctx context.Context, className string, start, end time.Time) ([]models.StudentPresence, error) {
	query := `SELECT s.id AS student_id, s.name, s.roll_no, COUNT(DISTINCT a.date) AS present_days
FROM students s
LEFT JOIN attendance a ON a.student_id = s.id AND a.date BETWEEN $2 AND $3
WHERE s.class = $1 AND s.is_active = TRUE
GROUP BY s.id, s.name, s.roll_no
ORDER BY s.roll_no`
	var rows []models.StudentPresence
	if err := r.db.SelectContext(ctx, &rows, query, className, start, end); err != nil {
		return nil, fmt.Errorf("presence by student: %w", err)
	}
	return rows, nil
}
