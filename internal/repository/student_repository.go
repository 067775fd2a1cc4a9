package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/presensia/attendance-api/internal/models"
)

// StudentRepository provides read-only lookups against the student directory.
// Student records are owned by the roster management side; the ledger only
// resolves them.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.user_id, s.name, s.roll_no, s.class, s.qr_uuid, s.is_active, u.email, u.mobile`

// FindByQRUUID resolves a student from the opaque QR reference.
func (r *StudentRepository) FindByQRUUID(ctx context.Context, qrUUID string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + `
FROM students s
LEFT JOIN users u ON s.user_id = u.id
WHERE s.qr_uuid = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, qrUUID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student by qr uuid: %w", err)
	}
	return &student, nil
}

// FindByRollNo resolves a student by its unique roll number.
func (r *StudentRepository) FindByRollNo(ctx context.Context, rollNo string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + `
FROM students s
LEFT JOIN users u ON s.user_id = u.id
WHERE s.roll_no = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, rollNo); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student by roll no: %w", err)
	}
	return &student, nil
}

// FindByID resolves a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + `
FROM students s
LEFT JOIN users u ON s.user_id = u.id
WHERE s.id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// CountActiveByClass counts active students currently assigned to the class.
func (r *StudentRepository) CountActiveByClass(ctx context.Context, className string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM students WHERE class = $1 AND is_active = TRUE`, className); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}
