package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/presensia/attendance-api/internal/models"
)

// SummaryRepository owns the attendance_summary cache table. Rows are only
// written through Upsert; the (student_id, month, year) constraint makes
// concurrent recomputes of the same key collapse into last-write-wins updates
// instead of racing inserts.
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository constructs the repository.
func NewSummaryRepository(db *sqlx.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert inserts or replaces the summary row for (student, month, year).
func (r *SummaryRepository) Upsert(ctx context.Context, summary *models.AttendanceSummary) error {
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = time.Now().UTC()
	}
	query := `INSERT INTO attendance_summary (student_id, month, year, total_days, present_days, percentage, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (student_id, month, year)
DO UPDATE SET total_days = EXCLUDED.total_days,
              present_days = EXCLUDED.present_days,
              percentage = EXCLUDED.percentage,
              updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query,
		summary.StudentID, summary.Month, summary.Year,
		summary.TotalDays, summary.PresentDays, summary.Percentage, summary.UpdatedAt); err != nil {
		return fmt.Errorf("upsert attendance summary: %w", err)
	}
	return nil
}

// Get returns the summary for (student, month, year), or nil when absent.
func (r *SummaryRepository) Get(ctx context.Context, studentID string, month, year int) (*models.AttendanceSummary, error) {
	query := `SELECT student_id, month, year, total_days, present_days, percentage, updated_at
FROM attendance_summary
WHERE student_id = $1 AND month = $2 AND year = $3`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID, month, year); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get attendance summary: %w", err)
	}
	return &summary, nil
}
