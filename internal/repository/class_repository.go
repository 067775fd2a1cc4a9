package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/presensia/attendance-api/internal/models"
)

// ClassRepository provides read-only lookups against the class directory.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByName resolves a class section by its unique name.
func (r *ClassRepository) FindByName(ctx context.Context, name string) (*models.ClassSection, error) {
	query := `SELECT id, name, required_attendance_percentage, is_active FROM classes WHERE name = $1`
	var class models.ClassSection
	if err := r.db.GetContext(ctx, &class, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find class by name: %w", err)
	}
	return &class, nil
}

// RequiredPercentage returns the class threshold, or fallback when the class
// is unknown or has no threshold of its own.
func (r *ClassRepository) RequiredPercentage(ctx context.Context, name string, fallback float64) (float64, error) {
	class, err := r.FindByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if class == nil || class.RequiredPercentage == nil {
		return fallback, nil
	}
	return *class.RequiredPercentage, nil
}
