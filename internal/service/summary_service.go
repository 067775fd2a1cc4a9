package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/presensia/attendance-api/internal/models"
)

type summaryLedgerReader interface {
	CountClassWorkingDays(ctx context.Context, className string, start, end time.Time) (int, error)
	CountStudentPresentDays(ctx context.Context, studentID string, start, end time.Time) (int, error)
}

type summaryStore interface {
	Upsert(ctx context.Context, summary *models.AttendanceSummary) error
	Get(ctx context.Context, studentID string, month, year int) (*models.AttendanceSummary, error)
}

// SummaryService maintains the derived monthly summaries. Recompute runs
// synchronously with the mutation that provoked it; the upsert keyed by
// (student, month, year) makes redundant concurrent recomputes harmless.
type SummaryService struct {
	ledger summaryLedgerReader
	store  summaryStore
	logger *zap.Logger
}

// NewSummaryService constructs the summary service.
func NewSummaryService(ledger summaryLedgerReader, store summaryStore, logger *zap.Logger) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryService{ledger: ledger, store: store, logger: logger}
}

// Recompute rebuilds the (student, month, year) summary from the ledger.
// present_days counts the student's distinct dates; total_days counts the
// class's observed working days in that month.
func (s *SummaryService) Recompute(ctx context.Context, studentID, className string, month, year int) (*models.AttendanceSummary, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	total, err := s.ledger.CountClassWorkingDays(ctx, className, start, end)
	if err != nil {
		return nil, err
	}
	present, err := s.ledger.CountStudentPresentDays(ctx, studentID, start, end)
	if err != nil {
		return nil, err
	}

	summary := &models.AttendanceSummary{
		StudentID:   studentID,
		Month:       month,
		Year:        year,
		TotalDays:   total,
		PresentDays: present,
		Percentage:  roundPercent(present, total),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.store.Upsert(ctx, summary); err != nil {
		return nil, err
	}

	s.logger.Debug("attendance summary recomputed",
		zap.String("student_id", studentID),
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Int("total_days", total),
		zap.Int("present_days", present),
		zap.Float64("percentage", summary.Percentage))
	return summary, nil
}

// Get returns the cached summary for (student, month, year), or nil when no
// recompute has run yet.
func (s *SummaryService) Get(ctx context.Context, studentID string, month, year int) (*models.AttendanceSummary, error) {
	return s.store.Get(ctx, studentID, month, year)
}

// roundPercent computes present*100/total rounded to 2 decimal places. An
// empty denominator always yields 0.0, never an error.
func roundPercent(present, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	return math.Round(float64(present)*100.0/float64(total)*100.0) / 100.0
}
