package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presensia/attendance-api/internal/models"
)

type summaryLedgerStub struct {
	workingDays map[string]int
	presentDays map[string]int
	lastStart   time.Time
	lastEnd     time.Time
}

func (s *summaryLedgerStub) CountClassWorkingDays(_ context.Context, className string, start, end time.Time) (int, error) {
	s.lastStart, s.lastEnd = start, end
	return s.workingDays[className], nil
}

func (s *summaryLedgerStub) CountStudentPresentDays(_ context.Context, studentID string, _, _ time.Time) (int, error) {
	return s.presentDays[studentID], nil
}

type summaryStoreStub struct {
	upserts []models.AttendanceSummary
}

func (s *summaryStoreStub) Upsert(_ context.Context, summary *models.AttendanceSummary) error {
	s.upserts = append(s.upserts, *summary)
	return nil
}

func (s *summaryStoreStub) Get(_ context.Context, studentID string, month, year int) (*models.AttendanceSummary, error) {
	for i := len(s.upserts) - 1; i >= 0; i-- {
		u := s.upserts[i]
		if u.StudentID == studentID && u.Month == month && u.Year == year {
			return &u, nil
		}
	}
	return nil, nil
}

func TestSummaryRecompute(t *testing.T) {
	ledger := &summaryLedgerStub{
		workingDays: map[string]int{"10-A": 20},
		presentDays: map[string]int{"s1": 15},
	}
	store := &summaryStoreStub{}
	svc := NewSummaryService(ledger, store, nil)

	summary, err := svc.Recompute(context.Background(), "s1", "10-A", 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.TotalDays)
	assert.Equal(t, 15, summary.PresentDays)
	assert.Equal(t, 75.0, summary.Percentage)
	require.Len(t, store.upserts, 1)

	// March spans the 1st through the 31st.
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), ledger.lastStart)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), ledger.lastEnd)
}

func TestSummaryRecomputeEmptyMonth(t *testing.T) {
	ledger := &summaryLedgerStub{workingDays: map[string]int{}, presentDays: map[string]int{}}
	store := &summaryStoreStub{}
	svc := NewSummaryService(ledger, store, nil)

	summary, err := svc.Recompute(context.Background(), "s1", "10-A", 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalDays)
	assert.Equal(t, 0.0, summary.Percentage)
}

func TestSummaryRecomputeIdempotent(t *testing.T) {
	ledger := &summaryLedgerStub{
		workingDays: map[string]int{"10-A": 10},
		presentDays: map[string]int{"s1": 7},
	}
	store := &summaryStoreStub{}
	svc := NewSummaryService(ledger, store, nil)

	first, err := svc.Recompute(context.Background(), "s1", "10-A", 5, 2025)
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background(), "s1", "10-A", 5, 2025)
	require.NoError(t, err)
	assert.Equal(t, first.Percentage, second.Percentage)

	stored, err := svc.Get(context.Background(), "s1", 5, 2025)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 70.0, stored.Percentage)
}

func TestRoundPercent(t *testing.T) {
	assert.Equal(t, 0.0, roundPercent(3, 0))
	assert.Equal(t, 100.0, roundPercent(20, 20))
	assert.Equal(t, 33.33, roundPercent(1, 3))
	assert.Equal(t, 66.67, roundPercent(2, 3))
}
