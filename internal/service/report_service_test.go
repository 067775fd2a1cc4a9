package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presensia/attendance-api/internal/models"
	appErrors "github.com/presensia/attendance-api/pkg/errors"
)

type reportLedgerStub struct {
	workingDays int
	presentDays map[string]int
	presentOn   int
	absent      []models.Student
	presence    []models.StudentPresence
	history     []models.AttendanceRecord
}

func (s *reportLedgerStub) CountClassWorkingDays(_ context.Context, _ string, _, _ time.Time) (int, error) {
	return s.workingDays, nil
}

func (s *reportLedgerStub) CountStudentPresentDays(_ context.Context, studentID string, _, _ time.Time) (int, error) {
	return s.presentDays[studentID], nil
}

func (s *reportLedgerStub) CountPresentStudents(_ context.Context, _ string, _ time.Time) (int, error) {
	return s.presentOn, nil
}

func (s *reportLedgerStub) AbsentStudents(_ context.Context, _ string, _ time.Time) ([]models.Student, error) {
	return s.absent, nil
}

func (s *reportLedgerStub) PresenceByStudent(_ context.Context, _ string, _, _ time.Time) ([]models.StudentPresence, error) {
	return s.presence, nil
}

func (s *reportLedgerStub) ListByRollNo(_ context.Context, _ string, _, _ time.Time) ([]models.AttendanceRecord, error) {
	return s.history, nil
}

type directoryStub struct {
	byRoll map[string]*models.Student
	active int
}

func (s *directoryStub) FindByRollNo(_ context.Context, rollNo string) (*models.Student, error) {
	return s.byRoll[rollNo], nil
}

func (s *directoryStub) CountActiveByClass(_ context.Context, _ string) (int, error) {
	return s.active, nil
}

type reportCacheStub struct {
	entries map[string][]byte
}

func newReportCacheStub() *reportCacheStub {
	return &reportCacheStub{entries: map[string][]byte{}}
}

func (c *reportCacheStub) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *reportCacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func reportFixture(ledger *reportLedgerStub, directory *directoryStub) *ReportService {
	svc := NewReportService(ledger, directory, &thresholdStub{}, nil, nil, ReportConfig{
		DefaultRequiredPercentage: 75.0,
		HistoryEpoch:              time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestStudentPercentageSufficient(t *testing.T) {
	student := activeStudent()
	svc := reportFixture(
		&reportLedgerStub{workingDays: 20, presentDays: map[string]int{"s1": 15}},
		&directoryStub{byRoll: map[string]*models.Student{"10A01": student}},
	)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.StudentPercentage(context.Background(), models.AdminActor("a1"), "10A01", start, end)
	require.NoError(t, err)

	assert.Equal(t, 75.0, report.Statistics.AttendancePercentage)
	assert.Equal(t, StatusSufficient, report.Statistics.Status)
	assert.Equal(t, 5, report.Statistics.AbsentDays)
	assert.Equal(t, "2025-03-01", report.Period.StartDate)
}

func TestStudentPercentageInsufficient(t *testing.T) {
	student := activeStudent()
	svc := reportFixture(
		&reportLedgerStub{workingDays: 20, presentDays: map[string]int{"s1": 14}},
		&directoryStub{byRoll: map[string]*models.Student{"10A01": student}},
	)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.StudentPercentage(context.Background(), models.AdminActor("a1"), "10A01", start, end)
	require.NoError(t, err)
	assert.Equal(t, 70.0, report.Statistics.AttendancePercentage)
	assert.Equal(t, StatusInsufficient, report.Statistics.Status)
}

func TestStudentPercentageInvertedRange(t *testing.T) {
	svc := reportFixture(&reportLedgerStub{}, &directoryStub{})

	start := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.StudentPercentage(context.Background(), models.AdminActor("a1"), "10A01", start, end)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestStudentPercentageSelfAccess(t *testing.T) {
	student := activeStudent()
	svc := reportFixture(
		&reportLedgerStub{workingDays: 10, presentDays: map[string]int{"s1": 8}},
		&directoryStub{byRoll: map[string]*models.Student{"10A01": student}},
	)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	_, err := svc.StudentPercentage(context.Background(), models.StudentActor("u3", "10A01"), "10A01", start, end)
	assert.NoError(t, err)

	_, err = svc.StudentPercentage(context.Background(), models.StudentActor("u4", "10A02"), "10A01", start, end)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotSelf))
}

func TestClassPercentageAverages(t *testing.T) {
	svc := reportFixture(
		&reportLedgerStub{
			workingDays: 10,
			presence: []models.StudentPresence{
				{StudentID: "s1", Name: "Alice", RollNo: "10A01", PresentDays: 10},
				{StudentID: "s2", Name: "Bob", RollNo: "10A02", PresentDays: 5},
			},
		},
		&directoryStub{active: 2},
	)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.ClassPercentage(context.Background(), models.TeacherActor("t1", "10-A"), "10-A", start, end)
	require.NoError(t, err)

	require.Len(t, report.Students, 2)
	assert.Equal(t, 100.0, report.Students[0].Percentage)
	assert.Equal(t, 50.0, report.Students[1].Percentage)
	assert.Equal(t, 5, report.Students[1].AbsentDays)
	assert.Equal(t, 75.0, report.Statistics.AveragePercentage)
	assert.Equal(t, 10, report.Statistics.TotalWorkingDays)
}

func TestClassPercentageAveragesUnroundedValues(t *testing.T) {
	// 1/7 and 3/7 display as 14.29 and 42.86, but the mean comes from the
	// exact values: 28.57, not the 28.58 that averaging the rounded pair
	// would give.
	svc := reportFixture(
		&reportLedgerStub{
			workingDays: 7,
			presence: []models.StudentPresence{
				{StudentID: "s1", Name: "Alice", RollNo: "10A01", PresentDays: 1},
				{StudentID: "s2", Name: "Bob", RollNo: "10A02", PresentDays: 3},
			},
		},
		&directoryStub{active: 2},
	)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.ClassPercentage(context.Background(), models.AdminActor("a1"), "10-A", start, end)
	require.NoError(t, err)

	require.Len(t, report.Students, 2)
	assert.Equal(t, 14.29, report.Students[0].Percentage)
	assert.Equal(t, 42.86, report.Students[1].Percentage)
	assert.Equal(t, 28.57, report.Statistics.AveragePercentage)
}

func TestClassPercentageEmptyClass(t *testing.T) {
	svc := reportFixture(&reportLedgerStub{}, &directoryStub{})

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	report, err := svc.ClassPercentage(context.Background(), models.AdminActor("a1"), "10-Z", start, end)
	require.NoError(t, err)
	assert.Empty(t, report.Students)
	assert.Equal(t, 0.0, report.Statistics.AveragePercentage)
}

func TestDailyClassSummaryCounts(t *testing.T) {
	svc := reportFixture(
		&reportLedgerStub{presentOn: 18},
		&directoryStub{active: 20},
	)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	summary, err := svc.DailyClassSummary(context.Background(), models.TeacherActor("t1", "10-A"), "10-A", date)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.TotalStudents)
	assert.Equal(t, 18, summary.Present)
	assert.Equal(t, 2, summary.Absent)
	assert.Equal(t, 90.0, summary.AttendancePercentage)
}

func TestDailyClassSummaryAbsentNeverNegative(t *testing.T) {
	// Deactivated students can leave more records than active members.
	svc := reportFixture(
		&reportLedgerStub{presentOn: 5},
		&directoryStub{active: 3},
	)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	summary, err := svc.DailyClassSummary(context.Background(), models.AdminActor("a1"), "10-A", date)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Absent)
}

func TestDailyClassSummaryCacheAndQueryMetrics(t *testing.T) {
	svc := NewReportService(
		&reportLedgerStub{presentOn: 18},
		&directoryStub{active: 20},
		&thresholdStub{}, nil, newReportCacheStub(),
		ReportConfig{DefaultRequiredPercentage: 75.0}, nil)
	metrics := NewMetricsService()
	svc.AttachMetrics(metrics)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	first, err := svc.DailyClassSummary(context.Background(), models.AdminActor("a1"), "10-A", date)
	require.NoError(t, err)
	second, err := svc.DailyClassSummary(context.Background(), models.AdminActor("a1"), "10-A", date)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	// Only the uncached call reaches the ledger.
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.dbQueryDuration))
}

func TestDailyClassSummaryWrongClassTeacher(t *testing.T) {
	svc := reportFixture(&reportLedgerStub{}, &directoryStub{})

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.DailyClassSummary(context.Background(), models.TeacherActor("t1", "10-A"), "10-B", date)
	assert.True(t, appErrors.Is(err, appErrors.ErrWrongClass))
}

func TestAbsentListEmptyClass(t *testing.T) {
	svc := reportFixture(&reportLedgerStub{}, &directoryStub{})

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	list, err := svc.AbsentList(context.Background(), models.AdminActor("a1"), "10-Z", date)
	require.NoError(t, err)
	assert.Equal(t, 0, list.TotalAbsent)
	assert.NotNil(t, list.AbsentStudents)
}

func TestSelfHistoryPeriods(t *testing.T) {
	svc := reportFixture(&reportLedgerStub{}, &directoryStub{})

	cases := []struct {
		period string
		start  string
	}{
		{PeriodWeek, "2025-03-03"},
		{PeriodMonth, "2025-02-08"},
		{PeriodYear, "2024-03-10"},
		{PeriodAll, "2000-01-01"},
	}
	for _, tc := range cases {
		start, end, err := svc.periodRange(tc.period)
		require.NoError(t, err, tc.period)
		assert.Equal(t, tc.start, start.Format("2006-01-02"), tc.period)
		assert.Equal(t, "2025-03-10", end.Format("2006-01-02"), tc.period)
	}

	_, _, err := svc.periodRange("decade")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSelfHistoryStatistics(t *testing.T) {
	student := activeStudent()
	svc := reportFixture(
		&reportLedgerStub{
			workingDays: 20,
			presentDays: map[string]int{"s1": 12},
			history: []models.AttendanceRecord{
				{ID: "r2", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
				{ID: "r1", Date: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
			},
		},
		&directoryStub{byRoll: map[string]*models.Student{"10A01": student}},
	)

	history, err := svc.SelfHistory(context.Background(), models.StudentActor("u3", "10A01"), PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, 60.0, history.Statistics.AttendancePercentage)
	assert.Equal(t, StatusInsufficient, history.Statistics.Status)
	assert.Len(t, history.Records, 2)

	_, err = svc.SelfHistory(context.Background(), models.TeacherActor("t1", "10-A"), PeriodMonth)
	assert.True(t, appErrors.Is(err, appErrors.ErrRoleNotPermitted))
}

func TestExportDailySummaryCSV(t *testing.T) {
	svc := reportFixture(
		&reportLedgerStub{
			presentOn: 1,
			absent: []models.Student{
				{RollNo: "10A02", Name: "Bob"},
			},
		},
		&directoryStub{active: 2},
	)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	payload, filename, contentType, err := svc.ExportDailySummary(context.Background(), models.AdminActor("a1"), "10-A", date, "csv")
	require.NoError(t, err)
	assert.Equal(t, "daily-summary-10-A-2025-03-10.csv", filename)
	assert.Equal(t, "text/csv", contentType)
	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "Roll No,Name,Status"))
	assert.Contains(t, body, "10A02,Bob,Absent")

	_, _, _, err = svc.ExportDailySummary(context.Background(), models.AdminActor("a1"), "10-A", date, "xlsx")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
