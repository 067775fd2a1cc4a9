package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/presensia/attendance-api/internal/dto"
	"github.com/presensia/attendance-api/internal/models"
	appErrors "github.com/presensia/attendance-api/pkg/errors"
	"github.com/presensia/attendance-api/pkg/export"
)

// Attendance status values reported against the class requirement. The
// comparison is inclusive: percentage equal to the requirement is Sufficient.
const (
	StatusSufficient   = "Sufficient"
	StatusInsufficient = "Insufficient"
)

// Self-history periods map to ranges ending today.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

const dateLayout = "2006-01-02"

type reportLedger interface {
	CountClassWorkingDays(ctx context.Context, className string, start, end time.Time) (int, error)
	CountStudentPresentDays(ctx context.Context, studentID string, start, end time.Time) (int, error)
	CountPresentStudents(ctx context.Context, className string, date time.Time) (int, error)
	AbsentStudents(ctx context.Context, className string, date time.Time) ([]models.Student, error)
	PresenceByStudent(ctx context.Context, className string, start, end time.Time) ([]models.StudentPresence, error)
	ListByRollNo(ctx context.Context, rollNo string, start, end time.Time) ([]models.AttendanceRecord, error)
}

type reportStudentDirectory interface {
	FindByRollNo(ctx context.Context, rollNo string) (*models.Student, error)
	CountActiveByClass(ctx context.Context, className string) (int, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ReportConfig tunes the report engine.
type ReportConfig struct {
	DefaultRequiredPercentage float64
	HistoryEpoch              time.Time
	CacheTTL                  time.Duration
}

// ReportService computes read-only attendance statistics straight from the
// ledger. Working days are always observed per class; every percentage is
// present*100/total rounded to 2 decimals with 0.0 on empty denominators, and
// all date ranges are inclusive on both ends.
type ReportService struct {
	ledger   reportLedger
	students reportStudentDirectory
	classes  alertThresholdReader
	gate     *PermissionGate
	cache    reportCache
	metrics  *MetricsService
	config   ReportConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService constructs the report engine. cache may be nil.
func NewReportService(ledger reportLedger, students reportStudentDirectory, classes alertThresholdReader, gate *PermissionGate, cache reportCache, config ReportConfig, logger *zap.Logger) *ReportService {
	if gate == nil {
		gate = NewPermissionGate()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultRequiredPercentage <= 0 {
		config.DefaultRequiredPercentage = 75.0
	}
	if config.HistoryEpoch.IsZero() {
		config.HistoryEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return &ReportService{
		ledger:   ledger,
		students: students,
		classes:  classes,
		gate:     gate,
		cache:    cache,
		config:   config,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AttachMetrics enables cache hit and query timing instrumentation.
func (s *ReportService) AttachMetrics(m *MetricsService) {
	s.metrics = m
}

// cacheLookup reads a cached report and records the hit or miss.
func (s *ReportService) cacheLookup(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit := s.cache.Get(ctx, key, dest) == nil
	s.metrics.RecordCacheLookup(hit)
	return hit
}

// timeQuery observes the duration of one ledger aggregate query.
func (s *ReportService) timeQuery(label string) func() {
	start := time.Now()
	return func() { s.metrics.ObserveDBQuery(label, time.Since(start)) }
}

// DailyClassSummary returns the present/absent snapshot for a class on one
// date. total counts active students; absent never goes negative even when
// deactivated students still have records.
func (s *ReportService) DailyClassSummary(ctx context.Context, actor models.Actor, className string, date time.Time) (*dto.DailyClassSummary, error) {
	if err := s.gate.Authorize(actor, OpClassReport, PermissionTarget{ClassName: className}); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("report:%s:daily:%s", className, date.Format(dateLayout))
	var cached dto.DailyClassSummary
	if s.cacheLookup(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	total, err := s.students.CountActiveByClass(ctx, className)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	done := s.timeQuery("count_present_students")
	present, err := s.ledger.CountPresentStudents(ctx, className, date)
	done()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count present students")
	}

	absent := total - present
	if absent < 0 {
		absent = 0
	}
	summary := &dto.DailyClassSummary{
		ClassName:            className,
		Date:                 date.Format(dateLayout),
		TotalStudents:        total,
		Present:              present,
		Absent:               absent,
		AttendancePercentage: roundPercent(present, total),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache daily summary", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return summary, nil
}

// AbsentList returns active students of the class without a record on the
// date, ordered by roll number.
func (s *ReportService) AbsentList(ctx context.Context, actor models.Actor, className string, date time.Time) (*dto.AbsentListResponse, error) {
	if err := s.gate.Authorize(actor, OpClassReport, PermissionTarget{ClassName: className}); err != nil {
		return nil, err
	}

	students, err := s.ledger.AbsentStudents(ctx, className, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absent students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return &dto.AbsentListResponse{
		ClassName:      className,
		Date:           date.Format(dateLayout),
		TotalAbsent:    len(students),
		AbsentStudents: students,
	}, nil
}

// StudentPercentage computes one student's attendance over an inclusive range
// and compares it against the class requirement.
func (s *ReportService) StudentPercentage(ctx context.Context, actor models.Actor, rollNo string, start, end time.Time) (*dto.StudentPercentageReport, error) {
	if start.After(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must not be after end date")
	}

	student, err := s.students.FindByRollNo(ctx, rollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err := s.gate.Authorize(actor, OpStudentReport, PermissionTarget{ClassName: student.Class, RollNo: student.RollNo}); err != nil {
		return nil, err
	}

	stats, err := s.rangeStatistics(ctx, student, start, end)
	if err != nil {
		return nil, err
	}
	return &dto.StudentPercentageReport{
		Student:    dto.StudentInfo{Name: student.Name, RollNo: student.RollNo, Class: student.Class},
		Period:     dto.PeriodInfo{StartDate: start.Format(dateLayout), EndDate: end.Format(dateLayout)},
		Statistics: *stats,
	}, nil
}

// ClassPercentage computes per-student percentages over a range and their
// arithmetic mean. The mean is taken over the unrounded values and rounded
// once at the end. A class with zero active students yields 0.0 and an empty
// list, never a division error.
func (s *ReportService) ClassPercentage(ctx context.Context, actor models.Actor, className string, start, end time.Time) (*dto.ClassPercentageReport, error) {
	if start.After(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must not be after end date")
	}
	if err := s.gate.Authorize(actor, OpClassReport, PermissionTarget{ClassName: className}); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("report:%s:class:%s:%s", className, start.Format(dateLayout), end.Format(dateLayout))
	var cached dto.ClassPercentageReport
	if s.cacheLookup(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	done := s.timeQuery("count_class_working_days")
	totalDays, err := s.ledger.CountClassWorkingDays(ctx, className, start, end)
	done()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count working days")
	}
	done = s.timeQuery("presence_by_student")
	presence, err := s.ledger.PresenceByStudent(ctx, className, start, end)
	done()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate presence")
	}

	students := make([]dto.ClassStudentPercentage, 0, len(presence))
	sum := 0.0
	for _, row := range presence {
		pct := roundPercent(row.PresentDays, totalDays)
		if totalDays > 0 {
			sum += float64(row.PresentDays) * 100.0 / float64(totalDays)
		}
		students = append(students, dto.ClassStudentPercentage{
			ID:          row.StudentID,
			Name:        row.Name,
			RollNo:      row.RollNo,
			PresentDays: row.PresentDays,
			AbsentDays:  totalDays - row.PresentDays,
			Percentage:  pct,
		})
	}
	average := 0.0
	if len(students) > 0 {
		average = roundPercent2(sum / float64(len(students)))
	}

	report := &dto.ClassPercentageReport{
		ClassName: className,
		Period:    dto.PeriodInfo{StartDate: start.Format(dateLayout), EndDate: end.Format(dateLayout)},
		Statistics: dto.ClassPercentageStatistics{
			TotalWorkingDays:  totalDays,
			TotalStudents:     len(students),
			AveragePercentage: average,
		},
		Students: students,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, report, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache class percentage", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return report, nil
}

// SelfHistory returns the acting student's own statistics and raw records for
// a named period ending today.
func (s *ReportService) SelfHistory(ctx context.Context, actor models.Actor, period string) (*dto.SelfHistoryResponse, error) {
	if err := s.gate.Authorize(actor, OpSelfHistory, PermissionTarget{RollNo: actor.RollNo}); err != nil {
		return nil, err
	}

	start, end, err := s.periodRange(period)
	if err != nil {
		return nil, err
	}

	student, err := s.students.FindByRollNo(ctx, actor.RollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	records, err := s.ledger.ListByRollNo(ctx, actor.RollNo, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	stats, err := s.rangeStatistics(ctx, student, start, end)
	if err != nil {
		return nil, err
	}

	return &dto.SelfHistoryResponse{
		Period:     period,
		StartDate:  start.Format(dateLayout),
		EndDate:    end.Format(dateLayout),
		Statistics: *stats,
		Records:    records,
	}, nil
}

// ExportDailySummary renders the daily class summary plus its absent list as
// a downloadable CSV or PDF file.
func (s *ReportService) ExportDailySummary(ctx context.Context, actor models.Actor, className string, date time.Time, format string) ([]byte, string, string, error) {
	summary, err := s.DailyClassSummary(ctx, actor, className, date)
	if err != nil {
		return nil, "", "", err
	}
	absent, err := s.AbsentList(ctx, actor, className, date)
	if err != nil {
		return nil, "", "", err
	}

	table := export.Table{
		Columns: []string{"Roll No", "Name", "Status"},
	}
	for _, st := range absent.AbsentStudents {
		table.Rows = append(table.Rows, []string{st.RollNo, st.Name, "Absent"})
	}
	title := fmt.Sprintf("%s attendance %s (%d/%d present, %s%%)",
		className, summary.Date, summary.Present, summary.TotalStudents,
		strconv.FormatFloat(summary.AttendancePercentage, 'f', 2, 64))

	filename := fmt.Sprintf("daily-summary-%s-%s", className, summary.Date)
	switch format {
	case "pdf":
		payload, err := export.NewPDFExporter().Render(table, title)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, filename + ".pdf", "application/pdf", nil
	case "", "csv":
		payload, err := export.NewCSVExporter().Render(table)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, filename + ".csv", "text/csv", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// rangeStatistics builds the shared statistics block for a student and range.
func (s *ReportService) rangeStatistics(ctx context.Context, student *models.Student, start, end time.Time) (*dto.AttendanceStatistics, error) {
	done := s.timeQuery("count_class_working_days")
	totalDays, err := s.ledger.CountClassWorkingDays(ctx, student.Class, start, end)
	done()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count working days")
	}
	done = s.timeQuery("count_student_present_days")
	presentDays, err := s.ledger.CountStudentPresentDays(ctx, student.ID, start, end)
	done()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count present days")
	}
	required, err := s.classes.RequiredPercentage(ctx, student.Class, s.config.DefaultRequiredPercentage)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read class threshold")
	}

	percentage := roundPercent(presentDays, totalDays)
	status := StatusInsufficient
	if percentage >= required {
		status = StatusSufficient
	}
	return &dto.AttendanceStatistics{
		TotalWorkingDays:     totalDays,
		PresentDays:          presentDays,
		AbsentDays:           totalDays - presentDays,
		AttendancePercentage: percentage,
		RequiredPercentage:   required,
		Status:               status,
	}, nil
}

// periodRange maps a named period to an inclusive range ending today.
func (s *ReportService) periodRange(period string) (time.Time, time.Time, error) {
	now := s.now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case PeriodWeek:
		return end.AddDate(0, 0, -7), end, nil
	case PeriodMonth, "":
		return end.AddDate(0, 0, -30), end, nil
	case PeriodYear:
		return end.AddDate(0, 0, -365), end, nil
	case PeriodAll:
		return s.config.HistoryEpoch, end, nil
	default:
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "period must be week, month, year or all")
	}
}

// roundPercent2 rounds an already computed percentage to 2 decimal places.
func roundPercent2(value float64) float64 {
	return math.Round(value*100) / 100
}
