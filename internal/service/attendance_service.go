package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/presensia/attendance-api/internal/dto"
	"github.com/presensia/attendance-api/internal/models"
	appErrors "github.com/presensia/attendance-api/pkg/errors"
)

type attendanceLedger interface {
	Insert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error)
	FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

type studentResolver interface {
	FindByQRUUID(ctx context.Context, qrUUID string) (*models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type summaryRecomputer interface {
	Recompute(ctx context.Context, studentID, className string, month, year int) (*models.AttendanceSummary, error)
}

type alertEvaluator interface {
	Evaluate(ctx context.Context, student *models.Student, month, year int) error
}

type auditRecorder interface {
	Record(ctx context.Context, log models.AuditLog)
}

type reportCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AttendanceService coordinates the ledger: marking, deletion and listing.
// The mark or delete itself is the unit of success; summary recompute, alert
// evaluation, audit and cache invalidation are best-effort side effects that
// never roll it back.
type AttendanceService struct {
	ledger    attendanceLedger
	students  studentResolver
	gate      *PermissionGate
	summaries summaryRecomputer
	alerts    alertEvaluator
	audit     auditRecorder
	cache     reportCacheInvalidator
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service. alerts, audit and
// cache may be nil; the corresponding side effect is then skipped.
func NewAttendanceService(ledger attendanceLedger, students studentResolver, gate *PermissionGate, summaries summaryRecomputer, alerts alertEvaluator, audit auditRecorder, cache reportCacheInvalidator, logger *zap.Logger) *AttendanceService {
	if gate == nil {
		gate = NewPermissionGate()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		ledger:    ledger,
		students:  students,
		gate:      gate,
		summaries: summaries,
		alerts:    alerts,
		audit:     audit,
		cache:     cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AttachMetrics enables mark outcome counting. Without it the service runs
// uninstrumented.
func (s *AttendanceService) AttachMetrics(m *MetricsService) {
	s.metrics = m
}

// Mark records a presence event for the student behind the QR reference.
// Retrying is safe: a second call for the same day degrades to AlreadyMarked
// without touching the existing row. The duplicate check is atomic in the
// storage layer, so concurrent scans of the same student cannot double-insert.
func (s *AttendanceService) Mark(ctx context.Context, qrUUID string, actor models.Actor, clientIP string) (*models.MarkResult, error) {
	student, err := s.students.FindByQRUUID(ctx, qrUUID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve QR code")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "invalid QR code")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "student account is inactive")
	}
	if err := s.gate.Authorize(actor, OpMarkAttendance, PermissionTarget{ClassName: student.Class}); err != nil {
		return nil, err
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	record := &models.AttendanceRecord{
		StudentID:   student.ID,
		StudentName: student.Name,
		RollNo:      student.RollNo,
		ClassName:   student.Class,
		Date:        today,
		Time:        now.Format("15:04:05"),
		MarkedBy:    actor.UserID,
	}

	stored, inserted, err := s.ledger.Insert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	if !inserted {
		existing, err := s.ledger.FindByStudentAndDate(ctx, student.ID, today)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing attendance")
		}
		s.metrics.RecordMark(MarkOutcomeAlreadyMarked)
		return &models.MarkResult{Status: models.MarkStatusAlreadyMarked, Record: existing}, nil
	}
	s.metrics.RecordMark(MarkOutcomeMarked)

	s.recordAudit(ctx, actor, models.AuditActionAttendanceMarked, stored.ID, clientIP, map[string]string{
		"student_roll": student.RollNo,
		"class":        student.Class,
	})
	s.afterMutation(ctx, student, int(today.Month()), today.Year(), true)

	return &models.MarkResult{Status: models.MarkStatusMarked, Record: stored}, nil
}

// Delete removes a ledger row. Admin only. The affected student's month is
// recomputed; a previously sent alert is not retracted.
func (s *AttendanceService) Delete(ctx context.Context, recordID string, actor models.Actor, clientIP string) error {
	if err := s.gate.Authorize(actor, OpDeleteAttendance, PermissionTarget{}); err != nil {
		return err
	}

	record, err := s.ledger.FindByID(ctx, recordID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance record")
	}
	if record == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}

	deleted, err := s.ledger.Delete(ctx, recordID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance record")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}

	s.recordAudit(ctx, actor, models.AuditActionAttendanceDeleted, record.ID, clientIP, map[string]string{
		"student_roll": record.RollNo,
	})

	student, err := s.students.FindByID(ctx, record.StudentID)
	if err != nil || student == nil {
		s.logger.Warn("recompute after delete skipped, student lookup failed",
			zap.String("student_id", record.StudentID), zap.Error(err))
		return nil
	}
	s.afterMutation(ctx, student, int(record.Date.Month()), record.Date.Year(), false)
	return nil
}

// ListAttendanceRequest carries the listing query. The service narrows it to
// the actor's scope before it reaches the ledger.
type ListAttendanceRequest struct {
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time
	ClassName string
	Page      int
	PageSize  int
}

// List returns the role-scoped, paginated ledger listing. Teachers only see
// their class, students only their own rows; the class filter is admin-only.
func (s *AttendanceService) List(ctx context.Context, req ListAttendanceRequest, actor models.Actor) ([]models.AttendanceRecord, *models.Pagination, error) {
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "start date must not be after end date")
	}

	filter := models.AttendanceFilter{
		Date:      req.Date,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	switch actor.Role {
	case models.RoleTeacher:
		filter.ClassName = actor.AssignedClass
	case models.RoleStudent:
		filter.RollNo = actor.RollNo
	default:
		filter.ClassName = req.ClassName
	}

	rows, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// afterMutation runs the derived side effects of a successful mark or delete.
// Recompute is synchronous; alerting only follows marks.
func (s *AttendanceService) afterMutation(ctx context.Context, student *models.Student, month, year int, marked bool) {
	if s.summaries != nil {
		if _, err := s.summaries.Recompute(ctx, student.ID, student.Class, month, year); err != nil {
			s.logger.Error("summary recompute failed",
				zap.String("student_id", student.ID), zap.Int("month", month), zap.Int("year", year), zap.Error(err))
		} else if marked && s.alerts != nil {
			if err := s.alerts.Evaluate(ctx, student, month, year); err != nil {
				s.logger.Warn("low attendance alert evaluation failed",
					zap.String("student_id", student.ID), zap.Error(err))
			}
		}
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, reportCachePattern(student.Class)); err != nil {
			s.logger.Warn("report cache invalidation failed", zap.String("class", student.Class), zap.Error(err))
		}
	}
}

func (s *AttendanceService) recordAudit(ctx context.Context, actor models.Actor, action, resourceID, clientIP string, details map[string]string) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(details)
	if err != nil {
		payload = nil
	}
	userID := actor.UserID
	s.audit.Record(ctx, models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "attendance",
		ResourceID: &resourceID,
		Details:    payload,
		IPAddress:  clientIP,
	})
}

// MarkResponse converts a mark result into its transport shape.
func MarkResponse(result *models.MarkResult) dto.MarkAttendanceResponse {
	resp := dto.MarkAttendanceResponse{Status: result.Status}
	if result.Record != nil {
		resp.Student = dto.StudentInfo{
			Name:   result.Record.StudentName,
			RollNo: result.Record.RollNo,
			Class:  result.Record.ClassName,
		}
		if result.Status == models.MarkStatusMarked {
			markedAt := result.Record.CreatedAt
			resp.MarkedAt = &markedAt
		}
	}
	return resp
}

func reportCachePattern(className string) string {
	return fmt.Sprintf("report:%s:*", className)
}
