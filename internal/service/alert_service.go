package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presensia/attendance-api/internal/models"
	"github.com/presensia/attendance-api/pkg/jobs"
)

// Notifier delivers low-attendance alerts to students.
type Notifier interface {
	SendLowAttendanceAlert(email, name string, percentage, required float64) error
}

type alertSummaryReader interface {
	Get(ctx context.Context, studentID string, month, year int) (*models.AttendanceSummary, error)
}

type alertThresholdReader interface {
	RequiredPercentage(ctx context.Context, name string, fallback float64) (float64, error)
}

// alertPayload is the job body handed to the dispatch queue.
type alertPayload struct {
	Email      string
	Name       string
	Percentage float64
	Required   float64
}

// AlertService evaluates the low-attendance threshold after a successful mark
// and requests delivery through the Notifier. Delivery is fire-and-forget:
// failures are logged, retried by the queue, and never surfaced to the mark.
type AlertService struct {
	summaries       alertSummaryReader
	classes         alertThresholdReader
	notifier        Notifier
	queue           *jobs.Queue
	metrics         *MetricsService
	defaultRequired float64
	logger          *zap.Logger
}

// NewAlertService constructs the alert service. The queue is optional; without
// one, alerts are sent inline.
func NewAlertService(summaries alertSummaryReader, classes alertThresholdReader, notifier Notifier, defaultRequired float64, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		summaries:       summaries,
		classes:         classes,
		notifier:        notifier,
		defaultRequired: defaultRequired,
		logger:          logger,
	}
}

// AttachQueue routes alert delivery through the given queue instead of
// sending inline. The queue must be built with Handler as its handler.
func (s *AlertService) AttachQueue(q *jobs.Queue) {
	s.queue = q
}

// AttachMetrics enables counting of delivered alerts.
func (s *AlertService) AttachMetrics(m *MetricsService) {
	s.metrics = m
}

// Handler processes queued alert deliveries.
func (s *AlertService) Handler(_ context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(alertPayload)
	if !ok {
		return fmt.Errorf("unexpected alert payload type %T", job.Payload)
	}
	if err := s.notifier.SendLowAttendanceAlert(payload.Email, payload.Name, payload.Percentage, payload.Required); err != nil {
		return err
	}
	s.metrics.RecordAlertSent()
	return nil
}

// Evaluate re-reads the freshly recomputed summary for (student, month, year)
// and requests an alert when the percentage is below the class requirement and
// the student has a contact address. It runs only after marks, never after
// deletes.
func (s *AlertService) Evaluate(ctx context.Context, student *models.Student, month, year int) error {
	if student == nil || student.Email == nil || *student.Email == "" {
		return nil
	}

	summary, err := s.summaries.Get(ctx, student.ID, month, year)
	if err != nil {
		return fmt.Errorf("read summary for alert: %w", err)
	}
	if summary == nil {
		return nil
	}

	required, err := s.classes.RequiredPercentage(ctx, student.Class, s.defaultRequired)
	if err != nil {
		return fmt.Errorf("read class threshold for alert: %w", err)
	}
	if summary.Percentage >= required {
		return nil
	}

	payload := alertPayload{
		Email:      *student.Email,
		Name:       student.Name,
		Percentage: summary.Percentage,
		Required:   required,
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "low_attendance_alert", Payload: payload}); err != nil {
			return fmt.Errorf("enqueue low attendance alert: %w", err)
		}
		return nil
	}

	if err := s.notifier.SendLowAttendanceAlert(payload.Email, payload.Name, payload.Percentage, payload.Required); err != nil {
		return fmt.Errorf("send low attendance alert: %w", err)
	}
	s.metrics.RecordAlertSent()
	return nil
}
