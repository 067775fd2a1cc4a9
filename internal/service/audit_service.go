package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presensia/attendance-api/internal/models"
	"github.com/presensia/attendance-api/pkg/jobs"
)

type auditStore interface {
	Insert(ctx context.Context, log *models.AuditLog) error
}

// AuditService records actions to the audit trail. Writes go through a queue
// when one is attached; either way a failed write only produces a log line,
// audit is not required for correctness.
type AuditService struct {
	store  auditStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the audit recorder.
func NewAuditService(store auditStore, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: store, logger: logger}
}

// AttachQueue routes audit writes through the given queue.
func (s *AuditService) AttachQueue(q *jobs.Queue) {
	s.queue = q
}

// Handler processes queued audit writes.
func (s *AuditService) Handler(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload type %T", job.Payload)
	}
	return s.store.Insert(ctx, &log)
}

// Record persists an audit row, fire-and-forget.
func (s *AuditService) Record(ctx context.Context, log models.AuditLog) {
	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "audit_log", Payload: log}); err != nil {
			s.logger.Warn("failed to enqueue audit log", zap.String("action", log.Action), zap.Error(err))
		}
		return
	}
	if err := s.store.Insert(ctx, &log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
