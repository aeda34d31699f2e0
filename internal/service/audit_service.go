package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	"github.com/Milankumar13/automated-timetable-backend/pkg/config"
	"github.com/Milankumar13/automated-timetable-backend/pkg/jobs"
)

type auditWriter interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
}

// AuditService is the append-only sink for state changes. Recording is
// fire-and-forget through a background queue: a failed audit write is logged
// and retried by the queue, but never fails the business transaction that
// produced it.
type AuditService struct {
	repo   auditWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService builds the sink and its queue.
func NewAuditService(repo auditWriter, cfg config.AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start begins draining the queue.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. Never returns an error to the caller.
func (s *AuditService) Record(tenantID, tableName, rowID, action string, actor *string, oldValue, newValue interface{}) {
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		TableName: tableName,
		RowID:     rowID,
		Action:    action,
		Actor:     actor,
	}
	if oldValue != nil {
		if raw, err := json.Marshal(oldValue); err == nil {
			entry.OldValues = raw
		}
	}
	if newValue != nil {
		if raw, err := json.Marshal(newValue); err == nil {
			entry.NewValues = raw
		}
	}

	if err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: "audit_log", Payload: entry}); err != nil {
		s.logger.Sugar().Warnw("audit record dropped", "table", tableName, "row_id", rowID, "error", err)
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Sugar().Errorw("audit job with unexpected payload", "job_id", job.ID)
		return nil
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("audit write failed", "table", entry.TableName, "row_id", entry.RowID, "error", err)
		return err
	}
	return nil
}
