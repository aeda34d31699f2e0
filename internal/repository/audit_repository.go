package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

// AuditRepository appends audit trail records.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an audit record.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO audit_logs (id, tenant_id, table_name, row_id, action, actor, old_values, new_values, created_at) VALUES (:id, :tenant_id, :table_name, :row_id, :action, :actor, :old_values, :new_values, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListRecent returns the latest audit records for the tenant.
func (r *AuditRepository) ListRecent(ctx context.Context, tenantID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT id, tenant_id, table_name, row_id, action, actor, old_values, new_values, created_at FROM audit_logs WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT %d", limit)
	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, query, tenantID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}
