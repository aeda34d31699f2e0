package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

// RuleRepository provides persistence for admin rules and blocked slots.
type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = "id, tenant_id, kind, is_global, room_id, slot_id, parameter, note, is_active, created_at, updated_at"

// CreateRule stores a new admin rule.
func (r *RuleRepository) CreateRule(ctx context.Context, rule *models.AdminRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	if len(rule.Parameter) == 0 {
		rule.Parameter = []byte("{}")
	}

	const query = `INSERT INTO admin_rules (id, tenant_id, kind, is_global, room_id, slot_id, parameter, note, is_active, created_at, updated_at) VALUES (:id, :tenant_id, :kind, :is_global, :room_id, :slot_id, :parameter, :note, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create admin rule: %w", err)
	}
	return nil
}

// ListRules returns all of the tenant's rules.
func (r *RuleRepository) ListRules(ctx context.Context, tenantID string) ([]models.AdminRule, error) {
	query := fmt.Sprintf("SELECT %s FROM admin_rules WHERE tenant_id = $1 ORDER BY created_at ASC", ruleColumns)
	var rules []models.AdminRule
	if err := r.db.SelectContext(ctx, &rules, query, tenantID); err != nil {
		return nil, fmt.Errorf("list admin rules: %w", err)
	}
	return rules, nil
}

// ListActiveRules returns active rules on the caller's executor. Evaluation
// order is fixed (scoped before global handled by the engine) so the result is
// sorted deterministically by creation time.
func (r *RuleRepository) ListActiveRules(ctx context.Context, exec sqlx.ExtContext, tenantID string) ([]models.AdminRule, error) {
	if exec == nil {
		exec = r.db
	}
	query := fmt.Sprintf("SELECT %s FROM admin_rules WHERE tenant_id = $1 AND is_active = TRUE ORDER BY created_at ASC, id ASC", ruleColumns)
	var rules []models.AdminRule
	if err := sqlx.SelectContext(ctx, exec, &rules, query, tenantID); err != nil {
		return nil, fmt.Errorf("list active admin rules: %w", err)
	}
	return rules, nil
}

// CreateBlockedSlot stores a hard (room, slot) exclusion. A nil room blocks
// the slot for all rooms.
func (r *RuleRepository) CreateBlockedSlot(ctx context.Context, block *models.BlockedSlot) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO blocked_slots (id, tenant_id, room_id, slot_id, reason, created_at) VALUES (:id, :tenant_id, :room_id, :slot_id, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create blocked slot: %w", err)
	}
	return nil
}

// FindBlocks returns blocks matching the exact room or the any-room wildcard
// for a slot, on the caller's executor.
func (r *RuleRepository) FindBlocks(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID, slotID string) ([]models.BlockedSlot, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT id, tenant_id, room_id, slot_id, reason, created_at FROM blocked_slots WHERE tenant_id = $1 AND slot_id = $2 AND (room_id = $3 OR room_id IS NULL) ORDER BY created_at ASC`
	var blocks []models.BlockedSlot
	if err := sqlx.SelectContext(ctx, exec, &blocks, query, tenantID, slotID, roomID); err != nil {
		return nil, fmt.Errorf("find blocked slots: %w", err)
	}
	return blocks, nil
}
