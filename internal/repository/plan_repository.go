package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

// PlanRepository provides persistence for class plans. The holder lookups run
// with FOR UPDATE on the caller's transaction so reserve checks are race-free.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new plan repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = "id, tenant_id, department, section_id, professor_id, room_id, slot_id, status, note, created_at, updated_at"

// Create stores a new plan on the caller's executor.
func (r *PlanRepository) Create(ctx context.Context, exec sqlx.ExtContext, plan *models.ClassPlan) error {
	if exec == nil {
		exec = r.db
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	const query = `INSERT INTO class_plans (id, tenant_id, department, section_id, professor_id, room_id, slot_id, status, note, created_at, updated_at) VALUES (:id, :tenant_id, :department, :section_id, :professor_id, :room_id, :slot_id, :status, :note, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

// FindByID loads a plan scoped to the tenant.
func (r *PlanRepository) FindByID(ctx context.Context, tenantID, id string) (*models.ClassPlan, error) {
	query := fmt.Sprintf("SELECT %s FROM class_plans WHERE tenant_id = $1 AND id = $2", planColumns)
	var plan models.ClassPlan
	if err := r.db.GetContext(ctx, &plan, query, tenantID, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindByIDForUpdate locks and loads a plan row for a state transition.
func (r *PlanRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.ClassPlan, error) {
	if exec == nil {
		exec = r.db
	}
	query := fmt.Sprintf("SELECT %s FROM class_plans WHERE tenant_id = $1 AND id = $2 FOR UPDATE", planColumns)
	var plan models.ClassPlan
	if err := sqlx.GetContext(ctx, exec, &plan, query, tenantID, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// List returns plans with optional filtering and pagination.
func (r *PlanRepository) List(ctx context.Context, tenantID string, filter models.PlanFilter) ([]models.ClassPlan, int, error) {
	base := "FROM class_plans WHERE tenant_id = $1"
	args := []interface{}{tenantID}
	var conditions []string

	if filter.ProfessorID != "" {
		conditions = append(conditions, fmt.Sprintf("professor_id = $%d", len(args)+1))
		args = append(args, filter.ProfessorID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.SlotID != "" {
		conditions = append(conditions, fmt.Sprintf("slot_id = $%d", len(args)+1))
		args = append(args, filter.SlotID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at ASC LIMIT %d OFFSET %d", planColumns, base, size, offset)
	var plans []models.ClassPlan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count plans: %w", err)
	}

	return plans, total, nil
}

// UpdateStatus flips a plan's lifecycle status on the caller's executor.
func (r *PlanRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, status models.PlanStatus) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE class_plans SET status = $1, updated_at = $2 WHERE tenant_id = $3 AND id = $4`
	if _, err := exec.ExecContext(ctx, query, status, time.Now().UTC(), tenantID, id); err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	return nil
}

// FindActiveBySlotRoom returns the ACTIVE plan holding (slot, room), locking
// the row when forUpdate is set. sql.ErrNoRows means the key is free.
func (r *PlanRepository) FindActiveBySlotRoom(ctx context.Context, exec sqlx.ExtContext, tenantID, slotID, roomID string, forUpdate bool) (*models.ClassPlan, error) {
	query := fmt.Sprintf("SELECT %s FROM class_plans WHERE tenant_id = $1 AND slot_id = $2 AND room_id = $3 AND status = 'ACTIVE'", planColumns)
	return r.findActive(ctx, exec, query, forUpdate, tenantID, slotID, roomID)
}

// FindActiveBySlotProfessor returns the ACTIVE plan holding (slot, professor).
func (r *PlanRepository) FindActiveBySlotProfessor(ctx context.Context, exec sqlx.ExtContext, tenantID, slotID, professorID string, forUpdate bool) (*models.ClassPlan, error) {
	query := fmt.Sprintf("SELECT %s FROM class_plans WHERE tenant_id = $1 AND slot_id = $2 AND professor_id = $3 AND status = 'ACTIVE'", planColumns)
	return r.findActive(ctx, exec, query, forUpdate, tenantID, slotID, professorID)
}

func (r *PlanRepository) findActive(ctx context.Context, exec sqlx.ExtContext, query string, forUpdate bool, args ...interface{}) (*models.ClassPlan, error) {
	if exec == nil {
		exec = r.db
	}
	if forUpdate {
		query += " FOR UPDATE"
	}
	var plan models.ClassPlan
	if err := sqlx.GetContext(ctx, exec, &plan, query, args...); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActiveBySlot returns every ACTIVE plan occupying a slot.
func (r *PlanRepository) ListActiveBySlot(ctx context.Context, tenantID, slotID string) ([]models.ClassPlan, error) {
	query := fmt.Sprintf("SELECT %s FROM class_plans WHERE tenant_id = $1 AND slot_id = $2 AND status = 'ACTIVE'", planColumns)
	var plans []models.ClassPlan
	if err := r.db.SelectContext(ctx, &plans, query, tenantID, slotID); err != nil {
		return nil, fmt.Errorf("list plans by slot: %w", err)
	}
	return plans, nil
}

// ListActiveByRoom returns a room's ACTIVE weekly plans joined with slot times
// for timetable views.
func (r *PlanRepository) ListActiveByRoom(ctx context.Context, tenantID, roomID string) ([]models.ClassPlan, error) {
	query := fmt.Sprintf(`SELECT p.%s FROM class_plans p JOIN slots s ON s.id = p.slot_id WHERE p.tenant_id = $1 AND p.room_id = $2 AND p.status = 'ACTIVE' ORDER BY s.day ASC, s.start_time ASC`, strings.ReplaceAll(planColumns, ", ", ", p."))
	var plans []models.ClassPlan
	if err := r.db.SelectContext(ctx, &plans, query, tenantID, roomID); err != nil {
		return nil, fmt.Errorf("list plans by room: %w", err)
	}
	return plans, nil
}

// ListActiveByProfessor returns a professor's ACTIVE weekly plans.
func (r *PlanRepository) ListActiveByProfessor(ctx context.Context, tenantID, professorID string) ([]models.ClassPlan, error) {
	query := fmt.Sprintf(`SELECT p.%s FROM class_plans p JOIN slots s ON s.id = p.slot_id WHERE p.tenant_id = $1 AND p.professor_id = $2 AND p.status = 'ACTIVE' ORDER BY s.day ASC, s.start_time ASC`, strings.ReplaceAll(planColumns, ", ", ", p."))
	var plans []models.ClassPlan
	if err := r.db.SelectContext(ctx, &plans, query, tenantID, professorID); err != nil {
		return nil, fmt.Errorf("list plans by professor: %w", err)
	}
	return plans, nil
}

// CountActiveByProfessorAndDay counts a professor's committed ACTIVE plans on
// a weekday, on the caller's executor so counting rules share the commit
// transaction.
func (r *PlanRepository) CountActiveByProfessorAndDay(ctx context.Context, exec sqlx.ExtContext, tenantID, professorID string, day int) (int, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT COUNT(*) FROM class_plans p JOIN slots s ON s.id = p.slot_id WHERE p.tenant_id = $1 AND p.professor_id = $2 AND s.day = $3 AND p.status = 'ACTIVE'`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, tenantID, professorID, day); err != nil {
		return 0, fmt.Errorf("count plans by professor/day: %w", err)
	}
	return count, nil
}

// CountActiveBySection counts a section's ACTIVE plans, on the caller's
// executor.
func (r *PlanRepository) CountActiveBySection(ctx context.Context, exec sqlx.ExtContext, tenantID, sectionID string) (int, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT COUNT(*) FROM class_plans WHERE tenant_id = $1 AND section_id = $2 AND status = 'ACTIVE'`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, tenantID, sectionID); err != nil {
		return 0, fmt.Errorf("count plans by section: %w", err)
	}
	return count, nil
}
