package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

// RunRepository provides persistence for timetable runs and their committed
// assignment sets.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = "id, tenant_id, term_id, status, solver_name, started_at, finished_at, runtime_ms, soft_score, created_at, updated_at"

// Create stores a new run record.
func (r *RunRepository) Create(ctx context.Context, run *models.TimetableRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	const query = `INSERT INTO timetable_runs (id, tenant_id, term_id, status, solver_name, started_at, finished_at, runtime_ms, soft_score, created_at, updated_at) VALUES (:id, :tenant_id, :term_id, :status, :solver_name, :started_at, :finished_at, :runtime_ms, :soft_score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FindByID loads a run scoped to the tenant.
func (r *RunRepository) FindByID(ctx context.Context, tenantID, id string) (*models.TimetableRun, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_runs WHERE tenant_id = $1 AND id = $2", runColumns)
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, tenantID, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// FindByIDForUpdate locks and loads a run row so commit and finalize are
// serialized per run.
func (r *RunRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.TimetableRun, error) {
	if exec == nil {
		exec = r.db
	}
	query := fmt.Sprintf("SELECT %s FROM timetable_runs WHERE tenant_id = $1 AND id = $2 FOR UPDATE", runColumns)
	var run models.TimetableRun
	if err := sqlx.GetContext(ctx, exec, &run, query, tenantID, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// Finalize records the terminal status, timing and score on the caller's
// executor. The status guard in the WHERE clause backs up the FOR UPDATE
// check: a run is finalized at most once.
func (r *RunRepository) Finalize(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if exec == nil {
		exec = r.db
	}
	run.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_runs SET status = :status, finished_at = :finished_at, runtime_ms = :runtime_ms, soft_score = :soft_score, updated_at = :updated_at WHERE tenant_id = :tenant_id AND id = :id AND status = 'PENDING'`
	res, err := sqlx.NamedExecContext(ctx, exec, query, run)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("finalize run %s: no pending row", run.ID)
	}
	return nil
}

// InsertAssignments writes a run's validated assignment batch on the caller's
// executor. The caller guarantees all-or-nothing by running inside one
// transaction.
func (r *RunRepository) InsertAssignments(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	if exec == nil {
		exec = r.db
	}
	now := time.Now().UTC()
	for i := range assignments {
		payload := assignments[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}

		if _, err := sqlx.NamedExecContext(ctx, exec, `INSERT INTO assignments (id, tenant_id, run_id, section_id, professor_id, room_id, slot_id, created_at) VALUES (:id, :tenant_id, :run_id, :section_id, :professor_id, :room_id, :slot_id, :created_at)`, &payload); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		assignments[i] = payload
	}
	return nil
}

// ListAssignments returns a run's committed assignments.
func (r *RunRepository) ListAssignments(ctx context.Context, tenantID, runID string) ([]models.Assignment, error) {
	const query = `SELECT id, tenant_id, run_id, section_id, professor_id, room_id, slot_id, created_at FROM assignments WHERE tenant_id = $1 AND run_id = $2 ORDER BY created_at ASC, id ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, tenantID, runID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}
