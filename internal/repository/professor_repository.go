package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

// ProfessorRepository provides persistence for professors and their
// per-slot availability records.
type ProfessorRepository struct {
	db *sqlx.DB
}

// NewProfessorRepository creates a new professor repository.
func NewProfessorRepository(db *sqlx.DB) *ProfessorRepository {
	return &ProfessorRepository{db: db}
}

const professorColumns = "id, tenant_id, display_name, email, max_hours_per_week, max_classes_per_day, is_active, created_at, updated_at"

// Create stores a new professor record.
func (r *ProfessorRepository) Create(ctx context.Context, prof *models.Professor) error {
	if prof.ID == "" {
		prof.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if prof.CreatedAt.IsZero() {
		prof.CreatedAt = now
	}
	prof.UpdatedAt = now

	const query = `INSERT INTO professors (id, tenant_id, display_name, email, max_hours_per_week, max_classes_per_day, is_active, created_at, updated_at) VALUES (:id, :tenant_id, :display_name, :email, :max_hours_per_week, :max_classes_per_day, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, prof); err != nil {
		return fmt.Errorf("create professor: %w", err)
	}
	return nil
}

// FindByID loads a professor scoped to the tenant.
func (r *ProfessorRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Professor, error) {
	query := fmt.Sprintf("SELECT %s FROM professors WHERE tenant_id = $1 AND id = $2", professorColumns)
	var prof models.Professor
	if err := r.db.GetContext(ctx, &prof, query, tenantID, id); err != nil {
		return nil, err
	}
	return &prof, nil
}

// List returns the tenant's professors ordered by display name.
func (r *ProfessorRepository) List(ctx context.Context, tenantID string) ([]models.Professor, error) {
	query := fmt.Sprintf("SELECT %s FROM professors WHERE tenant_id = $1 ORDER BY display_name ASC", professorColumns)
	var profs []models.Professor
	if err := r.db.SelectContext(ctx, &profs, query, tenantID); err != nil {
		return nil, fmt.Errorf("list professors: %w", err)
	}
	return profs, nil
}

// UpsertAvailability creates or replaces the availability record for a
// (professor, slot) pair.
func (r *ProfessorRepository) UpsertAvailability(ctx context.Context, avail *models.ProfessorAvailability) error {
	if avail.ID == "" {
		avail.ID = uuid.NewString()
	}
	if avail.CreatedAt.IsZero() {
		avail.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO professor_availabilities (id, tenant_id, professor_id, slot_id, available, note, created_at)
		VALUES (:id, :tenant_id, :professor_id, :slot_id, :available, :note, :created_at)
		ON CONFLICT (tenant_id, professor_id, slot_id) DO UPDATE SET available = EXCLUDED.available, note = EXCLUDED.note`
	if _, err := r.db.NamedExecContext(ctx, query, avail); err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	return nil
}

// FindAvailability returns the explicit record for a (professor, slot) pair,
// or sql.ErrNoRows when none exists. Runs on the caller's executor so rule
// evaluation shares the commit transaction.
func (r *ProfessorRepository) FindAvailability(ctx context.Context, exec sqlx.ExtContext, tenantID, professorID, slotID string) (*models.ProfessorAvailability, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT id, tenant_id, professor_id, slot_id, available, note, created_at FROM professor_availabilities WHERE tenant_id = $1 AND professor_id = $2 AND slot_id = $3`
	var avail models.ProfessorAvailability
	if err := sqlx.GetContext(ctx, exec, &avail, query, tenantID, professorID, slotID); err != nil {
		return nil, err
	}
	return &avail, nil
}
