package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

// SectionRepository provides persistence for sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository creates a new section repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = "id, tenant_id, term_id, course_code, course_title, section_code, meetings_per_week, minutes_per_meeting, expected_enrollment, created_at, updated_at"

// Create stores a new section record.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now

	const query = `INSERT INTO sections (id, tenant_id, term_id, course_code, course_title, section_code, meetings_per_week, minutes_per_meeting, expected_enrollment, created_at, updated_at) VALUES (:id, :tenant_id, :term_id, :course_code, :course_title, :section_code, :meetings_per_week, :minutes_per_meeting, :expected_enrollment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// FindByID loads a section scoped to the tenant.
func (r *SectionRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections WHERE tenant_id = $1 AND id = $2", sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, tenantID, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListByTerm returns a term's sections ordered by course and section code.
func (r *SectionRepository) ListByTerm(ctx context.Context, tenantID, termID string) ([]models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections WHERE tenant_id = $1 AND term_id = $2 ORDER BY course_code ASC, section_code ASC", sectionColumns)
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, tenantID, termID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}
