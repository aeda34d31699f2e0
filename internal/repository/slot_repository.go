package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

// SlotRepository provides persistence for slots. Slots are immutable once
// created, so there is no update path.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository creates a new slot repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

const slotColumns = "id, tenant_id, term_id, day, start_time, end_time, is_official, label, created_at"

// Create stores a new slot record.
func (r *SlotRepository) Create(ctx context.Context, slot *models.Slot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO slots (id, tenant_id, term_id, day, start_time, end_time, is_official, label, created_at) VALUES (:id, :tenant_id, :term_id, :day, :start_time, :end_time, :is_official, :label, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

// FindByID loads a slot scoped to the tenant.
func (r *SlotRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Slot, error) {
	query := fmt.Sprintf("SELECT %s FROM slots WHERE tenant_id = $1 AND id = $2", slotColumns)
	var slot models.Slot
	if err := r.db.GetContext(ctx, &slot, query, tenantID, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListByTerm returns a term's slots ordered by day and start time.
func (r *SlotRepository) ListByTerm(ctx context.Context, tenantID, termID string) ([]models.Slot, error) {
	query := fmt.Sprintf("SELECT %s FROM slots WHERE tenant_id = $1 AND term_id = $2 ORDER BY day ASC, start_time ASC", slotColumns)
	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, tenantID, termID); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}
