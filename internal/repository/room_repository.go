package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

// RoomRepository provides persistence for rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository creates a new room repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = "id, tenant_id, department, code, capacity, features, is_active, created_at, updated_at"

// Create stores a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	if len(room.Features) == 0 {
		room.Features = []byte("{}")
	}

	const query = `INSERT INTO rooms (id, tenant_id, department, code, capacity, features, is_active, created_at, updated_at) VALUES (:id, :tenant_id, :department, :code, :capacity, :features, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// FindByID loads a room scoped to the tenant.
func (r *RoomRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE tenant_id = $1 AND id = $2", roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, tenantID, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// List returns the tenant's rooms ordered by code.
func (r *RoomRepository) List(ctx context.Context, tenantID string) ([]models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE tenant_id = $1 ORDER BY code ASC", roomColumns)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, tenantID); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
