package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

// UserRepository provides persistence for admin actors.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, tenant_id, email, password_hash, display_name, is_active, created_at, updated_at"

// Create stores a new user record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, tenant_id, email, password_hash, display_name, is_active, created_at, updated_at) VALUES (:id, :tenant_id, :email, :password_hash, :display_name, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByEmail loads a user by email across tenants (emails are unique).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user scoped to the tenant.
func (r *UserRepository) FindByID(ctx context.Context, tenantID, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE tenant_id = $1 AND id = $2", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, tenantID, id); err != nil {
		return nil, err
	}
	return &user, nil
}
