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

// SessionRepository provides persistence for class sessions. Date-scoped
// holder lookups lock rows FOR UPDATE on the caller's transaction.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = "id, tenant_id, plan_id, term_id, day_date, slot_id, section_id, professor_id, room_id, status, change_reason, replaces_session_id, created_at, updated_at"

// Create stores a new session on the caller's executor.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.ClassSession) error {
	if exec == nil {
		exec = r.db
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO class_sessions (id, tenant_id, plan_id, term_id, day_date, slot_id, section_id, professor_id, room_id, status, change_reason, replaces_session_id, created_at, updated_at) VALUES (:id, :tenant_id, :plan_id, :term_id, :day_date, :slot_id, :section_id, :professor_id, :room_id, :status, :change_reason, :replaces_session_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID loads a session scoped to the tenant, optionally on an executor.
func (r *SessionRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.ClassSession, error) {
	if exec == nil {
		exec = r.db
	}
	query := fmt.Sprintf("SELECT %s FROM class_sessions WHERE tenant_id = $1 AND id = $2", sessionColumns)
	var session models.ClassSession
	if err := sqlx.GetContext(ctx, exec, &session, query, tenantID, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByIDForUpdate locks and loads a session row for a state transition.
func (r *SessionRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.ClassSession, error) {
	if exec == nil {
		exec = r.db
	}
	query := fmt.Sprintf("SELECT %s FROM class_sessions WHERE tenant_id = $1 AND id = $2 FOR UPDATE", sessionColumns)
	var session models.ClassSession
	if err := sqlx.GetContext(ctx, exec, &session, query, tenantID, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions with optional filtering and pagination.
func (r *SessionRepository) List(ctx context.Context, tenantID string, filter models.SessionFilter) ([]models.ClassSession, int, error) {
	base := "FROM class_sessions WHERE tenant_id = $1"
	args := []interface{}{tenantID}
	var conditions []string

	if filter.PlanID != "" {
		conditions = append(conditions, fmt.Sprintf("plan_id = $%d", len(args)+1))
		args = append(args, filter.PlanID)
	}
	if filter.ProfessorID != "" {
		conditions = append(conditions, fmt.Sprintf("professor_id = $%d", len(args)+1))
		args = append(args, filter.ProfessorID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("day_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("day_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY day_date ASC, created_at ASC LIMIT %d OFFSET %d", sessionColumns, base, size, offset)
	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

// UpdateStatus flips a session's status and change reason on the caller's
// executor.
func (r *SessionRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, status models.SessionStatus, reason *string) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE class_sessions SET status = $1, change_reason = COALESCE($2, change_reason), updated_at = $3 WHERE tenant_id = $4 AND id = $5`
	if _, err := exec.ExecContext(ctx, query, status, reason, time.Now().UTC(), tenantID, id); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// FindLiveByDateSlotRoom returns the non-cancelled session holding
// (date, slot, room). sql.ErrNoRows means the key is free for that date.
func (r *SessionRepository) FindLiveByDateSlotRoom(ctx context.Context, exec sqlx.ExtContext, tenantID string, date time.Time, slotID, roomID string, forUpdate bool) (*models.ClassSession, error) {
	query := fmt.Sprintf("SELECT %s FROM class_sessions WHERE tenant_id = $1 AND day_date = $2 AND slot_id = $3 AND room_id = $4 AND status NOT IN ('CANCELLED','RESCHEDULED')", sessionColumns)
	return r.findLive(ctx, exec, query, forUpdate, tenantID, date, slotID, roomID)
}

// FindLiveByDateSlotProfessor returns the non-cancelled session holding
// (date, slot, professor).
func (r *SessionRepository) FindLiveByDateSlotProfessor(ctx context.Context, exec sqlx.ExtContext, tenantID string, date time.Time, slotID, professorID string, forUpdate bool) (*models.ClassSession, error) {
	query := fmt.Sprintf("SELECT %s FROM class_sessions WHERE tenant_id = $1 AND day_date = $2 AND slot_id = $3 AND professor_id = $4 AND status NOT IN ('CANCELLED','RESCHEDULED')", sessionColumns)
	return r.findLive(ctx, exec, query, forUpdate, tenantID, date, slotID, professorID)
}

func (r *SessionRepository) findLive(ctx context.Context, exec sqlx.ExtContext, query string, forUpdate bool, args ...interface{}) (*models.ClassSession, error) {
	if exec == nil {
		exec = r.db
	}
	if forUpdate {
		query += " FOR UPDATE"
	}
	var session models.ClassSession
	if err := sqlx.GetContext(ctx, exec, &session, query, args...); err != nil {
		return nil, err
	}
	return &session, nil
}

// CountLiveByProfessorAndDate counts a professor's non-cancelled sessions on
// a date, on the caller's executor.
func (r *SessionRepository) CountLiveByProfessorAndDate(ctx context.Context, exec sqlx.ExtContext, tenantID, professorID string, date time.Time) (int, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT COUNT(*) FROM class_sessions WHERE tenant_id = $1 AND professor_id = $2 AND day_date = $3 AND status NOT IN ('CANCELLED','RESCHEDULED')`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, tenantID, professorID, date); err != nil {
		return 0, fmt.Errorf("count sessions by professor/date: %w", err)
	}
	return count, nil
}
