package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.ClassSession) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.ClassSession, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.ClassSession, error)
	List(ctx context.Context, tenantID string, filter models.SessionFilter) ([]models.ClassSession, int, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, status models.SessionStatus, reason *string) error
}

type sessionPlanReader interface {
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.ClassPlan, error)
}

// CreateExtraSessionRequest describes payload for a standalone dated class.
type CreateExtraSessionRequest struct {
	SectionID   string `json:"section_id" validate:"required,uuid"`
	ProfessorID string `json:"professor_id" validate:"required,uuid"`
	RoomID      string `json:"room_id" validate:"required,uuid"`
	SlotID      string `json:"slot_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
}

// RescheduleSessionRequest moves a session to a new date, slot or room. The
// professor may change too, for substitute coverage.
type RescheduleSessionRequest struct {
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	SlotID      string  `json:"slot_id" validate:"required,uuid"`
	RoomID      string  `json:"room_id" validate:"required,uuid"`
	ProfessorID *string `json:"professor_id" validate:"omitempty,uuid"`
	Reason      string  `json:"reason" validate:"required"`
}

// SessionResult pairs a session with rule warnings from its admission.
type SessionResult struct {
	Session  *models.ClassSession `json:"session"`
	Warnings []string             `json:"warnings,omitempty"`
}

// SessionService owns the lifecycle of dated class occurrences: expansion of
// plans into sessions, extra classes, cancellation, completion and the
// reschedule chain.
type SessionService struct {
	sessions  sessionRepository
	plans     sessionPlanReader
	slots     slotReader
	conflicts *ConflictIndex
	rules     *RuleEngine
	tx        txProvider
	audit     auditRecorder
	metrics   engineObserver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService wires session dependencies. audit and metrics may be nil.
func NewSessionService(
	sessions sessionRepository,
	plans sessionPlanReader,
	slots slotReader,
	conflicts *ConflictIndex,
	rules *RuleEngine,
	tx txProvider,
	audit auditRecorder,
	metrics engineObserver,
	validate *validator.Validate,
	logger *zap.Logger,
) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:  sessions,
		plans:     plans,
		slots:     slots,
		conflicts: conflicts,
		rules:     rules,
		tx:        tx,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// ExpandPlan materializes one dated PLANNED session from an ACTIVE plan. The
// date must fall on the plan slot's weekday. The session competes for the
// dated keys even though the plan already holds the weekly ones, because
// reschedules and extras may have claimed that particular date.
func (s *SessionService) ExpandPlan(ctx context.Context, tenantID string, actor *string, planID, date string) (*SessionResult, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	plan, err := s.plans.FindByIDForUpdate(ctx, tx, tenantID, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "plan not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock plan")
		return nil, err
	}
	if plan.Status != models.PlanStatusActive {
		transition := &models.InvalidStateTransitionError{Entity: "plan", From: string(plan.Status), To: "expanded"}
		err = appErrors.Wrap(transition, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, "only ACTIVE plans expand into sessions")
		return nil, err
	}

	slot, err := s.slots.FindByID(ctx, tenantID, plan.SlotID)
	if err != nil {
		err = scopeError(err, "slot")
		return nil, err
	}
	if isoWeekday(day) != slot.Day {
		err = appErrors.Clone(appErrors.ErrValidation, "date does not fall on the slot's weekday")
		return nil, err
	}

	session := &models.ClassSession{
		TenantID:    tenantID,
		PlanID:      &plan.ID,
		TermID:      slot.TermID,
		Date:        day,
		SlotID:      plan.SlotID,
		SectionID:   plan.SectionID,
		ProfessorID: plan.ProfessorID,
		RoomID:      plan.RoomID,
		Status:      models.SessionStatusPlanned,
	}

	result, err := s.admit(ctx, tx, session)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit session")
	}
	s.finishAdmit(tenantID, actor, result)
	return result, nil
}

// CreateExtra admits a standalone EXTRA session not derived from any plan.
func (s *SessionService) CreateExtra(ctx context.Context, tenantID string, actor *string, req CreateExtraSessionRequest) (*SessionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	day, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	slot, err := s.slots.FindByID(ctx, tenantID, req.SlotID)
	if err != nil {
		return nil, scopeError(err, "slot")
	}
	if isoWeekday(day) != slot.Day {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date does not fall on the slot's weekday")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	session := &models.ClassSession{
		TenantID:    tenantID,
		TermID:      slot.TermID,
		Date:        day,
		SlotID:      req.SlotID,
		SectionID:   req.SectionID,
		ProfessorID: req.ProfessorID,
		RoomID:      req.RoomID,
		Status:      models.SessionStatusExtra,
	}

	result, err := s.admit(ctx, tx, session)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit session")
	}
	s.finishAdmit(tenantID, actor, result)
	return result, nil
}

// Get loads a single session within the tenant.
func (s *SessionService) Get(ctx context.Context, tenantID, sessionID string) (*models.ClassSession, error) {
	session, err := s.sessions.FindByID(ctx, nil, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// List returns sessions matching the filter with pagination metadata.
func (s *SessionService) List(ctx context.Context, tenantID string, filter models.SessionFilter) ([]models.ClassSession, *models.Pagination, error) {
	sessions, total, err := s.sessions.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return sessions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Cancel terminally cancels a live session, releasing its dated keys.
func (s *SessionService) Cancel(ctx context.Context, tenantID string, actor *string, sessionID string, reason *string) (*models.ClassSession, error) {
	return s.transition(ctx, tenantID, actor, sessionID, models.SessionStatusCancelled, reason)
}

// Complete marks a live session as having taken place.
func (s *SessionService) Complete(ctx context.Context, tenantID string, actor *string, sessionID string) (*models.ClassSession, error) {
	return s.transition(ctx, tenantID, actor, sessionID, models.SessionStatusCompleted, nil)
}

// Reschedule retires a live session as RESCHEDULED and admits a replacement
// in one transaction. The old session's keys are released before the new ones
// are claimed, so moving within the same (date, slot) pair works. The
// replacement chain is walked first; a loop aborts the whole operation.
func (s *SessionService) Reschedule(ctx context.Context, tenantID string, actor *string, sessionID string, req RescheduleSessionRequest) (*SessionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	day, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	slot, err := s.slots.FindByID(ctx, tenantID, req.SlotID)
	if err != nil {
		return nil, scopeError(err, "slot")
	}
	if isoWeekday(day) != slot.Day {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date does not fall on the slot's weekday")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	old, err := s.sessions.FindByIDForUpdate(ctx, tx, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "session not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock session")
		return nil, err
	}
	if old.Status.Terminal() {
		transition := &models.InvalidStateTransitionError{Entity: "session", From: string(old.Status), To: string(models.SessionStatusRescheduled)}
		err = appErrors.Wrap(transition, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, transition.Error())
		return nil, err
	}

	if err = s.checkReplacementChain(ctx, tx, tenantID, old); err != nil {
		return nil, err
	}

	// Retire the old session first so the new one can reuse its keys.
	reason := req.Reason
	if err = s.sessions.UpdateStatus(ctx, tx, tenantID, old.ID, models.SessionStatusRescheduled, &reason); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire session")
		return nil, err
	}

	professorID := old.ProfessorID
	if req.ProfessorID != nil {
		professorID = *req.ProfessorID
	}
	replacement := &models.ClassSession{
		TenantID:          tenantID,
		PlanID:            old.PlanID,
		TermID:            slot.TermID,
		Date:              day,
		SlotID:            req.SlotID,
		SectionID:         old.SectionID,
		ProfessorID:       professorID,
		RoomID:            req.RoomID,
		Status:            models.SessionStatusPlanned,
		ReplacesSessionID: &old.ID,
	}

	result, err := s.admit(ctx, tx, replacement)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit reschedule")
	}

	s.observeTransition(models.SessionStatusRescheduled)
	if s.audit != nil {
		s.audit.Record(tenantID, "class_sessions", old.ID, models.AuditActionUpdate, actor, old, map[string]any{
			"status":        models.SessionStatusRescheduled,
			"change_reason": req.Reason,
			"replaced_by":   result.Session.ID,
		})
	}
	s.finishAdmit(tenantID, actor, result)
	s.logger.Info("session rescheduled",
		zap.String("old_session_id", old.ID),
		zap.String("new_session_id", result.Session.ID),
		zap.String("tenant_id", tenantID))
	return result, nil
}

// admit reserves the dated keys and evaluates rules for a new session, then
// inserts it on the caller's transaction. The caller commits.
func (s *SessionService) admit(ctx context.Context, tx *sqlx.Tx, session *models.ClassSession) (*SessionResult, error) {
	ignoreID := ""
	if session.ReplacesSessionID != nil {
		ignoreID = *session.ReplacesSessionID
	}
	if err := s.conflicts.ReserveSessionSlot(ctx, tx, session.TenantID, session.Date, session.SlotID, session.RoomID, session.ProfessorID, ignoreID); err != nil {
		s.observeReservation("session", "conflict")
		return nil, wrapReservationError(err)
	}

	date := session.Date
	verdict, err := s.rules.Evaluate(ctx, tx, Candidate{
		TenantID:    session.TenantID,
		SectionID:   session.SectionID,
		ProfessorID: session.ProfessorID,
		RoomID:      session.RoomID,
		SlotID:      session.SlotID,
		Date:        &date,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rule evaluation failed")
	}
	if !verdict.Admissible() {
		if s.metrics != nil {
			s.metrics.ObserveRuleDenial(verdict.Denial.Kind)
		}
		return nil, wrapRuleDenial(verdict.Denial)
	}

	if err := s.sessions.Create(ctx, tx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return &SessionResult{Session: session, Warnings: verdict.Warnings}, nil
}

func (s *SessionService) finishAdmit(tenantID string, actor *string, result *SessionResult) {
	s.observeReservation("session", "granted")
	if s.audit != nil {
		s.audit.Record(tenantID, "class_sessions", result.Session.ID, models.AuditActionInsert, actor, nil, result.Session)
	}
}

// checkReplacementChain walks the back-references from the session being
// rescheduled. The chain must be finite and loop-free; a visited set catches
// corrupt data before it can grow.
func (s *SessionService) checkReplacementChain(ctx context.Context, tx *sqlx.Tx, tenantID string, start *models.ClassSession) error {
	visited := map[string]bool{start.ID: true}
	current := start
	for current.ReplacesSessionID != nil {
		next := *current.ReplacesSessionID
		if visited[next] {
			cycle := &models.CycleError{SessionID: next}
			return appErrors.Wrap(cycle, appErrors.ErrCycleDetected.Code, appErrors.ErrCycleDetected.Status, cycle.Error())
		}
		visited[next] = true
		prev, err := s.sessions.FindByID(ctx, tx, tenantID, next)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Dangling back-reference ends the chain.
				return nil
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to walk replacement chain")
		}
		current = prev
	}
	return nil
}

func (s *SessionService) transition(ctx context.Context, tenantID string, actor *string, sessionID string, to models.SessionStatus, reason *string) (*models.ClassSession, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	session, err := s.sessions.FindByIDForUpdate(ctx, tx, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "session not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock session")
		return nil, err
	}
	if session.Status.Terminal() {
		transition := &models.InvalidStateTransitionError{Entity: "session", From: string(session.Status), To: string(to)}
		err = appErrors.Wrap(transition, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, transition.Error())
		return nil, err
	}

	previous := *session
	if err = s.sessions.UpdateStatus(ctx, tx, tenantID, session.ID, to, reason); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
		return nil, err
	}
	session.Status = to
	if reason != nil {
		session.ChangeReason = reason
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit session transition")
	}

	s.observeTransition(to)
	if s.audit != nil {
		s.audit.Record(tenantID, "class_sessions", session.ID, models.AuditActionUpdate, actor, &previous, session)
	}
	s.logger.Info("session transitioned",
		zap.String("session_id", session.ID),
		zap.String("from", string(previous.Status)),
		zap.String("to", string(to)))
	return session, nil
}

func (s *SessionService) observeReservation(scope, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveReservation(scope, outcome)
	}
}

func (s *SessionService) observeTransition(to models.SessionStatus) {
	if s.metrics != nil {
		s.metrics.ObserveSessionTransition(string(to))
	}
}

func parseDate(value string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date, expected YYYY-MM-DD")
	}
	return day, nil
}

// isoWeekday maps Go's Sunday-first weekday to ISO numbering, 1=Monday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
