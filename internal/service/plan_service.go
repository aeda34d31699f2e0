package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

type planRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, plan *models.ClassPlan) error
	FindByID(ctx context.Context, tenantID, id string) (*models.ClassPlan, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.ClassPlan, error)
	List(ctx context.Context, tenantID string, filter models.PlanFilter) ([]models.ClassPlan, int, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, status models.PlanStatus) error
}

type planSectionReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Section, error)
}

type planRoomReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Room, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditRecorder interface {
	Record(tenantID, tableName, rowID, action string, actor *string, oldValue, newValue interface{})
}

type occupancyInvalidator interface {
	Invalidate(ctx context.Context, keys ...string)
	OccupancyKey(tenantID, slotID string) string
}

type engineObserver interface {
	ObserveReservation(scope, outcome string)
	ObserveRuleDenial(kind string)
	ObserveSessionTransition(to string)
	ObserveRunFinalization(status string)
}

// CreatePlanRequest describes payload for creating a weekly plan.
type CreatePlanRequest struct {
	Department  string  `json:"department" validate:"required"`
	SectionID   string  `json:"section_id" validate:"required,uuid"`
	ProfessorID string  `json:"professor_id" validate:"required,uuid"`
	RoomID      string  `json:"room_id" validate:"required,uuid"`
	SlotID      string  `json:"slot_id" validate:"required,uuid"`
	Note        *string `json:"note"`
}

// PlanResult pairs a plan with the non-blocking findings gathered while
// admitting it.
type PlanResult struct {
	Plan     *models.ClassPlan `json:"plan"`
	Warnings []string          `json:"warnings,omitempty"`
}

// PlanService owns the lifecycle of weekly class plans. Every admission runs
// inside one transaction: conflict reservation, rule evaluation and the
// insert either all land or none do.
type PlanService struct {
	plans      planRepository
	sections   planSectionReader
	rooms      planRoomReader
	slots      slotReader
	professors professorReader
	conflicts  *ConflictIndex
	rules      *RuleEngine
	tx         txProvider
	audit      auditRecorder
	cache      occupancyInvalidator
	metrics    engineObserver
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewPlanService wires plan dependencies. audit, cache and metrics may be nil.
func NewPlanService(
	plans planRepository,
	sections planSectionReader,
	rooms planRoomReader,
	slots slotReader,
	professors professorReader,
	conflicts *ConflictIndex,
	rules *RuleEngine,
	tx txProvider,
	audit auditRecorder,
	cache occupancyInvalidator,
	metrics engineObserver,
	validate *validator.Validate,
	logger *zap.Logger,
) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{
		plans:      plans,
		sections:   sections,
		rooms:      rooms,
		slots:      slots,
		professors: professors,
		conflicts:  conflicts,
		rules:      rules,
		tx:         tx,
		audit:      audit,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// Create admits a new ACTIVE plan. The room key is reserved before the
// professor key, rules run after reservation, and a denial on either path
// rolls the whole admission back.
func (s *PlanService) Create(ctx context.Context, tenantID string, actor *string, req CreatePlanRequest) (*PlanResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}

	section, slot, err := s.resolveReferences(ctx, tenantID, req.SectionID, req.ProfessorID, req.RoomID, req.SlotID)
	if err != nil {
		return nil, err
	}
	if section.TermID != slot.TermID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section and slot belong to different terms")
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

	if err = s.conflicts.ReservePlanSlot(ctx, tx, tenantID, req.SlotID, req.RoomID, req.ProfessorID, ""); err != nil {
		s.observeReservation("plan", "conflict")
		return nil, wrapReservationError(err)
	}

	verdict, err := s.rules.Evaluate(ctx, tx, Candidate{
		TenantID:    tenantID,
		SectionID:   req.SectionID,
		ProfessorID: req.ProfessorID,
		RoomID:      req.RoomID,
		SlotID:      req.SlotID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rule evaluation failed")
	}
	if !verdict.Admissible() {
		err = wrapRuleDenial(verdict.Denial)
		s.observeDenial(verdict.Denial)
		return nil, err
	}

	plan := &models.ClassPlan{
		TenantID:    tenantID,
		Department:  req.Department,
		SectionID:   req.SectionID,
		ProfessorID: req.ProfessorID,
		RoomID:      req.RoomID,
		SlotID:      req.SlotID,
		Status:      models.PlanStatusActive,
		Note:        req.Note,
	}
	if err = s.plans.Create(ctx, tx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan")
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit plan")
	}

	s.observeReservation("plan", "granted")
	s.recordAudit(tenantID, plan.ID, models.AuditActionInsert, actor, nil, plan)
	s.invalidateOccupancy(ctx, tenantID, plan.SlotID)
	s.logger.Info("plan created",
		zap.String("plan_id", plan.ID),
		zap.String("tenant_id", tenantID),
		zap.String("slot_id", plan.SlotID))

	return &PlanResult{Plan: plan, Warnings: verdict.Warnings}, nil
}

// Get loads a single plan within the tenant.
func (s *PlanService) Get(ctx context.Context, tenantID, planID string) (*models.ClassPlan, error) {
	plan, err := s.plans.FindByID(ctx, tenantID, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	return plan, nil
}

// List returns plans matching the filter with pagination metadata.
func (s *PlanService) List(ctx context.Context, tenantID string, filter models.PlanFilter) ([]models.ClassPlan, *models.Pagination, error) {
	plans, total, err := s.plans.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return plans, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Pause moves an ACTIVE plan to PAUSED, releasing its slot keys for others.
func (s *PlanService) Pause(ctx context.Context, tenantID string, actor *string, planID string) (*models.ClassPlan, error) {
	return s.transition(ctx, tenantID, actor, planID, models.PlanStatusPaused, nil)
}

// Cancel terminally retires a plan from ACTIVE or PAUSED.
func (s *PlanService) Cancel(ctx context.Context, tenantID string, actor *string, planID string) (*models.ClassPlan, error) {
	return s.transition(ctx, tenantID, actor, planID, models.PlanStatusCancelled, nil)
}

// Resume reactivates a PAUSED plan. The slot keys may have been taken in the
// meantime, so resumption re-reserves and re-evaluates like a fresh admission.
func (s *PlanService) Resume(ctx context.Context, tenantID string, actor *string, planID string) (*PlanResult, error) {
	var warnings []string
	plan, err := s.transition(ctx, tenantID, actor, planID, models.PlanStatusActive, &warnings)
	if err != nil {
		return nil, err
	}
	return &PlanResult{Plan: plan, Warnings: warnings}, nil
}

// EvaluateCandidate is the dry-run admission check: no locks are taken and
// nothing is written, so a clear result can still lose the race at commit.
func (s *PlanService) EvaluateCandidate(ctx context.Context, tenantID string, req CreatePlanRequest) (*Verdict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid candidate payload")
	}
	if _, _, err := s.resolveReferences(ctx, tenantID, req.SectionID, req.ProfessorID, req.RoomID, req.SlotID); err != nil {
		return nil, err
	}

	if err := s.conflicts.PreviewPlanSlot(ctx, tenantID, req.SlotID, req.RoomID, req.ProfessorID); err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			return &Verdict{Denial: &models.RuleViolationError{
				RuleRef: string(conflict.Kind),
				Kind:    "conflict",
				Reason:  conflict.Error(),
			}}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "conflict preview failed")
	}

	verdict, err := s.rules.Evaluate(ctx, nil, Candidate{
		TenantID:    tenantID,
		SectionID:   req.SectionID,
		ProfessorID: req.ProfessorID,
		RoomID:      req.RoomID,
		SlotID:      req.SlotID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rule evaluation failed")
	}
	return verdict, nil
}

var planTransitions = map[models.PlanStatus][]models.PlanStatus{
	models.PlanStatusActive: {models.PlanStatusPaused, models.PlanStatusCancelled},
	models.PlanStatusPaused: {models.PlanStatusActive, models.PlanStatusCancelled},
}

func planTransitionAllowed(from, to models.PlanStatus) bool {
	for _, next := range planTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *PlanService) transition(ctx context.Context, tenantID string, actor *string, planID string, to models.PlanStatus, warnings *[]string) (*models.ClassPlan, error) {
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

	if !planTransitionAllowed(plan.Status, to) {
		transition := &models.InvalidStateTransitionError{Entity: "plan", From: string(plan.Status), To: string(to)}
		err = appErrors.Wrap(transition, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, transition.Error())
		return nil, err
	}

	// Resumption competes for the slot keys like a fresh admission.
	if to == models.PlanStatusActive {
		if err = s.conflicts.ReservePlanSlot(ctx, tx, tenantID, plan.SlotID, plan.RoomID, plan.ProfessorID, plan.ID); err != nil {
			s.observeReservation("plan", "conflict")
			return nil, wrapReservationError(err)
		}
		var verdict *Verdict
		verdict, err = s.rules.Evaluate(ctx, tx, Candidate{
			TenantID:    tenantID,
			SectionID:   plan.SectionID,
			ProfessorID: plan.ProfessorID,
			RoomID:      plan.RoomID,
			SlotID:      plan.SlotID,
		})
		if err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rule evaluation failed")
			return nil, err
		}
		if !verdict.Admissible() {
			s.observeDenial(verdict.Denial)
			err = wrapRuleDenial(verdict.Denial)
			return nil, err
		}
		if warnings != nil {
			*warnings = verdict.Warnings
		}
	}

	previous := *plan
	if err = s.plans.UpdateStatus(ctx, tx, tenantID, plan.ID, to); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update plan status")
		return nil, err
	}
	plan.Status = to

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit plan transition")
	}

	s.recordAudit(tenantID, plan.ID, models.AuditActionUpdate, actor, &previous, plan)
	s.invalidateOccupancy(ctx, tenantID, plan.SlotID)
	s.logger.Info("plan transitioned",
		zap.String("plan_id", plan.ID),
		zap.String("from", string(previous.Status)),
		zap.String("to", string(to)))

	return plan, nil
}

func (s *PlanService) resolveReferences(ctx context.Context, tenantID, sectionID, professorID, roomID, slotID string) (*models.Section, *models.Slot, error) {
	section, err := s.sections.FindByID(ctx, tenantID, sectionID)
	if err != nil {
		return nil, nil, scopeError(err, "section")
	}
	if _, err := s.professors.FindByID(ctx, tenantID, professorID); err != nil {
		return nil, nil, scopeError(err, "professor")
	}
	if _, err := s.rooms.FindByID(ctx, tenantID, roomID); err != nil {
		return nil, nil, scopeError(err, "room")
	}
	slot, err := s.slots.FindByID(ctx, tenantID, slotID)
	if err != nil {
		return nil, nil, scopeError(err, "slot")
	}
	return section, slot, nil
}

func (s *PlanService) recordAudit(tenantID, rowID, action string, actor *string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(tenantID, "class_plans", rowID, action, actor, oldValue, newValue)
}

func (s *PlanService) invalidateOccupancy(ctx context.Context, tenantID, slotID string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, s.cache.OccupancyKey(tenantID, slotID))
}

func (s *PlanService) observeReservation(scope, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveReservation(scope, outcome)
	}
}

func (s *PlanService) observeDenial(denial *models.RuleViolationError) {
	if s.metrics != nil && denial != nil {
		s.metrics.ObserveRuleDenial(denial.Kind)
	}
}

// scopeError maps a tenant-scoped lookup miss to a not-found. A foreign
// tenant's ID is indistinguishable from a nonexistent one on purpose.
func scopeError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}

func wrapReservationError(err error) error {
	var conflict *models.ConflictError
	if errors.As(err, &conflict) {
		return appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reservation failed")
}

func wrapRuleDenial(denial *models.RuleViolationError) error {
	return appErrors.Wrap(denial, appErrors.ErrRuleViolation.Code, appErrors.ErrRuleViolation.Status, denial.Error())
}
