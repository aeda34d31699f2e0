package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

type ruleRepositoryFull interface {
	CreateRule(ctx context.Context, rule *models.AdminRule) error
	ListRules(ctx context.Context, tenantID string) ([]models.AdminRule, error)
	CreateBlockedSlot(ctx context.Context, block *models.BlockedSlot) error
}

type availabilityWriter interface {
	UpsertAvailability(ctx context.Context, avail *models.ProfessorAvailability) error
}

// CreateRuleRequest describes payload for configuring an admin rule.
type CreateRuleRequest struct {
	Kind     string          `json:"kind" validate:"required"`
	IsGlobal bool            `json:"is_global"`
	RoomID   *string         `json:"room_id" validate:"omitempty,uuid"`
	SlotID   *string         `json:"slot_id" validate:"omitempty,uuid"`
	Param    json.RawMessage `json:"parameter"`
	Note     *string         `json:"note"`
}

// CreateBlockedSlotRequest blocks a (room, slot) pair, or a whole slot when
// room_id is omitted.
type CreateBlockedSlotRequest struct {
	RoomID *string `json:"room_id" validate:"omitempty,uuid"`
	SlotID string  `json:"slot_id" validate:"required,uuid"`
	Reason *string `json:"reason"`
}

// UpsertAvailabilityRequest records whether a professor can teach in a slot.
type UpsertAvailabilityRequest struct {
	ProfessorID string  `json:"professor_id" validate:"required,uuid"`
	SlotID      string  `json:"slot_id" validate:"required,uuid"`
	Available   *bool   `json:"available" validate:"required"`
	Note        *string `json:"note"`
}

// RuleResult pairs a stored rule with any findings from storing it, such as
// an unrecognized kind that evaluation will surface as a warning.
type RuleResult struct {
	Rule     *models.AdminRule `json:"rule"`
	Warnings []string          `json:"warnings,omitempty"`
}

// RuleService manages admin rules, blocked slots and professor availability.
type RuleService struct {
	rules        ruleRepositoryFull
	availability availabilityWriter
	rooms        planRoomReader
	slots        slotReader
	professors   professorReader
	audit        auditRecorder
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewRuleService wires rule dependencies. audit may be nil.
func NewRuleService(
	rules ruleRepositoryFull,
	availability availabilityWriter,
	rooms planRoomReader,
	slots slotReader,
	professors professorReader,
	audit auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
) *RuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{
		rules:        rules,
		availability: availability,
		rooms:        rooms,
		slots:        slots,
		professors:   professors,
		audit:        audit,
		validator:    validate,
		logger:       logger,
	}
}

// CreateRule stores an admin rule. A rule with no scope at all is rejected.
// An unrecognized kind is stored anyway and reported as a warning: future
// deployments may understand it, and evaluation degrades it to a warning too.
func (s *RuleService) CreateRule(ctx context.Context, tenantID string, actor *string, req CreateRuleRequest) (*RuleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule payload")
	}

	rule := &models.AdminRule{
		TenantID: tenantID,
		Kind:     models.RuleKind(req.Kind),
		IsGlobal: req.IsGlobal,
		RoomID:   req.RoomID,
		SlotID:   req.SlotID,
		Note:     req.Note,
		IsActive: true,
	}
	if len(req.Param) > 0 {
		rule.Parameter = types.JSONText(req.Param)
	}

	if !rule.Scoped() {
		scope := &models.ScopeViolationError{Reason: "rule must be global or scoped to a room and/or slot"}
		return nil, appErrors.Wrap(scope, appErrors.ErrScopeViolation.Code, appErrors.ErrScopeViolation.Status, scope.Reason)
	}
	if rule.RoomID != nil {
		if _, err := s.rooms.FindByID(ctx, tenantID, *rule.RoomID); err != nil {
			return nil, scopeError(err, "room")
		}
	}
	if rule.SlotID != nil {
		if _, err := s.slots.FindByID(ctx, tenantID, *rule.SlotID); err != nil {
			return nil, scopeError(err, "slot")
		}
	}

	var warnings []string
	if _, err := rule.DecodeParams(); err != nil {
		var unknown *models.UnknownRuleKindError
		if errors.As(err, &unknown) {
			warnings = append(warnings, unknown.Error())
			s.logger.Warn("storing rule of unknown kind",
				zap.String("tenant_id", tenantID),
				zap.String("kind", string(rule.Kind)))
		} else {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule parameter payload")
		}
	}

	if err := s.rules.CreateRule(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rule")
	}
	if s.audit != nil {
		s.audit.Record(tenantID, "admin_rules", rule.ID, models.AuditActionInsert, actor, nil, rule)
	}
	return &RuleResult{Rule: rule, Warnings: warnings}, nil
}

// ListRules returns the tenant's rules, active and inactive.
func (s *RuleService) ListRules(ctx context.Context, tenantID string) ([]models.AdminRule, error) {
	rules, err := s.rules.ListRules(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rules")
	}
	return rules, nil
}

// CreateBlockedSlot hard-excludes a (room, slot) pair from scheduling.
func (s *RuleService) CreateBlockedSlot(ctx context.Context, tenantID string, actor *string, req CreateBlockedSlotRequest) (*models.BlockedSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blocked slot payload")
	}
	if _, err := s.slots.FindByID(ctx, tenantID, req.SlotID); err != nil {
		return nil, scopeError(err, "slot")
	}
	if req.RoomID != nil {
		if _, err := s.rooms.FindByID(ctx, tenantID, *req.RoomID); err != nil {
			return nil, scopeError(err, "room")
		}
	}

	block := &models.BlockedSlot{
		TenantID: tenantID,
		RoomID:   req.RoomID,
		SlotID:   req.SlotID,
		Reason:   req.Reason,
	}
	if err := s.rules.CreateBlockedSlot(ctx, block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create blocked slot")
	}
	if s.audit != nil {
		s.audit.Record(tenantID, "blocked_slots", block.ID, models.AuditActionInsert, actor, nil, block)
	}
	return block, nil
}

// UpsertAvailability records a professor's availability for a slot, replacing
// any earlier record for the same pair.
func (s *RuleService) UpsertAvailability(ctx context.Context, tenantID string, actor *string, req UpsertAvailabilityRequest) (*models.ProfessorAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if _, err := s.professors.FindByID(ctx, tenantID, req.ProfessorID); err != nil {
		return nil, scopeError(err, "professor")
	}
	if _, err := s.slots.FindByID(ctx, tenantID, req.SlotID); err != nil {
		return nil, scopeError(err, "slot")
	}

	avail := &models.ProfessorAvailability{
		TenantID:    tenantID,
		ProfessorID: req.ProfessorID,
		SlotID:      req.SlotID,
		Available:   *req.Available,
		Note:        req.Note,
	}
	if err := s.availability.UpsertAvailability(ctx, avail); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert availability")
	}
	if s.audit != nil {
		s.audit.Record(tenantID, "professor_availability", avail.ID, models.AuditActionUpdate, actor, nil, avail)
	}
	return avail, nil
}
