package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	"github.com/Milankumar13/automated-timetable-backend/pkg/config"
)

type ruleReader interface {
	ListActiveRules(ctx context.Context, exec sqlx.ExtContext, tenantID string) ([]models.AdminRule, error)
	FindBlocks(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID, slotID string) ([]models.BlockedSlot, error)
}

type availabilityReader interface {
	FindAvailability(ctx context.Context, exec sqlx.ExtContext, tenantID, professorID, slotID string) (*models.ProfessorAvailability, error)
}

type planCounter interface {
	CountActiveByProfessorAndDay(ctx context.Context, exec sqlx.ExtContext, tenantID, professorID string, day int) (int, error)
	CountActiveBySection(ctx context.Context, exec sqlx.ExtContext, tenantID, sectionID string) (int, error)
}

type sessionCounter interface {
	CountLiveByProfessorAndDate(ctx context.Context, exec sqlx.ExtContext, tenantID, professorID string, date time.Time) (int, error)
}

type slotReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Slot, error)
}

type professorReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Professor, error)
}

// Candidate is a proposed (section, professor, room, slot) combination. Date
// is set for dated session admissions and nil for weekly plan admissions.
type Candidate struct {
	TenantID    string
	SectionID   string
	ProfessorID string
	RoomID      string
	SlotID      string
	Date        *time.Time
}

// Verdict is the outcome of rule evaluation. A nil Denial means admissible.
// Warnings carry non-blocking findings such as unknown rule kinds; they are
// never a silent pass and never fatal.
type Verdict struct {
	Denial   *models.RuleViolationError `json:"denial,omitempty"`
	Warnings []string                   `json:"warnings,omitempty"`
}

// Admissible reports whether the candidate passed every blocking check.
func (v *Verdict) Admissible() bool {
	return v != nil && v.Denial == nil
}

// RuleEngine decides whether a candidate is admissible under blocked slots,
// professor availability and the tenant's active admin rules. Evaluation
// order is fixed so the first denial is deterministic: blocks, availability,
// room/slot-scoped rules, global rules. Counting reads run on the caller's
// executor so they share the commit transaction.
type RuleEngine struct {
	rules        ruleReader
	availability availabilityReader
	plans        planCounter
	sessions     sessionCounter
	slots        slotReader
	professors   professorReader
	cfg          config.EngineConfig
	logger       *zap.Logger
}

// NewRuleEngine wires the engine.
func NewRuleEngine(
	rules ruleReader,
	availability availabilityReader,
	plans planCounter,
	sessions sessionCounter,
	slots slotReader,
	professors professorReader,
	cfg config.EngineConfig,
	logger *zap.Logger,
) *RuleEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleEngine{
		rules:        rules,
		availability: availability,
		plans:        plans,
		sessions:     sessions,
		slots:        slots,
		professors:   professors,
		cfg:          cfg,
		logger:       logger,
	}
}

// Evaluate runs the full admission check for a candidate. The returned error
// is infrastructural only; rule denials ride in the verdict.
func (e *RuleEngine) Evaluate(ctx context.Context, exec sqlx.ExtContext, cand Candidate) (*Verdict, error) {
	verdict := &Verdict{}

	// 1. Blocked slots: exact room match or any-room wildcard.
	blocks, err := e.rules.FindBlocks(ctx, exec, cand.TenantID, cand.RoomID, cand.SlotID)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		block := blocks[0]
		reason := "slot is blocked"
		if block.Reason != nil {
			reason = fmt.Sprintf("slot is blocked: %s", *block.Reason)
		}
		verdict.Denial = &models.RuleViolationError{RuleRef: block.ID, Kind: "blocked_slot", Reason: reason}
		return verdict, nil
	}

	// 2. Professor availability: an explicit available=false denies; a
	// missing record resolves through the configured default policy.
	avail, err := e.availability.FindAvailability(ctx, exec, cand.TenantID, cand.ProfessorID, cand.SlotID)
	switch {
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err == nil && !avail.Available:
		verdict.Denial = &models.RuleViolationError{
			RuleRef: avail.ID,
			Kind:    "professor_availability",
			Reason:  "professor is unavailable in this slot",
		}
		return verdict, nil
	case errors.Is(err, sql.ErrNoRows) && e.cfg.AvailabilityDefault == config.AvailabilityDefaultUnavailable:
		verdict.Denial = &models.RuleViolationError{
			Kind:   "professor_availability",
			Reason: "no availability record and default policy is unavailable",
		}
		return verdict, nil
	}

	rules, err := e.rules.ListActiveRules(ctx, exec, cand.TenantID)
	if err != nil {
		return nil, err
	}

	// 3. Scoped rules before 4. global rules, each group in creation order.
	for _, scopedPass := range []bool{true, false} {
		for i := range rules {
			rule := rules[i]
			scoped := rule.RoomID != nil || rule.SlotID != nil
			if scoped != scopedPass {
				continue
			}
			if rule.RoomID != nil && *rule.RoomID != cand.RoomID {
				continue
			}
			if rule.SlotID != nil && *rule.SlotID != cand.SlotID {
				continue
			}
			if !scoped && !rule.IsGlobal {
				// Unscoped rows are rejected at creation; skip any stragglers.
				continue
			}

			denial, warning, err := e.applyRule(ctx, exec, cand, &rule)
			if err != nil {
				return nil, err
			}
			if warning != "" {
				verdict.Warnings = append(verdict.Warnings, warning)
			}
			if denial != nil {
				verdict.Denial = denial
				return verdict, nil
			}
		}
	}

	// Professor soft knobs surface as warnings only.
	if warning, err := e.checkProfessorKnobs(ctx, exec, cand); err != nil {
		return nil, err
	} else if warning != "" {
		verdict.Warnings = append(verdict.Warnings, warning)
	}

	return verdict, nil
}

func (e *RuleEngine) applyRule(ctx context.Context, exec sqlx.ExtContext, cand Candidate, rule *models.AdminRule) (*models.RuleViolationError, string, error) {
	params, err := rule.DecodeParams()
	if err != nil {
		var unknown *models.UnknownRuleKindError
		if errors.As(err, &unknown) {
			return nil, unknown.Error(), nil
		}
		// Malformed payload of a known kind: surface as a warning too, but
		// log it since it needs operator attention.
		e.logger.Sugar().Warnw("rule parameter decode failed", "rule_id", rule.ID, "kind", rule.Kind, "error", err)
		return nil, fmt.Sprintf("rule %s: malformed parameters", rule.ID), nil
	}

	switch p := params.(type) {
	case models.RoomClosedParams:
		reason := "room is closed"
		if p.Reason != "" {
			reason = fmt.Sprintf("room is closed: %s", p.Reason)
		}
		return &models.RuleViolationError{RuleRef: rule.ID, Kind: string(rule.Kind), Reason: reason}, "", nil

	case models.MaxClassesPerDayParams:
		if p.Max <= 0 {
			return nil, "", nil
		}
		count, err := e.countProfessorDay(ctx, exec, cand)
		if err != nil {
			return nil, "", err
		}
		if count >= p.Max {
			return &models.RuleViolationError{
				RuleRef: rule.ID,
				Kind:    string(rule.Kind),
				Reason:  fmt.Sprintf("professor already has %d of %d classes that day", count, p.Max),
			}, "", nil
		}
		return nil, "", nil

	case models.TermLimitParams:
		if p.MaxPerTerm <= 0 {
			return nil, "", nil
		}
		count, err := e.plans.CountActiveBySection(ctx, exec, cand.TenantID, cand.SectionID)
		if err != nil {
			return nil, "", err
		}
		if count >= p.MaxPerTerm {
			return &models.RuleViolationError{
				RuleRef: rule.ID,
				Kind:    string(rule.Kind),
				Reason:  fmt.Sprintf("section already has %d of %d plans this term", count, p.MaxPerTerm),
			}, "", nil
		}
		return nil, "", nil

	case models.CustomParams:
		return nil, fmt.Sprintf("custom rule %s not evaluated automatically", rule.ID), nil
	}

	return nil, "", nil
}

// countProfessorDay counts committed load for the candidate's weekday: dated
// sessions when the candidate carries a date, weekly plans otherwise.
func (e *RuleEngine) countProfessorDay(ctx context.Context, exec sqlx.ExtContext, cand Candidate) (int, error) {
	if cand.Date != nil {
		return e.sessions.CountLiveByProfessorAndDate(ctx, exec, cand.TenantID, cand.ProfessorID, *cand.Date)
	}
	slot, err := e.slots.FindByID(ctx, cand.TenantID, cand.SlotID)
	if err != nil {
		return 0, err
	}
	return e.plans.CountActiveByProfessorAndDay(ctx, exec, cand.TenantID, cand.ProfessorID, slot.Day)
}

func (e *RuleEngine) checkProfessorKnobs(ctx context.Context, exec sqlx.ExtContext, cand Candidate) (string, error) {
	prof, err := e.professors.FindByID(ctx, cand.TenantID, cand.ProfessorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if prof.MaxClassesPerDay == nil || *prof.MaxClassesPerDay <= 0 {
		return "", nil
	}
	count, err := e.countProfessorDay(ctx, exec, cand)
	if err != nil {
		return "", err
	}
	if count >= *prof.MaxClassesPerDay {
		return fmt.Sprintf("professor %s exceeds preferred daily load (%d)", prof.DisplayName, *prof.MaxClassesPerDay), nil
	}
	return "", nil
}
