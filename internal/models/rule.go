package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RuleKind identifies how a rule's parameter payload is interpreted.
type RuleKind string

const (
	RuleKindMaxClassesPerDay RuleKind = "max_classes_per_day"
	RuleKindRoomClosed       RuleKind = "room_closed"
	RuleKindTermLimit        RuleKind = "term_limit"
	RuleKindCustom           RuleKind = "custom"
)

// AdminRule is a configured constraint limiting valid assignments. It is
// either global or scoped to a room and/or a slot; a rule with no scope at
// all is invalid.
type AdminRule struct {
	ID        string         `db:"id" json:"id"`
	TenantID  string         `db:"tenant_id" json:"tenant_id"`
	Kind      RuleKind       `db:"kind" json:"kind"`
	IsGlobal  bool           `db:"is_global" json:"is_global"`
	RoomID    *string        `db:"room_id" json:"room_id,omitempty"`
	SlotID    *string        `db:"slot_id" json:"slot_id,omitempty"`
	Parameter types.JSONText `db:"parameter" json:"parameter"`
	Note      *string        `db:"note" json:"note,omitempty"`
	IsActive  bool           `db:"is_active" json:"is_active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Scoped reports whether the rule has at least one of {global, room, slot}.
func (r *AdminRule) Scoped() bool {
	return r.IsGlobal || r.RoomID != nil || r.SlotID != nil
}

// MaxClassesPerDayParams caps a professor's committed classes per weekday.
type MaxClassesPerDayParams struct {
	Max int `json:"max"`
}

// RoomClosedParams marks a scoped room as closed for scheduling.
type RoomClosedParams struct {
	Reason string `json:"reason,omitempty"`
}

// TermLimitParams caps ACTIVE plans per section within a term.
type TermLimitParams struct {
	MaxPerTerm int `json:"max_per_term"`
}

// CustomParams carries free-form operator-defined parameters.
type CustomParams map[string]interface{}

// ErrUnknownRuleKind distinguishes "we do not understand this rule" from
// "no constraint applies" so it can surface as a warning, never a silent pass.
type UnknownRuleKindError struct {
	RuleID string
	Kind   RuleKind
}

func (e *UnknownRuleKindError) Error() string {
	return fmt.Sprintf("unknown rule kind %q (rule %s)", e.Kind, e.RuleID)
}

// DecodeParams returns the typed parameter payload for the rule's kind.
func (r *AdminRule) DecodeParams() (interface{}, error) {
	raw := []byte(r.Parameter)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch r.Kind {
	case RuleKindMaxClassesPerDay:
		var p MaxClassesPerDayParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", r.Kind, err)
		}
		return p, nil
	case RuleKindRoomClosed:
		var p RoomClosedParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", r.Kind, err)
		}
		return p, nil
	case RuleKindTermLimit:
		var p TermLimitParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", r.Kind, err)
		}
		return p, nil
	case RuleKindCustom:
		var p CustomParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", r.Kind, err)
		}
		return p, nil
	default:
		return nil, &UnknownRuleKindError{RuleID: r.ID, Kind: r.Kind}
	}
}

// BlockedSlot is a hard exclusion for a (room, slot) pair. A nil room blocks
// the slot for every room.
type BlockedSlot struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	RoomID    *string   `db:"room_id" json:"room_id,omitempty"`
	SlotID    string    `db:"slot_id" json:"slot_id"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
