package models

import "fmt"

// ConflictKind says which uniqueness key a reservation collided on.
type ConflictKind string

const (
	ConflictRoomTaken ConflictKind = "ROOM_TAKEN"
	ConflictProfTaken ConflictKind = "PROF_TAKEN"
)

// HolderType identifies what currently holds a contested key.
type HolderType string

const (
	HolderPlan       HolderType = "plan"
	HolderSession    HolderType = "session"
	HolderAssignment HolderType = "assignment"
)

// ConflictError reports a failed reservation: which key collided and what
// holds it, so callers can retry with a different room or slot.
type ConflictError struct {
	Kind        ConflictKind `json:"kind"`
	HolderType  HolderType   `json:"holder_type"`
	HolderID    string       `json:"holder_id"`
	SlotID      string       `json:"slot_id"`
	RoomID      string       `json:"room_id,omitempty"`
	ProfessorID string       `json:"professor_id,omitempty"`
}

func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: slot %s held by %s %s", e.Kind, e.SlotID, e.HolderType, e.HolderID)
}

// Occupant names what holds one side of a slot key.
type Occupant struct {
	ID         string     `json:"id"`
	HolderType HolderType `json:"holder_type"`
	HolderID   string     `json:"holder_id"`
}

// SlotOccupancy is the read-only occupancy view of a slot: which rooms and
// professors are taken and by what. Served from a snapshot; may lag one
// transaction behind.
type SlotOccupancy struct {
	SlotID     string     `json:"slot_id"`
	Rooms      []Occupant `json:"rooms"`
	Professors []Occupant `json:"professors"`
}

// RuleViolationError reports a denial by an admin rule, blocked slot or
// availability record.
type RuleViolationError struct {
	RuleRef string `json:"rule_ref"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
}

func (e *RuleViolationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("rule %s (%s): %s", e.RuleRef, e.Kind, e.Reason)
}

// InvalidStateTransitionError rejects a transition out of a terminal state or
// along an edge the state machine does not define.
type InvalidStateTransitionError struct {
	Entity string `json:"entity"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func (e *InvalidStateTransitionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: invalid transition %s -> %s", e.Entity, e.From, e.To)
}

// ScopeViolationError rejects rules without any scope and operations whose
// referenced entities belong to another tenant.
type ScopeViolationError struct {
	Reason string `json:"reason"`
}

func (e *ScopeViolationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Reason
}

// CycleError rejects a reschedule that would close a replacement chain loop.
type CycleError struct {
	SessionID string `json:"session_id"`
}

func (e *CycleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("replacement chain cycle involving session %s", e.SessionID)
}

// AlreadyFinalizedError rejects a second finalize call on a run.
type AlreadyFinalizedError struct {
	RunID  string    `json:"run_id"`
	Status RunStatus `json:"status"`
}

func (e *AlreadyFinalizedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("run %s already finalized as %s", e.RunID, e.Status)
}

// BatchItemError ties a rejection to its position in a commit batch.
type BatchItemError struct {
	Index     int    `json:"index"`
	SectionID string `json:"section_id,omitempty"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// BatchCommitError aggregates every offending assignment of a batch so the
// caller can correct all of them in one round trip.
type BatchCommitError struct {
	RunID string           `json:"run_id"`
	Items []BatchItemError `json:"items"`
}

func (e *BatchCommitError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("run %s: %d assignment(s) rejected", e.RunID, len(e.Items))
}
