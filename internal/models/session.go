package models

import "time"

// SessionStatus captures the lifecycle of a dated class occurrence.
type SessionStatus string

const (
	SessionStatusPlanned     SessionStatus = "PLANNED"
	SessionStatusCancelled   SessionStatus = "CANCELLED"
	SessionStatusRescheduled SessionStatus = "RESCHEDULED"
	SessionStatusExtra       SessionStatus = "EXTRA"
	SessionStatusCompleted   SessionStatus = "COMPLETED"
)

// Terminal reports whether a status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCancelled, SessionStatusRescheduled, SessionStatusCompleted:
		return true
	}
	return false
}

// ClassSession is a dated occurrence derived from a plan, or a standalone
// extra class. Its resolved resources may diverge from the parent plan when
// rescheduled. ReplacesSessionID is a lookup-only back-reference; the
// replacement relation must stay acyclic.
type ClassSession struct {
	ID                string        `db:"id" json:"id"`
	TenantID          string        `db:"tenant_id" json:"tenant_id"`
	PlanID            *string       `db:"plan_id" json:"plan_id,omitempty"`
	TermID            string        `db:"term_id" json:"term_id"`
	Date              time.Time     `db:"day_date" json:"date"`
	SlotID            string        `db:"slot_id" json:"slot_id"`
	SectionID         string        `db:"section_id" json:"section_id"`
	ProfessorID       string        `db:"professor_id" json:"professor_id"`
	RoomID            string        `db:"room_id" json:"room_id"`
	Status            SessionStatus `db:"status" json:"status"`
	ChangeReason      *string       `db:"change_reason" json:"change_reason,omitempty"`
	ReplacesSessionID *string       `db:"replaces_session_id" json:"replaces_session_id,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	PlanID      string
	ProfessorID string
	RoomID      string
	Status      SessionStatus
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
}
