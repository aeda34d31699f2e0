package models

import "time"

// PlanStatus captures the lifecycle of a standing weekly assignment.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusPaused    PlanStatus = "PAUSED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// ClassPlan is the standing weekly assignment of a section to a professor,
// room and slot. For a given slot at most one ACTIVE plan may hold the room
// and at most one may hold the professor; the conflict index enforces this.
type ClassPlan struct {
	ID          string     `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	Department  string     `db:"department" json:"department"`
	SectionID   string     `db:"section_id" json:"section_id"`
	ProfessorID string     `db:"professor_id" json:"professor_id"`
	RoomID      string     `db:"room_id" json:"room_id"`
	SlotID      string     `db:"slot_id" json:"slot_id"`
	Status      PlanStatus `db:"status" json:"status"`
	Note        *string    `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// PlanFilter describes query params for listing plans.
type PlanFilter struct {
	TermID      string
	ProfessorID string
	RoomID      string
	SlotID      string
	Status      PlanStatus
	Page        int
	PageSize    int
}
