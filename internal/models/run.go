package models

import "time"

// RunStatus captures the lifecycle of a scheduling attempt.
type RunStatus string

const (
	RunStatusPending RunStatus = "PENDING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailure RunStatus = "FAILURE"
)

// Terminal reports whether the run has been finalized.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailure
}

// TimetableRun is one scheduling attempt. It is finalized exactly once; its
// committed assignment set is immutable afterwards.
type TimetableRun struct {
	ID         string     `db:"id" json:"id"`
	TenantID   string     `db:"tenant_id" json:"tenant_id"`
	TermID     string     `db:"term_id" json:"term_id"`
	Status     RunStatus  `db:"status" json:"status"`
	SolverName string     `db:"solver_name" json:"solver_name"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	RuntimeMS  *int64     `db:"runtime_ms" json:"runtime_ms,omitempty"`
	SoftScore  *float64   `db:"soft_score" json:"soft_score,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Assignment places a section with a professor into a (room, slot) within one
// run. Within a run assignments are unique per (room, slot), (professor, slot)
// and per section.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	RunID       string    `db:"run_id" json:"run_id"`
	SectionID   string    `db:"section_id" json:"section_id"`
	ProfessorID string    `db:"professor_id" json:"professor_id"`
	RoomID      string    `db:"room_id" json:"room_id"`
	SlotID      string    `db:"slot_id" json:"slot_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
