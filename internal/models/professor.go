package models

import "time"

// Professor teaches sections. The max-load knobs are soft constraints consumed
// by rule evaluation.
type Professor struct {
	ID              string    `db:"id" json:"id"`
	TenantID        string    `db:"tenant_id" json:"tenant_id"`
	DisplayName     string    `db:"display_name" json:"display_name"`
	Email           *string   `db:"email" json:"email,omitempty"`
	MaxHoursPerWeek *int      `db:"max_hours_per_week" json:"max_hours_per_week,omitempty"`
	MaxClassesPerDay *int     `db:"max_classes_per_day" json:"max_classes_per_day,omitempty"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ProfessorAvailability records whether a professor can teach in a slot.
// The absence of a record is resolved by the engine's configured default
// policy, never silently.
type ProfessorAvailability struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	ProfessorID string    `db:"professor_id" json:"professor_id"`
	SlotID      string    `db:"slot_id" json:"slot_id"`
	Available   bool      `db:"available" json:"available"`
	Note        *string   `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Section is the teachable unit being scheduled. Meetings per week and minutes
// per meeting size its weekly footprint.
type Section struct {
	ID                 string    `db:"id" json:"id"`
	TenantID           string    `db:"tenant_id" json:"tenant_id"`
	TermID             string    `db:"term_id" json:"term_id"`
	CourseCode         string    `db:"course_code" json:"course_code"`
	CourseTitle        string    `db:"course_title" json:"course_title"`
	SectionCode        string    `db:"section_code" json:"section_code"`
	MeetingsPerWeek    int       `db:"meetings_per_week" json:"meetings_per_week"`
	MinutesPerMeeting  int       `db:"minutes_per_meeting" json:"minutes_per_meeting"`
	ExpectedEnrollment *int      `db:"expected_enrollment" json:"expected_enrollment,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}
