package models

import "time"

// Slot is a recurring weekly time window. Slots are immutable once created;
// identity is tenant + day + time range.
type Slot struct {
	ID         string    `db:"id" json:"id"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	TermID     string    `db:"term_id" json:"term_id"`
	Day        int       `db:"day" json:"day"` // ISO weekday, 1=Monday .. 7=Sunday
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
	IsOfficial bool      `db:"is_official" json:"is_official"`
	Label      *string   `db:"label" json:"label,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Room hosts sessions. Capacity and features are advisory matching inputs for
// rule evaluation, not hard constraints by themselves.
type Room struct {
	ID         string    `db:"id" json:"id"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	Department string    `db:"department" json:"department"`
	Code       string    `db:"code" json:"code"`
	Capacity   int       `db:"capacity" json:"capacity"`
	Features   []byte    `db:"features" json:"features,omitempty"` // JSON feature code -> quantity
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
