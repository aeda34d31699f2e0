package models

import "time"

// Audit actions recorded by the sink.
const (
	AuditActionInsert = "INSERT"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
)

// AuditLog is an append-only record of a state change. Writes are
// fire-and-forget: a failed audit write is logged, never surfaced as a
// business failure.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	TableName string    `db:"table_name" json:"table_name"`
	RowID     string    `db:"row_id" json:"row_id"`
	Action    string    `db:"action" json:"action"`
	Actor     *string   `db:"actor" json:"actor,omitempty"`
	OldValues []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
