package models

import "time"

// AuditAction constants represent actions recorded in the audit trail.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionAttendanceMarked  = "ATTENDANCE_MARKED"
	AuditActionAttendanceDeleted = "ATTENDANCE_DELETED"
)

// AuditLog represents an audit trail record. Writes are fire-and-forget and
// never affect the outcome of the operation they describe.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
