package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionUserRegister       = "USER_REGISTER"
	AuditActionUserUpdate         = "USER_UPDATE"
	AuditActionUserDelete         = "USER_DELETE"
	AuditActionAvailabilityChange = "AVAILABILITY_CHANGE"
	AuditActionJobClaim           = "JOB_CLAIM"
	AuditActionJobRelease         = "JOB_RELEASE"
	AuditActionJobComplete        = "JOB_COMPLETE"
	AuditActionRequirementChange  = "VERIFICATION_REQUIREMENT_CHANGE"
)

// AuditLog is an append-only record of a state-changing action.
type AuditLog struct {
	ID         string         `db:"id" json:"id"`
	UserID     *string        `db:"user_id" json:"user_id,omitempty"`
	ActorID    *string        `db:"actor_id" json:"actor_id,omitempty"`
	Action     string         `db:"action" json:"action"`
	Resource   string         `db:"resource" json:"resource"`
	ResourceID *string        `db:"resource_id" json:"resource_id,omitempty"`
	Payload    types.JSONText `db:"payload" json:"payload,omitempty"`
	IPAddress  *string        `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  *string        `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// RequestMeta carries caller details recorded on audit rows.
type RequestMeta struct {
	IP        string
	UserAgent string
}
