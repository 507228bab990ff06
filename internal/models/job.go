package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// JobClaimStatus tracks a claim lifecycle.
type JobClaimStatus string

const (
	JobClaimActive    JobClaimStatus = "active"
	JobClaimCompleted JobClaimStatus = "completed"
	JobClaimReleased  JobClaimStatus = "released"
)

// JobClaim is a user's claim on a work item.
type JobClaim struct {
	ID         string         `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"user_id"`
	JobID      string         `db:"job_id" json:"job_id"`
	Status     JobClaimStatus `db:"status" json:"status"`
	Metadata   types.JSONText `db:"metadata" json:"metadata,omitempty"`
	ClaimedAt  time.Time      `db:"claimed_at" json:"claimed_at"`
	ReleasedAt *time.Time     `db:"released_at" json:"released_at,omitempty"`
}

// JobCompletion records a finished work item.
type JobCompletion struct {
	ID              string         `db:"id" json:"id"`
	UserID          string         `db:"user_id" json:"user_id"`
	ClaimID         *string        `db:"claim_id" json:"claim_id,omitempty"`
	JobID           string         `db:"job_id" json:"job_id"`
	DurationSeconds int64          `db:"duration_seconds" json:"duration_seconds"`
	Accuracy        *float64       `db:"accuracy" json:"accuracy,omitempty"`
	Metadata        types.JSONText `db:"metadata" json:"metadata,omitempty"`
	CompletedAt     time.Time      `db:"completed_at" json:"completed_at"`
}
