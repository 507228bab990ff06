package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// VerificationStatus is the outcome of a verification check.
type VerificationStatus string

const (
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Valid reports whether s is a known outcome.
func (s VerificationStatus) Valid() bool {
	return s == VerificationApproved || s == VerificationRejected
}

// VerificationLevel names the strictness of a requirement policy.
type VerificationLevel string

const (
	VerificationLevelBasic  VerificationLevel = "basic_v1"
	VerificationLevelStrict VerificationLevel = "strict_v2"
)

// Valid reports whether l is a known level.
func (l VerificationLevel) Valid() bool {
	return l == VerificationLevelBasic || l == VerificationLevelStrict
}

// VerificationRecord is the immutable outcome of a check performed by a verifier on a subject.
type VerificationRecord struct {
	ID            string             `db:"id" json:"id"`
	SubjectID     string             `db:"subject_id" json:"subject_id"`
	VerifierID    string             `db:"verifier_id" json:"verifier_id"`
	RequirementID *string            `db:"requirement_id" json:"requirement_id,omitempty"`
	Status        VerificationStatus `db:"status" json:"status"`
	Level         *VerificationLevel `db:"level" json:"level,omitempty"`
	Notes         *string            `db:"notes" json:"notes,omitempty"`
	Result        types.JSONText     `db:"result" json:"result,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}

// UserVerificationRequirement is a configured verification policy. ValidationRules
// is stored opaque and decoded only during evaluation.
type UserVerificationRequirement struct {
	ID              string            `db:"id" json:"id"`
	Name            string            `db:"name" json:"name"`
	Level           VerificationLevel `db:"level" json:"level"`
	Description     *string           `db:"description" json:"description,omitempty"`
	ValidationRules types.JSONText    `db:"validation_rules" json:"validation_rules"`
	Active          bool              `db:"active" json:"active"`
	CreatedBy       *string           `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}
