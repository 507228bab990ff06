package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/user-management-api/internal/models"
)

// VerificationRequirementRequest creates or replaces a requirement. ValidationRules
// is the serialized rule set; it is stored re-encoded once it decodes.
type VerificationRequirementRequest struct {
	Name            string                   `json:"name" validate:"required,max=128"`
	Level           models.VerificationLevel `json:"level" validate:"required,oneof=basic_v1 strict_v2"`
	Description     *string                  `json:"description,omitempty" validate:"omitempty,max=2000"`
	ValidationRules json.RawMessage          `json:"validation_rules" validate:"required"`
	Active          *bool                    `json:"active,omitempty"`
}

// VerifyUserRequest records a verification of a subject.
type VerifyUserRequest struct {
	RequirementID *string                    `json:"requirement_id,omitempty" validate:"omitempty,uuid"`
	Status        *models.VerificationStatus `json:"status,omitempty" validate:"omitempty,oneof=approved rejected"`
	Level         *models.VerificationLevel  `json:"level,omitempty" validate:"omitempty,oneof=basic_v1 strict_v2"`
	Notes         *string                    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// VerificationRequirementResponse is the public requirement view.
type VerificationRequirementResponse struct {
	ID              string                   `json:"id"`
	Name            string                   `json:"name"`
	Level           models.VerificationLevel `json:"level"`
	Description     *string                  `json:"description,omitempty"`
	ValidationRules json.RawMessage          `json:"validation_rules"`
	Active          bool                     `json:"active"`
	CreatedBy       *string                  `json:"created_by,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// VerificationRecordResponse is the public record view.
type VerificationRecordResponse struct {
	ID            string                    `json:"id"`
	SubjectID     string                    `json:"subject_id"`
	VerifierID    string                    `json:"verifier_id"`
	RequirementID *string                   `json:"requirement_id,omitempty"`
	Status        models.VerificationStatus `json:"status"`
	Level         *models.VerificationLevel `json:"level,omitempty"`
	Notes         *string                   `json:"notes,omitempty"`
	Result        json.RawMessage           `json:"result,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// NewVerificationRequirementResponse maps a requirement. The rules payload is passed through opaque.
func NewVerificationRequirementResponse(r models.UserVerificationRequirement) VerificationRequirementResponse {
	return VerificationRequirementResponse{
		ID:              r.ID,
		Name:            r.Name,
		Level:           r.Level,
		Description:     r.Description,
		ValidationRules: json.RawMessage(r.ValidationRules),
		Active:          r.Active,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// NewVerificationRequirementResponses maps requirements.
func NewVerificationRequirementResponses(reqs []models.UserVerificationRequirement) []VerificationRequirementResponse {
	out := make([]VerificationRequirementResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, NewVerificationRequirementResponse(r))
	}
	return out
}

// NewVerificationRecordResponse maps a record.
func NewVerificationRecordResponse(r models.VerificationRecord) VerificationRecordResponse {
	return VerificationRecordResponse{
		ID:            r.ID,
		SubjectID:     r.SubjectID,
		VerifierID:    r.VerifierID,
		RequirementID: r.RequirementID,
		Status:        r.Status,
		Level:         r.Level,
		Notes:         r.Notes,
		Result:        rawJSON(r.Result),
		CreatedAt:     r.CreatedAt,
	}
}

// NewVerificationRecordResponses maps records.
func NewVerificationRecordResponses(records []models.VerificationRecord) []VerificationRecordResponse {
	out := make([]VerificationRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, NewVerificationRecordResponse(r))
	}
	return out
}
