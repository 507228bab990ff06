package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/user-management-api/internal/models"
)

// ClaimJobRequest claims a work item for a user.
type ClaimJobRequest struct {
	JobID    string          `json:"job_id" validate:"required,max=128"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// CompleteJobRequest finishes an active claim.
type CompleteJobRequest struct {
	DurationSeconds int64           `json:"duration_seconds" validate:"gte=0"`
	Accuracy        *float64        `json:"accuracy,omitempty" validate:"omitempty,gte=0,lte=1"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// StatisticsResponse is the public statistics view.
type StatisticsResponse struct {
	JobsClaimed          int       `json:"jobs_claimed"`
	JobsCompleted        int       `json:"jobs_completed"`
	ComparisonsCount     int       `json:"comparisons_count"`
	AverageScore         float64   `json:"average_score"`
	AverageAccuracy      float64   `json:"average_accuracy"`
	TotalDurationSeconds int64     `json:"total_duration_seconds"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// JobClaimResponse is the public claim view.
type JobClaimResponse struct {
	ID         string                `json:"id"`
	UserID     string                `json:"user_id"`
	JobID      string                `json:"job_id"`
	Status     models.JobClaimStatus `json:"status"`
	Metadata   json.RawMessage       `json:"metadata,omitempty"`
	ClaimedAt  time.Time             `json:"claimed_at"`
	ReleasedAt *time.Time            `json:"released_at,omitempty"`
}

// JobCompletionResponse is the public completion view.
type JobCompletionResponse struct {
	ID              string          `json:"id"`
	ClaimID         *string         `json:"claim_id,omitempty"`
	JobID           string          `json:"job_id"`
	DurationSeconds int64           `json:"duration_seconds"`
	Accuracy        *float64        `json:"accuracy,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CompletedAt     time.Time       `json:"completed_at"`
	Milestone       *int            `json:"milestone,omitempty"`
}

// NewStatisticsResponse maps statistics.
func NewStatisticsResponse(s models.UserStatistics) StatisticsResponse {
	return StatisticsResponse{
		JobsClaimed:          s.JobsClaimed,
		JobsCompleted:        s.JobsCompleted,
		ComparisonsCount:     s.ComparisonsCount,
		AverageScore:         s.AverageScore,
		AverageAccuracy:      s.AverageAccuracy,
		TotalDurationSeconds: s.TotalDurationSeconds,
		UpdatedAt:            s.UpdatedAt,
	}
}

// NewJobClaimResponse maps a claim. Empty metadata is omitted.
func NewJobClaimResponse(c models.JobClaim) JobClaimResponse {
	return JobClaimResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		JobID:      c.JobID,
		Status:     c.Status,
		Metadata:   rawJSON(c.Metadata),
		ClaimedAt:  c.ClaimedAt,
		ReleasedAt: c.ReleasedAt,
	}
}

// NewJobClaimResponses maps claims.
func NewJobClaimResponses(claims []models.JobClaim) []JobClaimResponse {
	out := make([]JobClaimResponse, 0, len(claims))
	for _, c := range claims {
		out = append(out, NewJobClaimResponse(c))
	}
	return out
}

// NewJobCompletionResponse maps a completion.
func NewJobCompletionResponse(c models.JobCompletion) JobCompletionResponse {
	return JobCompletionResponse{
		ID:              c.ID,
		ClaimID:         c.ClaimID,
		JobID:           c.JobID,
		DurationSeconds: c.DurationSeconds,
		Accuracy:        c.Accuracy,
		Metadata:        rawJSON(c.Metadata),
		CompletedAt:     c.CompletedAt,
	}
}

// NewJobCompletionResponses maps completions.
func NewJobCompletionResponses(completions []models.JobCompletion) []JobCompletionResponse {
	out := make([]JobCompletionResponse, 0, len(completions))
	for _, c := range completions {
		out = append(out, NewJobCompletionResponse(c))
	}
	return out
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || string(b) == "{}" || string(b) == "null" {
		return nil
	}
	return json.RawMessage(b)
}
