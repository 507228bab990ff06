package dto

import (
	"time"

	"github.com/noah-isme/user-management-api/internal/models"
)

// ApplyEloRequest triggers a rating update from a comparison. Score and
// OpponentRating override the values stored on the comparison.
type ApplyEloRequest struct {
	ComparisonID   string   `json:"comparison_id" validate:"required,uuid"`
	Score          *float64 `json:"score,omitempty" validate:"omitempty,gte=0,lte=1"`
	OpponentRating *float64 `json:"opponent_rating,omitempty" validate:"omitempty,gt=0"`
}

// RecordComparisonRequest creates a comparison event.
type RecordComparisonRequest struct {
	JobID          string   `json:"job_id" validate:"required,max=128"`
	UserID         string   `json:"user_id" validate:"required,uuid"`
	Score          *float64 `json:"score" validate:"required,gte=0,lte=1"`
	OpponentRating *float64 `json:"opponent_rating,omitempty" validate:"omitempty,gt=0"`
	Notes          *string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ComparisonResponse is the public comparison view.
type ComparisonResponse struct {
	ID             string    `json:"id"`
	JobID          string    `json:"job_id"`
	UserID         string    `json:"user_id"`
	ReviewerID     *string   `json:"reviewer_id,omitempty"`
	Score          float64   `json:"score"`
	OpponentRating *float64  `json:"opponent_rating,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// EloHistoryResponse is one rating change.
type EloHistoryResponse struct {
	ID            string    `json:"id"`
	ComparisonID  string    `json:"comparison_id"`
	OldRating     float64   `json:"old_rating"`
	NewRating     float64   `json:"new_rating"`
	Delta         float64   `json:"delta"`
	KFactor       float64   `json:"k_factor"`
	ExpectedScore float64   `json:"expected_score"`
	ActualScore   float64   `json:"actual_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// EloUpdateResponse reports the outcome of a rating update.
type EloUpdateResponse struct {
	UserID       string             `json:"user_id"`
	History      EloHistoryResponse `json:"history"`
	RowsAffected int64              `json:"rows_affected"`
}

// NewComparisonResponse maps a comparison.
func NewComparisonResponse(c models.JobComparison) ComparisonResponse {
	return ComparisonResponse{
		ID:             c.ID,
		JobID:          c.JobID,
		UserID:         c.UserID,
		ReviewerID:     c.ReviewerID,
		Score:          c.Score,
		OpponentRating: c.OpponentRating,
		Notes:          c.Notes,
		CreatedAt:      c.CreatedAt,
	}
}

// NewEloHistoryResponse maps a history row.
func NewEloHistoryResponse(h models.EloHistory) EloHistoryResponse {
	return EloHistoryResponse{
		ID:            h.ID,
		ComparisonID:  h.ComparisonID,
		OldRating:     h.OldRating,
		NewRating:     h.NewRating,
		Delta:         h.Delta,
		KFactor:       h.KFactor,
		ExpectedScore: h.ExpectedScore,
		ActualScore:   h.ActualScore,
		CreatedAt:     h.CreatedAt,
	}
}

// NewEloHistoryResponses maps history rows preserving order.
func NewEloHistoryResponses(entries []models.EloHistory) []EloHistoryResponse {
	out := make([]EloHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewEloHistoryResponse(e))
	}
	return out
}
