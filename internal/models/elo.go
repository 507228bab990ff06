package models

import "time"

// JobComparison is a QA comparison of a user's job against a reference. It is the
// event an EloHistory row points at.
type JobComparison struct {
	ID             string    `db:"id" json:"id"`
	JobID          string    `db:"job_id" json:"job_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	ReviewerID     *string   `db:"reviewer_id" json:"reviewer_id,omitempty"`
	Score          float64   `db:"score" json:"score"`
	OpponentRating *float64  `db:"opponent_rating" json:"opponent_rating,omitempty"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// EloHistory is one immutable rating change.
type EloHistory struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	ComparisonID  string    `db:"comparison_id" json:"comparison_id"`
	OldRating     float64   `db:"old_rating" json:"old_rating"`
	NewRating     float64   `db:"new_rating" json:"new_rating"`
	Delta         float64   `db:"delta" json:"delta"`
	KFactor       float64   `db:"k_factor" json:"k_factor"`
	ExpectedScore float64   `db:"expected_score" json:"expected_score"`
	ActualScore   float64   `db:"actual_score" json:"actual_score"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
