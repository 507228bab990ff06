package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/user-management-api/internal/models"
)

const statisticsColumns = `user_id, jobs_claimed, jobs_completed, comparisons_count, average_score, average_accuracy, accuracy_samples, total_duration_seconds, updated_at`

// StatisticsRepository persists the per-user performance counters.
type StatisticsRepository struct {
	db sqlx.ExtContext
}

// NewStatisticsRepository constructs the repository.
func NewStatisticsRepository(db sqlx.ExtContext) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// Create inserts the zeroed statistics row for a new user.
func (r *StatisticsRepository) Create(ctx context.Context, userID string) error {
	const query = `INSERT INTO user_statistics (user_id, updated_at) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("create statistics: %w", err)
	}
	return nil
}

// FindByUser returns the statistics row of a user.
func (r *StatisticsRepository) FindByUser(ctx context.Context, userID string) (*models.UserStatistics, error) {
	query := `SELECT ` + statisticsColumns + ` FROM user_statistics WHERE user_id = $1`
	var stats models.UserStatistics
	if err := sqlx.GetContext(ctx, r.db, &stats, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find statistics: %w", err)
	}
	return &stats, nil
}

// IncrementClaimed bumps the claimed counter.
func (r *StatisticsRepository) IncrementClaimed(ctx context.Context, userID string) error {
	const query = `UPDATE user_statistics SET jobs_claimed = jobs_claimed + 1, updated_at = $2 WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment claimed: %w", err)
	}
	return expectAffected(res)
}

// RecordCompletion bumps the completed counter and total duration. The accuracy average
// only moves for completions that report an accuracy, weighted by accuracy_samples.
func (r *StatisticsRepository) RecordCompletion(ctx context.Context, userID string, durationSeconds int64, accuracy *float64) error {
	const query = `UPDATE user_statistics SET
		jobs_completed = jobs_completed + 1,
		total_duration_seconds = total_duration_seconds + $2,
		average_accuracy = CASE WHEN $3::numeric IS NULL THEN average_accuracy
			ELSE (average_accuracy * accuracy_samples + $3::numeric) / (accuracy_samples + 1) END,
		accuracy_samples = accuracy_samples + CASE WHEN $3::numeric IS NULL THEN 0 ELSE 1 END,
		updated_at = $4
		WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, durationSeconds, accuracy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return expectAffected(res)
}

// RecordComparison bumps the comparison counter and running score average.
func (r *StatisticsRepository) RecordComparison(ctx context.Context, userID string, score float64) error {
	const query = `UPDATE user_statistics SET
		comparisons_count = comparisons_count + 1,
		average_score = (average_score * comparisons_count + $2) / (comparisons_count + 1),
		updated_at = $3
		WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record comparison: %w", err)
	}
	return expectAffected(res)
}
