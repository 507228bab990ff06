package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/user-management-api/internal/models"
)

const eloHistoryColumns = `id, user_id, comparison_id, old_rating, new_rating, delta, k_factor, expected_score, actual_score, created_at`

// EloHistoryRepository appends and reads rating changes. Rows are never updated or deleted.
type EloHistoryRepository struct {
	db sqlx.ExtContext
}

// NewEloHistoryRepository constructs the repository.
func NewEloHistoryRepository(db sqlx.ExtContext) *EloHistoryRepository {
	return &EloHistoryRepository{db: db}
}

// Append inserts a history row.
func (r *EloHistoryRepository) Append(ctx context.Context, entry *models.EloHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO elo_history (id, user_id, comparison_id, old_rating, new_rating, delta, k_factor, expected_score, actual_score, created_at) VALUES (:id, :user_id, :comparison_id, :old_rating, :new_rating, :delta, :k_factor, :expected_score, :actual_score, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, entry); err != nil {
		return fmt.Errorf("append elo history: %w", err)
	}
	return nil
}

// LatestByUser returns the most recent rating change or sql.ErrNoRows.
func (r *EloHistoryRepository) LatestByUser(ctx context.Context, userID string) (*models.EloHistory, error) {
	query := `SELECT ` + eloHistoryColumns + ` FROM elo_history WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	var entry models.EloHistory
	if err := sqlx.GetContext(ctx, r.db, &entry, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest elo history: %w", err)
	}
	return &entry, nil
}

// ListByUser returns the newest rating changes first.
func (r *EloHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.EloHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM elo_history WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT %d`, eloHistoryColumns, NormalizeLimit(limit))
	var entries []models.EloHistory
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("list elo history: %w", err)
	}
	return entries, nil
}
