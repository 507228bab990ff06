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

// ComparisonRepository stores QA comparison events.
type ComparisonRepository struct {
	db sqlx.ExtContext
}

// NewComparisonRepository constructs the repository.
func NewComparisonRepository(db sqlx.ExtContext) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

// Create inserts a comparison.
func (r *ComparisonRepository) Create(ctx context.Context, comparison *models.JobComparison) error {
	if comparison.ID == "" {
		comparison.ID = uuid.NewString()
	}
	if comparison.CreatedAt.IsZero() {
		comparison.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO job_comparisons (id, job_id, user_id, reviewer_id, score, opponent_rating, notes, created_at) VALUES (:id, :job_id, :user_id, :reviewer_id, :score, :opponent_rating, :notes, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, comparison); err != nil {
		return fmt.Errorf("create comparison: %w", err)
	}
	return nil
}

// FindByID returns a comparison by identifier.
func (r *ComparisonRepository) FindByID(ctx context.Context, id string) (*models.JobComparison, error) {
	const query = `SELECT id, job_id, user_id, reviewer_id, score, opponent_rating, notes, created_at FROM job_comparisons WHERE id = $1`
	var comparison models.JobComparison
	if err := sqlx.GetContext(ctx, r.db, &comparison, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find comparison: %w", err)
	}
	return &comparison, nil
}
