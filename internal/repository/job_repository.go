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

const (
	jobClaimColumns      = `id, user_id, job_id, status, metadata, claimed_at, released_at`
	jobCompletionColumns = `id, user_id, claim_id, job_id, duration_seconds, accuracy, metadata, completed_at`
)

// JobClaimRepository manages job claims.
type JobClaimRepository struct {
	db sqlx.ExtContext
}

// NewJobClaimRepository constructs the repository.
func NewJobClaimRepository(db sqlx.ExtContext) *JobClaimRepository {
	return &JobClaimRepository{db: db}
}

// Create inserts an active claim. A concurrent claim on the same job hits the partial unique index.
func (r *JobClaimRepository) Create(ctx context.Context, claim *models.JobClaim) error {
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = time.Now().UTC()
	}
	if claim.Status == "" {
		claim.Status = models.JobClaimActive
	}
	const query = `INSERT INTO job_claims (id, user_id, job_id, status, metadata, claimed_at, released_at) VALUES (:id, :user_id, :job_id, :status, :metadata, :claimed_at, :released_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, claim); err != nil {
		return fmt.Errorf("create job claim: %w", err)
	}
	return nil
}

// FindByID returns a claim by identifier.
func (r *JobClaimRepository) FindByID(ctx context.Context, id string) (*models.JobClaim, error) {
	query := `SELECT ` + jobClaimColumns + ` FROM job_claims WHERE id = $1`
	var claim models.JobClaim
	if err := sqlx.GetContext(ctx, r.db, &claim, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find job claim: %w", err)
	}
	return &claim, nil
}

// ActiveByJob returns the active claim for a job or sql.ErrNoRows.
func (r *JobClaimRepository) ActiveByJob(ctx context.Context, jobID string) (*models.JobClaim, error) {
	query := `SELECT ` + jobClaimColumns + ` FROM job_claims WHERE job_id = $1 AND status = 'active'`
	var claim models.JobClaim
	if err := sqlx.GetContext(ctx, r.db, &claim, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active claim: %w", err)
	}
	return &claim, nil
}

// CountActiveByUser returns the user's current workload.
func (r *JobClaimRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM job_claims WHERE user_id = $1 AND status = 'active'`
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count active claims: %w", err)
	}
	return count, nil
}

// ListByUser returns the user's claims, newest first.
func (r *JobClaimRepository) ListByUser(ctx context.Context, userID string) ([]models.JobClaim, error) {
	query := `SELECT ` + jobClaimColumns + ` FROM job_claims WHERE user_id = $1 ORDER BY claimed_at DESC`
	var claims []models.JobClaim
	if err := sqlx.SelectContext(ctx, r.db, &claims, query, userID); err != nil {
		return nil, fmt.Errorf("list job claims: %w", err)
	}
	return claims, nil
}

// UpdateStatus transitions an active claim. sql.ErrNoRows means the claim was no longer active.
func (r *JobClaimRepository) UpdateStatus(ctx context.Context, id string, status models.JobClaimStatus, at time.Time) error {
	const query = `UPDATE job_claims SET status = $2, released_at = $3 WHERE id = $1 AND status = 'active'`
	res, err := r.db.ExecContext(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("update job claim status: %w", err)
	}
	return expectAffected(res)
}

// JobCompletionRepository records finished jobs.
type JobCompletionRepository struct {
	db sqlx.ExtContext
}

// NewJobCompletionRepository constructs the repository.
func NewJobCompletionRepository(db sqlx.ExtContext) *JobCompletionRepository {
	return &JobCompletionRepository{db: db}
}

// Create inserts a completion.
func (r *JobCompletionRepository) Create(ctx context.Context, completion *models.JobCompletion) error {
	if completion.ID == "" {
		completion.ID = uuid.NewString()
	}
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}
	const query = `INSERT INTO job_completions (id, user_id, claim_id, job_id, duration_seconds, accuracy, metadata, completed_at) VALUES (:id, :user_id, :claim_id, :job_id, :duration_seconds, :accuracy, :metadata, :completed_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, completion); err != nil {
		return fmt.Errorf("create job completion: %w", err)
	}
	return nil
}

// ListByUser returns completions newest first.
func (r *JobCompletionRepository) ListByUser(ctx context.Context, userID string) ([]models.JobCompletion, error) {
	query := `SELECT ` + jobCompletionColumns + ` FROM job_completions WHERE user_id = $1 ORDER BY completed_at DESC`
	var completions []models.JobCompletion
	if err := sqlx.SelectContext(ctx, r.db, &completions, query, userID); err != nil {
		return nil, fmt.Errorf("list job completions: %w", err)
	}
	return completions, nil
}
