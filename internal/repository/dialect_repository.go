package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/user-management-api/internal/models"
)

const dialectColumns = `id, user_id, dialect_code, proficiency, created_at`

// DialectRepository manages user_dialects rows.
type DialectRepository struct {
	db sqlx.ExtContext
}

// NewDialectRepository constructs the repository.
func NewDialectRepository(db sqlx.ExtContext) *DialectRepository {
	return &DialectRepository{db: db}
}

// ListByUser returns the dialects of a single user.
func (r *DialectRepository) ListByUser(ctx context.Context, userID string) ([]models.UserDialect, error) {
	query := `SELECT ` + dialectColumns + ` FROM user_dialects WHERE user_id = $1 ORDER BY dialect_code`
	var dialects []models.UserDialect
	if err := sqlx.SelectContext(ctx, r.db, &dialects, query, userID); err != nil {
		return nil, fmt.Errorf("list dialects: %w", err)
	}
	return dialects, nil
}

// ListByUsers returns dialects grouped by user id.
func (r *DialectRepository) ListByUsers(ctx context.Context, userIDs []string) (map[string][]models.UserDialect, error) {
	result := make(map[string][]models.UserDialect, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + dialectColumns + ` FROM user_dialects WHERE user_id = ANY($1) ORDER BY user_id, dialect_code`
	var dialects []models.UserDialect
	if err := sqlx.SelectContext(ctx, r.db, &dialects, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("list dialects for users: %w", err)
	}
	for _, d := range dialects {
		result[d.UserID] = append(result[d.UserID], d)
	}
	return result, nil
}

// Add inserts a single dialect entry.
func (r *DialectRepository) Add(ctx context.Context, dialect *models.UserDialect) error {
	if dialect.ID == "" {
		dialect.ID = uuid.NewString()
	}
	if dialect.CreatedAt.IsZero() {
		dialect.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO user_dialects (id, user_id, dialect_code, proficiency, created_at) VALUES (:id, :user_id, :dialect_code, :proficiency, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, dialect); err != nil {
		return fmt.Errorf("add dialect: %w", err)
	}
	return nil
}

// Replace swaps the full dialect set of a user.
func (r *DialectRepository) Replace(ctx context.Context, userID string, dialects []models.UserDialect) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_dialects WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear dialects: %w", err)
	}
	for i := range dialects {
		dialects[i].UserID = userID
		if err := r.Add(ctx, &dialects[i]); err != nil {
			return err
		}
	}
	return nil
}
