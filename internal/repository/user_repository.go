package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/user-management-api/internal/models"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

const (
	userColumns        = `id, email, id_number, password_hash, full_name, phone, role, status, availability, is_professional, elo_rating, created_at, updated_at`
	userColumnsAliased = `u.id, u.email, u.id_number, u.password_hash, u.full_name, u.phone, u.role, u.status, u.availability, u.is_professional, u.elo_rating, u.created_at, u.updated_at`

	defaultListLimit = 50
	maxListLimit     = 100
)

// ErrReferenced indicates a delete was blocked by rows that still point at the record.
var ErrReferenced = errors.New("record is still referenced")

// UserRepository provides database access for users.
type UserRepository struct {
	db sqlx.ExtContext
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

// EmailExists reports whether a user with the lower-cased email is stored.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

// IDNumberExists reports whether the national identification number is taken.
func (r *UserRepository) IDNumberExists(ctx context.Context, idNumber string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE id_number = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, strings.TrimSpace(idNumber)); err != nil {
		return false, fmt.Errorf("check id number exists: %w", err)
	}
	return exists, nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// LockForUpdate loads the user row and holds a row lock until the surrounding transaction ends.
func (r *UserRepository) LockForUpdate(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	var user models.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return &user, nil
}

// List returns users matching every supplied criterion ordered by id, plus the unlimited total.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users u WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Dialect != "" {
		args = append(args, filter.Dialect)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM user_dialects d WHERE d.user_id = u.id AND d.dialect_code = $%d)", len(args)))
	}
	if filter.MinElo != nil {
		args = append(args, *filter.MinElo)
		conditions = append(conditions, fmt.Sprintf("u.elo_rating >= $%d", len(args)))
	}
	if filter.MaxElo != nil {
		args = append(args, *filter.MaxElo)
		conditions = append(conditions, fmt.Sprintf("u.elo_rating <= $%d", len(args)))
	}
	if filter.MaxWorkload != nil {
		args = append(args, *filter.MaxWorkload)
		conditions = append(conditions, fmt.Sprintf("(SELECT COUNT(*) FROM job_claims c WHERE c.user_id = u.id AND c.status = 'active') <= $%d", len(args)))
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	limit := NormalizeLimit(filter.Limit)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY u.id LIMIT %d", userColumnsAliased, baseQuery, limit)

	var users []models.User
	if err := sqlx.SelectContext(ctx, r.db, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// ListAll returns every user ordered by id.
func (r *UserRepository) ListAll(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	var users []models.User
	if err := sqlx.SelectContext(ctx, r.db, &users, query); err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	return users, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	const query = `INSERT INTO users (id, email, id_number, password_hash, full_name, phone, role, status, availability, is_professional, elo_rating, created_at, updated_at) VALUES (:id, :email, :id_number, :password_hash, :full_name, :phone, :role, :status, :availability, :is_professional, :elo_rating, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update updates mutable profile fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, phone = :phone, role = :role, status = :status, is_professional = :is_professional, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.db, query, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(res)
}

// UpdateAvailability sets the availability column.
func (r *UserRepository) UpdateAvailability(ctx context.Context, id string, availability models.Availability) error {
	const query = `UPDATE users SET availability = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, availability, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return expectAffected(res)
}

// UpdateRating stores the denormalised current Elo rating used for filtering.
func (r *UserRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	const query = `UPDATE users SET elo_rating = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, rating, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	return expectAffected(res)
}

// Delete removes the user row. Dependent rows cascade except Elo history and verifications
// authored by the user, which surface as ErrReferenced.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if appErrors.IsForeignKeyViolation(err) {
			return fmt.Errorf("delete user: %w", ErrReferenced)
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(res)
}

// HasVerificationsAsVerifier reports whether the user authored any verification record.
func (r *UserRepository) HasVerificationsAsVerifier(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM verification_records WHERE verifier_id = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, id); err != nil {
		return false, fmt.Errorf("check verifier references: %w", err)
	}
	return exists, nil
}

// HasEloHistory reports whether any rating change exists for the user.
func (r *UserRepository) HasEloHistory(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM elo_history WHERE user_id = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, id); err != nil {
		return false, fmt.Errorf("check elo history references: %w", err)
	}
	return exists, nil
}

// NormalizeLimit applies the default and the upper bound to a list limit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
