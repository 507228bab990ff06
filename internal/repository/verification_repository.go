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
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

const (
	verificationRecordColumns      = `id, subject_id, verifier_id, requirement_id, status, level, notes, result, created_at`
	verificationRequirementColumns = `id, name, level, description, validation_rules, active, created_by, created_at, updated_at`
)

// VerificationRecordRepository stores verification outcomes. Records are insert-only.
type VerificationRecordRepository struct {
	db sqlx.ExtContext
}

// NewVerificationRecordRepository constructs the repository.
func NewVerificationRecordRepository(db sqlx.ExtContext) *VerificationRecordRepository {
	return &VerificationRecordRepository{db: db}
}

// Create inserts a record.
func (r *VerificationRecordRepository) Create(ctx context.Context, record *models.VerificationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO verification_records (id, subject_id, verifier_id, requirement_id, status, level, notes, result, created_at) VALUES (:id, :subject_id, :verifier_id, :requirement_id, :status, :level, :notes, :result, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, record); err != nil {
		return fmt.Errorf("create verification record: %w", err)
	}
	return nil
}

// FindByID returns a record by identifier.
func (r *VerificationRecordRepository) FindByID(ctx context.Context, id string) (*models.VerificationRecord, error) {
	query := `SELECT ` + verificationRecordColumns + ` FROM verification_records WHERE id = $1`
	var record models.VerificationRecord
	if err := sqlx.GetContext(ctx, r.db, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find verification record: %w", err)
	}
	return &record, nil
}

// ListBySubject returns the records about a user, newest first.
func (r *VerificationRecordRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.VerificationRecord, error) {
	query := `SELECT ` + verificationRecordColumns + ` FROM verification_records WHERE subject_id = $1 ORDER BY created_at DESC`
	var records []models.VerificationRecord
	if err := sqlx.SelectContext(ctx, r.db, &records, query, subjectID); err != nil {
		return nil, fmt.Errorf("list verification records: %w", err)
	}
	return records, nil
}

// VerificationRequirementRepository manages verification policies.
type VerificationRequirementRepository struct {
	db sqlx.ExtContext
}

// NewVerificationRequirementRepository constructs the repository.
func NewVerificationRequirementRepository(db sqlx.ExtContext) *VerificationRequirementRepository {
	return &VerificationRequirementRepository{db: db}
}

// Create inserts a requirement.
func (r *VerificationRequirementRepository) Create(ctx context.Context, req *models.UserVerificationRequirement) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO user_verification_requirements (id, name, level, description, validation_rules, active, created_by, created_at, updated_at) VALUES (:id, :name, :level, :description, :validation_rules, :active, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, req); err != nil {
		return fmt.Errorf("create verification requirement: %w", err)
	}
	return nil
}

// FindByID returns a requirement by identifier.
func (r *VerificationRequirementRepository) FindByID(ctx context.Context, id string) (*models.UserVerificationRequirement, error) {
	query := `SELECT ` + verificationRequirementColumns + ` FROM user_verification_requirements WHERE id = $1`
	var req models.UserVerificationRequirement
	if err := sqlx.GetContext(ctx, r.db, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find verification requirement: %w", err)
	}
	return &req, nil
}

// FindByName returns a requirement by its unique name.
func (r *VerificationRequirementRepository) FindByName(ctx context.Context, name string) (*models.UserVerificationRequirement, error) {
	query := `SELECT ` + verificationRequirementColumns + ` FROM user_verification_requirements WHERE name = $1`
	var req models.UserVerificationRequirement
	if err := sqlx.GetContext(ctx, r.db, &req, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find verification requirement by name: %w", err)
	}
	return &req, nil
}

// List returns requirements ordered by name.
func (r *VerificationRequirementRepository) List(ctx context.Context, activeOnly bool) ([]models.UserVerificationRequirement, error) {
	query := `SELECT ` + verificationRequirementColumns + ` FROM user_verification_requirements`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name`
	var reqs []models.UserVerificationRequirement
	if err := sqlx.SelectContext(ctx, r.db, &reqs, query); err != nil {
		return nil, fmt.Errorf("list verification requirements: %w", err)
	}
	return reqs, nil
}

// Update overwrites the mutable fields, rules included, in a single statement.
func (r *VerificationRequirementRepository) Update(ctx context.Context, req *models.UserVerificationRequirement) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE user_verification_requirements SET name = :name, level = :level, description = :description, validation_rules = :validation_rules, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.db, query, req)
	if err != nil {
		return fmt.Errorf("update verification requirement: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a requirement. Requirements referenced by records return ErrReferenced.
func (r *VerificationRequirementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_verification_requirements WHERE id = $1`, id)
	if err != nil {
		if appErrors.IsForeignKeyViolation(err) {
			return fmt.Errorf("delete verification requirement: %w", ErrReferenced)
		}
		return fmt.Errorf("delete verification requirement: %w", err)
	}
	return expectAffected(res)
}
