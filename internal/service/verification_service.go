package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/repository"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

// VerificationService records verification outcomes. Records are never modified.
type VerificationService struct {
	uow       unitOfWork
	validator *validator.Validate
	logger    *zap.Logger
}

// VerificationOutcome is the result payload stored on a record evaluated against a requirement.
type VerificationOutcome struct {
	RequirementID   string        `json:"requirement_id"`
	RequirementName string        `json:"requirement_name"`
	Version         int           `json:"version"`
	Evaluated       int           `json:"evaluated"`
	Failures        []RuleFailure `json:"failures"`
}

// NewVerificationService constructs the service.
func NewVerificationService(uow unitOfWork, validate *validator.Validate, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{uow: uow, validator: newValidator(validate), logger: logger}
}

// Verify records a check of subjectID by verifier. With a requirement the outcome follows the
// rule evaluation; a verifier may still reject, but cannot approve a failing subject. Without a
// requirement the status must be given explicitly.
func (s *VerificationService) Verify(ctx context.Context, subjectID string, req dto.VerifyUserRequest, verifier Actor) (*models.VerificationRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid verification payload")
	}
	if req.RequirementID == nil && req.Status == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status is required without a verification requirement")
	}
	if subjectID == verifier.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "users cannot verify themselves")
	}

	record := &models.VerificationRecord{
		SubjectID:     subjectID,
		VerifierID:    verifier.ID,
		RequirementID: req.RequirementID,
		Level:         req.Level,
		Notes:         req.Notes,
	}
	if req.Status != nil {
		record.Status = *req.Status
	}

	_, err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		subject, err := repos.Users.FindByID(ctx, subjectID)
		if err != nil {
			return notFoundOr(err, "user not found", "failed to load user")
		}
		if _, err := repos.Users.FindByID(ctx, verifier.ID); err != nil {
			return notFoundOr(err, "verifier not found", "failed to load verifier")
		}

		if req.RequirementID != nil {
			if err := s.evaluate(ctx, repos, *subject, *req.RequirementID, record); err != nil {
				return err
			}
		}
		return repos.VerificationRecords.Create(ctx, record)
	})
	if err != nil {
		return nil, passThrough(err, "failed to record verification")
	}
	return record, nil
}

func (s *VerificationService) evaluate(ctx context.Context, repos *repository.Repositories, subject models.User, requirementID string, record *models.VerificationRecord) error {
	requirement, err := repos.VerificationRequirements.FindByID(ctx, requirementID)
	if err != nil {
		return notFoundOr(err, "verification requirement not found", "failed to load verification requirement")
	}
	if !requirement.Active {
		return appErrors.Clone(appErrors.ErrConflict, "verification requirement is inactive")
	}
	rules, err := DecodeRules(requirement.ValidationRules)
	if err != nil {
		return err
	}

	stats, err := repos.Statistics.FindByUser(ctx, subject.ID)
	if err != nil && !isNoRows(err) {
		return err
	}
	dialects, err := repos.Dialects.ListByUser(ctx, subject.ID)
	if err != nil {
		return err
	}

	failures := rules.Evaluate(SubjectFacts(subject, stats, dialects))
	evaluated := models.VerificationApproved
	if len(failures) > 0 {
		evaluated = models.VerificationRejected
	}
	switch {
	case record.Status == "":
		record.Status = evaluated
	case record.Status == models.VerificationApproved && evaluated == models.VerificationRejected:
		return appErrors.Clone(appErrors.ErrConflict, "subject does not satisfy the verification requirement")
	}
	if record.Level == nil {
		level := requirement.Level
		record.Level = &level
	}

	outcome, err := json.Marshal(VerificationOutcome{
		RequirementID:   requirement.ID,
		RequirementName: requirement.Name,
		Version:         rules.Version,
		Evaluated:       len(rules.Rules),
		Failures:        failures,
	})
	if err != nil {
		return err
	}
	record.Result = outcome
	return nil
}

// ListForUser returns the verification records of a subject, newest first.
func (s *VerificationService) ListForUser(ctx context.Context, subjectID string) ([]models.VerificationRecord, error) {
	read := s.uow.Read()
	if _, err := read.Users.FindByID(ctx, subjectID); err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	records, err := read.VerificationRecords.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, internalError(err, "failed to list verification records")
	}
	return records, nil
}
