package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/repository"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

// VerificationRequirementService manages verification policies.
type VerificationRequirementService struct {
	uow       unitOfWork
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVerificationRequirementService constructs the service.
func NewVerificationRequirementService(uow unitOfWork, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *VerificationRequirementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationRequirementService{uow: uow, audit: audit, validator: newValidator(validate), logger: logger}
}

// Create stores a new requirement. Names are unique.
func (s *VerificationRequirementService) Create(ctx context.Context, req dto.VerificationRequirementRequest, actor Actor, meta models.RequestMeta) (*models.UserVerificationRequirement, error) {
	requirement, err := s.build(req)
	if err != nil {
		return nil, err
	}
	requirement.CreatedBy = optionalString(actor.ID)

	_, err = s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if _, err := repos.VerificationRequirements.FindByName(ctx, requirement.Name); err == nil {
			return appErrors.Clone(appErrors.ErrConflict, "verification requirement name already exists")
		} else if !isNoRows(err) {
			return err
		}
		if err := repos.VerificationRequirements.Create(ctx, requirement); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, repos, requirementEntry(requirement, actor, "create", meta))
	})
	if err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "verification requirement name already exists")
		}
		return nil, passThrough(err, "failed to create verification requirement")
	}
	return requirement, nil
}

// Get returns a requirement by id.
func (s *VerificationRequirementService) Get(ctx context.Context, id string) (*models.UserVerificationRequirement, error) {
	requirement, err := s.uow.Read().VerificationRequirements.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "verification requirement not found", "failed to load verification requirement")
	}
	return requirement, nil
}

// List returns requirements, optionally only active ones.
func (s *VerificationRequirementService) List(ctx context.Context, activeOnly bool) ([]models.UserVerificationRequirement, error) {
	reqs, err := s.uow.Read().VerificationRequirements.List(ctx, activeOnly)
	if err != nil {
		return nil, internalError(err, "failed to list verification requirements")
	}
	return reqs, nil
}

// Update replaces a requirement. The identifier is preserved and the rules are overwritten whole.
func (s *VerificationRequirementService) Update(ctx context.Context, id string, req dto.VerificationRequirementRequest, actor Actor, meta models.RequestMeta) (*models.UserVerificationRequirement, error) {
	replacement, err := s.build(req)
	if err != nil {
		return nil, err
	}

	var updated *models.UserVerificationRequirement
	_, err = s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		current, err := repos.VerificationRequirements.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "verification requirement not found", "failed to load verification requirement")
		}
		if current.Name != replacement.Name {
			if other, err := repos.VerificationRequirements.FindByName(ctx, replacement.Name); err == nil && other.ID != id {
				return appErrors.Clone(appErrors.ErrConflict, "verification requirement name already exists")
			} else if err != nil && !isNoRows(err) {
				return err
			}
		}

		replacement.ID = current.ID
		replacement.CreatedBy = current.CreatedBy
		replacement.CreatedAt = current.CreatedAt
		if req.Active == nil {
			replacement.Active = current.Active
		}
		if err := repos.VerificationRequirements.Update(ctx, replacement); err != nil {
			return notFoundOr(err, "verification requirement not found", "failed to update verification requirement")
		}
		updated = replacement
		return s.audit.RecordTx(ctx, repos, requirementEntry(replacement, actor, "update", meta))
	})
	if err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "verification requirement name already exists")
		}
		return nil, passThrough(err, "failed to update verification requirement")
	}
	return updated, nil
}

// Delete removes a requirement that no verification record references.
func (s *VerificationRequirementService) Delete(ctx context.Context, id string, actor Actor, meta models.RequestMeta) error {
	_, err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		current, err := repos.VerificationRequirements.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "verification requirement not found", "failed to load verification requirement")
		}
		if err := repos.VerificationRequirements.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, repos, requirementEntry(current, actor, "delete", meta))
	})
	if err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return appErrors.Clone(appErrors.ErrConflict, "verification requirement is referenced by verification records")
		}
		return notFoundOr(err, "verification requirement not found", "failed to delete verification requirement")
	}
	return nil
}

// Rules decodes the rules payload of a requirement.
func (s *VerificationRequirementService) Rules(requirement *models.UserVerificationRequirement) (ValidationRules, error) {
	return DecodeRules(requirement.ValidationRules)
}

func (s *VerificationRequirementService) build(req dto.VerificationRequirementRequest) (*models.UserVerificationRequirement, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid verification requirement payload")
	}
	rules, err := DecodeRules(req.ValidationRules)
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeRules(rules)
	if err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &models.UserVerificationRequirement{
		Name:            req.Name,
		Level:           req.Level,
		Description:     req.Description,
		ValidationRules: encoded,
		Active:          active,
	}, nil
}

func requirementEntry(req *models.UserVerificationRequirement, actor Actor, op string, meta models.RequestMeta) AuditEntry {
	return AuditEntry{
		Action:     models.AuditActionRequirementChange,
		Resource:   "user_verification_requirements",
		ActorID:    actor.ID,
		ResourceID: req.ID,
		Payload:    map[string]interface{}{"operation": op, "name": req.Name, "level": req.Level, "active": req.Active},
		Meta:       meta,
	}
}
