package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
)

// ComparisonService records QA comparison events that later drive Elo updates.
type ComparisonService struct {
	uow       unitOfWork
	validator *validator.Validate
	logger    *zap.Logger
}

// NewComparisonService constructs the service.
func NewComparisonService(uow unitOfWork, validate *validator.Validate, logger *zap.Logger) *ComparisonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComparisonService{uow: uow, validator: newValidator(validate), logger: logger}
}

// Record stores a comparison for an existing user.
func (s *ComparisonService) Record(ctx context.Context, req dto.RecordComparisonRequest, reviewer Actor) (*models.JobComparison, error) {
	req.JobID = strings.TrimSpace(req.JobID)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid comparison payload")
	}

	read := s.uow.Read()
	if _, err := read.Users.FindByID(ctx, req.UserID); err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}

	comparison := &models.JobComparison{
		JobID:          req.JobID,
		UserID:         req.UserID,
		ReviewerID:     optionalString(reviewer.ID),
		Score:          *req.Score,
		OpponentRating: req.OpponentRating,
		Notes:          req.Notes,
	}
	if err := read.Comparisons.Create(ctx, comparison); err != nil {
		return nil, internalError(err, "failed to record comparison")
	}
	return comparison, nil
}

// Get returns a comparison by id.
func (s *ComparisonService) Get(ctx context.Context, id string) (*models.JobComparison, error) {
	comparison, err := s.uow.Read().Comparisons.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "comparison not found", "failed to load comparison")
	}
	return comparison, nil
}
