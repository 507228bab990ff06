package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/repository"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

// StatisticsService tracks job claims, completions and the derived user statistics.
type StatisticsService struct {
	uow         unitOfWork
	audit       *AuditService
	events      eventDispatcher
	validator   *validator.Validate
	logger      *zap.Logger
	maxWorkload int
	now         func() time.Time
}

// StatisticsServiceConfig bundles optional collaborators.
type StatisticsServiceConfig struct {
	MaxWorkload int
	Events      eventDispatcher
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// CompletionResult is the outcome of completing a job.
type CompletionResult struct {
	Completion *models.JobCompletion
	Statistics *models.UserStatistics
	Milestone  *int
}

// NewStatisticsService constructs the service.
func NewStatisticsService(uow unitOfWork, audit *AuditService, cfg StatisticsServiceConfig) *StatisticsService {
	if cfg.MaxWorkload <= 0 {
		cfg.MaxWorkload = 5
	}
	if cfg.Events == nil {
		cfg.Events = noopDispatcher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &StatisticsService{
		uow:         uow,
		audit:       audit,
		events:      cfg.Events,
		validator:   newValidator(cfg.Validator),
		logger:      cfg.Logger,
		maxWorkload: cfg.MaxWorkload,
		now:         time.Now,
	}
}

// Get returns the statistics of a user.
func (s *StatisticsService) Get(ctx context.Context, userID string) (*models.UserStatistics, error) {
	stats, err := s.uow.Read().Statistics.FindByUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "statistics not found", "failed to load statistics")
	}
	return stats, nil
}

// ClaimJob records an active claim for an available user below the workload limit.
func (s *StatisticsService) ClaimJob(ctx context.Context, userID string, req dto.ClaimJobRequest, actor Actor, meta models.RequestMeta) (*models.JobClaim, error) {
	req.JobID = strings.TrimSpace(req.JobID)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid claim payload")
	}
	if !actor.IsAdmin() && actor.ID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot claim jobs for another user")
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "metadata must be valid JSON")
	}

	claim := &models.JobClaim{UserID: userID, JobID: req.JobID, Status: models.JobClaimActive, Metadata: []byte(req.Metadata)}
	_, err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		user, err := repos.Users.LockForUpdate(ctx, userID)
		if err != nil {
			return notFoundOr(err, "user not found", "failed to lock user")
		}
		if user.Status != models.UserStatusActive {
			return appErrors.Clone(appErrors.ErrConflict, "user is suspended")
		}
		if user.Availability != models.AvailabilityAvailable {
			return appErrors.Clone(appErrors.ErrConflict, "user is not available")
		}
		workload, err := repos.JobClaims.CountActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		if workload >= s.maxWorkload {
			return appErrors.Clone(appErrors.ErrConflict, "user reached the maximum workload")
		}
		if _, err := repos.JobClaims.ActiveByJob(ctx, req.JobID); err == nil {
			return appErrors.Clone(appErrors.ErrConflict, "job already claimed")
		} else if !isNoRows(err) {
			return err
		}
		if err := repos.JobClaims.Create(ctx, claim); err != nil {
			return err
		}
		if err := repos.Statistics.IncrementClaimed(ctx, userID); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, repos, AuditEntry{
			Action:     models.AuditActionJobClaim,
			Resource:   "job_claims",
			UserID:     userID,
			ActorID:    actor.ID,
			ResourceID: claim.ID,
			Payload:    map[string]interface{}{"job_id": claim.JobID, "workload": workload + 1},
			Meta:       meta,
		})
	})
	if err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "job already claimed")
		}
		return nil, passThrough(err, "failed to claim job")
	}

	s.events.Dispatch(ctx, models.TopicJobClaimed, userID, map[string]interface{}{
		"user_id":  userID,
		"claim_id": claim.ID,
		"job_id":   claim.JobID,
	})
	return claim, nil
}

// ReleaseClaim gives an active claim back without completing it.
func (s *StatisticsService) ReleaseClaim(ctx context.Context, claimID string, actor Actor, meta models.RequestMeta) (*models.JobClaim, error) {
	var claim *models.JobClaim
	_, err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		claim, err = s.activeClaim(ctx, repos, claimID, actor)
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if err := repos.JobClaims.UpdateStatus(ctx, claim.ID, models.JobClaimReleased, at); err != nil {
			return claimTransitionError(err)
		}
		claim.Status = models.JobClaimReleased
		claim.ReleasedAt = &at
		return s.audit.RecordTx(ctx, repos, AuditEntry{
			Action:     models.AuditActionJobRelease,
			Resource:   "job_claims",
			UserID:     claim.UserID,
			ActorID:    actor.ID,
			ResourceID: claim.ID,
			Payload:    map[string]interface{}{"job_id": claim.JobID},
			Meta:       meta,
		})
	})
	if err != nil {
		return nil, passThrough(err, "failed to release claim")
	}
	return claim, nil
}

// CompleteJob records the completion of an active claim and updates statistics. Crossing a
// completion milestone publishes user.performance.milestone.
func (s *StatisticsService) CompleteJob(ctx context.Context, claimID string, req dto.CompleteJobRequest, actor Actor, meta models.RequestMeta) (*CompletionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid completion payload")
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "metadata must be valid JSON")
	}

	result := &CompletionResult{}
	_, err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		claim, err := s.activeClaim(ctx, repos, claimID, actor)
		if err != nil {
			return err
		}
		before, err := repos.Statistics.FindByUser(ctx, claim.UserID)
		if err != nil {
			return notFoundOr(err, "statistics not found", "failed to load statistics")
		}

		at := s.now().UTC()
		if err := repos.JobClaims.UpdateStatus(ctx, claim.ID, models.JobClaimCompleted, at); err != nil {
			return claimTransitionError(err)
		}
		completion := models.JobCompletion{
			UserID:          claim.UserID,
			ClaimID:         &claim.ID,
			JobID:           claim.JobID,
			DurationSeconds: req.DurationSeconds,
			Accuracy:        req.Accuracy,
			Metadata:        []byte(req.Metadata),
			CompletedAt:     at,
		}
		if err := repos.JobCompletions.Create(ctx, &completion); err != nil {
			return err
		}
		if err := repos.Statistics.RecordCompletion(ctx, claim.UserID, req.DurationSeconds, req.Accuracy); err != nil {
			return err
		}
		after, err := repos.Statistics.FindByUser(ctx, claim.UserID)
		if err != nil {
			return err
		}

		result.Completion = &completion
		result.Statistics = after
		if m, ok := models.CrossedMilestone(before.JobsCompleted, after.JobsCompleted); ok {
			result.Milestone = &m
		}
		return s.audit.RecordTx(ctx, repos, AuditEntry{
			Action:     models.AuditActionJobComplete,
			Resource:   "job_completions",
			UserID:     claim.UserID,
			ActorID:    actor.ID,
			ResourceID: completion.ID,
			Payload:    map[string]interface{}{"job_id": claim.JobID, "duration_seconds": req.DurationSeconds},
			Meta:       meta,
		})
	})
	if err != nil {
		return nil, passThrough(err, "failed to complete job")
	}

	if result.Milestone != nil {
		s.events.Dispatch(ctx, models.TopicPerformanceMilestone, result.Completion.UserID, map[string]interface{}{
			"user_id":        result.Completion.UserID,
			"milestone":      *result.Milestone,
			"jobs_completed": result.Statistics.JobsCompleted,
		})
	}
	return result, nil
}

// Claims lists the claims of a user.
func (s *StatisticsService) Claims(ctx context.Context, userID string) ([]models.JobClaim, error) {
	claims, err := s.uow.Read().JobClaims.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalError(err, "failed to list claims")
	}
	return claims, nil
}

// Completions lists the completions of a user.
func (s *StatisticsService) Completions(ctx context.Context, userID string) ([]models.JobCompletion, error) {
	completions, err := s.uow.Read().JobCompletions.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalError(err, "failed to list completions")
	}
	return completions, nil
}

func (s *StatisticsService) activeClaim(ctx context.Context, repos *repository.Repositories, claimID string, actor Actor) (*models.JobClaim, error) {
	claim, err := repos.JobClaims.FindByID(ctx, claimID)
	if err != nil {
		return nil, notFoundOr(err, "claim not found", "failed to load claim")
	}
	if !actor.IsAdmin() && claim.UserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "claim belongs to another user")
	}
	if claim.Status != models.JobClaimActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "claim is not active")
	}
	return claim, nil
}

func claimTransitionError(err error) error {
	if isNoRows(err) {
		return appErrors.Clone(appErrors.ErrConflict, "claim is not active")
	}
	return err
}
