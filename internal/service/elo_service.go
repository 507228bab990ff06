package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/repository"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
	"github.com/noah-isme/user-management-api/pkg/export"
)

const (
	DefaultBaselineRating = 1200.0
	DefaultKFactor        = 32.0

	ratingPrecision = 1e4
)

// Expected returns the probability that a player rated rating scores against opponent.
func Expected(rating, opponent float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-rating)/400))
}

// NextRating returns the rating after scoring score (0..1) against opponent with factor k.
func NextRating(old, opponent, score, k float64) float64 {
	return old + k*(score-Expected(old, opponent))
}

func roundRating(v float64) float64 {
	return math.Round(v*ratingPrecision) / ratingPrecision
}

// EloService maintains the rating history of users.
type EloService struct {
	uow       unitOfWork
	events    eventDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	baseline  float64
	kFactor   float64
	now       func() time.Time
}

// EloServiceConfig tunes the rating update.
type EloServiceConfig struct {
	BaselineRating float64
	KFactor        float64
	Events         eventDispatcher
	Metrics        *MetricsService
	Validator      *validator.Validate
	Logger         *zap.Logger
}

// NewEloService constructs the service.
func NewEloService(uow unitOfWork, cfg EloServiceConfig) *EloService {
	if cfg.BaselineRating <= 0 {
		cfg.BaselineRating = DefaultBaselineRating
	}
	if cfg.KFactor <= 0 {
		cfg.KFactor = DefaultKFactor
	}
	if cfg.Events == nil {
		cfg.Events = noopDispatcher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &EloService{
		uow:       uow,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		validator: newValidator(cfg.Validator),
		logger:    cfg.Logger,
		baseline:  cfg.BaselineRating,
		kFactor:   cfg.KFactor,
		now:       time.Now,
	}
}

// ApplyComparison appends one rating change derived from a comparison. The user row is
// locked for the duration of the transaction so concurrent updates serialise. A comparison
// moves the rating at most once. After commit user.elo.updated is published.
func (s *EloService) ApplyComparison(ctx context.Context, userID string, req dto.ApplyEloRequest) (*models.EloHistory, int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, 0, validationError(err, "invalid elo update payload")
	}

	var entry *models.EloHistory
	start := s.now()
	rows, err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if _, err := repos.Users.LockForUpdate(ctx, userID); err != nil {
			return notFoundOr(err, "user not found", "failed to lock user")
		}
		comparison, err := repos.Comparisons.FindByID(ctx, req.ComparisonID)
		if err != nil {
			return notFoundOr(err, "comparison not found", "failed to load comparison")
		}
		if comparison.UserID != userID {
			return appErrors.Clone(appErrors.ErrValidation, "comparison belongs to another user")
		}

		oldRating, err := s.latestRating(ctx, repos, userID)
		if err != nil {
			return err
		}

		score := comparison.Score
		if req.Score != nil {
			score = *req.Score
		}
		opponent := s.baseline
		if comparison.OpponentRating != nil {
			opponent = *comparison.OpponentRating
		}
		if req.OpponentRating != nil {
			opponent = *req.OpponentRating
		}

		expected := Expected(oldRating, opponent)
		newRating := roundRating(NextRating(oldRating, opponent, score, s.kFactor))
		entry = &models.EloHistory{
			UserID:        userID,
			ComparisonID:  comparison.ID,
			OldRating:     oldRating,
			NewRating:     newRating,
			Delta:         roundRating(newRating - oldRating),
			KFactor:       s.kFactor,
			ExpectedScore: roundRating(expected),
			ActualScore:   score,
			CreatedAt:     s.now().UTC(),
		}
		if err := repos.EloHistory.Append(ctx, entry); err != nil {
			return err
		}
		if err := repos.Users.UpdateRating(ctx, userID, newRating); err != nil {
			return err
		}
		if err := repos.Statistics.RecordComparison(ctx, userID, score); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return nil
	})
	if err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, 0, appErrors.Clone(appErrors.ErrConflict, "comparison already applied")
		}
		return nil, 0, passThrough(err, "failed to apply elo update")
	}
	s.metrics.ObserveUnitOfWork("elo_update", rows, s.now().Sub(start))

	s.events.Dispatch(ctx, models.TopicEloUpdated, userID, map[string]interface{}{
		"user_id":        userID,
		"comparison_id":  entry.ComparisonID,
		"history_id":     entry.ID,
		"old_rating":     entry.OldRating,
		"new_rating":     entry.NewRating,
		"delta":          entry.Delta,
		"k_factor":       entry.KFactor,
		"expected_score": entry.ExpectedScore,
		"actual_score":   entry.ActualScore,
	})
	return entry, rows, nil
}

// History returns the newest rating changes first.
func (s *EloService) History(ctx context.Context, userID string, limit int) ([]models.EloHistory, error) {
	read := s.uow.Read()
	if _, err := read.Users.FindByID(ctx, userID); err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	history, err := read.EloHistory.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, internalError(err, "failed to load elo history")
	}
	return history, nil
}

// CurrentRating returns the latest rating, or the baseline when no history exists.
func (s *EloService) CurrentRating(ctx context.Context, userID string) (float64, error) {
	read := s.uow.Read()
	if _, err := read.Users.FindByID(ctx, userID); err != nil {
		return 0, notFoundOr(err, "user not found", "failed to load user")
	}
	return s.latestRating(ctx, read, userID)
}

// Export renders the user's rating history as CSV or PDF.
func (s *EloService) Export(ctx context.Context, userID, rawFormat string) (string, string, []byte, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return "", "", nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	renderer, err := export.ForFormat(format)
	if err != nil {
		return "", "", nil, internalError(err, "failed to select exporter")
	}
	history, err := s.History(ctx, userID, 100)
	if err != nil {
		return "", "", nil, err
	}

	dataset := export.Dataset{
		Title:   "Elo history " + userID,
		Headers: []string{"Date", "Comparison", "Old", "New", "Delta", "Expected", "Score", "K"},
	}
	for _, h := range history {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":       h.CreatedAt.UTC().Format(time.RFC3339),
			"Comparison": h.ComparisonID,
			"Old":        formatRating(h.OldRating),
			"New":        formatRating(h.NewRating),
			"Delta":      formatRating(h.Delta),
			"Expected":   formatRating(h.ExpectedScore),
			"Score":      formatRating(h.ActualScore),
			"K":          formatRating(h.KFactor),
		})
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return "", "", nil, internalError(err, "failed to render elo history")
	}
	filename := fmt.Sprintf("elo-history-%s.%s", userID, renderer.Extension())
	return filename, renderer.ContentType(), body, nil
}

func (s *EloService) latestRating(ctx context.Context, repos *repository.Repositories, userID string) (float64, error) {
	latest, err := repos.EloHistory.LatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.baseline, nil
		}
		return 0, internalError(err, "failed to load latest rating")
	}
	return latest.NewRating, nil
}

func formatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
