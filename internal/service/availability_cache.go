package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/models"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Generation(ctx context.Context, key string) (int64, error)
	Invalidate(ctx context.Context, key string) error
	SetIfGeneration(ctx context.Context, key string, gen int64, value interface{}, ttl time.Duration) (bool, error)
}

const availabilityKeyPrefix = "user:availability:"

// AvailabilityCache keeps the latest availability per user in Redis. Writers invalidate
// after commit and readers fill through a generation check, so a stale read never
// overwrites a newer invalidation. Every failure degrades to a miss.
type AvailabilityCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewAvailabilityCache constructs the cache.
func NewAvailabilityCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (c *AvailabilityCache) Enabled() bool {
	return c != nil && c.enabled && c.repo != nil
}

// Get returns the cached availability and whether it was a hit.
func (c *AvailabilityCache) Get(ctx context.Context, userID string) (models.Availability, bool) {
	if !c.Enabled() {
		return "", false
	}
	start := time.Now()
	var value models.Availability
	err := c.repo.Get(ctx, availabilityKey(userID), &value)
	c.metrics.RecordCacheOperation(err == nil && value.Valid(), time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("availability cache get failed", zap.String("user_id", userID), zap.Error(err))
		}
		return "", false
	}
	if !value.Valid() {
		return "", false
	}
	return value, true
}

// Set stores availability for the configured TTL.
func (c *AvailabilityCache) Set(ctx context.Context, userID string, availability models.Availability) {
	if !c.Enabled() {
		return
	}
	start := time.Now()
	err := c.repo.Set(ctx, availabilityKey(userID), availability, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("availability cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Generation returns the invalidation counter to hand to Fill. ok is false when the cache
// cannot be consulted, in which case the fill is skipped.
func (c *AvailabilityCache) Generation(ctx context.Context, userID string) (int64, bool) {
	if !c.Enabled() {
		return 0, false
	}
	gen, err := c.repo.Generation(ctx, availabilityKey(userID))
	if err != nil {
		c.logger.Warn("availability cache generation failed", zap.String("user_id", userID), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// Fill caches availability loaded from the database unless the entry was invalidated
// after gen was taken.
func (c *AvailabilityCache) Fill(ctx context.Context, userID string, availability models.Availability, gen int64) {
	if !c.Enabled() {
		return
	}
	start := time.Now()
	stored, err := c.repo.SetIfGeneration(ctx, availabilityKey(userID), gen, availability, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("availability cache fill failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if !stored {
		c.logger.Debug("availability cache fill skipped after invalidation", zap.String("user_id", userID))
	}
}

// Invalidate drops the cached entry and discards in-flight fills.
func (c *AvailabilityCache) Invalidate(ctx context.Context, userID string) {
	if !c.Enabled() {
		return
	}
	if err := c.repo.Invalidate(ctx, availabilityKey(userID)); err != nil {
		c.logger.Warn("availability cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func availabilityKey(userID string) string {
	return availabilityKeyPrefix + userID
}
