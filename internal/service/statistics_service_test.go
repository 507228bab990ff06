package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

type statsFixture struct {
	uow    *fakeUoW
	events *recordingDispatcher
	svc    *StatisticsService
	user   models.User
	actor  Actor
}

func newStatsFixture(maxWorkload int) *statsFixture {
	uow := newFakeUoW()
	events := &recordingDispatcher{}
	svc := NewStatisticsService(uow, NewAuditService(uow, zap.NewNop()), StatisticsServiceConfig{
		MaxWorkload: maxWorkload,
		Events:      events,
		Logger:      zap.NewNop(),
	})
	user := uow.db.seedUser(models.User{})
	return &statsFixture{uow: uow, events: events, svc: svc, user: user, actor: Actor{ID: user.ID, Role: models.RoleTranscriber}}
}

func TestCrossedMilestone(t *testing.T) {
	m, ok := models.CrossedMilestone(9, 10)
	assert.True(t, ok)
	assert.Equal(t, 10, m)

	_, ok = models.CrossedMilestone(10, 11)
	assert.False(t, ok)

	m, ok = models.CrossedMilestone(99, 100)
	assert.True(t, ok)
	assert.Equal(t, 100, m)
}

func TestStatisticsServiceClaimJob(t *testing.T) {
	f := newStatsFixture(5)

	claim, err := f.svc.ClaimJob(context.Background(), f.user.ID, dto.ClaimJobRequest{JobID: " job-1 ", Metadata: json.RawMessage(`{"priority":"high"}`)}, f.actor, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "job-1", claim.JobID)
	assert.Equal(t, models.JobClaimActive, claim.Status)

	assert.Equal(t, 1, f.uow.db.stats[f.user.ID].JobsClaimed)
	require.Len(t, f.uow.db.audits, 1)
	assert.Equal(t, models.AuditActionJobClaim, f.uow.db.audits[0].Action)
	assert.Equal(t, []string{models.TopicJobClaimed}, f.events.topics())

	claims, err := f.svc.Claims(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestStatisticsServiceClaimJobConflicts(t *testing.T) {
	f := newStatsFixture(1)
	other := f.uow.db.seedUser(models.User{})

	_, err := f.svc.ClaimJob(context.Background(), f.user.ID, dto.ClaimJobRequest{JobID: "job-1"}, f.actor, models.RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.ClaimJob(context.Background(), other.ID, dto.ClaimJobRequest{JobID: "job-1"}, Actor{ID: other.ID}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "job already claimed", appErrors.FromError(err).Message)

	_, err = f.svc.ClaimJob(context.Background(), f.user.ID, dto.ClaimJobRequest{JobID: "job-2"}, f.actor, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "user reached the maximum workload", appErrors.FromError(err).Message)

	busy := f.uow.db.seedUser(models.User{Availability: models.AvailabilityBusy})
	_, err = f.svc.ClaimJob(context.Background(), busy.ID, dto.ClaimJobRequest{JobID: "job-3"}, Actor{ID: busy.ID}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "user is not available", appErrors.FromError(err).Message)

	_, err = f.svc.ClaimJob(context.Background(), other.ID, dto.ClaimJobRequest{JobID: "job-4"}, f.actor, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.ClaimJob(context.Background(), f.user.ID, dto.ClaimJobRequest{JobID: "job-5", Metadata: json.RawMessage(`{broken`)}, f.actor, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Len(t, f.uow.db.claims, 1)
	assert.Len(t, f.events.topics(), 1)
}

func TestStatisticsServiceCompleteJobPublishesMilestone(t *testing.T) {
	f := newStatsFixture(5)
	stats := f.uow.db.stats[f.user.ID]
	stats.JobsCompleted = 9
	f.uow.db.stats[f.user.ID] = stats

	claim, err := f.svc.ClaimJob(context.Background(), f.user.ID, dto.ClaimJobRequest{JobID: "job-1"}, f.actor, models.RequestMeta{})
	require.NoError(t, err)

	accuracy := 0.9
	result, err := f.svc.CompleteJob(context.Background(), claim.ID, dto.CompleteJobRequest{DurationSeconds: 120, Accuracy: &accuracy}, f.actor, models.RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, 10, result.Statistics.JobsCompleted)
	assert.Equal(t, int64(120), result.Statistics.TotalDurationSeconds)
	require.NotNil(t, result.Milestone)
	assert.Equal(t, 10, *result.Milestone)
	assert.Equal(t, claim.ID, *result.Completion.ClaimID)

	stored, err := f.uow.Read().JobClaims.FindByID(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobClaimCompleted, stored.Status)

	assert.Equal(t, []string{models.TopicJobClaimed, models.TopicPerformanceMilestone}, f.events.topics())
	milestone := f.events.events[1]
	assert.Equal(t, float64(10), milestone.Payload["milestone"])

	completions, err := f.svc.Completions(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Len(t, completions, 1)

	_, err = f.svc.CompleteJob(context.Background(), claim.ID, dto.CompleteJobRequest{DurationSeconds: 10}, f.actor, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestStatisticsServiceCompleteJobWithoutMilestone(t *testing.T) {
	f := newStatsFixture(5)
	claim, err := f.svc.ClaimJob(context.Background(), f.user.ID, dto.ClaimJobRequest{JobID: "job-1"}, f.actor, models.RequestMeta{})
	require.NoError(t, err)

	result, err := f.svc.CompleteJob(context.Background(), claim.ID, dto.CompleteJobRequest{DurationSeconds: 30}, f.actor, models.RequestMeta{})
	require.NoError(t, err)
	assert.Nil(t, result.Milestone)
	assert.Equal(t, []string{models.TopicJobClaimed}, f.events.topics())
}

func TestStatisticsServiceAccuracyIgnoresUnscoredCompletions(t *testing.T) {
	f := newStatsFixture(5)
	complete := func(job string, accuracy *float64) *models.UserStatistics {
		claim, err := f.svc.ClaimJob(context.Background(), f.user.ID, dto.ClaimJobRequest{JobID: job}, f.actor, models.RequestMeta{})
		require.NoError(t, err)
		result, err := f.svc.CompleteJob(context.Background(), claim.ID, dto.CompleteJobRequest{DurationSeconds: 60, Accuracy: accuracy}, f.actor, models.RequestMeta{})
		require.NoError(t, err)
		return result.Statistics
	}

	stats := complete("job-1", nil)
	assert.Equal(t, 0, stats.AccuracySamples)
	assert.Equal(t, 0.0, stats.AverageAccuracy)

	perfect, half := 1.0, 0.5
	stats = complete("job-2", &perfect)
	assert.Equal(t, 2, stats.JobsCompleted)
	assert.Equal(t, 1, stats.AccuracySamples)
	assert.InDelta(t, 1.0, stats.AverageAccuracy, 1e-9)

	stats = complete("job-3", &half)
	assert.Equal(t, 2, stats.AccuracySamples)
	assert.InDelta(t, 0.75, stats.AverageAccuracy, 1e-9)
}

func TestStatisticsServiceReleaseAndOwnership(t *testing.T) {
	f := newStatsFixture(5)
	claim, err := f.svc.ClaimJob(context.Background(), f.user.ID, dto.ClaimJobRequest{JobID: "job-1"}, f.actor, models.RequestMeta{})
	require.NoError(t, err)

	stranger := Actor{ID: "someone-else", Role: models.RoleTranscriber}
	_, err = f.svc.ReleaseClaim(context.Background(), claim.ID, stranger, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	released, err := f.svc.ReleaseClaim(context.Background(), claim.ID, f.actor, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.JobClaimReleased, released.Status)
	assert.NotNil(t, released.ReleasedAt)

	_, err = f.svc.CompleteJob(context.Background(), claim.ID, dto.CompleteJobRequest{}, f.actor, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = f.svc.ReleaseClaim(context.Background(), "missing", f.actor, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	again, err := f.svc.ClaimJob(context.Background(), f.user.ID, dto.ClaimJobRequest{JobID: "job-1"}, f.actor, models.RequestMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, claim.ID, again.ID)
}

func TestStatisticsServiceGet(t *testing.T) {
	f := newStatsFixture(5)
	stats, err := f.svc.Get(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, stats.UserID)

	_, err = f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
