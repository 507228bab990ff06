package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/service"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

type testEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type fakeTokens map[string]*models.JWTClaims

func (f fakeTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := f[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func sampleUser(id string) *models.User {
	return &models.User{
		ID:           id,
		Email:        id + "@example.com",
		IDNumber:     "secret-" + id,
		FullName:     "User " + id,
		Role:         models.RoleTranscriber,
		Status:       models.UserStatusActive,
		Availability: models.AvailabilityAvailable,
		EloRating:    1200,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type fakeAuth struct {
	login *models.LoginResponse
	err   error
}

func (f *fakeAuth) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	return f.login, f.err
}

func (f *fakeAuth) Me(_ context.Context, userID string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return sampleUser(userID), nil
}

type fakeUsers struct {
	registered   dto.RegisterUserRequest
	filter       models.UserFilter
	lastActor    service.Actor
	availability models.Availability
	cached       bool
	rows         int64
	exists       bool
	err          error
}

func (f *fakeUsers) Register(_ context.Context, req dto.RegisterUserRequest, _ models.RequestMeta) (*models.User, error) {
	f.registered = req
	if f.err != nil {
		return nil, f.err
	}
	u := sampleUser("new-user")
	u.Email = req.Email
	return u, nil
}

func (f *fakeUsers) EmailExists(context.Context, string) (bool, error) { return f.exists, f.err }

func (f *fakeUsers) Get(_ context.Context, id string, related bool) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := sampleUser(id)
	if related {
		u.Statistics = &models.UserStatistics{UserID: id, JobsCompleted: 3}
	}
	return u, nil
}

func (f *fakeUsers) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	f.filter = filter
	if f.err != nil {
		return nil, nil, f.err
	}
	return []models.User{*sampleUser("a"), *sampleUser("b")}, &models.Pagination{Limit: 50, TotalCount: 2}, nil
}

func (f *fakeUsers) ListAll(context.Context, bool) ([]models.User, error) {
	return []models.User{*sampleUser("a")}, f.err
}

func (f *fakeUsers) Update(_ context.Context, id string, _ dto.UpdateUserRequest, actor service.Actor, _ models.RequestMeta) (*models.User, error) {
	f.lastActor = actor
	if f.err != nil {
		return nil, f.err
	}
	return sampleUser(id), nil
}

func (f *fakeUsers) Delete(_ context.Context, _ string, actor service.Actor, _ models.RequestMeta) error {
	f.lastActor = actor
	return f.err
}

func (f *fakeUsers) UpdateAvailability(_ context.Context, _ string, availability models.Availability, actor service.Actor, _ models.RequestMeta) (int64, error) {
	f.lastActor = actor
	f.availability = availability
	return f.rows, f.err
}

func (f *fakeUsers) GetAvailability(context.Context, string) (models.Availability, bool, error) {
	return f.availability, f.cached, f.err
}

type fakeElo struct {
	format string
}

func (f *fakeElo) ApplyComparison(_ context.Context, userID string, req dto.ApplyEloRequest) (*models.EloHistory, int64, error) {
	return &models.EloHistory{ID: "h1", UserID: userID, ComparisonID: req.ComparisonID, OldRating: 1200, NewRating: 1216, Delta: 16}, 3, nil
}

func (f *fakeElo) History(context.Context, string, int) ([]models.EloHistory, error) {
	return []models.EloHistory{{ID: "h1"}}, nil
}

func (f *fakeElo) Export(_ context.Context, userID, format string) (string, string, []byte, error) {
	f.format = format
	if format != "csv" {
		return "", "", nil, appErrors.Clone(appErrors.ErrValidation, "unsupported format")
	}
	return "elo-history-" + userID + ".csv", "text/csv", []byte("id,old_rating\nh1,1200\n"), nil
}

type fakeComparisons struct{}

func (fakeComparisons) Record(_ context.Context, req dto.RecordComparisonRequest, reviewer service.Actor) (*models.JobComparison, error) {
	return &models.JobComparison{ID: "c1", JobID: req.JobID, UserID: req.UserID, ReviewerID: &reviewer.ID, Score: *req.Score}, nil
}

func (fakeComparisons) Get(_ context.Context, id string) (*models.JobComparison, error) {
	if id == "00000000-0000-4000-8000-000000000000" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "comparison not found")
	}
	return &models.JobComparison{ID: id, JobID: "job-1", UserID: "u1", Score: 0.5}, nil
}

type fakeStatistics struct {
	milestone *int
}

func (f *fakeStatistics) Get(_ context.Context, userID string) (*models.UserStatistics, error) {
	return &models.UserStatistics{UserID: userID, JobsCompleted: 4}, nil
}

func (f *fakeStatistics) ClaimJob(_ context.Context, userID string, req dto.ClaimJobRequest, _ service.Actor, _ models.RequestMeta) (*models.JobClaim, error) {
	return &models.JobClaim{ID: "claim-1", UserID: userID, JobID: req.JobID, Status: models.JobClaimActive}, nil
}

func (f *fakeStatistics) ReleaseClaim(_ context.Context, claimID string, _ service.Actor, _ models.RequestMeta) (*models.JobClaim, error) {
	return &models.JobClaim{ID: claimID, Status: models.JobClaimReleased}, nil
}

func (f *fakeStatistics) CompleteJob(_ context.Context, claimID string, req dto.CompleteJobRequest, _ service.Actor, _ models.RequestMeta) (*service.CompletionResult, error) {
	return &service.CompletionResult{
		Completion: &models.JobCompletion{ID: "done-1", ClaimID: &claimID, JobID: "job-1", DurationSeconds: req.DurationSeconds},
		Statistics: &models.UserStatistics{JobsCompleted: 10},
		Milestone:  f.milestone,
	}, nil
}

func (f *fakeStatistics) Claims(context.Context, string) ([]models.JobClaim, error) {
	return []models.JobClaim{}, nil
}

func (f *fakeStatistics) Completions(context.Context, string) ([]models.JobCompletion, error) {
	return []models.JobCompletion{}, nil
}

type fakeVerification struct {
	activeOnly bool
	verifyErr  error
}

func (f *fakeVerification) Verify(_ context.Context, subjectID string, _ dto.VerifyUserRequest, verifier service.Actor) (*models.VerificationRecord, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &models.VerificationRecord{ID: "v1", SubjectID: subjectID, VerifierID: verifier.ID, Status: models.VerificationApproved}, nil
}

func (f *fakeVerification) ListForUser(context.Context, string) ([]models.VerificationRecord, error) {
	return nil, nil
}

func (f *fakeVerification) Create(_ context.Context, req dto.VerificationRequirementRequest, actor service.Actor, _ models.RequestMeta) (*models.UserVerificationRequirement, error) {
	return &models.UserVerificationRequirement{ID: "r1", Name: req.Name, Level: req.Level, ValidationRules: []byte(req.ValidationRules), Active: true, CreatedBy: &actor.ID}, nil
}

func (f *fakeVerification) Get(_ context.Context, id string) (*models.UserVerificationRequirement, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "verification requirement not found")
	}
	return &models.UserVerificationRequirement{ID: id, ValidationRules: []byte(`{"version":1,"rules":[]}`)}, nil
}

func (f *fakeVerification) List(_ context.Context, activeOnly bool) ([]models.UserVerificationRequirement, error) {
	f.activeOnly = activeOnly
	return []models.UserVerificationRequirement{}, nil
}

func (f *fakeVerification) Update(_ context.Context, id string, req dto.VerificationRequirementRequest, _ service.Actor, _ models.RequestMeta) (*models.UserVerificationRequirement, error) {
	return &models.UserVerificationRequirement{ID: id, Name: req.Name}, nil
}

func (f *fakeVerification) Delete(context.Context, string, service.Actor, models.RequestMeta) error {
	return nil
}

type fakeAudit struct {
	limit int
}

func (f *fakeAudit) List(_ context.Context, _ string, limit int) ([]models.AuditLog, error) {
	f.limit = limit
	return []models.AuditLog{{ID: "a1", Action: models.AuditActionLogin, Resource: "users"}}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

var errDatabaseDown = errors.New("connection refused")
