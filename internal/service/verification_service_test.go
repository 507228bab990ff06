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

const strictRules = `{
	"version": 2,
	"rules": [
		{"field": "elo_rating", "operator": "gte", "value": 1300},
		{"field": "jobs_completed", "operator": "gte", "value": 10},
		{"field": "dialects", "operator": "in", "value": ["es-MX", "es-ES"]},
		{"field": "has_phone", "operator": "exists"},
		{"field": "status", "operator": "eq", "value": "active"}
	]
}`

func TestRulesRoundTrip(t *testing.T) {
	rules, err := DecodeRules([]byte(strictRules))
	require.NoError(t, err)
	assert.Equal(t, 2, rules.Version)
	require.Len(t, rules.Rules, 5)

	encoded, err := EncodeRules(rules)
	require.NoError(t, err)
	again, err := DecodeRules(encoded)
	require.NoError(t, err)
	assert.Equal(t, rules, again)

	reencoded, err := EncodeRules(again)
	require.NoError(t, err)
	assert.JSONEq(t, string(encoded), string(reencoded))
}

func TestDecodeRulesRejectsInvalidPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"version":`,
		"missing version":  `{"rules": []}`,
		"unknown field":    `{"version":1,"rules":[{"field":"shoe_size","operator":"eq","value":1}]}`,
		"unknown operator": `{"version":1,"rules":[{"field":"role","operator":"like","value":"Admin"}]}`,
		"numeric operator": `{"version":1,"rules":[{"field":"elo_rating","operator":"gte","value":"high"}]}`,
		"in without list":  `{"version":1,"rules":[{"field":"role","operator":"in","value":"Admin"}]}`,
		"eq without value": `{"version":1,"rules":[{"field":"role","operator":"eq"}]}`,
		"unknown key":      `{"version":1,"rules":[],"extra":true}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRules([]byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRules)
		})
	}
}

func TestRulesEvaluate(t *testing.T) {
	rules, err := DecodeRules([]byte(strictRules))
	require.NoError(t, err)

	phone := "+52 55 0000 0000"
	qualified := SubjectFacts(
		models.User{EloRating: 1350, Status: models.UserStatusActive, Phone: &phone, IDNumber: "X"},
		&models.UserStatistics{JobsCompleted: 12},
		[]models.UserDialect{{DialectCode: "es-MX"}},
	)
	assert.Empty(t, rules.Evaluate(qualified))

	unqualified := SubjectFacts(models.User{EloRating: 1250, Status: models.UserStatusSuspended}, nil, nil)
	failures := rules.Evaluate(unqualified)
	require.Len(t, failures, 5)
	assert.Equal(t, FactEloRating, failures[0].Field)
	assert.Equal(t, 1250.0, failures[0].Actual)

	neq := ValidationRules{Version: 1, Rules: []Rule{
		{Field: FactRole, Operator: OperatorNeq, Value: "Admin"},
		{Field: FactDialectCount, Operator: OperatorLt, Value: 3.0},
		{Field: FactIsProfessional, Operator: OperatorEq, Value: false},
		{Field: FactHasIDNumber, Operator: OperatorExists, Value: false},
	}}
	assert.Empty(t, neq.Evaluate(SubjectFacts(models.User{Role: models.RoleTranscriber}, nil, nil)))
}

type verificationFixture struct {
	uow          *fakeUoW
	requirements *VerificationRequirementService
	verify       *VerificationService
	admin        Actor
	reviewer     Actor
	subject      models.User
}

func newVerificationFixture() *verificationFixture {
	uow := newFakeUoW()
	audit := NewAuditService(uow, zap.NewNop())
	admin := uow.db.seedUser(models.User{Role: models.RoleAdmin})
	reviewer := uow.db.seedUser(models.User{Role: models.RoleQAReviewer})
	phone := "555-0100"
	subject := uow.db.seedUser(models.User{EloRating: 1350, Phone: &phone})
	uow.db.dialects[subject.ID] = []models.UserDialect{{UserID: subject.ID, DialectCode: "es-ES"}}
	return &verificationFixture{
		uow:          uow,
		requirements: NewVerificationRequirementService(uow, audit, nil, zap.NewNop()),
		verify:       NewVerificationService(uow, nil, zap.NewNop()),
		admin:        Actor{ID: admin.ID, Role: models.RoleAdmin},
		reviewer:     Actor{ID: reviewer.ID, Role: models.RoleQAReviewer},
		subject:      subject,
	}
}

func requirementRequest(name, rules string) dto.VerificationRequirementRequest {
	return dto.VerificationRequirementRequest{Name: name, Level: models.VerificationLevelStrict, ValidationRules: json.RawMessage(rules)}
}

func TestVerificationRequirementServiceCRUD(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	created, err := f.requirements.Create(ctx, requirementRequest("strict", strictRules), f.admin, models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.Equal(t, f.admin.ID, *created.CreatedBy)

	_, err = f.requirements.Create(ctx, requirementRequest("strict", strictRules), f.admin, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = f.requirements.Create(ctx, requirementRequest("bad", `{"version":0}`), f.admin, models.RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidRules)

	inactive := false
	replacement := requirementRequest("strict-v2", `{"version":3,"rules":[{"field":"role","operator":"eq","value":"Transcriber"}]}`)
	replacement.Active = &inactive
	updated, err := f.requirements.Update(ctx, created.ID, replacement, f.admin, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "strict-v2", updated.Name)
	assert.False(t, updated.Active)
	assert.Equal(t, created.CreatedBy, updated.CreatedBy)

	stored, err := f.requirements.Get(ctx, created.ID)
	require.NoError(t, err)
	rules, err := f.requirements.Rules(stored)
	require.NoError(t, err)
	assert.Equal(t, 3, rules.Version)
	require.Len(t, rules.Rules, 1)

	all, err := f.requirements.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	active, err := f.requirements.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, f.requirements.Delete(ctx, created.ID, f.admin, models.RequestMeta{}))
	_, err = f.requirements.Get(ctx, created.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	actions := 0
	for _, a := range f.uow.db.audits {
		if a.Action == models.AuditActionRequirementChange {
			actions++
		}
	}
	assert.Equal(t, 3, actions)
}

func TestVerificationServiceEvaluatesRequirement(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()
	requirement, err := f.requirements.Create(ctx, requirementRequest("strict", strictRules), f.admin, models.RequestMeta{})
	require.NoError(t, err)

	record, err := f.verify.Verify(ctx, f.subject.ID, dto.VerifyUserRequest{RequirementID: &requirement.ID}, f.reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRejected, record.Status)
	require.NotNil(t, record.Level)
	assert.Equal(t, models.VerificationLevelStrict, *record.Level)

	var outcome VerificationOutcome
	require.NoError(t, json.Unmarshal(record.Result, &outcome))
	assert.Equal(t, 5, outcome.Evaluated)
	require.Len(t, outcome.Failures, 1)
	assert.Equal(t, FactJobsCompleted, outcome.Failures[0].Field)

	approved := models.VerificationApproved
	_, err = f.verify.Verify(ctx, f.subject.ID, dto.VerifyUserRequest{RequirementID: &requirement.ID, Status: &approved}, f.reviewer)
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	stats := f.uow.db.stats[f.subject.ID]
	stats.JobsCompleted = 25
	f.uow.db.stats[f.subject.ID] = stats
	record, err = f.verify.Verify(ctx, f.subject.ID, dto.VerifyUserRequest{RequirementID: &requirement.ID}, f.reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationApproved, record.Status)

	records, err := f.verify.ListForUser(ctx, f.subject.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, record.ID, records[0].ID)

	err = f.requirements.Delete(ctx, requirement.ID, f.admin, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestVerificationServiceManualStatus(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	_, err := f.verify.Verify(ctx, f.subject.ID, dto.VerifyUserRequest{}, f.reviewer)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	approved := models.VerificationApproved
	notes := "checked documents"
	record, err := f.verify.Verify(ctx, f.subject.ID, dto.VerifyUserRequest{Status: &approved, Notes: &notes}, f.reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationApproved, record.Status)
	assert.Equal(t, f.reviewer.ID, record.VerifierID)
	assert.Nil(t, record.RequirementID)

	_, err = f.verify.Verify(ctx, f.reviewer.ID, dto.VerifyUserRequest{Status: &approved}, f.reviewer)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.verify.Verify(ctx, "11111111-1111-1111-1111-111111111111", dto.VerifyUserRequest{Status: &approved}, f.reviewer)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.verify.Verify(ctx, f.subject.ID, dto.VerifyUserRequest{Status: &approved}, Actor{ID: "ghost", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestVerificationServiceInactiveRequirement(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()
	inactive := false
	req := requirementRequest("retired", strictRules)
	req.Active = &inactive
	requirement, err := f.requirements.Create(ctx, req, f.admin, models.RequestMeta{})
	require.NoError(t, err)

	_, err = f.verify.Verify(ctx, f.subject.ID, dto.VerifyUserRequest{RequirementID: &requirement.ID}, f.reviewer)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, f.uow.db.records)
}
