package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/user-management-api/internal/models"
)

func TestNewUserResponseBypassFollowsRole(t *testing.T) {
	pro := NewUserResponse(models.User{ID: "u1", Role: models.RoleProfessional, IDNumber: "secret", PasswordHash: "hash"})
	assert.True(t, pro.BypassQaComparison)
	assert.NotNil(t, pro.Dialects)

	flagged := NewUserResponse(models.User{ID: "u2", Role: models.RoleTranscriber, IsProfessional: true})
	assert.False(t, flagged.BypassQaComparison)
	assert.True(t, flagged.IsProfessional)
}

func TestNewUserDetailResponseIncludesRelations(t *testing.T) {
	user := models.User{
		ID:         "u1",
		Role:       models.RoleTranscriber,
		Dialects:   []models.UserDialect{{DialectCode: "ar-EG"}},
		Statistics: &models.UserStatistics{JobsCompleted: 4},
		EloHistory: []models.EloHistory{{ID: "h1", NewRating: 1216}},
	}
	detail := NewUserDetailResponse(user)
	assert.Equal(t, "ar-EG", detail.Dialects[0].Code)
	if assert.NotNil(t, detail.Statistics) {
		assert.Equal(t, 4, detail.Statistics.JobsCompleted)
	}
	assert.Len(t, detail.EloHistory, 1)
}

func TestRawJSONDropsEmptyDocuments(t *testing.T) {
	assert.Nil(t, rawJSON(nil))
	assert.Nil(t, rawJSON([]byte("{}")))
	assert.Nil(t, rawJSON([]byte("null")))
	assert.JSONEq(t, `{"a":1}`, string(rawJSON([]byte(`{"a":1}`))))
}
