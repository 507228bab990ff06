package dto

import (
	"time"

	"github.com/noah-isme/user-management-api/internal/models"
)

// DialectInput describes a dialect supplied at registration or update.
type DialectInput struct {
	Code        string  `json:"code" validate:"required,max=32"`
	Proficiency *string `json:"proficiency,omitempty" validate:"omitempty,max=32"`
}

// RegisterUserRequest is the registration payload.
type RegisterUserRequest struct {
	Email          string          `json:"email" validate:"required,email,max=255"`
	IDNumber       string          `json:"id_number" validate:"required,max=64"`
	Password       string          `json:"password" validate:"required,min=8,max=72"`
	FullName       string          `json:"full_name" validate:"required,max=255"`
	Phone          *string         `json:"phone,omitempty" validate:"omitempty,max=32"`
	Role           models.UserRole `json:"role" validate:"required,user_role"`
	IsProfessional bool            `json:"is_professional"`
	Dialects       []DialectInput  `json:"dialects" validate:"omitempty,dive"`
}

// UpdateUserRequest carries optional profile changes. Nil fields are left untouched.
type UpdateUserRequest struct {
	FullName       *string            `json:"full_name,omitempty" validate:"omitempty,min=1,max=255"`
	Phone          *string            `json:"phone,omitempty" validate:"omitempty,max=32"`
	Role           *models.UserRole   `json:"role,omitempty" validate:"omitempty,user_role"`
	Status         *models.UserStatus `json:"status,omitempty" validate:"omitempty,oneof=active suspended"`
	IsProfessional *bool              `json:"is_professional,omitempty"`
	Dialects       *[]DialectInput    `json:"dialects,omitempty" validate:"omitempty,dive"`
}

// UpdateAvailabilityRequest changes a user's availability.
type UpdateAvailabilityRequest struct {
	Availability models.Availability `json:"availability" validate:"required,availability"`
}

// AvailabilityResponse reports the current availability.
type AvailabilityResponse struct {
	UserID       string              `json:"user_id"`
	Availability models.Availability `json:"availability"`
	Cached       bool                `json:"cached"`
}

// EmailExistsResponse answers the email availability check.
type EmailExistsResponse struct {
	Email  string `json:"email"`
	Exists bool   `json:"exists"`
}

// DialectResponse is the public dialect view.
type DialectResponse struct {
	Code        string  `json:"code"`
	Proficiency *string `json:"proficiency,omitempty"`
}

// UserResponse is the public user view. It never carries credentials.
type UserResponse struct {
	ID                 string              `json:"id"`
	Email              string              `json:"email"`
	FullName           string              `json:"full_name"`
	Phone              *string             `json:"phone,omitempty"`
	Role               models.UserRole     `json:"role"`
	Status             models.UserStatus   `json:"status"`
	Availability       models.Availability `json:"availability"`
	IsProfessional     bool                `json:"is_professional"`
	BypassQaComparison bool                `json:"bypass_qa_comparison"`
	EloRating          float64             `json:"elo_rating"`
	Dialects           []DialectResponse   `json:"dialects"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// UserDetailResponse adds the related statistics and recent Elo history.
type UserDetailResponse struct {
	UserResponse
	Statistics *StatisticsResponse  `json:"statistics,omitempty"`
	EloHistory []EloHistoryResponse `json:"elo_history,omitempty"`
}

// NewUserResponse maps a user to its public view.
//
// Field rules: the national ID number and password hash are never exposed;
// BypassQaComparison is true exactly when the role is Professional; Dialects
// is always a non-nil slice.
func NewUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		FullName:           u.FullName,
		Phone:              u.Phone,
		Role:               u.Role,
		Status:             u.Status,
		Availability:       u.Availability,
		IsProfessional:     u.IsProfessional,
		BypassQaComparison: u.Role == models.RoleProfessional,
		EloRating:          u.EloRating,
		Dialects:           NewDialectResponses(u.Dialects),
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// NewUserResponses maps a slice of users.
func NewUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}

// NewUserDetailResponse maps a user including loaded relations.
func NewUserDetailResponse(u models.User) UserDetailResponse {
	detail := UserDetailResponse{UserResponse: NewUserResponse(u)}
	if u.Statistics != nil {
		stats := NewStatisticsResponse(*u.Statistics)
		detail.Statistics = &stats
	}
	if len(u.EloHistory) > 0 {
		detail.EloHistory = NewEloHistoryResponses(u.EloHistory)
	}
	return detail
}

// NewDialectResponses maps dialects.
func NewDialectResponses(dialects []models.UserDialect) []DialectResponse {
	out := make([]DialectResponse, 0, len(dialects))
	for _, d := range dialects {
		out = append(out, DialectResponse{Code: d.DialectCode, Proficiency: d.Proficiency})
	}
	return out
}
