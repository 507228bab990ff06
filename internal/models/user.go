package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleTranscriber  UserRole = "Transcriber"
	RoleProfessional UserRole = "Professional"
	RoleQAReviewer   UserRole = "QAReviewer"
	RoleAdmin        UserRole = "Admin"
)

// Valid reports whether r is one of the closed set of roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleTranscriber, RoleProfessional, RoleQAReviewer, RoleAdmin:
		return true
	}
	return false
}

// Availability is the self-reported working state of a user.
type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
	AvailabilityOffline   Availability = "offline"
	AvailabilityLeave     Availability = "leave"
)

// Valid reports whether a is a known availability value.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline, AvailabilityLeave:
		return true
	}
	return false
}

// UserStatus gates authentication.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// User represents an application user stored in the users table.
type User struct {
	ID             string       `db:"id" json:"id"`
	Email          string       `db:"email" json:"email"`
	IDNumber       string       `db:"id_number" json:"id_number"`
	PasswordHash   string       `db:"password_hash" json:"-"`
	FullName       string       `db:"full_name" json:"full_name"`
	Phone          *string      `db:"phone" json:"phone,omitempty"`
	Role           UserRole     `db:"role" json:"role"`
	Status         UserStatus   `db:"status" json:"status"`
	Availability   Availability `db:"availability" json:"availability"`
	IsProfessional bool         `db:"is_professional" json:"is_professional"`
	EloRating      float64      `db:"elo_rating" json:"elo_rating"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`

	Dialects   []UserDialect   `db:"-" json:"dialects,omitempty"`
	Statistics *UserStatistics `db:"-" json:"statistics,omitempty"`
	EloHistory []EloHistory    `db:"-" json:"elo_history,omitempty"`
}

// UserFilter captures the getFiltered criteria. Nil/empty fields are unconstrained;
// all supplied fields must hold simultaneously.
type UserFilter struct {
	Dialect     string
	MinElo      *float64
	MaxElo      *float64
	MaxWorkload *int
	Limit       int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Limit      int `json:"limit"`
	TotalCount int `json:"total_count"`
}
