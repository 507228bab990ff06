package models

import "time"

// UserDialect is a language or dialect a user can work in.
type UserDialect struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	DialectCode string    `db:"dialect_code" json:"dialect_code"`
	Proficiency *string   `db:"proficiency" json:"proficiency,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
