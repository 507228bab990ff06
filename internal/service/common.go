package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/repository"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

// unitOfWork is the transaction boundary used by every multi-entity write.
type unitOfWork interface {
	Do(ctx context.Context, fn repository.TxFunc) (int64, error)
	Read() *repository.Repositories
}

// eventDispatcher publishes notifications after a commit. It never fails the caller.
type eventDispatcher interface {
	Dispatch(ctx context.Context, topic, userID string, payload interface{})
}

// Actor identifies the authenticated caller performing an operation.
type Actor struct {
	ID   string
	Role models.UserRole
}

// IsAdmin reports whether the actor holds the Admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func newValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		v = validator.New()
	}
	_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("availability", func(fl validator.FieldLevel) bool {
		return models.Availability(fl.Field().String()).Valid()
	})
	return v
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// passThrough keeps application errors raised inside a unit of work and wraps anything else.
func passThrough(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return internalError(err, message)
}

// notFoundOr maps absent rows, and identifiers Postgres cannot parse, to NotFound.
func notFoundOr(err error, notFound, message string) error {
	if errors.Is(err, sql.ErrNoRows) || appErrors.IsInvalidTextRepresentation(err) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return passThrough(err, message)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
