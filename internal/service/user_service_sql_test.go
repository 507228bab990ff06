package service

import (
	"context"
	"net/http"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/repository"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

func TestUserServiceGetMalformedIDIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	uow := repository.NewUnitOfWork(sqlx.NewDb(db, "postgres"))
	svc := NewUserService(uow, NewAuditService(uow, zap.NewNop()), UserServiceConfig{Logger: zap.NewNop()})

	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "not-a-uuid"`})

	_, err = svc.Get(context.Background(), "not-a-uuid", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
