package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/user-management-api/internal/models"
)

var userRowColumns = []string{"id", "email", "id_number", "password_hash", "full_name", "phone", "role", "status", "availability", "is_professional", "elo_rating", "created_at", "updated_at"}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func addUserRow(rows *sqlmock.Rows, id, email string, rating float64) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, email, "ID-"+id, "hash", "User "+id, nil, string(models.RoleTranscriber), string(models.UserStatusActive), string(models.AvailabilityAvailable), false, rating, now, now)
}

func TestEmailExistsLowercases(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)")).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "  User@Example.COM ")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE id = $1 LIMIT 1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	user, err := repo.FindByID(context.Background(), "missing")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersAppliesEveryFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	minElo, maxElo, workload := 1100.0, 1300.0, 2
	filter := models.UserFilter{Dialect: "ar-EG", MinElo: &minElo, MaxElo: &maxElo, MaxWorkload: &workload, Limit: 500}

	where := "FROM users u WHERE 1=1 AND EXISTS (SELECT 1 FROM user_dialects d WHERE d.user_id = u.id AND d.dialect_code = $1) AND u.elo_rating >= $2 AND u.elo_rating <= $3 AND (SELECT COUNT(*) FROM job_claims c WHERE c.user_id = u.id AND c.status = 'active') <= $4"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumnsAliased+" "+where+" ORDER BY u.id LIMIT 100")).
		WithArgs("ar-EG", minElo, maxElo, workload).
		WillReturnRows(addUserRow(sqlmock.NewRows(userRowColumns), "a", "a@example.com", 1200))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) "+where)).
		WithArgs("ar-EG", minElo, maxElo, workload).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 1200.0, users[0].EloRating)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersDefaultsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumnsAliased + " FROM users u WHERE 1=1 ORDER BY u.id LIMIT 50")).
		WillReturnRows(sqlmock.NewRows(userRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users u WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	users, total, err := repo.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserNormalisesEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Email: " New@Example.com", IDNumber: "900", FullName: "New", Role: models.RoleTranscriber}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "new@example.com", user.Email)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockForUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs("u1").
		WillReturnRows(addUserRow(sqlmock.NewRows(userRowColumns), "u1", "u1@example.com", 1234.5))

	user, err := repo.LockForUpdate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, user.EloRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserReferenced(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "elo_history_user_id_fkey"})

	err := repo.Delete(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrReferenced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "ghost"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAvailability(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET availability = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("u1", "busy", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateAvailability(context.Background(), "u1", models.AvailabilityBusy))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 50, NormalizeLimit(0))
	assert.Equal(t, 50, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, 100, NormalizeLimit(101))
}
