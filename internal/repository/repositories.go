package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/user-management-api/internal/models"
)

// UserStore is the persistence contract for users.
type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	IDNumberExists(ctx context.Context, idNumber string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	LockForUpdate(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListAll(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateAvailability(ctx context.Context, id string, availability models.Availability) error
	UpdateRating(ctx context.Context, id string, rating float64) error
	Delete(ctx context.Context, id string) error
	HasVerificationsAsVerifier(ctx context.Context, id string) (bool, error)
	HasEloHistory(ctx context.Context, id string) (bool, error)
}

// DialectStore persists user dialects.
type DialectStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.UserDialect, error)
	ListByUsers(ctx context.Context, userIDs []string) (map[string][]models.UserDialect, error)
	Add(ctx context.Context, dialect *models.UserDialect) error
	Replace(ctx context.Context, userID string, dialects []models.UserDialect) error
}

// StatisticsStore persists user statistics.
type StatisticsStore interface {
	Create(ctx context.Context, userID string) error
	FindByUser(ctx context.Context, userID string) (*models.UserStatistics, error)
	IncrementClaimed(ctx context.Context, userID string) error
	RecordCompletion(ctx context.Context, userID string, durationSeconds int64, accuracy *float64) error
	RecordComparison(ctx context.Context, userID string, score float64) error
}

// EloHistoryStore appends and reads rating history.
type EloHistoryStore interface {
	Append(ctx context.Context, entry *models.EloHistory) error
	LatestByUser(ctx context.Context, userID string) (*models.EloHistory, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.EloHistory, error)
}

// ComparisonStore persists comparison events.
type ComparisonStore interface {
	Create(ctx context.Context, comparison *models.JobComparison) error
	FindByID(ctx context.Context, id string) (*models.JobComparison, error)
}

// JobClaimStore persists job claims.
type JobClaimStore interface {
	Create(ctx context.Context, claim *models.JobClaim) error
	FindByID(ctx context.Context, id string) (*models.JobClaim, error)
	ActiveByJob(ctx context.Context, jobID string) (*models.JobClaim, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]models.JobClaim, error)
	UpdateStatus(ctx context.Context, id string, status models.JobClaimStatus, at time.Time) error
}

// JobCompletionStore persists job completions.
type JobCompletionStore interface {
	Create(ctx context.Context, completion *models.JobCompletion) error
	ListByUser(ctx context.Context, userID string) ([]models.JobCompletion, error)
}

// AuditLogStore appends and lists audit rows.
type AuditLogStore interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditLog, error)
}

// VerificationRecordStore persists verification outcomes.
type VerificationRecordStore interface {
	Create(ctx context.Context, record *models.VerificationRecord) error
	FindByID(ctx context.Context, id string) (*models.VerificationRecord, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.VerificationRecord, error)
}

// VerificationRequirementStore persists verification policies.
type VerificationRequirementStore interface {
	Create(ctx context.Context, req *models.UserVerificationRequirement) error
	FindByID(ctx context.Context, id string) (*models.UserVerificationRequirement, error)
	FindByName(ctx context.Context, name string) (*models.UserVerificationRequirement, error)
	List(ctx context.Context, activeOnly bool) ([]models.UserVerificationRequirement, error)
	Update(ctx context.Context, req *models.UserVerificationRequirement) error
	Delete(ctx context.Context, id string) error
}

// Repositories groups every store bound to the same database handle.
type Repositories struct {
	Users                    UserStore
	Dialects                 DialectStore
	Statistics               StatisticsStore
	EloHistory               EloHistoryStore
	Comparisons              ComparisonStore
	JobClaims                JobClaimStore
	JobCompletions           JobCompletionStore
	AuditLogs                AuditLogStore
	VerificationRecords      VerificationRecordStore
	VerificationRequirements VerificationRequirementStore
}

// NewRepositories binds every repository to db, which may be a *sqlx.DB or a *sqlx.Tx.
func NewRepositories(db sqlx.ExtContext) *Repositories {
	return &Repositories{
		Users:                    NewUserRepository(db),
		Dialects:                 NewDialectRepository(db),
		Statistics:               NewStatisticsRepository(db),
		EloHistory:               NewEloHistoryRepository(db),
		Comparisons:              NewComparisonRepository(db),
		JobClaims:                NewJobClaimRepository(db),
		JobCompletions:           NewJobCompletionRepository(db),
		AuditLogs:                NewAuditLogRepository(db),
		VerificationRecords:      NewVerificationRecordRepository(db),
		VerificationRequirements: NewVerificationRequirementRepository(db),
	}
}
