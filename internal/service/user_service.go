package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/repository"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

const relatedHistoryLimit = 10

// UserService handles registration, profile and availability workflows.
type UserService struct {
	uow       unitOfWork
	audit     *AuditService
	cache     *AvailabilityCache
	events    eventDispatcher
	validator *validator.Validate
	logger    *zap.Logger
	baseline  float64
}

// UserServiceConfig bundles the optional collaborators of UserService.
type UserServiceConfig struct {
	Cache          *AvailabilityCache
	Events         eventDispatcher
	Validator      *validator.Validate
	Logger         *zap.Logger
	BaselineRating float64
}

// NewUserService creates an instance of UserService.
func NewUserService(uow unitOfWork, audit *AuditService, cfg UserServiceConfig) *UserService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Events == nil {
		cfg.Events = noopDispatcher{}
	}
	if cfg.BaselineRating <= 0 {
		cfg.BaselineRating = DefaultBaselineRating
	}
	return &UserService{
		uow:       uow,
		audit:     audit,
		cache:     cfg.Cache,
		events:    cfg.Events,
		validator: newValidator(cfg.Validator),
		logger:    cfg.Logger,
		baseline:  cfg.BaselineRating,
	}
}

// EmailExists reports whether the email is registered, compared case-insensitively.
func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if err := s.validator.Var(email, "required,email"); err != nil {
		return false, validationError(err, "a valid email is required")
	}
	exists, err := s.uow.Read().Users.EmailExists(ctx, email)
	if err != nil {
		return false, internalError(err, "failed to check email")
	}
	return exists, nil
}

// Register creates the user together with its statistics row and dialects.
func (s *UserService) Register(ctx context.Context, req dto.RegisterUserRequest, meta models.RequestMeta) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	req.IDNumber = strings.TrimSpace(req.IDNumber)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}

	read := s.uow.Read()
	if exists, err := read.Users.EmailExists(ctx, req.Email); err != nil {
		return nil, internalError(err, "failed to check email uniqueness")
	} else if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}
	if exists, err := read.Users.IDNumberExists(ctx, req.IDNumber); err != nil {
		return nil, internalError(err, "failed to check id number uniqueness")
	} else if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "id number already registered")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}

	user := &models.User{
		ID:             uuid.NewString(),
		Email:          req.Email,
		IDNumber:       req.IDNumber,
		PasswordHash:   string(passwordHash),
		FullName:       req.FullName,
		Phone:          req.Phone,
		Role:           req.Role,
		Status:         models.UserStatusActive,
		Availability:   models.AvailabilityOffline,
		IsProfessional: req.Role == models.RoleProfessional || req.IsProfessional,
		EloRating:      s.baseline,
	}
	dialects := dialectsFromInput(req.Dialects)

	_, err = s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		if err := repos.Statistics.Create(ctx, user.ID); err != nil {
			return err
		}
		for i := range dialects {
			dialects[i].UserID = user.ID
			if err := repos.Dialects.Add(ctx, &dialects[i]); err != nil {
				return err
			}
		}
		return s.audit.RecordTx(ctx, repos, AuditEntry{
			Action:     models.AuditActionUserRegister,
			Resource:   "users",
			UserID:     user.ID,
			ActorID:    user.ID,
			ResourceID: user.ID,
			Payload:    map[string]interface{}{"email": user.Email, "role": user.Role, "dialects": len(dialects)},
			Meta:       meta,
		})
	})
	if err != nil {
		if appErrors.IsUniqueViolation(err) {
			if appErrors.ConstraintName(err) == "users_id_number_key" {
				return nil, appErrors.Clone(appErrors.ErrConflict, "id number already registered")
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, passThrough(err, "failed to register user")
	}

	user.Dialects = dialects
	s.cache.Set(ctx, user.ID, user.Availability)
	return user, nil
}

// Get returns a user with dialects. includeRelated also loads statistics and recent Elo history.
func (s *UserService) Get(ctx context.Context, id string, includeRelated bool) (*models.User, error) {
	read := s.uow.Read()
	user, err := read.Users.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	if user.Dialects, err = read.Dialects.ListByUser(ctx, id); err != nil {
		return nil, internalError(err, "failed to load dialects")
	}
	if includeRelated {
		if err := s.loadRelated(ctx, read, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// List returns users matching every supplied filter, ordered by id.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	filter.Dialect = strings.TrimSpace(filter.Dialect)
	if filter.MinElo != nil && filter.MaxElo != nil && *filter.MinElo > *filter.MaxElo {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "min_elo must not exceed max_elo")
	}
	if filter.MaxWorkload != nil && *filter.MaxWorkload < 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "max_workload must not be negative")
	}
	filter.Limit = repository.NormalizeLimit(filter.Limit)

	read := s.uow.Read()
	users, total, err := read.Users.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	if err := s.attachDialects(ctx, read, users); err != nil {
		return nil, nil, err
	}
	return users, &models.Pagination{Limit: filter.Limit, TotalCount: total}, nil
}

// ListAll returns every user ordered by id.
func (s *UserService) ListAll(ctx context.Context, includeRelated bool) ([]models.User, error) {
	read := s.uow.Read()
	users, err := read.Users.ListAll(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list users")
	}
	if err := s.attachDialects(ctx, read, users); err != nil {
		return nil, err
	}
	if includeRelated {
		for i := range users {
			if err := s.loadRelated(ctx, read, &users[i]); err != nil {
				return nil, err
			}
		}
	}
	return users, nil
}

// Update applies profile changes. Non-admins may only edit their own profile fields.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actor Actor, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update payload")
	}
	if !actor.IsAdmin() {
		if actor.ID != id {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot update another user")
		}
		if req.Role != nil || req.Status != nil || req.IsProfessional != nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can change role, status or professional flag")
		}
	}

	_, err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		user, err := repos.Users.LockForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "user not found", "failed to load user")
		}
		changes := map[string]interface{}{}
		if req.FullName != nil {
			user.FullName = strings.TrimSpace(*req.FullName)
			changes["full_name"] = user.FullName
		}
		if req.Phone != nil {
			user.Phone = optionalString(*req.Phone)
			changes["phone"] = user.Phone
		}
		if req.Role != nil {
			user.Role = *req.Role
			changes["role"] = user.Role
			if user.Role == models.RoleProfessional {
				user.IsProfessional = true
			}
		}
		if req.Status != nil {
			user.Status = *req.Status
			changes["status"] = user.Status
		}
		if req.IsProfessional != nil {
			user.IsProfessional = *req.IsProfessional || user.Role == models.RoleProfessional
			changes["is_professional"] = user.IsProfessional
		}
		if err := repos.Users.Update(ctx, user); err != nil {
			return err
		}
		if req.Dialects != nil {
			dialects := dialectsFromInput(*req.Dialects)
			if err := repos.Dialects.Replace(ctx, id, dialects); err != nil {
				return err
			}
			changes["dialects"] = len(dialects)
		}
		return s.audit.RecordTx(ctx, repos, AuditEntry{
			Action:     models.AuditActionUserUpdate,
			Resource:   "users",
			UserID:     id,
			ActorID:    actor.ID,
			ResourceID: id,
			Payload:    changes,
			Meta:       meta,
		})
	})
	if err != nil {
		return nil, passThrough(err, "failed to update user")
	}
	return s.Get(ctx, id, false)
}

// Delete hard-deletes a user. Users referenced as verifier or by Elo history are kept.
func (s *UserService) Delete(ctx context.Context, id string, actor Actor, meta models.RequestMeta) error {
	read := s.uow.Read()
	if _, err := read.Users.FindByID(ctx, id); err != nil {
		return notFoundOr(err, "user not found", "failed to load user")
	}
	if referenced, err := read.Users.HasVerificationsAsVerifier(ctx, id); err != nil {
		return internalError(err, "failed to check verifier references")
	} else if referenced {
		return appErrors.Clone(appErrors.ErrConflict, "user is referenced as verifier")
	}
	if referenced, err := read.Users.HasEloHistory(ctx, id); err != nil {
		return internalError(err, "failed to check elo history")
	} else if referenced {
		return appErrors.Clone(appErrors.ErrConflict, "user has elo history")
	}

	_, err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := s.audit.RecordTx(ctx, repos, AuditEntry{
			Action:     models.AuditActionUserDelete,
			Resource:   "users",
			ActorID:    actor.ID,
			ResourceID: id,
			Meta:       meta,
		}); err != nil {
			return err
		}
		return repos.Users.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return appErrors.Clone(appErrors.ErrConflict, "user is still referenced")
		}
		return notFoundOr(err, "user not found", "failed to delete user")
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

// UpdateAvailability persists the new availability and its audit row atomically, then invalidates
// the cache and publishes user.availability.updated.
func (s *UserService) UpdateAvailability(ctx context.Context, id string, availability models.Availability, actor Actor, meta models.RequestMeta) (int64, error) {
	if !availability.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid availability")
	}
	if !actor.IsAdmin() && actor.ID != id {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "cannot change another user's availability")
	}

	var previous models.Availability
	rows, err := s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		user, err := repos.Users.LockForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "user not found", "failed to load user")
		}
		previous = user.Availability
		if err := repos.Users.UpdateAvailability(ctx, id, availability); err != nil {
			return err
		}
		return s.audit.RecordAvailabilityChangeTx(ctx, repos, id, actor.ID, previous, availability, meta)
	})
	if err != nil {
		return 0, passThrough(err, "failed to update availability")
	}

	s.cache.Invalidate(ctx, id)
	s.events.Dispatch(ctx, models.TopicAvailabilityUpdated, id, map[string]interface{}{
		"user_id":      id,
		"previous":     previous,
		"availability": availability,
		"changed_by":   actor.ID,
	})
	return rows, nil
}

// GetAvailability returns the availability from cache, falling back to the database.
func (s *UserService) GetAvailability(ctx context.Context, id string) (models.Availability, bool, error) {
	if value, ok := s.cache.Get(ctx, id); ok {
		return value, true, nil
	}
	gen, fill := s.cache.Generation(ctx, id)
	user, err := s.uow.Read().Users.FindByID(ctx, id)
	if err != nil {
		return "", false, notFoundOr(err, "user not found", "failed to load availability")
	}
	if fill {
		s.cache.Fill(ctx, id, user.Availability, gen)
	}
	return user.Availability, false, nil
}

func (s *UserService) loadRelated(ctx context.Context, read *repository.Repositories, user *models.User) error {
	stats, err := read.Statistics.FindByUser(ctx, user.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return internalError(err, "failed to load statistics")
	}
	user.Statistics = stats
	history, err := read.EloHistory.ListByUser(ctx, user.ID, relatedHistoryLimit)
	if err != nil {
		return internalError(err, "failed to load elo history")
	}
	user.EloHistory = history
	return nil
}

func (s *UserService) attachDialects(ctx context.Context, read *repository.Repositories, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	grouped, err := read.Dialects.ListByUsers(ctx, ids)
	if err != nil {
		return internalError(err, "failed to load dialects")
	}
	for i := range users {
		users[i].Dialects = grouped[users[i].ID]
	}
	return nil
}

func dialectsFromInput(inputs []dto.DialectInput) []models.UserDialect {
	seen := make(map[string]struct{}, len(inputs))
	dialects := make([]models.UserDialect, 0, len(inputs))
	for _, in := range inputs {
		code := strings.TrimSpace(in.Code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		dialects = append(dialects, models.UserDialect{DialectCode: code, Proficiency: in.Proficiency})
	}
	return dialects
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, string, string, interface{}) {}
