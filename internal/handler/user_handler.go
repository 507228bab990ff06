package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/middleware"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/service"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
	"github.com/noah-isme/user-management-api/pkg/response"
)

type userService interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	Get(ctx context.Context, id string, includeRelated bool) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	ListAll(ctx context.Context, includeRelated bool) ([]models.User, error)
	Update(ctx context.Context, id string, req dto.UpdateUserRequest, actor service.Actor, meta models.RequestMeta) (*models.User, error)
	Delete(ctx context.Context, id string, actor service.Actor, meta models.RequestMeta) error
	UpdateAvailability(ctx context.Context, id string, availability models.Availability, actor service.Actor, meta models.RequestMeta) (int64, error)
	GetAvailability(ctx context.Context, id string) (models.Availability, bool, error)
}

// UserHandler handles user CRUD and availability endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description Users matching every supplied filter, ordered by id
// @Tags Users
// @Produce json
// @Param dialect query string false "Dialect code"
// @Param min_elo query number false "Minimum Elo rating"
// @Param max_elo query number false "Maximum Elo rating"
// @Param max_workload query int false "Maximum active claims"
// @Param limit query int false "Result limit"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter := models.UserFilter{Dialect: c.Query("dialect")}
	var err error
	if filter.MinElo, err = queryFloat(c, "min_elo"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.MaxElo, err = queryFloat(c, "max_elo"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.MaxWorkload, err = queryInt(c, "max_workload"); err != nil {
		response.Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}
	if limit != nil {
		filter.Limit = *limit
	}

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.NewUserResponses(users), pagination)
}

// ListAll godoc
// @Summary List every user
// @Tags Users
// @Produce json
// @Param include query string false "related to load statistics and Elo history"
// @Success 200 {object} response.Envelope
// @Router /users/all [get]
func (h *UserHandler) ListAll(c *gin.Context) {
	related := includeRelated(c)
	users, err := h.service.ListAll(c.Request.Context(), related)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !related {
		response.JSON(c, http.StatusOK, dto.NewUserResponses(users), nil)
		return
	}
	details := make([]dto.UserDetailResponse, 0, len(users))
	for _, u := range users {
		details = append(details, dto.NewUserDetailResponse(u))
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Param include query string false "related to load statistics and Elo history"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"), includeRelated(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.NewUserDetailResponse(*user), nil)
}

// EmailExists godoc
// @Summary Check email registration
// @Tags Users
// @Produce json
// @Param email query string true "Email"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/email-exists [get]
func (h *UserHandler) EmailExists(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "email is required"))
		return
	}

	exists, err := h.service.EmailExists(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.EmailExistsResponse{Email: email, Exists: exists}, nil)
}

// Update godoc
// @Summary Update user
// @Description Owners edit their profile; role, status and professional flag are Admin only
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateUserRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}

	user, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.NewUserResponse(*user), nil)
}

// Delete godoc
// @Summary Delete user
// @Tags Users
// @Param id path string true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// UpdateAvailability godoc
// @Summary Update availability
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateAvailabilityRequest true "Availability payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/availability [put]
func (h *UserHandler) UpdateAvailability(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}

	id := c.Param("id")
	rows, err := h.service.UpdateAvailability(c.Request.Context(), id, req.Availability, actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["rows_affected"] = rows
	response.JSON(c, http.StatusOK, dto.AvailabilityResponse{UserID: id, Availability: req.Availability}, nil, meta)
}

// GetAvailability godoc
// @Summary Get availability
// @Description Served from the availability cache when possible
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/availability [get]
func (h *UserHandler) GetAvailability(c *gin.Context) {
	id := c.Param("id")
	availability, cached, err := h.service.GetAvailability(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, dto.AvailabilityResponse{UserID: id, Availability: availability, Cached: cached}, nil, middleware.ExtractMeta(c))
}
