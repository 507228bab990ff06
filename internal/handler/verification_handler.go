package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/service"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
	"github.com/noah-isme/user-management-api/pkg/response"
)

type verificationService interface {
	Verify(ctx context.Context, subjectID string, req dto.VerifyUserRequest, verifier service.Actor) (*models.VerificationRecord, error)
	ListForUser(ctx context.Context, subjectID string) ([]models.VerificationRecord, error)
}

type requirementService interface {
	Create(ctx context.Context, req dto.VerificationRequirementRequest, actor service.Actor, meta models.RequestMeta) (*models.UserVerificationRequirement, error)
	Get(ctx context.Context, id string) (*models.UserVerificationRequirement, error)
	List(ctx context.Context, activeOnly bool) ([]models.UserVerificationRequirement, error)
	Update(ctx context.Context, id string, req dto.VerificationRequirementRequest, actor service.Actor, meta models.RequestMeta) (*models.UserVerificationRequirement, error)
	Delete(ctx context.Context, id string, actor service.Actor, meta models.RequestMeta) error
}

// VerificationHandler exposes verification records and requirement management.
type VerificationHandler struct {
	records      verificationService
	requirements requirementService
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(records verificationService, requirements requirementService) *VerificationHandler {
	return &VerificationHandler{records: records, requirements: requirements}
}

// Verify godoc
// @Summary Verify user
// @Description Evaluates the requirement rules when requirement_id is given
// @Tags Verification
// @Accept json
// @Produce json
// @Param id path string true "Subject user ID"
// @Param payload body dto.VerifyUserRequest true "Verification payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id}/verifications [post]
func (h *VerificationHandler) Verify(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.VerifyUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	record, err := h.records.Verify(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewVerificationRecordResponse(*record))
}

// ListRecords godoc
// @Summary List verification records
// @Tags Verification
// @Produce json
// @Param id path string true "Subject user ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/verifications [get]
func (h *VerificationHandler) ListRecords(c *gin.Context) {
	records, err := h.records.ListForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewVerificationRecordResponses(records), nil)
}

// ListRequirements godoc
// @Summary List verification requirements
// @Tags Verification
// @Produce json
// @Param active query bool false "Only active requirements"
// @Success 200 {object} response.Envelope
// @Router /verification-requirements [get]
func (h *VerificationHandler) ListRequirements(c *gin.Context) {
	activeOnly := false
	if raw := c.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be a boolean"))
			return
		}
		activeOnly = v
	}

	reqs, err := h.requirements.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewVerificationRequirementResponses(reqs), nil)
}

// GetRequirement godoc
// @Summary Get verification requirement
// @Tags Verification
// @Produce json
// @Param id path string true "Requirement ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verification-requirements/{id} [get]
func (h *VerificationHandler) GetRequirement(c *gin.Context) {
	requirement, err := h.requirements.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewVerificationRequirementResponse(*requirement), nil)
}

// CreateRequirement godoc
// @Summary Create verification requirement
// @Tags Verification
// @Accept json
// @Produce json
// @Param payload body dto.VerificationRequirementRequest true "Requirement payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verification-requirements [post]
func (h *VerificationHandler) CreateRequirement(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.VerificationRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid requirement payload"))
		return
	}

	requirement, err := h.requirements.Create(c.Request.Context(), req, actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewVerificationRequirementResponse(*requirement))
}

// UpdateRequirement godoc
// @Summary Replace verification requirement
// @Tags Verification
// @Accept json
// @Produce json
// @Param id path string true "Requirement ID"
// @Param payload body dto.VerificationRequirementRequest true "Requirement payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verification-requirements/{id} [put]
func (h *VerificationHandler) UpdateRequirement(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.VerificationRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid requirement payload"))
		return
	}

	requirement, err := h.requirements.Update(c.Request.Context(), c.Param("id"), req, actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewVerificationRequirementResponse(*requirement), nil)
}

// DeleteRequirement godoc
// @Summary Delete verification requirement
// @Tags Verification
// @Param id path string true "Requirement ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verification-requirements/{id} [delete]
func (h *VerificationHandler) DeleteRequirement(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.requirements.Delete(c.Request.Context(), c.Param("id"), actor, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
