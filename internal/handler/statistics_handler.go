package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/service"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
	"github.com/noah-isme/user-management-api/pkg/response"
)

type statisticsService interface {
	Get(ctx context.Context, userID string) (*models.UserStatistics, error)
	ClaimJob(ctx context.Context, userID string, req dto.ClaimJobRequest, actor service.Actor, meta models.RequestMeta) (*models.JobClaim, error)
	ReleaseClaim(ctx context.Context, claimID string, actor service.Actor, meta models.RequestMeta) (*models.JobClaim, error)
	CompleteJob(ctx context.Context, claimID string, req dto.CompleteJobRequest, actor service.Actor, meta models.RequestMeta) (*service.CompletionResult, error)
	Claims(ctx context.Context, userID string) ([]models.JobClaim, error)
	Completions(ctx context.Context, userID string) ([]models.JobCompletion, error)
}

// StatisticsHandler exposes job claims, completions and aggregates.
type StatisticsHandler struct {
	service statisticsService
}

// NewStatisticsHandler constructs the handler.
func NewStatisticsHandler(svc statisticsService) *StatisticsHandler {
	return &StatisticsHandler{service: svc}
}

// Get godoc
// @Summary User statistics
// @Tags Jobs
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/statistics [get]
func (h *StatisticsHandler) Get(c *gin.Context) {
	stats, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewStatisticsResponse(*stats), nil)
}

// Claim godoc
// @Summary Claim job
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.ClaimJobRequest true "Claim payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id}/claims [post]
func (h *StatisticsHandler) Claim(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ClaimJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid claim payload"))
		return
	}

	claim, err := h.service.ClaimJob(c.Request.Context(), c.Param("id"), req, actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewJobClaimResponse(*claim))
}

// Claims godoc
// @Summary List claims
// @Tags Jobs
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/claims [get]
func (h *StatisticsHandler) Claims(c *gin.Context) {
	claims, err := h.service.Claims(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewJobClaimResponses(claims), nil)
}

// Complete godoc
// @Summary Complete claimed job
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "Claim ID"
// @Param payload body dto.CompleteJobRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /claims/{id}/complete [post]
func (h *StatisticsHandler) Complete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CompleteJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
		return
	}

	result, err := h.service.CompleteJob(c.Request.Context(), c.Param("id"), req, actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	completion := dto.NewJobCompletionResponse(*result.Completion)
	completion.Milestone = result.Milestone
	response.JSON(c, http.StatusOK, gin.H{
		"completion": completion,
		"statistics": dto.NewStatisticsResponse(*result.Statistics),
	}, nil)
}

// Release godoc
// @Summary Release claim
// @Tags Jobs
// @Produce json
// @Param id path string true "Claim ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /claims/{id}/release [post]
func (h *StatisticsHandler) Release(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	claim, err := h.service.ReleaseClaim(c.Request.Context(), c.Param("id"), actor, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewJobClaimResponse(*claim), nil)
}

// Completions godoc
// @Summary List completions
// @Tags Jobs
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/completions [get]
func (h *StatisticsHandler) Completions(c *gin.Context) {
	completions, err := h.service.Completions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewJobCompletionResponses(completions), nil)
}
