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

type eloService interface {
	ApplyComparison(ctx context.Context, userID string, req dto.ApplyEloRequest) (*models.EloHistory, int64, error)
	History(ctx context.Context, userID string, limit int) ([]models.EloHistory, error)
	Export(ctx context.Context, userID, format string) (string, string, []byte, error)
}

type comparisonService interface {
	Record(ctx context.Context, req dto.RecordComparisonRequest, reviewer service.Actor) (*models.JobComparison, error)
	Get(ctx context.Context, id string) (*models.JobComparison, error)
}

// EloHandler exposes comparisons and rating history.
type EloHandler struct {
	elo         eloService
	comparisons comparisonService
}

// NewEloHandler constructs the handler.
func NewEloHandler(elo eloService, comparisons comparisonService) *EloHandler {
	return &EloHandler{elo: elo, comparisons: comparisons}
}

// RecordComparison godoc
// @Summary Record QA comparison
// @Tags Elo
// @Accept json
// @Produce json
// @Param payload body dto.RecordComparisonRequest true "Comparison payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /comparisons [post]
func (h *EloHandler) RecordComparison(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RecordComparisonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comparison payload"))
		return
	}

	comparison, err := h.comparisons.Record(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewComparisonResponse(*comparison))
}

// GetComparison godoc
// @Summary Get QA comparison
// @Tags Elo
// @Produce json
// @Param id path string true "Comparison ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /comparisons/{id} [get]
func (h *EloHandler) GetComparison(c *gin.Context) {
	comparison, err := h.comparisons.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewComparisonResponse(*comparison), nil)
}

// Apply godoc
// @Summary Apply comparison to Elo rating
// @Tags Elo
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.ApplyEloRequest true "Elo update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/elo [post]
func (h *EloHandler) Apply(c *gin.Context) {
	var req dto.ApplyEloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid elo payload"))
		return
	}

	userID := c.Param("id")
	entry, rows, err := h.elo.ApplyComparison(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.EloUpdateResponse{
		UserID:       userID,
		History:      dto.NewEloHistoryResponse(*entry),
		RowsAffected: rows,
	}, nil)
}

// History godoc
// @Summary Elo history
// @Description Newest first
// @Tags Elo
// @Produce json
// @Param id path string true "User ID"
// @Param limit query int false "Result limit"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/elo-history [get]
func (h *EloHandler) History(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	history, err := h.elo.History(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.NewEloHistoryResponses(history), nil)
}

// Export godoc
// @Summary Export Elo history
// @Tags Elo
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "User ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /users/{id}/elo-history/export [get]
func (h *EloHandler) Export(c *gin.Context) {
	filename, contentType, body, err := h.elo.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Attachment(c, filename, contentType, body)
}
