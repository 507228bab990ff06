package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/user-management-api/internal/dto"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, userID string, limit int) ([]models.AuditLog, error)
}

// AuditHandler exposes the per-user audit trail.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary User audit trail
// @Description Newest first
// @Tags Audit
// @Produce json
// @Param id path string true "User ID"
// @Param limit query int false "Result limit"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	logs, err := h.service.List(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAuditLogResponses(logs), nil)
}
