package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/user-management-api/internal/middleware"
	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/service"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
	"github.com/noah-isme/user-management-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext returns the authenticated caller or responds 401 and reports false.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func queryInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be an integer")
	}
	return &v, nil
}

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a number")
	}
	return &v, nil
}

func includeRelated(c *gin.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.Query("include")), "related")
}
