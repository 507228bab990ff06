package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/user-management-api/internal/middleware"
	"github.com/noah-isme/user-management-api/internal/models"
)

// Handlers groups the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Elo          *EloHandler
	Statistics   *StatisticsHandler
	Verification *VerificationHandler
	Audit        *AuditHandler
}

// RegisterRoutes mounts every API route on api. Everything except registration, login and the
// email check requires a bearer token.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	reviewers := middleware.RequireRoles(models.RoleQAReviewer, models.RoleAdmin)
	selfOrAdmin := middleware.SelfOrRoles(models.RoleAdmin)
	selfOrStaff := middleware.SelfOrRoles(models.RoleQAReviewer, models.RoleAdmin)

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.GET("/me", middleware.JWT(tokens), h.Auth.Me)

	api.GET("/users/email-exists", h.Users.EmailExists)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens), middleware.UUIDParams("id"))

	users := secured.Group("/users")
	users.GET("", reviewers, h.Users.List)
	users.GET("/all", reviewers, h.Users.ListAll)
	users.GET("/:id", selfOrStaff, h.Users.Get)
	users.PUT("/:id", selfOrAdmin, h.Users.Update)
	users.DELETE("/:id", admin, h.Users.Delete)
	users.PUT("/:id/availability", selfOrAdmin, h.Users.UpdateAvailability)
	users.GET("/:id/availability", selfOrAdmin, h.Users.GetAvailability)

	users.POST("/:id/elo", reviewers, h.Elo.Apply)
	users.GET("/:id/elo-history", selfOrStaff, h.Elo.History)
	users.GET("/:id/elo-history/export", selfOrStaff, h.Elo.Export)
	secured.POST("/comparisons", reviewers, h.Elo.RecordComparison)
	secured.GET("/comparisons/:id", reviewers, h.Elo.GetComparison)

	users.GET("/:id/statistics", selfOrStaff, h.Statistics.Get)
	users.POST("/:id/claims", selfOrAdmin, h.Statistics.Claim)
	users.GET("/:id/claims", selfOrStaff, h.Statistics.Claims)
	users.GET("/:id/completions", selfOrStaff, h.Statistics.Completions)
	secured.POST("/claims/:id/complete", h.Statistics.Complete)
	secured.POST("/claims/:id/release", h.Statistics.Release)

	users.POST("/:id/verifications", reviewers, h.Verification.Verify)
	users.GET("/:id/verifications", selfOrStaff, h.Verification.ListRecords)

	requirements := secured.Group("/verification-requirements")
	requirements.GET("", h.Verification.ListRequirements)
	requirements.GET("/:id", h.Verification.GetRequirement)
	requirements.POST("", admin, h.Verification.CreateRequirement)
	requirements.PUT("/:id", admin, h.Verification.UpdateRequirement)
	requirements.DELETE("/:id", admin, h.Verification.DeleteRequirement)

	users.GET("/:id/audit-logs", admin, h.Audit.List)
}
