package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
	"github.com/noah-isme/user-management-api/pkg/response"
)

// UUIDParams rejects requests whose named path parameters are set but are not UUIDs.
func UUIDParams(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			value := c.Param(name)
			if value == "" {
				continue
			}
			if _, err := uuid.Parse(value); err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, name+" must be a valid UUID"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
