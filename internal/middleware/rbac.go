package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/presensia/attendance-api/internal/models"
	appErrors "github.com/presensia/attendance-api/pkg/errors"
	"github.com/presensia/attendance-api/pkg/response"
)

// RequireRoles gates a route to the listed roles. Finer checks, such as
// class or self scoping, happen in the services through the permission gate.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrRoleNotPermitted)
			c.Abort()
			return
		}
		c.Next()
	}
}
