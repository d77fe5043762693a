package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-approval-api/internal/service"
	appErrors "github.com/noah-isme/academic-approval-api/pkg/errors"
	"github.com/noah-isme/academic-approval-api/pkg/response"
)

// Authorize rejects callers whose role lacks the capability for action. Department scoping of
// heads of department is enforced by the services, which know the target department.
func Authorize(action service.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !service.Can(claims.Role, action) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions for "+string(action)))
			c.Abort()
			return
		}
		c.Next()
	}
}
