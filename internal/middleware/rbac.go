package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/response"
)

// RequireRoles rejects tokens whose role is not listed. Ownership is checked by the services.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
