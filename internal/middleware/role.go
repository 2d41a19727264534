package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/apperror"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(models.Role)
		if _, ok := allowed[role]; !ok {
			response.Error(c, nil, apperror.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
