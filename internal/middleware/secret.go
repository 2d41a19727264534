package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
)

const (
	HeaderCronSecret    = "X-Cron-Secret"
	HeaderWebhookSecret = "X-Webhook-Secret"
)

// RequireSecret guards machine endpoints with a shared secret header.
// An empty secret rejects every request.
func RequireSecret(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			response.Unauthorized(c, "invalid "+header)
			c.Abort()
			return
		}
		c.Next()
	}
}
