package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flowme-cloud/flowme-backend/internal/confluence"
)

// HostIdentity forwards the caller's wiki bearer token so user-scoped host
// calls act as that user. Requests without a token still pass; calls that
// need one fail with confluence.ErrNoUserToken.
func HostIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok && strings.TrimSpace(tok) != "" {
			ctx := confluence.WithUserToken(c.Request.Context(), strings.TrimSpace(tok))
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
