package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

// AdminTokenHeader carries the admin token. Authorization is left to the
// wiki user token forwarded by HostIdentity.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken guards admin-only routes. With no token configured every
// request is refused.
func RequireAdminToken(token string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "admin access is not configured"})
			c.Abort()
			return
		}

		got := strings.TrimSpace(c.GetHeader(AdminTokenHeader))
		if got == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing admin token"})
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			logging.NewLogger(c.Request.Context()).LogWarnf("admin_auth", "rejected admin token path=%s", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid admin token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
