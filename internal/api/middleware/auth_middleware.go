package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"interviewer/internal/auth"
)

const ownerKey = "owner"

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// AuthMiddleware 校验 Bearer 令牌并将 owner 地址注入上下文。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			LoggerFromContext(c).Debug("reject token", "error", err)
			abortUnauthorized(c)
			return
		}

		c.Set(ownerKey, claims.Owner)
		c.Next()
	}
}

// OwnerFromContext 返回经过认证的 owner 地址。
func OwnerFromContext(c *gin.Context) (string, bool) {
	owner := c.GetString(ownerKey)
	return owner, owner != ""
}
