package middleware

import (
	"strings"

	"card-server/internal/config"
	"card-server/internal/pkg/crypto"
	"card-server/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 管理端 JWT 认证中间件
// Token 由 tools/gen_token.go 离线签发
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "缺少认证信息")
			c.Abort()
			return
		}

		// Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "认证格式错误")
			c.Abort()
			return
		}

		claims, err := crypto.ParseToken(parts[1], config.Get().JWT.Secret)
		if err != nil {
			response.Unauthorized(c, "无效的认证信息")
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// AdminMiddleware 管理员权限中间件
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists || role != "admin" {
			response.Forbidden(c, "需要管理员权限")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetSubject 从上下文获取操作者标识
func GetSubject(c *gin.Context) string {
	subject, _ := c.Get("subject")
	if s, ok := subject.(string); ok {
		return s
	}
	return ""
}
