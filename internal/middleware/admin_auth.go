package middleware

import (
	"net/http"

	"bridge-backend/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminAuthMiddleware 管理员认证中间件
type AdminAuthMiddleware struct {
	auth   *AuthMiddleware
	logger *logrus.Logger
}

// NewAdminAuthMiddleware 创建管理员认证中间件
func NewAdminAuthMiddleware(tokens TokenValidator, logger *logrus.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		auth:   NewAuthMiddleware(tokens, logger),
		logger: logger,
	}
}

// RequireAdminAuth 要求 admin scope 的 token
func (a *AdminAuthMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := a.auth.authenticate(c)
		if !ok {
			return
		}

		// 检查 scope
		if claims.Scope != dto.ScopeAdmin {
			a.logger.WithFields(logrus.Fields{
				"path":    c.Request.URL.Path,
				"method":  c.Request.Method,
				"address": claims.Address,
				"scope":   claims.Scope,
			}).Warn("Admin auth failed - insufficient permissions")

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Insufficient permissions",
				"code":    "INSUFFICIENT_PERMISSIONS",
			})
			return
		}

		// 将用户信息存储到上下文
		c.Set("user_address", claims.Address)
		c.Set("auth_scope", claims.Scope)

		c.Next()
	}
}
