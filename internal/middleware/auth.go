package middleware

import (
	"net/http"
	"strings"

	"bridge-backend/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TokenValidator parses bearer tokens
type TokenValidator interface {
	Validate(tokenString string) (*dto.JWTClaims, error)
}

// AuthMiddleware JWT
type AuthMiddleware struct {
	tokens TokenValidator
	logger *logrus.Logger
}

// NewAuthMiddleware createJWT
func NewAuthMiddleware(tokens TokenValidator, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

// RequireAuth JWT, stores the signer address as user_address
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := a.authenticate(c)
		if !ok {
			return
		}
		c.Set("user_address", claims.Address)
		c.Set("auth_scope", claims.Scope)

		a.logger.WithFields(logrus.Fields{
			"path":         c.Request.URL.Path,
			"method":       c.Request.Method,
			"user_address": claims.Address,
			"scope":        claims.Scope,
		}).Debug("JWTsuccess")

		c.Next()
	}
}

// authenticate validates the bearer token and aborts the request on failure
func (a *AuthMiddleware) authenticate(c *gin.Context) (*dto.JWTClaims, bool) {
	fields := logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		a.logger.WithFields(fields).Warn("JWTfailed - missing Authorization header")
		abortUnauthorized(c, "Authentication required", "MISSING_AUTH_HEADER")
		return nil, false
	}

	// checkBearer
	if !strings.HasPrefix(authHeader, "Bearer ") {
		a.logger.WithFields(fields).Warn("JWTfailed - invalid Authorization format")
		abortUnauthorized(c, "Invalid authorization format, need Bearer token", "INVALID_AUTH_FORMAT")
		return nil, false
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenString == "" {
		a.logger.WithFields(fields).Warn("JWTfailed - empty token")
		abortUnauthorized(c, "Empty token", "EMPTY_TOKEN")
		return nil, false
	}

	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		fields["error"] = err.Error()
		a.logger.WithFields(fields).Warn("JWTfailed - tokenverifyfailed")
		abortUnauthorized(c, "Invalid or expired token", "INVALID_TOKEN")
		return nil, false
	}
	return claims, true
}

func abortUnauthorized(c *gin.Context, msg, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
