package handlers

import (
	"fmt"
	"net/http"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/config"
	"bridge-backend/internal/dto"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// RoleChecker resolves bridge roles by address
type RoleChecker interface {
	HasRole(role bridge.Role, account common.Address) bool
}

// AdminAuthHandler 管理员认证处理器
type AdminAuthHandler struct {
	tokens       *TokenService
	verifier     loginVerifier
	roles        RoleChecker
	totpSecret   string
	passwordHash string
	logger       *logrus.Logger
}

// NewAdminAuthHandler 创建管理员认证处理器
func NewAdminAuthHandler(tokens *TokenService, roles RoleChecker, cfg config.AuthConfig, logger *logrus.Logger) *AdminAuthHandler {
	if cfg.AdminTOTPSecret == "" {
		logger.Warn("⚠️ 安全警告: 未设置 ADMIN_TOTP_SECRET，管理员登录将被拒绝")
	}
	maxAge := time.Duration(cfg.MessageMaxAge) * time.Second
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &AdminAuthHandler{
		tokens:       tokens,
		verifier:     loginVerifier{maxAge: maxAge, now: time.Now},
		roles:        roles,
		totpSecret:   cfg.AdminTOTPSecret,
		passwordHash: cfg.AdminPasswordHash,
		logger:       logger,
	}
}

// AdminLoginHandler POST /api/admin/login
// Only admins and pausers can obtain an admin-scoped token. Each call is still
// authorised by the bridge against the caller's roles.
func (h *AdminAuthHandler) AdminLoginHandler(c *gin.Context) {
	if h.totpSecret == "" {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "Server misconfiguration: ADMIN_TOTP_SECRET not set",
		})
		return
	}

	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	address, err := h.verifier.verify(req.AuthRequest)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"address": req.Address,
			"error":   err.Error(),
		}).Warn("Admin login failed - signature")
		// 故意使用通用的错误消息
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	if !h.roles.HasRole(bridge.RoleAdmin, address) && !h.roles.HasRole(bridge.RolePauser, address) {
		h.logger.WithField("address", address.Hex()).Warn("Admin login failed - no admin or pauser role")
		c.JSON(http.StatusForbidden, dto.AuthResponse{
			Success: false,
			Message: "Insufficient permissions",
		})
		return
	}

	if h.passwordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, dto.AuthResponse{
				Success: false,
				Message: "Invalid credentials",
			})
			return
		}
	}

	// 验证 TOTP
	if !totp.Validate(req.TOTPCode, h.totpSecret) {
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "Invalid TOTP code",
		})
		return
	}

	token, expiresAt, err := h.tokens.Issue(address, dto.ScopeAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	h.logger.WithField("address", address.Hex()).Info("🔐 Admin login successful")
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		Message:   "Login successful",
	})
}

// NewTOTPKey 生成 TOTP secret（仅用于初始化）
func NewTOTPKey(accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      "Bridge Admin",
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

// GenerateTOTPSecretHandler GET /api/admin/totp/generate, disabled once a secret is configured
func (h *AdminAuthHandler) GenerateTOTPSecretHandler(c *gin.Context) {
	if h.totpSecret != "" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "TOTP secret already configured",
			"code":    "TOTP_CONFIGURED",
		})
		return
	}

	key, err := NewTOTPKey("admin@bridge")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate TOTP secret",
			"code":    "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"secret":  key.Secret(),
		"url":     key.URL(),
		"message": "Save this secret securely to ADMIN_TOTP_SECRET env var. Use it to generate TOTP codes.",
	})
}
