package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Auth DTOs ====================

const (
	ScopeUser  = "user"
	ScopeAdmin = "admin"
)

// AuthRequest Authentication request structure
type AuthRequest struct {
	Address   string `json:"address" binding:"required"`   // wallet address, 0x hex
	Message   string `json:"message" binding:"required"`   // message returned by the nonce endpoint
	Signature string `json:"signature" binding:"required"` // EIP-191 personal_sign signature, 65 bytes hex
}

// AdminLoginRequest wallet signature plus TOTP
type AdminLoginRequest struct {
	AuthRequest
	TOTPCode string `json:"totp_code" binding:"required"`
	Password string `json:"password"` // only checked when a password hash is configured
}

// AuthResponse Authentication response structure
type AuthResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	Message   string `json:"message"`
}

// NonceResponse message the wallet has to sign
type NonceResponse struct {
	Success   bool   `json:"success"`
	Nonce     string `json:"nonce"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// JWTClaims JWT Claims structure
type JWTClaims struct {
	Address string `json:"address"` // recovered signer, checksummed
	Scope   string `json:"scope"`   // user | admin
	jwt.RegisteredClaims
}
