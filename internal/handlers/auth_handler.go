package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/dto"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	tokenIssuer     = "bridge-backend"
	defaultSecret   = "bridge-jwt-secret-default-change-me"
	authMessageHead = "Bridge Authentication"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSignerMismatch   = errors.New("signature does not match address")
	ErrMessageExpired   = errors.New("signed message expired")
	ErrMalformedMessage = errors.New("malformed authentication message")
)

// TokenService issues and validates HS256 tokens for wallet and admin sessions
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService JWT secret from config, JWT_SECRET env overrides it at load time
func NewTokenService(cfg config.AuthConfig) *TokenService {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = defaultSecret
		logrus.Warn("⚠️ 使用默认的 JWT secret，请在生产环境中设置 JWT_SECRET")
	}
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for address with the given scope
func (s *TokenService) Issue(address common.Address, scope string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := dto.JWTClaims{
		Address: address.Hex(),
		Scope:   scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   address.Hex(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses tokenString and checks signature, expiry and subject
func (s *TokenService) Validate(tokenString string) (*dto.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &dto.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*dto.JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !common.IsHexAddress(claims.Address) || claims.Subject != claims.Address {
		return nil, fmt.Errorf("invalid token subject")
	}
	return claims, nil
}

// AuthMessage text a wallet signs to log in
func AuthMessage(address, nonce string, timestamp int64) string {
	return fmt.Sprintf("%s\nAddress: %s\nNonce: %s\nTimestamp: %d", authMessageHead, address, nonce, timestamp)
}

// RecoverSigner address that produced an EIP-191 personal_sign signature over message
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	// wallets return v as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// loginVerifier checks a signed AuthMessage
type loginVerifier struct {
	maxAge time.Duration
	now    func() time.Time
}

func (v loginVerifier) verify(req dto.AuthRequest) (common.Address, error) {
	if !common.IsHexAddress(req.Address) {
		return common.Address{}, fmt.Errorf("invalid address %q", req.Address)
	}
	claimed := common.HexToAddress(req.Address)

	lines := strings.Split(req.Message, "\n")
	if len(lines) != 4 || lines[0] != authMessageHead {
		return common.Address{}, ErrMalformedMessage
	}
	msgAddress := strings.TrimPrefix(lines[1], "Address: ")
	if !common.IsHexAddress(msgAddress) || common.HexToAddress(msgAddress) != claimed {
		return common.Address{}, ErrSignerMismatch
	}
	ts, err := strconv.ParseInt(strings.TrimPrefix(lines[3], "Timestamp: "), 10, 64)
	if err != nil {
		return common.Address{}, ErrMalformedMessage
	}
	if age := v.now().Sub(time.Unix(ts, 0)); age > v.maxAge || age < -time.Minute {
		return common.Address{}, ErrMessageExpired
	}

	signer, err := RecoverSigner(req.Message, req.Signature)
	if err != nil {
		return common.Address{}, err
	}
	if signer != claimed {
		return common.Address{}, ErrSignerMismatch
	}
	return signer, nil
}

// AuthHandler wallet login
type AuthHandler struct {
	tokens   *TokenService
	verifier loginVerifier
	logger   *logrus.Logger
}

// NewAuthHandler createprocess
func NewAuthHandler(tokens *TokenService, messageMaxAge time.Duration, logger *logrus.Logger) *AuthHandler {
	if messageMaxAge <= 0 {
		messageMaxAge = 5 * time.Minute
	}
	return &AuthHandler{
		tokens:   tokens,
		verifier: loginVerifier{maxAge: messageMaxAge, now: time.Now},
		logger:   logger,
	}
}

// AuthenticateHandler POST /api/auth
func (h *AuthHandler) AuthenticateHandler(c *gin.Context) {
	var req dto.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	address, err := h.verifier.verify(req)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"address": req.Address,
			"error":   err.Error(),
		}).Warn("Wallet authentication failed")
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	token, expiresAt, err := h.tokens.Issue(address, dto.ScopeUser)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	h.logger.WithField("address", address.Hex()).Info("🔑 Wallet authenticated")
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		Message:   "Authentication successful",
	})
}

// GenerateNonceHandler GET /api/auth/nonce?address=0x...
func (h *AuthHandler) GenerateNonceHandler(c *gin.Context) {
	address := c.Query("address")
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "address query parameter must be a 0x hex address",
			"code":    "INVALID_REQUEST",
		})
		return
	}

	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate nonce",
			"code":    "INTERNAL_ERROR",
		})
		return
	}
	nonce := hex.EncodeToString(nonceBytes)
	timestamp := h.verifier.now().Unix()

	c.JSON(http.StatusOK, dto.NonceResponse{
		Success:   true,
		Nonce:     nonce,
		Message:   AuthMessage(common.HexToAddress(address).Hex(), nonce, timestamp),
		Timestamp: timestamp,
	})
}
