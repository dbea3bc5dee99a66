package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

// ErrorStatus maps a bridge rejection to an HTTP status and error code
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, bridge.ErrTransferNotFound),
		errors.Is(err, bridge.ErrChainNotFound),
		errors.Is(err, bridge.ErrRouteNotFound),
		errors.Is(err, bridge.ErrValidatorNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, services.ErrHistoryUnavailable):
		return http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE"
	}

	switch bridge.KindOf(err) {
	case bridge.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case bridge.KindPolicy:
		return http.StatusBadRequest, "POLICY_VIOLATION"
	case bridge.KindAuthorization:
		return http.StatusForbidden, "FORBIDDEN"
	case bridge.KindState:
		return http.StatusConflict, "INVALID_STATE"
	case bridge.KindAvailability:
		return http.StatusServiceUnavailable, "BRIDGE_UNAVAILABLE"
	case bridge.KindReentrancy:
		return http.StatusInternalServerError, "REENTRANT_CALL"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func respondError(c *gin.Context, err error) {
	status, code := ErrorStatus(err)
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    "INVALID_REQUEST",
	})
}

// callerAddress address set by the auth middleware
func callerAddress(c *gin.Context) (common.Address, bool) {
	v := c.GetString("user_address")
	if !common.IsHexAddress(v) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Authentication required",
			"code":    "MISSING_AUTH_HEADER",
		})
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

func parseAddress(field, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, v)
	}
	return common.HexToAddress(v), nil
}

// parseAmount base-10 amount, rejects values that do not fit 256 bits
func parseAmount(field, v string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return amount, nil
}

func parseHexBytes(field, v string) ([]byte, error) {
	if v == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return b, nil
}

func parseUintParam(c *gin.Context, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid value %q", name, c.Param(name))
	}
	return v, nil
}

func parseUintQuery(c *gin.Context, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid value %q", name, c.Query(name))
	}
	return v, nil
}
