package handlers

import (
	"net/http"

	"bridge-backend/internal/bridge"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// QueryHandler public read-only bridge queries
type QueryHandler struct {
	core *bridge.Bridge
}

func NewQueryHandler(core *bridge.Bridge) *QueryHandler {
	return &QueryHandler{core: core}
}

// GetBridgeFeeHandler GET /api/bridge/fee?source=&destination=&asset=
func (h *QueryHandler) GetBridgeFeeHandler(c *gin.Context) {
	source, err := parseUintQuery(c, "source")
	if err != nil {
		badRequest(c, err)
		return
	}
	destination, err := parseUintQuery(c, "destination")
	if err != nil {
		badRequest(c, err)
		return
	}
	var asset common.Address
	if v := c.Query("asset"); v != "" {
		if asset, err = parseAddress("asset", v); err != nil {
			badRequest(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"source":      source,
		"destination": destination,
		"fee":         h.core.GetBridgeFee(source, destination, asset).Dec(),
	})
}

// GetBridgeStatusHandler GET /api/bridge/status
func (h *QueryHandler) GetBridgeStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":                true,
		"paused":                 h.core.IsPaused(),
		"emergency_stop":         h.core.IsStopped(),
		"vault":                  h.core.Vault().Hex(),
		"required_confirmations": h.core.RequiredConfirmations(),
		"validator_count":        h.core.ValidatorCount(),
		"next_transfer_id":       h.core.NextTransferID(),
	})
}

// ListChainsHandler GET /api/chains
func (h *QueryHandler) ListChainsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"chains":  h.core.Chains(),
	})
}

// ChainSupportedHandler GET /api/chains/:chain_id/supported
func (h *QueryHandler) ChainSupportedHandler(c *gin.Context) {
	chainID, err := parseUintParam(c, "chain_id")
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"chain_id":  chainID,
		"supported": h.core.IsChainSupported(chainID),
	})
}

// ListRoutesHandler GET /api/routes
func (h *QueryHandler) ListRoutesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"routes":  h.core.AssetRoutes(),
	})
}

// AssetSupportedHandler GET /api/assets/:asset/routes/:chain_id/supported
func (h *QueryHandler) AssetSupportedHandler(c *gin.Context) {
	asset, err := parseAddress("asset", c.Param("asset"))
	if err != nil {
		badRequest(c, err)
		return
	}
	chainID, err := parseUintParam(c, "chain_id")
	if err != nil {
		badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"asset":              asset.Hex(),
		"destination_chain":  chainID,
		"supported":          h.core.IsAssetSupported(asset, chainID),
		"remaining_capacity": h.core.RemainingDailyCapacity(asset, chainID).Dec(),
	})
}

// CustodyHandler GET /api/assets/:asset/custody
func (h *QueryHandler) CustodyHandler(c *gin.Context) {
	asset, err := parseAddress("asset", c.Param("asset"))
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"asset":    asset.Hex(),
		"locked":   h.core.CustodyBalance(asset).Dec(),
		"released": h.core.ReleasedBalance(asset).Dec(),
	})
}
