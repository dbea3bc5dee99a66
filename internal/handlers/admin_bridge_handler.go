package handlers

import (
	"net/http"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/dto"
	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminBridgeHandler registry, role and availability management.
// The admin scope only opens the routes, the bridge checks the caller's role on every call.
type AdminBridgeHandler struct {
	svc    *services.BridgeService
	logger *logrus.Logger
}

// NewAdminBridgeHandler 创建管理处理器
func NewAdminBridgeHandler(svc *services.BridgeService, logger *logrus.Logger) *AdminBridgeHandler {
	return &AdminBridgeHandler{svc: svc, logger: logger}
}

func ok(c *gin.Context, data gin.H) {
	out := gin.H{"success": true}
	for k, v := range data {
		out[k] = v
	}
	c.JSON(http.StatusOK, out)
}

// AddChainHandler POST /api/admin/chains
func (h *AdminBridgeHandler) AddChainHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	var req dto.AddChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lo, err := parseAmount("min_transfer", req.MinTransfer)
	if err != nil {
		badRequest(c, err)
		return
	}
	hi, err := parseAmount("max_transfer", req.MaxTransfer)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.AddChain(c.Request.Context(), caller, req.ChainID, req.Name, lo, hi); err != nil {
		respondError(c, err)
		return
	}
	chain, _ := h.svc.Core().Chain(req.ChainID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "chain": chain})
}

// SetChainStatusHandler PUT /api/admin/chains/:chain_id/status
func (h *AdminBridgeHandler) SetChainStatusHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	chainID, err := parseUintParam(c, "chain_id")
	if err != nil {
		badRequest(c, err)
		return
	}
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.SetChainActive(c.Request.Context(), caller, chainID, *req.Active); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"chain_id": chainID, "active": *req.Active})
}

// AddAssetRouteHandler POST /api/admin/routes
func (h *AdminBridgeHandler) AddAssetRouteHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	var req dto.AddAssetRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, err := parseAmount("daily_limit", req.DailyLimit)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.AddAssetRoute(c.Request.Context(), caller, asset, req.DestinationChain, limit); err != nil {
		respondError(c, err)
		return
	}
	route, _ := h.svc.Core().AssetRoute(asset, req.DestinationChain)
	c.JSON(http.StatusCreated, gin.H{"success": true, "route": route})
}

// SetAssetRouteStatusHandler PUT /api/admin/routes/:asset/:chain_id/status
func (h *AdminBridgeHandler) SetAssetRouteStatusHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
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
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.SetAssetRouteActive(c.Request.Context(), caller, asset, chainID, *req.Active); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"asset": asset.Hex(), "destination_chain": chainID, "active": *req.Active})
}

// UpdateFeeHandler PUT /api/admin/fees
func (h *AdminBridgeHandler) UpdateFeeHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	var req dto.UpdateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.UpdateBridgeFee(c.Request.Context(), caller, req.SourceChain, req.DestinationChain, fee); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{
		"source_chain":      req.SourceChain,
		"destination_chain": req.DestinationChain,
		"fee":               fee.Dec(),
	})
}

// AddValidatorHandler POST /api/admin/validators
func (h *AdminBridgeHandler) AddValidatorHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	var req dto.ValidatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	validator, err := parseAddress("address", req.Address)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.AddValidator(c.Request.Context(), caller, validator); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"validator": validator.Hex(), "validator_count": h.svc.Core().ValidatorCount()})
}

// RemoveValidatorHandler DELETE /api/admin/validators/:address
func (h *AdminBridgeHandler) RemoveValidatorHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	validator, err := parseAddress("address", c.Param("address"))
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.RemoveValidator(c.Request.Context(), caller, validator); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"validator": validator.Hex(), "validator_count": h.svc.Core().ValidatorCount()})
}

// ListValidatorsHandler GET /api/admin/validators
func (h *AdminBridgeHandler) ListValidatorsHandler(c *gin.Context) {
	core := h.svc.Core()
	validators := core.Validators()
	out := make([]string, 0, len(validators))
	for _, v := range validators {
		out = append(out, v.Hex())
	}
	ok(c, gin.H{
		"validators":             out,
		"required_confirmations": core.RequiredConfirmations(),
	})
}

// GrantRoleHandler POST /api/admin/roles
func (h *AdminBridgeHandler) GrantRoleHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	var req dto.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.GrantRole(c.Request.Context(), caller, bridge.Role(req.Role), account); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"role": req.Role, "account": account.Hex()})
}

// RevokeRoleHandler DELETE /api/admin/roles/:role/:account
func (h *AdminBridgeHandler) RevokeRoleHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	account, err := parseAddress("account", c.Param("account"))
	if err != nil {
		badRequest(c, err)
		return
	}
	role := bridge.Role(c.Param("role"))

	if err := h.svc.RevokeRole(c.Request.Context(), caller, role, account); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"role": string(role), "account": account.Hex()})
}

// ListRoleMembersHandler GET /api/admin/roles/:role
func (h *AdminBridgeHandler) ListRoleMembersHandler(c *gin.Context) {
	role := bridge.Role(c.Param("role"))
	if !role.Valid() {
		respondError(c, bridge.ErrInvalidRole)
		return
	}
	members := h.svc.Core().RoleMembers(role)
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Hex())
	}
	ok(c, gin.H{"role": string(role), "members": out})
}

// PauseHandler POST /api/admin/pause
func (h *AdminBridgeHandler) PauseHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	if err := h.svc.Pause(c.Request.Context(), caller); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"paused": true})
}

// UnpauseHandler POST /api/admin/unpause
func (h *AdminBridgeHandler) UnpauseHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	if err := h.svc.Unpause(c.Request.Context(), caller); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"paused": false})
}

// EmergencyStopHandler POST /api/admin/emergency-stop
func (h *AdminBridgeHandler) EmergencyStopHandler(c *gin.Context) {
	caller, authed := callerAddress(c)
	if !authed {
		return
	}
	var req dto.EmergencyStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.SetEmergencyStop(c.Request.Context(), caller, *req.Stopped); err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"emergency_stop": *req.Stopped})
}
