package router

import (
	"bridge-backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBridgeRoutes bridge API routes
func SetupBridgeRoutes(r *gin.Engine, h Handlers, localhostOnly *middleware.LocalhostOnly) {
	authMiddleware := middleware.NewAuthMiddleware(h.Tokens, h.Logger)
	adminMiddleware := middleware.NewAdminAuthMiddleware(h.Tokens, h.Logger)

	api := r.Group("/api")
	if h.RateLimiter != nil {
		api.Use(h.RateLimiter.Limit())
	}

	// ============ Auth ============
	api.GET("/auth/nonce", h.Auth.GenerateNonceHandler)
	api.POST("/auth", h.Auth.AuthenticateHandler)

	// ============ Public queries ============
	api.GET("/bridge/fee", h.Query.GetBridgeFeeHandler)
	api.GET("/bridge/status", h.Query.GetBridgeStatusHandler)
	api.GET("/chains", h.Query.ListChainsHandler)
	api.GET("/chains/:chain_id/supported", h.Query.ChainSupportedHandler)
	api.GET("/routes", h.Query.ListRoutesHandler)
	api.GET("/assets/:asset/routes/:chain_id/supported", h.Query.AssetSupportedHandler)
	api.GET("/assets/:asset/custody", h.Query.CustodyHandler)
	api.GET("/ws/stats", h.WebSocket.StatsHandler)

	// ============ History (database) ============
	api.GET("/events", h.Transfers.ListEventsHandler)
	api.GET("/stats/transfers", h.Transfers.TransferStatsHandler)

	// ============ Transfers ============
	transfers := api.Group("/transfers")
	{
		transfers.GET("", h.Transfers.ListTransfersHandler)
		transfers.GET("/:id", h.Transfers.GetTransferHandler)
		transfers.GET("/:id/status", h.Transfers.GetTransferStatusHandler)
		transfers.GET("/:id/events", h.Transfers.TransferHistoryHandler)
		transfers.GET("/:id/confirmations", h.Transfers.ConfirmationsHandler)

		// wallet JWT, the bridge checks initiator and validator roles
		transfers.POST("", authMiddleware.RequireAuth(), h.Transfers.CreateTransferHandler)
		transfers.POST("/:id/cancel", authMiddleware.RequireAuth(), h.Transfers.CancelTransferHandler)
		transfers.POST("/:id/confirm", authMiddleware.RequireAuth(), h.Transfers.ConfirmTransferHandler)
		transfers.POST("/:id/fail", authMiddleware.RequireAuth(), h.Transfers.FailTransferHandler)
	}

	// ============ Admin (IP whitelist) ============
	adminPublic := api.Group("/admin")
	adminPublic.Use(localhostOnly.Restrict())
	{
		adminPublic.POST("/login", h.AdminAuth.AdminLoginHandler)
		adminPublic.GET("/totp/generate", h.AdminAuth.GenerateTOTPSecretHandler)
	}

	admin := api.Group("/admin")
	admin.Use(localhostOnly.Restrict(), adminMiddleware.RequireAdminAuth())
	{
		admin.POST("/chains", h.Admin.AddChainHandler)
		admin.PUT("/chains/:chain_id/status", h.Admin.SetChainStatusHandler)

		admin.POST("/routes", h.Admin.AddAssetRouteHandler)
		admin.PUT("/routes/:asset/:chain_id/status", h.Admin.SetAssetRouteStatusHandler)

		admin.PUT("/fees", h.Admin.UpdateFeeHandler)

		admin.GET("/validators", h.Admin.ListValidatorsHandler)
		admin.POST("/validators", h.Admin.AddValidatorHandler)
		admin.DELETE("/validators/:address", h.Admin.RemoveValidatorHandler)

		admin.GET("/roles/:role", h.Admin.ListRoleMembersHandler)
		admin.POST("/roles", h.Admin.GrantRoleHandler)
		admin.DELETE("/roles/:role/:account", h.Admin.RevokeRoleHandler)

		admin.POST("/pause", h.Admin.PauseHandler)
		admin.POST("/unpause", h.Admin.UnpauseHandler)
		admin.POST("/emergency-stop", h.Admin.EmergencyStopHandler)
	}
}
