package app

import (
	"context"
	"fmt"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/config"
	"bridge-backend/internal/events"
	"bridge-backend/internal/handlers"
	"bridge-backend/internal/middleware"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/router"
	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ServiceContainer wires the bridge, its event subscribers and the HTTP layer
type ServiceContainer struct {
	Config *config.Config
	Logger *logrus.Logger

	// Database, nil when running fully in memory
	DB *gorm.DB

	// Repositories
	TransferRepo repository.TransferRepository
	EventRepo    repository.EventRepository
	StateStore   *repository.StateStore
	Journal      *repository.StateJournal

	// Core
	Ledger bridge.TokenLedger
	Bus    *events.Bus
	Core   *bridge.Bridge

	// Event subscribers
	EventRecorder        *services.EventRecorder
	NATSPublisher        *events.NATSPublisher
	WebSocketPushService *services.WebSocketPushService
	MetricsService       *services.MetricsService

	// Services
	BridgeService     *services.BridgeService
	MonitoringService *services.MonitoringService

	// HTTP
	Tokens      *handlers.TokenService
	RateLimiter *middleware.RateLimiter

	stopCleanup chan struct{}
}

// InitializeContainer builds every component. db may be nil when the ledger is in memory.
func InitializeContainer(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*ServiceContainer, error) {
	logger.Info("🚀 Initializing Service Container...")
	c := &ServiceContainer{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		stopCleanup: make(chan struct{}),
	}

	// 1. Repositories
	if db != nil {
		c.TransferRepo = repository.NewTransferRepository(db)
		c.EventRepo = repository.NewEventRepository(db)
		c.StateStore = repository.NewStateStore(db)
		logger.Info("✅ Repositories initialized")
	}

	// 2. Ledger
	switch cfg.Bridge.Ledger {
	case config.LedgerDatabase:
		if db == nil {
			return nil, fmt.Errorf("bridge.ledger %q requires a database", config.LedgerDatabase)
		}
		c.Ledger = repository.NewBalanceLedger(db)
	default:
		c.Ledger = bridge.NewMemoryLedger()
		logger.Warn("⚠️ Using in-memory token ledger, balances are lost on restart")
	}

	// 3. Event subscribers, delivered in registration order
	c.initEventServices()

	// 4. Bridge
	var attach []services.BridgeAware
	var store services.StateSource
	if c.EventRecorder != nil {
		attach = append(attach, c.EventRecorder)
	}
	if c.StateStore != nil {
		store = c.StateStore
	}
	opts := []bridge.Option{
		bridge.WithEventSink(c.Bus),
		bridge.WithLogger(logger),
	}
	if db != nil {
		// transfer rows and ledger moves commit together, before the bridge commits in memory
		c.Journal = repository.NewStateJournal(db)
		opts = append(opts, bridge.WithJournal(c.Journal))
	}
	core, err := services.LoadOrBootstrap(ctx, services.BootstrapParams{
		Config: cfg.Bridge,
		Store:  store,
		Ledger: c.Ledger,
		Attach: attach,
		Opts:   opts,
		Logger: logger,
	})
	if err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to initialize bridge: %w", err)
	}
	c.Core = core

	// 5. Services
	c.BridgeService = services.NewBridgeService(core, c.TransferRepo, c.EventRepo, logger)
	if cfg.Monitoring.Enabled {
		c.MonitoringService = services.NewMonitoringService(
			core,
			db,
			cfg.Monitoring.Schedule,
			time.Duration(cfg.Monitoring.StalePendingAge)*time.Minute,
			logger,
		)
	}

	// 6. HTTP
	c.Tokens = handlers.NewTokenService(cfg.Auth)
	if cfg.RateLimit.Enabled {
		c.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	}

	logger.Info("✅ Service Container initialized successfully")
	return c, nil
}

// initEventServices bus subscribers. NATS is optional, a connection failure is logged and skipped.
func (c *ServiceContainer) initEventServices() {
	c.Bus = events.NewBus(c.Logger)

	if c.DB != nil {
		c.EventRecorder = services.NewEventRecorder(c.DB, c.Logger)
		c.Bus.Subscribe("recorder", c.EventRecorder)
	}

	c.MetricsService = services.NewMetricsService()
	c.Bus.Subscribe("metrics", c.MetricsService)

	c.WebSocketPushService = services.NewWebSocketPushService(c.Logger)
	c.Bus.Subscribe("websocket", c.WebSocketPushService)

	if c.Config.NATS.URL == "" {
		c.Logger.Info("📡 NATS not configured, bridge events are not published")
		return
	}
	publisher, err := events.NewNATSPublisher(c.Config.NATS, c.Logger)
	if err != nil {
		c.Logger.WithError(err).Warn("⚠️ Event publishing disabled, NATS connection failed")
		return
	}
	c.NATSPublisher = publisher
	c.Bus.Subscribe("nats", publisher)
}

// Start background jobs
func (c *ServiceContainer) Start() error {
	if c.MonitoringService != nil {
		if err := c.MonitoringService.Start(); err != nil {
			return err
		}
	}
	if c.RateLimiter != nil {
		c.RateLimiter.StartCleanup(10*time.Minute, c.stopCleanup)
	}
	return nil
}

// Router builds the HTTP engine
func (c *ServiceContainer) Router() *gin.Engine {
	authCfg := c.Config.Auth
	return router.SetupRouter(router.Handlers{
		Auth:        handlers.NewAuthHandler(c.Tokens, time.Duration(authCfg.MessageMaxAge)*time.Second, c.Logger),
		AdminAuth:   handlers.NewAdminAuthHandler(c.Tokens, c.Core, authCfg, c.Logger),
		Transfers:   handlers.NewTransferHandler(c.BridgeService, c.Logger),
		Admin:       handlers.NewAdminBridgeHandler(c.BridgeService, c.Logger),
		Query:       handlers.NewQueryHandler(c.Core),
		WebSocket:   handlers.NewWebSocketHandler(c.WebSocketPushService),
		Health:      handlers.NewHealthHandler(c.Core, c.DB),
		Tokens:      c.Tokens,
		RateLimiter: c.RateLimiter,
		AllowedIPs:  c.Config.Admin.AllowedIPs,
		CORS:        c.Config.CORS,
		Logger:      c.Logger,
	})
}

// Cleanup stops background jobs and closes connections
func (c *ServiceContainer) Cleanup() {
	c.Logger.Info("🧹 Cleaning up Service Container...")

	if c.MonitoringService != nil {
		c.MonitoringService.Stop()
	}
	if c.stopCleanup != nil {
		close(c.stopCleanup)
		c.stopCleanup = nil
	}
	if c.WebSocketPushService != nil {
		c.WebSocketPushService.Stop()
	}
	if c.NATSPublisher != nil {
		c.NATSPublisher.Close()
	}

	c.Logger.Info("✅ Service Container cleaned up")
}
