package handlers

import (
	"net/http"

	"bridge-backend/internal/bridge"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PingHandler GET /ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// HealthHandler GET /health
type HealthHandler struct {
	core *bridge.Bridge
	db   *gorm.DB // nil when running without a database
}

func NewHealthHandler(core *bridge.Bridge, db *gorm.DB) *HealthHandler {
	return &HealthHandler{core: core, db: db}
}

// HealthCheckHandler reports degraded when the database is unreachable.
// A paused or stopped bridge is still healthy.
func (h *HealthHandler) HealthCheckHandler(c *gin.Context) {
	status, overall := http.StatusOK, "ok"
	database := "disabled"
	if h.db != nil {
		database = "ok"
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			database = err.Error()
			status, overall = http.StatusServiceUnavailable, "degraded"
		}
	}

	c.JSON(status, gin.H{
		"status":         overall,
		"service":        "bridge-backend",
		"database":       database,
		"paused":         h.core.IsPaused(),
		"emergency_stop": h.core.IsStopped(),
	})
}
