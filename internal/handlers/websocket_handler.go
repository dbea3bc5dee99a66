package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// WebSocketHandler upgrades /ws requests onto the push service
type WebSocketHandler struct {
	pushService *services.WebSocketPushService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(pushService *services.WebSocketPushService) *WebSocketHandler {
	return &WebSocketHandler{pushService: pushService}
}

// HandleWebSocket GET /ws?transfer_id=1,2&transfer_id=3
// Without transfer_id the client receives every bridge event.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	ids, err := parseTransferIDs(c.QueryArray("transfer_id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	h.pushService.HandleWebSocket(c.Writer, c.Request, ids)
}

// StatsHandler GET /api/ws/stats
func (h *WebSocketHandler) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"active_connections": h.pushService.GetActiveConnections(),
	})
}

func parseTransferIDs(values []string) ([]uint64, error) {
	var ids []uint64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("transfer_id: invalid value %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
