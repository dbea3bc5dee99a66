package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bridge-backend/internal/events"
	"bridge-backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocket Upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS middleware in front of /ws
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Connection information
type Connection struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	LastPing time.Time

	mu        sync.RWMutex
	transfers map[uint64]bool // empty means every event
}

// Wants reports whether the connection subscribed to env
func (c *Connection) Wants(env *events.Envelope) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.transfers) == 0 {
		return true
	}
	return env.TransferID != nil && c.transfers[*env.TransferID]
}

func (c *Connection) subscribe(ids ...uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.transfers[id] = true
	}
}

func (c *Connection) unsubscribe(ids ...uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.transfers, id)
	}
}

// Push message base structure
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Data      interface{} `json:"data"`
}

// clientCommand messages accepted from clients
type clientCommand struct {
	Action      string   `json:"action"` // subscribe | unsubscribe
	TransferIDs []uint64 `json:"transfer_ids"`
}

// WebSocketPushService broadcasts bridge events to websocket clients
type WebSocketPushService struct {
	connections map[string]*Connection
	hub         chan *events.Envelope
	register    chan *Connection
	unregister  chan *Connection
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	logger      *logrus.Logger
}

func NewWebSocketPushService(logger *logrus.Logger) *WebSocketPushService {
	service := &WebSocketPushService{
		connections: make(map[string]*Connection),
		hub:         make(chan *events.Envelope, sendBuffer),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		done:        make(chan struct{}),
		logger:      logger,
	}

	go service.run()
	return service
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)

		case conn := <-s.unregister:
			s.handleUnregister(conn)

		case env := <-s.hub:
			s.handleBroadcast(env)

		case <-s.done:
			s.closeAll()
			return
		}
	}
}

// Stop closes every connection and ends the hub loop
func (s *WebSocketPushService) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Handle queues env for broadcast without blocking the emitting bridge call
func (s *WebSocketPushService) Handle(_ context.Context, env *events.Envelope) {
	select {
	case s.hub <- env:
	default:
		s.logger.WithField("event", env.Name).Warn("⚠️ [WebSocketpush] hub full, event dropped")
	}
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	s.connections[conn.ID] = conn
	count := len(s.connections)
	s.mutex.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	s.logger.Infof("📱 WebSocket connection registered: connID=%s", conn.ID)

	s.sendToConnection(conn, PushMessage{
		Type:      "connection_established",
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.NewString(),
		Data: map[string]interface{}{
			"connection_id": conn.ID,
			"message":       "Bridge event stream connected",
		},
	})
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	if _, ok := s.connections[conn.ID]; !ok {
		s.mutex.Unlock()
		return
	}
	delete(s.connections, conn.ID)
	count := len(s.connections)
	s.mutex.Unlock()

	close(conn.Send)
	metrics.WebSocketClients.Set(float64(count))
	s.logger.Infof("📱 WebSocket connection unregistered: connID=%s", conn.ID)
}

func (s *WebSocketPushService) closeAll() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id, conn := range s.connections {
		close(conn.Send)
		delete(s.connections, id)
	}
	metrics.WebSocketClients.Set(0)
}

func (s *WebSocketPushService) handleBroadcast(env *events.Envelope) {
	data, err := json.Marshal(PushMessage{
		Type:      env.Name,
		Timestamp: env.EmittedAt.Format(time.RFC3339),
		MessageID: env.ID,
		Data:      env,
	})
	if err != nil {
		s.logger.WithError(err).Error("❌ Failed to marshal push message")
		return
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sent, dropped := 0, 0
	for _, conn := range s.connections {
		if !conn.Wants(env) {
			continue
		}
		select {
		case conn.Send <- data:
			sent++
		default:
			dropped++
			s.logger.Warnf("⚠️ [WebSocketpush] Failed to send to connection: %s (channel full)", conn.ID)
		}
	}
	if sent+dropped > 0 {
		s.logger.Debugf("📤 [WebSocketpush] %s delivered: sent=%d, dropped=%d", env.Name, sent, dropped)
	}
}

func (s *WebSocketPushService) sendToConnection(conn *Connection, message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.WithError(err).Error("❌ Failed to marshal message")
		return
	}

	select {
	case conn.Send <- data:
	default:
		s.logger.Warnf("⚠️ Failed to send to connection: %s", conn.ID)
	}
}

// HandleWebSocket upgrades the request; transferIDs narrows the stream when non-empty
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request, transferIDs []uint64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("❌ WebSocket upgrade failed")
		return
	}

	connection := &Connection{
		ID:        "conn_" + uuid.NewString(),
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		LastPing:  time.Now(),
		transfers: make(map[uint64]bool),
	}
	connection.subscribe(transferIDs...)

	select {
	case s.register <- connection:
	case <-s.done:
		conn.Close()
		return
	}

	go s.handleConnectionWrite(connection)
	go s.handleConnectionRead(connection)
}

// GetActiveConnections number of registered connections
func (s *WebSocketPushService) GetActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}

func (s *WebSocketPushService) handleConnectionWrite(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.WithError(err).Debug("❌ Write message failed")
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketPushService) handleConnectionRead(conn *Connection) {
	defer func() {
		select {
		case s.unregister <- conn:
		case <-s.done:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		_, raw, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).Warn("❌ WebSocket read error")
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		switch cmd.Action {
		case "subscribe":
			conn.subscribe(cmd.TransferIDs...)
		case "unsubscribe":
			conn.unsubscribe(cmd.TransferIDs...)
		}
	}
}
