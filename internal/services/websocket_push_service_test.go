package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/events"

	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPush(t *testing.T, svc *WebSocketPushService, ids []uint64) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc.HandleWebSocket(w, r, ids)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPush(t *testing.T, conn *websocket.Conn) PushMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg PushMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func waitForConnections(t *testing.T, svc *WebSocketPushService, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return svc.GetActiveConnections() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketPushBroadcast(t *testing.T) {
	svc := NewWebSocketPushService(quietLogger())
	defer svc.Stop()

	conn := dialPush(t, svc, nil)
	assert.Equal(t, "connection_established", readPush(t, conn).Type)
	waitForConnections(t, svc, 1)

	env := events.NewEnvelope(bridge.TransferCompleted{ID: 3, Amount: uint256.NewInt(9)})
	svc.Handle(context.Background(), env)

	msg := readPush(t, conn)
	assert.Equal(t, "TransferCompleted", msg.Type)
	assert.Equal(t, env.ID, msg.MessageID)
}

func TestWebSocketPushFiltersByTransfer(t *testing.T) {
	svc := NewWebSocketPushService(quietLogger())
	defer svc.Stop()

	conn := dialPush(t, svc, []uint64{7})
	readPush(t, conn)
	waitForConnections(t, svc, 1)

	svc.Handle(context.Background(), events.NewEnvelope(bridge.TransferCancelled{ID: 6, Refund: uint256.NewInt(1)}))
	svc.Handle(context.Background(), events.NewEnvelope(bridge.Paused{Paused: true}))
	svc.Handle(context.Background(), events.NewEnvelope(bridge.TransferCancelled{ID: 7, Refund: uint256.NewInt(1)}))

	msg := readPush(t, conn)
	assert.Equal(t, "TransferCancelled", msg.Type)
	data := msg.Data.(map[string]interface{})
	assert.EqualValues(t, 7, data["transfer_id"])
}

func TestWebSocketPushUnregistersOnClose(t *testing.T) {
	svc := NewWebSocketPushService(quietLogger())
	defer svc.Stop()

	conn := dialPush(t, svc, nil)
	readPush(t, conn)
	waitForConnections(t, svc, 1)

	require.NoError(t, conn.Close())
	waitForConnections(t, svc, 0)
}
