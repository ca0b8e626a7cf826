// websocket.go - Live transfer event feed over WebSocket
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/caffeinepub/ofs/internal/models"
)

// WebSocket message types for the transfer feed
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypePong      = "pong"
	MsgTypeTransfer  = "transfer:recorded"
)

// WSMessage is the envelope of every frame on the feed
type WSMessage struct {
	Type      string                 `json:"type"`
	Transfer  *models.TransferRecord `json:"transfer,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Hub fans transfer events out to connected WebSocket clients
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewHub creates a transfer event hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

// HandleWebSocket upgrades the connection and keeps it subscribed to the
// feed until the client disconnects
func (h *Hub) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	h.register(ws)
	defer h.unregister(ws)

	h.send(ws, WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()})

	// Read loop: only pings are expected, everything else is ignored.
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}
		if msg.Type == MsgTypePing {
			h.send(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		}
	}

	return nil
}

// BroadcastTransfer pushes a freshly recorded transfer to every client.
// Dead connections are dropped from the set.
func (h *Hub) BroadcastTransfer(rec *models.TransferRecord) {
	msg := WSMessage{
		Type:      MsgTypeTransfer,
		Transfer:  rec,
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.conns {
		if err := ws.WriteJSON(msg); err != nil {
			ws.Close()
			delete(h.conns, ws)
		}
	}
}

// ClientCount reports the number of subscribed clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) register(ws *websocket.Conn) {
	h.mu.Lock()
	h.conns[ws] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, ws)
	h.mu.Unlock()
}

func (h *Hub) send(ws *websocket.Conn, msg WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ws.WriteJSON(msg)
}
