package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // review UI is served from another origin
	},
}

// Client represents a connected WebSocket observer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of connected observers and broadcasts validation
// events to all of them. Delivery is best-effort: an observer whose buffer
// is full gets disconnected rather than stalling the broadcast loop.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws observer connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				observability.WSConnections.Dec()
				slog.Debug("ws observer disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			var stuck []*Client
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					stuck = append(stuck, client)
				}
			}
			h.mu.RUnlock()

			// A client removed here still exits through unregister when
			// its readPump returns; the membership check there keeps the
			// gauge from decrementing twice.
			for _, client := range stuck {
				h.mu.Lock()
				if _, ok := h.clients[client]; ok {
					delete(h.clients, client)
					close(client.send)
					observability.WSConnections.Dec()
				}
				h.mu.Unlock()
			}
		}
	}
}

// BroadcastValidationUpdate announces a pending-set change to every
// connected observer.
func (h *Hub) BroadcastValidationUpdate(message string) {
	data, err := json.Marshal(dto.WSEvent{Type: "validation_update", Message: message})
	if err != nil {
		slog.Error("marshal ws event", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		// Broadcast queue full; events carry no data, dropping one is safe.
		slog.Warn("ws broadcast queue full, event dropped")
	}
}

// HandleWS handles WebSocket upgrade requests.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 64),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		// Observers never send anything meaningful; this loop only
		// detects disconnection.
	}
}
