package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MaxWSConnections is the hard cap on simultaneous WebSocket clients.
const MaxWSConnections = 100

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is a local debug viewer; any origin may watch it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHub fans arena snapshots out to connected debug viewers.
type WebSocketHub struct {
	clients    map[*websocket.Conn]struct{}
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewWebSocketHub creates a hub. Run must be called before HandleWS accepts
// connections.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run processes registration and broadcast events until the hub's channels
// close. Start it on its own goroutine.
func (h *WebSocketHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Viewer connected (%d total)", count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Viewer disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.RLock()
			var dead []*websocket.Conn
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					dead = append(dead, conn)
					continue
				}
				IncrementWSMessages()
			}
			h.mu.RUnlock()

			for _, conn := range dead {
				h.unregisterConn(conn)
			}
		}
	}
}

func (h *WebSocketHub) unregisterConn(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()
	UpdateWSConnections(count)
}

// ClientCount returns the number of connected viewers.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers the connection with the hub.
func (h *WebSocketHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= MaxWSConnections {
		RecordRequestRejected("ws_limit")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}
	h.register <- conn

	// Reader loop: the feed is one-way, but reading drains control frames
	// and detects the close.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// StartBroadcasting pushes one JSON snapshot per interval to all viewers
// until stop closes. It spawns its own goroutine.
func (h *WebSocketHub) StartBroadcasting(source func() any, interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if h.ClientCount() == 0 {
					continue // nothing to serialize for
				}
				payload, err := json.Marshal(source())
				if err != nil {
					log.Printf("⚠️ snapshot marshal: %v", err)
					continue
				}
				select {
				case h.broadcast <- payload:
				default: // hub busy; drop the frame rather than block the ticker
				}
			case <-stop:
				return
			}
		}
	}()
}
