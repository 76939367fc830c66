package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

// ProgressHub manages active WebSocket connections and streams pipeline
// progress events to the browser while a report is being built.
type ProgressHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	logger     arbor.ILogger
}

// NewProgressHub creates a new progress hub
func NewProgressHub(logger arbor.ILogger) *ProgressHub {
	hub := &ProgressHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts
func (h *ProgressHub) run() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				err := client.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					h.logger.Warn().Err(err).Msg("Failed to send WebSocket message")
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.RUnlock()

		case <-ticker.C:
			h.SendStatus("online")
		}
	}
}

// SendStatus broadcasts server status to all clients
func (h *ProgressHub) SendStatus(status string) {
	msg := map[string]interface{}{
		"type":      "status",
		"status":    status,
		"timestamp": time.Now().Unix(),
	}
	data, _ := json.Marshal(msg)
	h.broadcast <- data
}

// SendPhase broadcasts a pipeline progress event to all clients
func (h *ProgressHub) SendPhase(phase string, detail map[string]interface{}) {
	msg := map[string]interface{}{
		"type":      "progress",
		"phase":     phase,
		"detail":    detail,
		"timestamp": time.Now().Unix(),
	}
	data, _ := json.Marshal(msg)

	select {
	case h.broadcast <- data:
	default:
		// A full broadcast buffer must not stall the pipeline.
	}
}

// Upgrader for WebSocket connections
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connection requests
func (h *ProgressHub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.register <- conn

	// Keep connection alive and handle messages
	go func() {
		defer func() {
			h.unregister <- conn
		}()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}
