package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arbflow/logger"
	"arbflow/models"
)

const writeTimeout = 10 * time.Second

// opportunityEvent is the payload broadcast to websocket subscribers after
// every completed scan.
type opportunityEvent struct {
	Event         string               `json:"event"`
	Opportunities []models.Opportunity `json:"opportunities"`
	Count         int                  `json:"count"`
	Timestamp     string               `json:"timestamp"`
}

// Hub tracks websocket subscribers and broadcasts scan results to them. It
// implements the monitor's result sink.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logger.Log

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     logger.GetLogger(),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handle upgrades the request and keeps the connection registered until the
// peer goes away. Inbound messages are discarded; the stream is push-only.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithComponent("ws_hub").WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	clients := len(h.clients)
	h.mu.Unlock()

	h.log.WithComponent("ws_hub").WithFields(logger.Fields{"clients": clients}).Info("websocket client connected")

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Publish broadcasts the scan result to all connected clients. Clients that
// fail a write are dropped.
func (h *Hub) Publish(_ context.Context, result models.ScanResult) error {
	event := opportunityEvent{
		Event:         "new_opportunities",
		Opportunities: result.Opportunities,
		Count:         result.Count,
		Timestamp:     result.Timestamp,
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			h.log.WithComponent("ws_hub").WithError(err).Warn("dropping websocket client")
			h.remove(conn)
		}
	}

	return nil
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
