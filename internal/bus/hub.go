// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/gyro_computer/internal/gyro"
)

// clientBuffer is how many reports may queue per websocket client before
// new reports are dropped for that client.
const clientBuffer = 32

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSResponse is sent to websocket clients.
type WSResponse struct {
	Type    string       `json:"type"` // report, ack, error
	Report  *gyro.Report `json:"report,omitempty"`
	Message string       `json:"message,omitempty"`
}

type hubClient struct {
	conn *websocket.Conn
	send chan WSResponse
}

// Hub fans reports out to websocket clients and keeps the latest one.
// It implements gyro.Sink and http.Handler.
type Hub struct {
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	latest  gyro.Report
	have    bool
	closed  bool

	// control, when set, receives control messages sent by clients.
	control func(payload []byte) error
	logger  *zap.SugaredLogger
}

// NewHub returns an empty hub. control may be nil, in which case clients
// are read-only.
func NewHub(logger *zap.SugaredLogger, control func(payload []byte) error) *Hub {
	return &Hub{
		clients: make(map[*hubClient]struct{}),
		control: control,
		logger:  logger,
	}
}

// Publish stores r as the latest report and queues it for every client.
func (h *Hub) Publish(r gyro.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = r
	h.have = true
	for c := range h.clients {
		select {
		case c.send <- WSResponse{Type: "report", Report: &r}:
		default:
			// slow client; it will catch up with later reports
		}
	}
	return nil
}

// Latest returns the most recent report, if any.
func (h *Hub) Latest() (gyro.Report, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.have
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams reports until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("gyro stream: websocket upgrade error: %v", err)
		return
	}

	c := &hubClient{conn: conn, send: make(chan WSResponse, clientBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	defer h.unregister(c)

	go h.writeLoop(c)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnf("gyro stream: websocket error: %v", err)
			}
			return
		}
		h.handleControl(c, payload)
	}
}

func (h *Hub) handleControl(c *hubClient, payload []byte) {
	resp := WSResponse{Type: "ack"}
	if h.control == nil {
		resp = WSResponse{Type: "error", Message: "stream is read-only"}
	} else if err := h.control(payload); err != nil {
		resp = WSResponse{Type: "error", Message: err.Error()}
	}

	// c.send is closed once the client leaves the map
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- resp:
	default:
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			h.logger.Debugf("gyro stream: write error: %v", err)
			c.conn.Close()
			// drain until unregister closes the channel
			for range c.send {
			}
			return
		}
	}
	c.conn.Close()
}

func (h *Hub) register(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.have {
		latest := h.latest
		c.send <- WSResponse{Type: "report", Report: &latest}
	}
	return true
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}
