// Package hub streams engine changes to browsers over Server-Sent Events.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinigraph/internal/engine"
)

// DefaultKeepalive is the interval between keep-alive comments
const DefaultKeepalive = 30 * time.Second

// Client represents a connected SSE client
type Client struct {
	id         string
	instanceID string // empty receives every change
	sessionID  string
	events     chan []byte
}

func (c *Client) wants(change engine.Change) bool {
	if c.instanceID != "" && c.instanceID != change.InstanceID {
		return false
	}
	if c.sessionID != "" && c.sessionID != change.SessionID {
		return false
	}
	return true
}

// Hub manages SSE client connections
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan engine.Change
	done       chan struct{}
	keepalive  time.Duration
	logger     *zap.Logger
}

// New creates a new Hub
func New(logger *zap.Logger, keepalive time.Duration) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan engine.Change, 256),
		done:       make(chan struct{}),
		keepalive:  keepalive,
		logger:     logger,
	}
}

// Run starts the hub's event loop. It returns when ctx is done, closing
// every client stream. Run must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("SSE client connected", zap.String("client_id", client.id), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("SSE client disconnected", zap.String("client_id", client.id), zap.Int("total", total))

		case change := <-h.broadcast:
			data, err := json.Marshal(change)
			if err != nil {
				h.logger.Warn("failed to marshal change", zap.Error(err))
				continue
			}

			msg := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", change.Type, data))

			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(change) {
					continue
				}
				select {
				case client.events <- msg:
				default:
					// Client is slow, skip this message
					h.logger.Debug("SSE client is slow, skipping change", zap.String("client_id", client.id))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.events)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends a change to all interested clients
func (h *Hub) Broadcast(change engine.Change) {
	select {
	case h.broadcast <- change:
	default:
		h.logger.Warn("broadcast channel full, dropping change", zap.String("type", string(change.Type)))
	}
}

// Forward broadcasts every change received on changes until ctx is done or
// the channel is closed
func (h *Hub) Forward(ctx context.Context, changes <-chan engine.Change) {
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return
			}
			h.Broadcast(change)
		case <-ctx.Done():
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles SSE connections. The optional "instance" and "session"
// query parameters restrict the stream to one engine or session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Check if client supports SSE
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := &Client{
		id:         uuid.NewString(),
		instanceID: r.URL.Query().Get("instance"),
		sessionID:  r.URL.Query().Get("session"),
		events:     make(chan []byte, 64),
	}

	select {
	case h.register <- client:
	case <-h.done:
		return
	case <-r.Context().Done():
		return
	}

	// Ensure cleanup on disconnect
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	// Send initial connection message
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
