package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 8
	// Max total connections
	maxTotalConns = 10000
)

// Connection limit errors returned by Register.
var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Hub maps user ids to their open event-stream clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]struct{})}
}

// Register adds a connection for p. It fails once the per-user or global
// connection limit is reached, or after Shutdown.
func (h *Hub) Register(p models.Principal, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}
	m, ok := h.conns[p.UserID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[p.UserID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserFull
	}

	client := newClient(h, conn, p)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnections.Inc()
	return client, nil
}

// UnregisterClient removes client and closes its send channel.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	close(client.Send)
	h.totalConns--
	observability.WebSocketConnections.Dec()
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
}

// Connections returns the number of registered clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// SendToUser delivers message to every connection of userID.
func (h *Hub) SendToUser(userID uint, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for c := range h.conns[userID] {
		if c.TrySend(message) {
			sent++
		}
	}
	return sent
}

// SendToAdmins delivers message to every connection held by an admin.
func (h *Hub) SendToAdmins(message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, clients := range h.conns {
		for c := range clients {
			if c.Role == models.RoleAdmin && c.TrySend(message) {
				sent++
			}
		}
	}
	return sent
}

// Dispatch routes a payload received on channel to the matching clients.
func (h *Hub) Dispatch(channel, payload string) {
	var ev struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.Type == "" {
		middleware.Logger.Warn("dropping malformed notification", slog.String("channel", channel))
		return
	}

	var sent int
	if channel == AdminChannel {
		sent = h.SendToAdmins([]byte(payload))
	} else if userID, ok := ParseUserChannel(channel); ok {
		sent = h.SendToUser(userID, []byte(payload))
	} else {
		middleware.Logger.Warn("invalid notification channel", slog.String("channel", channel))
		return
	}
	if sent > 0 {
		observability.WebSocketEventsTotal.WithLabelValues(ev.Type).Add(float64(sent))
	}
}

// StartWiring subscribes the hub to the notifier's channels.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, h.Dispatch)
}

// Shutdown closes every client's send channel; each write pump then sends
// a close frame and exits.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for _, clients := range h.conns {
		for client := range clients {
			close(client.Send)
			observability.WebSocketConnections.Dec()
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
