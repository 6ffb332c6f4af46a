// Package hub implements a hub-and-spoke connection manager for MQTT
// clients connected over WebSocket (spec §1, transport). The Hub goroutine
// maintains a routing table mapping client ids to active connections, with
// channels for registration and unregistration of clients, and consults the
// broker's subscription cache (internal/cache) to route published frames to
// exclusive subscribers.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/robustmq/robustmq-go/internal/cache"
)

const (
	// maxFrameSize is the maximum allowed size in bytes for an incoming
	// publish frame. Frames exceeding this limit are silently dropped.
	maxFrameSize = 65536
)

// Frame is the routing envelope exchanged over the WebSocket transport:
// a topic name and an opaque payload. It intentionally carries none of
// the MQTT wire protocol's fixed-header detail -- packet framing is out
// of scope.
type Frame struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

// Hub maintains the set of active clients and routes published frames to
// their exclusive subscribers. A single Hub goroutine serializes access to
// the routing table via channels.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	cacheManager *cache.Manager
	rateLimiter  *RateLimiter

	mu sync.RWMutex
}

// NewHub creates a Hub bound to cacheManager. rl may be nil to disable
// per-connection rate limiting (e.g. tests).
func NewHub(cacheManager *cache.Manager, rl *RateLimiter) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		cacheManager: cacheManager,
		rateLimiter:  rl,
	}
}

// Run starts the hub's main event loop. It processes register and unregister
// events until the context is cancelled. Run should be called in its own
// goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.clientID] = client
			h.mu.Unlock()
			slog.Info("client registered",
				"client_id", client.clientID,
				"connections", h.ClientCount(),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.clientID]; ok {
				delete(h.clients, client.clientID)
				close(client.send)
				client.cancel()
			}
			h.mu.Unlock()
			if h.rateLimiter != nil {
				h.rateLimiter.Remove(client.clientID)
			}
			slog.Info("client unregistered",
				"client_id", client.clientID,
				"connections", h.ClientCount(),
			)

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				client.cancel()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			slog.Info("hub stopped")
			return
		}
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LookupClient returns the client registered with the given client id.
func (h *Hub) LookupClient(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	return c, ok
}

// Register queues a client for registration with the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister queues a client for removal from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// RouteMessage decodes a Frame from a connected client and delivers it to
// every exclusive subscriber of its topic that is currently connected to
// this broker. Oversized and malformed frames, and frames from
// rate-limited senders, are silently dropped -- matching the bound the
// teacher's relay placed on abusive senders.
func (h *Hub) RouteMessage(from *Client, raw []byte) error {
	if h.rateLimiter != nil && !h.rateLimiter.Allow(from.ClientID()) {
		slog.Debug("route: rate limited", "client_id", from.ClientID())
		return nil
	}

	if len(raw) > maxFrameSize {
		slog.Debug("route: frame exceeds max size",
			"client_id", from.ClientID(),
			"size", len(raw),
			"max", maxFrameSize,
		)
		return nil
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		slog.Debug("route: invalid frame", "client_id", from.ClientID(), "error", err)
		return err
	}
	if frame.Topic == "" {
		return nil
	}

	for _, sub := range h.cacheManager.ExclusiveSubscribersForTopic(frame.Topic) {
		recipient, ok := h.LookupClient(sub.ClientID)
		if !ok {
			// Recipient not connected to this broker; persistent
			// store-and-forward delivery is out of scope.
			continue
		}
		recipient.Send(raw)
	}
	return nil
}
