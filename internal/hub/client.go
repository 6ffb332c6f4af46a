package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

const (
	// heartbeatInterval is how often the server pings the client.
	heartbeatInterval = 25 * time.Second

	// pongTimeout is how long to wait for a pong response.
	pongTimeout = 7 * time.Second

	// readTimeout is the maximum time to wait for a frame from the client.
	readTimeout = 60 * time.Second

	// writeTimeout is the maximum time to wait for a write to complete.
	writeTimeout = 10 * time.Second

	// sendBufferSize is the capacity of the outbound message channel.
	sendBufferSize = 256
)

// Client represents a single MQTT-over-WebSocket connection to the hub.
// Each client has its own read, write, and heartbeat goroutines managed by
// a shared context.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	clientID string
	send     chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewClient creates a new Client bound to the given hub and WebSocket
// connection. clientID is the MQTT client identifier established during
// CONNECT. The provided context controls the client's lifecycle;
// cancelling it stops all client goroutines.
func NewClient(hub *Hub, conn *websocket.Conn, clientID string, ctx context.Context) *Client {
	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{
		hub:      hub,
		conn:     conn,
		clientID: clientID,
		send:     make(chan []byte, sendBufferSize),
		ctx:      clientCtx,
		cancel:   cancel,
	}
}

// ReadPump reads frames from the WebSocket connection and routes them
// through the hub. When ReadPump exits, the client is unregistered.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
	}()

	c.conn.SetReadLimit(2 * maxFrameSize)

	for {
		readCtx, readCancel := context.WithTimeout(c.ctx, readTimeout)
		_, data, err := c.conn.Read(readCtx)
		readCancel()
		if err != nil {
			if c.ctx.Err() == nil {
				slog.Debug("read error", "client_id", c.clientID, "error", err)
			}
			return
		}
		if err := c.hub.RouteMessage(c, data); err != nil {
			slog.Debug("route error", "client_id", c.clientID, "error", err)
		}
	}
}

// WritePump writes messages from the send channel to the WebSocket
// connection. It exits when the client context is cancelled or the send
// channel is closed.
func (c *Client) WritePump() {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			writeCtx, writeCancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageBinary, msg)
			writeCancel()
			if err != nil {
				slog.Debug("write error", "client_id", c.clientID, "error", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// HeartbeatLoop sends periodic pings to the client to verify the
// connection is alive. If a pong is not received within pongTimeout, the
// connection is closed and the client goroutines exit via context
// cancellation.
func (c *Client) HeartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(c.ctx, pongTimeout)
			err := c.conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				slog.Info("heartbeat failed", "client_id", c.clientID, "error", err)
				_ = c.conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
				return
			}
		}
	}
}

// Send writes data to the client's outbound channel. If the channel is
// full, the message is dropped to prevent blocking the sender.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	default:
		slog.Debug("send buffer full, dropping message", "client_id", c.clientID)
	}
}

// ClientID returns the client's MQTT client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}
