package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event names pushed to websocket clients.
const (
	EventShortcutPressed = "shortcut-pressed"
	EventCommand         = "command"
	EventConfigUpdated   = "config-updated"
	EventOverlayUpdated  = "overlay-updated"
	EventServerShutdown  = "server.shutdown"
)

// subscribableEvents are the events a client may select with subscribe_events.
var subscribableEvents = map[string]bool{
	EventShortcutPressed: true,
	EventCommand:         true,
	EventConfigUpdated:   true,
	EventOverlayUpdated:  true,
}

// RPCRequest represents a JSON-RPC 2.0 request
type RPCRequest struct {
	ID             string          `json:"id"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	JSONRPC        string          `json:"jsonrpc"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// RPCResponse represents a JSON-RPC 2.0 response
type RPCResponse struct {
	ID      string    `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
	JSONRPC string    `json:"jsonrpc"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return e.Message
}

// EventMessage represents a server-initiated event
type EventMessage struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	Seq       int64  `json:"seq"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
	TraceID   string `json:"trace_id,omitempty"`
}

// ClientInfo represents information about a connected client
type ClientInfo struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	Idle         bool      `json:"idle"`
}

// RPC error codes
const (
	ParseError        = -32700
	InvalidRequest    = -32600
	MethodNotFound    = -32601
	InvalidParams     = -32602
	InternalError     = -32603
	RateLimitExceeded = -32005
	TooManyConcurrent = -32006
)

// Client represents a connected WebSocket client
type Client struct {
	ID           string
	Conn         *websocket.Conn
	ConnectedAt  time.Time
	LastActivity time.Time
	IPAddress    string
	RateLimiter  *ClientRateLimiter

	// writeMu serializes writers; the connection allows only one.
	writeMu sync.Mutex

	filterMu sync.RWMutex
	events   map[string]bool // nil receives every event
}

// Wants reports whether the client receives event. Shutdown notices are
// always delivered.
func (c *Client) Wants(event string) bool {
	if event == EventServerShutdown {
		return true
	}

	c.filterMu.RLock()
	defer c.filterMu.RUnlock()

	return c.events == nil || c.events[event]
}

// SetEvents limits the client to events. An empty list restores delivery of
// every event.
func (c *Client) SetEvents(events []string) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()

	if len(events) == 0 {
		c.events = nil
		return
	}
	c.events = make(map[string]bool, len(events))
	for _, e := range events {
		c.events[e] = true
	}
}

// WriteJSON sends v as a single text frame.
func (c *Client) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// WriteMessage sends a raw frame.
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}
