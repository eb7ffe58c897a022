package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for the HTTP request ID
	RequestIDKey ContextKey = "request_id"
	// AgentIDKey is the context key for agent ID
	AgentIDKey ContextKey = "agent_id"
	// ShortcutKey is the context key for the shortcut string that fired
	ShortcutKey ContextKey = "shortcut"
	// ClientIDKey is the context key for the websocket client id
	ClientIDKey ContextKey = "client_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RequestID string
	AgentID   string
	Shortcut  string
	ClientID  string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRequestID adds the HTTP request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAgentID adds an agent ID to the context
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

// WithShortcut adds the fired shortcut string to the context
func WithShortcut(ctx context.Context, shortcut string) context.Context {
	return context.WithValue(ctx, ShortcutKey, shortcut)
}

// WithClientID adds a gateway client id to the context
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ClientIDKey, clientID)
}

func getString(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// GetAgentID retrieves the agent ID from the context
func GetAgentID(ctx context.Context) string {
	return getString(ctx, AgentIDKey)
}

// GetShortcut retrieves the shortcut string from the context
func GetShortcut(ctx context.Context) string {
	return getString(ctx, ShortcutKey)
}

// GetClientID retrieves the client id from the context
func GetClientID(ctx context.Context) string {
	return getString(ctx, ClientIDKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RequestID: GetRequestID(ctx),
		AgentID:   GetAgentID(ctx),
		Shortcut:  GetShortcut(ctx),
		ClientID:  GetClientID(ctx),
	}
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// NewShortcutContext creates the context for one shortcut press.
func NewShortcutContext(ctx context.Context, shortcut string) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	return WithShortcut(ctx, shortcut)
}
