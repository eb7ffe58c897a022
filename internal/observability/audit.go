package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/observerai/companion/internal/tracing"
	"github.com/rs/zerolog"
)

// Audit event types.
const (
	AuditShortcut = "shortcut"
	AuditCommand  = "command"
	AuditConfig   = "config"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type     string         `json:"event_type"`
	Actor    string         `json:"actor,omitempty"` // shortcut string, client id or source
	Action   string         `json:"action"`          // e.g. "overlay_toggle", "update_connection_url"
	Status   string         `json:"status"`          // "success", "failure"
	Metadata map[string]any `json:"metadata,omitempty"`
	TraceID  string         `json:"trace_id,omitempty"`
}

// AuditLogger appends audit events as JSON lines. A nil *AuditLogger
// discards everything.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

// NewAuditLogger opens path for appending, creating its directory.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}, nil
}

// NewAuditWriter creates an audit logger writing to w.
func NewAuditWriter(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// Record writes event. The trace id is taken from ctx when the event has none.
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if a == nil {
		return
	}
	if event.TraceID == "" {
		event.TraceID = tracing.GetTraceID(ctx)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status)

	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// RecordShortcut records one shortcut action. The actor is the shortcut
// string carried by ctx.
func (a *AuditLogger) RecordShortcut(ctx context.Context, kind string, err error) {
	event := AuditEvent{
		Type:   AuditShortcut,
		Actor:  tracing.GetShortcut(ctx),
		Action: kind,
		Status: "success",
	}
	if err != nil {
		event.Status = "failure"
		event.Metadata = map[string]any{"error": err.Error()}
	}
	a.Record(ctx, event)
}

// RecordCommand records an accepted agent command.
func (a *AuditLogger) RecordCommand(ctx context.Context, source, agentID, action string) {
	a.Record(ctx, AuditEvent{
		Type:     AuditCommand,
		Actor:    actorFrom(ctx, source),
		Action:   action,
		Status:   "success",
		Metadata: map[string]any{"agent_id": agentID, "source": source},
	})
}

// RecordConfig records a settings change. Metadata must never carry secrets.
func (a *AuditLogger) RecordConfig(ctx context.Context, action string, metadata map[string]any) {
	a.Record(ctx, AuditEvent{
		Type:     AuditConfig,
		Actor:    actorFrom(ctx, "gateway"),
		Action:   action,
		Status:   "success",
		Metadata: metadata,
	})
}

func actorFrom(ctx context.Context, fallback string) string {
	if id := tracing.GetClientID(ctx); id != "" {
		return id
	}
	return fallback
}
