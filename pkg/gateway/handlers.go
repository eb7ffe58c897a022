package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/observerai/companion/internal/tracing"
	"github.com/observerai/companion/pkg/commandbus"
)

const maxBodyBytes = 1 << 20

// HealthStatus is the /healthz body.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version,omitempty"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Subscribers      int     `json:"subscribers"`
	Pending          int     `json:"pending"`
	Shortcuts        int     `json:"shortcuts"`
	ShortcutsEnabled bool    `json:"shortcuts_enabled"`
	WebsocketClients int     `json:"websocket_clients"`
}

// PendingCommand is the GET /commands?agentId= body. Action is null when
// nothing is pending.
type PendingCommand struct {
	AgentID string  `json:"agentId"`
	Action  *string `json:"action"`
}

// PendingCommands is the GET /commands body without an agent id.
type PendingCommands struct {
	Commands map[string]string `json:"commands"`
}

// SubmitRequest is the POST /commands body.
type SubmitRequest struct {
	AgentID string `json:"agentId"`
	Action  string `json:"action"`
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "pong")
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	status := HealthStatus{
		Status:           "ok",
		Version:          s.version,
		UptimeSeconds:    time.Since(s.startedAt).Seconds(),
		Subscribers:      s.bus.SubscriberCount(),
		Pending:          s.bus.PendingCount(),
		ShortcutsEnabled: s.shortcutsEnabled(),
		WebsocketClients: s.clients.Count(),
	}
	if s.shortcuts != nil {
		status.Shortcuts = s.shortcuts.Count()
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTakeCommands(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		s.writeJSON(w, http.StatusOK, PendingCommands{Commands: s.bus.TakeAllPending()})
		return
	}

	resp := PendingCommand{AgentID: agentID}
	if action, ok := s.bus.TakePending(agentID); ok {
		resp.Action = &action
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.bus.SubmitFrom(commandbus.SourceHTTP, req.AgentID, req.Action); err != nil {
		if errors.Is(err, commandbus.ErrInvalidCommand) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.audit.RecordCommand(r.Context(), string(commandbus.SourceHTTP), req.AgentID, req.Action)

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleRPC handles single-shot HTTP JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	req, err := s.router.ParseRequest(body)
	if err != nil {
		resp := errorResponse("", ParseError, err.Error())
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			resp.Error = rpcErr
		}
		s.writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	ctx := tracing.WithTraceID(r.Context(), traceID)
	ctx = tracing.WithRequestID(ctx, middleware.GetReqID(r.Context()))

	resp := s.router.RouteRequest(ctx, req)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
