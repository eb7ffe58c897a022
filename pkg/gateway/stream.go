package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/observerai/companion/pkg/commandbus"
)

// handleCommandStream serves the live command stream as server-sent events.
// Each command is an "event: command" frame; a subscriber that fell behind
// gets one "event: missed" frame with the number of dropped commands.
func (s *Server) handleCommandStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if s.shuttingDown() {
		s.writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	sub := s.bus.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := s.logger.With().Str("subscriber", sub.ID()).Str("remote", r.RemoteAddr).Logger()
	logger.Info().Msg("Command stream client connected")
	defer logger.Info().Msg("Command stream client disconnected")

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		msg, err := sub.TryRecv()
		switch {
		case err == nil:
			if err := writeSSE(w, commandbus.MessageTypeCommand, msg); err != nil {
				return
			}
			continue
		case errors.Is(err, commandbus.ErrLagged):
			var lagged *commandbus.LaggedError
			var missed uint64
			if errors.As(err, &lagged) {
				missed = lagged.Missed
			}
			logger.Warn().Uint64("missed", missed).Msg("Command stream client lagged")
			if err := writeSSE(w, "missed", map[string]uint64{"missed": missed}); err != nil {
				return
			}
			continue
		case errors.Is(err, commandbus.ErrClosed):
			return
		}

		flusher.Flush()
		select {
		case <-r.Context().Done():
			return
		case <-s.ctx.Done():
			return
		case <-sub.Ready():
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
	}
}

func writeSSE(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// startCommandForwarder mirrors the command stream onto websocket clients.
func (s *Server) startCommandForwarder() {
	sub := s.bus.Subscribe()
	s.forwardWG.Add(1)

	go func() {
		defer s.forwardWG.Done()
		defer sub.Close()

		for {
			msg, err := sub.Recv(s.ctx)
			switch {
			case err == nil:
				s.broadcaster.Broadcast(EventCommand, msg)
			case errors.Is(err, commandbus.ErrLagged):
				s.logger.Warn().Err(err).Msg("Websocket command forwarder lagged")
			default:
				return
			}
		}
	}()
}
