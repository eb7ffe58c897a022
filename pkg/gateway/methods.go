package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/internal/tracing"
	"github.com/observerai/companion/pkg/commandbus"
	"github.com/observerai/companion/pkg/hotkey"
)

// RPC method names.
const (
	MethodGetShortcutConfig      = "get_shortcut_config"
	MethodGetRegisteredShortcuts = "get_registered_shortcuts"
	MethodGetShortcutReport      = "get_shortcut_report"
	MethodSetShortcutConfig      = "set_shortcut_config"
	MethodGetConnectionURL       = "get_connection_url"
	MethodUpdateConnectionURL    = "update_connection_url"
	MethodGetConnectionAPIKey    = "get_connection_api_key"
	MethodUpdateConnectionAPIKey = "update_connection_api_key"
	MethodCheckServers           = "check_servers"
	MethodGetOverlayState        = "get_overlay_state"
	MethodSubmitCommand          = "submit_command"
	MethodTakePending            = "take_pending"
	MethodSubscribeEvents        = "subscribe_events"
	MethodListMethods            = "list_methods"
)

// ShortcutReport is the get_shortcut_report result.
type ShortcutReport struct {
	Enabled    bool             `json:"enabled"`
	Registered []string         `json:"registered"`
	Skipped    []hotkey.Skipped `json:"skipped"`
}

// SetShortcutConfigResult is the set_shortcut_config result. Bindings are
// only registered at startup, so a saved change always needs a restart.
type SetShortcutConfigResult struct {
	RequiresRestart bool             `json:"requires_restart"`
	Invalid         []hotkey.Skipped `json:"invalid"`
}

type configView struct {
	Shortcuts     config.ShortcutConfig `json:"shortcuts"`
	ConnectionURL *string               `json:"ollama_url"`
	HasAPIKey     bool                  `json:"has_api_key"`
}

// redactConfig drops the API key from a document pushed to every client.
func redactConfig(cfg config.AppConfig) configView {
	return configView{
		Shortcuts:     cfg.Shortcuts,
		ConnectionURL: cfg.ConnectionURL,
		HasAPIKey:     cfg.ConnectionAPIKey != nil && *cfg.ConnectionAPIKey != "",
	}
}

func (s *Server) registerBuiltinMethods() {
	_ = s.RegisterMethod(MethodGetShortcutConfig, s.handleGetShortcutConfig)
	_ = s.RegisterMethod(MethodGetRegisteredShortcuts, s.handleGetRegisteredShortcuts)
	_ = s.RegisterMethod(MethodGetShortcutReport, s.handleGetShortcutReport)
	_ = s.router.RegisterMutation(MethodSetShortcutConfig, s.handleSetShortcutConfig)
	_ = s.RegisterMethod(MethodGetConnectionURL, s.handleGetConnectionURL)
	_ = s.router.RegisterMutation(MethodUpdateConnectionURL, s.handleUpdateConnectionURL)
	_ = s.RegisterMethod(MethodGetConnectionAPIKey, s.handleGetConnectionAPIKey)
	_ = s.router.RegisterMutation(MethodUpdateConnectionAPIKey, s.handleUpdateConnectionAPIKey)
	_ = s.RegisterMethod(MethodCheckServers, s.handleCheckServers)
	_ = s.RegisterMethod(MethodGetOverlayState, s.handleGetOverlayState)
	_ = s.router.RegisterMutation(MethodSubmitCommand, s.handleSubmitCommandRPC)
	_ = s.router.RegisterMutation(MethodTakePending, s.handleTakePending)
	_ = s.RegisterMethod(MethodSubscribeEvents, s.handleSubscribeEvents)
	_ = s.RegisterMethod(MethodListMethods, func(context.Context, json.RawMessage) (any, error) {
		return s.router.GetMethods(), nil
	})
}

func (s *Server) handleGetShortcutConfig(context.Context, json.RawMessage) (any, error) {
	return s.store.Config().Shortcuts, nil
}

func (s *Server) handleGetRegisteredShortcuts(context.Context, json.RawMessage) (any, error) {
	if s.shortcuts == nil {
		return []string{}, nil
	}
	return s.shortcuts.Report().Registered, nil
}

func (s *Server) shortcutsEnabled() bool {
	return s.shortcuts != nil && s.shortcuts.Installed()
}

func (s *Server) handleGetShortcutReport(context.Context, json.RawMessage) (any, error) {
	if s.shortcuts == nil {
		return ShortcutReport{Registered: []string{}, Skipped: []hotkey.Skipped{}}, nil
	}
	report := s.shortcuts.Report()
	return ShortcutReport{
		Enabled:    s.shortcutsEnabled(),
		Registered: report.Registered,
		Skipped:    report.Skipped,
	}, nil
}

func (s *Server) handleSetShortcutConfig(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Config *config.ShortcutConfig `json:"config"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Config == nil {
		return nil, invalidParams("config parameter is required")
	}

	invalid := hotkey.Validate(*p.Config)
	if invalid == nil {
		invalid = []hotkey.Skipped{}
	}

	if err := s.store.SetShortcutConfig(*p.Config); err != nil {
		return nil, fmt.Errorf("failed to save shortcut config: %w", err)
	}

	s.logger.Info().Int("invalid", len(invalid)).Msg("Shortcut config saved; restart required to apply")
	s.audit.RecordConfig(ctx, MethodSetShortcutConfig, map[string]any{"invalid": len(invalid), "requires_restart": true})
	s.ConfigChanged(s.store.Config())

	return SetShortcutConfigResult{RequiresRestart: true, Invalid: invalid}, nil
}

func (s *Server) handleGetConnectionURL(context.Context, json.RawMessage) (any, error) {
	return s.store.Config().ConnectionURL, nil
}

func (s *Server) handleUpdateConnectionURL(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		URL *string `json:"url"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	// Stored as given. A value the prober cannot use is only reported.
	if p.URL != nil {
		if err := config.NewValidator().ValidateConnectionURL(*p.URL); err != nil {
			s.logger.Warn().Err(err).Msg("Saving unusable connection URL")
		}
	}

	if err := s.store.UpdateConnectionURL(p.URL); err != nil {
		return nil, fmt.Errorf("failed to save connection URL: %w", err)
	}
	s.audit.RecordConfig(ctx, MethodUpdateConnectionURL, map[string]any{"url": p.URL})
	s.ConfigChanged(s.store.Config())
	return p.URL, nil
}

func (s *Server) handleGetConnectionAPIKey(context.Context, json.RawMessage) (any, error) {
	return s.store.Config().ConnectionAPIKey, nil
}

func (s *Server) handleUpdateConnectionAPIKey(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		APIKey *string `json:"api_key"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.store.UpdateConnectionAPIKey(p.APIKey); err != nil {
		return nil, fmt.Errorf("failed to save API key: %w", err)
	}
	s.audit.RecordConfig(ctx, MethodUpdateConnectionAPIKey, map[string]any{"cleared": p.APIKey == nil})
	s.ConfigChanged(s.store.Config())
	return map[string]bool{"has_api_key": p.APIKey != nil}, nil
}

func (s *Server) handleCheckServers(ctx context.Context, params json.RawMessage) (any, error) {
	if s.prober == nil {
		return nil, errors.New("server checks are unavailable")
	}

	var p struct {
		URLs   []string `json:"urls"`
		APIKey *string  `json:"api_key"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.URLs) == 0 {
		return nil, invalidParams("urls parameter is required")
	}

	apiKey := ""
	if p.APIKey != nil {
		apiKey = *p.APIKey
	} else if stored := s.store.Config().ConnectionAPIKey; stored != nil {
		apiKey = *stored
	}

	return s.prober.Check(ctx, p.URLs, apiKey), nil
}

func (s *Server) handleGetOverlayState(context.Context, json.RawMessage) (any, error) {
	if s.overlay == nil {
		return nil, errors.New("overlay is not available")
	}
	return s.overlay.State(), nil
}

func (s *Server) handleSubmitCommandRPC(ctx context.Context, params json.RawMessage) (any, error) {
	var p SubmitRequest
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.bus.SubmitFrom(commandbus.SourceRPC, p.AgentID, p.Action); err != nil {
		if errors.Is(err, commandbus.ErrInvalidCommand) {
			return nil, invalidParams("%v", err)
		}
		return nil, err
	}
	s.audit.RecordCommand(ctx, string(commandbus.SourceRPC), p.AgentID, p.Action)
	return map[string]string{"status": "accepted"}, nil
}

func (s *Server) handleTakePending(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		AgentID string `json:"agentId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AgentID == "" {
		return PendingCommands{Commands: s.bus.TakeAllPending()}, nil
	}

	resp := PendingCommand{AgentID: p.AgentID}
	if action, ok := s.bus.TakePending(p.AgentID); ok {
		resp.Action = &action
	}
	return resp, nil
}

// handleSubscribeEvents narrows the events pushed to the calling websocket
// client. An empty list restores every event.
func (s *Server) handleSubscribeEvents(ctx context.Context, params json.RawMessage) (any, error) {
	clientID := tracing.GetClientID(ctx)
	if clientID == "" {
		return nil, invalidParams("subscribe_events is only available over the websocket")
	}

	var p struct {
		Events []string `json:"events"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	for _, e := range p.Events {
		if !subscribableEvents[e] {
			return nil, invalidParams("unknown event %q", e)
		}
	}

	if !s.clients.SetEvents(clientID, p.Events) {
		return nil, fmt.Errorf("client %s is not connected", clientID)
	}

	events := p.Events
	if len(events) == 0 {
		events = make([]string, 0, len(subscribableEvents))
		for e := range subscribableEvents {
			events = append(events, e)
		}
	}
	sort.Strings(events)
	return map[string][]string{"events": events}, nil
}
