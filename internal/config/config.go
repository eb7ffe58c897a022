package config

import (
	"encoding/json"
	"maps"
	"runtime"
)

// DefaultConnectionURL is the inference backend used when no settings file exists.
const DefaultConnectionURL = "http://localhost:11434"

// AppConfig is the persisted application configuration: shortcut bindings plus
// connection settings for the inference backend.
type AppConfig struct {
	Shortcuts        ShortcutConfig `json:"shortcuts"`
	ConnectionURL    *string        `json:"ollama_url"`
	ConnectionAPIKey *string        `json:"ollama_api_key"`
}

// ShortcutConfig holds the nine overlay bindings and the per-agent toggles.
// A nil overlay field means the action has no shortcut.
type ShortcutConfig struct {
	OverlayToggle      *string `json:"overlay_toggle"`
	OverlayMoveUp      *string `json:"overlay_move_up"`
	OverlayMoveDown    *string `json:"overlay_move_down"`
	OverlayMoveLeft    *string `json:"overlay_move_left"`
	OverlayMoveRight   *string `json:"overlay_move_right"`
	OverlayResizeUp    *string `json:"overlay_resize_up"`
	OverlayResizeDown  *string `json:"overlay_resize_down"`
	OverlayResizeLeft  *string `json:"overlay_resize_left"`
	OverlayResizeRight *string `json:"overlay_resize_right"`

	// AgentShortcuts maps agent id to shortcut string.
	AgentShortcuts map[string]string `json:"agent_shortcuts"`
}

// Platform selects the default bindings table.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformDarwin  Platform = "darwin"
	PlatformLinux   Platform = "linux"
	PlatformOther   Platform = "other"
)

// CurrentPlatform resolves the platform of the running process.
func CurrentPlatform() Platform {
	return PlatformFromGOOS(runtime.GOOS)
}

// PlatformFromGOOS maps a GOOS value to a Platform.
func PlatformFromGOOS(goos string) Platform {
	switch goos {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformDarwin
	case "linux":
		return PlatformLinux
	default:
		return PlatformOther
	}
}

// PrimaryModifier is the modifier token used by the default bindings.
// Windows reserves most Win+Arrow chords, so it uses Alt; everything else uses Cmd.
func (p Platform) PrimaryModifier() string {
	if p == PlatformWindows {
		return "Alt"
	}
	return "Cmd"
}

// DefaultShortcuts returns the default bindings for the platform.
func DefaultShortcuts(p Platform) ShortcutConfig {
	mod := p.PrimaryModifier()
	bind := func(s string) *string {
		v := mod + "+" + s
		return &v
	}

	return ShortcutConfig{
		OverlayToggle:      bind("B"),
		OverlayMoveUp:      bind("ArrowUp"),
		OverlayMoveDown:    bind("ArrowDown"),
		OverlayMoveLeft:    bind("ArrowLeft"),
		OverlayMoveRight:   bind("ArrowRight"),
		OverlayResizeUp:    bind("Shift+ArrowUp"),
		OverlayResizeDown:  bind("Shift+ArrowDown"),
		OverlayResizeLeft:  bind("Shift+ArrowLeft"),
		OverlayResizeRight: bind("Shift+ArrowRight"),
		AgentShortcuts:     map[string]string{},
	}
}

// DefaultConfig returns the configuration used when nothing is persisted.
func DefaultConfig(p Platform) AppConfig {
	return AppConfig{
		Shortcuts:     DefaultShortcuts(p),
		ConnectionURL: StringPtr(DefaultConnectionURL),
	}
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

// Clone returns a deep copy so callers never share pointers or maps with the store.
func (c AppConfig) Clone() AppConfig {
	return AppConfig{
		Shortcuts:        c.Shortcuts.Clone(),
		ConnectionURL:    clonePtr(c.ConnectionURL),
		ConnectionAPIKey: clonePtr(c.ConnectionAPIKey),
	}
}

// Clone returns a deep copy of the shortcut configuration.
func (s ShortcutConfig) Clone() ShortcutConfig {
	out := ShortcutConfig{
		OverlayToggle:      clonePtr(s.OverlayToggle),
		OverlayMoveUp:      clonePtr(s.OverlayMoveUp),
		OverlayMoveDown:    clonePtr(s.OverlayMoveDown),
		OverlayMoveLeft:    clonePtr(s.OverlayMoveLeft),
		OverlayMoveRight:   clonePtr(s.OverlayMoveRight),
		OverlayResizeUp:    clonePtr(s.OverlayResizeUp),
		OverlayResizeDown:  clonePtr(s.OverlayResizeDown),
		OverlayResizeLeft:  clonePtr(s.OverlayResizeLeft),
		OverlayResizeRight: clonePtr(s.OverlayResizeRight),
		AgentShortcuts:     make(map[string]string, len(s.AgentShortcuts)),
	}
	maps.Copy(out.AgentShortcuts, s.AgentShortcuts)
	return out
}

// String returns an indented JSON representation of the config.
func (c AppConfig) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
