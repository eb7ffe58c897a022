package hotkey

import (
	"sort"

	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/pkg/shortcut"
)

// Binding is one configured shortcut resolved to a chord and its action.
type Binding struct {
	Chord    shortcut.Chord
	Shortcut string
	Action   Action
}

// Line renders the binding as a registration report line.
func (b Binding) Line() string {
	return b.Shortcut + " -> " + b.Action.Describe()
}

// Skipped is a configured shortcut that is not active, with the reason.
type Skipped struct {
	Shortcut string `json:"shortcut"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
}

// Bindings resolves a shortcut configuration into bindings. Overlay bindings
// come first in a fixed order, followed by agent bindings sorted by agent id.
// Unset and empty entries are ignored; strings that do not parse are returned
// in skipped.
func Bindings(cfg config.ShortcutConfig) (bindings []Binding, skipped []Skipped) {
	add := func(s *string, action Action) {
		if s == nil || *s == "" {
			return
		}
		chord, err := shortcut.Parse(*s)
		if err != nil {
			skipped = append(skipped, Skipped{
				Shortcut: *s,
				Action:   action.Describe(),
				Reason:   err.Error(),
			})
			return
		}
		bindings = append(bindings, Binding{Chord: chord, Shortcut: *s, Action: action})
	}

	add(cfg.OverlayToggle, OverlayToggle{})
	add(cfg.OverlayMoveUp, OverlayMove{Direction: Up})
	add(cfg.OverlayMoveDown, OverlayMove{Direction: Down})
	add(cfg.OverlayMoveLeft, OverlayMove{Direction: Left})
	add(cfg.OverlayMoveRight, OverlayMove{Direction: Right})
	add(cfg.OverlayResizeUp, OverlayResize{Direction: Up})
	add(cfg.OverlayResizeDown, OverlayResize{Direction: Down})
	add(cfg.OverlayResizeLeft, OverlayResize{Direction: Left})
	add(cfg.OverlayResizeRight, OverlayResize{Direction: Right})

	agentIDs := make([]string, 0, len(cfg.AgentShortcuts))
	for id := range cfg.AgentShortcuts {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)
	for _, id := range agentIDs {
		s := cfg.AgentShortcuts[id]
		add(&s, AgentToggle{AgentID: id})
	}

	return bindings, skipped
}

// Validate returns the configured shortcuts that do not parse.
func Validate(cfg config.ShortcutConfig) []Skipped {
	_, skipped := Bindings(cfg)
	return skipped
}
