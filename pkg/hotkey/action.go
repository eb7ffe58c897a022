package hotkey

import "fmt"

// Direction is one of the four arrow directions used by move and resize.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Action is the closed set of things a shortcut can do. The set is sealed by
// the unexported method; consumers switch over it with an ActionVisitor so
// that a new variant fails to compile until every consumer handles it.
type Action interface {
	Accept(v ActionVisitor)
	// Describe renders the action for registration reports.
	Describe() string
	// Kind is a stable low-cardinality name used for metrics labels.
	Kind() string

	isAction()
}

// ActionVisitor handles each Action variant.
type ActionVisitor interface {
	VisitOverlayToggle(a OverlayToggle)
	VisitOverlayMove(a OverlayMove)
	VisitOverlayResize(a OverlayResize)
	VisitAgentToggle(a AgentToggle)
}

// OverlayToggle shows or hides the overlay.
type OverlayToggle struct{}

// OverlayMove nudges the overlay by a fixed step.
type OverlayMove struct {
	Direction Direction
}

// OverlayResize grows or shrinks the overlay by a fixed step.
type OverlayResize struct {
	Direction Direction
}

// AgentToggle asks an automation agent to toggle itself.
type AgentToggle struct {
	AgentID string
}

func (a OverlayToggle) Accept(v ActionVisitor) { v.VisitOverlayToggle(a) }
func (a OverlayMove) Accept(v ActionVisitor)   { v.VisitOverlayMove(a) }
func (a OverlayResize) Accept(v ActionVisitor) { v.VisitOverlayResize(a) }
func (a AgentToggle) Accept(v ActionVisitor)   { v.VisitAgentToggle(a) }

func (OverlayToggle) Describe() string   { return "overlay toggle" }
func (a OverlayMove) Describe() string   { return "overlay move " + a.Direction.String() }
func (a OverlayResize) Describe() string { return "overlay resize " + a.Direction.String() }
func (a AgentToggle) Describe() string   { return "toggle agent " + a.AgentID }

func (OverlayToggle) Kind() string { return "overlay_toggle" }
func (OverlayMove) Kind() string   { return "overlay_move" }
func (OverlayResize) Kind() string { return "overlay_resize" }
func (AgentToggle) Kind() string   { return "agent_toggle" }

func (OverlayToggle) isAction() {}
func (OverlayMove) isAction()   {}
func (OverlayResize) isAction() {}
func (AgentToggle) isAction()   {}
