package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/observerai/companion/internal/metrics"
	"github.com/observerai/companion/internal/observability"
	"github.com/observerai/companion/internal/tracing"
	"github.com/observerai/companion/pkg/hotkey"
	"github.com/observerai/companion/pkg/overlay"
	"github.com/observerai/companion/pkg/shortcut"
	"github.com/rs/zerolog"
)

const (
	// MoveStep is how far one move nudges the overlay, in physical pixels.
	MoveStep = 50
	// ResizeStep is how much one resize changes a dimension.
	ResizeStep = 50
	// MinDimension is the smallest width or height a resize produces.
	MinDimension = 200

	// ToggleAction is the command sent to an agent by its shortcut.
	ToggleAction = "toggle"
)

// ErrNoOverlay is returned when an overlay action fires with no overlay attached.
var ErrNoOverlay = errors.New("overlay window not available")

// GeometryError wraps a failed overlay window operation.
type GeometryError struct {
	Op  string
	Err error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("overlay %s failed: %v", e.Op, e.Err)
}

func (e *GeometryError) Unwrap() error {
	return e.Err
}

// Overlay is the window surface the overlay actions act on.
type Overlay interface {
	IsVisible() (bool, error)
	Show() error
	Hide() error
	OuterPosition() (overlay.Position, error)
	SetPosition(p overlay.Position) error
	InnerSize() (overlay.Size, error)
	SetSize(s overlay.Size) error
	SetIgnoreCursorEvents(ignore bool) error
}

// Notifier is told about every recognized press before its effect runs, so
// the UI can give immediate feedback.
type Notifier interface {
	ShortcutFired(shortcut string)
}

// CommandSubmitter delivers agent commands.
type CommandSubmitter interface {
	Submit(agentID, action string) error
}

// Lookup resolves a chord to its registered binding.
type Lookup interface {
	Lookup(c shortcut.Chord) (hotkey.Binding, bool)
}

// Config holds the dispatcher's collaborators. Overlay, Notifier, Metrics and
// Audit may be nil.
type Config struct {
	Lookup   Lookup
	Overlay  Overlay
	Notifier Notifier
	Commands CommandSubmitter
	Metrics  *metrics.Metrics
	Audit    *observability.AuditLogger
	Logger   zerolog.Logger
}

// Dispatcher turns key events into effects. It holds no state of its own
// beyond its collaborators, so it is safe to call from any goroutine.
type Dispatcher struct {
	lookup   Lookup
	overlay  Overlay
	notifier Notifier
	commands CommandSubmitter
	metrics  *metrics.Metrics
	audit    *observability.AuditLogger
	logger   zerolog.Logger
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		lookup:   cfg.Lookup,
		overlay:  cfg.Overlay,
		notifier: cfg.Notifier,
		commands: cfg.Commands,
		metrics:  cfg.Metrics,
		audit:    cfg.Audit,
		logger:   cfg.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

// HandleEvent is the hotkey.Handler installed with the registry. Releases
// and unknown chords are ignored. Effects are best effort: failures are
// logged and the event is dropped.
func (d *Dispatcher) HandleEvent(ev hotkey.Event) {
	if ev.State != hotkey.Pressed {
		return
	}

	binding, ok := d.lookup.Lookup(ev.Chord)
	if !ok {
		d.logger.Debug().Str("chord", ev.Chord.String()).Msg("Ignoring unregistered chord")
		return
	}

	ctx := tracing.NewShortcutContext(context.Background(), binding.Shortcut)

	if d.notifier != nil {
		d.notifier.ShortcutFired(binding.Shortcut)
	}

	_ = d.Execute(ctx, binding.Action)
}

// Execute performs action and returns the error that was logged, if any.
func (d *Dispatcher) Execute(ctx context.Context, action hotkey.Action) error {
	logger := tracing.LoggerFromContext(ctx, d.logger)
	d.metrics.RecordShortcutPress(action.Kind())

	exec := &executor{d: d, logger: logger}
	action.Accept(exec)

	if exec.err != nil {
		d.metrics.RecordShortcutError(action.Kind())
		logger.Error().Err(exec.err).Str("action", action.Describe()).Msg("Shortcut action failed")
	}
	d.audit.RecordShortcut(ctx, action.Kind(), exec.err)
	return exec.err
}

// executor runs one action. Its visitor methods are the exhaustive switch
// over hotkey.Action.
type executor struct {
	d      *Dispatcher
	logger zerolog.Logger
	err    error
}

func (e *executor) VisitOverlayToggle(hotkey.OverlayToggle) {
	w := e.d.overlay
	if w == nil {
		e.err = ErrNoOverlay
		return
	}

	visible, err := w.IsVisible()
	if err != nil {
		e.err = &GeometryError{Op: "visibility check", Err: err}
		return
	}

	if visible {
		if err := w.Hide(); err != nil {
			e.err = &GeometryError{Op: "hide", Err: err}
			return
		}
		e.logger.Info().Msg("Overlay hidden via toggle shortcut")
		return
	}

	if err := w.Show(); err != nil {
		e.err = &GeometryError{Op: "show", Err: err}
		return
	}
	e.logger.Info().Msg("Overlay shown via toggle shortcut")
}

func (e *executor) VisitOverlayMove(a hotkey.OverlayMove) {
	w := e.d.overlay
	if w == nil {
		e.err = ErrNoOverlay
		return
	}

	pos, err := w.OuterPosition()
	if err != nil {
		e.err = &GeometryError{Op: "position read", Err: err}
		return
	}

	next := Move(pos, a.Direction)
	if err := w.SetPosition(next); err != nil {
		e.err = &GeometryError{Op: "move", Err: err}
		return
	}

	e.logger.Info().Str("direction", a.Direction.String()).Int("x", next.X).Int("y", next.Y).Msg("Overlay moved")
	e.ensureClickThrough(w)
}

func (e *executor) VisitOverlayResize(a hotkey.OverlayResize) {
	w := e.d.overlay
	if w == nil {
		e.err = ErrNoOverlay
		return
	}

	size, err := w.InnerSize()
	if err != nil {
		e.err = &GeometryError{Op: "size read", Err: err}
		return
	}

	next := Resize(size, a.Direction)
	if err := w.SetSize(next); err != nil {
		e.err = &GeometryError{Op: "resize", Err: err}
		return
	}

	e.logger.Info().Str("direction", a.Direction.String()).Int("width", next.Width).Int("height", next.Height).Msg("Overlay resized")
	e.ensureClickThrough(w)
}

func (e *executor) VisitAgentToggle(a hotkey.AgentToggle) {
	if e.d.commands == nil {
		e.err = fmt.Errorf("no command bus attached")
		return
	}

	e.logger.Info().Str("agent_id", a.AgentID).Msg("Agent hotkey pressed")
	if err := e.d.commands.Submit(a.AgentID, ToggleAction); err != nil {
		e.err = fmt.Errorf("failed to submit command for agent %s: %w", a.AgentID, err)
	}
}

// ensureClickThrough re-asserts cursor passthrough after a geometry change.
// Some platforms reset it when the window moves.
func (e *executor) ensureClickThrough(w Overlay) {
	if err := w.SetIgnoreCursorEvents(true); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to re-enable overlay click-through")
	}
}

// Move returns pos nudged one step in direction.
func Move(pos overlay.Position, d hotkey.Direction) overlay.Position {
	switch d {
	case hotkey.Up:
		pos.Y -= MoveStep
	case hotkey.Down:
		pos.Y += MoveStep
	case hotkey.Left:
		pos.X -= MoveStep
	case hotkey.Right:
		pos.X += MoveStep
	}
	return pos
}

// Resize returns size changed one step in direction. Up and Down change the
// height, Left and Right the width; the changed dimension never goes below
// MinDimension.
func Resize(size overlay.Size, d hotkey.Direction) overlay.Size {
	switch d {
	case hotkey.Up:
		size.Height = max(size.Height-ResizeStep, MinDimension)
	case hotkey.Down:
		size.Height = max(size.Height+ResizeStep, MinDimension)
	case hotkey.Left:
		size.Width = max(size.Width-ResizeStep, MinDimension)
	case hotkey.Right:
		size.Width = max(size.Width+ResizeStep, MinDimension)
	}
	return size
}
