package overlay

import (
	"errors"
	"sync"
)

// ErrInvalidSize is returned for zero or negative dimensions.
var ErrInvalidSize = errors.New("invalid overlay size")

// Position is a physical screen position of the window's outer frame.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a physical size of the window's inner area.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// State is a snapshot of the overlay window.
type State struct {
	Position     Position `json:"position"`
	Size         Size     `json:"size"`
	Visible      bool     `json:"visible"`
	ClickThrough bool     `json:"click_through"`
}

// DefaultState is how the overlay starts: 700x700 at (50,50), hidden and
// ignoring cursor events.
func DefaultState() State {
	return State{
		Position:     Position{X: 50, Y: 50},
		Size:         Size{Width: 700, Height: 700},
		Visible:      false,
		ClickThrough: true,
	}
}

// Window is the in-memory overlay model. The GUI shell mirrors it through
// the observer set with OnChange.
type Window struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewWindow creates a window in the given state.
func NewWindow(initial State) *Window {
	return &Window{state: initial}
}

// OnChange sets the observer called after every change. It is called outside
// the window lock with the new state.
func (w *Window) OnChange(fn func(State)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// State returns the current snapshot.
func (w *Window) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Window) IsVisible() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Visible, nil
}

func (w *Window) Show() error {
	w.update(func(s *State) { s.Visible = true })
	return nil
}

func (w *Window) Hide() error {
	w.update(func(s *State) { s.Visible = false })
	return nil
}

func (w *Window) OuterPosition() (Position, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Position, nil
}

func (w *Window) SetPosition(p Position) error {
	w.update(func(s *State) { s.Position = p })
	return nil
}

func (w *Window) InnerSize() (Size, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Size, nil
}

func (w *Window) SetSize(sz Size) error {
	if sz.Width <= 0 || sz.Height <= 0 {
		return ErrInvalidSize
	}
	w.update(func(s *State) { s.Size = sz })
	return nil
}

func (w *Window) SetIgnoreCursorEvents(ignore bool) error {
	w.update(func(s *State) { s.ClickThrough = ignore })
	return nil
}

func (w *Window) update(fn func(s *State)) {
	w.mu.Lock()
	before := w.state
	fn(&w.state)
	after := w.state
	notify := w.onChange
	w.mu.Unlock()

	if notify != nil && after != before {
		notify(after)
	}
}
