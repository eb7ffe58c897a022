package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"github.com/observerai/companion/pkg/shortcut"
)

var (
	// ErrNoHandler is returned by Register before Install.
	ErrNoHandler = errors.New("no handler installed")
	// ErrChordTaken is returned when a chord is already registered.
	ErrChordTaken = errors.New("chord already registered")
	// ErrHostClosed is returned after Close.
	ErrHostClosed = errors.New("hotkey host closed")
)

var _ Host = (*MemoryHost)(nil)

// MemoryHost is an in-process Host. It behaves like an OS facility that
// rejects duplicate chords, and lets callers simulate key presses.
type MemoryHost struct {
	mu      sync.Mutex
	handler Handler
	chords  map[shortcut.Chord]struct{}
	closed  bool
}

// NewMemoryHost creates an empty in-process host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		chords: make(map[shortcut.Chord]struct{}),
	}
}

func (h *MemoryHost) Install(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHostClosed
	}
	h.handler = handler
	return nil
}

func (h *MemoryHost) Register(c shortcut.Chord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHostClosed
	}
	if h.handler == nil {
		return ErrNoHandler
	}
	if _, taken := h.chords[c]; taken {
		return fmt.Errorf("%w: %s", ErrChordTaken, c)
	}
	h.chords[c] = struct{}{}
	return nil
}

func (h *MemoryHost) Unregister(c shortcut.Chord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.chords[c]; !ok {
		return fmt.Errorf("chord not registered: %s", c)
	}
	delete(h.chords, c)
	return nil
}

func (h *MemoryHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.chords = make(map[shortcut.Chord]struct{})
	h.handler = nil
	return nil
}

// Registered reports whether c is currently registered.
func (h *MemoryHost) Registered(c shortcut.Chord) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.chords[c]
	return ok
}

// Press delivers a Pressed event for c. It returns false if c is not registered.
func (h *MemoryHost) Press(c shortcut.Chord) bool {
	return h.emit(Event{Chord: c, State: Pressed})
}

// Release delivers a Released event for c.
func (h *MemoryHost) Release(c shortcut.Chord) bool {
	return h.emit(Event{Chord: c, State: Released})
}

func (h *MemoryHost) emit(ev Event) bool {
	h.mu.Lock()
	handler := h.handler
	_, ok := h.chords[ev.Chord]
	h.mu.Unlock()

	if !ok || handler == nil {
		return false
	}
	handler(ev)
	return true
}
