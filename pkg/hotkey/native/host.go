//go:build hotkeys && (linux || darwin || windows)

package native

import (
	"fmt"
	"sync"

	"github.com/observerai/companion/pkg/hotkey"
	"github.com/observerai/companion/pkg/shortcut"
	"github.com/rs/zerolog"
	xhotkey "golang.design/x/hotkey"
)

var _ hotkey.Host = (*Host)(nil)

type registration struct {
	hk   *xhotkey.Hotkey
	stop chan struct{}
	done chan struct{}
}

// Host is the OS-backed hotkey.Host. Each registered chord gets one goroutine
// that forwards key transitions into the single installed handler.
type Host struct {
	logger zerolog.Logger

	mu      sync.Mutex
	handler hotkey.Handler
	active  map[shortcut.Chord]*registration
	closed  bool
}

// New creates a native host.
func New(logger zerolog.Logger) *Host {
	return &Host{
		logger: logger.With().Str("component", "native-hotkeys").Logger(),
		active: make(map[shortcut.Chord]*registration),
	}
}

func (h *Host) Install(handler hotkey.Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("hotkey host closed")
	}
	h.handler = handler
	return nil
}

func (h *Host) Register(c shortcut.Chord) error {
	mods, key, err := convert(c)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("hotkey host closed")
	}
	if h.handler == nil {
		h.mu.Unlock()
		return fmt.Errorf("no handler installed")
	}
	if _, exists := h.active[c]; exists {
		h.mu.Unlock()
		return fmt.Errorf("chord already registered: %s", c)
	}
	handler := h.handler
	h.mu.Unlock()

	hk := xhotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register %s: %w", c, err)
	}

	reg := &registration{
		hk:   hk,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if _, exists := h.active[c]; exists || h.closed {
		h.mu.Unlock()
		_ = hk.Unregister()
		return fmt.Errorf("chord already registered: %s", c)
	}
	h.active[c] = reg
	h.mu.Unlock()

	go h.forward(c, reg, handler)
	return nil
}

func (h *Host) forward(c shortcut.Chord, reg *registration, handler hotkey.Handler) {
	defer close(reg.done)

	down := reg.hk.Keydown()
	up := reg.hk.Keyup()
	for {
		select {
		case <-reg.stop:
			return
		case _, ok := <-down:
			if !ok {
				return
			}
			handler(hotkey.Event{Chord: c, State: hotkey.Pressed})
		case _, ok := <-up:
			if !ok {
				return
			}
			handler(hotkey.Event{Chord: c, State: hotkey.Released})
		}
	}
}

func (h *Host) Unregister(c shortcut.Chord) error {
	h.mu.Lock()
	reg, ok := h.active[c]
	if ok {
		delete(h.active, c)
	}
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("chord not registered: %s", c)
	}
	return h.release(c, reg)
}

func (h *Host) release(c shortcut.Chord, reg *registration) error {
	close(reg.stop)
	<-reg.done
	if err := reg.hk.Unregister(); err != nil {
		return fmt.Errorf("failed to unregister %s: %w", c, err)
	}
	return nil
}

func (h *Host) Close() error {
	h.mu.Lock()
	active := h.active
	h.active = make(map[shortcut.Chord]*registration)
	h.closed = true
	h.handler = nil
	h.mu.Unlock()

	for c, reg := range active {
		if err := h.release(c, reg); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to release shortcut")
		}
	}
	return nil
}

func convert(c shortcut.Chord) ([]xhotkey.Modifier, xhotkey.Key, error) {
	key, ok := keyMap[c.Key]
	if !ok {
		return nil, 0, fmt.Errorf("key %s is not supported on this platform", c.Key)
	}

	mods := make([]xhotkey.Modifier, 0, 4)
	for _, m := range c.Modifiers.List() {
		mod, ok := modifierMap[m]
		if !ok {
			return nil, 0, fmt.Errorf("modifier %s is not supported on this platform", m)
		}
		mods = append(mods, mod)
	}
	return mods, key, nil
}

var commonKeys = map[shortcut.Key]xhotkey.Key{
	shortcut.KeyA: xhotkey.KeyA, shortcut.KeyB: xhotkey.KeyB, shortcut.KeyC: xhotkey.KeyC,
	shortcut.KeyD: xhotkey.KeyD, shortcut.KeyE: xhotkey.KeyE, shortcut.KeyF: xhotkey.KeyF,
	shortcut.KeyG: xhotkey.KeyG, shortcut.KeyH: xhotkey.KeyH, shortcut.KeyI: xhotkey.KeyI,
	shortcut.KeyJ: xhotkey.KeyJ, shortcut.KeyK: xhotkey.KeyK, shortcut.KeyL: xhotkey.KeyL,
	shortcut.KeyM: xhotkey.KeyM, shortcut.KeyN: xhotkey.KeyN, shortcut.KeyO: xhotkey.KeyO,
	shortcut.KeyP: xhotkey.KeyP, shortcut.KeyQ: xhotkey.KeyQ, shortcut.KeyR: xhotkey.KeyR,
	shortcut.KeyS: xhotkey.KeyS, shortcut.KeyT: xhotkey.KeyT, shortcut.KeyU: xhotkey.KeyU,
	shortcut.KeyV: xhotkey.KeyV, shortcut.KeyW: xhotkey.KeyW, shortcut.KeyX: xhotkey.KeyX,
	shortcut.KeyY: xhotkey.KeyY, shortcut.KeyZ: xhotkey.KeyZ,

	shortcut.Digit0: xhotkey.Key0, shortcut.Digit1: xhotkey.Key1, shortcut.Digit2: xhotkey.Key2,
	shortcut.Digit3: xhotkey.Key3, shortcut.Digit4: xhotkey.Key4, shortcut.Digit5: xhotkey.Key5,
	shortcut.Digit6: xhotkey.Key6, shortcut.Digit7: xhotkey.Key7, shortcut.Digit8: xhotkey.Key8,
	shortcut.Digit9: xhotkey.Key9,

	shortcut.KeyF1: xhotkey.KeyF1, shortcut.KeyF2: xhotkey.KeyF2, shortcut.KeyF3: xhotkey.KeyF3,
	shortcut.KeyF4: xhotkey.KeyF4, shortcut.KeyF5: xhotkey.KeyF5, shortcut.KeyF6: xhotkey.KeyF6,
	shortcut.KeyF7: xhotkey.KeyF7, shortcut.KeyF8: xhotkey.KeyF8, shortcut.KeyF9: xhotkey.KeyF9,
	shortcut.KeyF10: xhotkey.KeyF10, shortcut.KeyF11: xhotkey.KeyF11, shortcut.KeyF12: xhotkey.KeyF12,

	shortcut.KeyArrowUp:    xhotkey.KeyUp,
	shortcut.KeyArrowDown:  xhotkey.KeyDown,
	shortcut.KeyArrowLeft:  xhotkey.KeyLeft,
	shortcut.KeyArrowRight: xhotkey.KeyRight,

	shortcut.KeySpace:  xhotkey.KeySpace,
	shortcut.KeyEnter:  xhotkey.KeyReturn,
	shortcut.KeyTab:    xhotkey.KeyTab,
	shortcut.KeyEscape: xhotkey.KeyEscape,
}

// keyMap is commonKeys plus the platform's raw codes for keys the hotkey
// library has no constant for.
var keyMap = func() map[shortcut.Key]xhotkey.Key {
	m := make(map[shortcut.Key]xhotkey.Key, len(commonKeys)+len(rawKeys))
	for k, v := range commonKeys {
		m[k] = v
	}
	for k, v := range rawKeys {
		m[k] = v
	}
	return m
}()
