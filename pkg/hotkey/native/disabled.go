//go:build !hotkeys || !(linux || darwin || windows)

package native

import (
	"errors"

	"github.com/observerai/companion/pkg/hotkey"
	"github.com/observerai/companion/pkg/shortcut"
	"github.com/rs/zerolog"
)

// ErrUnsupported is returned by Install when this binary carries no hotkey
// backend.
var ErrUnsupported = errors.New("global shortcuts are not available in this build")

var _ hotkey.Host = (*Host)(nil)

// Host refuses to install a handler, which leaves the shortcut subsystem
// disabled while the rest of the companion keeps running.
type Host struct{}

// New creates a host that always fails to install.
func New(zerolog.Logger) *Host {
	return &Host{}
}

func (h *Host) Install(hotkey.Handler) error    { return ErrUnsupported }
func (h *Host) Register(shortcut.Chord) error   { return ErrUnsupported }
func (h *Host) Unregister(shortcut.Chord) error { return ErrUnsupported }
func (h *Host) Close() error                    { return nil }
