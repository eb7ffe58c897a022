//go:build !hotkeys

package native

import (
	"testing"

	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/pkg/hotkey"
	"github.com/observerai/companion/pkg/shortcut"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostWithoutBackend(t *testing.T) {
	h := New(zerolog.Nop())

	err := h.Install(func(hotkey.Event) {})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, h.Register(shortcut.MustParse("Ctrl+B")), ErrUnsupported)
	assert.NoError(t, h.Close())
}

func TestRegistryDegradesWithoutBackend(t *testing.T) {
	registry := hotkey.NewRegistry(New(zerolog.Nop()), zerolog.Nop())

	_, err := registry.RegisterAll(config.DefaultConfig(config.CurrentPlatform()).Shortcuts, func(hotkey.Event) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, hotkey.ErrInstallHandler)
	assert.False(t, registry.Installed())
	assert.Equal(t, 0, registry.Count())
}
