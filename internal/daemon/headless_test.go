//go:build !hotkeys

package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemonWithoutHotkeyBackend(t *testing.T) {
	t.Setenv("DISPLAY", "")

	opts := testOptions(t)
	opts.Hotkeys.Enabled = true

	d := createTestDaemon(t, opts)
	require.NoError(t, d.Start())
	defer d.Stop()

	assert.True(t, d.Status().Running)
	assert.False(t, d.Registry().Installed())
	assert.Equal(t, 0, d.Registry().Count())

	health := getHealth(t, d)
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.ShortcutsEnabled)
	assert.Equal(t, 0, health.Shortcuts)
}
