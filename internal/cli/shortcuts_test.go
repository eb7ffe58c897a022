package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortcutsCheck(t *testing.T) {
	t.Run("platform defaults", func(t *testing.T) {
		output, err := execute(t, "shortcuts", "check", "--defaults", "--data-dir", t.TempDir())
		require.NoError(t, err)

		assert.Contains(t, output, "Shortcuts from defaults for")
		assert.Contains(t, output, "-> overlay toggle")
		assert.Contains(t, output, "9 valid, 0 invalid")
	})

	t.Run("settings file", func(t *testing.T) {
		dir := t.TempDir()

		_, err := execute(t, "config", "set-shortcut", "agent:agentA", "Ctrl+1", "--data-dir", dir)
		require.NoError(t, err)

		output, err := execute(t, "shortcuts", "check", "--defaults=false", "--data-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, output, "Ctrl+1 -> toggle agent agentA")
		assert.Contains(t, output, "10 valid, 0 invalid")
	})
}
