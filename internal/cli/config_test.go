package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/observerai/companion/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSettings(t *testing.T, dir string) config.AppConfig {
	t.Helper()
	store := config.NewStore(filepath.Join(dir, config.SettingsFileName), config.CurrentPlatform(), zerolog.Nop())
	return store.Load()
}

func TestConfigPath(t *testing.T) {
	dir := t.TempDir()

	output, err := execute(t, "config", "path", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, config.SettingsFileName), strings.TrimSpace(output))
}

func TestConfigSetURL(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid url is saved trimmed", func(t *testing.T) {
		output, err := execute(t, "config", "set-url", " http://10.0.0.5:11434 ", "--data-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, output, "Connection URL set to http://10.0.0.5:11434")

		cfg := loadSettings(t, dir)
		require.NotNil(t, cfg.ConnectionURL)
		assert.Equal(t, "http://10.0.0.5:11434", *cfg.ConnectionURL)
	})

	t.Run("invalid url is rejected", func(t *testing.T) {
		_, err := execute(t, "config", "set-url", "ftp://host", "--data-dir", dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheme")

		cfg := loadSettings(t, dir)
		assert.Equal(t, "http://10.0.0.5:11434", *cfg.ConnectionURL)
	})

	t.Run("no argument clears it", func(t *testing.T) {
		output, err := execute(t, "config", "set-url", "--data-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, output, "cleared")
		assert.Nil(t, loadSettings(t, dir).ConnectionURL)
	})
}

func TestConfigAPIKeyIsRedacted(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "config", "set-api-key", "sk-very-secret-value", "--data-dir", dir)
	require.NoError(t, err)

	cfg := loadSettings(t, dir)
	require.NotNil(t, cfg.ConnectionAPIKey)
	assert.Equal(t, "sk-very-secret-value", *cfg.ConnectionAPIKey)

	output, err := execute(t, "config", "show", "--data-dir", dir)
	require.NoError(t, err)
	assert.NotContains(t, output, "sk-very-secret-value")

	var view settingsView
	require.NoError(t, json.Unmarshal([]byte(output), &view))
	assert.True(t, view.HasAPIKey)
	assert.Equal(t, filepath.Join(dir, config.SettingsFileName), view.SettingsFile)
	assert.Equal(t, config.CurrentPlatform(), view.Platform)
	assert.Empty(t, view.Problems)

	_, err = execute(t, "config", "set-api-key", "--data-dir", dir)
	require.NoError(t, err)
	assert.Nil(t, loadSettings(t, dir).ConnectionAPIKey)
}

func TestConfigSetShortcut(t *testing.T) {
	dir := t.TempDir()

	t.Run("overlay binding", func(t *testing.T) {
		output, err := execute(t, "config", "set-shortcut", "overlay_toggle", "Ctrl+Shift+O", "--data-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, output, "overlay_toggle bound to Ctrl+Shift+O")
		assert.Contains(t, output, restartNotice)

		cfg := loadSettings(t, dir)
		require.NotNil(t, cfg.Shortcuts.OverlayToggle)
		assert.Equal(t, "Ctrl+Shift+O", *cfg.Shortcuts.OverlayToggle)
	})

	t.Run("agent binding", func(t *testing.T) {
		_, err := execute(t, "config", "set-shortcut", "agent:agentA", "Ctrl+1", "--data-dir", dir)
		require.NoError(t, err)
		assert.Equal(t, "Ctrl+1", loadSettings(t, dir).Shortcuts.AgentShortcuts["agentA"])

		_, err = execute(t, "config", "set-shortcut", "agent:agentA", "--data-dir", dir)
		require.NoError(t, err)
		assert.NotContains(t, loadSettings(t, dir).Shortcuts.AgentShortcuts, "agentA")
	})

	t.Run("unbinding an overlay action", func(t *testing.T) {
		_, err := execute(t, "config", "set-shortcut", "overlay_move_up", "--data-dir", dir)
		require.NoError(t, err)
		assert.Nil(t, loadSettings(t, dir).Shortcuts.OverlayMoveUp)
	})

	t.Run("unparsable shortcut", func(t *testing.T) {
		_, err := execute(t, "config", "set-shortcut", "overlay_toggle", "Hyper+O", "--data-dir", dir)
		require.Error(t, err)
		assert.Equal(t, "Ctrl+Shift+O", *loadSettings(t, dir).Shortcuts.OverlayToggle)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := execute(t, "config", "set-shortcut", "overlay_spin", "Ctrl+S", "--data-dir", dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown shortcut")
	})
}

func TestSetShortcut(t *testing.T) {
	sc := config.ShortcutConfig{}

	require.NoError(t, setShortcut(&sc, "overlay_resize_right", "Alt+Shift+ArrowRight"))
	require.NotNil(t, sc.OverlayResizeRight)
	assert.Equal(t, "Alt+Shift+ArrowRight", *sc.OverlayResizeRight)

	require.NoError(t, setShortcut(&sc, "agent:beta", "Alt+2"))
	assert.Equal(t, map[string]string{"beta": "Alt+2"}, sc.AgentShortcuts)

	assert.Error(t, setShortcut(&sc, "agent:", "Alt+3"))
}
