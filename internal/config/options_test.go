package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsLoader(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("OBSERVER_DATA_DIR", dir)

		opts, err := NewOptionsLoader().Load()

		require.NoError(t, err)
		assert.Equal(t, dir, opts.DataDir)
		assert.Equal(t, filepath.Join(dir, SettingsFileName), opts.SettingsFile)
		assert.Equal(t, filepath.Join(dir, "companion.log"), opts.Log.File)
		assert.Equal(t, DefaultListen, opts.Listen)
		assert.Equal(t, "info", opts.Log.Level)
		assert.True(t, opts.Log.Redaction)
		assert.Equal(t, DefaultStreamBacklog, opts.Stream.Backlog)
		assert.True(t, opts.Hotkeys.Enabled)
		assert.Equal(t, filepath.Join(dir, "companion.pid"), opts.PIDFile())
	})

	t.Run("options file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("OBSERVER_DATA_DIR", dir)
		content := `{
			"listen": "127.0.0.1:4000",
			"log": {"level": "debug", "pretty": false},
			"stream": {"backlog": 10},
			"hotkeys": {"enabled": false}
		}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, OptionsFileName), []byte(content), 0644))

		opts, err := NewOptionsLoader().Load()

		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:4000", opts.Listen)
		assert.Equal(t, "debug", opts.Log.Level)
		assert.False(t, opts.Log.Pretty)
		assert.Equal(t, 10, opts.Stream.Backlog)
		assert.False(t, opts.Hotkeys.Enabled)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("OBSERVER_DATA_DIR", dir)
		t.Setenv("OBSERVER_LISTEN", "127.0.0.1:5000")
		t.Setenv("OBSERVER_LOG_LEVEL", "warn")
		require.NoError(t, os.WriteFile(filepath.Join(dir, OptionsFileName), []byte(`{"listen": "127.0.0.1:4000"}`), 0644))

		opts, err := NewOptionsLoader().Load()

		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:5000", opts.Listen)
		assert.Equal(t, "warn", opts.Log.Level)
	})

	t.Run("explicit settings file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("OBSERVER_DATA_DIR", dir)
		t.Setenv("OBSERVER_SETTINGS_FILE", "/tmp/elsewhere.json")

		opts, err := NewOptionsLoader().Load()

		require.NoError(t, err)
		assert.Equal(t, "/tmp/elsewhere.json", opts.SettingsFile)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("OBSERVER_DATA_DIR", dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, OptionsFileName), []byte(`{"log": {"level": "loud"}}`), 0644))

		_, err := NewOptionsLoader().Load()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("malformed options file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("OBSERVER_DATA_DIR", dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, OptionsFileName), []byte("{"), 0644))

		_, err := NewOptionsLoader().Load()

		assert.Error(t, err)
	})
}
