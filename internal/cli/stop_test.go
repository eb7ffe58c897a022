package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		output, err := execute(t, "stop", "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "Stop the running companion")
		assert.Contains(t, output, "timeout")
	})

	t.Run("nothing to stop", func(t *testing.T) {
		_, err := execute(t, "stop", "--data-dir", t.TempDir())
		assert.ErrorIs(t, err, errNotRunning)
	})
}

func TestRunningPID(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := runningPID(filepath.Join(dir, "missing.pid"))
		assert.ErrorIs(t, err, errNotRunning)
	})

	t.Run("dead process", func(t *testing.T) {
		path := filepath.Join(dir, "dead.pid")
		require.NoError(t, os.WriteFile(path, []byte("999999999"), 0644))
		_, err := runningPID(path)
		assert.ErrorIs(t, err, errNotRunning)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.pid")
		require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
		_, err := runningPID(path)
		require.Error(t, err)
		assert.NotErrorIs(t, err, errNotRunning)
	})
}
