package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		output, err := execute(t, "run", "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "Run the companion in the foreground")
		assert.Contains(t, output, "hotkeys")
	})

	t.Run("runs until the context ends", func(t *testing.T) {
		dir := t.TempDir()

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		// Subcommands keep the first context they were given.
		runCmd.SetContext(ctx)
		defer runCmd.SetContext(context.Background())

		_, err := execute(t, "run", "--data-dir", dir, "--listen", "127.0.0.1:0", "--hotkeys=false")
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(dir, "companion.pid"))
		assert.True(t, os.IsNotExist(err))

		_, err = os.Stat(filepath.Join(dir, "companion.log"))
		assert.NoError(t, err)
	})
}
