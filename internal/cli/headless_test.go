//go:build !hotkeys

package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithoutDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")

	output, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "observer-companion")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	runCmd.SetContext(ctx)
	defer runCmd.SetContext(context.Background())

	// Shortcuts stay requested; the missing backend only disables them.
	_, err = execute(t, "run", "--data-dir", t.TempDir(), "--listen", "127.0.0.1:0", "--hotkeys=true")
	assert.NoError(t, err)
}
