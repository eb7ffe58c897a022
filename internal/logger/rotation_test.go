package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("create directory if not exists", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "subdir", "companion.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("fails when the directory cannot be created", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))

		_, err := NewRotatingWriter(filepath.Join(blocker, "companion.log"), 10, 7, false)
		assert.Error(t, err)
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "companion.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)

	data := []byte("test log message\n")
	n, err := rw.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	require.NoError(t, rw.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "test log message\n", string(content))

	_, err = rw.Write(data)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingWriterRotation(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "companion.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	rw.maxSize = 100

	line := []byte(strings.Repeat("a", 79) + "\n")
	_, err = rw.Write(line)
	require.NoError(t, err)
	_, err = rw.Write(line)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	rotated := rw.Rotated()
	require.Len(t, rotated, 1)

	old, err := os.ReadFile(rotated[0])
	require.NoError(t, err)
	assert.Equal(t, string(line), string(old))

	current, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, string(line), string(current))
}

func TestRotatingWriterCompression(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "companion.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, true)
	require.NoError(t, err)
	rw.maxSize = 10

	_, err = rw.Write([]byte("first line\n"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("second line\n"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	rotated := rw.Rotated()
	require.Len(t, rotated, 1)
	assert.True(t, strings.HasSuffix(rotated[0], ".gz"))
}

func TestCompressFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0o644))

	require.NoError(t, compressFile(testFile))

	_, err := os.Stat(testFile + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanup(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "companion.log")

	oldFile := logFile + ".20200101-120000.000"
	require.NoError(t, os.WriteFile(oldFile, []byte("old log"), 0o644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	recentFile := logFile + ".20990101-120000.000"
	require.NoError(t, os.WriteFile(recentFile, []byte("recent log"), 0o644))

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recentFile)
	assert.NoError(t, err)
}
