package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by LifecycleManager.Start when the PID file
// belongs to another live process.
var ErrAlreadyRunning = errors.New("another companion instance is already running")

// LifecycleManager owns the PID file of a running daemon.
type LifecycleManager struct {
	pidFile string
	logger  zerolog.Logger
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(pidFile string, logger zerolog.Logger) *LifecycleManager {
	return &LifecycleManager{
		pidFile: pidFile,
		logger:  logger,
	}
}

// Start writes the PID file. A stale file left by a dead process is replaced.
func (l *LifecycleManager) Start() error {
	if err := os.MkdirAll(filepath.Dir(l.pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if pid, err := ReadPIDFile(l.pidFile); err == nil && pid != os.Getpid() && ProcessAlive(pid) {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}

	if err := l.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	l.logger.Info().
		Str("pid_file", l.pidFile).
		Int("pid", os.Getpid()).
		Msg("Lifecycle manager started")

	return nil
}

// Stop removes the PID file if it still names this process.
func (l *LifecycleManager) Stop() error {
	pid, err := ReadPIDFile(l.pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		l.logger.Warn().Int("pid", pid).Msg("PID file taken over by another process, leaving it")
		return nil
	}

	if err := os.Remove(l.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	l.logger.Info().Msg("Lifecycle manager stopped")
	return nil
}

// PIDFile returns the PID file path.
func (l *LifecycleManager) PIDFile() string {
	return l.pidFile
}

func (l *LifecycleManager) writePIDFile() error {
	content := strconv.Itoa(os.Getpid())
	return os.WriteFile(l.pidFile, []byte(content), 0644)
}

// ReadPIDFile parses a PID file.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s", path)
	}

	return pid, nil
}

// ProcessAlive reports whether pid names a live process. On Unix
// FindProcess always succeeds, so signal 0 is sent to probe it.
func ProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
