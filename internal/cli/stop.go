package cli

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/observerai/companion/internal/daemon"
	"github.com/spf13/cobra"
)

var (
	stopTimeout int
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running companion",
	Long: `Stop the running companion gracefully.
Sends SIGTERM and waits for it to shut down, then kills it after the timeout.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 10, "timeout in seconds to wait for the companion to stop")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	pidFile := opts.PIDFile()
	out := cmd.OutOrStdout()

	pid, err := runningPID(pidFile)
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		// Windows has no SIGTERM.
		if killErr := process.Kill(); killErr != nil {
			return fmt.Errorf("failed to signal process %d: %w", pid, err)
		}
	}

	deadline := time.Now().Add(time.Duration(stopTimeout) * time.Second)
	for time.Now().Before(deadline) {
		if !daemon.ProcessAlive(pid) {
			fmt.Fprintln(out, "Companion stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Fprintln(out, "Timeout reached, killing process...")
	if err := process.Kill(); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}

	// The process could not clean up after itself.
	_ = os.Remove(pidFile)
	fmt.Fprintln(out, "Companion killed")
	return nil
}

// errNotRunning is returned by stop when no live process owns the PID file.
var errNotRunning = errors.New("companion is not running")

func runningPID(pidFile string) (int, error) {
	pid, err := daemon.ReadPIDFile(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, errNotRunning
		}
		return 0, err
	}
	if !daemon.ProcessAlive(pid) {
		return 0, errNotRunning
	}
	return pid, nil
}
