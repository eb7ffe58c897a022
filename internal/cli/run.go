package cli

import (
	"fmt"
	"os"

	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/internal/daemon"
	"github.com/observerai/companion/internal/logger"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the companion in the foreground",
	Long: `Run the companion in the foreground until interrupted.
Registers the configured global shortcuts and serves the local gateway.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("hotkeys", true, "register global shortcuts with the operating system")
	_ = optionsLoader.Viper().BindPFlag("hotkeys.enabled", runCmd.Flags().Lookup("hotkeys"))
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}

	log, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer log.Close()

	d, err := daemon.New(opts, log, daemon.WithVersion(version))
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	return d.Run(cmd.Context())
}

func newLogger(opts *config.Options) (*logger.Logger, error) {
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:     opts.Log.Level,
		File:      opts.Log.File,
		Console:   true,
		Pretty:    opts.Log.Pretty,
		Redaction: opts.Log.Redaction,
		MaxSize:   opts.Log.MaxSize,
		MaxAge:    opts.Log.MaxAge,
		Compress:  true,

		RedactPatterns: opts.Log.RedactPatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
