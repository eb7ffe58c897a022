package cli

import (
	"context"

	"github.com/observerai/companion/internal/config"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0"

var optionsLoader = config.NewOptionsLoader()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "observer-companion",
	Short: "Observer companion - global shortcuts and agent command relay",
	Long: `Observer companion runs next to the Observer desktop shell.
It registers global keyboard shortcuts for the overlay window and the
automation agents, and relays agent commands over a local HTTP gateway.`,
	Version:      version,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("data-dir", "", "data directory (default is <user config dir>/observer-companion)")
	flags.String("settings", "", "settings file (default is <data dir>/settings.json)")
	flags.String("listen", config.DefaultListen, "gateway listen address")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	v := optionsLoader.Viper()
	_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = v.BindPFlag("settings_file", flags.Lookup("settings"))
	_ = v.BindPFlag("listen", flags.Lookup("listen"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// loadOptions resolves the process options from flags, environment and the
// optional options file.
func loadOptions() (*config.Options, error) {
	return optionsLoader.Load()
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
