package cli

import (
	"fmt"

	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/pkg/hotkey"
	"github.com/spf13/cobra"
)

var showDefaults bool

var shortcutsCmd = &cobra.Command{
	Use:   "shortcuts",
	Short: "Inspect shortcut bindings",
}

var shortcutsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse the configured shortcuts and print the resulting bindings",
	Args:  cobra.NoArgs,
	RunE:  runShortcutsCheck,
}

func init() {
	shortcutsCheckCmd.Flags().BoolVar(&showDefaults, "defaults", false, "check the platform defaults instead of the settings file")
	shortcutsCmd.AddCommand(shortcutsCheckCmd)
	rootCmd.AddCommand(shortcutsCmd)
}

func runShortcutsCheck(cmd *cobra.Command, args []string) error {
	platform := config.CurrentPlatform()
	sc := config.DefaultShortcuts(platform)
	source := "defaults for " + string(platform)

	if !showDefaults {
		store, err := openStore()
		if err != nil {
			return err
		}
		sc = store.Config().Shortcuts
		source = store.Path()
	}

	bindings, skipped := hotkey.Bindings(sc)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Shortcuts from %s\n", source)
	for _, b := range bindings {
		fmt.Fprintf(out, "  %s\n", b.Line())
	}
	if len(skipped) > 0 {
		fmt.Fprintln(out, "Invalid:")
		for _, s := range skipped {
			fmt.Fprintf(out, "  %s (%s): %s\n", s.Shortcut, s.Action, s.Reason)
		}
	}
	fmt.Fprintf(out, "%d valid, %d invalid\n", len(bindings), len(skipped))
	return nil
}
