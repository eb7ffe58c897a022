package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/pkg/shortcut"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const restartNotice = "Shortcut changes take effect after the companion restarts."

const agentShortcutPrefix = "agent:"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the settings file",
	Long: `Inspect and edit the settings file shared with the desktop shell.
A running companion picks up connection changes immediately; shortcut changes
need a restart.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings with the API key redacted",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configSetURLCmd = &cobra.Command{
	Use:   "set-url [url]",
	Short: "Set the inference server URL, or clear it when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigSetURL,
}

var configSetAPIKeyCmd = &cobra.Command{
	Use:   "set-api-key [key]",
	Short: "Set the inference server API key, or clear it when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigSetAPIKey,
}

var configSetShortcutCmd = &cobra.Command{
	Use:   "set-shortcut <name> [shortcut]",
	Short: "Bind a shortcut, or unbind it when omitted",
	Long: `Bind a shortcut, or unbind it when the shortcut is omitted.
Name is an overlay action such as overlay_toggle or overlay_move_up, or
agent:<id> for an agent toggle.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSetShortcut,
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configSetURLCmd, configSetAPIKeyCmd, configSetShortcutCmd)
	rootCmd.AddCommand(configCmd)
}

// settingsView is the printable form of the settings document.
type settingsView struct {
	SettingsFile  string                `json:"settings_file"`
	Platform      config.Platform       `json:"platform"`
	Shortcuts     config.ShortcutConfig `json:"shortcuts"`
	ConnectionURL *string               `json:"ollama_url"`
	HasAPIKey     bool                  `json:"has_api_key"`
	Problems      []string              `json:"problems,omitempty"`
}

func openStore() (*config.Store, error) {
	opts, err := loadOptions()
	if err != nil {
		return nil, err
	}
	store := config.NewStore(opts.SettingsFile, config.CurrentPlatform(), zerolog.Nop())
	store.Load()
	return store, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	cfg := store.Config()
	view := settingsView{
		SettingsFile:  store.Path(),
		Platform:      store.Platform(),
		Shortcuts:     cfg.Shortcuts,
		ConnectionURL: cfg.ConnectionURL,
		HasAPIKey:     cfg.ConnectionAPIKey != nil && *cfg.ConnectionAPIKey != "",
	}
	for _, err := range config.NewValidator().ValidateAppConfig(cfg) {
		view.Problems = append(view.Problems, err.Error())
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), opts.SettingsFile)
	return nil
}

func runConfigSetURL(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	var url *string
	if len(args) == 1 {
		trimmed := strings.TrimSpace(args[0])
		if err := config.NewValidator().ValidateConnectionURL(trimmed); err != nil {
			return err
		}
		url = &trimmed
	}

	if err := store.UpdateConnectionURL(url); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	if url == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Connection URL cleared")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Connection URL set to %s\n", *url)
	}
	return nil
}

func runConfigSetAPIKey(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	var key *string
	if len(args) == 1 && args[0] != "" {
		key = &args[0]
	}

	if err := store.UpdateConnectionAPIKey(key); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	if key == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "API key cleared")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "API key saved")
	}
	return nil
}

func runConfigSetShortcut(cmd *cobra.Command, args []string) error {
	name := args[0]
	var value string
	if len(args) == 2 {
		value = strings.TrimSpace(args[1])
	}

	if value != "" {
		if _, err := shortcut.Parse(value); err != nil {
			return err
		}
	}

	store, err := openStore()
	if err != nil {
		return err
	}

	sc := store.Config().Shortcuts
	if err := setShortcut(&sc, name, value); err != nil {
		return err
	}

	if err := store.SetShortcutConfig(sc); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	out := cmd.OutOrStdout()
	if value == "" {
		fmt.Fprintf(out, "%s unbound\n", name)
	} else {
		fmt.Fprintf(out, "%s bound to %s\n", name, value)
	}
	fmt.Fprintln(out, restartNotice)
	return nil
}

// setShortcut sets the binding called name in sc. An empty value unbinds it.
func setShortcut(sc *config.ShortcutConfig, name, value string) error {
	if agentID, ok := strings.CutPrefix(name, agentShortcutPrefix); ok {
		if strings.TrimSpace(agentID) == "" {
			return fmt.Errorf("agent id is required")
		}
		if sc.AgentShortcuts == nil {
			sc.AgentShortcuts = make(map[string]string)
		}
		if value == "" {
			delete(sc.AgentShortcuts, agentID)
		} else {
			sc.AgentShortcuts[agentID] = value
		}
		return nil
	}

	field := overlayField(sc, name)
	if field == nil {
		return fmt.Errorf("unknown shortcut %q", name)
	}
	if value == "" {
		*field = nil
	} else {
		*field = config.StringPtr(value)
	}
	return nil
}

func overlayField(sc *config.ShortcutConfig, name string) **string {
	switch name {
	case "overlay_toggle":
		return &sc.OverlayToggle
	case "overlay_move_up":
		return &sc.OverlayMoveUp
	case "overlay_move_down":
		return &sc.OverlayMoveDown
	case "overlay_move_left":
		return &sc.OverlayMoveLeft
	case "overlay_move_right":
		return &sc.OverlayMoveRight
	case "overlay_resize_up":
		return &sc.OverlayResizeUp
	case "overlay_resize_down":
		return &sc.OverlayResizeDown
	case "overlay_resize_left":
		return &sc.OverlayResizeLeft
	case "overlay_resize_right":
		return &sc.OverlayResizeRight
	default:
		return nil
	}
}
