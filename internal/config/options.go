package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppDirName is the directory under the user config dir holding all state.
	AppDirName = "observer-companion"

	// OptionsFileName is the optional process options file in the data dir.
	OptionsFileName = "companion.json"

	// EnvPrefix prefixes environment overrides, e.g. OBSERVER_LISTEN.
	EnvPrefix = "OBSERVER"

	DefaultListen        = "127.0.0.1:3838"
	DefaultStreamBacklog = 100
)

// Options are the process settings. They are separate from the user-edited
// AppConfig document and are never written back by the application.
type Options struct {
	DataDir      string         `mapstructure:"data_dir" json:"data_dir"`
	SettingsFile string         `mapstructure:"settings_file" json:"settings_file"`
	Listen       string         `mapstructure:"listen" json:"listen"`
	Log          LogOptions     `mapstructure:"log" json:"log"`
	Stream       StreamOptions  `mapstructure:"stream" json:"stream"`
	Hotkeys      HotkeysOptions `mapstructure:"hotkeys" json:"hotkeys"`
}

// LogOptions configures the process logger.
type LogOptions struct {
	Level     string `mapstructure:"level" json:"level"`
	File      string `mapstructure:"file" json:"file"`
	Pretty    bool   `mapstructure:"pretty" json:"pretty"`
	Redaction bool   `mapstructure:"redaction" json:"redaction"`
	MaxSize   int    `mapstructure:"max_size" json:"max_size"`
	MaxAge    int    `mapstructure:"max_age" json:"max_age"`

	// RedactPatterns are extra regular expressions masked in log output.
	RedactPatterns []string `mapstructure:"redact_patterns" json:"redact_patterns"`
}

// StreamOptions configures the live command stream.
type StreamOptions struct {
	// Backlog is the number of unread messages kept per subscriber.
	Backlog int `mapstructure:"backlog" json:"backlog"`
}

// HotkeysOptions toggles the native global hotkey backend.
type HotkeysOptions struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// DefaultDataDir returns <user config dir>/observer-companion.
func DefaultDataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", fmt.Errorf("failed to get config directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppDirName), nil
}

// OptionsLoader reads Options from defaults, an optional companion.json in
// the data directory, and OBSERVER_ environment variables. Callers may bind
// command-line flags through Viper before calling Load.
type OptionsLoader struct {
	v *viper.Viper
}

// NewOptionsLoader creates a loader with all defaults registered.
func NewOptionsLoader() *OptionsLoader {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", "")
	v.SetDefault("settings_file", "")
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.pretty", true)
	v.SetDefault("log.redaction", true)
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.redact_patterns", []string{})
	v.SetDefault("stream.backlog", DefaultStreamBacklog)
	v.SetDefault("hotkeys.enabled", true)

	return &OptionsLoader{v: v}
}

// Viper exposes the underlying instance for flag binding.
func (l *OptionsLoader) Viper() *viper.Viper {
	return l.v
}

// Load resolves the options. A missing companion.json is not an error.
func (l *OptionsLoader) Load() (*Options, error) {
	dataDir := l.v.GetString("data_dir")
	if dataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}

	optionsPath := filepath.Join(dataDir, OptionsFileName)
	if _, err := os.Stat(optionsPath); err == nil {
		l.v.SetConfigFile(optionsPath)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read options file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat options file: %w", err)
	}

	opts := &Options{}
	if err := l.v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}

	if opts.DataDir == "" {
		opts.DataDir = dataDir
	}
	if opts.SettingsFile == "" {
		opts.SettingsFile = filepath.Join(opts.DataDir, SettingsFileName)
	}
	if opts.Log.File == "" {
		opts.Log.File = filepath.Join(opts.DataDir, "companion.log")
	}

	if errs := NewValidator().ValidateOptions(opts); len(errs) > 0 {
		return nil, fmt.Errorf("invalid options: %w", errors.Join(errs...))
	}

	return opts, nil
}

// PIDFile returns the path of the running instance's PID file.
func (o *Options) PIDFile() string {
	return filepath.Join(o.DataDir, "companion.pid")
}
