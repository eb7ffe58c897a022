package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConnectionURL checks that a backend URL is an absolute http(s) URL.
func (v *Validator) ValidateConnectionURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("connection URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid connection URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid connection URL scheme: %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("connection URL has no host")
	}

	return nil
}

// ValidateListen validates a host:port listen address.
func (v *Validator) ValidateListen(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if port == "" {
		return fmt.Errorf("listen address %q has no port", addr)
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		return fmt.Errorf("invalid listen host: %s", host)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateOptions performs comprehensive validation of process options.
func (v *Validator) ValidateOptions(opts *Options) []error {
	var errors []error

	if err := v.ValidateListen(opts.Listen); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateLogLevel(opts.Log.Level); err != nil {
		errors = append(errors, err)
	}
	if opts.Stream.Backlog <= 0 {
		errors = append(errors, fmt.Errorf("stream.backlog must be positive, got %d", opts.Stream.Backlog))
	}
	if opts.Log.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("log.max_size must be >= 0"))
	}
	if opts.Log.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("log.max_age must be >= 0"))
	}
	for _, pattern := range opts.Log.RedactPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errors = append(errors, fmt.Errorf("invalid log.redact_patterns entry %q: %w", pattern, err))
		}
	}

	return errors
}

// ValidateAppConfig checks the user document. Shortcut strings are checked
// separately by the hotkey package, since only it knows the grammar.
func (v *Validator) ValidateAppConfig(cfg AppConfig) []error {
	var errors []error

	if cfg.ConnectionURL != nil {
		if err := v.ValidateConnectionURL(*cfg.ConnectionURL); err != nil {
			errors = append(errors, err)
		}
	}
	for id := range cfg.Shortcuts.AgentShortcuts {
		if strings.TrimSpace(id) == "" {
			errors = append(errors, fmt.Errorf("agent_shortcuts contains an empty agent id"))
		}
	}

	return errors
}
