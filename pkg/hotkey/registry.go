package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/pkg/shortcut"
	"github.com/rs/zerolog"
)

var (
	// ErrInstallHandler is returned when the OS facility refuses the event
	// handler. Shortcuts are unavailable for the rest of the process.
	ErrInstallHandler = errors.New("failed to install shortcut handler")
	// ErrAlreadyRegistered is returned by a second RegisterAll call.
	ErrAlreadyRegistered = errors.New("shortcuts already registered")
)

// State is the key state carried by an Event.
type State int

const (
	Pressed State = iota
	Released
)

func (s State) String() string {
	if s == Released {
		return "released"
	}
	return "pressed"
}

// Event is one key transition for a registered chord.
type Event struct {
	Chord shortcut.Chord
	State State
}

// Handler receives every event from the host. It may be called from any goroutine.
type Handler func(Event)

// Host is the OS global-hotkey facility.
type Host interface {
	// Install sets the single process-wide handler. It must be called before Register.
	Install(h Handler) error
	Register(c shortcut.Chord) error
	Unregister(c shortcut.Chord) error
	Close() error
}

// Report summarizes a registration pass.
type Report struct {
	Registered []string  `json:"registered"`
	Skipped    []Skipped `json:"skipped"`
}

// Registry installs the configured shortcuts with a Host once at startup and
// answers lookups from the dispatcher afterwards.
type Registry struct {
	host   Host
	logger zerolog.Logger

	mu        sync.RWMutex
	started   bool
	installed bool
	table     map[shortcut.Chord]Binding
	active    []Binding
	report    Report
}

// NewRegistry creates a registry backed by host.
func NewRegistry(host Host, logger zerolog.Logger) *Registry {
	return &Registry{
		host:   host,
		logger: logger.With().Str("component", "hotkeys").Logger(),
		table:  make(map[shortcut.Chord]Binding),
	}
}

// RegisterAll installs handler and registers every binding in cfg. Bindings
// the host rejects are logged and reported as skipped; they do not affect the
// others. Only ErrInstallHandler and ErrAlreadyRegistered are returned.
func (r *Registry) RegisterAll(cfg config.ShortcutConfig, handler Handler) (Report, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return Report{}, ErrAlreadyRegistered
	}
	r.started = true
	r.mu.Unlock()

	if err := r.host.Install(handler); err != nil {
		r.logger.Error().Err(err).Msg("Shortcut handler could not be installed; shortcuts disabled")
		return Report{}, fmt.Errorf("%w: %v", ErrInstallHandler, err)
	}

	r.mu.Lock()
	r.installed = true
	r.mu.Unlock()

	bindings, skipped := Bindings(cfg)
	for _, s := range skipped {
		r.logger.Warn().Str("shortcut", s.Shortcut).Str("action", s.Action).Str("reason", s.Reason).Msg("Skipping unparsable shortcut")
	}

	for _, b := range bindings {
		if err := r.host.Register(b.Chord); err != nil {
			r.logger.Warn().Err(err).Str("shortcut", b.Shortcut).Msg("Failed to register shortcut")
			r.mu.Lock()
			r.report.Skipped = append(r.report.Skipped, Skipped{
				Shortcut: b.Shortcut,
				Action:   b.Action.Describe(),
				Reason:   err.Error(),
			})
			r.mu.Unlock()
			continue
		}

		r.mu.Lock()
		if _, exists := r.table[b.Chord]; !exists {
			r.table[b.Chord] = b
		}
		r.active = append(r.active, b)
		r.report.Registered = append(r.report.Registered, b.Line())
		r.mu.Unlock()

		r.logger.Info().Str("shortcut", b.Shortcut).Str("action", b.Action.Describe()).Msg("Registered shortcut")
	}

	r.mu.Lock()
	r.report.Skipped = append(skipped, r.report.Skipped...)
	report := r.reportLocked()
	r.mu.Unlock()

	r.logger.Info().Int("active", len(report.Registered)).Int("skipped", len(report.Skipped)).Msg("Shortcut registration complete")
	return report, nil
}

// Lookup returns the binding registered for chord.
func (r *Registry) Lookup(c shortcut.Chord) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.table[c]
	return b, ok
}

// Installed reports whether the handler was accepted by the host.
func (r *Registry) Installed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.installed
}

// Report returns a copy of the registration report.
func (r *Registry) Report() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reportLocked()
}

// Registered returns the report lines of the active shortcuts in registration order.
func (r *Registry) Registered() []string {
	return r.Report().Registered
}

// Count returns the number of active shortcuts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Close unregisters every active shortcut and releases the host.
func (r *Registry) Close() error {
	r.mu.Lock()
	active := r.active
	r.active = nil
	r.table = make(map[shortcut.Chord]Binding)
	r.mu.Unlock()

	var errs []error
	for _, b := range active {
		if err := r.host.Unregister(b.Chord); err != nil {
			errs = append(errs, fmt.Errorf("failed to unregister %s: %w", b.Shortcut, err))
		}
	}
	if err := r.host.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close hotkey host: %w", err))
	}
	return errors.Join(errs...)
}

func (r *Registry) reportLocked() Report {
	out := Report{
		Registered: make([]string, len(r.report.Registered)),
		Skipped:    make([]Skipped, len(r.report.Skipped)),
	}
	copy(out.Registered, r.report.Registered)
	copy(out.Skipped, r.report.Skipped)
	return out
}
