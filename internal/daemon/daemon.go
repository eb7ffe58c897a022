package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/internal/logger"
	"github.com/observerai/companion/internal/metrics"
	"github.com/observerai/companion/internal/observability"
	"github.com/observerai/companion/internal/tracing"
	"github.com/observerai/companion/pkg/backend"
	"github.com/observerai/companion/pkg/commandbus"
	"github.com/observerai/companion/pkg/dispatch"
	"github.com/observerai/companion/pkg/gateway"
	"github.com/observerai/companion/pkg/hotkey"
	"github.com/observerai/companion/pkg/hotkey/native"
	"github.com/observerai/companion/pkg/overlay"
	"github.com/rs/zerolog"
)

// AuditLogFileName is the audit trail in the data directory.
const AuditLogFileName = "audit.log"

// Daemon owns the companion process: the settings store, the shortcut
// pipeline, the command bus and the local gateway.
type Daemon struct {
	opts    *config.Options
	logger  *logger.Logger
	log     zerolog.Logger
	version string

	store      *config.Store
	watcher    *config.Watcher
	metrics    *metrics.Metrics
	audit      *observability.AuditLogger
	bus        *commandbus.Bus
	window     *overlay.Window
	prober     *backend.Prober
	host       hotkey.Host
	registry   *hotkey.Registry
	dispatcher *dispatch.Dispatcher
	gateway    *gateway.Server

	// shortcuts is the binding table registered at startup. Later edits
	// are saved but only take effect after a restart.
	shortcuts      config.ShortcutConfig
	hotkeysEnabled bool

	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// Status is a snapshot of the daemon state.
type Status struct {
	Running   bool          `json:"running"`
	Uptime    time.Duration `json:"uptime"`
	StartTime time.Time     `json:"start_time"`
	Addr      string        `json:"addr"`
	Shortcuts int           `json:"shortcuts"`
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithHotkeyHost replaces the hotkey backend and enables shortcuts
// regardless of the options file.
func WithHotkeyHost(h hotkey.Host) Option {
	return func(d *Daemon) {
		d.host = h
		d.hotkeysEnabled = true
	}
}

// WithVersion sets the version reported by the gateway.
func WithVersion(v string) Option {
	return func(d *Daemon) {
		d.version = v
	}
}

// New creates a daemon. Nothing listens or registers until Start.
func New(opts *config.Options, log *logger.Logger, options ...Option) (*Daemon, error) {
	if opts == nil {
		return nil, fmt.Errorf("options are required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		opts:           opts,
		logger:         log,
		log:            log.Component("daemon"),
		version:        "dev",
		hotkeysEnabled: opts.Hotkeys.Enabled,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range options {
		opt(d)
	}

	if err := d.initialize(); err != nil {
		cancel()
		return nil, err
	}

	d.eventLoop = NewEventLoop(d, DefaultMaintenanceInterval)
	d.lifecycle = NewLifecycleManager(opts.PIDFile(), d.log)

	return d, nil
}

func (d *Daemon) initialize() error {
	zl := d.logger.Zerolog()

	d.store = config.NewStore(d.opts.SettingsFile, config.CurrentPlatform(), zl)
	cfg, source := d.store.LoadWithSource()
	d.shortcuts = cfg.Shortcuts.Clone()
	d.log.Info().
		Str("path", d.store.Path()).
		Str("source", string(source)).
		Msg("Settings loaded")
	for _, err := range config.NewValidator().ValidateAppConfig(cfg) {
		d.log.Warn().Err(err).Msg("Settings problem")
	}

	d.metrics = metrics.NewMetrics()

	auditPath := filepath.Join(d.opts.DataDir, AuditLogFileName)
	audit, err := observability.NewAuditLogger(auditPath)
	if err != nil {
		d.log.Warn().Err(err).Msg("Failed to open audit log, continuing without it")
	} else {
		d.audit = audit
	}

	d.bus = commandbus.New(commandbus.Options{
		Backlog: d.opts.Stream.Backlog,
		Metrics: d.metrics,
		Logger:  zl,
	})

	d.window = overlay.NewWindow(overlay.DefaultState())

	d.prober = backend.NewProber(backend.ProberConfig{
		Metrics: d.metrics,
		Logger:  zl,
	})

	if d.host == nil {
		if d.hotkeysEnabled {
			d.host = native.New(zl)
		} else {
			d.host = hotkey.NewMemoryHost()
		}
	}
	d.registry = hotkey.NewRegistry(d.host, zl)

	gwCfg := gateway.Config{
		Listen:  d.opts.Listen,
		Version: d.version,
		Store:   d.store,
		Bus:     d.bus,
		Overlay: d.window,
		Prober:  d.prober,
		Metrics: d.metrics,
		Audit:   d.audit,
		Logger:  zl,
	}
	if d.hotkeysEnabled {
		gwCfg.Shortcuts = d.registry
	}
	gw, err := gateway.NewServer(gwCfg)
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gateway = gw

	d.dispatcher = dispatch.New(dispatch.Config{
		Lookup:   d.registry,
		Overlay:  d.window,
		Notifier: d.gateway,
		Commands: d.bus.From(commandbus.SourceShortcut),
		Metrics:  d.metrics,
		Audit:    d.audit,
		Logger:   zl,
	})

	d.window.OnChange(d.gateway.OverlayChanged)

	watcher, err := config.NewWatcher(config.WatcherConfig{
		Store:    d.store,
		OnChange: d.handleConfigChange,
		Logger:   zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	d.watcher = watcher

	return nil
}

// Start registers shortcuts and starts the gateway and background loops.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	log := d.log.With().Str("trace_id", tracing.NewTraceID()).Logger()
	log.Info().Msg("Starting companion daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.gateway.Start(); err != nil {
		if stopErr := d.lifecycle.Stop(); stopErr != nil {
			log.Error().Err(stopErr).Msg("Failed to stop lifecycle manager")
		}
		d.setStopped()
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	log.Info().Str("addr", d.gateway.Addr()).Msg("Gateway server started")

	if d.hotkeysEnabled {
		d.registerShortcuts(log)
	} else {
		log.Info().Msg("Global shortcuts disabled")
	}

	if err := d.watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to watch settings file, external edits will be ignored")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	log.Info().Msg("Daemon started")
	return nil
}

// registerShortcuts installs the startup binding table. A failure to install
// the handler leaves the companion running without shortcuts.
func (d *Daemon) registerShortcuts(log zerolog.Logger) {
	report, err := d.registry.RegisterAll(d.shortcuts, d.dispatcher.HandleEvent)
	if err != nil {
		if errors.Is(err, hotkey.ErrInstallHandler) {
			log.Error().Err(err).Msg("Global shortcuts unavailable")
		} else {
			log.Warn().Err(err).Msg("Shortcut registration skipped")
		}
		return
	}

	d.metrics.RecordRegistration(len(report.Registered), len(report.Skipped))
	log.Info().
		Int("registered", len(report.Registered)).
		Int("skipped", len(report.Skipped)).
		Msg("Global shortcuts registered")
}

// Stop shuts everything down in reverse start order.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	log := d.log.With().Str("trace_id", tracing.NewTraceID()).Logger()
	log.Info().Msg("Stopping companion daemon")

	if err := d.watcher.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop settings watcher")
	}

	if err := d.gateway.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop gateway server")
	}

	if err := d.registry.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to unregister shortcuts")
	}

	d.bus.Close()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("All goroutines stopped")
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	if err := d.lifecycle.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if err := d.audit.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close audit log")
	}

	log.Info().Msg("Daemon stopped")
	return nil
}

// Run starts the daemon and blocks until ctx is done or the process receives
// SIGINT or SIGTERM, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.log.Info().Str("signal", sig.String()).Msg("Received signal")
	case <-ctx.Done():
		d.log.Info().Msg("Context cancelled")
	}

	return d.Stop()
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:   d.running,
		Addr:      d.gateway.Addr(),
		Shortcuts: d.registry.Count(),
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *Daemon) handleConfigChange(cfg config.AppConfig) {
	d.gateway.ConfigChanged(cfg)

	if d.hotkeysEnabled && !reflect.DeepEqual(cfg.Shortcuts, d.shortcuts) {
		d.log.Info().Msg("Shortcut changes will take effect after restart")
	}
}

// Store returns the settings store.
func (d *Daemon) Store() *config.Store {
	return d.store
}

// Bus returns the command bus.
func (d *Daemon) Bus() *commandbus.Bus {
	return d.bus
}

// Registry returns the shortcut registry.
func (d *Daemon) Registry() *hotkey.Registry {
	return d.registry
}

// Window returns the overlay window.
func (d *Daemon) Window() *overlay.Window {
	return d.window
}

// Gateway returns the gateway server.
func (d *Daemon) Gateway() *gateway.Server {
	return d.gateway
}

// Metrics returns the metrics registry.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}
