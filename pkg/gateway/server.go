package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/observerai/companion/internal/config"
	"github.com/observerai/companion/internal/metrics"
	"github.com/observerai/companion/internal/observability"
	"github.com/observerai/companion/pkg/commandbus"
	"github.com/observerai/companion/pkg/dispatch"
	"github.com/observerai/companion/pkg/hotkey"
	"github.com/observerai/companion/pkg/overlay"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

var _ dispatch.Notifier = (*Server)(nil)

// ShortcutReporter exposes the registration outcome of the shortcut registry.
type ShortcutReporter interface {
	Installed() bool
	Report() hotkey.Report
	Count() int
}

// OverlayState exposes the overlay snapshot.
type OverlayState interface {
	State() overlay.State
}

// ServerProber checks inference server reachability.
type ServerProber interface {
	Check(ctx context.Context, urls []string, apiKey string) []string
}

// Config holds server configuration
type Config struct {
	Listen  string
	Version string
	Store   *config.Store
	Bus     *commandbus.Bus
	// Shortcuts is nil when the shortcut subsystem is disabled.
	Shortcuts ShortcutReporter
	Overlay   OverlayState
	Prober    ServerProber
	Metrics   *metrics.Metrics
	Audit     *observability.AuditLogger
	Logger    zerolog.Logger

	// KeepAlive is the SSE comment interval. Defaults to 15s.
	KeepAlive time.Duration
}

// Server is the local HTTP gateway: command stream, mailbox polling,
// JSON-RPC and websocket events.
type Server struct {
	listen    string
	version   string
	keepAlive time.Duration
	startedAt time.Time

	store     *config.Store
	bus       *commandbus.Bus
	shortcuts ShortcutReporter
	overlay   OverlayState
	prober    ServerProber
	metrics   *metrics.Metrics
	audit     *observability.AuditLogger
	logger    zerolog.Logger

	server      *http.Server
	listener    net.Listener
	upgrader    websocket.Upgrader
	clients     *ClientRegistry
	router      *RPCRouter
	broadcaster *EventBroadcaster

	// ctx is cancelled by Stop so long-lived streams end before Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
	forwardWG      sync.WaitGroup
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("config store is required")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("command bus is required")
	}
	if cfg.Listen == "" {
		cfg.Listen = config.DefaultListen
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}

	logger := cfg.Logger.With().Str("component", "gateway").Logger()
	clients := NewClientRegistry(cfg.Metrics.SetWebsocketClients)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		listen:      cfg.Listen,
		version:     cfg.Version,
		keepAlive:   cfg.KeepAlive,
		startedAt:   time.Now(),
		store:       cfg.Store,
		bus:         cfg.Bus,
		shortcuts:   cfg.Shortcuts,
		overlay:     cfg.Overlay,
		prober:      cfg.Prober,
		metrics:     cfg.Metrics,
		audit:       cfg.Audit,
		logger:      logger,
		clients:     clients,
		router:      NewRPCRouter(RouterConfig{Metrics: cfg.Metrics, Logger: logger}),
		broadcaster: NewEventBroadcaster(clients, logger),
		ctx:         ctx,
		cancel:      cancel,
		upgrader: websocket.Upgrader{
			// The GUI shell loads from a custom scheme; any origin is accepted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.registerBuiltinMethods()

	return s, nil
}

// Handler returns the HTTP handler with every route and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	r.Get("/ping", s.handlePing)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/commands-stream", s.handleCommandStream)
	r.Get("/commands", s.handleTakeCommands)
	r.Post("/commands", s.handleSubmitCommand)
	r.Post("/rpc", s.handleRPC)
	r.Get("/ws", s.handleWebSocket)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listen, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting gateway server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	s.startCommandForwarder()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.listen
}

// Stop gracefully stops the gateway server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	s.broadcaster.Broadcast(EventServerShutdown, map[string]any{
		"message": "Server is shutting down",
	})
	s.cancel()
	s.forwardWG.Wait()

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug().Msg("All in-flight requests completed")
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, client := range s.clients.GetAll() {
		_ = client.Conn.Close()
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

// ShortcutFired pushes a shortcut-pressed event to websocket clients.
func (s *Server) ShortcutFired(shortcut string) {
	s.broadcaster.Broadcast(EventShortcutPressed, map[string]string{"shortcut": shortcut})
}

// ConfigChanged pushes a config-updated event carrying the new document.
func (s *Server) ConfigChanged(cfg config.AppConfig) {
	s.broadcaster.Broadcast(EventConfigUpdated, redactConfig(cfg))
}

// OverlayChanged pushes an overlay-updated event.
func (s *Server) OverlayChanged(state overlay.State) {
	s.broadcaster.Broadcast(EventOverlayUpdated, state)
}

// Broadcast pushes an event to the websocket clients that receive it and
// returns how many did.
func (s *Server) Broadcast(event string, data any) int {
	return s.broadcaster.Broadcast(event, data)
}

// RegisterMethod registers an RPC method handler
func (s *Server) RegisterMethod(name string, handler RequestHandler) error {
	return s.router.RegisterMethod(name, handler)
}

// GetConnectedClients returns information about all connected clients
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.clients.GetConnectedClients()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordHTTP(route, status, time.Since(start))

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
