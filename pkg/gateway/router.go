package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/observerai/companion/internal/metrics"
	"github.com/observerai/companion/internal/tracing"
	"github.com/rs/zerolog"
)

// DefaultIdempotencyTTL is how long a mutation's response is replayed for a
// repeated idempotency key.
const DefaultIdempotencyTTL = 5 * time.Minute

// RequestHandler handles one RPC method. params is the raw "params" member
// and may be empty. Returning an *RPCError selects the error code; any other
// error is reported as InternalError.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// RouterConfig configures an RPCRouter.
type RouterConfig struct {
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
	IdempotencyTTL time.Duration
}

type method struct {
	handler RequestHandler
	// mutating methods replay their first response for a repeated
	// idempotency key instead of running again.
	mutating bool
}

type replay struct {
	response  RPCResponse
	expiresAt time.Time
}

// RPCRouter routes JSON-RPC requests from the HTTP and websocket surfaces to
// method handlers and records the outcome of every call.
type RPCRouter struct {
	mu      sync.RWMutex
	methods map[string]method

	replayMu  sync.Mutex
	replayTTL time.Duration
	replays   map[string]replay

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewRPCRouter creates a new RPC router
func NewRPCRouter(cfg RouterConfig) *RPCRouter {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = DefaultIdempotencyTTL
	}
	return &RPCRouter{
		methods:   make(map[string]method),
		replayTTL: cfg.IdempotencyTTL,
		replays:   make(map[string]replay),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// RegisterMethod registers a read-only method. Idempotency keys are ignored
// for it.
func (r *RPCRouter) RegisterMethod(name string, handler RequestHandler) error {
	return r.register(name, handler, false)
}

// RegisterMutation registers a method that changes state. A request carrying
// an idempotency key already seen for this method gets the earlier response.
func (r *RPCRouter) RegisterMutation(name string, handler RequestHandler) error {
	return r.register(name, handler, true)
}

func (r *RPCRouter) register(name string, handler RequestHandler, mutating bool) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.methods[name] = method{handler: handler, mutating: mutating}
	return nil
}

// UnregisterMethod removes an RPC method handler
func (r *RPCRouter) UnregisterMethod(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.methods, name)
}

// ParseRequest decodes a JSON-RPC request. A missing jsonrpc member is
// accepted and treated as "2.0".
func (r *RPCRouter) ParseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &RPCError{
			Code:    ParseError,
			Message: "Parse error",
			Data:    err.Error(),
		}
	}

	switch {
	case req.ID == "":
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing id field"}
	case req.Method == "":
		return nil, &RPCError{Code: InvalidRequest, Message: "Invalid request: missing method field"}
	}

	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}
	return &req, nil
}

// RouteRequest runs the handler for req and records the call.
func (r *RPCRouter) RouteRequest(ctx context.Context, req *RPCRequest) *RPCResponse {
	if req == nil {
		return errorResponse("", InvalidRequest, "invalid request")
	}

	logger := tracing.LoggerFromContext(ctx, r.logger)
	start := time.Now()

	resp, replayed := r.dispatch(ctx, req)
	if resp.Error != nil {
		r.metrics.RecordRPC(req.Method, "error")
		logger.Warn().
			Str("rpc_id", req.ID).
			Str("method", req.Method).
			Int("code", resp.Error.Code).
			Str("error", resp.Error.Message).
			Msg("RPC request failed")
		return resp
	}

	r.metrics.RecordRPC(req.Method, "ok")
	logger.Debug().
		Str("rpc_id", req.ID).
		Str("method", req.Method).
		Bool("replayed", replayed).
		Dur("duration", time.Since(start)).
		Msg("RPC request handled")
	return resp
}

func (r *RPCRouter) dispatch(ctx context.Context, req *RPCRequest) (*RPCResponse, bool) {
	r.mu.RLock()
	m, exists := r.methods[req.Method]
	r.mu.RUnlock()

	if !exists {
		return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method)), false
	}

	key := ""
	if m.mutating && req.IdempotencyKey != "" {
		key = req.Method + ":" + req.IdempotencyKey
		if prev, ok := r.lookupReplay(key); ok {
			prev.ID = req.ID
			return &prev, true
		}
	}

	resp := &RPCResponse{ID: req.ID, JSONRPC: "2.0"}
	result, err := m.handler(ctx, req.Params)
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			rpcErr = &RPCError{Code: InternalError, Message: err.Error()}
		}
		errCopy := *rpcErr
		resp.Error = &errCopy
	} else {
		resp.Result = result
	}

	// Failed mutations are not remembered so a retry can succeed.
	if key != "" && resp.Error == nil {
		r.storeReplay(key, *resp)
	}
	return resp, false
}

// HasMethod checks if a method is registered
func (r *RPCRouter) HasMethod(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.methods[name]
	return exists
}

// GetMethods returns all registered method names, sorted.
func (r *RPCRouter) GetMethods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

func (r *RPCRouter) lookupReplay(key string) (RPCResponse, bool) {
	r.replayMu.Lock()
	defer r.replayMu.Unlock()

	entry, ok := r.replays[key]
	if !ok {
		return RPCResponse{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(r.replays, key)
		return RPCResponse{}, false
	}
	return entry.response, true
}

func (r *RPCRouter) storeReplay(key string, resp RPCResponse) {
	now := time.Now()

	r.replayMu.Lock()
	defer r.replayMu.Unlock()

	for k, entry := range r.replays {
		if now.After(entry.expiresAt) {
			delete(r.replays, k)
		}
	}
	r.replays[key] = replay{response: resp, expiresAt: now.Add(r.replayTTL)}
}

func errorResponse(id string, code int, message string) *RPCResponse {
	return &RPCResponse{
		ID:      id,
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
}

// invalidParams builds an InvalidParams error.
func invalidParams(format string, args ...any) *RPCError {
	return &RPCError{Code: InvalidParams, Message: fmt.Sprintf(format, args...)}
}

// decodeParams unmarshals params into dst. Empty params leave dst untouched.
func decodeParams(params json.RawMessage, dst any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return invalidParams("invalid params: %v", err)
	}
	return nil
}
