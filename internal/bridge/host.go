package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// Call is a decoded request on its way to an action.
type Call struct {
	Controller string
	Action     string
	Data       json.RawMessage
}

// Handler dispatches a Call.
type Handler func(ctx context.Context, call Call) (any, error)

// Middleware wraps a Handler. The first middleware given is the outermost.
type Middleware func(next Handler) Handler

type route struct {
	name    string
	actions map[string]ActionFunc
}

// Host routes bridge requests to registered controllers. It is safe for
// concurrent use; controllers are expected to be registered during startup.
type Host struct {
	mu          sync.RWMutex
	controllers map[string]route
	middleware  []Middleware
	handler     Handler

	log         logger.Logger
	callTimeout time.Duration
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithMiddleware appends middleware around every dispatch.
func WithMiddleware(mw ...Middleware) Option {
	return func(h *Host) { h.middleware = append(h.middleware, mw...) }
}

// WithCallTimeout bounds the context handed to actions. Zero means no limit.
func WithCallTimeout(d time.Duration) Option {
	return func(h *Host) { h.callTimeout = d }
}

// NewHost creates a Host with no controllers.
func NewHost(opts ...Option) *Host {
	h := &Host{
		controllers: make(map[string]route),
		log:         logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.buildChain()
	return h
}

// Use appends middleware. Call it before serving requests.
func (h *Host) Use(mw ...Middleware) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.middleware = append(h.middleware, mw...)
	h.buildChainLocked()
}

func (h *Host) buildChain() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buildChainLocked()
}

// buildChainLocked recovers twice: inside the middleware so they observe
// an action panic as ErrPanic, and outermost so a panicking middleware
// still yields a JSON answer.
func (h *Host) buildChainLocked() {
	recovery := Recovery(RecoveryConfig{Logger: h.log, EnableStackTrace: true})
	handler := recovery(h.dispatch)
	for i := len(h.middleware) - 1; i >= 0; i-- {
		handler = h.middleware[i](handler)
	}
	h.handler = recovery(handler)
}

// Register adds a controller. Controller and action names are matched
// case-insensitively.
func (h *Host) Register(c Controller) error {
	name := strings.TrimSpace(c.Name())
	if name == "" {
		return fmt.Errorf("controller name is required")
	}

	actions := make(map[string]ActionFunc, len(c.Actions()))
	for action, fn := range c.Actions() {
		key := strings.ToLower(action)
		if _, dup := actions[key]; dup {
			return fmt.Errorf("controller %s: action %s registered twice", name, action)
		}
		actions[key] = fn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := h.controllers[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateController, name)
	}
	h.controllers[key] = route{name: name, actions: actions}

	h.log.Debug("Registered controller",
		logger.ControllerField(name),
		logger.IntField("actions", len(actions)))
	return nil
}

// Controllers lists registered controller names in sorted order.
func (h *Host) Controllers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.controllers))
	for _, r := range h.controllers {
		names = append(names, r.name)
	}
	sort.Strings(names)
	return names
}

// ProcessRequest implements Delegate.
func (h *Host) ProcessRequest(request string) string {
	return h.ProcessRequestContext(context.Background(), request)
}

// ProcessRequestContext handles one bridge request. The result is always a
// JSON encoded Response.
func (h *Host) ProcessRequestContext(ctx context.Context, request string) string {
	var req Request
	if err := json.Unmarshal([]byte(request), &req); err != nil {
		return encodeError(fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	if req.Controller == "" || req.Action == "" {
		return encodeError(fmt.Errorf("%w: controller and action are required", ErrInvalidRequest))
	}

	ctx, _ = logger.EnsureCorrelationID(ctx)
	if h.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.callTimeout)
		defer cancel()
	}

	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()

	result, err := handler(ctx, Call{Controller: req.Controller, Action: req.Action, Data: req.Data})
	if err != nil {
		return encodeError(err)
	}

	out, err := json.Marshal(Response{Data: result})
	if err != nil {
		h.log.Error("Failed to encode bridge response",
			logger.ControllerField(req.Controller),
			logger.ActionField(req.Action),
			logger.ErrorField(err))
		return encodeError(fmt.Errorf("failed to encode response: %w", err))
	}
	return string(out)
}

func (h *Host) dispatch(ctx context.Context, call Call) (any, error) {
	h.mu.RLock()
	r, ok := h.controllers[strings.ToLower(call.Controller)]
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownController, call.Controller)
	}

	action, ok := r.actions[strings.ToLower(call.Action)]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAction, r.name, call.Action)
	}

	return action(ctx, call.Data)
}

func encodeError(err error) string {
	msg := err.Error()
	if msg == "" {
		msg = "request failed"
	}
	// A Response holding only a string cannot fail to encode.
	out, _ := json.Marshal(Response{ErrorMessage: msg})
	return string(out)
}

// IsClientError reports whether err was caused by the request itself
// rather than by the action.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnknownController) ||
		errors.Is(err, ErrUnknownAction)
}
