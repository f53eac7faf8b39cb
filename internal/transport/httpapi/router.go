// Package httpapi serves the command table and the event stream over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/brainoverflow/internal/bridge"
	"github.com/lewisedginton/brainoverflow/pkg/httpmiddleware"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// DefaultMaxBodyBytes caps invoke request bodies.
const DefaultMaxBodyBytes = 10 << 20

// Invoker runs a named command with the request's context.
// *bridge.CommandTable implements it.
type Invoker interface {
	InvokeContext(ctx context.Context, name, request string) (string, error)
}

// RouteRegistrar mounts extra routes, e.g. health probes.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Options configures NewRouter.
type Options struct {
	Commands     Invoker
	Events       http.Handler // websocket stream, optional
	Health       RouteRegistrar
	Middleware   httpmiddleware.Config
	MaxBodyBytes int64
	Logger       logger.Logger
}

// InvokeRequest is the body of POST /invoke/{command}.
type InvokeRequest struct {
	Request *string `json:"request"`
}

// ErrorResponse is returned for transport-level failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the chi router.
func NewRouter(opts Options) chi.Router {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	httpmiddleware.ApplyToRouter(r, opts.Middleware)

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	httpmiddleware.TimeoutGroup(r, opts.Middleware, func(r chi.Router) {
		if opts.Health != nil {
			opts.Health.RegisterRoutes(r)
		}
		r.Post("/invoke/{command}", invokeHandler(opts.Commands, opts.MaxBodyBytes, opts.Logger))
	})

	return r
}

func invokeHandler(commands Invoker, maxBody int64, base logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.GetLoggerFromContext(r.Context(), base)
		command := chi.URLParam(r, "command")

		var body InvokeRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
		if err := dec.Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid body: " + err.Error()})
			return
		}
		if body.Request == nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: `body must contain a "request" string`})
			return
		}

		response, err := commands.InvokeContext(r.Context(), command, *body.Request)
		if errors.Is(err, bridge.ErrUnknownCommand) {
			log.Warn("Unknown command invoked", logger.CommandField(command))
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		if err != nil {
			log.Error("Command failed", logger.CommandField(command), logger.ErrorField(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
