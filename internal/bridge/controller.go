package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Request is the JSON the front-end sends through dotnet_request.
type Request struct {
	Controller string          `json:"controller"`
	Action     string          `json:"action"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Response is the JSON returned to the front-end. ErrorMessage is set on
// failure; Data carries the action result and is omitted when nil.
type Response struct {
	ErrorMessage string `json:"errorMessage,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// ActionFunc handles one action. data is the raw "data" field and may be empty.
type ActionFunc func(ctx context.Context, data json.RawMessage) (any, error)

// Controller groups actions under a name.
type Controller interface {
	Name() string
	Actions() map[string]ActionFunc
}

// Action adapts a typed handler into an ActionFunc. Missing or null data
// decodes to the zero value of T.
func Action[T any](fn func(ctx context.Context, req T) (any, error)) ActionFunc {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		var req T
		if err := DecodeData(data, &req); err != nil {
			return nil, err
		}
		return fn(ctx, req)
	}
}

// NoArgs adapts a handler that ignores the request data.
func NoArgs(fn func(ctx context.Context) (any, error)) ActionFunc {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		return fn(ctx)
	}
}

// DecodeData unmarshals data into v, treating empty and null as "no data".
func DecodeData(data json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// ControllerFunc builds a Controller from a name and action map.
type ControllerFunc struct {
	ControllerName string
	ActionMap      map[string]ActionFunc
}

// Name returns the controller name.
func (c ControllerFunc) Name() string { return c.ControllerName }

// Actions returns the action map.
func (c ControllerFunc) Actions() map[string]ActionFunc { return c.ActionMap }
