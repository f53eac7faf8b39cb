// Package bridge implements the request bridge between the front-end and
// the controllers registered by plugins.
//
// The front-end calls a single command, dotnet_request, with an opaque
// string. The command hands the string to a Delegate unchanged and returns
// the Delegate's answer unchanged. Host is the Delegate used in production:
// it decodes {"controller","action","data"} and routes to a registered
// Controller, answering {"errorMessage"} or {"data"}.
package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// CommandDotnetRequest is the name the front-end invokes.
const CommandDotnetRequest = "dotnet_request"

// Delegate performs the real request processing behind a command.
type Delegate interface {
	ProcessRequest(request string) string
}

// ContextDelegate is a Delegate that also takes the caller's context.
type ContextDelegate interface {
	Delegate
	ProcessRequestContext(ctx context.Context, request string) string
}

// CommandFunc is a host-invokable command: one string in, one string out.
type CommandFunc func(request string) string

// ContextCommandFunc is a CommandFunc that also receives the caller's
// context, so correlation ids and cancellation reach the delegate.
type ContextCommandFunc func(ctx context.Context, request string) string

// WithContext adapts f; the context is ignored.
func (f CommandFunc) WithContext() ContextCommandFunc {
	if f == nil {
		return nil
	}
	return func(_ context.Context, request string) string { return f(request) }
}

// DotnetRequest returns the dotnet_request command bound to d. It does not
// inspect, validate or transform the request or the response.
func DotnetRequest(d Delegate) CommandFunc {
	return func(request string) string {
		return d.ProcessRequest(request)
	}
}

// DotnetRequestContext is DotnetRequest for a delegate that accepts the
// caller's context.
func DotnetRequestContext(d ContextDelegate) ContextCommandFunc {
	return func(ctx context.Context, request string) string {
		return d.ProcessRequestContext(ctx, request)
	}
}

// CommandTable maps command names to their functions.
type CommandTable struct {
	mu       sync.RWMutex
	commands map[string]ContextCommandFunc
}

// NewCommandTable creates an empty table.
func NewCommandTable() *CommandTable {
	return &CommandTable{commands: make(map[string]ContextCommandFunc)}
}

// Register adds a command. Names are unique and case-sensitive.
func (t *CommandTable) Register(name string, fn CommandFunc) error {
	return t.RegisterContext(name, fn.WithContext())
}

// RegisterContext adds a command that receives the caller's context.
func (t *CommandTable) RegisterContext(name string, fn ContextCommandFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("command name and function are required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.commands[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}
	t.commands[name] = fn
	return nil
}

// Invoke runs the named command. An unknown name never reaches a delegate.
func (t *CommandTable) Invoke(name, request string) (string, error) {
	return t.InvokeContext(context.Background(), name, request)
}

// InvokeContext is Invoke with the caller's context.
func (t *CommandTable) InvokeContext(ctx context.Context, name, request string) (string, error) {
	t.mu.RLock()
	fn, ok := t.commands[name]
	t.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return fn(ctx, request), nil
}

// Names lists registered commands in sorted order.
func (t *CommandTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.commands))
	for name := range t.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
