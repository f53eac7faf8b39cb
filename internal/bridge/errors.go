package bridge

import "errors"

var (
	// ErrUnknownCommand is returned by CommandTable.Invoke for unregistered names.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidRequest marks requests that are not valid bridge JSON or whose
	// data does not decode into the action's argument.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnknownController is reported when no controller matches the request.
	ErrUnknownController = errors.New("unknown controller")
	// ErrUnknownAction is reported when the controller has no such action.
	ErrUnknownAction = errors.New("unknown action")
	// ErrDuplicateController is returned when registering a name twice.
	ErrDuplicateController = errors.New("controller already registered")
	// ErrPanic wraps a recovered panic raised by an action.
	ErrPanic = errors.New("action panicked")
)
