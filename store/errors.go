package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for store construction and the handler pipelines.
var (
	ErrHandlerNotFound = errors.New("handler not found")
	ErrHandlerFailure  = errors.New("handler failed")
	ErrAlreadyExists   = errors.New("handler already registered")
	ErrEmptyName       = errors.New("handler name is empty")
	ErrNilHandler      = errors.New("handler is nil")
	ErrNilState        = errors.New("initial state is nil")
	ErrNilListener     = errors.New("listener callback is nil")
)

// HandlerKind identifies which pipeline stage produced a HandlerError.
type HandlerKind string

const (
	KindAction     HandlerKind = "action"
	KindMutation   HandlerKind = "mutation"
	KindMiddleware HandlerKind = "middleware"
)

// HandlerError reports a failed action, mutation or middleware.
//
// For middleware failures Name is the action being dispatched and Index is
// the position of the failing middleware in the chain.
type HandlerError struct {
	Kind  HandlerKind
	Name  string
	Index int
	Err   error
}

func (e *HandlerError) Error() string {
	if e.Kind == KindMiddleware {
		return fmt.Sprintf("middleware %d for action %s failed: %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Name, e.Err)
}

// Unwrap exposes the handler's own error to errors.Is and errors.As.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrHandlerFailure.
func (e *HandlerError) Is(target error) bool {
	return target == ErrHandlerFailure
}

func notFound(kind HandlerKind, name string) error {
	return fmt.Errorf("%w: %s %s", ErrHandlerNotFound, kind, name)
}
