package store

import (
	"context"

	"github.com/tailored-agentic-units/restore/observability"
)

// MiddlewareContext is what a middleware sees for one dispatch. Payload is
// the payload as returned by the previous middleware in the chain.
type MiddlewareContext struct {
	Store      *Store
	ActionName string
	Payload    any
}

// Middleware transforms an action payload before the action runs. The
// returned value becomes the payload for the next middleware, and the last
// one's return value is what the action receives.
type Middleware func(ctx context.Context, mc MiddlewareContext) (any, error)

// Dispatch runs the named action through the middleware chain and returns
// the action's result.
//
// An unknown name returns an error wrapping ErrHandlerNotFound without
// running any middleware. Middleware and action errors are returned as a
// *HandlerError. Dispatch does not diff or notify; the action does that by
// calling Commit.
func (s *Store) Dispatch(ctx context.Context, name string, payload any) (any, error) {
	action, ok := s.actions.get(name)
	if !ok {
		s.emit(ctx, EventHandlerNotFound, observability.LevelWarning, map[string]any{
			"kind": string(KindAction),
			"name": name,
		})
		return nil, notFound(KindAction, name)
	}

	s.emit(ctx, EventDispatchStart, observability.LevelVerbose, map[string]any{
		"action": name,
	})

	payload, err := s.applyMiddleware(ctx, name, payload)
	if err != nil {
		return nil, err
	}

	result, err := action(ctx, s, payload)
	if err != nil {
		s.emit(ctx, EventHandlerFailure, observability.LevelError, map[string]any{
			"kind":  string(KindAction),
			"name":  name,
			"error": err.Error(),
		})
		return nil, &HandlerError{Kind: KindAction, Name: name, Err: err}
	}

	s.emit(ctx, EventDispatchComplete, observability.LevelInfo, map[string]any{
		"action": name,
	})
	return result, nil
}

func (s *Store) applyMiddleware(ctx context.Context, name string, payload any) (any, error) {
	for i, mw := range s.middleware {
		next, err := mw(ctx, MiddlewareContext{
			Store:      s,
			ActionName: name,
			Payload:    payload,
		})
		if err != nil {
			s.emit(ctx, EventHandlerFailure, observability.LevelError, map[string]any{
				"kind":  string(KindMiddleware),
				"name":  name,
				"index": i,
				"error": err.Error(),
			})
			return nil, &HandlerError{Kind: KindMiddleware, Name: name, Index: i, Err: err}
		}

		s.emit(ctx, EventMiddlewareApply, observability.LevelVerbose, map[string]any{
			"action": name,
			"index":  i,
		})
		payload = next
	}
	return payload, nil
}
