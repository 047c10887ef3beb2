package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/tailored-agentic-units/restore/store"
)

// counterOptions wires the counter handlers: count and message keys,
// mutations that change them and actions that commit those mutations.
func counterOptions(logger *slog.Logger) []store.Option {
	return []store.Option{
		store.WithMutations(map[string]store.Mutation{
			"increment":   mutateCount(1),
			"decrement":   mutateCount(-1),
			"set_message": setMessage,
		}),
		store.WithActions(map[string]store.Action{
			"increment": commitAction("increment"),
			"decrement": commitAction("decrement"),
			"message":   commitAction("set_message"),
			"reset":     resetAction,
		}),
		store.WithMiddleware(logPayload(logger), coerceCount),
	}
}

func mutateCount(sign int) store.Mutation {
	return func(_ context.Context, s store.State, payload any) error {
		current, err := toInt(s["count"])
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		delta, err := toInt(payload)
		if err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		s["count"] = current + sign*delta
		return nil
	}
}

func setMessage(_ context.Context, s store.State, payload any) error {
	msg, ok := payload.(string)
	if !ok {
		return fmt.Errorf("payload: want string, got %T", payload)
	}
	s["message"] = msg
	return nil
}

func commitAction(mutation string) store.Action {
	return func(ctx context.Context, s *store.Store, payload any) (any, error) {
		if err := s.Commit(ctx, mutation, payload); err != nil {
			return nil, err
		}
		return s.GetState(), nil
	}
}

func resetAction(ctx context.Context, s *store.Store, _ any) (any, error) {
	next := store.State{"count": 0, "message": ""}
	if err := s.SetState(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func logPayload(logger *slog.Logger) store.Middleware {
	return func(ctx context.Context, mc store.MiddlewareContext) (any, error) {
		logger.DebugContext(
			ctx,
			"dispatching action",
			slog.String("action", mc.ActionName),
			slog.Any("payload", mc.Payload),
		)
		return mc.Payload, nil
	}
}

// coerceCount turns command-line payloads for count actions into ints.
func coerceCount(_ context.Context, mc store.MiddlewareContext) (any, error) {
	switch mc.ActionName {
	case "increment", "decrement":
		if mc.Payload == nil {
			return 1, nil
		}
		return toInt(mc.Payload)
	default:
		return mc.Payload, nil
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("not an integer: %v (%T)", v, v)
	}
}
