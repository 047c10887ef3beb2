package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tailored-agentic-units/restore/store"
)

func TestDispatch_Increment(t *testing.T) {
	s, _ := newCounter(t)
	count, _ := subscribe(t, s, "count")
	other, _ := subscribe(t, s, "other")

	if _, err := s.Dispatch(context.Background(), "increment", 1); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	if count.calls() != 1 {
		t.Errorf("count listener fired %d times, want 1", count.calls())
	}
	if other.calls() != 0 {
		t.Errorf("other listener fired %d times, want 0", other.calls())
	}
	if got := s.GetState()["count"]; got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
}

func TestDispatch_WatchAllListeners(t *testing.T) {
	cfg := store.Config{Observer: "noop", State: store.State{"count": 0}}
	s, err := store.New(&cfg,
		store.WithMutation("increment", increment),
		store.WithAction("increment", incrementAction),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	first, _ := subscribe(t, s)
	second, _ := subscribe(t, s)

	if _, err := s.Dispatch(context.Background(), "increment", 1); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	if first.calls() != 1 || second.calls() != 1 {
		t.Errorf("watch-all listeners fired %d and %d times, want 1 each", first.calls(), second.calls())
	}
}

func TestDispatch_ReturnsActionResult(t *testing.T) {
	s, _ := newCounter(t, store.WithAction("read", func(_ context.Context, s *store.Store, payload any) (any, error) {
		return fmt.Sprintf("%s:%v", payload, s.GetState()["count"]), nil
	}))

	got, err := s.Dispatch(context.Background(), "read", "count")
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if got != "count:0" {
		t.Errorf("Dispatch() = %v, want %q", got, "count:0")
	}
}

func TestDispatch_NotFound(t *testing.T) {
	ran := false
	s, rec := newCounter(t, store.WithMiddleware(func(_ context.Context, mc store.MiddlewareContext) (any, error) {
		ran = true
		return mc.Payload, nil
	}))
	all, _ := subscribe(t, s)
	before := s.GetState()

	result, err := s.Dispatch(context.Background(), "missing", 1)
	if !errors.Is(err, store.ErrHandlerNotFound) {
		t.Errorf("Dispatch() error = %v, want %v", err, store.ErrHandlerNotFound)
	}
	if result != nil {
		t.Errorf("Dispatch() result = %v, want nil", result)
	}
	if ran {
		t.Error("middleware ran for an unknown action")
	}
	if diff := cmp.Diff(before, s.GetState()); diff != "" {
		t.Errorf("state changed (-before +after):\n%s", diff)
	}
	if all.calls() != 0 {
		t.Errorf("listener fired %d times, want 0", all.calls())
	}
	if got := rec.Count(store.EventHandlerNotFound); got != 1 {
		t.Errorf("emitted %d %s events, want 1", got, store.EventHandlerNotFound)
	}
}

func TestDispatch_MiddlewareTransformsPayloadInOrder(t *testing.T) {
	var seen []string
	double := func(_ context.Context, mc store.MiddlewareContext) (any, error) {
		seen = append(seen, fmt.Sprintf("double(%v)", mc.Payload))
		return mc.Payload.(int) * 2, nil
	}
	addOne := func(_ context.Context, mc store.MiddlewareContext) (any, error) {
		seen = append(seen, fmt.Sprintf("addOne(%v)", mc.Payload))
		return mc.Payload.(int) + 1, nil
	}

	s, _ := newCounter(t, store.WithMiddleware(double, addOne))

	if _, err := s.Dispatch(context.Background(), "increment", 3); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	if diff := cmp.Diff([]string{"double(3)", "addOne(6)"}, seen); diff != "" {
		t.Errorf("middleware order mismatch (-want +got):\n%s", diff)
	}
	if got := s.GetState()["count"]; got != 7 {
		t.Errorf("count = %v, want 7", got)
	}
}

func TestDispatch_MiddlewareContext(t *testing.T) {
	var got store.MiddlewareContext
	var s *store.Store
	s, _ = newCounter(t, store.WithMiddleware(func(_ context.Context, mc store.MiddlewareContext) (any, error) {
		got = mc
		return mc.Payload, nil
	}))

	if _, err := s.Dispatch(context.Background(), "increment", 2); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	if got.Store != s {
		t.Error("MiddlewareContext.Store is not the dispatching store")
	}
	if got.ActionName != "increment" {
		t.Errorf("ActionName = %q, want %q", got.ActionName, "increment")
	}
	if got.Payload != 2 {
		t.Errorf("Payload = %v, want 2", got.Payload)
	}
}

func TestDispatch_MiddlewareFailure(t *testing.T) {
	denied := errors.New("denied")
	actionRan := false
	s, _ := newCounter(t,
		store.WithMiddleware(
			func(_ context.Context, mc store.MiddlewareContext) (any, error) { return mc.Payload, nil },
			func(context.Context, store.MiddlewareContext) (any, error) { return nil, denied },
		),
		store.WithAction("guarded", func(context.Context, *store.Store, any) (any, error) {
			actionRan = true
			return nil, nil
		}),
	)

	_, err := s.Dispatch(context.Background(), "guarded", nil)
	if !errors.Is(err, store.ErrHandlerFailure) || !errors.Is(err, denied) {
		t.Errorf("Dispatch() error = %v, want handler failure wrapping %v", err, denied)
	}

	var herr *store.HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("Dispatch() error is %T, want *store.HandlerError", err)
	}
	if herr.Kind != store.KindMiddleware || herr.Name != "guarded" || herr.Index != 1 {
		t.Errorf("HandlerError = {%s %s %d}, want {middleware guarded 1}", herr.Kind, herr.Name, herr.Index)
	}
	if actionRan {
		t.Error("action ran after middleware failed")
	}
}

func TestDispatch_ActionFailure(t *testing.T) {
	boom := errors.New("boom")
	s, rec := newCounter(t, store.WithAction("explode", func(context.Context, *store.Store, any) (any, error) {
		return "ignored", boom
	}))

	result, err := s.Dispatch(context.Background(), "explode", nil)
	if !errors.Is(err, store.ErrHandlerFailure) || !errors.Is(err, boom) {
		t.Errorf("Dispatch() error = %v, want handler failure wrapping %v", err, boom)
	}
	if result != nil {
		t.Errorf("Dispatch() result = %v, want nil on failure", result)
	}
	if got := rec.Count(store.EventHandlerFailure); got != 1 {
		t.Errorf("emitted %d %s events, want 1", got, store.EventHandlerFailure)
	}
}

func TestDispatch_ActionPropagatesCommitFailure(t *testing.T) {
	boom := errors.New("boom")
	s, _ := newCounter(t,
		store.WithMutation("broken", func(context.Context, store.State, any) error { return boom }),
		store.WithAction("broken", func(ctx context.Context, s *store.Store, p any) (any, error) {
			return nil, s.Commit(ctx, "broken", p)
		}),
	)

	_, err := s.Dispatch(context.Background(), "broken", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want chain containing %v", err, boom)
	}

	var herr *store.HandlerError
	if !errors.As(err, &herr) || herr.Kind != store.KindAction {
		t.Errorf("outermost HandlerError = %v, want action kind", err)
	}
}

func TestDispatch_NestedActions(t *testing.T) {
	s, _ := newCounter(t, store.WithAction("twice", func(ctx context.Context, s *store.Store, p any) (any, error) {
		for range 2 {
			if _, err := s.Dispatch(ctx, "increment", p); err != nil {
				return nil, err
			}
		}
		return s.GetState()["count"], nil
	}))
	count, _ := subscribe(t, s, "count")

	got, err := s.Dispatch(context.Background(), "twice", 2)
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if got != 4 {
		t.Errorf("Dispatch() = %v, want 4", got)
	}
	if count.calls() != 2 {
		t.Errorf("count listener fired %d times, want 2", count.calls())
	}
}

func TestDispatch_PassesContext(t *testing.T) {
	type key struct{}
	var got any
	s, _ := newCounter(t, store.WithAction("ctx", func(ctx context.Context, _ *store.Store, _ any) (any, error) {
		got = ctx.Value(key{})
		return nil, ctx.Err()
	}))

	ctx := context.WithValue(context.Background(), key{}, "value")
	if _, err := s.Dispatch(ctx, "ctx", nil); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if got != "value" {
		t.Errorf("action saw ctx value %v, want %q", got, "value")
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Dispatch(cancelled, "ctx", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Dispatch() error = %v, want context.Canceled", err)
	}
}
