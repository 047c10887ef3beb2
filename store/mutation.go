package store

import (
	"context"
	"errors"
	"time"

	"github.com/tailored-agentic-units/restore/observability"
)

// updateKey carries the *pass of the update a ctx was handed out by.
type updateKey struct{}

// pass identifies one running update. A ctx carrying it only queues while
// that same update is still draining.
type pass struct {
	store *Store
}

// Commit runs the named mutation against a draft of the current state,
// publishes the draft, and notifies the watch-all listeners plus the
// listeners of every key that changed.
//
// An unknown name returns an error wrapping ErrHandlerNotFound and leaves
// the state untouched. A mutation error is returned as a *HandlerError; the
// draft is discarded and nobody is notified.
//
// Commit called with a ctx handed out by an update that is still running (a
// mutation's or a listener's ctx) is queued behind that update and returns
// nil; its error, if any, is returned by the call that owns the update. A
// ctx kept past the end of its update is treated like any other ctx.
func (s *Store) Commit(ctx context.Context, name string, payload any) error {
	mutation, ok := s.mutations.get(name)
	if !ok {
		s.emit(ctx, EventHandlerNotFound, observability.LevelWarning, map[string]any{
			"kind": string(KindMutation),
			"name": name,
		})
		return notFound(KindMutation, name)
	}

	return s.update(ctx, "commit", func(ctx context.Context) error {
		return s.commit(ctx, name, mutation, payload)
	})
}

// SetState replaces the whole state with a copy of state and notifies every
// listener, whether or not anything changed. It is serialized with Commit
// the same way.
func (s *Store) SetState(ctx context.Context, state State) error {
	if state == nil {
		return ErrNilState
	}
	next := state.Clone()

	return s.update(ctx, "set_state", func(ctx context.Context) error {
		s.cell.replace(next)
		current := s.cell.peek()

		s.emit(ctx, EventStateReplace, observability.LevelInfo, map[string]any{
			"keys": len(current),
		})
		s.deliver(ctx, s.listeners.match(nil, true), nil, current)
		return nil
	})
}

func (s *Store) commit(ctx context.Context, name string, mutation Mutation, payload any) error {
	before := s.cell.peek()
	s.emit(ctx, EventCommitStart, observability.LevelVerbose, map[string]any{
		"mutation": name,
	})

	draft := before.Clone()
	if err := mutation(ctx, draft, payload); err != nil {
		s.emit(ctx, EventHandlerFailure, observability.LevelError, map[string]any{
			"kind":  string(KindMutation),
			"name":  name,
			"error": err.Error(),
		})
		return &HandlerError{Kind: KindMutation, Name: name, Err: err}
	}

	// The handler may still hold draft; publish a copy of it.
	s.cell.replace(draft)
	after := s.cell.peek()
	changed := Diff(before, after)

	s.emit(ctx, EventCommitComplete, observability.LevelInfo, map[string]any{
		"mutation": name,
		"changed":  changed,
	})
	s.deliver(ctx, s.listeners.match(changed, false), changed, after)
	return nil
}

// update runs fn while holding the write lock, then drains whatever was
// queued by reentrant calls during fn, in arrival order. Errors from fn and
// from the drained calls are joined.
func (s *Store) update(ctx context.Context, op string, fn func(context.Context) error) error {
	if p, _ := ctx.Value(updateKey{}).(*pass); p != nil && s.enqueue(p, func() error { return fn(ctx) }) {
		s.emit(ctx, EventUpdateDeferred, observability.LevelVerbose, map[string]any{
			"operation": op,
		})
		return nil
	}

	s.lock(ctx, op)
	defer s.writeMu.Unlock()

	p := &pass{store: s}
	s.queueMu.Lock()
	s.current = p
	s.queueMu.Unlock()
	defer s.settle()

	err := fn(context.WithValue(ctx, updateKey{}, p))
	for next := s.dequeue(); next != nil; next = s.dequeue() {
		err = errors.Join(err, next())
	}
	return err
}

// lock acquires the write lock. If another update holds it for longer than
// the configured wait warning, EventUpdateBlocked is emitted while waiting.
func (s *Store) lock(ctx context.Context, op string) {
	if s.writeMu.TryLock() {
		return
	}
	if s.waitWarning > 0 {
		timer := time.AfterFunc(s.waitWarning, func() {
			s.emit(ctx, EventUpdateBlocked, observability.LevelWarning, map[string]any{
				"operation": op,
				"waited":    s.waitWarning.String(),
			})
		})
		defer timer.Stop()
	}
	s.writeMu.Lock()
}

// enqueue queues fn if p is the update currently in flight.
func (s *Store) enqueue(p *pass, fn func() error) bool {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if s.current != p {
		return false
	}
	s.deferred = append(s.deferred, fn)
	return true
}

// dequeue pops the next queued call. When the queue is empty the update is
// marked finished under the same lock, so nothing can be queued behind an
// update that has stopped draining.
func (s *Store) dequeue() func() error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if len(s.deferred) == 0 {
		s.current = nil
		return nil
	}
	next := s.deferred[0]
	s.deferred = s.deferred[1:]
	return next
}

// settle clears the queue if fn panicked out of update.
func (s *Store) settle() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	s.current = nil
	s.deferred = nil
}
