package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/restore/observability"
)

// Action orchestrates side effects and usually ends in one or more Commit
// calls. Its return value is the result of Dispatch.
type Action func(ctx context.Context, s *Store, payload any) (any, error)

// Mutation changes state. s is a draft private to one Commit; it may be
// modified in place and is published only if the mutation returns nil.
type Mutation func(ctx context.Context, s State, payload any) error

// Option configures a Store during New. Registration errors are collected
// and returned by New.
type Option func(*Store)

// WithAction registers a named action.
func WithAction(name string, action Action) Option {
	return func(s *Store) {
		s.fail(s.actions.register(name, action, action == nil))
	}
}

// WithActions registers every action in the map.
func WithActions(actions map[string]Action) Option {
	return func(s *Store) {
		for name, action := range actions {
			WithAction(name, action)(s)
		}
	}
}

// WithMutation registers a named mutation.
func WithMutation(name string, mutation Mutation) Option {
	return func(s *Store) {
		s.fail(s.mutations.register(name, mutation, mutation == nil))
	}
}

// WithMutations registers every mutation in the map.
func WithMutations(mutations map[string]Mutation) Option {
	return func(s *Store) {
		for name, mutation := range mutations {
			WithMutation(name, mutation)(s)
		}
	}
}

// WithMiddleware appends middleware to the dispatch chain. The chain runs
// in the order the middleware were added.
func WithMiddleware(middleware ...Middleware) Option {
	return func(s *Store) {
		for _, mw := range middleware {
			if mw == nil {
				s.fail(fmt.Errorf("%w: %s %d", ErrNilHandler, KindMiddleware, len(s.middleware)))
				continue
			}
			s.middleware = append(s.middleware, mw)
		}
	}
}

// WithObserver overrides the observer named in the config.
func WithObserver(o observability.Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithWaitWarning sets how long an update may wait for the write lock
// before EventUpdateBlocked is emitted. Zero or less disables the warning.
func WithWaitWarning(d time.Duration) Option {
	return func(s *Store) { s.waitWarning = d }
}

// WithState overrides the initial state from the config.
func WithState(state State) Option {
	return func(s *Store) { s.initial = state }
}

// DefaultWaitWarning is the wait warning used unless WithWaitWarning is
// given.
const DefaultWaitWarning = 5 * time.Second

// Store is an observable state container. All methods are safe for
// concurrent use.
type Store struct {
	id       string
	name     string
	observer observability.Observer

	cell      *cell
	listeners *registry

	actions    handlers[Action]
	mutations  handlers[Mutation]
	middleware []Middleware

	// writeMu serializes state updates: apply, diff and notify.
	writeMu     sync.Mutex
	waitWarning time.Duration

	// queueMu guards the running update and the calls queued behind it.
	queueMu  sync.Mutex
	current  *pass
	deferred []func() error

	initial State
	initErr error
}

// New creates a Store from configuration. Options are applied after the
// config is read and may override the observer or the initial state.
//
//	s, err := store.New(&cfg,
//	    store.WithMutation("increment", increment),
//	    store.WithAction("increment", incrementAction),
//	)
func New(cfg *Config, opts ...Option) (*Store, error) {
	s := &Store{
		id:        uuid.Must(uuid.NewV7()).String(),
		name:      cfg.Name,
		listeners: newRegistry(),
		actions:   newHandlers[Action](KindAction),
		mutations: newHandlers[Mutation](KindMutation),
		initial:   cfg.State,

		waitWarning: DefaultWaitWarning,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.initErr != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", s.initErr)
	}
	if s.initial == nil {
		return nil, ErrNilState
	}

	if s.observer == nil {
		name := cfg.Observer
		if name == "" {
			name = "slog"
		}
		obs, err := observability.GetObserver(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		s.observer = obs
	}

	s.cell = newCell(s.initial)
	s.initial = nil

	s.emit(context.Background(), EventStoreCreate, observability.LevelVerbose, map[string]any{
		"keys":       len(s.cell.peek()),
		"actions":    s.actions.names(),
		"mutations":  s.mutations.names(),
		"middleware": len(s.middleware),
	})

	return s, nil
}

// ID returns the store's unique UUIDv7 identifier.
func (s *Store) ID() string {
	return s.id
}

// Name returns the configured store name.
func (s *Store) Name() string {
	return s.name
}

// GetState returns a shallow copy of the current state. It never blocks.
func (s *Store) GetState() State {
	return s.cell.get()
}

// Subscribe registers a listener and returns its id.
func (s *Store) Subscribe(l Listener) (ListenerID, error) {
	if l.Callback == nil {
		return 0, ErrNilListener
	}

	id := s.listeners.add(l)
	s.emit(context.Background(), EventListenerAdd, observability.LevelVerbose, map[string]any{
		"listener_id": uint64(id),
		"keys":        l.Keys,
	})
	return id, nil
}

// Unsubscribe removes a listener from every key it watches. It reports
// whether the id was registered; unknown or already removed ids are
// ignored.
func (s *Store) Unsubscribe(id ListenerID) bool {
	removed := s.listeners.remove(id)
	if removed {
		s.emit(context.Background(), EventListenerRemove, observability.LevelVerbose, map[string]any{
			"listener_id": uint64(id),
		})
	}
	return removed
}

// Len returns the number of registered listeners.
func (s *Store) Len() int {
	return s.listeners.len()
}

// Notify invokes listeners with the current state. With no keys every
// listener runs once; otherwise the watch-all listeners and the listeners
// of any given key run, each at most once. Notify never fails: a panicking
// listener is reported to the observer and the rest still run.
func (s *Store) Notify(ctx context.Context, keys ...string) {
	s.deliver(ctx, s.listeners.match(keys, len(keys) == 0), keys, s.cell.peek())
}

func (s *Store) deliver(ctx context.Context, subs []*subscription, keys []string, state State) {
	invoked := 0
	for _, sub := range subs {
		// Listeners removed earlier in this pass must not run.
		if !s.listeners.active(sub.id) {
			continue
		}
		s.invoke(ctx, sub, state.Clone())
		invoked++
	}

	s.emit(ctx, EventNotify, observability.LevelVerbose, map[string]any{
		"keys":      keys,
		"listeners": invoked,
	})
}

func (s *Store) invoke(ctx context.Context, sub *subscription, state State) {
	defer func() {
		if r := recover(); r != nil {
			s.emit(ctx, EventListenerPanic, observability.LevelError, map[string]any{
				"listener_id": uint64(sub.id),
				"panic":       fmt.Sprint(r),
			})
		}
	}()
	sub.callback(ctx, state)
}

func (s *Store) fail(err error) {
	if err != nil {
		s.initErr = errors.Join(s.initErr, err)
	}
}

func (s *Store) emit(ctx context.Context, t observability.EventType, level observability.Level, data map[string]any) {
	data["store_id"] = s.id
	s.observer.OnEvent(ctx, observability.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    s.name,
		Data:      data,
	})
}
