// Package store provides a small observable state container.
//
// A Store holds one State, a map from string keys to values. The state is
// changed only by named mutations (Commit) or replaced wholesale (SetState),
// and listeners registered with Subscribe are told about changes to the keys
// they watch.
//
// # Construction
//
// Data comes from a Config; handlers are code and come from Options:
//
//	cfg := store.DefaultConfig()
//	cfg.State = store.State{"count": 0, "message": "hi"}
//
//	s, err := store.New(&cfg,
//	    store.WithMutation("increment", func(ctx context.Context, st store.State, p any) error {
//	        st["count"] = st["count"].(int) + p.(int)
//	        return nil
//	    }),
//	    store.WithAction("increment", func(ctx context.Context, s *store.Store, p any) (any, error) {
//	        return nil, s.Commit(ctx, "increment", p)
//	    }),
//	)
//
// Handler names are validated up front: an empty or duplicate name fails New.
//
// # Listeners
//
// A Listener with no Keys watches every change. A Listener with Keys is
// invoked after a Commit that changed at least one of them, once per commit
// no matter how many of its keys changed:
//
//	id, _ := s.Subscribe(store.Listener{
//	    Keys:     []string{"count"},
//	    Callback: func(ctx context.Context, st store.State) { fmt.Println(st["count"]) },
//	})
//	defer s.Unsubscribe(id)
//
// Change detection is shallow; see Diff.
//
// # Dispatch
//
// Dispatch runs the middleware chain in order, each middleware returning the
// payload for the next, then calls the action with the final payload and
// returns its result.
//
// # Updates and reentrancy
//
// Commit and SetState are serialized: one update applies, diffs and notifies
// before the next starts. Handlers and listeners receive a ctx tied to the
// running update; a Commit or SetState made with that ctx is queued and runs
// right after the current notification pass. Calling Commit from a mutation
// or listener with an unrelated ctx (e.g. context.Background()) blocks on
// the update that is running it and deadlocks; after the wait warning
// (WithWaitWarning) an EventUpdateBlocked warning reports the stuck call. A
// ctx saved by a handler and used after its update has finished queues
// nowhere and simply waits its turn.
package store
