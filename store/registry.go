package store

import (
	"context"
	"slices"
	"sync"
)

// ListenerID identifies a subscription. Ids start at 1, increase strictly
// and are never reused by a store.
type ListenerID uint64

// ListenerFunc receives a copy of the state after a change. The ctx carries
// the in-flight update, so Commit or SetState called with it are queued
// until the current notification pass has finished.
type ListenerFunc func(ctx context.Context, s State)

// Listener describes a subscription. An empty Keys watches every change.
type Listener struct {
	Keys     []string
	Callback ListenerFunc
}

type subscription struct {
	id       ListenerID
	keys     []string
	callback ListenerFunc
}

// registry files each subscription under one bucket per watched key, or in
// the watch-all set when it has no keys.
type registry struct {
	mu      sync.RWMutex
	nextID  ListenerID
	entries map[ListenerID]*subscription
	buckets map[string]map[ListenerID]struct{}
	all     map[ListenerID]struct{}
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[ListenerID]*subscription),
		buckets: make(map[string]map[ListenerID]struct{}),
		all:     make(map[ListenerID]struct{}),
	}
}

func (r *registry) add(l Listener) ListenerID {
	keys := slices.Clone(l.Keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := &subscription{id: r.nextID, keys: keys, callback: l.Callback}
	r.entries[sub.id] = sub

	if len(keys) == 0 {
		r.all[sub.id] = struct{}{}
		return sub.id
	}
	for _, key := range keys {
		bucket, ok := r.buckets[key]
		if !ok {
			bucket = make(map[ListenerID]struct{})
			r.buckets[key] = bucket
		}
		bucket[sub.id] = struct{}{}
	}
	return sub.id
}

func (r *registry) remove(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.entries[id]
	if !ok {
		return false
	}
	delete(r.entries, id)
	delete(r.all, id)

	for _, key := range sub.keys {
		bucket := r.buckets[key]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(r.buckets, key)
		}
	}
	return true
}

func (r *registry) active(id ListenerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[id]
	return ok
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// match selects the subscriptions to notify, each once, in registration
// order. With everyone set, keys are ignored and every subscription is
// returned; otherwise the watch-all set plus the buckets of keys.
func (r *registry) match(keys []string, everyone bool) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []ListenerID
	if everyone {
		ids = make([]ListenerID, 0, len(r.entries))
		for id := range r.entries {
			ids = append(ids, id)
		}
	} else {
		seen := make(map[ListenerID]struct{}, len(r.all))
		for id := range r.all {
			seen[id] = struct{}{}
		}
		for _, key := range keys {
			for id := range r.buckets[key] {
				seen[id] = struct{}{}
			}
		}
		ids = make([]ListenerID, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	subs := make([]*subscription, len(ids))
	for i, id := range ids {
		subs[i] = r.entries[id]
	}
	return subs
}
