package store

import (
	"maps"
	"sync/atomic"
)

// State is the store's key-value snapshot. Values are compared one level
// deep; see Diff.
type State map[string]any

// Clone returns a shallow copy of s. Cloning a nil State yields an empty,
// non-nil State.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// Get returns the value stored under key and whether it exists.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Keys returns the keys of s in unspecified order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

// cell owns the live state. The stored map is never mutated after it is
// published, so loads need no lock and never observe a partial write.
type cell struct {
	current atomic.Pointer[State]
}

func newCell(initial State) *cell {
	c := &cell{}
	c.replace(initial)
	return c
}

// get returns a copy the caller may modify freely.
func (c *cell) get() State {
	return c.peek().Clone()
}

// peek returns the published map itself; callers must treat it as read-only.
func (c *cell) peek() State {
	return *c.current.Load()
}

func (c *cell) replace(s State) {
	next := s.Clone()
	c.current.Store(&next)
}
