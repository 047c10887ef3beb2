package store

import (
	"fmt"
	"slices"
)

// handlers is a name-keyed dispatch table. It is filled while options are
// applied in New and is read-only afterwards, so lookups take no lock.
type handlers[H any] struct {
	kind    HandlerKind
	entries map[string]H
}

func newHandlers[H any](kind HandlerKind) handlers[H] {
	return handlers[H]{kind: kind, entries: make(map[string]H)}
}

func (t handlers[H]) register(name string, handler H, isNil bool) error {
	if name == "" {
		return fmt.Errorf("%w: %s", ErrEmptyName, t.kind)
	}
	if isNil {
		return fmt.Errorf("%w: %s %s", ErrNilHandler, t.kind, name)
	}
	if _, exists := t.entries[name]; exists {
		return fmt.Errorf("%w: %s %s", ErrAlreadyExists, t.kind, name)
	}

	t.entries[name] = handler
	return nil
}

func (t handlers[H]) get(name string) (H, bool) {
	h, ok := t.entries[name]
	return h, ok
}

func (t handlers[H]) names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
