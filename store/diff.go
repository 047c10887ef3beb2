package store

import (
	"reflect"
	"slices"
)

// Diff returns, in sorted order, the keys of before whose values differ in
// after.
//
// The comparison is shallow. Scalars are compared by value, while maps,
// slices, funcs, channels and pointers are compared by reference, so
// mutating a nested map in place without storing a new one is not reported.
// Structs and arrays are compared field by field (element by element) with
// the same rules; references inside them are never followed. A key removed
// in after is reported; a key that exists only in after is not.
func Diff(before, after State) []string {
	changed := make([]string, 0)
	for key, prev := range before {
		next, ok := after[key]
		if !ok || !same(prev, next) {
			changed = append(changed, key)
		}
	}
	slices.Sort(changed)
	return changed
}

func same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return sameValue(reflect.ValueOf(a), reflect.ValueOf(b))
}

func sameValue(a, b reflect.Value) bool {
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		return a.Pointer() == b.Pointer() && a.Len() == b.Len()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return sameValue(a.Elem(), b.Elem())
	case reflect.Struct:
		for i := range a.NumField() {
			if !sameValue(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := range a.Len() {
			if !sameValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return a.Equal(b)
	}
}
