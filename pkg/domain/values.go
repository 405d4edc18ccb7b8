// Package domain defines the value-level primitives shared across the
// publish-instance core: deep copy and equality helpers for JSON-shaped data
// and the recursive change-tracking record built on top of them.
package domain

import "reflect"

// DeepCopy clones JSON-shaped values (maps, slices, scalars) so callers can
// hold a snapshot without sharing mutable state. Unknown types are returned
// as-is; values stored in instances are expected to be JSON parsable.
func DeepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(typed))
		for key, sub := range typed {
			cloned[key] = DeepCopy(sub)
		}
		return cloned
	case []any:
		cloned := make([]any, len(typed))
		for i, sub := range typed {
			cloned[i] = DeepCopy(sub)
		}
		return cloned
	default:
		return value
	}
}

// DeepCopyMap clones a string-keyed mapping. Nil input yields an empty map.
func DeepCopyMap(value map[string]any) map[string]any {
	cloned := make(map[string]any, len(value))
	for key, sub := range value {
		cloned[key] = DeepCopy(sub)
	}
	return cloned
}

// DeepEqual reports whether two JSON-shaped values are structurally equal.
func DeepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// AsMap reports whether the value is a string-keyed mapping and returns it.
func AsMap(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok
}
