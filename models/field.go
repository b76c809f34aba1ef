package models

import (
	"encoding/json"
	"fmt"
)

// UnknownMarker is rendered for any field that could not be resolved.
const UnknownMarker = "unknown"

// AbsentMarker is rendered for a thumbnail that was never stored.
const AbsentMarker = "absent"

// Field holds a resolved value or an explicit absence.
type Field[T any] struct {
	val T
	ok  bool
}

// Known wraps a resolved value.
func Known[T any](v T) Field[T] {
	return Field[T]{val: v, ok: true}
}

// Unknown returns an unresolved field.
func Unknown[T any]() Field[T] {
	return Field[T]{}
}

// FromPtr is Known(*p) for non-nil p and Unknown otherwise.
func FromPtr[T any](p *T) Field[T] {
	if p == nil {
		return Unknown[T]()
	}
	return Known(*p)
}

// IsKnown reports whether the field was resolved.
func (f Field[T]) IsKnown() bool { return f.ok }

// Get returns the value and whether it was resolved.
func (f Field[T]) Get() (T, bool) { return f.val, f.ok }

// Or returns the value or fallback when unresolved.
func (f Field[T]) Or(fallback T) T {
	if !f.ok {
		return fallback
	}
	return f.val
}

// String renders the value, or UnknownMarker.
func (f Field[T]) String() string {
	return f.StringOr(UnknownMarker)
}

// StringOr renders the value, or marker when unresolved.
func (f Field[T]) StringOr(marker string) string {
	if !f.ok {
		return marker
	}
	return fmt.Sprint(f.val)
}

// MarshalJSON encodes the value, or the unknown marker string.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.ok {
		return json.Marshal(UnknownMarker)
	}
	return json.Marshal(f.val)
}
