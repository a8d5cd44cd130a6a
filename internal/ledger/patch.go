package ledger

import (
	"bytes"
	"encoding/json"
)

// Patch is an optional request field that distinguishes "absent" from
// "explicit null". Absent leaves the target untouched, null clears it, a
// value replaces it. This replaces the original service's sent-fields
// sentinel with an explicit presence flag.
type Patch[T any] struct {
	set   bool
	null  bool
	value T
}

func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.set = true
	if bytes.Equal(data, []byte("null")) {
		p.null = true
		return nil
	}
	return json.Unmarshal(data, &p.value)
}

func (p Patch[T]) MarshalJSON() ([]byte, error) {
	if !p.set || p.null {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

// Set reports whether the field appeared in the request at all.
func (p Patch[T]) Set() bool { return p.set }

// Null reports whether the field was sent as an explicit null.
func (p Patch[T]) Null() bool { return p.set && p.null }

// Value returns the decoded value; meaningful only when Set and not Null.
func (p Patch[T]) Value() T { return p.value }

// Get returns the value and whether a non-null value was sent.
func (p Patch[T]) Get() (T, bool) {
	var zero T
	if !p.set || p.null {
		return zero, false
	}
	return p.value, true
}

// PatchOf builds a set patch, mainly for tests.
func PatchOf[T any](v T) Patch[T] {
	return Patch[T]{set: true, value: v}
}

// NullPatch builds an explicit-null patch, mainly for tests.
func NullPatch[T any]() Patch[T] {
	return Patch[T]{set: true, null: true}
}
