// Package tag implements the immutable key/value label set that
// measurements are recorded against. A Context is built once via a
// Builder and never mutated afterwards; propagation across process
// boundaries is somebody else's problem.
package tag

import (
	"errors"
	"unicode"
)

// MaxLen is the maximum length, in bytes, of a tag key or value.
const MaxLen = 255

// ErrInvalidKey is returned when a key is empty, too long, or contains
// non-printable-ASCII bytes.
var ErrInvalidKey = errors.New("tag: invalid key")

// ErrInvalidValue is returned when a value is too long or contains
// non-printable-ASCII bytes.
var ErrInvalidValue = errors.New("tag: invalid value")

// Key identifies a tag. Keys are printable ASCII, 1-255 bytes.
type Key struct {
	name string
}

// NewKey validates and constructs a Key.
func NewKey(name string) (Key, error) {
	if !validASCII(name) || name == "" {
		return Key{}, ErrInvalidKey
	}
	return Key{name: name}, nil
}

// Name returns the key's name.
func (k Key) Name() string { return k.name }

// Value is a tag's value. Values are printable ASCII, up to 255 bytes;
// the empty string is a valid value.
type Value struct {
	s string
}

// NewValue validates and constructs a Value.
func NewValue(s string) (Value, error) {
	if !validASCII(s) {
		return Value{}, ErrInvalidValue
	}
	return Value{s: s}, nil
}

// String returns the value's underlying string.
func (v Value) String() string { return v.s }

func validASCII(s string) bool {
	if len(s) > MaxLen {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// Context is an immutable, unordered key-value label set. Two Contexts
// are equal iff they hold the same set of (key, value) pairs; iteration
// order over a Context is unspecified.
type Context struct {
	m map[Key]Value
}

// Empty is the Context with no tags.
var Empty = Context{}

// Value returns the value associated with k and whether it was present.
func (c Context) Value(k Key) (Value, bool) {
	if c.m == nil {
		return Value{}, false
	}
	v, ok := c.m[k]
	return v, ok
}

// Len returns the number of tags in the context.
func (c Context) Len() int { return len(c.m) }

// Range calls fn for every (key, value) pair in the context. Iteration
// order is unspecified. fn must not mutate the context (it can't:
// Context is immutable) and should not retain the Context across calls.
func (c Context) Range(fn func(Key, Value)) {
	for k, v := range c.m {
		fn(k, v)
	}
}

// Equal reports whether c and other contain exactly the same set of
// tags.
func (c Context) Equal(other Context) bool {
	if len(c.m) != len(other.m) {
		return false
	}
	for k, v := range c.m {
		ov, ok := other.m[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// ToBuilder returns a Builder pre-populated with c's tags. Building
// immediately without further mutation reproduces an equal Context.
func ToBuilder(c Context) *Builder {
	b := &Builder{m: make(map[Key]Value, len(c.m))}
	for k, v := range c.m {
		b.m[k] = v
	}
	return b
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{m: make(map[Key]Value)}
}

// Builder accumulates (key, value) pairs before producing an immutable
// Context via Build. A Builder is O(n) to copy from an existing Context
// and O(1) amortized per Put/Remove.
type Builder struct {
	m map[Key]Value
}

// Put sets key to value, overwriting any existing value for key.
func (b *Builder) Put(key Key, value Value) *Builder {
	b.m[key] = value
	return b
}

// Remove deletes key from the builder, if present.
func (b *Builder) Remove(key Key) *Builder {
	delete(b.m, key)
	return b
}

// Build returns an immutable Context holding a copy of the builder's
// current contents. The Builder remains usable afterwards; further
// Put/Remove calls do not affect the returned Context.
func (b *Builder) Build() Context {
	m := make(map[Key]Value, len(b.m))
	for k, v := range b.m {
		m[k] = v
	}
	return Context{m: m}
}
