package pipeline

import (
	"fmt"
	"reflect"
)

// Access says whether a stage reads or writes a key.
type Access string

const (
	AccessRead  Access = "read"
	AccessWrite Access = "write"
)

// KeySpec declares one context key a stage touches and the Go type it expects
// to find there.
type KeySpec struct {
	Name   string
	Type   reflect.Type
	Access Access
}

// KeyDeclarer is implemented by stages that declare their context keys.
// The builder uses the declarations to reject wirings in which two stages
// disagree about the type stored under a key.
type KeyDeclarer interface {
	Keys() []KeySpec
}

// Key is a typed handle on a context entry.
type Key[T any] struct {
	Name string
}

// NewKey returns a typed key for name.
func NewKey[T any](name string) Key[T] {
	return Key[T]{Name: name}
}

// Get returns the value under the key, def when the key is absent, and a
// *KeyTypeError when the stored value has a different type.
func (k Key[T]) Get(c *Context, def T) (T, error) {
	v, ok := c.Lookup(k.Name)
	if !ok || v == nil {
		return def, nil
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, &KeyTypeError{
			Key:  k.Name,
			Want: reflect.TypeFor[T](),
			Got:  reflect.TypeOf(v),
		}
	}
	return t, nil
}

// Set stores v under the key.
func (k Key[T]) Set(c *Context, v T) {
	c.Set(k.Name, v)
}

// Spec describes the key with the given access.
func (k Key[T]) Spec(a Access) KeySpec {
	return KeySpec{Name: k.Name, Type: reflect.TypeFor[T](), Access: a}
}

// String returns the key name.
func (k Key[T]) String() string { return k.Name }

// Typed is satisfied by every Key[T].
type Typed interface {
	Spec(Access) KeySpec
}

// Reads declares read access to keys.
func Reads(keys ...Typed) []KeySpec {
	return specs(AccessRead, keys)
}

// Writes declares write access to keys.
func Writes(keys ...Typed) []KeySpec {
	return specs(AccessWrite, keys)
}

func specs(a Access, keys []Typed) []KeySpec {
	out := make([]KeySpec, len(keys))
	for i, k := range keys {
		out[i] = k.Spec(a)
	}
	return out
}

// KeyTypeError reports a context value whose type does not match the key.
type KeyTypeError struct {
	Key  string
	Want reflect.Type
	Got  reflect.Type
}

func (e *KeyTypeError) Error() string {
	return fmt.Sprintf("context key %q holds %v, want %v", e.Key, e.Got, e.Want)
}
