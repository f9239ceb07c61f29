package container

import (
	"fmt"
	"reflect"
)

// Key identifies a requested instance: a type plus an optional qualifier. Keys are plain
// comparable values and are used directly as map keys. The fields are unexported so a Key
// can never change after it has been placed in a binding table; Named returns a new Key.
type Key struct {
	typ       reflect.Type
	qualifier string
}

// KeyOf returns the unqualified Key for T. Interfaces are supported by instantiating
// with the interface type, e.g. KeyOf[io.Reader]().
func KeyOf[T any]() Key {
	return Key{typ: reflect.TypeOf((*T)(nil)).Elem()}
}

// KeyFor returns the unqualified Key for an already known type descriptor.
func KeyFor(t reflect.Type) Key {
	return Key{typ: t}
}

// Named returns a copy of the key carrying the given qualifier.
func (k Key) Named(qualifier string) Key {
	return Key{typ: k.typ, qualifier: qualifier}
}

// Type returns the type component of the key.
func (k Key) Type() reflect.Type {
	return k.typ
}

// Qualifier returns the qualifier, or "" for an unqualified key.
func (k Key) Qualifier() string {
	return k.qualifier
}

// IsZero reports whether the key was never built.
func (k Key) IsZero() bool {
	return k.typ == nil
}

func (k Key) String() string {
	if k.qualifier == "" {
		return fmt.Sprintf("%v", k.typ)
	}
	return fmt.Sprintf("%v@%s", k.typ, k.qualifier)
}
