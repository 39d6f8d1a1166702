// FILE: lixenwraith/params/type.go
package params

import (
	"fmt"
)

// typed fetches a field and asserts its canonical Go type
func typed[T any](o *Object, name string) (T, error) {
	var zero T
	val, err := o.Get(name)
	if err != nil {
		return zero, err
	}
	v, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("%w: field %s holds %s, not %T", ErrTypeMismatch, name, describeValue(val), zero)
	}
	return v, nil
}

// Int64 retrieves an int field
func (o *Object) Int64(name string) (int64, error) { return typed[int64](o, name) }

// Float64 retrieves a float field
func (o *Object) Float64(name string) (float64, error) { return typed[float64](o, name) }

// Bool retrieves a bool field
func (o *Object) Bool(name string) (bool, error) { return typed[bool](o, name) }

// StringValue retrieves a str field.
// Path values are returned in host form so callers can pass them to os functions.
func (o *Object) StringValue(name string) (string, error) {
	val, err := o.Get(name)
	if err != nil {
		return "", err
	}
	switch v := val.(type) {
	case string:
		return v, nil
	case Path:
		return v.OS(), nil
	}
	return "", fmt.Errorf("%w: field %s holds %s, not string", ErrTypeMismatch, name, describeValue(val))
}

// Path retrieves a path field
func (o *Object) Path(name string) (Path, error) { return typed[Path](o, name) }

// Bytes retrieves a bytes field as a fresh slice
func (o *Object) Bytes(name string) ([]byte, error) {
	b, err := typed[Bytes](o, name)
	if err != nil {
		return nil, err
	}
	return []byte(b), nil
}

// Tuple retrieves a copy of a tuple field
func (o *Object) Tuple(name string) (Tuple, error) { return typed[Tuple](o, name) }

// Enum retrieves an enum field
func (o *Object) Enum(name string) (Enum, error) { return typed[Enum](o, name) }

// Array retrieves an array field
func (o *Object) Array(name string) (Array, error) { return typed[Array](o, name) }

// Object retrieves a nested object field
func (o *Object) Object(name string) (*Object, error) { return typed[*Object](o, name) }

// IsNone reports whether a set field holds none
func (o *Object) IsNone(name string) (bool, error) {
	val, err := o.Get(name)
	if err != nil {
		return false, err
	}
	return val == nil, nil
}
