// FILE: lixenwraith/params/values.go
package params

import (
	"path"
	"path/filepath"
	"time"
)

// Bytes is an immutable byte string
type Bytes string

// Path is a filesystem path held in cleaned, slash-separated form
type Path string

// NewPath cleans p into canonical form
func NewPath(p string) Path {
	return Path(path.Clean(filepath.ToSlash(p)))
}

// OS returns the path in the host separator convention
func (p Path) OS() string { return filepath.FromSlash(string(p)) }

// Tuple is an ordered, fixed sequence of canonical values.
// Tuples produced by coercion are never modified; readers receive copies.
type Tuple []any

// Set is a raw decoded wire set, kept in stream order
type Set []any

// cloneValue copies the mutable containers of a canonical value
func cloneValue(v any) any {
	switch x := v.(type) {
	case Tuple:
		out := make(Tuple, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case *Object:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case Set:
		out := make(Set, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// valueEqual compares two values with type awareness.
// Values of different types are never equal.
func valueEqual(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case Bytes:
		y, ok := b.(Bytes)
		return ok && x == y
	case Path:
		y, ok := b.(Path)
		return ok && x == y
	case Enum:
		y, ok := b.(Enum)
		return ok && x.Equal(y)
	case Array:
		y, ok := b.(Array)
		return ok && x.Equal(y)
	case *Object:
		y, ok := b.(*Object)
		return ok && x.Equal(y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && seqEqual(x, y)
	case []any:
		y, ok := b.([]any)
		return ok && seqEqual(x, y)
	case Set:
		y, ok := b.(Set)
		return ok && seqEqual(x, y)
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, exists := y[k]
			if !exists || !valueEqual(xv, yv) {
				return false
			}
		}
		return true
	case EnumRef:
		y, ok := b.(EnumRef)
		return ok && x == y
	case ObjectRef:
		y, ok := b.(ObjectRef)
		return ok && x.Class == y.Class && valueEqual(x.Fields, y.Fields)
	default:
		return false
	}
}

func seqEqual[S ~[]any](a, b S) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
