// FILE: lixenwraith/params/errors.go
package params

import (
	"errors"
	"fmt"
	"strings"
)

// kindError is a sentinel that belongs to a broader error family.
// errors.Is matches both the sentinel and its parent.
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.parent }

func newKind(parent error, msg string) error {
	return &kindError{msg: msg, parent: parent}
}

// Error families
var (
	ErrDeclaration = errors.New("declaration error")
	ErrCoercion    = errors.New("coercion error")
	ErrState       = errors.New("object state error")
	ErrWire        = errors.New("wire format error")
)

// Declaration errors
var (
	ErrUnsupportedType = newKind(ErrDeclaration, "unsupported type")
)

// Coercion errors
var (
	ErrTypeMismatch         = newKind(ErrCoercion, "type mismatch")
	ErrLengthMismatch       = newKind(ErrCoercion, "length mismatch")
	ErrPrecisionLoss        = newKind(ErrCoercion, "precision loss")
	ErrNoUnionMemberMatched = newKind(ErrCoercion, "no union member matched")
)

// Object state errors
var (
	ErrFieldNotSet    = newKind(ErrState, "field not set")
	ErrFrozenMutation = newKind(ErrState, "mutation of frozen object")
	ErrUnknownField   = newKind(ErrState, "unknown field")
)

// Wire errors
var (
	ErrUnknownTag             = newKind(ErrWire, "unknown tag")
	ErrTruncatedStream        = newKind(ErrWire, "truncated stream")
	ErrAmbiguousEnumOrObject  = newKind(ErrWire, "enum or object identity not resolvable")
	ErrTrailingBytes          = newKind(ErrWire, "trailing bytes after value")
	ErrUnsupportedValue       = newKind(ErrWire, "value has no wire representation")
	ErrWireLengthOutOfBound   = newKind(ErrWire, "length exceeds wire limit")
	ErrWireMapKeyNotString    = newKind(ErrWire, "map key is not a string")
	ErrWireObjectPayloadShape = newKind(ErrWire, "object payload is not a map")
)

// Collaborator errors
var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrCLIParse       = errors.New("failed to parse command-line arguments")
	ErrValueSize      = fmt.Errorf("value size exceeds maximum %d bytes", MaxValueSize)
)

// MaxValueSize bounds a single textual value taken from env or CLI sources
const MaxValueSize = 1024 * 1024

// CoercionError describes a failed conversion of one value against one type node.
// Reasons carries the per-member failures of a union.
type CoercionError struct {
	Path     string
	Expected string
	Value    any
	Err      error
	Reasons  []error
	detail   string
}

func (e *CoercionError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	fmt.Fprintf(&b, "%v: cannot coerce %s into %s", e.Err, describeValue(e.Value), e.Expected)
	if e.detail != "" {
		fmt.Fprintf(&b, " (%s)", e.detail)
	}
	if len(e.Reasons) > 0 {
		parts := make([]string, len(e.Reasons))
		for i, r := range e.Reasons {
			parts[i] = r.Error()
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, "; "))
	}
	return b.String()
}

func (e *CoercionError) Unwrap() error { return e.Err }

// atPath prefixes the error location with a field or element segment
func atPath(err error, segment string) error {
	var ce *CoercionError
	if errors.As(err, &ce) {
		cp := *ce
		if cp.Path == "" {
			cp.Path = segment
		} else if strings.HasPrefix(cp.Path, "[") {
			cp.Path = segment + cp.Path
		} else {
			cp.Path = segment + "." + cp.Path
		}
		return &cp
	}
	return fmt.Errorf("%s: %w", segment, err)
}

func mismatch(node *TypeNode, value any, detail string) error {
	return &CoercionError{Expected: node.String(), Value: value, Err: ErrTypeMismatch, detail: detail}
}

func coercionFailure(kind error, node *TypeNode, value any, detail string) error {
	return &CoercionError{Expected: node.String(), Value: value, Err: kind, detail: detail}
}

func describeValue(v any) string {
	if v == nil {
		return "none"
	}
	s := fmt.Sprintf("%v", v)
	if len(s) > 64 {
		s = s[:61] + "..."
	}
	return fmt.Sprintf("%T(%s)", v, s)
}
