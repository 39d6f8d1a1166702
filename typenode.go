// FILE: lixenwraith/params/typenode.go
package params

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the shape of a TypeNode
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindStr
	KindBytes
	KindPath
	KindNone
	KindEnum
	KindLiteral
	KindTuple
	KindUnion
	KindObject
	KindArray
)

var kindNames = [...]string{
	KindInt:     "int",
	KindFloat:   "float",
	KindBool:    "bool",
	KindStr:     "str",
	KindBytes:   "bytes",
	KindPath:    "path",
	KindNone:    "none",
	KindEnum:    "enum",
	KindLiteral: "literal",
	KindTuple:   "tuple",
	KindUnion:   "union",
	KindObject:  "object",
	KindArray:   "array",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// precedence orders union members when more than one could accept a value.
// Lower rank wins.
var precedence = map[Kind]int{
	KindEnum:    0,
	KindLiteral: 1,
	KindBool:    2,
	KindInt:     3,
	KindFloat:   4,
	KindNone:    5,
	KindTuple:   6,
	KindArray:   7,
	KindBytes:   8,
	KindPath:    9,
	KindStr:     10,
	KindObject:  11,
}

// isComposite reports kinds that are indistinguishable on the wire when paired in a union
func (k Kind) isComposite() bool {
	return k == KindTuple || k == KindObject || k == KindArray
}

// TypeNode is the parsed, immutable form of a field type expression.
type TypeNode struct {
	kind     Kind
	children []*TypeNode
	variadic bool
	literals []any
	enum     *EnumType
	object   *ObjectType
	dtype    DType
}

// Kind returns the node kind
func (n *TypeNode) Kind() Kind { return n.kind }

// Children returns tuple elements or union members
func (n *TypeNode) Children() []*TypeNode {
	out := make([]*TypeNode, len(n.children))
	copy(out, n.children)
	return out
}

// Variadic reports whether a tuple node repeats its single child
func (n *TypeNode) Variadic() bool { return n.variadic }

// Literals returns the allowed values of a literal node
func (n *TypeNode) Literals() []any {
	out := make([]any, len(n.literals))
	copy(out, n.literals)
	return out
}

// EnumType returns the enum type of an enum node
func (n *TypeNode) EnumType() *EnumType { return n.enum }

// ObjectType returns the object type of an object node
func (n *TypeNode) ObjectType() *ObjectType { return n.object }

// DType returns the element type of an array node
func (n *TypeNode) DType() DType { return n.dtype }

// Optional reports whether none is an accepted value
func (n *TypeNode) Optional() bool {
	if n.kind == KindNone {
		return true
	}
	if n.kind == KindUnion {
		for _, c := range n.children {
			if c.kind == KindNone {
				return true
			}
		}
	}
	if n.kind == KindLiteral {
		for _, l := range n.literals {
			if l == nil {
				return true
			}
		}
	}
	return false
}

// String renders the node back into type expression syntax
func (n *TypeNode) String() string {
	switch n.kind {
	case KindEnum:
		return n.enum.Name()
	case KindObject:
		return n.object.Name()
	case KindArray:
		return "array[" + n.dtype.Name() + "]"
	case KindLiteral:
		parts := make([]string, len(n.literals))
		for i, l := range n.literals {
			parts[i] = formatLiteral(l)
		}
		return "literal[" + strings.Join(parts, ", ") + "]"
	case KindTuple:
		parts := make([]string, len(n.children))
		for i, c := range n.children {
			parts[i] = c.String()
		}
		if n.variadic {
			parts = append(parts, "...")
		}
		return "tuple[" + strings.Join(parts, ", ") + "]"
	case KindUnion:
		parts := make([]string, len(n.children))
		for i, c := range n.children {
			parts[i] = c.String()
		}
		return strings.Join(parts, " | ")
	default:
		return n.kind.String()
	}
}

func formatLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "none"
	case string:
		return strconv.Quote(x)
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		return s
	default:
		return fmt.Sprintf("%v", x)
	}
}

// sameShape reports structural identity of two nodes
func (n *TypeNode) sameShape(o *TypeNode) bool {
	if n.kind != o.kind || n.variadic != o.variadic || len(n.children) != len(o.children) {
		return false
	}
	switch n.kind {
	case KindEnum:
		return n.enum == o.enum
	case KindObject:
		return n.object == o.object
	case KindArray:
		return n.dtype == o.dtype
	case KindLiteral:
		if len(n.literals) != len(o.literals) {
			return false
		}
		for i := range n.literals {
			if !valueEqual(n.literals[i], o.literals[i]) {
				return false
			}
		}
	}
	for i := range n.children {
		if !n.children[i].sameShape(o.children[i]) {
			return false
		}
	}
	return true
}

// references reports whether the node mentions the given object type anywhere
func (n *TypeNode) references(t *ObjectType) bool {
	if n.kind == KindObject && n.object == t {
		return true
	}
	for _, c := range n.children {
		if c.references(t) {
			return true
		}
	}
	return false
}

// newUnion validates and flattens union members
func newUnion(members []*TypeNode) (*TypeNode, error) {
	var flat []*TypeNode
	for _, m := range members {
		if m.kind == KindUnion {
			flat = append(flat, m.children...)
		} else {
			flat = append(flat, m)
		}
	}

	var composite *TypeNode
	var hasStr, hasPath bool
	for i, m := range flat {
		for _, prev := range flat[:i] {
			if prev.sameShape(m) {
				return nil, fmt.Errorf("%w: duplicate union member %s", ErrUnsupportedType, m)
			}
		}
		if m.kind.isComposite() {
			if composite != nil {
				return nil, fmt.Errorf("%w: union cannot combine %s and %s", ErrUnsupportedType, composite, m)
			}
			composite = m
		}
		hasStr = hasStr || m.kind == KindStr
		hasPath = hasPath || m.kind == KindPath
	}
	if hasStr && hasPath {
		return nil, fmt.Errorf("%w: union cannot combine str and path", ErrUnsupportedType)
	}
	if len(flat) == 1 {
		return flat[0], nil
	}
	return &TypeNode{kind: KindUnion, children: flat}, nil
}
