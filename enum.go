// FILE: lixenwraith/params/enum.go
package params

import (
	"fmt"
)

// Variant is one named member of an enumeration
type Variant struct {
	Name  string
	Value any
}

// EnumType is a closed, named set of variants.
// Identity is by pointer; two enum types with the same name are distinct types.
type EnumType struct {
	name     string
	variants []Variant
	byName   map[string]int
}

// NewEnumType declares an enumeration. Variant values must be scalars.
func NewEnumType(name string, variants ...Variant) (*EnumType, error) {
	if !isValidTypeName(name) {
		return nil, fmt.Errorf("%w: invalid enum name %q", ErrUnsupportedType, name)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: enum %s has no variants", ErrUnsupportedType, name)
	}

	t := &EnumType{
		name:     name,
		variants: make([]Variant, len(variants)),
		byName:   make(map[string]int, len(variants)),
	}
	for i, v := range variants {
		if !isValidTypeName(v.Name) {
			return nil, fmt.Errorf("%w: invalid variant name %q in enum %s", ErrUnsupportedType, v.Name, name)
		}
		if _, dup := t.byName[v.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate variant %q in enum %s", ErrUnsupportedType, v.Name, name)
		}
		value, ok := normalizeScalar(v.Value)
		if !ok {
			return nil, fmt.Errorf("%w: variant %s.%s has non-scalar value %T", ErrUnsupportedType, name, v.Name, v.Value)
		}
		t.variants[i] = Variant{Name: v.Name, Value: value}
		t.byName[v.Name] = i
	}
	return t, nil
}

// MustEnumType is like NewEnumType but panics on error
func MustEnumType(name string, variants ...Variant) *EnumType {
	t, err := NewEnumType(name, variants...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the enum type name
func (t *EnumType) Name() string { return t.name }

// Variants returns the declared variants in order
func (t *EnumType) Variants() []Variant {
	out := make([]Variant, len(t.variants))
	copy(out, t.variants)
	return out
}

// Variant looks up a variant by name
func (t *EnumType) Variant(name string) (Enum, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return Enum{}, false
	}
	return Enum{typ: t, idx: idx}, true
}

// MustVariant is like Variant but panics for unknown names
func (t *EnumType) MustVariant(name string) Enum {
	e, ok := t.Variant(name)
	if !ok {
		panic(fmt.Sprintf("enum %s has no variant %q", t.name, name))
	}
	return e
}

// ByValue looks up the first variant holding value
func (t *EnumType) ByValue(value any) (Enum, bool) {
	v, ok := normalizeScalar(value)
	if !ok {
		return Enum{}, false
	}
	for i, variant := range t.variants {
		if valueEqual(variant.Value, v) {
			return Enum{typ: t, idx: i}, true
		}
	}
	return Enum{}, false
}

// Enum is a selected variant of an EnumType
type Enum struct {
	typ *EnumType
	idx int
}

// Type returns the enum type, nil for the zero Enum
func (e Enum) Type() *EnumType { return e.typ }

// Name returns the variant name
func (e Enum) Name() string {
	if e.typ == nil {
		return ""
	}
	return e.typ.variants[e.idx].Name
}

// Value returns the variant value
func (e Enum) Value() any {
	if e.typ == nil {
		return nil
	}
	return e.typ.variants[e.idx].Value
}

// Equal compares type identity and variant
func (e Enum) Equal(o Enum) bool {
	return e.typ == o.typ && e.idx == o.idx
}

func (e Enum) String() string {
	if e.typ == nil {
		return "<invalid enum>"
	}
	return e.typ.name + "." + e.Name()
}
