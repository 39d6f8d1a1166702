// FILE: lixenwraith/params/register.go
package params

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is the declaration table for enum and object types.
// Type expressions resolve identifiers against it.
type Registry struct {
	mu      sync.RWMutex
	enums   map[string]*EnumType
	objects map[string]*ObjectType
}

// NewRegistry creates an empty declaration table
func NewRegistry() *Registry {
	return &Registry{
		enums:   make(map[string]*EnumType),
		objects: make(map[string]*ObjectType),
	}
}

// RegisterEnum makes an enum type resolvable by name
func (r *Registry) RegisterEnum(t *EnumType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkFree(t.name); err != nil {
		return err
	}
	r.enums[t.name] = t
	return nil
}

// Enum declares and registers an enum type in one step
func (r *Registry) Enum(name string, variants ...Variant) (*EnumType, error) {
	t, err := NewEnumType(name, variants...)
	if err != nil {
		return nil, err
	}
	if err := r.RegisterEnum(t); err != nil {
		return nil, err
	}
	return t, nil
}

// EnumType returns the registered enum type with the given name
func (r *Registry) EnumType(name string) (*EnumType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.enums[name]
	return t, ok
}

// ObjectType returns the registered object type with the given name
func (r *Registry) ObjectType(name string) (*ObjectType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.objects[name]
	return t, ok
}

// Names returns all registered type names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.enums)+len(r.objects))
	for n := range r.enums {
		names = append(names, n)
	}
	for n := range r.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) checkFree(name string) error {
	if _, exists := r.enums[name]; exists {
		return fmt.Errorf("%w: type %s already registered", ErrUnsupportedType, name)
	}
	if _, exists := r.objects[name]; exists {
		return fmt.Errorf("%w: type %s already registered", ErrUnsupportedType, name)
	}
	return nil
}

// Field is one declared field of an object type
type Field struct {
	name       string
	expr       string
	node       *TypeNode
	def        any
	hasDefault bool
	doc        string
}

// Name returns the field name
func (f *Field) Name() string { return f.name }

// Expr returns the type expression the field was declared with
func (f *Field) Expr() string { return f.expr }

// Node returns the parsed type of the field
func (f *Field) Node() *TypeNode { return f.node }

// Default returns the canonical default, if one was declared.
// Object-typed fields report their *ObjectType when defaulting to a fresh instance.
func (f *Field) Default() (any, bool) { return cloneValue(f.def), f.hasDefault }

// Doc returns the field description
func (f *Field) Doc() string { return f.doc }

// ObjectType is the immutable declaration of a typed object
type ObjectType struct {
	name   string
	fields []*Field
	index  map[string]int
}

// Name returns the object type name
func (t *ObjectType) Name() string { return t.name }

// Fields returns the field declarations in declaration order
func (t *ObjectType) Fields() []*Field {
	out := make([]*Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Field looks up a field declaration
func (t *ObjectType) Field(name string) (*Field, bool) {
	idx, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.fields[idx], true
}

// Paths returns every dotted field path, descending into nested object fields
func (t *ObjectType) Paths() []string {
	var paths []string
	for _, f := range t.fields {
		paths = append(paths, f.name)
		if f.node.kind == KindObject {
			for _, sub := range f.node.object.Paths() {
				paths = append(paths, f.name+"."+sub)
			}
		}
	}
	return paths
}

// TypeBuilder declares the fields of an object type
type TypeBuilder struct {
	reg    *Registry
	name   string
	fields []*Field
	index  map[string]int
	err    error
}

// Object starts the declaration of an object type
func (r *Registry) Object(name string) *TypeBuilder {
	b := &TypeBuilder{reg: r, name: name, index: make(map[string]int)}
	if !isValidTypeName(name) {
		b.err = fmt.Errorf("%w: invalid object type name %q", ErrUnsupportedType, name)
	}
	return b
}

// Field declares a field with a default value.
// An *ObjectType default yields a fresh default instance per construction.
func (b *TypeBuilder) Field(name, expr string, def any) *TypeBuilder {
	return b.declare(name, expr, def, true)
}

// Required declares a field without default; it must be set before freeze
func (b *TypeBuilder) Required(name, expr string) *TypeBuilder {
	return b.declare(name, expr, nil, false)
}

// Doc attaches a description to the most recently declared field
func (b *TypeBuilder) Doc(text string) *TypeBuilder {
	if b.err == nil && len(b.fields) > 0 {
		b.fields[len(b.fields)-1].doc = text
	}
	return b
}

func (b *TypeBuilder) declare(name, expr string, def any, hasDefault bool) *TypeBuilder {
	if b.err != nil {
		return b
	}
	if !isValidKeySegment(name) {
		b.err = fmt.Errorf("%w: invalid field name %q in %s", ErrUnsupportedType, name, b.name)
		return b
	}
	if _, dup := b.index[name]; dup {
		b.err = fmt.Errorf("%w: duplicate field %q in %s", ErrUnsupportedType, name, b.name)
		return b
	}

	node, err := parseType(expr, b.reg, b.name)
	if err != nil {
		b.err = fmt.Errorf("field %s.%s: %w", b.name, name, err)
		return b
	}

	f := &Field{name: name, expr: strings.TrimSpace(expr), node: node, hasDefault: hasDefault}
	if hasDefault {
		canonical, err := canonicalDefault(node, def)
		if err != nil {
			b.err = fmt.Errorf("default of %s.%s: %w", b.name, name, err)
			return b
		}
		f.def = canonical
	}

	b.index[name] = len(b.fields)
	b.fields = append(b.fields, f)
	return b
}

// Build finalizes the declaration and registers it
func (b *TypeBuilder) Build() (*ObjectType, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := &ObjectType{name: b.name, fields: b.fields, index: b.index}

	b.reg.mu.Lock()
	defer b.reg.mu.Unlock()
	if err := b.reg.checkFree(t.name); err != nil {
		return nil, err
	}
	b.reg.objects[t.name] = t
	return t, nil
}

// MustBuild is like Build but panics on error
func (b *TypeBuilder) MustBuild() *ObjectType {
	t, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("object type declaration failed: %v", err))
	}
	return t
}

// canonicalDefault validates a default in strict mode and keeps a private copy
func canonicalDefault(node *TypeNode, def any) (any, error) {
	if t, ok := def.(*ObjectType); ok {
		if !acceptsObjectType(node, t) {
			return nil, mismatch(node, def, "default object type "+t.name)
		}
		return t, nil
	}
	v, err := Coerce(node, def, ModeStrict)
	if err != nil {
		return nil, err
	}
	return cloneValue(v), nil
}

func acceptsObjectType(node *TypeNode, t *ObjectType) bool {
	if node.kind == KindObject {
		return node.object == t
	}
	if node.kind == KindUnion {
		for _, c := range node.children {
			if c.kind == KindObject && c.object == t {
				return true
			}
		}
	}
	return false
}
