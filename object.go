// FILE: lixenwraith/params/object.go
package params

import (
	"fmt"
	"sort"
	"strings"
)

// Object holds canonical values for the fields of one ObjectType.
// Objects are not safe for concurrent mutation; once frozen they may be
// read from any number of goroutines.
type Object struct {
	typ    *ObjectType
	values []any
	set    []bool
	frozen bool
}

// New constructs an object populated with the declared defaults.
// Fields without a default stay empty until set.
func (t *ObjectType) New() *Object {
	o := &Object{
		typ:    t,
		values: make([]any, len(t.fields)),
		set:    make([]bool, len(t.fields)),
	}
	for i, f := range t.fields {
		if !f.hasDefault {
			continue
		}
		o.values[i] = freshDefault(f.def)
		o.set[i] = true
	}
	return o
}

// NewWith constructs a default object and applies updates in the given mode
func (t *ObjectType) NewWith(updates map[string]any, mode Mode) (*Object, error) {
	o := t.New()
	if err := o.Override(updates, mode); err != nil {
		return nil, err
	}
	return o, nil
}

func freshDefault(def any) any {
	switch d := def.(type) {
	case *ObjectType:
		return d.New()
	default:
		return cloneValue(def)
	}
}

// Type returns the declaration of the object
func (o *Object) Type() *ObjectType { return o.typ }

// IsFrozen reports whether the object rejects direct mutation
func (o *Object) IsFrozen() bool { return o.frozen }

// IsSet reports whether a field currently holds a value
func (o *Object) IsSet(name string) bool {
	target, idx, err := o.resolve(name)
	if err != nil {
		return false
	}
	return target.set[idx]
}

// Get returns the value of a field. Dotted names reach into nested objects.
func (o *Object) Get(name string) (any, error) {
	target, idx, err := o.resolve(name)
	if err != nil {
		return nil, err
	}
	if !target.set[idx] {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotSet, name)
	}
	return readValue(target.values[idx]), nil
}

// Set assigns a single field after strict coercion. A dotted name on a
// mutable object replaces the nested object with an updated copy, so a
// frozen nested object stays frozen and is never edited in place.
func (o *Object) Set(name string, value any) error {
	if o.frozen {
		return fmt.Errorf("%w: cannot set %s on %s", ErrFrozenMutation, name, o.typ.name)
	}
	if strings.Contains(name, ".") {
		return o.Override(map[string]any{name: value}, ModeStrict)
	}

	idx, ok := o.typ.index[name]
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, o.typ.name, name)
	}
	v, err := coerce(o.typ.fields[idx].node, value, ModeStrict)
	if err != nil {
		return atPath(err, name)
	}
	o.values[idx] = adopt(v)
	o.set[idx] = true
	return nil
}

// Override applies named values atomically. Every value is coerced before
// any field changes; a single failure leaves the object untouched.
// A frozen object accepts the override as a transaction and stays frozen.
func (o *Object) Override(updates map[string]any, mode Mode) error {
	tx := o.BeginOverride()
	if err := tx.Apply(updates, mode); err != nil {
		tx.Abort()
		return err
	}
	return tx.Commit()
}

// OverrideText applies textual values such as those from env or CLI sources
func (o *Object) OverrideText(updates map[string]string) error {
	raw := make(map[string]any, len(updates))
	for k, v := range updates {
		raw[k] = v
	}
	return o.Override(raw, ModeFromText)
}

// Freeze validates that every field is set and makes the object and all
// nested objects immutable. Freezing is terminal.
func (o *Object) Freeze() error {
	if o.frozen {
		return nil
	}
	if err := o.checkComplete(""); err != nil {
		return err
	}
	o.markFrozen()
	return nil
}

func (o *Object) checkComplete(prefix string) error {
	for i, f := range o.typ.fields {
		path := f.name
		if prefix != "" {
			path = prefix + "." + f.name
		}
		if !o.set[i] {
			return fmt.Errorf("%w: %s", ErrFieldNotSet, path)
		}
		if err := checkValueComplete(o.values[i], path); err != nil {
			return err
		}
	}
	return nil
}

func checkValueComplete(v any, path string) error {
	switch x := v.(type) {
	case *Object:
		if !x.frozen {
			return x.checkComplete(path)
		}
	case Tuple:
		for i, e := range x {
			if err := checkValueComplete(e, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Object) markFrozen() {
	o.frozen = true
	for _, v := range o.values {
		markValueFrozen(v)
	}
}

func markValueFrozen(v any) {
	switch x := v.(type) {
	case *Object:
		if !x.frozen {
			x.markFrozen()
		}
	case Tuple:
		for _, e := range x {
			markValueFrozen(e)
		}
	}
}

// Equal reports type-aware equality. Objects of different types are never equal.
func (o *Object) Equal(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o.typ != other.typ {
		return false
	}
	for i := range o.values {
		if o.set[i] != other.set[i] {
			return false
		}
		if o.set[i] && !valueEqual(o.values[i], other.values[i]) {
			return false
		}
	}
	return true
}

// Clone returns a mutable deep copy
func (o *Object) Clone() *Object {
	c := &Object{
		typ:    o.typ,
		values: make([]any, len(o.values)),
		set:    make([]bool, len(o.set)),
	}
	copy(c.set, o.set)
	for i, v := range o.values {
		c.values[i] = cloneValue(v)
	}
	return c
}

// NestedFields returns the names of fields currently holding a nested object
func (o *Object) NestedFields() []string {
	var names []string
	for i, f := range o.typ.fields {
		if _, ok := o.values[i].(*Object); ok && o.set[i] {
			names = append(names, f.name)
		}
	}
	return names
}

// ToMap returns set fields as a map of canonical values; nested objects become maps
func (o *Object) ToMap() map[string]any {
	out := make(map[string]any, len(o.values))
	for i, f := range o.typ.fields {
		if !o.set[i] {
			continue
		}
		if nested, ok := o.values[i].(*Object); ok {
			out[f.name] = nested.ToMap()
			continue
		}
		out[f.name] = cloneValue(o.values[i])
	}
	return out
}

// Dumpable returns set fields as plain values suitable for YAML, JSON or TOML encoders.
// Relaxed coercion reads the result back into an equal object.
func (o *Object) Dumpable() map[string]any {
	out := make(map[string]any, len(o.values))
	for i, f := range o.typ.fields {
		if o.set[i] {
			out[f.name] = dumpValue(o.values[i])
		}
	}
	return out
}

func dumpValue(v any) any {
	switch x := v.(type) {
	case Path:
		return string(x)
	case Bytes:
		return string(x)
	case Enum:
		return x.Name()
	case Array:
		return x.Nested()
	case Tuple:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = dumpValue(e)
		}
		return out
	case *Object:
		return x.Dumpable()
	default:
		return v
	}
}

func (o *Object) String() string {
	parts := make([]string, 0, len(o.values))
	for i, f := range o.typ.fields {
		if o.set[i] {
			parts = append(parts, fmt.Sprintf("%s: %v", f.name, o.values[i]))
		} else {
			parts = append(parts, f.name+": <unset>")
		}
	}
	return o.typ.name + "{" + strings.Join(parts, ", ") + "}"
}

// resolve walks a dotted name to the object owning the final field
func (o *Object) resolve(name string) (*Object, int, error) {
	head, rest, dotted := strings.Cut(name, ".")
	idx, ok := o.typ.index[head]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, o.typ.name, head)
	}
	if !dotted {
		return o, idx, nil
	}
	nested, ok := o.values[idx].(*Object)
	if !ok || !o.set[idx] {
		return nil, 0, fmt.Errorf("%w: %s.%s does not hold an object", ErrUnknownField, o.typ.name, head)
	}
	target, subIdx, err := nested.resolve(rest)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", head, err)
	}
	return target, subIdx, nil
}

// adopt takes ownership of a caller-supplied value. Frozen objects are
// shared as-is; mutable objects are copied, also inside tuples.
func adopt(v any) any {
	switch x := v.(type) {
	case *Object:
		if x.frozen {
			return x
		}
		return x.Clone()
	case Tuple:
		out := make(Tuple, len(x))
		for i, e := range x {
			out[i] = adopt(e)
		}
		return out
	default:
		return v
	}
}

// readValue hands out values without exposing internal containers
func readValue(v any) any {
	if t, ok := v.(Tuple); ok {
		return cloneValue(t)
	}
	return v
}

// sortedKeys returns map keys in a stable order
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
