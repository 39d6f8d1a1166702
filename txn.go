// FILE: lixenwraith/params/txn.go
package params

import (
	"fmt"
	"sort"
	"strings"
)

// Txn stages overrides against one object and publishes them together.
// Nothing is visible on the object until Commit; Abort discards the stage.
// A frozen object stays frozen: values entering it are frozen at commit.
type Txn struct {
	obj      *Object
	staged   map[int]any
	refreeze map[int]bool
	done     bool
}

// BeginOverride opens an override transaction on the object
func (o *Object) BeginOverride() *Txn {
	return &Txn{
		obj:      o,
		staged:   make(map[int]any),
		refreeze: make(map[int]bool),
	}
}

// Apply coerces and stages updates. Keys may be dotted paths into nested
// objects; such nested objects are copied and replaced, never edited in place.
// A failed Apply leaves earlier staged updates intact.
func (tx *Txn) Apply(updates map[string]any, mode Mode) error {
	if tx.done {
		return fmt.Errorf("%w: transaction already finished", ErrState)
	}

	typ := tx.obj.typ
	staged := make(map[int]any, len(tx.staged)+len(updates))
	for k, v := range tx.staged {
		staged[k] = v
	}
	refreeze := make(map[int]bool, len(tx.refreeze))
	for k, v := range tx.refreeze {
		refreeze[k] = v
	}

	nested := make(map[int]map[string]any)
	for _, key := range sortedKeys(updates) {
		head, rest, dotted := strings.Cut(key, ".")
		idx, ok := typ.index[head]
		if !ok {
			return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, typ.name, key)
		}
		if dotted {
			if nested[idx] == nil {
				nested[idx] = make(map[string]any)
			}
			nested[idx][rest] = updates[key]
			continue
		}

		v, err := coerce(typ.fields[idx].node, updates[key], mode)
		if err != nil {
			return atPath(err, head)
		}
		staged[idx] = adopt(v)
		delete(refreeze, idx)
	}

	indices := make([]int, 0, len(nested))
	for idx := range nested {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		name := typ.fields[idx].name
		current, ok := staged[idx]
		if !ok && tx.obj.set[idx] {
			current = tx.obj.values[idx]
		}
		source, isObject := current.(*Object)
		if !isObject {
			return fmt.Errorf("%w: %s.%s does not hold an object", ErrUnknownField, typ.name, name)
		}

		replacement := source.Clone()
		sub := replacement.BeginOverride()
		if err := sub.Apply(nested[idx], mode); err != nil {
			return atPath(err, name)
		}
		if err := sub.Commit(); err != nil {
			return atPath(err, name)
		}
		staged[idx] = replacement
		if source.frozen {
			refreeze[idx] = true
		}
	}

	tx.staged = staged
	tx.refreeze = refreeze
	return nil
}

// Commit publishes staged values. If the object is frozen, new nested values
// must pass Freeze first or the whole transaction fails unchanged.
func (tx *Txn) Commit() error {
	if tx.done {
		return fmt.Errorf("%w: transaction already finished", ErrState)
	}
	tx.done = true

	o := tx.obj
	for _, idx := range sortedIndices(tx.staged) {
		if !o.frozen && !tx.refreeze[idx] {
			continue
		}
		if err := checkValueComplete(tx.staged[idx], o.typ.fields[idx].name); err != nil {
			return err
		}
	}

	for idx, v := range tx.staged {
		if o.frozen || tx.refreeze[idx] {
			markValueFrozen(v)
		}
		o.values[idx] = v
		o.set[idx] = true
	}
	return nil
}

// Abort discards staged values
func (tx *Txn) Abort() {
	tx.done = true
	tx.staged = nil
	tx.refreeze = nil
}

func sortedIndices(m map[int]any) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
