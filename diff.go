// FILE: lixenwraith/params/diff.go
package params

// DiffFromDefaults reports the fields whose values differ from a freshly
// constructed default instance. Nested objects of the same type contribute
// only their differing sub-fields, keyed under the parent field name.
// Fields declared without a default are reported whenever they are set.
func (o *Object) DiffFromDefaults() map[string]any {
	return o.diffAgainst(o.typ.New())
}

func (o *Object) diffAgainst(base *Object) map[string]any {
	changed := make(map[string]any)
	for i, f := range o.typ.fields {
		if !o.set[i] {
			continue
		}
		current := o.values[i]
		if !base.set[i] {
			changed[f.name] = dumpDiffValue(current)
			continue
		}

		def := base.values[i]
		if cur, ok := current.(*Object); ok {
			if d, ok := def.(*Object); ok && d.typ == cur.typ {
				if sub := cur.diffAgainst(d); len(sub) > 0 {
					changed[f.name] = sub
				}
				continue
			}
		}
		if !valueEqual(current, def) {
			changed[f.name] = dumpDiffValue(current)
		}
	}
	return changed
}

// dumpDiffValue reports nested objects as maps so diffs stay plain data
func dumpDiffValue(v any) any {
	if obj, ok := v.(*Object); ok {
		return obj.ToMap()
	}
	return cloneValue(v)
}
