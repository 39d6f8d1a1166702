// FILE: lixenwraith/params/schema.go
package params

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema describes the object type as a JSON Schema document.
// Editors render declarations from it and write values back through Override.
func (t *ObjectType) Schema() *jsonschema.Schema {
	s := objectSchema(t)
	s.Version = jsonschema.Version
	return s
}

// JSONSchema returns the serialized JSON Schema of the object type
func (t *ObjectType) JSONSchema() ([]byte, error) {
	data, err := t.Schema().MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to create json schema for %s: %w", t.name, err)
	}
	return data, nil
}

func objectSchema(t *ObjectType) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:                 "object",
		Title:                t.name,
		Properties:           jsonschema.NewProperties(),
		AdditionalProperties: jsonschema.FalseSchema,
	}
	for _, f := range t.fields {
		prop := nodeSchema(f.node)
		prop.Description = f.doc
		if f.hasDefault {
			switch d := f.def.(type) {
			case *ObjectType:
				// fresh instance, described by the nested schema itself
			case *Object:
				prop.Default = d.Dumpable()
			default:
				prop.Default = dumpValue(d)
			}
		} else {
			s.Required = append(s.Required, f.name)
		}
		s.Properties.Set(f.name, prop)
	}
	return s
}

func nodeSchema(n *TypeNode) *jsonschema.Schema {
	switch n.kind {
	case KindInt:
		return &jsonschema.Schema{Type: "integer"}
	case KindFloat:
		return &jsonschema.Schema{Type: "number"}
	case KindBool:
		return &jsonschema.Schema{Type: "boolean"}
	case KindStr, KindBytes:
		return &jsonschema.Schema{Type: "string"}
	case KindPath:
		return &jsonschema.Schema{Type: "string", Format: "path"}
	case KindNone:
		return &jsonschema.Schema{Type: "null"}
	case KindEnum:
		names := make([]any, len(n.enum.variants))
		for i, v := range n.enum.variants {
			names[i] = v.Name
		}
		return &jsonschema.Schema{Type: "string", Title: n.enum.name, Enum: names}
	case KindLiteral:
		return &jsonschema.Schema{Enum: n.Literals()}
	case KindTuple:
		if n.variadic {
			return &jsonschema.Schema{Type: "array", Items: nodeSchema(n.children[0])}
		}
		items := make([]*jsonschema.Schema, len(n.children))
		for i, c := range n.children {
			items[i] = nodeSchema(c)
		}
		return &jsonschema.Schema{Type: "array", PrefixItems: items, Items: jsonschema.FalseSchema}
	case KindUnion:
		members := make([]*jsonschema.Schema, len(n.children))
		for i, c := range n.children {
			members[i] = nodeSchema(c)
		}
		return &jsonschema.Schema{AnyOf: members}
	case KindObject:
		return objectSchema(n.object)
	case KindArray:
		element := dtypeSchema(n.dtype)
		// rows of an n-dimensional array are arrays themselves
		return &jsonschema.Schema{
			Type:  "array",
			Items: &jsonschema.Schema{AnyOf: []*jsonschema.Schema{element, {Type: "array"}}},
		}
	}
	return &jsonschema.Schema{}
}

func dtypeSchema(d DType) *jsonschema.Schema {
	switch d.kind {
	case 'b':
		return &jsonschema.Schema{Type: "boolean"}
	case 'f':
		return &jsonschema.Schema{Type: "number"}
	default:
		return &jsonschema.Schema{Type: "integer"}
	}
}
