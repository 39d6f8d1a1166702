// FILE: lixenwraith/params/schema_test.go
package params

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaDoc(t *testing.T, typ *ObjectType) map[string]any {
	t.Helper()
	data, err := typ.JSONSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func property(t *testing.T, doc map[string]any, name string) map[string]any {
	t.Helper()
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties")
	prop, ok := props[name].(map[string]any)
	require.True(t, ok, "schema has no property %q", name)
	return prop
}

func TestSchema(t *testing.T) {
	t.Run("ObjectShape", func(t *testing.T) {
		tt := newTestTypes(t)
		doc := schemaDoc(t, tt.server)

		assert.Equal(t, jsonschema.Version, doc["$schema"])
		assert.Equal(t, "object", doc["type"])
		assert.Equal(t, "Server", doc["title"])
		assert.Equal(t, false, doc["additionalProperties"])
		assert.NotContains(t, doc, "required", "every field has a default")
	})

	t.Run("Scalars", func(t *testing.T) {
		tt := newTestTypes(t)
		doc := schemaDoc(t, tt.server)

		host := property(t, doc, "host")
		assert.Equal(t, "string", host["type"])
		assert.Equal(t, "Listen address", host["description"])
		assert.Equal(t, "localhost", host["default"])

		port := property(t, doc, "port")
		assert.Equal(t, "integer", port["type"])
		assert.Equal(t, 8080.0, port["default"])

		assert.Equal(t, "boolean", property(t, doc, "debug")["type"])
	})

	t.Run("EnumsAndTuples", func(t *testing.T) {
		tt := newTestTypes(t)
		doc := schemaDoc(t, tt.server)

		color := property(t, doc, "color")
		assert.Equal(t, "Color", color["title"])
		assert.Equal(t, []any{"RED", "BLUE"}, color["enum"])
		assert.Equal(t, "RED", color["default"])

		tags := property(t, doc, "tags")
		assert.Equal(t, "array", tags["type"])
		assert.Equal(t, map[string]any{"type": "string"}, tags["items"])
		assert.Equal(t, []any{"a"}, tags["default"])
	})

	t.Run("Unions", func(t *testing.T) {
		tt := newTestTypes(t)
		doc := schemaDoc(t, tt.server)

		timeout := property(t, doc, "timeout")
		assert.Equal(t, []any{
			map[string]any{"type": "number"},
			map[string]any{"type": "null"},
		}, timeout["anyOf"])
	})

	t.Run("NestedObject", func(t *testing.T) {
		tt := newTestTypes(t)
		doc := schemaDoc(t, tt.server)

		limits := property(t, doc, "limits")
		assert.Equal(t, "object", limits["type"])
		assert.Equal(t, "Limits", limits["title"])
		assert.Equal(t, false, limits["additionalProperties"])
		assert.Equal(t, 100.0, property(t, limits, "max_conns")["default"])
		assert.Equal(t, "number", property(t, limits, "ratio")["type"])
	})

	t.Run("RequiredAndComposite", func(t *testing.T) {
		reg := NewRegistry()
		typ := reg.Object("Job").
			Required("name", "str").
			Field("workdir", "path", Path("/tmp")).
			Field("pair", "tuple[int, str]", Tuple{int64(1), "x"}).
			Field("level", `literal["low", "high"]`, "low").
			Field("weights", "array[float32] | none", nil).
			MustBuild()
		doc := schemaDoc(t, typ)

		assert.Equal(t, []any{"name"}, doc["required"])

		workdir := property(t, doc, "workdir")
		assert.Equal(t, "path", workdir["format"])
		assert.Equal(t, "/tmp", workdir["default"])

		pair := property(t, doc, "pair")
		assert.Equal(t, []any{
			map[string]any{"type": "integer"},
			map[string]any{"type": "string"},
		}, pair["prefixItems"])
		assert.Equal(t, false, pair["items"])

		assert.Equal(t, []any{"low", "high"}, property(t, doc, "level")["enum"])

		weights := property(t, doc, "weights")
		members, ok := weights["anyOf"].([]any)
		require.True(t, ok)
		require.Len(t, members, 2)
		assert.Equal(t, "array", members[0].(map[string]any)["type"])
	})
}
