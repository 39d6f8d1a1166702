// FILE: lixenwraith/params/doc.go

// Package params provides typed, immutable parameter objects. Fields are
// declared with a small type grammar, populated from loosely typed sources,
// coerced into canonical values, validated and then frozen.
//
// Features:
//   - Type grammar: int, float, bool, str, bytes, path, none, unions (a|b),
//     fixed and variadic tuples, literals, numeric arrays, enums and nested objects
//   - Four coercion modes: strict, relaxed, from text and identity
//   - Atomic overrides, including dotted paths into nested objects
//   - Freeze with recursive completeness checks; frozen objects are safe for concurrent reads
//   - Tagged binary wire format with node-guided decoding
//   - Store with layered sources (TOML, YAML, JSON or binary files, environment,
//     command line), file watching, struct scanning and JSON Schema export
//
// Quick Start:
//
//	reg := params.NewRegistry()
//	color := params.MustEnumType("Color",
//	    params.Variant{Name: "RED", Value: 1},
//	    params.Variant{Name: "BLUE", Value: 2})
//	_ = reg.RegisterEnum(color)
//
//	server := reg.Object("Server").
//	    Field("host", "str", "localhost").
//	    Field("port", "int", 8080).
//	    Field("color", "Color", color.MustVariant("RED")).
//	    MustBuild()
//
//	store, err := params.Quick(server, "MYAPP_", "server.toml")
//	if err != nil && !errors.Is(err, params.ErrConfigNotFound) {
//	    log.Fatal(err)
//	}
//	port, _ := store.Snapshot().Int64("port")
//
// Default Precedence (highest to lowest):
//  1. Command-line arguments (--port=9090)
//  2. Environment variables (MYAPP_PORT=9090)
//  3. Parameter file (server.toml)
//  4. Declared defaults
//
// Union coercion first looks for a member that accepts the value exactly, in
// declared order. Failing that, members are tried in a fixed precedence order:
// enum, literal, bool, int, float, none, tuple, array, bytes, path, str, object.
package params
