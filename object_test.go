// FILE: lixenwraith/params/object_test.go
package params

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTypes declares a small two-level type tree used across tests
type testTypes struct {
	reg    *Registry
	color  *EnumType
	limits *ObjectType
	server *ObjectType
}

func newTestTypes(t *testing.T) testTypes {
	t.Helper()
	reg := NewRegistry()
	color, err := reg.Enum("Color", Variant{Name: "RED", Value: 1}, Variant{Name: "BLUE", Value: 2})
	require.NoError(t, err)

	limits, err := reg.Object("Limits").
		Field("max_conns", "int", 100).
		Field("ratio", "float", 0.5).
		Build()
	require.NoError(t, err)

	server, err := reg.Object("Server").
		Field("host", "str", "localhost").Doc("Listen address").
		Field("port", "int", 8080).
		Field("debug", "bool", false).
		Field("color", "Color", color.MustVariant("RED")).
		Field("tags", "tuple[str, ...]", Tuple{"a"}).
		Field("timeout", "float | none", nil).
		Field("limits", "Limits", limits).
		Build()
	require.NoError(t, err)

	return testTypes{reg: reg, color: color, limits: limits, server: server}
}

// TestObject tests construction, access and freezing
func TestObject(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()

		host, err := o.StringValue("host")
		require.NoError(t, err)
		assert.Equal(t, "localhost", host)

		port, err := o.Int64("port")
		require.NoError(t, err)
		assert.Equal(t, int64(8080), port)

		color, err := o.Enum("color")
		require.NoError(t, err)
		assert.Equal(t, "RED", color.Name())

		none, err := o.IsNone("timeout")
		require.NoError(t, err)
		assert.True(t, none)

		maxConns, err := o.Get("limits.max_conns")
		require.NoError(t, err)
		assert.Equal(t, int64(100), maxConns)

		_, err = o.Int64("host")
		assert.ErrorIs(t, err, ErrTypeMismatch)
		_, err = o.Get("missing")
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("FreshDefaultsPerInstance", func(t *testing.T) {
		tt := newTestTypes(t)
		a := tt.server.New()
		b := tt.server.New()

		la, _ := a.Object("limits")
		lb, _ := b.Object("limits")
		assert.NotSame(t, la, lb)

		require.NoError(t, la.Set("max_conns", 1))
		v, _ := b.Get("limits.max_conns")
		assert.Equal(t, int64(100), v)

		tags, _ := a.Tuple("tags")
		tags[0] = "changed"
		again, _ := a.Tuple("tags")
		assert.Equal(t, Tuple{"a"}, again, "readers receive copies")
	})

	t.Run("RequiredFields", func(t *testing.T) {
		reg := NewRegistry()
		typ := reg.Object("Job").Required("name", "str").Field("retries", "int", 3).MustBuild()

		o := typ.New()
		assert.False(t, o.IsSet("name"))
		_, err := o.Get("name")
		assert.ErrorIs(t, err, ErrFieldNotSet)

		err = o.Freeze()
		assert.ErrorIs(t, err, ErrFieldNotSet)
		assert.False(t, o.IsFrozen())

		require.NoError(t, o.Set("name", "nightly"))
		require.NoError(t, o.Freeze())
		assert.True(t, o.IsFrozen())
		require.NoError(t, o.Freeze(), "freeze is idempotent")
	})

	t.Run("FrozenMutation", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()
		require.NoError(t, o.Freeze())

		err := o.Set("port", 1)
		assert.ErrorIs(t, err, ErrFrozenMutation)
		assert.ErrorIs(t, err, ErrState)

		limits, err := o.Object("limits")
		require.NoError(t, err)
		assert.True(t, limits.IsFrozen(), "freeze is recursive")
		assert.ErrorIs(t, limits.Set("ratio", 1.0), ErrFrozenMutation)
		assert.ErrorIs(t, o.Set("limits.ratio", 1.0), ErrFrozenMutation)
	})

	t.Run("SetCoercesStrictly", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()

		require.NoError(t, o.Set("port", 9090))
		assert.ErrorIs(t, o.Set("port", "9090"), ErrTypeMismatch)
		assert.ErrorIs(t, o.Set("bogus", 1), ErrUnknownField)

		require.NoError(t, o.Set("timeout", 2.5))
		f, err := o.Float64("timeout")
		require.NoError(t, err)
		assert.Equal(t, 2.5, f)
	})

	t.Run("ConcurrentReads", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()
		require.NoError(t, o.Freeze())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_, _ = o.Get("limits.ratio")
					_ = o.ToMap()
				}
			}()
		}
		wg.Wait()
	})
}

// TestOverride tests atomic and dotted overrides
func TestOverride(t *testing.T) {
	t.Run("Atomic", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()

		err := o.Override(map[string]any{"host": "example.com", "port": "not a port"}, ModeRelaxed)
		require.Error(t, err)
		host, _ := o.StringValue("host")
		assert.Equal(t, "localhost", host, "failed override leaves object untouched")

		err = o.Override(map[string]any{"host": "example.com", "bogus": 1}, ModeRelaxed)
		assert.ErrorIs(t, err, ErrUnknownField)
		host, _ = o.StringValue("host")
		assert.Equal(t, "localhost", host)

		require.NoError(t, o.Override(map[string]any{"host": "example.com", "port": "9090"}, ModeRelaxed))
		port, _ := o.Int64("port")
		assert.Equal(t, int64(9090), port)
	})

	t.Run("Dotted", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()
		before, err := o.Object("limits")
		require.NoError(t, err)

		require.NoError(t, o.Override(map[string]any{"limits.max_conns": 5}, ModeRelaxed))

		v, _ := o.Get("limits.max_conns")
		assert.Equal(t, int64(5), v)
		old, _ := before.Int64("max_conns")
		assert.Equal(t, int64(100), old, "nested objects are replaced, not edited")

		err = o.Override(map[string]any{"limits.max_conns": "x"}, ModeRelaxed)
		var ce *CoercionError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "limits.max_conns", ce.Path)

		err = o.Override(map[string]any{"port.sub": 1}, ModeRelaxed)
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("WholeAndDottedTogether", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()

		err := o.Override(map[string]any{
			"limits":       map[string]any{"max_conns": 7, "ratio": 0.1},
			"limits.ratio": 0.9,
		}, ModeRelaxed)
		require.NoError(t, err)

		maxConns, _ := o.Get("limits.max_conns")
		ratio, _ := o.Get("limits.ratio")
		assert.Equal(t, int64(7), maxConns)
		assert.Equal(t, 0.9, ratio, "dotted keys apply on top of the whole value")
	})

	t.Run("FrozenOverride", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()
		require.NoError(t, o.Freeze())

		require.NoError(t, o.Override(map[string]any{"port": 1, "limits.ratio": 0.25}, ModeRelaxed))
		assert.True(t, o.IsFrozen())

		limits, _ := o.Object("limits")
		assert.True(t, limits.IsFrozen(), "replaced nested values are frozen")
		ratio, _ := limits.Float64("ratio")
		assert.Equal(t, 0.25, ratio)
	})

	t.Run("TextOverride", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()

		require.NoError(t, o.OverrideText(map[string]string{
			"debug":   "yes",
			"color":   "blue",
			"tags":    "[x, y]",
			"timeout": "none",
		}))
		debug, _ := o.Bool("debug")
		assert.True(t, debug)
		color, _ := o.Enum("color")
		assert.Equal(t, "BLUE", color.Name())
		tags, _ := o.Tuple("tags")
		assert.Equal(t, Tuple{"x", "y"}, tags)
		none, _ := o.IsNone("timeout")
		assert.True(t, none)
	})

	t.Run("Idempotent", func(t *testing.T) {
		tt := newTestTypes(t)
		updates := map[string]any{"port": 1, "limits.ratio": 0.75, "tags": []any{"q"}}

		once := tt.server.New()
		require.NoError(t, once.Override(updates, ModeRelaxed))
		twice := once.Clone()
		require.NoError(t, twice.Override(updates, ModeRelaxed))
		assert.True(t, once.Equal(twice))
	})

	t.Run("NewWith", func(t *testing.T) {
		tt := newTestTypes(t)
		o, err := tt.server.NewWith(map[string]any{"port": 1}, ModeStrict)
		require.NoError(t, err)
		port, _ := o.Int64("port")
		assert.Equal(t, int64(1), port)

		_, err = tt.server.NewWith(map[string]any{"port": "1"}, ModeStrict)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("StrictTupleElement", func(t *testing.T) {
		reg := NewRegistry()
		display := reg.Object("Display").Field("size", "tuple[int, int]", Tuple{640, 480}).MustBuild()
		o := display.New()

		err := o.Override(map[string]any{"size": Tuple{1, "a"}}, ModeStrict)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		var ce *CoercionError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "size[1]", ce.Path)

		size, err := o.Tuple("size")
		require.NoError(t, err)
		assert.Equal(t, Tuple{int64(640), int64(480)}, size, "failed override leaves object untouched")
	})
}

// TestTxn tests staged overrides
func TestTxn(t *testing.T) {
	t.Run("CommitPublishes", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()

		tx := o.BeginOverride()
		require.NoError(t, tx.Apply(map[string]any{"port": 1}, ModeStrict))
		require.NoError(t, tx.Apply(map[string]any{"host": "h"}, ModeStrict))

		port, _ := o.Int64("port")
		assert.Equal(t, int64(8080), port, "staged values are invisible before commit")

		require.NoError(t, tx.Commit())
		port, _ = o.Int64("port")
		host, _ := o.StringValue("host")
		assert.Equal(t, int64(1), port)
		assert.Equal(t, "h", host)

		assert.ErrorIs(t, tx.Commit(), ErrState)
		assert.ErrorIs(t, tx.Apply(map[string]any{"port": 2}, ModeStrict), ErrState)
	})

	t.Run("FailedApplyKeepsStage", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()

		tx := o.BeginOverride()
		require.NoError(t, tx.Apply(map[string]any{"port": 1}, ModeStrict))
		require.Error(t, tx.Apply(map[string]any{"host": 5, "debug": true}, ModeStrict))
		require.NoError(t, tx.Commit())

		port, _ := o.Int64("port")
		debug, _ := o.Bool("debug")
		assert.Equal(t, int64(1), port)
		assert.False(t, debug, "the failed batch is not staged")
	})

	t.Run("Abort", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()

		tx := o.BeginOverride()
		require.NoError(t, tx.Apply(map[string]any{"port": 1}, ModeStrict))
		tx.Abort()
		assert.ErrorIs(t, tx.Commit(), ErrState)

		port, _ := o.Int64("port")
		assert.Equal(t, int64(8080), port)
	})

	t.Run("FrozenIncompleteNested", func(t *testing.T) {
		reg := NewRegistry()
		job := reg.Object("Job").Required("name", "str").MustBuild()
		queue := reg.Object("Queue").Field("job", "Job | none", nil).MustBuild()

		o := queue.New()
		require.NoError(t, o.Freeze())

		err := o.Override(map[string]any{"job": job.New()}, ModeStrict)
		assert.ErrorIs(t, err, ErrFieldNotSet)
		none, _ := o.IsNone("job")
		assert.True(t, none)

		complete := job.New()
		require.NoError(t, complete.Set("name", "n"))
		require.NoError(t, o.Override(map[string]any{"job": complete}, ModeStrict))
		stored, _ := o.Object("job")
		assert.True(t, stored.IsFrozen())
		assert.False(t, complete.IsFrozen(), "caller's object is copied, not frozen")
	})
}

// TestEquality tests equality, cloning and diffs
func TestEquality(t *testing.T) {
	t.Run("EqualAndClone", func(t *testing.T) {
		tt := newTestTypes(t)
		a := tt.server.New()
		b := a.Clone()
		assert.True(t, a.Equal(b))

		require.NoError(t, b.Set("port", 1))
		assert.False(t, a.Equal(b))

		require.NoError(t, a.Freeze())
		c := a.Clone()
		assert.False(t, c.IsFrozen(), "clones are mutable")
		assert.True(t, a.Equal(c))
	})

	t.Run("DifferentTypesNeverEqual", func(t *testing.T) {
		reg := NewRegistry()
		one := reg.Object("One").Field("x", "int", 1).MustBuild()
		two := reg.Object("Two").Field("x", "int", 1).MustBuild()
		assert.False(t, one.New().Equal(two.New()))
	})

	t.Run("TypeAwareValues", func(t *testing.T) {
		reg := NewRegistry()
		typ := reg.Object("Num").Field("v", "int | float", 1).MustBuild()
		a := typ.New()
		b := typ.New()
		require.NoError(t, b.Set("v", 1.0))
		assert.False(t, a.Equal(b), "int 1 and float 1.0 differ")
	})

	t.Run("DiffFromDefaults", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()
		assert.Empty(t, o.DiffFromDefaults())

		require.NoError(t, o.Override(map[string]any{
			"port":             9090,
			"limits.max_conns": 1,
			"color":            "BLUE",
		}, ModeRelaxed))

		diff := o.DiffFromDefaults()
		assert.Equal(t, map[string]any{
			"port":   int64(9090),
			"limits": map[string]any{"max_conns": int64(1)},
			"color":  tt.color.MustVariant("BLUE"),
		}, diff)

		require.NoError(t, o.Override(map[string]any{"port": 8080}, ModeRelaxed))
		_, changed := o.DiffFromDefaults()["port"]
		assert.False(t, changed, "restoring the default clears the diff")
	})

	t.Run("DumpableRoundTrip", func(t *testing.T) {
		tt := newTestTypes(t)
		o := tt.server.New()
		require.NoError(t, o.Override(map[string]any{"color": "BLUE", "tags": []any{"p", "q"}}, ModeRelaxed))

		dump := o.Dumpable()
		assert.Equal(t, "BLUE", dump["color"])
		assert.Equal(t, []any{"p", "q"}, dump["tags"])
		assert.IsType(t, map[string]any{}, dump["limits"])

		back, err := tt.server.NewWith(dump, ModeRelaxed)
		require.NoError(t, err)
		assert.True(t, o.Equal(back))
	})
}

// ownershipTypes declares an object holding nested objects inside a tuple
func ownershipTypes(t *testing.T) (inner, outer *ObjectType) {
	t.Helper()
	reg := NewRegistry()
	inner = reg.Object("Inner").Field("x", "int", 1).MustBuild()
	outer, err := reg.Object("Outer").
		Field("items", "tuple[Inner, ...]", Tuple{}).
		Field("inner", "Inner", inner).
		Build()
	require.NoError(t, err)
	return inner, outer
}

// storedItems reads the tuple held by the object without copying it
func storedItems(t *testing.T, o *Object) Tuple {
	t.Helper()
	items, ok := o.values[o.typ.index["items"]].(Tuple)
	require.True(t, ok)
	return items
}

// TestOwnership tests that objects never share mutable values with callers or each other
func TestOwnership(t *testing.T) {
	t.Run("TupleElementsCopied", func(t *testing.T) {
		for _, mode := range []Mode{ModeRelaxed, ModeStrict} {
			inner, outer := ownershipTypes(t)
			mine := inner.New()
			o := outer.New()

			var raw any = []any{mine}
			if mode == ModeStrict {
				raw = Tuple{mine}
			}
			require.NoError(t, o.Override(map[string]any{"items": raw}, mode))
			require.NoError(t, mine.Set("x", 99))

			stored := storedItems(t, o)
			require.Len(t, stored, 1)
			assert.NotSame(t, mine, stored[0])
			x, _ := stored[0].(*Object).Int64("x")
			assert.Equal(t, int64(1), x, "caller edits do not reach the stored value")

			require.NoError(t, o.Freeze())
			assert.False(t, mine.IsFrozen(), "freezing the holder leaves the caller's object mutable")
		}
	})

	t.Run("SetCopiesTupleElements", func(t *testing.T) {
		inner, outer := ownershipTypes(t)
		mine := inner.New()
		o := outer.New()
		require.NoError(t, o.Set("items", Tuple{mine}))
		assert.NotSame(t, mine, storedItems(t, o)[0])
	})

	t.Run("TupleDefaultsPerInstance", func(t *testing.T) {
		reg := NewRegistry()
		inner := reg.Object("Inner").Field("x", "int", 1).MustBuild()
		seed := inner.New()
		outer := reg.Object("Outer").Field("items", "tuple[Inner, ...]", Tuple{seed}).MustBuild()

		a, b := outer.New(), outer.New()
		assert.NotSame(t, storedItems(t, a)[0], storedItems(t, b)[0])

		require.NoError(t, a.Freeze())
		assert.False(t, storedItems(t, b)[0].(*Object).IsFrozen())
		assert.False(t, seed.IsFrozen(), "the declared default is not frozen through an instance")

		require.NoError(t, seed.Set("x", 5))
		x, _ := storedItems(t, outer.New())[0].(*Object).Int64("x")
		assert.Equal(t, int64(1), x, "later edits to the seed object do not change the default")
	})

	t.Run("DottedSetThroughFrozenNested", func(t *testing.T) {
		inner, outer := ownershipTypes(t)
		shared := inner.New()
		require.NoError(t, shared.Freeze())

		o := outer.New()
		require.NoError(t, o.Set("inner", shared))
		require.NoError(t, o.Set("inner.x", 7))

		x, _ := o.Get("inner.x")
		assert.Equal(t, int64(7), x)
		nested, _ := o.Object("inner")
		assert.True(t, nested.IsFrozen(), "the replacement stays frozen")
		old, _ := shared.Int64("x")
		assert.Equal(t, int64(1), old, "the shared frozen object is not edited")

		require.NoError(t, o.Freeze())
		assert.ErrorIs(t, o.Set("inner.x", 8), ErrFrozenMutation)
	})
}
