// FILE: lixenwraith/params/env_test.go
package params

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOnly(prefix string) LoadOptions {
	return LoadOptions{Sources: []Source{SourceEnv, SourceDefault}, EnvPrefix: prefix}
}

func TestEnvironmentLoading(t *testing.T) {
	t.Run("BasicEnvironmentLoading", func(t *testing.T) {
		t.Setenv("ETEST_HOST", "env-host")
		t.Setenv("ETEST_PORT", "9999")
		t.Setenv("ETEST_DEBUG", "yes")
		t.Setenv("ETEST_LIMITS_MAX_CONNS", "12")

		tt := newTestTypes(t)
		store := NewStore(tt.server)
		require.NoError(t, store.LoadWithOptions("", nil, envOnly("ETEST_")))

		snap := store.Snapshot()
		host, _ := snap.StringValue("host")
		port, _ := snap.Int64("port")
		debug, _ := snap.Bool("debug")
		maxConns, _ := snap.Get("limits.max_conns")
		assert.Equal(t, "env-host", host)
		assert.Equal(t, int64(9999), port)
		assert.True(t, debug)
		assert.Equal(t, int64(12), maxConns)
	})

	t.Run("CompositeValuesFromText", func(t *testing.T) {
		t.Setenv("ETEXT_TAGS", "[x, y, z]")
		t.Setenv("ETEXT_COLOR", "2")
		t.Setenv("ETEXT_TIMEOUT", "2.5")

		tt := newTestTypes(t)
		store := NewStore(tt.server)
		require.NoError(t, store.LoadWithOptions("", nil, envOnly("ETEXT_")))

		tags, _ := store.Snapshot().Tuple("tags")
		color, _ := store.Snapshot().Enum("color")
		timeout, _ := store.Get("timeout")
		assert.Equal(t, Tuple{"x", "y", "z"}, tags)
		assert.Equal(t, "BLUE", color.Name(), "variant values are accepted as text")
		assert.Equal(t, 2.5, timeout)

		t.Setenv("ETEXT_TIMEOUT", "none")
		require.NoError(t, store.Reload())
		isNone, err := store.Snapshot().IsNone("timeout")
		require.NoError(t, err)
		assert.True(t, isNone)
	})

	t.Run("WholeNestedObject", func(t *testing.T) {
		t.Setenv("ENEST_LIMITS", "{max_conns: 3, ratio: 0.9}")

		tt := newTestTypes(t)
		store := NewStore(tt.server)
		require.NoError(t, store.LoadWithOptions("", nil, envOnly("ENEST_")))

		maxConns, _ := store.Get("limits.max_conns")
		ratio, _ := store.Get("limits.ratio")
		assert.Equal(t, int64(3), maxConns)
		assert.Equal(t, 0.9, ratio)
	})

	t.Run("CustomEnvironmentTransform", func(t *testing.T) {
		t.Setenv("PORT", "3000")
		t.Setenv("LISTEN_ADDR", "0.0.0.0")

		tt := newTestTypes(t)
		store := NewStore(tt.server)
		opts := LoadOptions{
			Sources: []Source{SourceEnv, SourceDefault},
			EnvTransform: func(path string) string {
				mapping := map[string]string{
					"port": "PORT",
					"host": "LISTEN_ADDR",
				}
				return mapping[path]
			},
		}
		require.NoError(t, store.LoadWithOptions("", nil, opts))

		port, _ := store.Get("port")
		host, _ := store.Get("host")
		assert.Equal(t, int64(3000), port)
		assert.Equal(t, "0.0.0.0", host)
	})

	t.Run("EnvironmentDiscovery", func(t *testing.T) {
		t.Setenv("EDISC_HOST", "discovered")
		t.Setenv("EDISC_LIMITS_RATIO", "0.1")
		t.Setenv("EDISC_UNDECLARED", "ignored")

		tt := newTestTypes(t)
		store := NewStore(tt.server)
		discovered := store.DiscoverEnv("EDISC_")

		assert.Len(t, discovered, 2)
		assert.Equal(t, "EDISC_HOST", discovered["host"])
		assert.Equal(t, "EDISC_LIMITS_RATIO", discovered["limits.ratio"])
		assert.NotContains(t, discovered, "undeclared")
	})

	t.Run("EnvironmentWhitelist", func(t *testing.T) {
		t.Setenv("EWL_HOST", "secret-host")
		t.Setenv("EWL_PORT", "5555")

		tt := newTestTypes(t)
		store := NewStore(tt.server)
		opts := envOnly("EWL_")
		opts.EnvWhitelist = map[string]bool{"host": true}
		require.NoError(t, store.LoadWithOptions("", nil, opts))

		host, _ := store.Get("host")
		port, _ := store.Get("port")
		assert.Equal(t, "secret-host", host)
		assert.Equal(t, int64(8080), port, "paths outside the whitelist keep defaults")
	})

	t.Run("InvalidEnvironmentValue", func(t *testing.T) {
		t.Setenv("EBAD_PORT", "not-a-port")

		tt := newTestTypes(t)
		store := NewStore(tt.server)
		err := store.LoadWithOptions("", nil, envOnly("EBAD_"))
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.Contains(t, err.Error(), "env source")
	})

	t.Run("OversizedEnvironmentValue", func(t *testing.T) {
		t.Setenv("EBIG_HOST", strings.Repeat("h", MaxValueSize+1))
		t.Setenv("EBIG_PORT", "1234")

		tt := newTestTypes(t)
		store := NewStore(tt.server)
		err := store.LoadWithOptions("", nil, envOnly("EBIG_"))
		assert.ErrorIs(t, err, ErrValueSize)

		port, _ := store.Get("port")
		assert.Equal(t, int64(8080), port, "the env layer is skipped as a whole")
	})
}

func TestExportEnv(t *testing.T) {
	tt := newTestTypes(t)
	store := NewStore(tt.server)
	require.NoError(t, store.Update(map[string]any{
		"host":             "exported",
		"color":            "BLUE",
		"tags":             []any{"p", "q"},
		"timeout":          1.5,
		"limits.max_conns": 7,
	}, ModeRelaxed))

	t.Run("OnlyChangedValues", func(t *testing.T) {
		exports := store.ExportEnv("EXP_")

		assert.Equal(t, "exported", exports["EXP_HOST"])
		assert.Equal(t, "BLUE", exports["EXP_COLOR"])
		assert.Equal(t, `["p","q"]`, exports["EXP_TAGS"])
		assert.Equal(t, "1.5", exports["EXP_TIMEOUT"])
		assert.Equal(t, "7", exports["EXP_LIMITS_MAX_CONNS"])

		assert.NotContains(t, exports, "EXP_PORT", "defaults are not exported")
		assert.NotContains(t, exports, "EXP_LIMITS_RATIO")
		assert.Len(t, exports, 5)
	})

	t.Run("RoundTripThroughEnvironment", func(t *testing.T) {
		for name, value := range store.ExportEnv("EXPRT_") {
			t.Setenv(name, value)
		}

		reloaded := NewStore(tt.server)
		require.NoError(t, reloaded.LoadWithOptions("", nil, envOnly("EXPRT_")))
		assert.True(t, store.Snapshot().Equal(reloaded.Snapshot()))
	})

	t.Run("SetEnv", func(t *testing.T) {
		t.Setenv("EXPSET_HOST", "")
		require.NoError(t, store.SetEnv("EXPSET_"))
		assert.Equal(t, "exported", os.Getenv("EXPSET_HOST"))
		assert.Equal(t, "7", os.Getenv("EXPSET_LIMITS_MAX_CONNS"))

		for _, name := range []string{"EXPSET_COLOR", "EXPSET_TAGS", "EXPSET_TIMEOUT", "EXPSET_LIMITS_MAX_CONNS"} {
			os.Unsetenv(name)
		}
	})

	t.Run("NothingLoaded", func(t *testing.T) {
		reg := NewRegistry()
		typ := reg.Object("Job").Required("name", "str").MustBuild()
		assert.Empty(t, NewStore(typ).ExportEnv("JOB_"))
	})
}
