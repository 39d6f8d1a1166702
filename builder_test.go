// FILE: lixenwraith/params/builder_test.go
package params

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuilder tests the builder pattern
func TestBuilder(t *testing.T) {
	t.Run("BasicBuilder", func(t *testing.T) {
		tt := newTestTypes(t)
		store, err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_BASIC_").
			WithArgs(nil).
			Build()

		require.NoError(t, err)
		require.NotNil(t, store)

		val, err := store.Get("host")
		require.NoError(t, err)
		assert.Equal(t, "localhost", val)
		assert.True(t, store.Snapshot().IsFrozen())
	})

	t.Run("Precedence", func(t *testing.T) {
		tmpDir := t.TempDir()
		paramFile := filepath.Join(tmpDir, "server.toml")
		require.NoError(t, os.WriteFile(paramFile, []byte(`
host = "filehost"
port = 1000

[limits]
max_conns = 5
ratio = 0.1
`), 0644))

		t.Setenv("BTEST_PORT", "2000")
		t.Setenv("BTEST_LIMITS_RATIO", "0.2")
		t.Setenv("BTEST_COLOR", "blue")

		tt := newTestTypes(t)
		store, err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_").
			WithFile(paramFile).
			WithArgs([]string{"--limits.ratio", "0.3", "--debug", "--config", "ignored.toml"}).
			Build()
		require.NoError(t, err)

		snap := store.Snapshot()
		host, _ := snap.StringValue("host")
		port, _ := snap.Int64("port")
		maxConns, _ := snap.Get("limits.max_conns")
		ratio, _ := snap.Get("limits.ratio")
		debug, _ := snap.Bool("debug")
		color, _ := snap.Enum("color")

		assert.Equal(t, "filehost", host, "file over default")
		assert.Equal(t, int64(2000), port, "env over file")
		assert.Equal(t, int64(5), maxConns)
		assert.Equal(t, 0.3, ratio, "cli over env")
		assert.True(t, debug, "bare flag means true")
		assert.Equal(t, "BLUE", color.Name())
	})

	t.Run("CustomSources", func(t *testing.T) {
		tmpDir := t.TempDir()
		paramFile := filepath.Join(tmpDir, "server.yaml")
		require.NoError(t, os.WriteFile(paramFile, []byte("port: 1000\n"), 0644))
		t.Setenv("BTEST_SRC_PORT", "2000")

		tt := newTestTypes(t)
		store, err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_SRC_").
			WithFile(paramFile).
			WithArgs([]string{"--port=3000"}).
			WithSources(SourceFile, SourceEnv, SourceDefault).
			Build()
		require.NoError(t, err)

		port, _ := store.Get("port")
		assert.Equal(t, int64(1000), port, "file first, cli not listed")
	})

	t.Run("EnvTransformAndWhitelist", func(t *testing.T) {
		t.Setenv("CUSTOM_LIMITS__MAX_CONNS", "42")
		t.Setenv("CUSTOM_HOST", "envhost")

		tt := newTestTypes(t)
		store, err := NewBuilder(tt.server).
			WithEnvTransform(func(path string) string {
				return "CUSTOM_" + strings.ToUpper(strings.ReplaceAll(path, ".", "__"))
			}).
			WithEnvWhitelist("limits.max_conns").
			WithArgs(nil).
			Build()
		require.NoError(t, err)

		maxConns, _ := store.Get("limits.max_conns")
		host, _ := store.Get("host")
		assert.Equal(t, int64(42), maxConns)
		assert.Equal(t, "localhost", host, "non-whitelisted paths are not read")
	})

	t.Run("MissingFile", func(t *testing.T) {
		tt := newTestTypes(t)
		store, err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_MISSING_").
			WithFile(filepath.Join(t.TempDir(), "absent.toml")).
			WithArgs([]string{"--port", "1234"}).
			Build()

		assert.ErrorIs(t, err, ErrConfigNotFound)
		require.NotNil(t, store, "a missing file still yields a store")
		port, _ := store.Get("port")
		assert.Equal(t, int64(1234), port)
	})

	t.Run("RequiredFields", func(t *testing.T) {
		reg := NewRegistry()
		typ := reg.Object("Job").Required("name", "str").Field("retries", "int", 3).MustBuild()

		_, err := NewBuilder(typ).WithEnvPrefix("BTEST_JOB_").WithArgs(nil).Build()
		assert.ErrorIs(t, err, ErrFieldNotSet)

		store, err := NewBuilder(typ).WithEnvPrefix("BTEST_JOB_").WithArgs([]string{"--name=nightly"}).Build()
		require.NoError(t, err)
		name, _ := store.Snapshot().StringValue("name")
		assert.Equal(t, "nightly", name)
	})

	t.Run("InvalidValues", func(t *testing.T) {
		tt := newTestTypes(t)
		_, err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_INVALID_").
			WithArgs([]string{"--port", "eighty"}).
			Build()
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.Contains(t, err.Error(), "cli source")
	})

	t.Run("BuilderErrors", func(t *testing.T) {
		_, err := NewBuilder(nil).Build()
		assert.ErrorIs(t, err, ErrDeclaration)

		tt := newTestTypes(t)
		_, err = NewBuilder(tt.server).WithFileFormat("xml").WithArgs(nil).Build()
		assert.Error(t, err)
	})

	t.Run("MustBuildPanic", func(t *testing.T) {
		tt := newTestTypes(t)
		assert.Panics(t, func() {
			NewBuilder(tt.server).WithArgs([]string{"--port=x"}).MustBuild()
		})
		assert.NotPanics(t, func() {
			NewBuilder(tt.server).
				WithEnvPrefix("BTEST_MUST_").
				WithFile(filepath.Join(t.TempDir(), "absent.toml")).
				WithArgs(nil).
				MustBuild()
		})
	})

	t.Run("BuildAndScan", func(t *testing.T) {
		type Limits struct {
			MaxConns int     `toml:"max_conns"`
			Ratio    float64 `toml:"ratio"`
		}
		type Server struct {
			Host    string   `toml:"host"`
			Port    int      `toml:"port"`
			Color   string   `toml:"color"`
			Tags    []string `toml:"tags"`
			Timeout *float64 `toml:"timeout"`
			Limits  Limits   `toml:"limits"`
		}

		tt := newTestTypes(t)
		var target Server
		err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_SCAN_").
			WithArgs([]string{"--port=9000", "--limits.max_conns=7"}).
			BuildAndScan(&target)
		require.NoError(t, err)

		assert.Equal(t, "localhost", target.Host)
		assert.Equal(t, 9000, target.Port)
		assert.Equal(t, "RED", target.Color)
		assert.Equal(t, []string{"a"}, target.Tags)
		assert.Nil(t, target.Timeout)
		assert.Equal(t, 7, target.Limits.MaxConns)
		assert.Equal(t, 0.5, target.Limits.Ratio)
	})
}

// TestBuilderWithValidator tests snapshot validators
func TestBuilderWithValidator(t *testing.T) {
	portRange := func(snap *Object) error {
		port, err := snap.Int64("port")
		if err != nil {
			return err
		}
		if port < 1024 {
			return fmt.Errorf("port %d is privileged", port)
		}
		return nil
	}

	t.Run("ValidSnapshot", func(t *testing.T) {
		tt := newTestTypes(t)
		store, err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_VAL_").
			WithArgs(nil).
			WithValidator(portRange).
			Build()
		require.NoError(t, err)
		require.NotNil(t, store.Snapshot())
	})

	t.Run("InvalidSnapshot", func(t *testing.T) {
		tt := newTestTypes(t)
		_, err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_VAL_").
			WithArgs([]string{"--port=80"}).
			WithValidator(portRange).
			Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "privileged")
	})

	t.Run("UpdateRespectsValidators", func(t *testing.T) {
		tt := newTestTypes(t)
		store, err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_VAL_").
			WithArgs(nil).
			WithValidator(portRange).
			Build()
		require.NoError(t, err)
		before := store.Snapshot()

		require.Error(t, store.Update(map[string]any{"port": 80}, ModeStrict))
		assert.Same(t, before, store.Snapshot(), "rejected updates publish nothing")

		require.NoError(t, store.Update(map[string]any{"port": 8443}, ModeStrict))
		port, _ := store.Get("port")
		assert.Equal(t, int64(8443), port)
		old, _ := before.Int64("port")
		assert.Equal(t, int64(8080), old)
	})
}

// TestFileDiscovery tests parameter file discovery
func TestFileDiscovery(t *testing.T) {
	t.Run("DiscoveryWithCLIFlag", func(t *testing.T) {
		tmpDir := t.TempDir()
		paramFile := filepath.Join(tmpDir, "custom.toml")
		require.NoError(t, os.WriteFile(paramFile, []byte(`host = "clifile"`), 0644))

		tt := newTestTypes(t)
		store, err := NewBuilder(tt.server).
			WithEnvPrefix("BTEST_DISC_").
			WithArgs([]string{"--config", paramFile}).
			WithFileDiscovery(FileDiscoveryOptions{Name: "myapp", CLIFlag: "--config"}).
			Build()
		require.NoError(t, err)

		host, _ := store.Get("host")
		assert.Equal(t, "clifile", host)
	})

	t.Run("DiscoveryWithEnvVar", func(t *testing.T) {
		tmpDir := t.TempDir()
		paramFile := filepath.Join(tmpDir, "env.yaml")
		require.NoError(t, os.WriteFile(paramFile, []byte("host: envfile\n"), 0644))
		t.Setenv("MYAPP_PARAMS", paramFile)

		path, ok := DiscoverFile(FileDiscoveryOptions{Name: "myapp", EnvVar: "MYAPP_PARAMS"}, nil)
		require.True(t, ok)
		assert.Equal(t, paramFile, path)
	})

	t.Run("DiscoveryInSearchPath", func(t *testing.T) {
		tmpDir := t.TempDir()
		paramFile := filepath.Join(tmpDir, "myapp.json")
		require.NoError(t, os.WriteFile(paramFile, []byte(`{"host": "searched"}`), 0644))

		opts := FileDiscoveryOptions{
			Name:       "myapp",
			Extensions: []string{".toml", ".json"},
			Paths:      []string{filepath.Join(tmpDir, "missing"), tmpDir},
		}
		path, ok := DiscoverFile(opts, nil)
		require.True(t, ok)
		assert.Equal(t, paramFile, path)
	})

	t.Run("DiscoveryPrecedence", func(t *testing.T) {
		tmpDir := t.TempDir()
		cliFile := filepath.Join(tmpDir, "cli.toml")
		envFile := filepath.Join(tmpDir, "env.toml")
		require.NoError(t, os.WriteFile(cliFile, []byte(`host = "clifile"`), 0644))
		require.NoError(t, os.WriteFile(envFile, []byte(`host = "envfile"`), 0644))
		t.Setenv("MYAPP_CONFIG", envFile)

		path, ok := DiscoverFile(DefaultDiscoveryOptions("myapp"), []string{"--config=" + cliFile})
		require.True(t, ok)
		assert.Equal(t, cliFile, path)
	})

	t.Run("NothingFound", func(t *testing.T) {
		_, ok := DiscoverFile(FileDiscoveryOptions{
			Name:       "nonexistent-app",
			Extensions: []string{".toml"},
			Paths:      []string{t.TempDir()},
		}, nil)
		assert.False(t, ok)
	})
}
