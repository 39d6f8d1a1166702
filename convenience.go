// FILE: lixenwraith/params/convenience.go
package params

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Quick builds a store with the standard precedence CLI > Env > File > Default
func Quick(typ *ObjectType, envPrefix, configFile string) (*Store, error) {
	return NewBuilder(typ).
		WithEnvPrefix(envPrefix).
		WithFile(configFile).
		Build()
}

// QuickCustom builds a store with custom load options
func QuickCustom(typ *ObjectType, opts LoadOptions, configFile string) (*Store, error) {
	return NewBuilder(typ).
		WithSources(opts.Sources...).
		WithEnvPrefix(opts.EnvPrefix).
		WithEnvTransform(opts.EnvTransform).
		WithFile(configFile).
		Build()
}

// MustQuick is like Quick but panics on error
func MustQuick(typ *ObjectType, envPrefix, configFile string) *Store {
	s, err := Quick(typ, envPrefix, configFile)
	if err != nil {
		panic(fmt.Sprintf("parameter store initialization failed: %v", err))
	}
	return s
}

// GenerateFlags creates a pflag entry for every declared leaf path.
// Bool, int and float fields get typed flags; everything else takes text.
func (s *Store) GenerateFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet(s.typ.name, pflag.ContinueOnError)

	for _, path := range s.typ.Paths() {
		f, _ := s.typ.pathField(path)
		if f.node.kind == KindObject {
			continue
		}
		usage := f.doc
		if usage == "" {
			usage = "Parameter: " + path
		}

		def, hasDefault := f.Default()
		switch f.node.kind {
		case KindBool:
			v, _ := def.(bool)
			fs.Bool(path, v, usage)
		case KindInt:
			v, _ := def.(int64)
			fs.Int64(path, v, usage)
		case KindFloat:
			v, _ := def.(float64)
			fs.Float64(path, v, usage)
		default:
			text := ""
			if hasDefault {
				text = valueText(def)
			}
			fs.String(path, text, usage)
		}
	}

	return fs
}

// BindFlags applies the flags that were set on the command line as one update
func (s *Store) BindFlags(fs *pflag.FlagSet) error {
	updates := make(map[string]any)
	fs.Visit(func(f *pflag.Flag) {
		if _, ok := s.typ.pathNode(f.Name); ok {
			updates[f.Name] = f.Value.String()
		}
	})
	if len(updates) == 0 {
		return nil
	}
	if err := s.Update(updates, ModeFromText); err != nil {
		return fmt.Errorf("failed to bind %d flags: %w", len(updates), err)
	}
	return nil
}

// Debug returns a formatted listing of current values and the sources that supplied them
func (s *Store) Debug() string {
	snap := s.Snapshot()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Parameters %s:\n", s.typ.name)
	fmt.Fprintf(&b, "Precedence: %v\n", s.options.Sources)
	fmt.Fprintf(&b, "Loaded sources: %v\n", s.loadedSources())
	if snap == nil {
		b.WriteString("No snapshot loaded\n")
		return b.String()
	}

	b.WriteString("Current values:\n")
	current := flattenMap(snap.ToMap(), "")
	for _, path := range sortedKeys(current) {
		fmt.Fprintf(&b, "  %s: %v (%s)\n", path, current[path], s.sourceOf(path))
	}
	return b.String()
}

// Dump writes the current snapshot as YAML
func (s *Store) Dump(w io.Writer) error {
	snap := s.Snapshot()
	if snap == nil {
		return fmt.Errorf("%w: nothing loaded to dump", ErrFieldNotSet)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap.Dumpable()); err != nil {
		return err
	}
	return enc.Close()
}

// ExportEnv renders the values that differ from the defaults as environment
// variables that a later load reads back to the same snapshot
func (s *Store) ExportEnv(prefix string) map[string]string {
	snap := s.Snapshot()
	exports := make(map[string]string)
	if snap == nil {
		return exports
	}

	s.mutex.RLock()
	transform := s.options.EnvTransform
	s.mutex.RUnlock()
	if transform == nil {
		transform = defaultEnvTransform(prefix)
	}

	for path, value := range flattenMap(snap.DiffFromDefaults(), "") {
		exports[transform(path)] = valueText(value)
	}
	return exports
}

// SetEnv exports the differing values into the process environment
func (s *Store) SetEnv(prefix string) error {
	for name, value := range s.ExportEnv(prefix) {
		if err := os.Setenv(name, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return nil
}

// valueText renders a canonical value as text that FromText coercion accepts
func valueText(v any) string {
	plain := dumpValue(v)
	if s, ok := plain.(string); ok {
		return s
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return fmt.Sprintf("%v", plain)
	}
	return string(data)
}
