// FILE: lixenwraith/params/store.go
package params

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ValidatorFunc checks a fully loaded snapshot before it is published
type ValidatorFunc func(snapshot *Object) error

// Store publishes frozen snapshots of one object type assembled from layered
// sources. Every load builds a new object off to the side and swaps it in
// whole; a snapshot handed to a reader never changes.
type Store struct {
	typ        *ObjectType
	mutex      sync.RWMutex
	current    *Object
	options    LoadOptions
	security   SecurityOptions
	filePath   string
	args       []string
	fileFormat string
	layers     map[Source]map[string]any
	validators []ValidatorFunc
	logger     *slog.Logger
	watcher    *watcher
}

// NewStore creates a store with the default load options
func NewStore(typ *ObjectType) *Store {
	return NewStoreWithOptions(typ, DefaultLoadOptions())
}

// NewStoreWithOptions creates a store with custom load options.
// If every field has a default, the defaults are published immediately.
func NewStoreWithOptions(typ *ObjectType, opts LoadOptions) *Store {
	s := &Store{
		typ:        typ,
		options:    opts,
		fileFormat: "auto",
		layers:     make(map[Source]map[string]any),
		logger:     slog.Default(),
	}
	defaults := typ.New()
	if defaults.Freeze() == nil {
		s.current = defaults
	}
	return s
}

// SetLogger replaces the logger used for load and reload events
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mutex.Lock()
	s.logger = logger
	s.mutex.Unlock()
}

func (s *Store) log() *slog.Logger {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.logger
}

// SetFileFormat forces the file format instead of detecting it
func (s *Store) SetFileFormat(format string) error {
	switch format {
	case "auto", "toml", "json", "yaml", "binary":
	default:
		return fmt.Errorf("unsupported file format %q", format)
	}
	s.mutex.Lock()
	s.fileFormat = format
	s.mutex.Unlock()
	return nil
}

// SetSecurityOptions configures file loading limits
func (s *Store) SetSecurityOptions(opts SecurityOptions) {
	s.mutex.Lock()
	s.security = opts
	s.mutex.Unlock()
}

// AddValidator registers a check that every new snapshot must pass
func (s *Store) AddValidator(fn ValidatorFunc) {
	if fn == nil {
		return
	}
	s.mutex.Lock()
	s.validators = append(s.validators, fn)
	s.mutex.Unlock()
}

// Type returns the object type the store holds
func (s *Store) Type() *ObjectType { return s.typ }

// Snapshot returns the current frozen object, or nil if no complete
// snapshot has been loaded yet. The result is safe for concurrent reads.
func (s *Store) Snapshot() *Object {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.current
}

// Get reads a dotted path from the current snapshot
func (s *Store) Get(path string) (any, error) {
	snap := s.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("%w: %s (nothing loaded)", ErrFieldNotSet, path)
	}
	return snap.Get(path)
}

// Update applies values on top of the current snapshot and publishes the result.
// The previous snapshot is left untouched for readers still holding it.
func (s *Store) Update(updates map[string]any, mode Mode) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	base := s.current
	if base == nil {
		base = s.typ.New()
	}
	next := base.Clone()
	if err := next.Override(updates, mode); err != nil {
		return err
	}
	return s.publishLocked(next)
}

// publishLocked freezes, validates and swaps in a new snapshot. Caller holds the write lock.
func (s *Store) publishLocked(next *Object) error {
	if err := next.Freeze(); err != nil {
		return err
	}
	for _, validate := range s.validators {
		if err := validate(next); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	s.current = next
	return nil
}

// Validate checks that each path was supplied by a source other than defaults
func (s *Store) Validate(required ...string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var missing []string
	for _, path := range required {
		if _, ok := s.typ.pathNode(path); !ok {
			missing = append(missing, path+" (not declared)")
			continue
		}
		if s.sourceOf(path) == SourceDefault {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// sourceOf reports the highest precedence source that supplied a path, a parent or a child of it
func (s *Store) sourceOf(path string) Source {
	for _, source := range s.options.Sources {
		for key := range s.layers[source] {
			if key == path || strings.HasPrefix(key, path+".") || strings.HasPrefix(path, key+".") {
				return source
			}
		}
	}
	return SourceDefault
}

// pathNode resolves a dotted field path to its declared type
func (t *ObjectType) pathNode(path string) (*TypeNode, bool) {
	f, ok := t.pathField(path)
	if !ok {
		return nil, false
	}
	return f.node, true
}

// pathField resolves a dotted path to the declaration of its last segment
func (t *ObjectType) pathField(path string) (*Field, bool) {
	head, rest, dotted := strings.Cut(path, ".")
	f, ok := t.Field(head)
	if !ok {
		return nil, false
	}
	if !dotted {
		return f, true
	}
	if f.node.kind != KindObject {
		return nil, false
	}
	return f.node.object.pathField(rest)
}
