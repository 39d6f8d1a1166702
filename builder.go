// FILE: lixenwraith/params/builder.go
package params

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Builder provides a fluent interface for assembling a Store
type Builder struct {
	typ        *ObjectType
	opts       LoadOptions
	file       string
	format     string
	args       []string
	logger     *slog.Logger
	security   *SecurityOptions
	err        error
	validators []ValidatorFunc
}

// NewBuilder creates a builder for snapshots of the given object type
func NewBuilder(typ *ObjectType) *Builder {
	b := &Builder{
		typ:  typ,
		opts: DefaultLoadOptions(),
		args: os.Args[1:],
	}
	if typ == nil {
		b.err = fmt.Errorf("%w: builder needs an object type", ErrDeclaration)
	}
	return b
}

// WithEnvPrefix sets the environment variable prefix
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	b.opts.EnvPrefix = prefix
	return b
}

// WithFile sets the parameter file path
func (b *Builder) WithFile(path string) *Builder {
	b.file = path
	return b
}

// WithFileFormat forces the parameter file format
func (b *Builder) WithFileFormat(format string) *Builder {
	b.format = format
	return b
}

// WithArgs sets the command-line arguments
func (b *Builder) WithArgs(args []string) *Builder {
	b.args = args
	return b
}

// WithSources sets the precedence order for sources
func (b *Builder) WithSources(sources ...Source) *Builder {
	b.opts.Sources = sources
	return b
}

// WithEnvTransform sets a custom environment variable transformer
func (b *Builder) WithEnvTransform(fn EnvTransformFunc) *Builder {
	b.opts.EnvTransform = fn
	return b
}

// WithEnvWhitelist limits which paths are checked for env vars
func (b *Builder) WithEnvWhitelist(paths ...string) *Builder {
	if b.opts.EnvWhitelist == nil {
		b.opts.EnvWhitelist = make(map[string]bool)
	}
	for _, path := range paths {
		b.opts.EnvWhitelist[path] = true
	}
	return b
}

// WithSecurityOptions limits what the file source accepts
func (b *Builder) WithSecurityOptions(opts SecurityOptions) *Builder {
	b.security = &opts
	return b
}

// WithLogger sets the logger of the built store
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithValidator adds a check that every published snapshot must pass.
// Validators run in the order they are added.
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Build creates the store and performs the first load.
// A missing file is returned as ErrConfigNotFound alongside a usable store.
func (b *Builder) Build() (*Store, error) {
	if b.err != nil {
		return nil, b.err
	}

	s := NewStoreWithOptions(b.typ, b.opts)
	s.SetLogger(b.logger)
	if b.format != "" {
		if err := s.SetFileFormat(b.format); err != nil {
			return nil, err
		}
	}
	if b.security != nil {
		s.SetSecurityOptions(*b.security)
	}
	for _, fn := range b.validators {
		s.AddValidator(fn)
	}

	loadErr := s.LoadWithOptions(b.file, b.args, b.opts)
	if loadErr != nil && !errors.Is(loadErr, ErrConfigNotFound) {
		return nil, loadErr
	}
	return s, loadErr
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Store {
	s, err := b.Build()
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		panic(fmt.Sprintf("parameter store build failed: %v", err))
	}
	return s
}

// BuildAndScan builds the store and decodes its snapshot into target
func (b *Builder) BuildAndScan(target any) error {
	s, err := b.Build()
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return err
	}

	if scanErr := s.Scan("", target); scanErr != nil {
		return fmt.Errorf("failed to scan final snapshot into target: %w", scanErr)
	}
	return err
}
