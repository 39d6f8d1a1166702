// FILE: lixenwraith/params/loader.go
package params

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Source represents a configuration source, used to define load precedence
type Source string

const (
	// SourceDefault represents the declared field defaults
	SourceDefault Source = "default"
	// SourceFile represents values loaded from a parameter file
	SourceFile Source = "file"
	// SourceEnv represents values loaded from environment variables
	SourceEnv Source = "env"
	// SourceCLI represents values loaded from command-line arguments
	SourceCLI Source = "cli"
)

// EnvTransformFunc converts a field path to an environment variable name
type EnvTransformFunc func(path string) string

// LoadOptions configures how a snapshot is assembled from multiple sources
type LoadOptions struct {
	// Sources defines the precedence order (first = highest priority)
	// Default: [SourceCLI, SourceEnv, SourceFile, SourceDefault]
	Sources []Source

	// EnvPrefix is prepended to environment variable names
	// Example: "MYAPP_" transforms "server.port" to "MYAPP_SERVER_PORT"
	EnvPrefix string

	// EnvTransform customizes how paths map to environment variables
	// If nil, uses default transformation (dots and dashes to underscores, uppercase)
	EnvTransform EnvTransformFunc

	// EnvWhitelist limits which paths are checked for env vars (nil = all)
	EnvWhitelist map[string]bool
}

// SecurityOptions limits what the file source accepts
type SecurityOptions struct {
	// PreventPathTraversal rejects relative paths that climb out of the working directory
	PreventPathTraversal bool

	// MaxFileSize caps the file size in bytes (0 = unlimited)
	MaxFileSize int64
}

// DefaultLoadOptions returns the standard load options
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Sources: []Source{SourceCLI, SourceEnv, SourceFile, SourceDefault},
	}
}

// Load assembles a snapshot from the file, the environment and args using the store options
func (s *Store) Load(filePath string, args []string) error {
	s.mutex.RLock()
	opts := s.options
	s.mutex.RUnlock()
	return s.LoadWithOptions(filePath, args, opts)
}

// Reload repeats the last load with the same file, args and options
func (s *Store) Reload() error {
	s.mutex.RLock()
	filePath, args, opts := s.filePath, s.args, s.options
	s.mutex.RUnlock()
	return s.LoadWithOptions(filePath, args, opts)
}

// LoadWithOptions applies every source as an override layer on a fresh default
// object, lowest precedence first, then freezes and publishes the result.
// A missing file is reported with ErrConfigNotFound but does not stop the load.
func (s *Store) LoadWithOptions(filePath string, args []string, opts LoadOptions) error {
	s.mutex.RLock()
	format, security, logger := s.fileFormat, s.security, s.logger
	s.mutex.RUnlock()

	var loadErrors []error
	layers := make(map[Source]map[string]any)

	next := s.typ.New()
	tx := next.BeginOverride()

	// Process each source according to precedence (in reverse order for proper layering)
	for i := len(opts.Sources) - 1; i >= 0; i-- {
		source := opts.Sources[i]

		var values map[string]any
		mode := ModeFromText

		switch source {
		case SourceDefault:
			continue

		case SourceFile:
			if filePath == "" {
				continue
			}
			data, err := s.readFile(filePath, format, security)
			if err != nil {
				if errors.Is(err, ErrConfigNotFound) {
					loadErrors = append(loadErrors, err)
					continue
				}
				tx.Abort()
				return err
			}
			values, mode = data, ModeRelaxed

		case SourceEnv:
			env, err := collectEnv(s.typ, opts)
			if err != nil {
				loadErrors = append(loadErrors, err)
				continue
			}
			values = env

		case SourceCLI:
			if len(args) == 0 {
				continue
			}
			cli, err := parseArgs(args)
			if err != nil {
				loadErrors = append(loadErrors, fmt.Errorf("%w: %w", ErrCLIParse, err))
				continue
			}
			values = make(map[string]any, len(cli))
			for path, text := range cli {
				if _, ok := s.typ.pathNode(path); !ok {
					logger.Debug("ignoring undeclared argument", "type", s.typ.name, "path", path)
					continue
				}
				values[path] = text
			}
		}

		if len(values) == 0 {
			continue
		}
		if err := tx.Apply(values, mode); err != nil {
			tx.Abort()
			return fmt.Errorf("%s source: %w", source, err)
		}
		layers[source] = flattenMap(values, "")
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.mutex.Lock()
	if err := s.publishLocked(next); err != nil {
		s.mutex.Unlock()
		return err
	}
	s.options = opts
	s.filePath = filePath
	s.args = args
	s.layers = layers
	s.mutex.Unlock()

	logger.Debug("parameters loaded",
		"type", s.typ.name,
		"file", filePath,
		"layers", len(layers))

	return errors.Join(loadErrors...)
}

// LoadFile replaces the snapshot with one built from defaults and a single file
func (s *Store) LoadFile(filePath string) error {
	return s.LoadWithOptions(filePath, nil, LoadOptions{Sources: []Source{SourceFile, SourceDefault}})
}

// readFile parses a parameter file into a nested map of raw values.
// An empty file yields an empty map.
func (s *Store) readFile(path, format string, security SecurityOptions) (map[string]any, error) {
	if security.PreventPathTraversal {
		cleanPath := filepath.Clean(path)
		if !filepath.IsAbs(path) && (cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator))) {
			return nil, fmt.Errorf("potential path traversal detected in config path: %s", path)
		}
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat config file '%s': %w", path, err)
	}
	if security.MaxFileSize > 0 && fileInfo.Size() > security.MaxFileSize {
		return nil, fmt.Errorf("config file '%s' exceeds maximum size %d bytes", path, security.MaxFileSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if security.MaxFileSize > 0 {
		reader = io.LimitReader(file, security.MaxFileSize)
	}
	fileData, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if len(bytes.TrimSpace(fileData)) == 0 {
		return map[string]any{}, nil
	}

	if format == "" || format == "auto" {
		format = DetectFormat(path, fileData)
	}
	if format == "" {
		return nil, fmt.Errorf("unable to determine config format for file '%s'", path)
	}

	if format == "binary" {
		obj, err := s.typ.DecodeObject(fileData)
		if err != nil {
			return nil, fmt.Errorf("failed to decode parameter file '%s': %w", path, err)
		}
		return obj.ToMap(), nil
	}

	fileConfig, err := ParseDocument(fileData, format)
	if err != nil {
		return nil, fmt.Errorf("config file '%s': %w", path, err)
	}
	return fileConfig, nil
}

// ParseDocument parses a TOML, JSON or YAML document into a nested map.
// JSON numbers are kept as json.Number so integers keep full precision.
func ParseDocument(data []byte, format string) (map[string]any, error) {
	doc := make(map[string]any)
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber() // Preserve number precision
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
	return doc, nil
}

// DetectFormat names the format of a file from its extension, then its content
func DetectFormat(path string, data []byte) string {
	if format := detectFileFormat(path); format != "" {
		return format
	}
	return detectFormatFromContent(data)
}

// collectEnv reads the environment variable of every declared path
func collectEnv(typ *ObjectType, opts LoadOptions) (map[string]any, error) {
	transform := opts.EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(opts.EnvPrefix)
	}

	found := make(map[string]any)
	for _, path := range typ.Paths() {
		if opts.EnvWhitelist != nil && !opts.EnvWhitelist[path] {
			continue
		}
		if value, exists := os.LookupEnv(transform(path)); exists {
			if len(value) > MaxValueSize {
				return nil, fmt.Errorf("%w: %s", ErrValueSize, transform(path))
			}
			found[path] = value
		}
	}
	return found, nil
}

// DiscoverEnv finds the environment variables matching declared paths
// and returns a map of path -> env var name for found variables
func (s *Store) DiscoverEnv(prefix string) map[string]string {
	s.mutex.RLock()
	transform := s.options.EnvTransform
	s.mutex.RUnlock()
	if transform == nil {
		transform = defaultEnvTransform(prefix)
	}

	discovered := make(map[string]string)
	for _, path := range s.typ.Paths() {
		envVar := transform(path)
		if _, exists := os.LookupEnv(envVar); exists {
			discovered[path] = envVar
		}
	}
	return discovered
}

// defaultEnvTransform creates the default environment variable transformer
func defaultEnvTransform(prefix string) EnvTransformFunc {
	return func(path string) string {
		env := strings.NewReplacer(".", "_", "-", "_").Replace(path)
		return prefix + strings.ToUpper(env)
	}
}

// SaveSource writes the values one source contributed to the last load.
// The format follows the file extension.
func (s *Store) SaveSource(path string, source Source) error {
	s.mutex.RLock()
	layer := s.layers[source]
	nested := make(map[string]any)
	for _, key := range sortedKeys(layer) {
		setNestedValue(nested, key, dumpValue(layer[key]))
	}
	s.mutex.RUnlock()

	data, err := marshalDocument(formatForPath(path), nested)
	if err != nil {
		return fmt.Errorf("failed to marshal %s source data: %w", source, err)
	}
	return atomicWriteFile(path, data)
}

// parseArgs processes command-line arguments into dotted paths and raw text.
// Accepted forms: "--key value", "--key=value" and a bare "--flag" meaning true.
func parseArgs(args []string) (map[string]string, error) {
	result := make(map[string]string)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			i++
			continue
		}

		argContent := strings.TrimPrefix(arg, "--")
		if argContent == "" {
			// "--" separator
			i++
			continue
		}

		var keyPath, valueStr string
		if key, value, hasValue := strings.Cut(argContent, "="); hasValue {
			keyPath, valueStr = key, value
			i++
		} else {
			keyPath = argContent
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				valueStr = "true"
				i++
			} else {
				valueStr = args[i+1]
				i += 2
			}
		}

		if keyPath == "" {
			continue
		}
		if !isValidKeyPath(keyPath) {
			return nil, fmt.Errorf("invalid command-line key %q", keyPath)
		}
		if len(valueStr) > MaxValueSize {
			return nil, fmt.Errorf("%w: --%s", ErrValueSize, keyPath)
		}
		result[keyPath] = valueStr
	}

	return result, nil
}

// detectFileFormat determines format from file extension
func detectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".params", ".bin":
		return "binary"
	default:
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing
func detectFormatFromContent(data []byte) string {
	if len(data) > 0 && data[0] == TagObject {
		if _, err := Decode(data, nil); err == nil {
			return "binary"
		}
	}

	var probe any
	if err := json.Unmarshal(data, &probe); err == nil {
		return "json"
	}
	// TOML before YAML: YAML reads most TOML documents as one plain scalar
	var tomlProbe map[string]any
	if err := toml.Unmarshal(data, &tomlProbe); err == nil {
		return "toml"
	}
	if err := yaml.Unmarshal(data, &probe); err == nil {
		return "yaml"
	}
	return ""
}

// formatForPath picks a dump format from the extension, defaulting to TOML
func formatForPath(path string) string {
	if format := detectFileFormat(path); format != "" {
		return format
	}
	return "toml"
}

// loadedSources lists the layers present in the last load, highest precedence first.
// Caller holds the lock.
func (s *Store) loadedSources() []Source {
	var sources []Source
	for _, source := range s.options.Sources {
		if _, ok := s.layers[source]; ok {
			sources = append(sources, source)
		}
	}
	return sources
}
