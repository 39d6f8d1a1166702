// FILE: lixenwraith/params/io.go
package params

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Save writes the current snapshot atomically. The format follows the
// extension: .params/.bin binary, .yaml/.yml, .json, anything else TOML.
func (s *Store) Save(path string) error {
	snap := s.Snapshot()
	if snap == nil {
		return fmt.Errorf("%w: nothing loaded to save", ErrFieldNotSet)
	}
	return snap.Save(path)
}

// Save writes the object atomically in the format named by the extension
func (o *Object) Save(path string) error {
	format := formatForPath(path)
	if format == "binary" {
		return o.SaveBinary(path)
	}
	data, err := marshalDocument(format, o.Dumpable())
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", o.typ.name, err)
	}
	return atomicWriteFile(path, data)
}

// SaveBinary writes the wire encoding of the object atomically
func (o *Object) SaveBinary(path string) error {
	data, err := o.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", o.typ.name, err)
	}
	return atomicWriteFile(path, data)
}

// SaveYAML writes the dumpable form of the object as YAML
func (o *Object) SaveYAML(path string) error {
	return o.saveAs(path, "yaml")
}

// SaveTOML writes the dumpable form of the object as TOML. TOML has no
// null, so fields holding none are left out.
func (o *Object) SaveTOML(path string) error {
	return o.saveAs(path, "toml")
}

// SaveJSON writes the dumpable form of the object as indented JSON
func (o *Object) SaveJSON(path string) error {
	return o.saveAs(path, "json")
}

func (o *Object) saveAs(path, format string) error {
	data, err := marshalDocument(format, o.Dumpable())
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", o.typ.name, err)
	}
	return atomicWriteFile(path, data)
}

// LoadBinary reads a file written by SaveBinary. The result is not frozen.
func (t *ObjectType) LoadBinary(path string) (*Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read parameter file '%s': %w", path, err)
	}
	obj, err := t.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode parameter file '%s': %w", path, err)
	}
	return obj, nil
}

// marshalDocument renders a plain value tree in a text format.
// The binary format encodes the tree as an untyped map.
func marshalDocument(format string, doc map[string]any) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(doc)
	case "json":
		return json.MarshalIndent(doc, "", "  ")
	case "binary":
		return Encode(doc)
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(dropNone(doc)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// dropNone removes nil entries from nested maps
func dropNone(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch x := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[k] = dropNone(x)
		default:
			out[k] = v
		}
	}
	return out
}

// atomicWriteFile performs atomic file write
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up on any error

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
