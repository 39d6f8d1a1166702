// FILE: lixenwraith/params/decode.go
package params

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ScanTagName is the struct tag consulted when scanning into Go structs
const ScanTagName = "toml"

// Text length caps applied before parsing network values
const (
	maxIPText   = 45 // IPv6 with embedded IPv4
	maxCIDRText = 49
	maxURLText  = 2048
)

// Scan decodes the dumpable form of the object into a struct or map pointer.
// Enums arrive as variant names, paths and bytes as strings, tuples and
// arrays as slices.
func (o *Object) Scan(target any) error {
	return decodeInto(o.Dumpable(), "", target)
}

// Scan decodes the current snapshot, or the subtree under basePath, into target
func (s *Store) Scan(basePath string, target any) error {
	snap := s.Snapshot()
	if snap == nil {
		return fmt.Errorf("%w: nothing loaded to scan", ErrFieldNotSet)
	}
	return decodeInto(snap.Dumpable(), basePath, target)
}

func decodeInto(tree map[string]any, basePath string, target any) error {
	if rv := reflect.ValueOf(target); rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("scan target must be non-nil pointer, got %T", target)
	}

	var section map[string]any
	switch sub := subtree(tree, basePath).(type) {
	case nil:
		section = map[string]any{}
	case map[string]any:
		section = sub
	default:
		return fmt.Errorf("path %q refers to non-map value (type %T)", basePath, sub)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          ScanTagName,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			textHook(maxIPText, "IP address", parseIP),
			textHook(maxCIDRText, "CIDR", parseCIDR),
			textHook(maxURLText, "URL", url.Parse),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}
	if err := decoder.Decode(section); err != nil {
		return fmt.Errorf("decode failed for path %q: %w", basePath, err)
	}
	return nil
}

// textHook converts strings into T or *T with parse. Other targets pass through.
func textHook[T any](limit int, what string, parse func(string) (*T, error)) mapstructure.DecodeHookFunc {
	want := reflect.TypeOf((*T)(nil)).Elem()
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		ptr := to.Kind() == reflect.Ptr
		if ptr {
			to = to.Elem()
		}
		if to != want {
			return data, nil
		}

		text := reflect.ValueOf(data).String()
		if len(text) > limit {
			return nil, fmt.Errorf("%s too long: %d bytes", what, len(text))
		}
		v, err := parse(text)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", what, err)
		}
		if ptr {
			return v, nil
		}
		return *v, nil
	}
}

func parseIP(s string) (*net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, errors.New(s)
	}
	return &ip, nil
}

func parseCIDR(s string) (*net.IPNet, error) {
	_, ipnet, err := net.ParseCIDR(s)
	return ipnet, err
}

// subtree walks a dotted path through nested maps; a missing segment yields nil
func subtree(tree map[string]any, path string) any {
	path = strings.TrimSuffix(path, ".")
	if path == "" {
		return tree
	}
	var node any = tree
	for _, segment := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		if node, ok = m[segment]; !ok {
			return nil
		}
	}
	return node
}
