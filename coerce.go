// FILE: lixenwraith/params/coerce.go
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Mode selects how loosely raw input is interpreted during coercion
type Mode int

const (
	// ModeStrict accepts only values already of the canonical kind
	ModeStrict Mode = iota
	// ModeRelaxed constructs canonical values when the conversion is lossless
	ModeRelaxed
	// ModeFromText parses textual input such as env or CLI values
	ModeFromText
	// ModeIdentity re-validates values that are already canonical
	ModeIdentity
)

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeRelaxed:
		return "relaxed"
	case ModeFromText:
		return "text"
	case ModeIdentity:
		return "identity"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

var (
	trueTokens  = map[string]bool{"1": true, "true": true, "t": true, "yes": true, "y": true, "on": true}
	falseTokens = map[string]bool{"0": true, "-1": true, "false": true, "f": true, "no": true, "n": true, "off": true}
	noneTokens  = map[string]bool{"none": true, "null": true}
)

// fold normalizes case for token comparison
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Coerce converts raw into the canonical value described by node
func Coerce(node *TypeNode, raw any, mode Mode) (any, error) {
	return coerce(node, raw, mode)
}

// coerce dispatches on node kind
func coerce(node *TypeNode, raw any, mode Mode) (any, error) {
	if mode == ModeFromText {
		if _, isText := raw.(string); !isText {
			mode = ModeRelaxed
		}
	}

	switch node.kind {
	case KindInt:
		return coerceInt(node, raw, mode)
	case KindFloat:
		return coerceFloat(node, raw, mode)
	case KindBool:
		return coerceBool(node, raw, mode)
	case KindStr:
		return coerceStr(node, raw, mode)
	case KindBytes:
		return coerceBytes(node, raw, mode)
	case KindPath:
		return coercePath(node, raw, mode)
	case KindNone:
		return coerceNone(node, raw, mode)
	case KindEnum:
		return coerceEnum(node, raw, mode)
	case KindLiteral:
		return coerceLiteral(node, raw, mode)
	case KindTuple:
		return coerceTuple(node, raw, mode)
	case KindUnion:
		return coerceUnion(node, raw, mode)
	case KindObject:
		return coerceObject(node, raw, mode)
	case KindArray:
		return coerceArray(node, raw, mode)
	default:
		return nil, fmt.Errorf("%w: node kind %s", ErrUnsupportedType, node.kind)
	}
}

func coerceInt(node *TypeNode, raw any, mode Mode) (any, error) {
	if mode == ModeIdentity {
		if i, ok := raw.(int64); ok {
			return i, nil
		}
		return nil, mismatch(node, raw, "")
	}
	if i, ok, err := exactInt(raw); ok || err != nil {
		if err != nil {
			return nil, coercionFailure(ErrPrecisionLoss, node, raw, "")
		}
		return i, nil
	}
	if mode == ModeStrict {
		return nil, mismatch(node, raw, "")
	}

	if s, ok := raw.(string); ok {
		i, err := parseIntText(s)
		if err != nil {
			return nil, coercionFailure(kindOf(err), node, raw, "")
		}
		return i, nil
	}
	i, err := asInt(raw)
	if err != nil {
		return nil, coercionFailure(kindOf(err), node, raw, "")
	}
	return i, nil
}

func coerceFloat(node *TypeNode, raw any, mode Mode) (any, error) {
	switch x := raw.(type) {
	case float64:
		return x, nil
	case float32:
		if mode != ModeIdentity {
			return float64(x), nil
		}
	}
	if mode == ModeStrict || mode == ModeIdentity {
		return nil, mismatch(node, raw, "")
	}

	if s, ok := raw.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, mismatch(node, raw, "not a number")
		}
		return f, nil
	}
	f, err := asFloat(raw)
	if err != nil {
		return nil, coercionFailure(kindOf(err), node, raw, "")
	}
	return f, nil
}

func coerceBool(node *TypeNode, raw any, mode Mode) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	if mode == ModeStrict || mode == ModeIdentity {
		return nil, mismatch(node, raw, "")
	}

	if s, ok := raw.(string); ok {
		token := fold(s)
		switch {
		case trueTokens[token]:
			return true, nil
		case falseTokens[token]:
			return false, nil
		}
		return nil, mismatch(node, raw, "unrecognized boolean token")
	}

	i, err := asInt(raw)
	if err != nil {
		return nil, mismatch(node, raw, "")
	}
	switch i {
	case 1:
		return true, nil
	case 0, -1:
		return false, nil
	}
	return nil, mismatch(node, raw, "only 1, 0 and -1 map to bool")
}

func coerceStr(node *TypeNode, raw any, mode Mode) (any, error) {
	if s, ok := raw.(string); ok {
		return s, nil
	}
	if mode == ModeStrict || mode == ModeIdentity {
		return nil, mismatch(node, raw, "")
	}

	switch x := raw.(type) {
	case Path:
		return string(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case json.Number:
		return x.String(), nil
	}
	if i, ok, err := exactInt(raw); ok && err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	if rv := reflect.ValueOf(raw); rv.IsValid() && rv.Kind() == reflect.Uint64 {
		return strconv.FormatUint(rv.Uint(), 10), nil
	}
	return nil, mismatch(node, raw, "")
}

func coerceBytes(node *TypeNode, raw any, mode Mode) (any, error) {
	switch x := raw.(type) {
	case Bytes:
		return x, nil
	case []byte:
		if mode != ModeIdentity {
			return Bytes(x), nil
		}
	case string:
		if mode == ModeRelaxed || mode == ModeFromText {
			return Bytes(x), nil
		}
	}
	return nil, mismatch(node, raw, "")
}

func coercePath(node *TypeNode, raw any, mode Mode) (any, error) {
	switch x := raw.(type) {
	case Path:
		return NewPath(string(x)), nil
	case string:
		if mode == ModeRelaxed || mode == ModeFromText {
			return NewPath(x), nil
		}
	}
	return nil, mismatch(node, raw, "")
}

func coerceNone(node *TypeNode, raw any, mode Mode) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && mode == ModeFromText && noneTokens[fold(s)] {
		return nil, nil
	}
	return nil, mismatch(node, raw, "")
}

func coerceEnum(node *TypeNode, raw any, mode Mode) (any, error) {
	if e, ok := raw.(Enum); ok {
		if e.typ == node.enum {
			return e, nil
		}
		return nil, mismatch(node, raw, "different enum type")
	}
	if mode == ModeStrict || mode == ModeIdentity {
		return nil, mismatch(node, raw, "")
	}

	if e, ok := node.enum.ByValue(raw); ok {
		return e, nil
	}
	if s, ok := raw.(string); ok {
		name := strings.TrimSpace(s)
		if e, ok := node.enum.Variant(name); ok {
			return e, nil
		}
		folded := fold(name)
		for i, v := range node.enum.variants {
			if fold(v.Name) == folded {
				return Enum{typ: node.enum, idx: i}, nil
			}
		}
		if mode == ModeFromText {
			for i, v := range node.enum.variants {
				if formatScalarText(v.Value) == name {
					return Enum{typ: node.enum, idx: i}, nil
				}
			}
		}
	}
	return nil, mismatch(node, raw, "no matching variant")
}

func coerceLiteral(node *TypeNode, raw any, mode Mode) (any, error) {
	if v, ok := normalizeScalar(raw); ok {
		for _, l := range node.literals {
			if valueEqual(l, v) {
				return l, nil
			}
		}
	}
	if mode == ModeStrict || mode == ModeIdentity {
		return nil, mismatch(node, raw, "not an allowed literal")
	}

	for _, l := range node.literals {
		scalar := scalarNodeFor(l)
		v, err := coerce(scalar, raw, mode)
		if err == nil && valueEqual(v, l) {
			return l, nil
		}
	}
	return nil, mismatch(node, raw, "not an allowed literal")
}

func coerceTuple(node *TypeNode, raw any, mode Mode) (any, error) {
	if s, ok := raw.(string); ok && mode == ModeFromText {
		parsed, err := parseFlow(s)
		if err != nil {
			return nil, mismatch(node, raw, err.Error())
		}
		raw, mode = parsed, ModeRelaxed
	}

	var items []any
	switch x := raw.(type) {
	case Tuple:
		items = x
	default:
		if mode == ModeStrict || mode == ModeIdentity {
			return nil, mismatch(node, raw, "not a tuple")
		}
		rv := reflect.ValueOf(raw)
		if !isSequence(rv) {
			return nil, mismatch(node, raw, "not a sequence")
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	if !node.variadic && len(items) != len(node.children) {
		return nil, coercionFailure(ErrLengthMismatch, node, raw,
			fmt.Sprintf("expected %d elements, got %d", len(node.children), len(items)))
	}

	out := make(Tuple, len(items))
	for i, item := range items {
		child := node.children[0]
		if !node.variadic {
			child = node.children[i]
		}
		v, err := coerce(child, item, mode)
		if err != nil {
			return nil, atPath(err, "["+strconv.Itoa(i)+"]")
		}
		out[i] = v
	}
	return out, nil
}

func coerceUnion(node *TypeNode, raw any, mode Mode) (any, error) {
	// Exact match in declared order. Text input is never exact since every
	// string would match str.
	if mode != ModeFromText {
		exact := ModeStrict
		if mode == ModeIdentity {
			exact = ModeIdentity
		}
		for _, child := range node.children {
			if v, err := coerce(child, raw, exact); err == nil {
				return v, nil
			}
		}
	}

	reasons := make([]error, 0, len(node.children))
	if mode == ModeStrict || mode == ModeIdentity {
		for _, child := range node.children {
			_, err := coerce(child, raw, mode)
			reasons = append(reasons, err)
		}
	} else {
		for _, child := range byPrecedence(node.children) {
			v, err := coerce(child, raw, mode)
			if err == nil {
				return v, nil
			}
			reasons = append(reasons, err)
		}
	}
	return nil, &CoercionError{
		Expected: node.String(),
		Value:    raw,
		Err:      ErrNoUnionMemberMatched,
		Reasons:  reasons,
	}
}

func coerceObject(node *TypeNode, raw any, mode Mode) (any, error) {
	if o, ok := raw.(*Object); ok && o != nil {
		if o.typ == node.object {
			return o, nil
		}
		return nil, mismatch(node, raw, "object of type "+o.typ.name)
	}
	if mode == ModeStrict || mode == ModeIdentity {
		return nil, mismatch(node, raw, "")
	}

	if s, ok := raw.(string); ok && mode == ModeFromText {
		parsed, err := parseFlow(s)
		if err != nil {
			return nil, mismatch(node, raw, err.Error())
		}
		raw, mode = parsed, ModeRelaxed
	}

	updates, ok := asStringMap(raw)
	if !ok {
		return nil, mismatch(node, raw, "not a mapping")
	}
	obj := node.object.New()
	if err := obj.Override(updates, mode); err != nil {
		return nil, err
	}
	return obj, nil
}

func coerceArray(node *TypeNode, raw any, mode Mode) (any, error) {
	if a, ok := raw.(Array); ok {
		if a.dtype == node.dtype {
			return a, nil
		}
		if mode == ModeStrict || mode == ModeIdentity {
			return nil, mismatch(node, raw, "dtype "+a.dtype.name)
		}
		converted, err := a.convert(node.dtype)
		if err != nil {
			return nil, coercionFailure(kindOf(err), node, raw, "")
		}
		return converted, nil
	}
	if mode == ModeStrict || mode == ModeIdentity {
		return nil, mismatch(node, raw, "")
	}

	if s, ok := raw.(string); ok && mode == ModeFromText {
		parsed, err := parseFlow(s)
		if err != nil {
			return nil, mismatch(node, raw, err.Error())
		}
		raw = parsed
	}

	if !isSequence(reflect.ValueOf(raw)) {
		return nil, mismatch(node, raw, "not a sequence")
	}
	flat, shape, err := flattenNested(raw)
	if err != nil {
		return nil, coercionFailure(kindOf(err), node, raw, "")
	}
	a, err := NewArray(node.dtype, shape, flat)
	if err != nil {
		return nil, coercionFailure(kindOf(err), node, raw, err.Error())
	}
	return a, nil
}

// byPrecedence orders union members by the global precedence list
func byPrecedence(children []*TypeNode) []*TypeNode {
	ordered := make([]*TypeNode, len(children))
	copy(ordered, children)
	sort.SliceStable(ordered, func(i, j int) bool {
		return precedence[ordered[i].kind] < precedence[ordered[j].kind]
	})
	return ordered
}

// exactInt widens Go integer kinds. ok is false for non-integers;
// err is set for unsigned values above the int64 range.
func exactInt(v any) (int64, bool, error) {
	switch x := v.(type) {
	case int:
		return int64(x), true, nil
	case int8:
		return int64(x), true, nil
	case int16:
		return int64(x), true, nil
	case int32:
		return int64(x), true, nil
	case int64:
		return x, true, nil
	case uint, uint8, uint16, uint32, uint64:
		u := reflect.ValueOf(v).Uint()
		if u > math.MaxInt64 {
			return 0, true, ErrPrecisionLoss
		}
		return int64(u), true, nil
	}
	return 0, false, nil
}

// asInt converts numeric input to int64 when no information is lost
func asInt(v any) (int64, error) {
	if i, ok, err := exactInt(v); ok {
		return i, err
	}
	switch x := v.(type) {
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, ErrTypeMismatch
		}
		return floatToInt(f)
	}
	return 0, ErrTypeMismatch
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, ErrPrecisionLoss
	}
	if f < -9.223372036854775808e18 || f >= 9.223372036854775808e18 {
		return 0, ErrPrecisionLoss
	}
	return int64(f), nil
}

// asFloat converts numeric input to float64 when no information is lost
func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, ErrTypeMismatch
		}
		return f, nil
	case uint64:
		f := float64(x)
		if f >= 1.8446744073709552e19 || uint64(f) != x {
			return 0, ErrPrecisionLoss
		}
		return f, nil
	}
	i, ok, err := exactInt(v)
	if !ok {
		return 0, ErrTypeMismatch
	}
	if err != nil {
		return 0, err
	}
	f := float64(i)
	if f >= 9.223372036854775808e18 || int64(f) != i {
		return 0, ErrPrecisionLoss
	}
	return f, nil
}

func parseIntText(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrTypeMismatch
	}
	return floatToInt(f)
}

// kindOf extracts the coercion sentinel carried by err
func kindOf(err error) error {
	for _, kind := range []error{ErrPrecisionLoss, ErrLengthMismatch, ErrNoUnionMemberMatched} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrTypeMismatch
}

// normalizeScalar maps Go scalars onto canonical scalar values
func normalizeScalar(v any) (any, bool) {
	switch x := v.(type) {
	case nil, bool, string, float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok, err := exactInt(v); ok && err == nil {
		return i, true
	}
	return nil, false
}

func scalarNodeFor(v any) *TypeNode {
	switch v.(type) {
	case int64:
		return &TypeNode{kind: KindInt}
	case float64:
		return &TypeNode{kind: KindFloat}
	case bool:
		return &TypeNode{kind: KindBool}
	case string:
		return &TypeNode{kind: KindStr}
	default:
		return &TypeNode{kind: KindNone}
	}
}

// formatScalarText renders a canonical scalar the way FromText would read it back
func formatScalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return "none"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// parseFlow reads inline sequence or mapping text such as "[1, 2]", "(1, 2)" or "{a: 1}"
func parseFlow(text string) (any, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = "[" + text[1:len(text)-1] + "]"
	}
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	var out any
	if err := yaml.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("invalid inline value: %w", err)
	}
	return out, nil
}

// asStringMap accepts any map keyed by strings
func asStringMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
