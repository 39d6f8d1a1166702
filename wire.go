// FILE: lixenwraith/params/wire.go
package params

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// Wire tags
const (
	TagNone     byte = 0x00
	TagFalse    byte = 0x01
	TagTrue     byte = 0x02
	TagInt      byte = 0x03
	TagFloat    byte = 0x04
	TagString   byte = 0x05
	TagList     byte = 0x06
	TagTuple    byte = 0x07
	TagMap      byte = 0x08
	TagArray    byte = 0x09
	TagPath     byte = 0x0A
	TagDatetime byte = 0x0B
	TagEnum     byte = 0x0C
	TagObject   byte = 0x0D
	TagBytes    byte = 0x0E
	TagSet      byte = 0x0F
)

// TagName returns a readable name for a wire tag
func TagName(tag byte) string {
	switch tag {
	case TagNone:
		return "none"
	case TagFalse, TagTrue:
		return "bool"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagString:
		return "string"
	case TagList:
		return "list"
	case TagTuple:
		return "tuple"
	case TagMap:
		return "map"
	case TagArray:
		return "array"
	case TagPath:
		return "path"
	case TagDatetime:
		return "datetime"
	case TagEnum:
		return "enum"
	case TagObject:
		return "object"
	case TagBytes:
		return "bytes"
	case TagSet:
		return "set"
	default:
		return fmt.Sprintf("0x%02x", tag)
	}
}

// EnumRef is an enum value decoded without a declared type
type EnumRef struct {
	Class   string
	Variant string
}

// ObjectRef is a nested object decoded without a declared type
type ObjectRef struct {
	Class  string
	Fields map[string]any
}

// Encode serializes a value into the tagged binary format
func Encode(v any) ([]byte, error) {
	e := &encoder{}
	if err := e.value(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// EncodeTo writes the encoded value to w
func EncodeTo(w io.Writer, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// MarshalBinary encodes the object with its class name and set fields
func (o *Object) MarshalBinary() ([]byte, error) {
	return Encode(o)
}

// Decode reads exactly one value from data. With a nil node, enums and
// objects come back as EnumRef and ObjectRef; otherwise the node resolves
// them and the result is canonical for that node.
func Decode(data []byte, node *TypeNode) (any, error) {
	d := &decoder{data: data}
	v, err := d.value(node)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("%w: %d bytes remain at offset %d", ErrTrailingBytes, len(d.data)-d.pos, d.pos)
	}
	return v, nil
}

// DecodeObject decodes an encoded object of this type
func (t *ObjectType) DecodeObject(data []byte) (*Object, error) {
	v, err := Decode(data, &TypeNode{kind: KindObject, object: t})
	if err != nil {
		return nil, err
	}
	return v.(*Object), nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) tag(t byte) { e.buf = append(e.buf, t) }

func (e *encoder) u32(n int) error {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrWireLengthOutOfBound, n)
	}
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(n))
	return nil
}

func (e *encoder) str(s string) error {
	if err := e.u32(len(s)); err != nil {
		return err
	}
	e.buf = append(e.buf, s...)
	return nil
}

func (e *encoder) value(v any) error {
	switch x := v.(type) {
	case nil:
		e.tag(TagNone)
	case bool:
		if x {
			e.tag(TagTrue)
		} else {
			e.tag(TagFalse)
		}
	case float64:
		e.float(x)
	case float32:
		e.float(float64(x))
	case string:
		e.tag(TagString)
		return e.str(x)
	case Path:
		e.tag(TagPath)
		return e.str(string(x))
	case Bytes:
		e.tag(TagBytes)
		return e.str(string(x))
	case []byte:
		e.tag(TagBytes)
		return e.str(string(x))
	case time.Time:
		e.tag(TagDatetime)
		secs := float64(x.Unix()) + float64(x.Nanosecond())/1e9
		e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(secs))
	case Tuple:
		return e.seq(TagTuple, x)
	case []any:
		return e.seq(TagList, x)
	case Set:
		return e.seq(TagSet, x)
	case map[string]any:
		return e.dict(x, sortedKeys(x))
	case Enum:
		if x.typ == nil {
			return fmt.Errorf("%w: zero enum", ErrUnsupportedValue)
		}
		return e.enum(x.typ.name, x.Name())
	case EnumRef:
		return e.enum(x.Class, x.Variant)
	case *Object:
		return e.object(x)
	case ObjectRef:
		e.tag(TagObject)
		if err := e.str(x.Class); err != nil {
			return err
		}
		return e.dict(x.Fields, sortedKeys(x.Fields))
	case Array:
		return e.array(x)
	default:
		i, ok, err := exactInt(v)
		if !ok || err != nil {
			return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
		}
		e.tag(TagInt)
		e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(i))
	}
	return nil
}

func (e *encoder) float(f float64) {
	e.tag(TagFloat)
	e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(f))
}

func (e *encoder) seq(tag byte, items []any) error {
	e.tag(tag)
	if err := e.u32(len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := e.value(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) dict(m map[string]any, keys []string) error {
	e.tag(TagMap)
	if err := e.u32(len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		e.tag(TagString)
		if err := e.str(k); err != nil {
			return err
		}
		if err := e.value(m[k]); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

func (e *encoder) enum(class, variant string) error {
	e.tag(TagEnum)
	if err := e.str(class); err != nil {
		return err
	}
	return e.str(variant)
}

func (e *encoder) object(o *Object) error {
	e.tag(TagObject)
	if err := e.str(o.typ.name); err != nil {
		return err
	}

	fields := make(map[string]any, len(o.values))
	keys := make([]string, 0, len(o.values))
	for i, f := range o.typ.fields {
		if o.set[i] {
			fields[f.name] = o.values[i]
			keys = append(keys, f.name)
		}
	}
	return e.dict(fields, keys)
}

func (e *encoder) array(a Array) error {
	if a.dtype.size == 0 {
		return fmt.Errorf("%w: array without dtype", ErrUnsupportedValue)
	}
	if len(a.shape) > math.MaxUint8 {
		return fmt.Errorf("%w: %d dimensions", ErrWireLengthOutOfBound, len(a.shape))
	}
	e.tag(TagArray)
	e.buf = append(e.buf, byte(len(a.dtype.code)))
	e.buf = append(e.buf, a.dtype.code...)
	e.buf = append(e.buf, byte(len(a.shape)))
	for _, dim := range a.shape {
		if err := e.u32(dim); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, a.data...)
	return nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.pos < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedStream, n, d.pos, len(d.data)-d.pos)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u32() (int, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(b)), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	b, err := d.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) value(node *TypeNode) (any, error) {
	start := d.pos
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}

	var raw any
	switch tag {
	case TagNone:
		raw = nil
	case TagFalse:
		raw = false
	case TagTrue:
		raw = true
	case TagInt:
		u, err := d.u64()
		if err != nil {
			return nil, err
		}
		raw = int64(u)
	case TagFloat:
		u, err := d.u64()
		if err != nil {
			return nil, err
		}
		raw = math.Float64frombits(u)
	case TagString:
		if raw, err = d.str(); err != nil {
			return nil, err
		}
	case TagPath:
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		raw = NewPath(s)
	case TagBytes:
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		raw = Bytes(s)
	case TagDatetime:
		u, err := d.u64()
		if err != nil {
			return nil, err
		}
		secs := math.Float64frombits(u)
		whole := math.Floor(secs)
		raw = time.Unix(int64(whole), int64(math.Round((secs-whole)*1e9))).UTC()
	case TagList, TagTuple, TagSet:
		if raw, err = d.seq(tag, node); err != nil {
			return nil, err
		}
	case TagMap:
		return d.mapping(node)
	case TagEnum:
		return d.enum(node)
	case TagObject:
		return d.object(node)
	case TagArray:
		if raw, err = d.array(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownTag, tag, start)
	}

	return finalize(node, raw)
}

// finalize checks a decoded value against the expected node
func finalize(node *TypeNode, raw any) (any, error) {
	if node == nil {
		return raw, nil
	}
	v, err := coerce(node, raw, ModeIdentity)
	if err == nil {
		return v, nil
	}
	if relaxed, rerr := coerce(node, raw, ModeRelaxed); rerr == nil {
		return relaxed, nil
	}
	return nil, err
}

// candidate picks the node, or the union member, of the wanted kind
func candidate(node *TypeNode, kind Kind, name string) *TypeNode {
	if node == nil {
		return nil
	}
	match := func(n *TypeNode) bool {
		if n.kind != kind {
			return false
		}
		switch kind {
		case KindEnum:
			return n.enum.name == name
		case KindObject:
			return n.object.name == name
		}
		return true
	}
	if match(node) {
		return node
	}
	if node.kind == KindUnion {
		for _, c := range node.children {
			if match(c) {
				return c
			}
		}
	}
	return nil
}

func (d *decoder) seq(tag byte, node *TypeNode) (any, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}

	tuple := candidate(node, KindTuple, "")
	if tuple != nil && !tuple.variadic && n != len(tuple.children) {
		return nil, coercionFailure(ErrLengthMismatch, tuple, fmt.Sprintf("%d elements", n), "")
	}

	items := make([]any, 0, min(n, len(d.data)-d.pos))
	for i := 0; i < n; i++ {
		var child *TypeNode
		if tuple != nil {
			if tuple.variadic {
				child = tuple.children[0]
			} else {
				child = tuple.children[i]
			}
		}
		v, err := d.value(child)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items = append(items, v)
	}

	switch {
	case tag == TagTuple || tuple != nil:
		return Tuple(items), nil
	case tag == TagSet:
		return Set(items), nil
	default:
		return items, nil
	}
}

func (d *decoder) fields(fieldNode func(string) (*TypeNode, error)) (map[string]any, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, min(n, len(d.data)-d.pos))
	for i := 0; i < n; i++ {
		k, err := d.value(nil)
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrWireMapKeyNotString, describeValue(k))
		}
		child, err := fieldNode(key)
		if err != nil {
			return nil, err
		}
		v, err := d.value(child)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func (d *decoder) mapping(node *TypeNode) (any, error) {
	var target *ObjectType
	if node != nil {
		if node.kind == KindObject {
			target = node.object
		} else if node.kind == KindUnion {
			for _, c := range node.children {
				if c.kind == KindObject {
					target = c.object
				}
			}
		}
	}

	if target == nil {
		m, err := d.fields(func(string) (*TypeNode, error) { return nil, nil })
		if err != nil {
			return nil, err
		}
		return finalize(node, m)
	}
	return d.objectPayload(target)
}

func (d *decoder) objectPayload(t *ObjectType) (*Object, error) {
	values, err := d.fields(func(key string) (*TypeNode, error) {
		f, ok := t.Field(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownField, t.name, key)
		}
		return f.node, nil
	})
	if err != nil {
		return nil, err
	}
	obj := t.New()
	if err := obj.Override(values, ModeIdentity); err != nil {
		return nil, err
	}
	return obj, nil
}

func (d *decoder) enum(node *TypeNode) (any, error) {
	class, err := d.str()
	if err != nil {
		return nil, err
	}
	variant, err := d.str()
	if err != nil {
		return nil, err
	}
	if node == nil {
		return EnumRef{Class: class, Variant: variant}, nil
	}

	c := candidate(node, KindEnum, class)
	if c == nil {
		return nil, fmt.Errorf("%w: enum %s not accepted by %s", ErrAmbiguousEnumOrObject, class, node)
	}
	e, ok := c.enum.Variant(variant)
	if !ok {
		return nil, fmt.Errorf("%w: enum %s has no variant %q", ErrAmbiguousEnumOrObject, class, variant)
	}
	return e, nil
}

func (d *decoder) object(node *TypeNode) (any, error) {
	class, err := d.str()
	if err != nil {
		return nil, err
	}

	var target *ObjectType
	if node != nil {
		c := candidate(node, KindObject, class)
		if c == nil {
			return nil, fmt.Errorf("%w: object %s not accepted by %s", ErrAmbiguousEnumOrObject, class, node)
		}
		target = c.object
	}

	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if tag != TagMap {
		return nil, fmt.Errorf("%w: %s payload starts with %s", ErrWireObjectPayloadShape, class, TagName(tag))
	}

	if target == nil {
		fields, err := d.fields(func(string) (*TypeNode, error) { return nil, nil })
		if err != nil {
			return nil, err
		}
		return ObjectRef{Class: class, Fields: fields}, nil
	}
	return d.objectPayload(target)
}

func (d *decoder) array() (Array, error) {
	codeLen, err := d.readByte()
	if err != nil {
		return Array{}, err
	}
	code, err := d.take(int(codeLen))
	if err != nil {
		return Array{}, err
	}
	dtype, bigEndian, ok := dtypeByCode(string(code))
	if !ok {
		return Array{}, fmt.Errorf("%w: array dtype %q", ErrUnsupportedValue, code)
	}

	ndim, err := d.readByte()
	if err != nil {
		return Array{}, err
	}
	shape := make([]int, ndim)
	count := 1
	for i := range shape {
		if shape[i], err = d.u32(); err != nil {
			return Array{}, err
		}
		count *= shape[i]
		if count > len(d.data) {
			return Array{}, fmt.Errorf("%w: array of %d elements", ErrTruncatedStream, count)
		}
	}

	raw, err := d.take(count * dtype.size)
	if err != nil {
		return Array{}, err
	}
	data := make([]byte, len(raw))
	copy(data, raw)
	if bigEndian && dtype.size > 1 {
		for off := 0; off < len(data); off += dtype.size {
			elem := data[off : off+dtype.size]
			for i, j := 0, len(elem)-1; i < j; i, j = i+1, j-1 {
				elem[i], elem[j] = elem[j], elem[i]
			}
		}
	}
	return Array{dtype: dtype, shape: shape, data: data}, nil
}

