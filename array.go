// FILE: lixenwraith/params/array.go
package params

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// DType describes the element type of an Array
type DType struct {
	name string
	code string
	size int
	kind byte
}

// Supported element types. Codes follow the numpy array-protocol convention.
var (
	DTypeInt8    = DType{name: "int8", code: "|i1", size: 1, kind: 'i'}
	DTypeInt16   = DType{name: "int16", code: "<i2", size: 2, kind: 'i'}
	DTypeInt32   = DType{name: "int32", code: "<i4", size: 4, kind: 'i'}
	DTypeInt64   = DType{name: "int64", code: "<i8", size: 8, kind: 'i'}
	DTypeUint8   = DType{name: "uint8", code: "|u1", size: 1, kind: 'u'}
	DTypeUint16  = DType{name: "uint16", code: "<u2", size: 2, kind: 'u'}
	DTypeUint32  = DType{name: "uint32", code: "<u4", size: 4, kind: 'u'}
	DTypeUint64  = DType{name: "uint64", code: "<u8", size: 8, kind: 'u'}
	DTypeFloat32 = DType{name: "float32", code: "<f4", size: 4, kind: 'f'}
	DTypeFloat64 = DType{name: "float64", code: "<f8", size: 8, kind: 'f'}
	DTypeBool    = DType{name: "bool", code: "|b1", size: 1, kind: 'b'}
)

var allDTypes = []DType{
	DTypeInt8, DTypeInt16, DTypeInt32, DTypeInt64,
	DTypeUint8, DTypeUint16, DTypeUint32, DTypeUint64,
	DTypeFloat32, DTypeFloat64, DTypeBool,
}

// Name returns the declaration name of the dtype
func (d DType) Name() string { return d.name }

// Code returns the wire code of the dtype
func (d DType) Code() string { return d.code }

// Size returns the element width in bytes
func (d DType) Size() int { return d.size }

func dtypeByName(name string) (DType, bool) {
	switch name {
	case "int":
		return DTypeInt64, true
	case "float":
		return DTypeFloat64, true
	}
	for _, d := range allDTypes {
		if d.name == name {
			return d, true
		}
	}
	return DType{}, false
}

// dtypeByCode resolves a wire code. bigEndian reports a '>' byte order mark.
func dtypeByCode(code string) (d DType, bigEndian bool, ok bool) {
	if len(code) < 2 {
		return DType{}, false, false
	}
	order, rest := code[0], code[1:]
	switch order {
	case '<', '|', '=':
	case '>':
		bigEndian = true
	default:
		return DType{}, false, false
	}
	for _, d := range allDTypes {
		if d.code[1:] == rest {
			return d, bigEndian, true
		}
	}
	return DType{}, false, false
}

// Array is an immutable n-dimensional numeric array with little-endian storage
type Array struct {
	dtype DType
	shape []int
	data  []byte
}

// NewArray builds an array from flat values laid out in row-major order.
// Each value must convert to the dtype without loss.
func NewArray(dtype DType, shape []int, values []any) (Array, error) {
	if dtype.size == 0 {
		return Array{}, fmt.Errorf("%w: invalid dtype", ErrTypeMismatch)
	}
	n := 1
	for _, dim := range shape {
		if dim < 0 {
			return Array{}, fmt.Errorf("%w: negative dimension %d", ErrTypeMismatch, dim)
		}
		n *= dim
	}
	if n != len(values) {
		return Array{}, fmt.Errorf("%w: shape %v holds %d elements, got %d", ErrLengthMismatch, shape, n, len(values))
	}

	data := make([]byte, n*dtype.size)
	for i, v := range values {
		if err := putElement(dtype, data[i*dtype.size:], v); err != nil {
			return Array{}, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return Array{dtype: dtype, shape: append([]int(nil), shape...), data: data}, nil
}

// MustArray is like NewArray but panics on error
func MustArray(dtype DType, shape []int, values ...any) Array {
	a, err := NewArray(dtype, shape, values)
	if err != nil {
		panic(err)
	}
	return a
}

// DType returns the element type
func (a Array) DType() DType { return a.dtype }

// Shape returns a copy of the dimensions
func (a Array) Shape() []int { return append([]int(nil), a.shape...) }

// Len returns the total element count
func (a Array) Len() int {
	if a.dtype.size == 0 {
		return 0
	}
	return len(a.data) / a.dtype.size
}

// At returns element i in row-major order.
// Integer elements are int64 except uint64 arrays, which yield uint64.
func (a Array) At(i int) any {
	b := a.data[i*a.dtype.size : (i+1)*a.dtype.size]
	switch a.dtype {
	case DTypeInt8:
		return int64(int8(b[0]))
	case DTypeInt16:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case DTypeInt32:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case DTypeInt64:
		return int64(binary.LittleEndian.Uint64(b))
	case DTypeUint8:
		return int64(b[0])
	case DTypeUint16:
		return int64(binary.LittleEndian.Uint16(b))
	case DTypeUint32:
		return int64(binary.LittleEndian.Uint32(b))
	case DTypeUint64:
		return binary.LittleEndian.Uint64(b)
	case DTypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case DTypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return b[0] != 0
	}
}

// Values returns all elements flat in row-major order
func (a Array) Values() []any {
	out := make([]any, a.Len())
	for i := range out {
		out[i] = a.At(i)
	}
	return out
}

// Nested returns the elements as nested slices following the shape
func (a Array) Nested() any {
	values := a.Values()
	if len(a.shape) == 0 {
		if len(values) == 0 {
			return nil
		}
		return values[0]
	}
	var build func(dims []int, flat []any) []any
	build = func(dims []int, flat []any) []any {
		if len(dims) == 1 {
			return append([]any(nil), flat...)
		}
		out := make([]any, dims[0])
		step := 0
		if dims[0] > 0 {
			step = len(flat) / dims[0]
		}
		for i := range out {
			out[i] = build(dims[1:], flat[i*step:(i+1)*step])
		}
		return out
	}
	return build(a.shape, values)
}

// Equal compares dtype, shape and elements
func (a Array) Equal(o Array) bool {
	if a.dtype != o.dtype || len(a.shape) != len(o.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != o.shape[i] {
			return false
		}
	}
	if a.dtype.kind == 'f' {
		for i := 0; i < a.Len(); i++ {
			if a.At(i).(float64) != o.At(i).(float64) {
				return false
			}
		}
		return true
	}
	return string(a.data) == string(o.data)
}

func (a Array) String() string {
	parts := make([]string, a.Len())
	for i := range parts {
		parts[i] = fmt.Sprintf("%v", a.At(i))
	}
	return fmt.Sprintf("array[%s]%v{%s}", a.dtype.name, a.shape, strings.Join(parts, ", "))
}

// convert re-encodes the array into another dtype without loss
func (a Array) convert(dtype DType) (Array, error) {
	if a.dtype == dtype {
		return a, nil
	}
	return NewArray(dtype, a.shape, a.Values())
}

func putElement(dtype DType, dst []byte, v any) error {
	switch dtype.kind {
	case 'b':
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%w: %T is not bool", ErrTypeMismatch, v)
		}
		dst[0] = 0
		if b {
			dst[0] = 1
		}
		return nil
	case 'f':
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		if dtype.size == 4 {
			f32 := float32(f)
			if float64(f32) != f && !math.IsNaN(f) {
				return fmt.Errorf("%w: %v does not fit float32", ErrPrecisionLoss, f)
			}
			binary.LittleEndian.PutUint32(dst, math.Float32bits(f32))
			return nil
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
		return nil
	case 'u':
		if u, ok := v.(uint64); ok && dtype.size == 8 {
			binary.LittleEndian.PutUint64(dst, u)
			return nil
		}
		i, err := asInt(v)
		if err != nil {
			return err
		}
		if i < 0 || (dtype.size < 8 && uint64(i) >= 1<<(8*dtype.size)) {
			return fmt.Errorf("%w: %d does not fit %s", ErrPrecisionLoss, i, dtype.name)
		}
		putUint(dst, dtype.size, uint64(i))
		return nil
	default:
		i, err := asInt(v)
		if err != nil {
			return err
		}
		if dtype.size < 8 {
			limit := int64(1) << (8*dtype.size - 1)
			if i < -limit || i >= limit {
				return fmt.Errorf("%w: %d does not fit %s", ErrPrecisionLoss, i, dtype.name)
			}
		}
		putUint(dst, dtype.size, uint64(i))
		return nil
	}
}

func putUint(dst []byte, size int, u uint64) {
	switch size {
	case 1:
		dst[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(u))
	default:
		binary.LittleEndian.PutUint64(dst, u)
	}
}

// flattenNested walks rectangular nested sequences into flat values and a shape
func flattenNested(v any) ([]any, []int, error) {
	rv := reflect.ValueOf(v)
	if !isSequence(rv) {
		return []any{v}, nil, nil
	}

	n := rv.Len()
	if n == 0 {
		return nil, []int{0}, nil
	}

	var flat []any
	var inner []int
	for i := 0; i < n; i++ {
		values, shape, err := flattenNested(rv.Index(i).Interface())
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			inner = shape
		} else if !sameDims(inner, shape) {
			return nil, nil, fmt.Errorf("%w: ragged nested sequence", ErrLengthMismatch)
		}
		flat = append(flat, values...)
	}
	return flat, append([]int{n}, inner...), nil
}

func sameDims(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isSequence reports slices and arrays other than byte strings
func isSequence(rv reflect.Value) bool {
	if !rv.IsValid() {
		return false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}
