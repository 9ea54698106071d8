package container

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType is the element type of a dataset or attribute.
type DType uint8

const (
	Invalid DType = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	String
)

var dtypeNames = [...]string{
	Invalid: "invalid",
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	String:  "string",
}

func (d DType) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d DType) MarshalText() ([]byte, error) {
	if d == Invalid || int(d) >= len(dtypeNames) {
		return nil, fmt.Errorf("container: cannot encode %s", d)
	}
	return []byte(dtypeNames[d]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DType) UnmarshalText(b []byte) error {
	for i, name := range dtypeNames {
		if i > 0 && name == string(b) {
			*d = DType(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown dtype %q", ErrFormat, b)
}

// Size returns the encoded size of one element, or 0 for String.
func (d DType) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether d is a signed or unsigned integer type.
func (d DType) IsInteger() bool {
	return d >= Int8 && d <= Uint64
}

// IsSigned reports whether d is a signed integer type.
func (d DType) IsSigned() bool {
	return d == Int8 || d == Int16 || d == Int32 || d == Int64
}

// IsFloat reports whether d is a floating point type.
func (d DType) IsFloat() bool {
	return d == Float32 || d == Float64
}

// IsNumeric reports whether d is an integer or floating point type.
func (d DType) IsNumeric() bool {
	return d.IsInteger() || d.IsFloat()
}

// Element is the set of Go types numeric datasets can be read into.
// Values are converted from the stored type as by a Go conversion.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// DTypeOf returns the DType matching T.
func DTypeOf[T Element]() DType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	default:
		return Float64
	}
}

func encodeNumeric[T Element](data []T) ([]byte, error) {
	return binary.Append(make([]byte, 0, len(data)*DTypeOf[T]().Size()), binary.LittleEndian, data)
}

// decodeInto converts len(dst) little-endian elements of type dt from raw.
func decodeInto[T Element](dst []T, raw []byte, dt DType) {
	le := binary.LittleEndian
	switch dt {
	case Int8:
		for i := range dst {
			dst[i] = T(int8(raw[i]))
		}
	case Uint8:
		for i := range dst {
			dst[i] = T(raw[i])
		}
	case Int16:
		for i := range dst {
			dst[i] = T(int16(le.Uint16(raw[2*i:])))
		}
	case Uint16:
		for i := range dst {
			dst[i] = T(le.Uint16(raw[2*i:]))
		}
	case Int32:
		for i := range dst {
			dst[i] = T(int32(le.Uint32(raw[4*i:])))
		}
	case Uint32:
		for i := range dst {
			dst[i] = T(le.Uint32(raw[4*i:]))
		}
	case Int64:
		for i := range dst {
			dst[i] = T(int64(le.Uint64(raw[8*i:])))
		}
	case Uint64:
		for i := range dst {
			dst[i] = T(le.Uint64(raw[8*i:]))
		}
	case Float32:
		for i := range dst {
			dst[i] = T(math.Float32frombits(le.Uint32(raw[4*i:])))
		}
	case Float64:
		for i := range dst {
			dst[i] = T(math.Float64frombits(le.Uint64(raw[8*i:])))
		}
	}
}

func encodeStrings(data []string) []byte {
	size := 0
	for _, s := range data {
		size += binary.MaxVarintLen64 + len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range data {
		out = binary.AppendUvarint(out, uint64(len(s)))
		out = append(out, s...)
	}
	return out
}

func decodeStrings(raw []byte, n uint64) ([]string, error) {
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		l, k := binary.Uvarint(raw)
		if k <= 0 || uint64(len(raw)-k) < l {
			return nil, fmt.Errorf("%w: truncated string chunk", ErrFormat)
		}
		out = append(out, string(raw[k:k+int(l)]))
		raw = raw[k+int(l):]
	}
	return out, nil
}
