package container

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/sonata/errs"
)

const (
	formatName    = "sonata-container"
	formatVersion = 1
	footerSize    = 24
)

var footerMagic = [8]byte{'S', 'O', 'N', 'A', 'T', 'A', 'C', '1'}

type manifest struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	Root    *node  `json:"root"`
}

// node is a group (Dataset == nil) or a dataset.
type node struct {
	Dataset  *datasetMeta         `json:"dataset,omitempty"`
	Attrs    map[string]Attribute `json:"attrs,omitempty"`
	Children map[string]*node     `json:"children,omitempty"`
}

type datasetMeta struct {
	DType     DType      `json:"dtype"`
	Shape     []uint64   `json:"shape"`
	ChunkRows uint64     `json:"chunk_rows"`
	Chunks    []chunkRef `json:"chunks"`
}

type chunkRef struct {
	Offset      uint64      `json:"offset"`
	Length      uint64      `json:"length"`
	RawLength   uint64      `json:"raw_length"`
	Compression Compression `json:"compression,omitempty"`
}

func newGroup() *node {
	return &node{Children: map[string]*node{}}
}

func encodeFooter(offset, length uint64) []byte {
	b := make([]byte, 0, footerSize)
	b = binary.LittleEndian.AppendUint64(b, offset)
	b = binary.LittleEndian.AppendUint64(b, length)
	return append(b, footerMagic[:]...)
}

func decodeFooter(b []byte, size int64) (offset, length uint64, err error) {
	if len(b) != footerSize || [8]byte(b[16:]) != footerMagic {
		return 0, 0, fmt.Errorf("%w: bad footer", ErrFormat)
	}
	offset = binary.LittleEndian.Uint64(b)
	length = binary.LittleEndian.Uint64(b[8:])
	if offset+length > uint64(size)-footerSize {
		return 0, 0, fmt.Errorf("%w: manifest out of bounds", ErrFormat)
	}
	return offset, length, nil
}

// splitPath returns the non-empty components of a slash-separated path.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

func (n *node) lookup(path string) (*node, bool) {
	cur := n
	for _, p := range splitPath(path) {
		if cur.Dataset != nil {
			return nil, false
		}
		next, ok := cur.Children[p]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Attribute is a scalar attribute value attached to a group or dataset.
type Attribute struct {
	DType  DType   `json:"dtype"`
	Int    int64   `json:"int,omitempty"`
	Uint   uint64  `json:"uint,omitempty"`
	Float  float64 `json:"float,omitempty"`
	String string  `json:"string,omitempty"`
}

// NewAttribute converts a Go scalar into an Attribute.
func NewAttribute(v any) (Attribute, error) {
	switch x := v.(type) {
	case string:
		return Attribute{DType: String, String: x}, nil
	case bool:
		if x {
			return Attribute{DType: Uint8, Uint: 1}, nil
		}
		return Attribute{DType: Uint8}, nil
	case int8:
		return Attribute{DType: Int8, Int: int64(x)}, nil
	case int16:
		return Attribute{DType: Int16, Int: int64(x)}, nil
	case int32:
		return Attribute{DType: Int32, Int: int64(x)}, nil
	case int:
		return Attribute{DType: Int64, Int: int64(x)}, nil
	case int64:
		return Attribute{DType: Int64, Int: x}, nil
	case uint8:
		return Attribute{DType: Uint8, Uint: uint64(x)}, nil
	case uint16:
		return Attribute{DType: Uint16, Uint: uint64(x)}, nil
	case uint32:
		return Attribute{DType: Uint32, Uint: uint64(x)}, nil
	case uint:
		return Attribute{DType: Uint64, Uint: uint64(x)}, nil
	case uint64:
		return Attribute{DType: Uint64, Uint: x}, nil
	case float32:
		return Attribute{DType: Float32, Float: float64(x)}, nil
	case float64:
		return Attribute{DType: Float64, Float: x}, nil
	default:
		return Attribute{}, errs.Errorf(errs.ErrInvalidArgument, "unsupported attribute type %T", v)
	}
}

// AsString returns a string attribute.
func (a Attribute) AsString() (string, error) {
	if a.DType != String {
		return "", errs.Errorf(errs.ErrTypeMismatch, "attribute is %s, not string", a.DType)
	}
	return a.String, nil
}

// AsInt64 returns an integer attribute as int64.
func (a Attribute) AsInt64() (int64, error) {
	switch {
	case a.DType.IsSigned():
		return a.Int, nil
	case a.DType.IsInteger():
		if a.Uint > math.MaxInt64 {
			return 0, errs.Errorf(errs.ErrRange, "attribute value %d overflows int64", a.Uint)
		}
		return int64(a.Uint), nil
	default:
		return 0, errs.Errorf(errs.ErrTypeMismatch, "attribute is %s, not integer", a.DType)
	}
}

// AsFloat64 returns a numeric attribute as float64.
func (a Attribute) AsFloat64() (float64, error) {
	switch {
	case a.DType.IsFloat():
		return a.Float, nil
	case a.DType.IsSigned():
		return float64(a.Int), nil
	case a.DType.IsInteger():
		return float64(a.Uint), nil
	default:
		return 0, errs.Errorf(errs.ErrTypeMismatch, "attribute is %s, not numeric", a.DType)
	}
}

// Value returns the attribute as a Go scalar (string, int64, uint64 or float64).
func (a Attribute) Value() any {
	switch {
	case a.DType == String:
		return a.String
	case a.DType.IsSigned():
		return a.Int
	case a.DType.IsInteger():
		return a.Uint
	default:
		return a.Float
	}
}
