// Package bindoc implements a binary document format: a length-prefixed,
// typed, self-describing container for JSON-like values that can be
// traversed directly without a parse pass. A container's header carries
// its own total byte span and element count, so a reader can skip over a
// nested value without walking it, and there is no side table: element
// offsets are computed from the sizes of the elements that precede them.
package bindoc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Type tags a BinDoc value's storage class.
type Type byte

const (
	TypeNull Type = iota
	TypeTrue
	TypeFalse
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeString
	TypeBlob
	TypeList
	TypeMap    // int64-id-keyed container
	TypeObject // string-keyed container
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeTrue:
		return "true"
	case TypeFalse:
		return "false"
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return "int"
	case TypeFloat64:
		return "float"
	case TypeString:
		return "string"
	case TypeBlob:
		return "blob"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	case TypeObject:
		return "object"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// IsContainer reports whether t is one of List, Map, Object.
func (t Type) IsContainer() bool {
	return t == TypeList || t == TypeMap || t == TypeObject
}

// Sentinel errors returned by Writer and Reader operations.
var (
	ErrOverflow    = errors.New("bindoc: overflow")
	ErrInvalidType = errors.New("bindoc: invalid type for container")
	ErrCircularRef = errors.New("bindoc: circular reference")
	ErrMalformed   = errors.New("bindoc: malformed buffer")
)

// MaxKeyLen is the largest length a map/object key may have.
const MaxKeyLen = 255

// MaxSize is the largest total byte span a container may occupy.
const MaxSize = math.MaxInt32

// varSize and the putVar/getVar/varWidth trio implement the header's
// self-describing count/size field: the top bit of the field's first
// byte says whether the field is 1 byte (bit clear, value 0-127) or 4
// bytes big-endian (bit set, value masked from the remaining 31 bits).
// A reader can therefore learn the field's width by looking only at its
// first byte, before it knows the value the field encodes.
func varSize(v int) int {
	if v <= 0x7F {
		return 1
	}
	return 4
}

func putVar(buf []byte, v int, width int) {
	if width == 1 {
		buf[0] = byte(v)
		return
	}
	binary.BigEndian.PutUint32(buf, uint32(v))
	buf[0] |= 0x80
}

// varWidth inspects buf[0] and reports whether the field starting there
// is 1 or 4 bytes wide.
func varWidth(buf []byte) int {
	if buf[0]&0x80 != 0 {
		return 4
	}
	return 1
}

func getVar(buf []byte, width int) int {
	if width == 1 {
		return int(buf[0])
	}
	return int(binary.BigEndian.Uint32(buf) & 0x7FFFFFFF)
}
