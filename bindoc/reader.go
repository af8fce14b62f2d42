package bindoc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AnyType is passed to Open to skip the expected-type check.
const AnyType Type = 0xFF

// Reader is a zero-copy, read-only view over an externally owned buffer
// holding one container value (list, map, or object). Opening a Reader
// validates the header but does not walk the elements; malformed element
// data is only discovered while iterating.
type Reader struct {
	buf       []byte // full span: [type][size][count][body]
	kind      Type
	count     int
	headerLen int
}

// Open parses buf as a container value. want is the type the caller
// expects to find (TypeList, TypeMap, or TypeObject); pass AnyType to
// accept whichever container type the buffer declares.
func Open(buf []byte, want Type) (*Reader, error) {
	if len(buf) < 3 {
		return nil, fmt.Errorf("%w: buffer too short for a header", ErrMalformed)
	}
	kind := Type(buf[0])
	if !kind.IsContainer() {
		return nil, fmt.Errorf("%w: type %s is not a container", ErrMalformed, kind)
	}
	if want != AnyType && want != kind {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidType, want, kind)
	}

	pos := 1
	if pos >= len(buf) {
		return nil, fmt.Errorf("%w: truncated size field", ErrMalformed)
	}
	sizeWidth := varWidth(buf[pos:])
	if pos+sizeWidth > len(buf) {
		return nil, fmt.Errorf("%w: truncated size field", ErrMalformed)
	}
	totalSize := getVar(buf[pos:], sizeWidth)
	pos += sizeWidth

	if pos >= len(buf) {
		return nil, fmt.Errorf("%w: truncated count field", ErrMalformed)
	}
	countWidth := varWidth(buf[pos:])
	if pos+countWidth > len(buf) {
		return nil, fmt.Errorf("%w: truncated count field", ErrMalformed)
	}
	count := getVar(buf[pos:], countWidth)
	pos += countWidth

	if totalSize < pos || totalSize > len(buf) {
		return nil, fmt.Errorf("%w: declared size %d out of range (have %d bytes, header %d)", ErrMalformed, totalSize, len(buf), pos)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count", ErrMalformed)
	}

	return &Reader{buf: buf[:totalSize], kind: kind, count: count, headerLen: pos}, nil
}

// Type returns the container's own type.
func (r *Reader) Type() Type { return r.kind }

// Len returns the number of elements the header declares.
func (r *Reader) Len() int { return r.count }

// Bytes returns the container's full encoded span, suitable for
// re-embedding via Writer.Append/Set/SetID.
func (r *Reader) Bytes() []byte { return r.buf }

// Size returns the total byte span of the container, including its own
// header.
func (r *Reader) Size() int { return len(r.buf) }

// decodeScalar reads a scalar payload starting at buf[pos], buf[pos]
// being the type tag. It returns the decoded element and the number of
// bytes the whole [type][payload] tuple occupies.
func decodeScalar(buf []byte, pos int) (Element, int, error) {
	if pos >= len(buf) {
		return Element{}, 0, fmt.Errorf("%w: truncated element", ErrMalformed)
	}
	t := Type(buf[pos])
	p := pos + 1
	switch t {
	case TypeNull, TypeTrue, TypeFalse:
		return Element{Type: t}, 1, nil
	case TypeInt8:
		if p+1 > len(buf) {
			return Element{}, 0, fmt.Errorf("%w: truncated int8", ErrMalformed)
		}
		return Element{Type: t, I64: int64(int8(buf[p]))}, 2, nil
	case TypeInt16:
		if p+2 > len(buf) {
			return Element{}, 0, fmt.Errorf("%w: truncated int16", ErrMalformed)
		}
		return Element{Type: t, I64: int64(int16(binary.LittleEndian.Uint16(buf[p:])))}, 3, nil
	case TypeInt32:
		if p+4 > len(buf) {
			return Element{}, 0, fmt.Errorf("%w: truncated int32", ErrMalformed)
		}
		return Element{Type: t, I64: int64(int32(binary.LittleEndian.Uint32(buf[p:])))}, 5, nil
	case TypeInt64:
		if p+8 > len(buf) {
			return Element{}, 0, fmt.Errorf("%w: truncated int64", ErrMalformed)
		}
		return Element{Type: t, I64: int64(binary.LittleEndian.Uint64(buf[p:]))}, 9, nil
	case TypeFloat64:
		if p+8 > len(buf) {
			return Element{}, 0, fmt.Errorf("%w: truncated float64", ErrMalformed)
		}
		bits := binary.LittleEndian.Uint64(buf[p:])
		return Element{Type: t, F64: math.Float64frombits(bits)}, 9, nil
	case TypeString:
		if p+4 > len(buf) {
			return Element{}, 0, fmt.Errorf("%w: truncated string length", ErrMalformed)
		}
		n := int(binary.LittleEndian.Uint32(buf[p:]))
		p += 4
		if n < 0 || p+n+1 > len(buf) {
			return Element{}, 0, fmt.Errorf("%w: truncated string body", ErrMalformed)
		}
		s := string(buf[p : p+n])
		return Element{Type: t, Str: s}, (p + n + 1) - pos, nil
	case TypeBlob:
		if p+4 > len(buf) {
			return Element{}, 0, fmt.Errorf("%w: truncated blob length", ErrMalformed)
		}
		n := int(binary.LittleEndian.Uint32(buf[p:]))
		p += 4
		if n < 0 || p+n > len(buf) {
			return Element{}, 0, fmt.Errorf("%w: truncated blob body", ErrMalformed)
		}
		return Element{Type: t, Blob: buf[p : p+n]}, (p + n) - pos, nil
	case TypeList, TypeMap, TypeObject:
		sub, err := Open(buf[pos:], t)
		if err != nil {
			return Element{}, 0, err
		}
		return Element{Type: t, Sub: sub}, sub.Size(), nil
	default:
		return Element{}, 0, fmt.Errorf("%w: unknown type tag %d", ErrMalformed, buf[pos])
	}
}

// Iter calls fn for each element in order. fn returning false stops
// iteration early. Iter returns an error if element data is malformed.
func (r *Reader) Iter(fn func(Element) bool) error {
	pos := r.headerLen
	for i := 0; i < r.count; i++ {
		var el Element
		var n int
		var err error

		switch r.kind {
		case TypeList:
			el, n, err = decodeScalar(r.buf, pos)
			el.Index = i
		case TypeMap:
			if pos+8 > len(r.buf) {
				return fmt.Errorf("%w: truncated map id", ErrMalformed)
			}
			id := int64(binary.LittleEndian.Uint64(r.buf[pos:]))
			el, n, err = decodeScalar(r.buf, pos+8)
			n += 8
			el.ID = id
			el.Index = i
		case TypeObject:
			if pos >= len(r.buf) {
				return fmt.Errorf("%w: truncated object key", ErrMalformed)
			}
			klen := int(r.buf[pos])
			keyStart := pos + 1
			if keyStart+klen+1 > len(r.buf) {
				return fmt.Errorf("%w: truncated object key", ErrMalformed)
			}
			key := string(r.buf[keyStart : keyStart+klen])
			valPos := keyStart + klen + 1
			el, n, err = decodeScalar(r.buf, valPos)
			n += (valPos - pos)
			el.Key = key
			el.Index = i
		default:
			return fmt.Errorf("%w: reader has non-container kind %s", ErrMalformed, r.kind)
		}

		if err != nil {
			return err
		}
		if !fn(el) {
			return nil
		}
		pos += n
	}
	return nil
}

// Index returns the i-th element of a list Reader.
func (r *Reader) Index(i int) (Element, error) {
	if r.kind != TypeList {
		return Element{}, fmt.Errorf("%w: Index requires a list", ErrInvalidType)
	}
	if i < 0 || i >= r.count {
		return Element{}, fmt.Errorf("%w: index %d out of range (len %d)", ErrMalformed, i, r.count)
	}
	var found Element
	var ok bool
	err := r.Iter(func(e Element) bool {
		if e.Index == i {
			found = e
			ok = true
			return false
		}
		return true
	})
	if err != nil {
		return Element{}, err
	}
	if !ok {
		return Element{}, fmt.Errorf("%w: index %d not found", ErrMalformed, i)
	}
	return found, nil
}

// Get returns the element for key in an object Reader, scanning entries
// in insertion order and returning the last match (last-write-wins, per
// the Writer's Set contract).
func (r *Reader) Get(key string) (Element, bool, error) {
	if r.kind != TypeObject {
		return Element{}, false, fmt.Errorf("%w: Get requires an object", ErrInvalidType)
	}
	var found Element
	var ok bool
	err := r.Iter(func(e Element) bool {
		if e.Key == key {
			found, ok = e, true
		}
		return true
	})
	return found, ok, err
}

// GetID returns the element for id in a map Reader, scanning entries in
// insertion order and returning the last match.
func (r *Reader) GetID(id int64) (Element, bool, error) {
	if r.kind != TypeMap {
		return Element{}, false, fmt.Errorf("%w: GetID requires a map", ErrInvalidType)
	}
	var found Element
	var ok bool
	err := r.Iter(func(e Element) bool {
		if e.ID == id {
			found, ok = e, true
		}
		return true
	})
	return found, ok, err
}
