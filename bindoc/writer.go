package bindoc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer incrementally builds one container value (list, id-keyed map, or
// string-keyed object). It is single-owner and not safe for concurrent
// use; once Finish is called the returned bytes are immutable and may be
// shared freely.
type Writer struct {
	kind     Type
	body     []byte // encoded elements, header-less
	count    int
	finished bool
	bytes    []byte // set by Finish
	dirty    bool   // cleared by Finish; mutations after Finish are rejected
}

// NewList creates a builder for an insertion-ordered list.
func NewList() *Writer { return &Writer{kind: TypeList, dirty: true} }

// NewMap creates a builder for an int64-id-keyed container. JSON encoding
// never produces one.
func NewMap() *Writer { return &Writer{kind: TypeMap, dirty: true} }

// NewObject creates a builder for a string-keyed JSON object.
func NewObject() *Writer { return &Writer{kind: TypeObject, dirty: true} }

// Dirty reports whether the builder has unserialized changes since the
// last Finish.
func (w *Writer) Dirty() bool { return w.dirty }

func (w *Writer) checkMutable() error {
	if w.finished {
		return fmt.Errorf("%w: writer already finished", ErrInvalidType)
	}
	return nil
}

// Append adds v as the next element of a list builder.
func (w *Writer) Append(v any) error {
	if w.kind != TypeList {
		return fmt.Errorf("%w: Append requires a list builder", ErrInvalidType)
	}
	if err := w.checkMutable(); err != nil {
		return err
	}
	if err := encodeValue(&w.body, v, w); err != nil {
		return err
	}
	w.count++
	w.dirty = true
	return nil
}

// SetID adds or appends (id, v) to a map builder. It does not deduplicate
// by id; last-write-wins is left to whatever reads the result.
func (w *Writer) SetID(id int64, v any) error {
	if w.kind != TypeMap {
		return fmt.Errorf("%w: SetID requires a map builder", ErrInvalidType)
	}
	if err := w.checkMutable(); err != nil {
		return err
	}
	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], uint64(id))
	w.body = append(w.body, idBuf[:]...)
	if err := encodeValue(&w.body, v, w); err != nil {
		return err
	}
	w.count++
	w.dirty = true
	return nil
}

// Set adds or appends (key, v) to an object builder. It does not
// deduplicate by key; last-write-wins is left to whatever reads the
// result.
func (w *Writer) Set(key string, v any) error {
	if w.kind != TypeObject {
		return fmt.Errorf("%w: Set requires an object builder", ErrInvalidType)
	}
	if err := w.checkMutable(); err != nil {
		return err
	}
	if len(key) > MaxKeyLen {
		return fmt.Errorf("%w: key %q exceeds %d bytes", ErrOverflow, key, MaxKeyLen)
	}
	w.body = append(w.body, byte(len(key)))
	w.body = append(w.body, key...)
	w.body = append(w.body, 0)
	if err := encodeValue(&w.body, v, w); err != nil {
		return err
	}
	w.count++
	w.dirty = true
	return nil
}

// Finish serializes the header and returns the immutable encoded bytes.
// Calling Finish again without further mutation returns the same bytes.
func (w *Writer) Finish() ([]byte, error) {
	if w.finished {
		return w.bytes, nil
	}
	if len(w.body) > MaxSize {
		return nil, fmt.Errorf("%w: container body %d bytes exceeds %d", ErrOverflow, len(w.body), MaxSize)
	}

	countWidth := varSize(w.count)

	// total_size covers [type][size][count][body]; decide the size
	// field's own width by trial, since it can't include itself.
	sizeWidth := 1
	total := 1 + sizeWidth + countWidth + len(w.body)
	if total > 0x7F {
		sizeWidth = 4
		total = 1 + sizeWidth + countWidth + len(w.body)
	}
	if total > MaxSize {
		return nil, fmt.Errorf("%w: container %d bytes exceeds %d", ErrOverflow, total, MaxSize)
	}

	out := make([]byte, 1, total)
	out[0] = byte(w.kind)
	sizeField := make([]byte, sizeWidth)
	putVar(sizeField, total, sizeWidth)
	out = append(out, sizeField...)
	countField := make([]byte, countWidth)
	putVar(countField, w.count, countWidth)
	out = append(out, countField...)
	out = append(out, w.body...)

	w.bytes = out
	w.finished = true
	w.dirty = false
	return out, nil
}

// encodeValue appends v's [type][payload] encoding to *dst. owner is the
// Writer performing the encode, used only to detect self-embedding.
func encodeValue(dst *[]byte, v any, owner *Writer) error {
	switch t := v.(type) {
	case nil:
		*dst = append(*dst, byte(TypeNull))
	case bool:
		if t {
			*dst = append(*dst, byte(TypeTrue))
		} else {
			*dst = append(*dst, byte(TypeFalse))
		}
	case int:
		return encodeInt(dst, int64(t))
	case int32:
		return encodeInt(dst, int64(t))
	case int64:
		return encodeInt(dst, t)
	case float32:
		return encodeFloat(dst, float64(t))
	case float64:
		return encodeFloat(dst, t)
	case string:
		return encodeString(dst, t)
	case []byte:
		return encodeBlob(dst, t)
	case *Writer:
		if t == owner {
			return ErrCircularRef
		}
		if !t.finished {
			return fmt.Errorf("%w: embedded writer must be Finish()ed first", ErrInvalidType)
		}
		*dst = append(*dst, t.bytes...)
	case *Reader:
		*dst = append(*dst, t.buf...)
	default:
		return fmt.Errorf("%w: unsupported value type %T", ErrInvalidType, v)
	}
	return nil
}

func encodeInt(dst *[]byte, v int64) error {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		*dst = append(*dst, byte(TypeInt8), byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		*dst = append(*dst, byte(TypeInt16))
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(int16(v)))
		*dst = append(*dst, b[:]...)
	case v >= math.MinInt32 && v <= math.MaxInt32:
		*dst = append(*dst, byte(TypeInt32))
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(int32(v)))
		*dst = append(*dst, b[:]...)
	default:
		*dst = append(*dst, byte(TypeInt64))
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		*dst = append(*dst, b[:]...)
	}
	return nil
}

func encodeFloat(dst *[]byte, v float64) error {
	*dst = append(*dst, byte(TypeFloat64))
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	*dst = append(*dst, b[:]...)
	return nil
}

func encodeString(dst *[]byte, s string) error {
	if len(s) > MaxSize {
		return fmt.Errorf("%w: string of %d bytes exceeds %d", ErrOverflow, len(s), MaxSize)
	}
	*dst = append(*dst, byte(TypeString))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	*dst = append(*dst, lenBuf[:]...)
	*dst = append(*dst, s...)
	*dst = append(*dst, 0) // NUL-terminated even though length-prefixed
	return nil
}

func encodeBlob(dst *[]byte, b []byte) error {
	if len(b) > MaxSize {
		return fmt.Errorf("%w: blob of %d bytes exceeds %d", ErrOverflow, len(b), MaxSize)
	}
	*dst = append(*dst, byte(TypeBlob))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	*dst = append(*dst, lenBuf[:]...)
	*dst = append(*dst, b...)
	return nil
}
