package bindoc

import (
	"fmt"

	"github.com/ejdbq/jql/internal/jsonutil"
)

// EncodeJSON decodes JSON text and builds its BinDoc encoding. The top
// level must be a JSON object or array; scalars have no container to
// live in.
func EncodeJSON(raw []byte) ([]byte, error) {
	var v any
	if err := jsonutil.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("bindoc: decoding JSON: %w", err)
	}
	w, err := fromAny(v)
	if err != nil {
		return nil, err
	}
	wr, ok := w.(*Writer)
	if !ok {
		return nil, fmt.Errorf("%w: top-level JSON value must be an object or array", ErrInvalidType)
	}
	return wr.Finish()
}

// fromAny builds a *Writer for objects/arrays, or returns a scalar Go
// value directly (nil, bool, int64, float64, string) for encodeValue to
// pick up.
func fromAny(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string:
		return t, nil
	case float64:
		return jsonNumber(t), nil
	case map[string]any:
		w := NewObject()
		for k, cv := range t {
			child, err := fromAny(cv)
			if err != nil {
				return nil, err
			}
			if err := w.Set(k, child); err != nil {
				return nil, err
			}
		}
		if _, err := w.Finish(); err != nil {
			return nil, err
		}
		return w, nil
	case []any:
		w := NewList()
		for _, cv := range t {
			child, err := fromAny(cv)
			if err != nil {
				return nil, err
			}
			if err := w.Append(child); err != nil {
				return nil, err
			}
		}
		if _, err := w.Finish(); err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("%w: unsupported JSON value %T", ErrInvalidType, v)
	}
}

// jsonNumber maps a JSON number to an int64 when it round-trips losslessly
// as one, and to a float64 otherwise, so integral document fields take
// the narrower fixed-width storage classes instead of always TypeFloat64.
func jsonNumber(f float64) any {
	if i := int64(f); float64(i) == f {
		return i
	}
	return f
}

// DecodeJSON walks a Reader and returns the equivalent Go value tree
// (map[string]any, []any, nil, bool, int64, float64, string, []byte),
// suitable for jsonutil.Marshal.
func DecodeJSON(r *Reader) (any, error) {
	switch r.Type() {
	case TypeObject:
		out := make(map[string]any, r.Len())
		var iterErr error
		err := r.Iter(func(e Element) bool {
			v, err := elementToAny(e)
			if err != nil {
				iterErr = err
				return false
			}
			out[e.Key] = v
			return true
		})
		if err != nil {
			return nil, err
		}
		if iterErr != nil {
			return nil, iterErr
		}
		return out, nil
	case TypeList:
		out := make([]any, 0, r.Len())
		var iterErr error
		err := r.Iter(func(e Element) bool {
			v, err := elementToAny(e)
			if err != nil {
				iterErr = err
				return false
			}
			out = append(out, v)
			return true
		})
		if err != nil {
			return nil, err
		}
		if iterErr != nil {
			return nil, iterErr
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: DecodeJSON requires an object or list", ErrInvalidType)
	}
}

func elementToAny(e Element) (any, error) {
	if e.Type.IsContainer() {
		return DecodeJSON(e.Sub)
	}
	return e.AsAny(), nil
}
