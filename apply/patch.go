package apply

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-openapi/jsonpointer"

	"github.com/ejdbq/jql/queryast"
)

// applyPatchOps runs an RFC 6902 operation list against doc in order,
// threading the tree through each step since map/slice values may be
// replaced wholesale rather than mutated in place.
func applyPatchOps(doc any, ops []queryast.PatchOp) (any, error) {
	for _, op := range ops {
		var err error
		switch op.Op {
		case "add":
			doc, err = pointerSet(doc, op.Path, derefJSON(op.Value), true)
		case "replace":
			doc, err = pointerSet(doc, op.Path, derefJSON(op.Value), false)
		case "remove":
			doc, err = pointerRemove(doc, op.Path)
		case "copy":
			var v any
			if v, err = pointerGet(doc, op.From); err == nil {
				doc, err = pointerSet(doc, op.Path, v, true)
			}
		case "move":
			var v any
			if v, err = pointerGet(doc, op.From); err == nil {
				if doc, err = pointerRemove(doc, op.From); err == nil {
					doc, err = pointerSet(doc, op.Path, v, true)
				}
			}
		case "test":
			var v any
			if v, err = pointerGet(doc, op.Path); err == nil && !reflect.DeepEqual(v, derefJSON(op.Value)) {
				err = fmt.Errorf("apply: test failed at %q", op.Path)
			}
		default:
			err = fmt.Errorf("apply: unknown patch operation %q", op.Op)
		}
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func derefJSON(n *queryast.JSONNode) any {
	if n == nil {
		return nil
	}
	return n.Value
}

// decodedTokens resolves path with go-openapi/jsonpointer so the
// RFC 6901 escaping rules (~0, ~1) are handled the library's way rather
// than reimplemented; the actual tree walk below is manual because
// jsonpointer's own Set doesn't implement RFC 6902 array-insert
// semantics for the `add` operation.
func decodedTokens(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	p, err := jsonpointer.New(path)
	if err != nil {
		return nil, err
	}
	return p.DecodedTokens(), nil
}

func pointerGet(doc any, path string) (any, error) {
	if path == "" {
		return doc, nil
	}
	p, err := jsonpointer.New(path)
	if err != nil {
		return nil, fmt.Errorf("apply: invalid pointer %q: %w", path, err)
	}
	v, _, err := p.Get(doc)
	if err != nil {
		return nil, fmt.Errorf("apply: get %q: %w", path, err)
	}
	return v, nil
}

func pointerSet(doc any, path string, value any, insert bool) (any, error) {
	tokens, err := decodedTokens(path)
	if err != nil {
		return nil, fmt.Errorf("apply: invalid pointer %q: %w", path, err)
	}
	return setAt(doc, tokens, value, insert)
}

func pointerRemove(doc any, path string) (any, error) {
	tokens, err := decodedTokens(path)
	if err != nil {
		return nil, fmt.Errorf("apply: invalid pointer %q: %w", path, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("apply: cannot remove the document root")
	}
	return removeAt(doc, tokens)
}

func arrayIndex(tok string, length int) (idx int, appendAt bool, err error) {
	if tok == "-" {
		return length, true, nil
	}
	i, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false, fmt.Errorf("apply: invalid array index %q", tok)
	}
	return i, false, nil
}

func setAt(node any, tokens []string, value any, insert bool) (any, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	tok, rest := tokens[0], tokens[1:]
	switch t := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(t)+1)
		for k, v := range t {
			out[k] = v
		}
		if len(rest) == 0 {
			out[tok] = value
			return out, nil
		}
		child, ok := out[tok]
		if !ok {
			if !insert {
				return nil, fmt.Errorf("apply: path segment %q not found", tok)
			}
			child = map[string]any{}
		}
		nv, err := setAt(child, rest, value, insert)
		if err != nil {
			return nil, err
		}
		out[tok] = nv
		return out, nil

	case []any:
		idx, appendAt, err := arrayIndex(tok, len(t))
		if err != nil {
			return nil, err
		}
		if len(rest) == 0 {
			if insert {
				if appendAt {
					out := make([]any, len(t), len(t)+1)
					copy(out, t)
					return append(out, value), nil
				}
				if idx < 0 || idx > len(t) {
					return nil, fmt.Errorf("apply: array index %d out of range", idx)
				}
				out := make([]any, 0, len(t)+1)
				out = append(out, t[:idx]...)
				out = append(out, value)
				out = append(out, t[idx:]...)
				return out, nil
			}
			if appendAt || idx < 0 || idx >= len(t) {
				return nil, fmt.Errorf("apply: array index %d out of range", idx)
			}
			out := make([]any, len(t))
			copy(out, t)
			out[idx] = value
			return out, nil
		}
		if appendAt || idx < 0 || idx >= len(t) {
			return nil, fmt.Errorf("apply: array index %d out of range", idx)
		}
		out := make([]any, len(t))
		copy(out, t)
		nv, err := setAt(out[idx], rest, value, insert)
		if err != nil {
			return nil, err
		}
		out[idx] = nv
		return out, nil

	default:
		return nil, fmt.Errorf("apply: cannot descend into a scalar at %q", tok)
	}
}

func removeAt(node any, tokens []string) (any, error) {
	tok, rest := tokens[0], tokens[1:]
	switch t := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = v
		}
		if len(rest) == 0 {
			if _, ok := out[tok]; !ok {
				return nil, fmt.Errorf("apply: path segment %q not found", tok)
			}
			delete(out, tok)
			return out, nil
		}
		child, ok := out[tok]
		if !ok {
			return nil, fmt.Errorf("apply: path segment %q not found", tok)
		}
		nv, err := removeAt(child, rest)
		if err != nil {
			return nil, err
		}
		out[tok] = nv
		return out, nil

	case []any:
		idx, appendAt, err := arrayIndex(tok, len(t))
		if err != nil || appendAt || idx < 0 || idx >= len(t) {
			return nil, fmt.Errorf("apply: array index %q out of range", tok)
		}
		if len(rest) == 0 {
			out := make([]any, 0, len(t)-1)
			out = append(out, t[:idx]...)
			out = append(out, t[idx+1:]...)
			return out, nil
		}
		out := make([]any, len(t))
		copy(out, t)
		nv, err := removeAt(out[idx], rest)
		if err != nil {
			return nil, err
		}
		out[idx] = nv
		return out, nil

	default:
		return nil, fmt.Errorf("apply: cannot descend into a scalar at %q", tok)
	}
}
