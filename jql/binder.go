package jql

import (
	"strconv"

	"github.com/ejdbq/jql/internal/jsonutil"
	"github.com/ejdbq/jql/queryast"
	"github.com/ejdbq/jql/regexvm"
)

// Binder binds values to a compiled query's unset placeholders, named
// (":foo") or positional (by 0-based occurrence order, passed as a
// decimal string). *Query implements it directly.
type Binder interface {
	SetInt(nameOrIdx string, v int64) error
	SetStr(nameOrIdx string, v string) error
	SetJSON(nameOrIdx string, v any) error
	SetRegex(nameOrIdx string, pattern string) error
}

var _ Binder = (*Query)(nil)

func (q *Query) lookupPlaceholder(nameOrIdx string) (*queryast.Placeholder, error) {
	if ph, ok := q.arena.FindPlaceholder(nameOrIdx); ok {
		return ph, nil
	}
	if idx, err := strconv.Atoi(nameOrIdx); err == nil {
		if ph, ok := q.arena.FindPositionalPlaceholder(idx); ok {
			return ph, nil
		}
	}
	return nil, newError(InvalidPlaceholder, "no placeholder named or positioned %q", nameOrIdx)
}

// SetInt binds an integer literal to a placeholder.
func (q *Query) SetInt(nameOrIdx string, v int64) error {
	ph, err := q.lookupPlaceholder(nameOrIdx)
	if err != nil {
		return err
	}
	ph.Value = queryast.PlaceholderValue{Kind: queryast.LitI64, I64: v}
	ph.Bound = true
	return nil
}

// SetStr binds a string literal to a placeholder.
func (q *Query) SetStr(nameOrIdx string, v string) error {
	ph, err := q.lookupPlaceholder(nameOrIdx)
	if err != nil {
		return err
	}
	ph.Value = queryast.PlaceholderValue{Kind: queryast.LitStr, Str: q.arena.Intern(v)}
	ph.Bound = true
	return nil
}

// SetJSON binds an arbitrary decoded JSON value (object, array, number,
// string, bool, or nil) to a placeholder.
func (q *Query) SetJSON(nameOrIdx string, v any) error {
	ph, err := q.lookupPlaceholder(nameOrIdx)
	if err != nil {
		return err
	}
	ph.Value = queryast.PlaceholderValue{Kind: queryast.LitJSON, JSON: &queryast.JSONNode{Value: v}}
	ph.Bound = true
	return nil
}

// SetRegex compiles pattern and binds it to a placeholder used as a `re`
// operand, so the same compiled query can be re-run with a different
// pattern without re-parsing the query text.
func (q *Query) SetRegex(nameOrIdx string, pattern string) error {
	ph, err := q.lookupPlaceholder(nameOrIdx)
	if err != nil {
		return err
	}
	prog, err := regexvm.Compile(pattern)
	if err != nil {
		return newError(RegexpInvalid, "%v", err)
	}
	ph.Value = queryast.PlaceholderValue{Kind: queryast.LitRegex, Regex: prog}
	ph.Bound = true
	return nil
}

// SetJSONText is a convenience wrapper over SetJSON that decodes raw
// JSON text first, for callers binding against wire input rather than
// an already-decoded Go value.
func (q *Query) SetJSONText(nameOrIdx string, raw []byte) error {
	var v any
	if err := jsonutil.Unmarshal(raw, &v); err != nil {
		return newError(InvalidPlaceholderValueType, "invalid JSON: %v", err)
	}
	return q.SetJSON(nameOrIdx, v)
}

// Unbound reports the names/positions of every placeholder the query
// still requires a value for, so a caller can validate bindings before
// running Matched (which otherwise fails lazily, mid-evaluation, on the
// first unbound placeholder it touches).
func (q *Query) Unbound() []string {
	var out []string
	for _, ph := range q.arena.Placeholders() {
		if ph.Bound {
			continue
		}
		if ph.Name != "" {
			out = append(out, ph.Name)
		} else {
			out = append(out, strconv.Itoa(ph.Position))
		}
	}
	return out
}
