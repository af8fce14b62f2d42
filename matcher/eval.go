package matcher

import (
	"errors"
	"fmt"

	"github.com/ejdbq/jql/bindoc"
	"github.com/ejdbq/jql/queryast"
	"github.com/ejdbq/jql/regexvm"
	"github.com/ejdbq/jql/value"
)

// evalPath evaluates paths[idx] against container, recursing into
// paths[idx+1] once the current node matches and a child container is
// available to descend into.
func (m *Matcher) evalPath(paths []int, idx int, container *bindoc.Reader) (bool, error) {
	node := m.Arena.Node(paths[idx])
	last := idx == len(paths)-1

	switch node.PathKind {
	case queryast.PathField:
		if container.Type() != bindoc.TypeObject {
			return false, nil
		}
		el, ok, err := container.Get(node.Field)
		if err != nil {
			return m.corrupt(err)
		}
		if !ok {
			return false, nil
		}
		return m.descendOrAccept(paths, idx, last, el)

	case queryast.PathWildcardOne:
		var matched bool
		var innerErr error
		iterErr := container.Iter(func(e bindoc.Element) bool {
			ok, err := m.descendOrAccept(paths, idx, last, e)
			if err != nil {
				innerErr = err
				return false
			}
			if ok {
				matched = true
				return false
			}
			return true
		})
		if iterErr != nil {
			return m.corrupt(iterErr)
		}
		return matched, innerErr

	case queryast.PathWildcardAny:
		return m.evalWildcardAny(paths, idx, last, container)

	case queryast.PathPredicate:
		return m.evalPredicate(paths, idx, last, container)

	case queryast.PathPK:
		return m.evalPK(paths, idx, last, container)

	default:
		return false, fmt.Errorf("matcher: unknown path kind %d", node.PathKind)
	}
}

// descendOrAccept is the shared continuation for Field/Wildcard path
// nodes: if this was the terminal node, presence alone is the match;
// otherwise it recurses into the element's sub-container, if it has
// one, for the next path node.
func (m *Matcher) descendOrAccept(paths []int, idx int, last bool, el bindoc.Element) (bool, error) {
	if last {
		return true, nil
	}
	if el.Sub == nil {
		return false, nil
	}
	return m.evalPath(paths, idx+1, el.Sub)
}

// evalWildcardAny implements `**`: it may match zero additional levels
// (the rest of the path chain applies directly to container) or
// descend into any child container while remaining active.
func (m *Matcher) evalWildcardAny(paths []int, idx int, last bool, container *bindoc.Reader) (bool, error) {
	if last {
		return true, nil
	}
	if ok, err := m.evalPath(paths, idx+1, container); err != nil || ok {
		return ok, err
	}
	var matched bool
	var innerErr error
	iterErr := container.Iter(func(e bindoc.Element) bool {
		if e.Sub == nil {
			return true
		}
		ok, err := m.evalWildcardAny(paths, idx, last, e.Sub)
		if err != nil {
			innerErr = err
			return false
		}
		if ok {
			matched = true
			return false
		}
		return true
	})
	if iterErr != nil {
		return m.corrupt(iterErr)
	}
	return matched, innerErr
}

// evalPredicate implements `[key_pred op value_pred]`: it iterates
// container's children, requiring both the key predicate and the value
// operator to match before accepting (or recursing further, if this
// predicate is not the filter's terminal path node).
func (m *Matcher) evalPredicate(paths []int, idx int, last bool, container *bindoc.Reader) (bool, error) {
	node := m.Arena.Node(paths[idx])
	var matched bool
	var innerErr error
	iterErr := container.Iter(func(e bindoc.Element) bool {
		keyOK, err := m.matchKeyPred(node, e)
		if err != nil {
			innerErr = err
			return false
		}
		if !keyOK {
			return true
		}
		valOK, err := m.evalOp(node.ValOp, value.FromElement(e))
		if err != nil {
			innerErr = err
			return false
		}
		if !valOK {
			return true
		}
		if last {
			matched = true
			return false
		}
		ok, err := m.descendOrAccept(paths, idx, last, e)
		if err != nil {
			innerErr = err
			return false
		}
		if ok {
			matched = true
			return false
		}
		return true
	})
	if iterErr != nil {
		return m.corrupt(iterErr)
	}
	return matched, innerErr
}

// matchKeyPred evaluates a predicate's key_pred against one element.
// `*`/`**` match any key unconditionally unless the key_pred was itself
// a nested bracket predicate (`[* op literal]`), in which case the
// element's own key/index — not its value — is compared via KeyOp.
func (m *Matcher) matchKeyPred(node *queryast.Node, e bindoc.Element) (bool, error) {
	if node.KeyOp >= 0 {
		var keyVal value.Value
		if e.Key != "" {
			keyVal = value.String(e.Key)
		} else {
			keyVal = value.Int(int64(e.Index))
		}
		return m.evalOp(node.KeyOp, keyVal)
	}
	switch node.Field {
	case "*", "**":
		return true, nil
	default:
		return e.Key == node.Field, nil
	}
}

// evalPK implements `=pk`: it compares the container's conventional
// "_id" field against the literal, since primary-key storage is owned
// by the (out-of-scope) storage engine and this subsystem only sees
// documents, not collection metadata.
func (m *Matcher) evalPK(paths []int, idx int, last bool, container *bindoc.Reader) (bool, error) {
	if container.Type() != bindoc.TypeObject {
		return false, nil
	}
	node := m.Arena.Node(paths[idx])
	el, ok, err := container.Get("_id")
	if err != nil {
		return m.corrupt(err)
	}
	if !ok {
		return false, nil
	}
	lit, err := m.literalValue(node.PKLit)
	if err != nil {
		return false, err
	}
	cmp, matchOK := value.Compare(value.FromElement(el), lit)
	if !matchOK || cmp != 0 {
		return false, nil
	}
	return m.descendOrAccept(paths, idx, last, el)
}

// evalOp evaluates the KindOp node at opIdx with left as its left-hand
// operand, applying the node's negate flag last.
func (m *Matcher) evalOp(opIdx int, left value.Value) (bool, error) {
	op := m.Arena.Node(opIdx)
	result, err := m.applyOp(op, left)
	if err != nil {
		return false, err
	}
	if op.OpNeg {
		result = !result
	}
	return result, nil
}

func (m *Matcher) applyOp(op *queryast.Node, left value.Value) (bool, error) {
	switch op.Op {
	case queryast.OpIn:
		vals, err := m.literalValues(op.Operand)
		if err != nil {
			return false, err
		}
		return value.In(left, vals), nil

	case queryast.OpNi:
		// `ni` reads with its operands swapped relative to `in`: the
		// array lives on the matched field (left) and the scalar is
		// the query literal, but the test itself is still membership,
		// not exclusion.
		elems, err := value.Elements(left)
		if err != nil {
			if errors.Is(err, bindoc.ErrMalformed) {
				return m.corrupt(err)
			}
			return false, nil
		}
		right, err := m.literalValue(op.Operand)
		if err != nil {
			return false, err
		}
		return value.In(right, elems), nil

	case queryast.OpRe:
		prog, err := m.compileRegex(op.Operand)
		if err != nil {
			return false, err
		}
		input, ok := value.ToRegexInput(left)
		if !ok {
			return false, nil
		}
		match := prog.Exec([]byte(input))
		if !match.Matched {
			return false, nil
		}
		if prog.AnchorEnd && match.End != len(input) {
			return false, nil
		}
		return true, nil

	default:
		right, err := m.literalValue(op.Operand)
		if err != nil {
			return false, err
		}
		cmp, ok := value.Compare(left, right)
		if !ok {
			return false, nil
		}
		switch op.Op {
		case queryast.OpEq:
			return cmp == 0, nil
		case queryast.OpNeq:
			return cmp != 0, nil
		case queryast.OpGt:
			return cmp > 0, nil
		case queryast.OpGte:
			return cmp >= 0, nil
		case queryast.OpLt:
			return cmp < 0, nil
		case queryast.OpLte:
			return cmp <= 0, nil
		default:
			return false, fmt.Errorf("matcher: unknown operator %d", op.Op)
		}
	}
}

// literalValue resolves a KindLiteral node (following a bound
// placeholder, if the literal is one) into a value.Value.
func (m *Matcher) literalValue(idx int) (value.Value, error) {
	n := m.Arena.Node(idx)
	switch n.LitKind {
	case queryast.LitNull:
		return value.Null(), nil
	case queryast.LitBool:
		return value.Bool(n.Bool), nil
	case queryast.LitI64:
		return value.Int(n.I64), nil
	case queryast.LitF64:
		return value.Float(n.F64), nil
	case queryast.LitStr:
		return value.String(n.Str), nil
	case queryast.LitJSON:
		return value.NodeValue(n.JSON.Value), nil
	case queryast.LitPlaceholder:
		return m.placeholderValue(n.Placeholder)
	default:
		return value.Value{}, fmt.Errorf("matcher: unresolvable literal kind %d", n.LitKind)
	}
}

func (m *Matcher) placeholderValue(ph *queryast.Placeholder) (value.Value, error) {
	if !ph.Bound {
		return value.Value{}, fmt.Errorf("matcher: placeholder %s is unset", placeholderLabel(ph))
	}
	pv := ph.Value
	switch pv.Kind {
	case queryast.LitNull:
		return value.Null(), nil
	case queryast.LitBool:
		return value.Bool(pv.Bool), nil
	case queryast.LitI64:
		return value.Int(pv.I64), nil
	case queryast.LitF64:
		return value.Float(pv.F64), nil
	case queryast.LitStr:
		return value.String(pv.Str), nil
	case queryast.LitJSON:
		return value.NodeValue(pv.JSON.Value), nil
	default:
		return value.Value{}, fmt.Errorf("matcher: placeholder %s has no bindable value", placeholderLabel(ph))
	}
}

func placeholderLabel(ph *queryast.Placeholder) string {
	if ph.Name != "" {
		return ":" + ph.Name
	}
	return fmt.Sprintf(":?#%d", ph.Position)
}

// literalValues resolves an `in`/`ni` operand, which must decode to a
// JSON array, into a slice of comparison values.
func (m *Matcher) literalValues(idx int) ([]value.Value, error) {
	v, err := m.literalValue(idx)
	if err != nil {
		return nil, err
	}
	arr, ok := v.Node.([]any)
	if v.Kind != value.KindNode || !ok {
		return nil, fmt.Errorf("matcher: in/ni operand must be a JSON array")
	}
	out := make([]value.Value, len(arr))
	for i, item := range arr {
		out[i] = value.FromJSON(item)
	}
	return out, nil
}

// compileRegex lazily compiles and caches the regex program for a `re`
// operand, which must be a string literal (the pattern source) or a
// placeholder pre-bound with a compiled handle.
func (m *Matcher) compileRegex(idx int) (*regexvm.Program, error) {
	n := m.Arena.Node(idx)
	if n.LitKind == queryast.LitPlaceholder {
		if !n.Placeholder.Bound || n.Placeholder.Value.Regex == nil {
			return nil, fmt.Errorf("matcher: placeholder %s has no bound regex", placeholderLabel(n.Placeholder))
		}
		prog, ok := n.Placeholder.Value.Regex.(*regexvm.Program)
		if !ok {
			return nil, fmt.Errorf("matcher: placeholder %s regex handle has the wrong type", placeholderLabel(n.Placeholder))
		}
		return prog, nil
	}
	if n.Regex != nil {
		prog, ok := n.Regex.(*regexvm.Program)
		if ok {
			return prog, nil
		}
	}
	if n.LitKind != queryast.LitStr {
		return nil, fmt.Errorf("matcher: re operand must be a string pattern")
	}
	prog, err := regexvm.Compile(n.Str)
	if err != nil {
		return nil, fmt.Errorf("matcher: invalid regex %q: %w", n.Str, err)
	}
	n.Regex = prog
	m.Metrics.RecordRegexCompile()
	return prog, nil
}
