package queryparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ejdbq/jql/queryast"
)

// OrderbyLimit is the maximum number of paths an order-by clause may
// name; Lower rejects a clause with more paths than this.
const OrderbyLimit = 64

// LowerResult is everything Lower produces from one parsed query: the
// populated arena plus the indices a caller needs to start walking it.
type LowerResult struct {
	Arena    *queryast.Arena
	Anchor   string
	RootExpr int // index of the first KindExpression node, -1 if none
	Clauses  []int
}

type lowerCtx struct {
	arena    *queryast.Arena
	stash    []string
	posCount int
}

// Lower walks one participle parse tree into a queryast.Arena. It is
// the only place queryparse's grammar types and queryast's node kinds
// meet; everything downstream works in terms of arena indices.
func Lower(q *QueryNode, stash []string) (*LowerResult, error) {
	ctx := &lowerCtx{arena: queryast.NewArena(), stash: stash}

	firstFilterIdx, err := ctx.lowerFilter(q.First)
	if err != nil {
		return nil, err
	}
	ctx.arena.Node(firstFilterIdx).Anchor = q.Anchor
	rootExpr := ctx.arena.Alloc(queryast.Node{
		Kind:   queryast.KindExpression,
		Join:   queryast.JoinNone,
		Negate: q.First.Negate,
		Filter: firstFilterIdx,
		Next:   -1,
	})

	prevExpr := rootExpr
	for _, j := range q.Joins {
		filterIdx, err := ctx.lowerFilter(j.Filter)
		if err != nil {
			return nil, err
		}
		join := queryast.JoinAnd
		if j.Join == "or" {
			join = queryast.JoinOr
		}
		idx := ctx.arena.Alloc(queryast.Node{
			Kind:   queryast.KindExpression,
			Join:   join,
			Negate: j.Filter.Negate,
			Filter: filterIdx,
			Next:   -1,
		})
		ctx.arena.Node(prevExpr).Next = idx
		prevExpr = idx
	}

	var clauseIdx []int
	for _, c := range q.Clauses {
		idxs, err := ctx.lowerClause(c)
		if err != nil {
			return nil, err
		}
		clauseIdx = append(clauseIdx, idxs...)
	}

	ctx.arena.ResetCursors()

	return &LowerResult{
		Arena:    ctx.arena,
		Anchor:   q.Anchor,
		RootExpr: rootExpr,
		Clauses:  clauseIdx,
	}, nil
}

func (ctx *lowerCtx) lowerFilter(f *FilterNode) (int, error) {
	paths := make([]int, 0, len(f.Paths))
	for _, p := range f.Paths {
		idx, err := ctx.lowerPath(p)
		if err != nil {
			return 0, err
		}
		paths = append(paths, idx)
	}
	return ctx.arena.Alloc(queryast.Node{Kind: queryast.KindFilter, Paths: paths}), nil
}

func (ctx *lowerCtx) lowerPath(p *PathNode) (int, error) {
	switch {
	case p.PK != nil:
		litIdx, err := ctx.lowerLiteral(p.PK.Lit)
		if err != nil {
			return 0, err
		}
		return ctx.arena.Alloc(queryast.Node{
			Kind: queryast.KindPath, PathKind: queryast.PathPK,
			KeyOp: -1, ValOp: -1, PKLit: litIdx,
		}), nil
	case p.Predicate != nil:
		return ctx.lowerPredicate(p.Predicate)
	case p.DoubleStar:
		return ctx.arena.Alloc(queryast.Node{
			Kind: queryast.KindPath, PathKind: queryast.PathWildcardAny,
			KeyOp: -1, ValOp: -1, PKLit: -1,
		}), nil
	case p.SingleStar:
		return ctx.arena.Alloc(queryast.Node{
			Kind: queryast.KindPath, PathKind: queryast.PathWildcardOne,
			KeyOp: -1, ValOp: -1, PKLit: -1,
		}), nil
	default:
		return ctx.arena.Alloc(queryast.Node{
			Kind: queryast.KindPath, PathKind: queryast.PathField,
			Field: ctx.arena.Intern(p.Field),
			KeyOp: -1, ValOp: -1, PKLit: -1,
		}), nil
	}
}

func (ctx *lowerCtx) lowerPredicate(pr *PredicateNode) (int, error) {
	valLit, err := ctx.lowerLiteral(pr.Value)
	if err != nil {
		return 0, err
	}
	outerOp := ctx.arena.Alloc(queryast.Node{Kind: queryast.KindOp, Op: mapOp(pr.Op), Operand: valLit})

	field := ""
	keyOp := -1
	switch {
	case pr.Key.Nested != nil:
		nestedLit, err := ctx.lowerLiteral(pr.Key.Nested.Value)
		if err != nil {
			return 0, err
		}
		keyOp = ctx.arena.Alloc(queryast.Node{Kind: queryast.KindOp, Op: mapOp(pr.Key.Nested.Op), Operand: nestedLit})
		field = "*"
	case pr.Key.DoubleStar:
		field = "**"
	case pr.Key.SingleStar:
		field = "*"
	default:
		field = ctx.arena.Intern(pr.Key.Field)
	}

	return ctx.arena.Alloc(queryast.Node{
		Kind: queryast.KindPath, PathKind: queryast.PathPredicate,
		Field: field, KeyOp: keyOp, ValOp: outerOp, PKLit: -1,
	}), nil
}

func mapOp(tok string) queryast.Op {
	switch tok {
	case "=":
		return queryast.OpEq
	case "!=":
		return queryast.OpNeq
	case ">":
		return queryast.OpGt
	case ">=":
		return queryast.OpGte
	case "<":
		return queryast.OpLt
	case "<=":
		return queryast.OpLte
	case "in":
		return queryast.OpIn
	case "ni":
		return queryast.OpNi
	case "re":
		return queryast.OpRe
	default:
		return queryast.OpEq
	}
}

func (ctx *lowerCtx) lowerLiteral(lit *LiteralNode) (int, error) {
	n := queryast.Node{Kind: queryast.KindLiteral}
	switch {
	case lit.Number != nil:
		if strings.ContainsAny(*lit.Number, ".eE") {
			f, err := strconv.ParseFloat(*lit.Number, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number literal %q: %w", *lit.Number, err)
			}
			n.LitKind, n.F64 = queryast.LitF64, f
		} else {
			i, err := strconv.ParseInt(*lit.Number, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number literal %q: %w", *lit.Number, err)
			}
			n.LitKind, n.I64 = queryast.LitI64, i
		}
	case lit.Str != nil:
		n.LitKind, n.Str = queryast.LitStr, ctx.arena.Intern(*lit.Str)
	case lit.Bool != nil:
		n.LitKind, n.Bool = queryast.LitBool, *lit.Bool == "true"
	case lit.Null:
		n.LitKind = queryast.LitNull
	case lit.Placeholder != nil:
		name := strings.TrimPrefix(*lit.Placeholder, ":")
		ph := &queryast.Placeholder{}
		if name == "?" {
			ph.Position = ctx.posCount
			ctx.posCount++
		} else {
			ph.Name = name
		}
		n.LitKind, n.Placeholder = queryast.LitPlaceholder, ph
	case lit.JSONLit != nil:
		idx, err := refIndex(*lit.JSONLit)
		if err != nil {
			return 0, err
		}
		jn, err := decodeLiteral(ctx.arena, ctx.stash[idx])
		if err != nil {
			return 0, err
		}
		n.LitKind, n.JSON = queryast.LitJSON, jn
	default:
		return 0, fmt.Errorf("literal node matched no alternative")
	}
	return ctx.arena.Alloc(n), nil
}

func (ctx *lowerCtx) lowerClause(c *ClauseNode) ([]int, error) {
	switch {
	case c.Projection != nil:
		return ctx.lowerProjection(c.Projection)
	case c.Apply != nil:
		idx, err := ctx.lowerApply(c.Apply)
		return []int{idx}, err
	case c.Delete != nil:
		return []int{ctx.arena.Alloc(queryast.Node{Kind: queryast.KindApply, ApplyKind: queryast.ApplyDelete})}, nil
	case c.Upsert != nil:
		idx, err := ctx.lowerUpsert(c.Upsert)
		return []int{idx}, err
	case c.SkipLimit != nil:
		idx, err := ctx.lowerSkipLimit(c.SkipLimit)
		return []int{idx}, err
	case c.OrderBy != nil:
		idx, err := ctx.lowerOrderBy(c.OrderBy)
		return []int{idx}, err
	default:
		return nil, fmt.Errorf("clause node matched no alternative")
	}
}

func joinPath(segments []string) string {
	return "/" + strings.Join(segments, "/")
}

// registerPathPlaceholders allocates a placeholder literal node, the same
// way lowerLiteral does for a filter-side placeholder, for every
// ":name"/":?" segment in segs that doesn't already have one — a
// projection path carries its placeholder segments as plain path text
// rather than its own literal node, so without this a projection-only
// placeholder (one never also named by a filter predicate) would never
// be registered in the arena at all. Named segments are deduplicated
// against any placeholder already registered under that name (by a
// filter or an earlier projection term) so FindPlaceholder keeps
// resolving to a single shared binding; positional segments are never
// deduplicated, matching lowerLiteral's per-occurrence semantics, and are
// rewritten in place from ":?" to ":?<N>" so resolvePathSegments can
// recover the absolute occurrence index at apply time without having to
// recount positional placeholders across the whole query.
func (ctx *lowerCtx) registerPathPlaceholders(segs []string) {
	for i, s := range segs {
		if !strings.HasPrefix(s, ":") {
			continue
		}
		name := strings.TrimPrefix(s, ":")
		if name == "?" {
			pos := ctx.posCount
			ctx.posCount++
			ph := &queryast.Placeholder{Position: pos}
			ctx.arena.Alloc(queryast.Node{Kind: queryast.KindLiteral, LitKind: queryast.LitPlaceholder, Placeholder: ph})
			segs[i] = fmt.Sprintf(":?%d", pos)
			continue
		}
		if _, ok := ctx.arena.FindPlaceholder(name); !ok {
			ph := &queryast.Placeholder{Name: name}
			ctx.arena.Alloc(queryast.Node{Kind: queryast.KindLiteral, LitKind: queryast.LitPlaceholder, Placeholder: ph})
		}
	}
}

func (ctx *lowerCtx) lowerProjection(pc *ProjectionClauseNode) ([]int, error) {
	idxs := make([]int, 0, 1+len(pc.Rest))
	allStar := len(pc.First.Segments) == 1 && pc.First.Segments[0] == "**"
	ctx.registerPathPlaceholders(pc.First.Segments)
	idxs = append(idxs, ctx.arena.Alloc(queryast.Node{
		Kind: queryast.KindProjection, ProjAll: allStar, ProjPath: joinPath(pc.First.Segments),
	}))
	for _, term := range pc.Rest {
		ctx.registerPathPlaceholders(term.Path.Segments)
		idxs = append(idxs, ctx.arena.Alloc(queryast.Node{
			Kind:        queryast.KindProjection,
			ProjAll:     len(term.Path.Segments) == 1 && term.Path.Segments[0] == "**",
			ProjExclude: term.Op == "-",
			ProjPath:    joinPath(term.Path.Segments),
		}))
	}
	return idxs, nil
}

func (ctx *lowerCtx) lowerApply(ac *ApplyClauseNode) (int, error) {
	idx, err := refIndex(ac.Body)
	if err != nil {
		return 0, err
	}
	jn, err := decodeLiteral(ctx.arena, ctx.stash[idx])
	if err != nil {
		return 0, err
	}
	if ac.Mode == "patch" {
		ops, err := parsePatchOps(jn.Value)
		if err != nil {
			return 0, err
		}
		return ctx.arena.Alloc(queryast.Node{Kind: queryast.KindApply, ApplyKind: queryast.ApplyPatch, ApplyOps: ops}), nil
	}
	return ctx.arena.Alloc(queryast.Node{Kind: queryast.KindApply, ApplyKind: queryast.ApplyJSON, ApplyJSON: jn}), nil
}

func (ctx *lowerCtx) lowerUpsert(uc *UpsertClauseNode) (int, error) {
	idx, err := refIndex(uc.Body)
	if err != nil {
		return 0, err
	}
	jn, err := decodeLiteral(ctx.arena, ctx.stash[idx])
	if err != nil {
		return 0, err
	}
	return ctx.arena.Alloc(queryast.Node{Kind: queryast.KindApply, ApplyKind: queryast.ApplyUpsert, ApplyJSON: jn}), nil
}

func (ctx *lowerCtx) lowerSkipLimit(sl *SkipLimitNode) (int, error) {
	n, err := strconv.Atoi(sl.Count)
	if err != nil {
		return 0, fmt.Errorf("invalid %s count %q: %w", sl.Kw, sl.Count, err)
	}
	return ctx.arena.Alloc(queryast.Node{Kind: queryast.KindSkipLimit, IsLimit: sl.Kw == "limit", Count: n}), nil
}

// OrderbyLimitError reports an order-by clause naming more paths than
// OrderbyLimit allows; jql.Compile matches it with errors.As to surface
// the typed OrderbyMaxLimit error kind.
type OrderbyLimitError struct {
	Count, Limit int
}

func (e *OrderbyLimitError) Error() string {
	return fmt.Sprintf("order-by names %d paths, limit is %d", e.Count, e.Limit)
}

func (ctx *lowerCtx) lowerOrderBy(ob *OrderByNode) (int, error) {
	if len(ob.Paths) > OrderbyLimit {
		return 0, &OrderbyLimitError{Count: len(ob.Paths), Limit: OrderbyLimit}
	}
	clauses := make([]queryast.OrderClause, len(ob.Paths))
	for i, p := range ob.Paths {
		clauses[i] = queryast.OrderClause{Path: joinPath(p.Segments), Desc: ob.Dir == "desc"}
	}
	return ctx.arena.Alloc(queryast.Node{Kind: queryast.KindOrderBy, OrderPaths: clauses}), nil
}

func parsePatchOps(v any) ([]queryast.PatchOp, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("apply patch body must be a JSON array of operations")
	}
	ops := make([]queryast.PatchOp, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("apply patch operation must be a JSON object")
		}
		op, _ := m["op"].(string)
		path, _ := m["path"].(string)
		from, _ := m["from"].(string)
		var val *queryast.JSONNode
		if raw, ok := m["value"]; ok {
			val = &queryast.JSONNode{Value: raw}
		}
		ops = append(ops, queryast.PatchOp{Op: op, Path: path, From: from, Value: val})
	}
	return ops, nil
}
