// Package queryast defines the query abstract syntax tree: an
// index-based arena of tagged nodes produced once by queryparse.Lower
// and then walked repeatedly, one document at a time, by the matcher.
package queryast

import "github.com/josharian/intern"

// Kind tags a Node's role in the tree.
type Kind int

const (
	KindExpression Kind = iota // one filter chain, joined to siblings by And/Or
	KindFilter                 // an optional anchor plus a sequence of path nodes
	KindPath                   // field | * | ** | predicate bracket | pk ref
	KindOp                     // operator + operands of a predicate
	KindLiteral                // number/string/bool/null/placeholder/json
	KindProjection              // one projection clause (include/exclude/all)
	KindApply                  // apply json | apply patch | del | upsert
	KindSkipLimit               // skip N / limit N
	KindOrderBy                // asc/desc path list
)

// Join is the logical connector between two sibling expression-nodes.
type Join int

const (
	JoinNone Join = iota
	JoinAnd
	JoinOr
)

// PathKind distinguishes the five path-node shapes the grammar allows.
type PathKind int

const (
	PathField PathKind = iota
	PathWildcardOne                      // '*'
	PathWildcardAny                      // '**'
	PathPredicate                        // '[' key_pred op value_pred ']'
	PathPK                               // '=' pk
)

// Op is a predicate or ordering operator.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNi
	OpRe
)

// LiteralKind tags which field of a Literal node is populated.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitBool
	LitI64
	LitF64
	LitStr
	LitJSON
	LitPlaceholder
	LitRegex
)

// ApplyKind distinguishes the clause variants that mutate a document.
type ApplyKind int

const (
	ApplyJSON ApplyKind = iota
	ApplyPatch
	ApplyDelete
	ApplyUpsert
)

// Node is one arena slot. Only the fields relevant to Kind are
// meaningful; the rest are zero. Children are referenced by index into
// the owning Arena, never by pointer, so the whole tree can be
// relocated, copied, or reset without chasing pointers.
type Node struct {
	Kind Kind

	// KindExpression
	Join     Join
	Negate   bool
	Filter   int // index of the KindFilter node, or -1
	Next     int // index of the next sibling KindExpression, or -1
	Matched  bool

	// KindFilter
	Anchor string // collection alias, "" if none
	Paths  []int  // indices of KindPath nodes, in order

	// KindPath
	PathKind PathKind
	Field    string // interned; valid for PathField
	KeyOp    int    // index of KindOp for key_pred (predicate paths), or -1
	ValOp    int    // index of KindOp for value_pred (predicate paths), or -1
	PKLit    int    // index of KindLiteral for '=' pk, or -1

	// matcher cursor state, reset per document visit
	LastLvl int
	Start   int
	End     int
	Matched2 bool // latched "matched" flag for this path node

	// KindOp
	Op      Op
	OpNeg   bool
	Operand int // index of KindLiteral

	// KindLiteral
	LitKind    LiteralKind
	Bool       bool
	I64        int64
	F64        float64
	Str        string
	JSON       *JSONNode
	Placeholder *Placeholder
	RegexSrc   string
	Regex      RegexHandle // lazily compiled, owned by this node

	// KindProjection
	ProjAll     bool
	ProjExclude bool
	ProjPath    string // glob-capable path, e.g. "/foo/*"

	// KindApply
	ApplyKind ApplyKind
	ApplyJSON *JSONNode
	ApplyOps  []PatchOp // for ApplyPatch

	// KindSkipLimit
	IsLimit bool
	Count   int

	// KindOrderBy
	OrderPaths []OrderClause
}

// OrderClause is one path in an order-by list.
type OrderClause struct {
	Path string
	Desc bool
}

// PatchOp is one RFC 6902 operation parsed out of an `apply patch` body.
type PatchOp struct {
	Op    string // add/remove/replace/copy/move/test
	Path  string
	From  string
	Value *JSONNode
}

// RegexHandle is the lazily compiled regex owned by an Op/Literal node;
// queryast does not import regexvm to avoid a dependency cycle with
// packages that need to inspect the AST without running it, so the
// compiled program is held as an opaque value set by whoever compiles
// it (the matcher).
type RegexHandle any

// Placeholder identifies an unbound slot: named (":foo") or positional
// (":?", resolved by occurrence order).
type Placeholder struct {
	Name      string // "" for positional
	Position  int    // occurrence index for positional placeholders
	Bound     bool
	Value     PlaceholderValue
}

// PlaceholderValue is the bound value of a Placeholder. Kind is one of:
// null, i64, f64, bool, borrowed string, borrowed JSON subtree, owned
// compiled regex.
type PlaceholderValue struct {
	Kind  LiteralKind
	Bool  bool
	I64   int64
	F64   float64
	Str   string
	JSON  *JSONNode
	Regex RegexHandle
}

// JSONNode is a decoded JSON literal/subtree, produced by sonic-decoding
// a stashed JSONLit substring (see queryparse's pre-pass).
type JSONNode struct {
	Value any // nil/bool/int64/float64/string/map[string]any/[]any
}

// Arena owns every Node for one query, plus its interned strings. A
// single reset (or simply letting the Arena go out of scope) disposes
// the whole tree.
type Arena struct {
	nodes   []Node
	strings map[string]string
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{strings: make(map[string]string)}
}

// Alloc appends n to the arena and returns its index.
func (a *Arena) Alloc(n Node) int {
	a.nodes = append(a.nodes, n)
	return len(a.nodes) - 1
}

// Node returns a pointer to the node at i, valid until the next Alloc
// (Alloc may reallocate the backing slice).
func (a *Arena) Node(i int) *Node {
	if i < 0 || i >= len(a.nodes) {
		return nil
	}
	return &a.nodes[i]
}

// Len returns the number of nodes allocated.
func (a *Arena) Len() int { return len(a.nodes) }

// Intern returns a's canonical copy of s, allocating one the first time
// s is seen. Field names repeat across the AST and bound placeholder
// values, so this keeps one backing array per distinct string instead of
// one per occurrence. Decoded documents are not interned.
func (a *Arena) Intern(s string) string {
	if v, ok := a.strings[s]; ok {
		return v
	}
	v := intern.String(s)
	a.strings[s] = v
	return v
}

// ResetCursors clears matcher cursor state on every node (last_lvl,
// start/end, matched latches) without touching placeholder bindings, so
// the same compiled query can be re-evaluated against successive
// documents.
func (a *Arena) ResetCursors() {
	for i := range a.nodes {
		n := &a.nodes[i]
		switch n.Kind {
		case KindExpression:
			n.Matched = false
		case KindPath:
			n.LastLvl = -1
			n.Start = -1
			n.End = IntMax
			n.Matched2 = false
		}
	}
}

// IntMax is the "gather any deeper level" sentinel for Node.End.
const IntMax = int(^uint(0) >> 1)

// FindPlaceholder returns the named placeholder's binding, if any literal
// node in the arena references one by that name. A projection path
// carries its placeholder segments (e.g. "/:name") as raw path text
// rather than evaluating a literal node of its own, but the lowering
// pass still registers a placeholder literal node for any such segment
// that doesn't already share a name with one a filter predicate (or an
// earlier projection term) registered, so a single FindPlaceholder
// lookup resolves every occurrence of that name throughout the query.
func (a *Arena) FindPlaceholder(name string) (*Placeholder, bool) {
	for i := range a.nodes {
		n := &a.nodes[i]
		if n.Kind == KindLiteral && n.LitKind == LitPlaceholder && n.Placeholder != nil && n.Placeholder.Name == name {
			return n.Placeholder, true
		}
	}
	return nil, false
}

// FindPositionalPlaceholder returns the nth (0-based) positional
// placeholder (":?") in occurrence order.
func (a *Arena) FindPositionalPlaceholder(position int) (*Placeholder, bool) {
	for i := range a.nodes {
		n := &a.nodes[i]
		if n.Kind == KindLiteral && n.LitKind == LitPlaceholder && n.Placeholder != nil &&
			n.Placeholder.Name == "" && n.Placeholder.Position == position {
			return n.Placeholder, true
		}
	}
	return nil, false
}

// Placeholders returns every distinct placeholder bound in the arena, in
// first-occurrence order, for callers that need to validate all of them
// were bound before running a query.
func (a *Arena) Placeholders() []*Placeholder {
	var out []*Placeholder
	seen := make(map[*Placeholder]bool)
	for i := range a.nodes {
		n := &a.nodes[i]
		if n.Kind == KindLiteral && n.LitKind == LitPlaceholder && n.Placeholder != nil && !seen[n.Placeholder] {
			seen[n.Placeholder] = true
			out = append(out, n.Placeholder)
		}
	}
	return out
}
