package queryparse

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// QueryNode is the root of a parsed query: an optional collection alias,
// a first filter, any number of and/or-joined filters, and a trailing
// run of clauses (projection, apply, skip/limit, order-by).
type QueryNode struct {
	Pos     lexer.Position      `parser:""`
	Anchor  string              `parser:"(At @Ident)?"`
	First   *FilterNode         `parser:"@@"`
	Joins   []*JoinedFilterNode `parser:"@@*"`
	Clauses []*ClauseNode       `parser:"@@*"`
}

// JoinedFilterNode is one `and`/`or`-prefixed filter chained onto the
// query's first filter.
type JoinedFilterNode struct {
	Pos    lexer.Position `parser:""`
	Join   string         `parser:"@('and' | 'or')"`
	Filter *FilterNode    `parser:"@@"`
}

// FilterNode is an optionally negated run of path segments, e.g.
// `not /foo/[bar = 1]/baz`.
type FilterNode struct {
	Pos    lexer.Position `parser:""`
	Negate bool           `parser:"@'not'?"`
	Paths  []*PathNode    `parser:"(Slash @@)+"`
}

// PathNode is one path segment. Exactly one field is populated,
// representing the matched alternative.
type PathNode struct {
	Pos        lexer.Position `parser:""`
	PK         *PKRefNode     `parser:"  @@"`
	Predicate  *PredicateNode `parser:"| @@"`
	DoubleStar bool           `parser:"| @DStar"`
	SingleStar bool           `parser:"| @Star"`
	Field      string         `parser:"| @Ident"`
}

// PKRefNode matches `= literal`, a direct reference to a document's
// primary key.
type PKRefNode struct {
	Eq  string       `parser:"@OpEq"`
	Lit *LiteralNode `parser:"@@"`
}

// PredicateNode matches `[ key_pred op value_pred ]`.
type PredicateNode struct {
	Pos   lexer.Position `parser:""`
	LB    string         `parser:"LBracket"`
	Key   *KeyPredNode   `parser:"@@"`
	Op    string         `parser:"@(OpEq | OpNe | OpGe | OpLe | OpGt | OpLt | 'in' | 'ni' | 're')"`
	Value *LiteralNode   `parser:"@@"`
	RB    string         `parser:"RBracket"`
}

// KeyPredNode is the left-hand side of a predicate: a field name, a
// wildcard, or a nested bracket predicate over array elements
// (`[* op literal]`).
type KeyPredNode struct {
	Pos        lexer.Position     `parser:""`
	Nested     *NestedKeyPredNode `parser:"  @@"`
	DoubleStar bool               `parser:"| @DStar"`
	SingleStar bool               `parser:"| @Star"`
	Field      string             `parser:"| @Ident"`
}

// NestedKeyPredNode matches the doubly-bracketed array-element form
// `[* op literal]` used as a key_pred.
type NestedKeyPredNode struct {
	Pos   lexer.Position `parser:""`
	LB    string         `parser:"LBracket"`
	Star  string         `parser:"@Star"`
	Op    string         `parser:"@(OpEq | OpNe | OpGe | OpLe | OpGt | OpLt | 'in' | 'ni' | 're')"`
	Value *LiteralNode   `parser:"@@"`
	RB    string         `parser:"RBracket"`
}

// LiteralNode is a scalar or JSON-literal value. Exactly one field is
// populated. Bool is captured as the matched text ("true"/"false")
// rather than as a bool field, since participle's bool capture only
// records presence, not which alternative matched.
type LiteralNode struct {
	Pos         lexer.Position `parser:""`
	Number      *string        `parser:"  @Number"`
	Str         *string        `parser:"| @String"`
	Bool        *string        `parser:"| @('true' | 'false')"`
	Null        bool           `parser:"| @'null'"`
	Placeholder *string        `parser:"| @Placeholder"`
	JSONLit     *string        `parser:"| @JSONLit"`
}

// ClauseNode is one trailing clause. Exactly one field is populated.
type ClauseNode struct {
	Pos        lexer.Position        `parser:""`
	Projection *ProjectionClauseNode `parser:"  @@"`
	Apply      *ApplyClauseNode      `parser:"| @@"`
	Delete     *DeleteClauseNode     `parser:"| @@"`
	Upsert     *UpsertClauseNode     `parser:"| @@"`
	SkipLimit  *SkipLimitNode        `parser:"| @@"`
	OrderBy    *OrderByNode          `parser:"| @@"`
}

// ProjectionClauseNode matches `| path (('+' | '-') path)*`.
type ProjectionClauseNode struct {
	Pos   lexer.Position        `parser:""`
	First *ProjectionPathNode   `parser:"Pipe @@"`
	Rest  []*ProjectionTermNode `parser:"@@*"`
}

// ProjectionTermNode is one `+path` (include) or `-path` (exclude) term.
type ProjectionTermNode struct {
	Pos  lexer.Position      `parser:""`
	Op   string              `parser:"@(Plus | Minus)"`
	Path *ProjectionPathNode `parser:"@@"`
}

// ProjectionPathNode is a `/`-separated run of field names, wildcards, or
// placeholders, e.g. `/foo/*/bar`, `/**`, or `/:name` (resolved against
// the bound placeholder value when the projection is applied).
type ProjectionPathNode struct {
	Pos      lexer.Position `parser:""`
	Segments []string       `parser:"(Slash @(Ident | Star | DStar | Placeholder))+"`
}

// ApplyClauseNode matches `apply json JSONLit` or `apply patch JSONLit`,
// optionally preceded by `|`.
type ApplyClauseNode struct {
	Pos  lexer.Position `parser:""`
	Mode string         `parser:"Pipe? 'apply' @('json' | 'patch')"`
	Body string         `parser:"@JSONLit"`
}

// DeleteClauseNode matches the bare `del` clause, optionally preceded by `|`.
type DeleteClauseNode struct {
	Kw string `parser:"Pipe? @'del'"`
}

// UpsertClauseNode matches `upsert json JSONLit`, optionally preceded by `|`.
type UpsertClauseNode struct {
	Pos  lexer.Position `parser:""`
	Kw   string         `parser:"Pipe? 'upsert' 'json'"`
	Body string         `parser:"@JSONLit"`
}

// SkipLimitNode matches `skip N` or `limit N`, optionally preceded by `|`.
type SkipLimitNode struct {
	Pos   lexer.Position `parser:""`
	Kw    string         `parser:"Pipe? @('skip' | 'limit')"`
	Count string         `parser:"@Number"`
}

// OrderByNode matches `(asc|desc) path (',' path)*`, optionally preceded
// by `|`.
type OrderByNode struct {
	Pos   lexer.Position        `parser:""`
	Dir   string                `parser:"Pipe? @('asc' | 'desc')"`
	Paths []*ProjectionPathNode `parser:"@@ (Comma @@)*"`
}

// NewParser builds a participle parser for the query grammar.
// UseLookahead(MaxLookahead) enables full backtracking: PathNode and
// KeyPredNode alternatives share prefixes that only resolve once the
// parser sees past the shared tokens.
func NewParser() (*participle.Parser[QueryNode], error) {
	return participle.Build[QueryNode](
		participle.Lexer(queryLexer),
		participle.Unquote("String"),
		participle.Elide("whitespace"),
		participle.UseLookahead(participle.MaxLookahead),
	)
}
