// Package jql is the public facade over the query engine: parsing,
// compiling, binding placeholders, matching documents, and applying or
// projecting them. Everything else (bindoc, queryast, queryparse,
// matcher, apply) is an implementation detail a caller shouldn't need to
// import directly.
package jql

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ejdbq/jql/apply"
	"github.com/ejdbq/jql/bindoc"
	"github.com/ejdbq/jql/internal/metrics"
	"github.com/ejdbq/jql/matcher"
	"github.com/ejdbq/jql/queryast"
	"github.com/ejdbq/jql/queryparse"
)

// Mode flags tune Compile's behavior on a parse failure.
type Mode uint8

const (
	// KeepQueryOnParseError returns a non-nil, inert *Query (whose Error
	// method reports the failure) instead of a nil *Query alongside the
	// error, for callers that want to keep a slot in a batch aligned by
	// position even when one query in it fails to parse.
	KeepQueryOnParseError Mode = 1 << iota
	// SilentOnParseError suppresses the warning-level log Compile would
	// otherwise emit for a parse failure.
	SilentOnParseError
)

// Query is one compiled, independently placeholder-bindable query. The
// zero value is not usable; obtain one from Compile.
type Query struct {
	runID      uuid.UUID
	collection string
	anchor     string
	arena      *queryast.Arena
	rootExpr   int
	projection []*queryast.Node
	apply      []*queryast.Node
	orderBy    []queryast.OrderClause
	skip       int
	skipSet    bool
	limit      int
	limitSet   bool
	parseErr   *Error

	m       *matcher.Matcher
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// Compile parses text and lowers it into a runnable Query. collection
// names the collection the query runs against; if empty, the query's
// own `@alias` anchor (if any) supplies it. rec and logger may be nil.
func Compile(collection, text string, mode Mode, logger *zap.Logger, rec *metrics.Recorder) (*Query, error) {
	runID := uuid.New()
	if logger == nil {
		logger = zap.NewNop()
	}

	lr, err := queryparse.Parse(text)
	if err != nil {
		kind := QueryParse
		var obErr *queryparse.OrderbyLimitError
		if errors.As(err, &obErr) {
			kind = OrderbyMaxLimit
		}
		jerr := newError(kind, "%s", err.Error())
		if mode&SilentOnParseError == 0 {
			logger.Warn("query compile failed",
				zap.String("run_id", runID.String()),
				zap.String("kind", kind.String()),
				zap.Error(err))
		}
		if mode&KeepQueryOnParseError != 0 {
			return &Query{runID: runID, parseErr: jerr, logger: logger, metrics: rec}, jerr
		}
		return nil, jerr
	}

	q := &Query{
		runID:      runID,
		collection: collection,
		anchor:     lr.Anchor,
		arena:      lr.Arena,
		rootExpr:   lr.RootExpr,
		skip:       -1,
		limit:      -1,
		logger:     logger,
		metrics:    rec,
	}
	for _, idx := range lr.Clauses {
		n := lr.Arena.Node(idx)
		switch n.Kind {
		case queryast.KindProjection:
			q.projection = append(q.projection, n)
		case queryast.KindApply:
			q.apply = append(q.apply, n)
		case queryast.KindOrderBy:
			q.orderBy = n.OrderPaths
		case queryast.KindSkipLimit:
			if n.IsLimit {
				if q.limitSet {
					return nil, newError(LimitAlreadySet, "limit clause repeated")
				}
				q.limit, q.limitSet = n.Count, true
			} else {
				if q.skipSet {
					return nil, newError(SkipAlreadySet, "skip clause repeated")
				}
				q.skip, q.skipSet = n.Count, true
			}
		}
	}

	if q.collection == "" && q.anchor == "" {
		return nil, newError(NoCollection, "query names no collection and no anchor")
	}

	q.m = matcher.New(q.arena, logger.With(zap.String("run_id", runID.String())), rec)
	return q, nil
}

// RunID identifies this compiled query for log correlation: Compile's
// parse-failure warning and every log line the matcher emits while
// evaluating the query carry it as run_id.
func (q *Query) RunID() uuid.UUID { return q.runID }

// Error returns the parse failure this query was compiled with, or nil
// for a healthy query. Only populated when Compile was called with
// KeepQueryOnParseError and parsing failed.
func (q *Query) Error() error {
	if q.parseErr == nil {
		return nil
	}
	return q.parseErr
}

// Collection returns the collection the query runs against: the name
// passed to Compile, or its `@alias` anchor if none was passed.
func (q *Query) Collection() string {
	if q.collection != "" {
		return q.collection
	}
	return q.anchor
}

// FirstAnchor returns the query's own `@alias` anchor, "" if none.
func (q *Query) FirstAnchor() string { return q.anchor }

// HasApply reports whether the query carries any apply/upsert clause
// (excluding a bare delete).
func (q *Query) HasApply() bool {
	for _, n := range q.apply {
		if n.ApplyKind != queryast.ApplyDelete {
			return true
		}
	}
	return false
}

// HasApplyDelete reports whether the query carries a `del` clause.
func (q *Query) HasApplyDelete() bool {
	for _, n := range q.apply {
		if n.ApplyKind == queryast.ApplyDelete {
			return true
		}
	}
	return false
}

// HasProjection reports whether the query carries a projection clause.
func (q *Query) HasProjection() bool { return len(q.projection) > 0 }

// HasOrderBy reports whether the query carries an order-by clause.
func (q *Query) HasOrderBy() bool { return len(q.orderBy) > 0 }

// HasAggregateCount always reports false: this grammar has no
// count/aggregate production, so no query can ever request one. See
// DESIGN.md for the grounding of this decision.
func (q *Query) HasAggregateCount() bool { return false }

// Skip returns the skip clause's count and whether one was present.
func (q *Query) Skip() (int, bool) { return q.skip, q.skipSet }

// Limit returns the limit clause's count and whether one was present.
func (q *Query) Limit() (int, bool) { return q.limit, q.limitSet }

// OrderBy returns the order-by clause's path list, nil if none.
func (q *Query) OrderBy() []queryast.OrderClause { return q.orderBy }

// Matched reports whether doc satisfies the query's filter expression.
func (q *Query) Matched(doc *bindoc.Reader) (bool, error) {
	if q.parseErr != nil {
		return false, q.parseErr
	}
	return q.m.Matched(q.rootExpr, doc)
}

// ApplyResult is the outcome of ApplyAndProject.
type ApplyResult struct {
	Doc     any
	Deleted bool
}

// ApplyAndProject decodes doc, runs the query's apply/upsert/delete
// clauses (if any) and then its projection clause (if any), in that
// order. It returns (nil, nil) if the query has neither clause, since
// there is then nothing for the caller to do beyond Matched.
func (q *Query) ApplyAndProject(doc *bindoc.Reader) (*ApplyResult, error) {
	if q.parseErr != nil {
		return nil, q.parseErr
	}
	if len(q.apply) == 0 && len(q.projection) == 0 {
		return nil, nil
	}

	decoded, err := bindoc.DecodeJSON(doc)
	if err != nil {
		return nil, err
	}

	result := decoded
	if len(q.apply) > 0 {
		res, err := apply.Apply(q.arena, decoded, q.apply, q.metrics)
		if err != nil {
			return nil, err
		}
		if res.Deleted {
			return &ApplyResult{Deleted: true}, nil
		}
		result = res.Doc
	}

	if len(q.projection) > 0 {
		result, err = apply.Project(q.arena, result, q.projection)
		if err != nil {
			return nil, err
		}
	}

	return &ApplyResult{Doc: result}, nil
}
