// Package matcher walks a bindoc document depth-first against a
// queryast.Arena, evaluating path chains, predicates, and logical joins
// without ever decoding the document into a Go tree.
package matcher

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ejdbq/jql/bindoc"
	"github.com/ejdbq/jql/internal/metrics"
	"github.com/ejdbq/jql/queryast"
)

// Matcher evaluates one query's AST against successive documents. It
// holds no per-document state itself — that lives on the arena's nodes
// and is cleared by ResetCursors between documents.
type Matcher struct {
	Arena   *queryast.Arena
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// New builds a Matcher. logger and rec may be nil.
func New(arena *queryast.Arena, logger *zap.Logger, rec *metrics.Recorder) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{Arena: arena, Logger: logger, Metrics: rec}
}

// Matched evaluates the expression chain rooted at rootExpr against
// doc, resetting cursor state first. Document corruption encountered
// mid-walk is logged, counted, and treated as a non-match rather than
// returned as an error.
func (m *Matcher) Matched(rootExpr int, doc *bindoc.Reader) (bool, error) {
	start := time.Now()
	m.Arena.ResetCursors()
	ok, err := m.evalExpr(rootExpr, doc)
	m.Metrics.ObserveMatchDuration(time.Since(start).Seconds())
	if err != nil {
		return false, err
	}
	m.Metrics.RecordMatch(ok)
	return ok, nil
}

// evalExpr walks the expression-node sibling chain starting at idx,
// combining each filter's result with the previous one via its Join,
// short-circuiting AND-false and OR-true chains.
func (m *Matcher) evalExpr(idx int, doc *bindoc.Reader) (bool, error) {
	if idx < 0 {
		return false, nil
	}
	result := false
	first := true
	for idx != -1 {
		en := m.Arena.Node(idx)
		if !first {
			if en.Join == queryast.JoinAnd && !result {
				idx = en.Next
				continue
			}
			if en.Join == queryast.JoinOr && result {
				idx = en.Next
				continue
			}
		}

		fn := m.Arena.Node(en.Filter)
		fm, err := m.evalFilter(fn, doc)
		if err != nil {
			return false, err
		}
		if en.Negate {
			fm = !fm
		}
		en.Matched = fm

		if first {
			result = fm
			first = false
		} else if en.Join == queryast.JoinOr {
			result = result || fm
		} else {
			result = result && fm
		}
		idx = en.Next
	}
	return result, nil
}

// evalFilter evaluates one filter's path chain against doc, which is
// always the whole document at this level — filters always start
// matching at the document root. A single top-level `/*` or `/**` path
// is short-circuited per the documented external-interface behavior
// rather than derived from the general walk.
func (m *Matcher) evalFilter(fn *queryast.Node, doc *bindoc.Reader) (bool, error) {
	if len(fn.Paths) == 0 {
		return false, nil
	}
	if len(fn.Paths) == 1 {
		p := m.Arena.Node(fn.Paths[0])
		switch p.PathKind {
		case queryast.PathWildcardAny:
			return true, nil
		case queryast.PathWildcardOne:
			return doc.Len() > 0, nil
		}
	}
	return m.evalPath(fn.Paths, 0, doc)
}

// corrupt turns a bindoc.ErrMalformed into a logged, counted non-match;
// any other error still propagates.
func (m *Matcher) corrupt(err error) (bool, error) {
	if errors.Is(err, bindoc.ErrMalformed) {
		m.Logger.Warn("corrupt document region, treating as non-match", zap.Error(err))
		m.Metrics.RecordCorruptDocument()
		return false, nil
	}
	return false, err
}
