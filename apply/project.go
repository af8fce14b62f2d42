// Package apply implements the two-pass projection marking algorithm
// and the apply/upsert/delete mutation forms that run against a decoded
// JSON document tree once a matcher has confirmed the document matches.
package apply

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/ejdbq/jql/queryast"
)

type projRule struct {
	glob    glob.Glob
	exclude bool
	all     bool
}

// resolvePathSegments rewrites any placeholder segment in segs using the
// arena's bound placeholders, joining the rest as-is. A named segment
// ("/:name") resolves by name; a positional segment is lowered to
// "/:?<N>", embedding the absolute occurrence index the placeholder was
// assigned at parse time, and resolves via that index rather than by
// name (positional placeholders always have an empty Name).
func resolvePathSegments(arena *queryast.Arena, rawPath string) (string, error) {
	segs := strings.Split(rawPath, "/")
	for i, s := range segs {
		if !strings.HasPrefix(s, ":") {
			continue
		}
		body := strings.TrimPrefix(s, ":")
		var (
			ph *queryast.Placeholder
			ok bool
		)
		if strings.HasPrefix(body, "?") {
			idx, err := strconv.Atoi(strings.TrimPrefix(body, "?"))
			if err != nil {
				return "", fmt.Errorf("apply: malformed positional projection placeholder %q", s)
			}
			ph, ok = arena.FindPositionalPlaceholder(idx)
		} else {
			ph, ok = arena.FindPlaceholder(body)
		}
		if !ok || !ph.Bound {
			return "", fmt.Errorf("apply: projection placeholder %q is unbound", s)
		}
		segs[i] = placeholderPathSegment(ph)
	}
	return strings.Join(segs, "/"), nil
}

func placeholderPathSegment(ph *queryast.Placeholder) string {
	switch ph.Value.Kind {
	case queryast.LitStr:
		return ph.Value.Str
	case queryast.LitI64:
		return strconv.FormatInt(ph.Value.I64, 10)
	default:
		return ""
	}
}

func compileProjection(arena *queryast.Arena, nodes []*queryast.Node) ([]projRule, error) {
	rules := make([]projRule, 0, len(nodes))
	for _, n := range nodes {
		p, err := resolvePathSegments(arena, n.ProjPath)
		if err != nil {
			return nil, err
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("apply: invalid projection path %q: %w", p, err)
		}
		rules = append(rules, projRule{glob: g, exclude: n.ProjExclude, all: n.ProjAll})
	}
	return rules, nil
}

// Project applies the projection clause's include/exclude path patterns
// to doc (a decoded JSON tree: nil/bool/int64/float64/string/
// map[string]any/[]any) and returns the projected tree.
//
// Patterns are matched against every node visited during a single
// descent; when more than one pattern matches the same path, the last
// one listed wins, matching the clause's left-to-right `+`/`-` reading.
// An `exclude-all` pattern anywhere short-circuits to an empty object.
// If no include pattern is present, everything survives except what an
// exclude pattern removes; if at least one include is present, a node
// only survives by being directly included, or by being an ancestor of
// something that is.
func Project(arena *queryast.Arena, doc any, nodes []*queryast.Node) (any, error) {
	rules, err := compileProjection(arena, nodes)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		if r.exclude && r.all {
			return map[string]any{}, nil
		}
	}
	hasInclude := false
	for _, r := range rules {
		if !r.exclude {
			hasInclude = true
			break
		}
	}

	marks := make(map[string]bool)
	var mark func(path string, v any)
	mark = func(path string, v any) {
		for _, r := range rules {
			if r.glob.Match(path) {
				marks[path] = !r.exclude
			}
		}
		switch t := v.(type) {
		case map[string]any:
			for k, cv := range t {
				mark(path+"/"+k, cv)
			}
		case []any:
			for i, cv := range t {
				mark(path+"/"+strconv.Itoa(i), cv)
			}
		}
	}
	mark("", doc)

	result, ok := prune(marks, hasInclude, "", doc)
	if !ok {
		return map[string]any{}, nil
	}
	return result, nil
}

func prune(marks map[string]bool, hasInclude bool, path string, v any) (any, bool) {
	if keep, ok := marks[path]; ok && !keep {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		anyKept := false
		for k, cv := range t {
			if pruned, ok := prune(marks, hasInclude, path+"/"+k, cv); ok {
				out[k] = pruned
				anyKept = true
			}
		}
		return keepContainer(marks, hasInclude, path, out, anyKept)
	case []any:
		out := make([]any, 0, len(t))
		anyKept := false
		for i, cv := range t {
			if pruned, ok := prune(marks, hasInclude, path+"/"+strconv.Itoa(i), cv); ok {
				out = append(out, pruned)
				anyKept = true
			}
		}
		return keepContainer(marks, hasInclude, path, out, anyKept)
	default:
		if keep, ok := marks[path]; ok {
			return v, keep
		}
		return v, !hasInclude
	}
}

func keepContainer[T any](marks map[string]bool, hasInclude bool, path string, out T, anyKept bool) (T, bool) {
	if keep, ok := marks[path]; ok {
		return out, keep
	}
	if !hasInclude || anyKept {
		return out, true
	}
	var zero T
	return zero, false
}
