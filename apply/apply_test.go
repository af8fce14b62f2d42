package apply

import (
	"reflect"
	"testing"

	"github.com/ejdbq/jql/internal/jsonutil"
	"github.com/ejdbq/jql/queryast"
	"github.com/ejdbq/jql/queryparse"
)

func mustParse(t *testing.T, query string) *queryparse.LowerResult {
	t.Helper()
	lr, err := queryparse.Parse(query)
	if err != nil {
		t.Fatalf("Parse(%q): %v", query, err)
	}
	return lr
}

func clauseNodes(lr *queryparse.LowerResult) []*queryast.Node {
	out := make([]*queryast.Node, len(lr.Clauses))
	for i, idx := range lr.Clauses {
		out[i] = lr.Arena.Node(idx)
	}
	return out
}

func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := jsonutil.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestProjectionWorkedScenario(t *testing.T) {
	lr := mustParse(t, `/** | /foo/bar + /foo/baz/zaz - /*/bar`)
	doc := decodeJSON(t, `{"foo":{"bar":22,"baz":{"gaz":444,"zaz":555}}}`)

	out, err := Project(lr.Arena, doc, clauseNodes(lr))
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	want := decodeJSON(t, `{"foo":{"baz":{"zaz":555}}}`)
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("Project result = %#v, want %#v", out, want)
	}
}

func TestProjectionNamedAndPositionalPlaceholderSegments(t *testing.T) {
	lr := mustParse(t, `/* | /:name + /:?`)
	doc := decodeJSON(t, `{"foo":1,"bar":2,"baz":3}`)

	name, ok := lr.Arena.FindPlaceholder("name")
	if !ok {
		t.Fatal("expected a placeholder named \"name\"")
	}
	name.Value = queryast.PlaceholderValue{Kind: queryast.LitStr, Str: lr.Arena.Intern("foo")}
	name.Bound = true

	pos, ok := lr.Arena.FindPositionalPlaceholder(0)
	if !ok {
		t.Fatal("expected a positional placeholder at index 0")
	}
	pos.Value = queryast.PlaceholderValue{Kind: queryast.LitStr, Str: lr.Arena.Intern("baz")}
	pos.Bound = true

	out, err := Project(lr.Arena, doc, clauseNodes(lr))
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	want := decodeJSON(t, `{"foo":1,"baz":3}`)
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("Project result = %#v, want %#v", out, want)
	}
}

func TestProjectionIdempotent(t *testing.T) {
	lr := mustParse(t, `/** | /foo/bar + /foo/baz/zaz - /*/bar`)
	doc := decodeJSON(t, `{"foo":{"bar":22,"baz":{"gaz":444,"zaz":555}}}`)

	once, err := Project(lr.Arena, doc, clauseNodes(lr))
	if err != nil {
		t.Fatalf("Project (first pass): %v", err)
	}
	twice, err := Project(lr.Arena, once, clauseNodes(lr))
	if err != nil {
		t.Fatalf("Project (second pass): %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("projection not idempotent: %#v vs %#v", once, twice)
	}
}

func TestProjectionExcludeAllShortCircuits(t *testing.T) {
	lr := mustParse(t, `/** | /** - /**`)
	doc := decodeJSON(t, `{"a":1}`)
	out, err := Project(lr.Arena, doc, clauseNodes(lr))
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if m, ok := out.(map[string]any); !ok || len(m) != 0 {
		t.Fatalf("expected empty object, got %#v", out)
	}
}

func TestApplyMergeCommutesOnDisjointKeys(t *testing.T) {
	lrSeq := mustParse(t, `/** | apply json {"a":1} apply json {"b":2}`)
	lrOne := mustParse(t, `/** | apply json {"a":1,"b":2}`)
	doc := decodeJSON(t, `{}`)

	seq, err := Apply(lrSeq.Arena, doc, clauseNodes(lrSeq), nil)
	if err != nil {
		t.Fatalf("Apply sequential: %v", err)
	}
	one, err := Apply(lrOne.Arena, doc, clauseNodes(lrOne), nil)
	if err != nil {
		t.Fatalf("Apply combined: %v", err)
	}
	if !reflect.DeepEqual(seq.Doc, one.Doc) {
		t.Fatalf("merge not commutative: %#v vs %#v", seq.Doc, one.Doc)
	}
}

func TestApplyPatchAddReplaceRemove(t *testing.T) {
	lr := mustParse(t, `/** | apply patch [{"op":"add","path":"/b","value":2},{"op":"replace","path":"/a","value":99},{"op":"remove","path":"/c"}]`)
	doc := decodeJSON(t, `{"a":1,"c":3}`)

	res, err := Apply(lr.Arena, doc, clauseNodes(lr), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := decodeJSON(t, `{"a":99,"b":2}`)
	if !reflect.DeepEqual(res.Doc, want) {
		t.Fatalf("Apply result = %#v, want %#v", res.Doc, want)
	}
}

func TestApplyDeleteClause(t *testing.T) {
	lr := mustParse(t, `/** | del`)
	doc := decodeJSON(t, `{"a":1}`)
	res, err := Apply(lr.Arena, doc, clauseNodes(lr), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Deleted {
		t.Fatal("expected Deleted to be true")
	}
}

func TestUpsertInsertsOnlyWhenAbsent(t *testing.T) {
	lr := mustParse(t, `/** | upsert json {"a":10,"b":20}`)
	doc := decodeJSON(t, `{"a":1}`)
	res, err := Apply(lr.Arena, doc, clauseNodes(lr), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := decodeJSON(t, `{"a":1,"b":20}`)
	if !reflect.DeepEqual(res.Doc, want) {
		t.Fatalf("Upsert result = %#v, want %#v", res.Doc, want)
	}
}
