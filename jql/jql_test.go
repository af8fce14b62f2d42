package jql

import (
	"errors"
	"testing"

	"github.com/ejdbq/jql/bindoc"
)

func encodeDoc(t *testing.T, raw string) *bindoc.Reader {
	t.Helper()
	buf, err := bindoc.EncodeJSON([]byte(raw))
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	r, err := bindoc.Open(buf, bindoc.AnyType)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func TestCompileRequiresCollectionOrAnchor(t *testing.T) {
	_, err := Compile("", "/[foo = 1]", 0, nil, nil)
	var jerr *Error
	if !errors.As(err, &jerr) || jerr.Kind != NoCollection {
		t.Fatalf("Compile with no collection/anchor: got %v, want NoCollection", err)
	}
}

func TestCompileCollectionFromAnchor(t *testing.T) {
	q, err := Compile("", "@users /[foo = 1]", 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Collection() != "users" {
		t.Fatalf("Collection() = %q, want %q", q.Collection(), "users")
	}
	if q.FirstAnchor() != "users" {
		t.Fatalf("FirstAnchor() = %q, want %q", q.FirstAnchor(), "users")
	}
}

func TestCompileCollectionParamOverridesNoAnchor(t *testing.T) {
	q, err := Compile("widgets", "/[foo = 1]", 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Collection() != "widgets" {
		t.Fatalf("Collection() = %q, want %q", q.Collection(), "widgets")
	}
}

func TestCompileKeepQueryOnParseError(t *testing.T) {
	q, err := Compile("widgets", "/[foo ===]", KeepQueryOnParseError|SilentOnParseError, nil, nil)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if q == nil {
		t.Fatal("expected a non-nil Query with KeepQueryOnParseError")
	}
	var jerr *Error
	if !errors.As(q.Error(), &jerr) || jerr.Kind != QueryParse {
		t.Fatalf("Query.Error() = %v, want QueryParse", q.Error())
	}
	if _, err := q.Matched(nil); err == nil {
		t.Fatal("Matched on a failed query should error")
	}
}

func TestMetadataAccessors(t *testing.T) {
	q, err := Compile("widgets", `/[foo = 1] | /bar + /baz apply json {"x":1} skip 2 limit 10 asc /bar`, 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !q.HasProjection() {
		t.Error("HasProjection() = false, want true")
	}
	if !q.HasApply() {
		t.Error("HasApply() = false, want true")
	}
	if q.HasApplyDelete() {
		t.Error("HasApplyDelete() = true, want false")
	}
	if !q.HasOrderBy() {
		t.Error("HasOrderBy() = false, want true")
	}
	if q.HasAggregateCount() {
		t.Error("HasAggregateCount() = true, want false")
	}
	skip, ok := q.Skip()
	if !ok || skip != 2 {
		t.Errorf("Skip() = %d, %v; want 2, true", skip, ok)
	}
	limit, ok := q.Limit()
	if !ok || limit != 10 {
		t.Errorf("Limit() = %d, %v; want 10, true", limit, ok)
	}
}

func TestDuplicateSkipRejected(t *testing.T) {
	_, err := Compile("widgets", `/[foo = 1] | skip 1 skip 2`, 0, nil, nil)
	var jerr *Error
	if !errors.As(err, &jerr) || jerr.Kind != SkipAlreadySet {
		t.Fatalf("got %v, want SkipAlreadySet", err)
	}
}

func TestMatchedAgainstRealDocument(t *testing.T) {
	q, err := Compile("widgets", `/[foo = 1]`, 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	doc := encodeDoc(t, `{"foo":1}`)
	ok, err := q.Matched(doc)
	if err != nil {
		t.Fatalf("Matched: %v", err)
	}
	if !ok {
		t.Fatal("Matched = false, want true")
	}
}

func TestBindPlaceholderThenMatch(t *testing.T) {
	q, err := Compile("widgets", `/[foo = :val]`, 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := q.Unbound(); len(got) != 1 || got[0] != "val" {
		t.Fatalf("Unbound() = %v, want [val]", got)
	}
	if err := q.SetInt("val", 7); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if len(q.Unbound()) != 0 {
		t.Fatalf("Unbound() after bind = %v, want empty", q.Unbound())
	}
	doc := encodeDoc(t, `{"foo":7}`)
	ok, err := q.Matched(doc)
	if err != nil {
		t.Fatalf("Matched: %v", err)
	}
	if !ok {
		t.Fatal("Matched = false, want true")
	}
}

func TestBindUnknownPlaceholderErrors(t *testing.T) {
	q, err := Compile("widgets", `/[foo = 1]`, 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	err = q.SetInt("nope", 1)
	var jerr *Error
	if !errors.As(err, &jerr) || jerr.Kind != InvalidPlaceholder {
		t.Fatalf("got %v, want InvalidPlaceholder", err)
	}
}

func TestPlaceholderIsolationBetweenQueryInstances(t *testing.T) {
	const text = `/[foo = :val]`
	a, err := Compile("widgets", text, 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile a: %v", err)
	}
	b, err := Compile("widgets", text, 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile b: %v", err)
	}

	if err := a.SetInt("val", 7); err != nil {
		t.Fatalf("SetInt on a: %v", err)
	}
	if len(a.Unbound()) != 0 {
		t.Fatalf("a.Unbound() = %v, want empty", a.Unbound())
	}
	if got := b.Unbound(); len(got) != 1 || got[0] != "val" {
		t.Fatalf("b.Unbound() = %v, want [val]; binding a must not affect b", got)
	}

	doc7 := encodeDoc(t, `{"foo":7}`)
	if _, err := b.Matched(doc7); err == nil {
		t.Fatal("b.Matched with an unbound placeholder should error")
	}

	if err := b.SetInt("val", 9); err != nil {
		t.Fatalf("SetInt on b: %v", err)
	}
	ok, err := a.Matched(doc7)
	if err != nil {
		t.Fatalf("a.Matched: %v", err)
	}
	if !ok {
		t.Fatal("a.Matched = false, want true (a's binding of val=7 must be unaffected by b)")
	}
}

func TestApplyAndProjectNoneWhenNoClauses(t *testing.T) {
	q, err := Compile("widgets", `/[foo = 1]`, 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	doc := encodeDoc(t, `{"foo":1}`)
	res, err := q.ApplyAndProject(doc)
	if err != nil {
		t.Fatalf("ApplyAndProject: %v", err)
	}
	if res != nil {
		t.Fatalf("ApplyAndProject = %#v, want nil", res)
	}
}

func TestApplyAndProjectDelete(t *testing.T) {
	q, err := Compile("widgets", `/[foo = 1] | del`, 0, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	doc := encodeDoc(t, `{"foo":1}`)
	res, err := q.ApplyAndProject(doc)
	if err != nil {
		t.Fatalf("ApplyAndProject: %v", err)
	}
	if res == nil || !res.Deleted {
		t.Fatalf("ApplyAndProject = %#v, want Deleted=true", res)
	}
}
