package matcher

import (
	"testing"

	"github.com/ejdbq/jql/bindoc"
	"github.com/ejdbq/jql/queryparse"
)

func mustDoc(t *testing.T, json string) *bindoc.Reader {
	t.Helper()
	buf, err := bindoc.EncodeJSON([]byte(json))
	if err != nil {
		t.Fatalf("EncodeJSON(%s): %v", json, err)
	}
	r, err := bindoc.Open(buf, bindoc.TypeObject)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func mustMatch(t *testing.T, query, docJSON string) bool {
	t.Helper()
	lr, err := queryparse.Parse(query)
	if err != nil {
		t.Fatalf("Parse(%q): %v", query, err)
	}
	doc := mustDoc(t, docJSON)
	m := New(lr.Arena, nil, nil)
	ok, err := m.Matched(lr.RootExpr, doc)
	if err != nil {
		t.Fatalf("Matched: %v", err)
	}
	return ok
}

func TestScenarioEqualityMatches(t *testing.T) {
	if !mustMatch(t, `/foo/[bar = 22]`, `{"foo":{"bar":22}}`) {
		t.Fatal("expected match")
	}
}

func TestScenarioInequalityMismatches(t *testing.T) {
	if mustMatch(t, `/foo/[bar != 22]`, `{"foo":{"bar":22}}`) {
		t.Fatal("expected no match")
	}
}

func TestScenarioInOperatorOnArrayElements(t *testing.T) {
	if !mustMatch(t, `/tags/[** in ["bar","baz"]]`, `{"tags":["bar","foo"]}`) {
		t.Fatal("expected match")
	}
}

func TestScenarioNiOperator(t *testing.T) {
	if !mustMatch(t, `/[foo ni 2]`, `{"foo":[1,2]}`) {
		t.Fatal("expected match")
	}
}

func TestWildcardOneMatchesNonEmptyObject(t *testing.T) {
	if !mustMatch(t, `/*`, `{"a":1}`) {
		t.Fatal("expected /* to match a non-empty object")
	}
	if mustMatch(t, `/*`, `{}`) {
		t.Fatal("expected /* not to match an empty object")
	}
}

func TestWildcardAnyMatchesEverything(t *testing.T) {
	if !mustMatch(t, `/**`, `{}`) {
		t.Fatal("expected /** to match even an empty document")
	}
	if !mustMatch(t, `/**`, `{"a":{"b":1}}`) {
		t.Fatal("expected /** to match a nested document")
	}
}

func TestAndJoinRequiresBothFilters(t *testing.T) {
	doc := `{"foo":1,"bar":2}`
	if !mustMatch(t, `/[foo = 1] and /[bar = 2]`, doc) {
		t.Fatal("expected and-join to match")
	}
	if mustMatch(t, `/[foo = 1] and /[bar = 99]`, doc) {
		t.Fatal("expected and-join to fail on second filter")
	}
}

func TestOrJoinMatchesEitherFilter(t *testing.T) {
	doc := `{"foo":1,"bar":2}`
	if !mustMatch(t, `/[foo = 99] or /[bar = 2]`, doc) {
		t.Fatal("expected or-join to match on second filter")
	}
}

func TestNegationInvertsFilterResult(t *testing.T) {
	doc := `{"foo":1}`
	if mustMatch(t, `not /[foo = 1]`, doc) {
		t.Fatal("expected negation to invert a true filter")
	}
	if !mustMatch(t, `not /[foo = 99]`, doc) {
		t.Fatal("expected negation to invert a false filter")
	}
}

func TestRegexOperator(t *testing.T) {
	if !mustMatch(t, `/[name re "al.*"]`, `{"name":"alice"}`) {
		t.Fatal("expected regex match")
	}
	if mustMatch(t, `/[name re "al.*"]`, `{"name":"bob"}`) {
		t.Fatal("expected regex mismatch")
	}
}

func TestCorruptDocumentIsNonMatchNotError(t *testing.T) {
	buf, err := bindoc.EncodeJSON([]byte(`{"foo":1}`))
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	// Truncate past the header so Iter discovers the corruption.
	truncated := buf[:len(buf)-2]
	doc, err := bindoc.Open(truncated, bindoc.AnyType)
	if err != nil {
		// Open itself rejected it; nothing further to exercise.
		return
	}
	lr, err := queryparse.Parse(`/[foo = 1]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := New(lr.Arena, nil, nil)
	ok, err := m.Matched(lr.RootExpr, doc)
	if err != nil {
		t.Fatalf("Matched should absorb corruption, got error: %v", err)
	}
	if ok {
		t.Fatal("expected corrupt document to be treated as non-match")
	}
}
