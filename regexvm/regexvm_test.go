package regexvm

import "testing"

func mustCompile(t *testing.T, pattern string) *Program {
	t.Helper()
	p, err := Compile(pattern)
	if err != nil {
		t.Fatalf("Compile(%q): %v", pattern, err)
	}
	return p
}

func TestLiteralMatch(t *testing.T) {
	p := mustCompile(t, "abc")
	m := p.Exec([]byte("abcdef"))
	if !m.Matched || m.End != 3 {
		t.Fatalf("got %+v, want matched prefix of length 3", m)
	}
}

func TestLiteralNoMatch(t *testing.T) {
	p := mustCompile(t, "abc")
	m := p.Exec([]byte("xyz"))
	if m.Matched {
		t.Fatalf("got %+v, want no match", m)
	}
}

func TestAlternation(t *testing.T) {
	p := mustCompile(t, "cat|dog")
	for _, in := range []string{"cat", "dog"} {
		m := p.Exec([]byte(in))
		if !m.Matched || m.End != len(in) {
			t.Errorf("Exec(%q) = %+v, want full match", in, m)
		}
	}
	m := p.Exec([]byte("bird"))
	if m.Matched {
		t.Errorf("Exec(bird) = %+v, want no match", m)
	}
}

func TestGreedyStar(t *testing.T) {
	p := mustCompile(t, "a*")
	m := p.Exec([]byte("aaab"))
	if !m.Matched || m.End != 3 {
		t.Fatalf("got %+v, want greedy match of length 3", m)
	}
}

func TestLazyStar(t *testing.T) {
	p := mustCompile(t, "a*?")
	m := p.Exec([]byte("aaab"))
	if !m.Matched || m.End != 0 {
		t.Fatalf("got %+v, want lazy match of length 0", m)
	}
}

func TestPlusRequiresOne(t *testing.T) {
	p := mustCompile(t, "a+")
	if m := p.Exec([]byte("b")); m.Matched {
		t.Fatalf("got %+v, want no match (plus requires at least one)", m)
	}
	m := p.Exec([]byte("aab"))
	if !m.Matched || m.End != 2 {
		t.Fatalf("got %+v, want greedy match of length 2", m)
	}
}

func TestOptional(t *testing.T) {
	p := mustCompile(t, "colou?r")
	for _, in := range []string{"color", "colour"} {
		m := p.Exec([]byte(in))
		if !m.Matched || m.End != len(in) {
			t.Errorf("Exec(%q) = %+v, want full match", in, m)
		}
	}
}

func TestAnyDot(t *testing.T) {
	p := mustCompile(t, "a.c")
	m := p.Exec([]byte("aXc"))
	if !m.Matched || m.End != 3 {
		t.Fatalf("got %+v, want match of length 3", m)
	}
}

func TestCharClass(t *testing.T) {
	p := mustCompile(t, "[a-cA-C]+")
	m := p.Exec([]byte("aBc!"))
	if !m.Matched || m.End != 3 {
		t.Fatalf("got %+v, want match of length 3", m)
	}
}

func TestNegatedCharClass(t *testing.T) {
	p := mustCompile(t, "[^0-9]+")
	m := p.Exec([]byte("abc123"))
	if !m.Matched || m.End != 3 {
		t.Fatalf("got %+v, want match of length 3", m)
	}
}

func TestDigitShorthand(t *testing.T) {
	p := mustCompile(t, `\d+`)
	m := p.Exec([]byte("123abc"))
	if !m.Matched || m.End != 3 {
		t.Fatalf("got %+v, want match of length 3", m)
	}
}

func TestNonDigitShorthand(t *testing.T) {
	p := mustCompile(t, `\D+`)
	m := p.Exec([]byte("abc123"))
	if !m.Matched || m.End != 3 {
		t.Fatalf("got %+v, want match of length 3", m)
	}
}

func TestWordShorthand(t *testing.T) {
	p := mustCompile(t, `\w+`)
	m := p.Exec([]byte("foo_1 bar"))
	if !m.Matched || m.End != 5 {
		t.Fatalf("got %+v, want match of length 5", m)
	}
}

func TestWhitespaceShorthand(t *testing.T) {
	p := mustCompile(t, `a\s+b`)
	m := p.Exec([]byte("a   b"))
	if !m.Matched || m.End != 5 {
		t.Fatalf("got %+v, want match of length 5", m)
	}
}

func TestSubmatchBrackets(t *testing.T) {
	p := mustCompile(t, `{\w+}@{\w+}`)
	m := p.Exec([]byte("alice@example"))
	if !m.Matched {
		t.Fatalf("got %+v, want match", m)
	}
	if p.NumSub != 2 {
		t.Fatalf("NumSub = %d, want 2", p.NumSub)
	}
	if m.Sub[0] != [2]int{0, 5} {
		t.Errorf("Sub[0] = %v, want [0 5]", m.Sub[0])
	}
	if m.Sub[1] != [2]int{6, 13} {
		t.Errorf("Sub[1] = %v, want [6 13]", m.Sub[1])
	}
}

func TestGroupingDoesNotRecordSubmatch(t *testing.T) {
	p := mustCompile(t, `(ab)+`)
	if p.NumSub != 0 {
		t.Fatalf("NumSub = %d, want 0 for non-capturing group", p.NumSub)
	}
	m := p.Exec([]byte("ababab"))
	if !m.Matched || m.End != 6 {
		t.Fatalf("got %+v, want match of length 6", m)
	}
}

func TestAnchorEndStrippedAndFlagged(t *testing.T) {
	p := mustCompile(t, "abc$")
	if !p.AnchorEnd {
		t.Fatal("expected AnchorEnd to be set")
	}
	m := p.Exec([]byte("abcdef"))
	if !m.Matched || m.End != 3 {
		t.Fatalf("got %+v, want prefix match of length 3 (caller checks anchoring)", m)
	}
	full := p.Exec([]byte("abc"))
	if !full.Matched || full.End != len("abc") {
		t.Fatalf("got %+v, want full match satisfying $ anchoring", full)
	}
}

func TestLeadingCaretStripped(t *testing.T) {
	p := mustCompile(t, "^abc")
	m := p.Exec([]byte("abcdef"))
	if !m.Matched || m.End != 3 {
		t.Fatalf("got %+v, want match of length 3", m)
	}
}

func TestEscapedMetacharacters(t *testing.T) {
	p := mustCompile(t, `a\.b\*c`)
	m := p.Exec([]byte("a.b*c"))
	if !m.Matched || m.End != 5 {
		t.Fatalf("got %+v, want literal match of length 5", m)
	}
}

func TestDeterministicAcrossRuns(t *testing.T) {
	p := mustCompile(t, `{\d+}-{\w+}`)
	input := []byte("42-foo")
	first := p.Exec(input)
	for i := 0; i < 5; i++ {
		m := p.Exec(input)
		if m.Matched != first.Matched || m.End != first.End {
			t.Fatalf("run %d: got %+v, want %+v", i, m, first)
		}
		for j := range m.Sub {
			if m.Sub[j] != first.Sub[j] {
				t.Fatalf("run %d: Sub[%d] = %v, want %v", i, j, m.Sub[j], first.Sub[j])
			}
		}
	}
}

func TestDanglingQuantifierRejected(t *testing.T) {
	if _, err := Compile("*abc"); err == nil {
		t.Fatal("expected an error for a leading quantifier")
	}
}

func TestUnterminatedGroupRejected(t *testing.T) {
	if _, err := Compile("(abc"); err == nil {
		t.Fatal("expected an error for an unterminated group")
	}
}

func TestUnterminatedClassRejected(t *testing.T) {
	if _, err := Compile("[abc"); err == nil {
		t.Fatal("expected an error for an unterminated class")
	}
}
