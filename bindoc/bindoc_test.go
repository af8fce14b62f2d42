package bindoc

import (
	"bytes"
	"testing"
)

func TestWriterReaderScalarRoundTrip(t *testing.T) {
	w := NewObject()
	must(t, w.Set("n", nil))
	must(t, w.Set("t", true))
	must(t, w.Set("f", false))
	must(t, w.Set("tiny", int64(7)))
	must(t, w.Set("neg", int64(-200)))
	must(t, w.Set("big", int64(1<<40)))
	must(t, w.Set("pi", 3.5))
	must(t, w.Set("name", "hello"))
	must(t, w.Set("blob", []byte{1, 2, 3}))

	buf, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := Open(buf, TypeObject)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Len() != 9 {
		t.Fatalf("Len = %d, want 9", r.Len())
	}

	cases := []struct {
		key  string
		want any
	}{
		{"n", nil},
		{"t", true},
		{"f", false},
		{"tiny", int64(7)},
		{"neg", int64(-200)},
		{"big", int64(1 << 40)},
		{"pi", 3.5},
		{"name", "hello"},
	}
	for _, c := range cases {
		el, ok, err := r.Get(c.key)
		if err != nil {
			t.Fatalf("Get(%q): %v", c.key, err)
		}
		if !ok {
			t.Fatalf("Get(%q): not found", c.key)
		}
		got := el.AsAny()
		if got != c.want {
			t.Errorf("Get(%q) = %#v, want %#v", c.key, got, c.want)
		}
	}

	el, ok, err := r.Get("blob")
	if err != nil || !ok {
		t.Fatalf("Get(blob): ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(el.Blob, []byte{1, 2, 3}) {
		t.Errorf("blob = %v, want [1 2 3]", el.Blob)
	}
}

func TestWriterReaderNestedContainers(t *testing.T) {
	inner := NewList()
	must(t, inner.Append(int64(1)))
	must(t, inner.Append(int64(2)))
	must(t, inner.Append(int64(3)))
	if _, err := inner.Finish(); err != nil {
		t.Fatalf("inner.Finish: %v", err)
	}

	outer := NewObject()
	must(t, outer.Set("items", inner))
	must(t, outer.Set("tag", "x"))
	buf, err := outer.Finish()
	if err != nil {
		t.Fatalf("outer.Finish: %v", err)
	}

	r, err := Open(buf, TypeObject)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	el, ok, err := r.Get("items")
	if err != nil || !ok {
		t.Fatalf("Get(items): ok=%v err=%v", ok, err)
	}
	if el.Type != TypeList {
		t.Fatalf("items type = %s, want list", el.Type)
	}
	for i := 0; i < 3; i++ {
		sub, err := el.Sub.Index(i)
		if err != nil {
			t.Fatalf("Index(%d): %v", i, err)
		}
		if sub.I64 != int64(i+1) {
			t.Errorf("items[%d] = %d, want %d", i, sub.I64, i+1)
		}
	}
}

// A container's sub-view must span exactly its own bytes: decoding a
// nested element must not touch bytes belonging to a sibling element.
func TestSubViewsAreDisjoint(t *testing.T) {
	a := NewObject()
	must(t, a.Set("v", int64(111)))
	bW := NewObject()
	must(t, bW.Set("v", int64(222)))
	if _, err := a.Finish(); err != nil {
		t.Fatalf("Finish a: %v", err)
	}
	if _, err := bW.Finish(); err != nil {
		t.Fatalf("Finish b: %v", err)
	}

	root := NewList()
	must(t, root.Append(a))
	must(t, root.Append(bW))
	buf, err := root.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := Open(buf, TypeList)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	e0, err := r.Index(0)
	if err != nil {
		t.Fatalf("Index(0): %v", err)
	}
	e1, err := r.Index(1)
	if err != nil {
		t.Fatalf("Index(1): %v", err)
	}

	s0, s1 := e0.Sub, e1.Sub
	if bytes.Equal(s0.Bytes(), s1.Bytes()) {
		t.Fatal("sub-views should not be byte-identical")
	}

	v0, _, err := s0.Get("v")
	if err != nil {
		t.Fatalf("s0.Get: %v", err)
	}
	v1, _, err := s1.Get("v")
	if err != nil {
		t.Fatalf("s1.Get: %v", err)
	}
	if v0.I64 != 111 || v1.I64 != 222 {
		t.Errorf("got v0=%d v1=%d, want 111, 222", v0.I64, v1.I64)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	w := NewList()
	must(t, w.Append(int64(1)))
	b1, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	b2, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish (2nd): %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatal("repeated Finish should return identical bytes")
	}
}

func TestLargeContainerUsesWideHeader(t *testing.T) {
	w := NewList()
	for i := 0; i < 200; i++ {
		must(t, w.Append(int64(i)))
	}
	buf, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if buf[1]&0x80 == 0 {
		t.Fatal("expected wide size field for a >127-element container")
	}
	r, err := Open(buf, TypeList)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Len() != 200 {
		t.Fatalf("Len = %d, want 200", r.Len())
	}
	e, err := r.Index(199)
	if err != nil {
		t.Fatalf("Index(199): %v", err)
	}
	if e.I64 != 199 {
		t.Errorf("Index(199) = %d, want 199", e.I64)
	}
}

func TestOpenRejectsWrongExpectedType(t *testing.T) {
	w := NewList()
	must(t, w.Append(int64(1)))
	buf, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := Open(buf, TypeObject); err == nil {
		t.Fatal("expected error opening a list as an object")
	}
	if _, err := Open(buf, AnyType); err != nil {
		t.Fatalf("Open with AnyType: %v", err)
	}
}

func TestOpenRejectsTruncatedBuffer(t *testing.T) {
	w := NewList()
	must(t, w.Append(int64(1)))
	buf, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := Open(buf[:len(buf)-1], TypeList); err == nil {
		t.Fatal("expected error opening a truncated buffer")
	}
}

func TestCircularSelfAppendRejected(t *testing.T) {
	w := NewList()
	if err := w.Append(w); err != ErrCircularRef {
		t.Fatalf("Append(self) err = %v, want ErrCircularRef", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	src := []byte(`{"foo":{"bar":22},"tags":["a","b"],"ratio":1.5,"n":null}`)
	buf, err := EncodeJSON(src)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	r, err := Open(buf, TypeObject)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, err := DecodeJSON(r)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("DecodeJSON returned %T, want map[string]any", v)
	}
	foo, ok := m["foo"].(map[string]any)
	if !ok {
		t.Fatalf("foo = %#v, want nested map", m["foo"])
	}
	if foo["bar"] != int64(22) {
		t.Errorf("foo.bar = %#v, want int64(22)", foo["bar"])
	}
	tags, ok := m["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("tags = %#v, want [a b]", m["tags"])
	}
	if m["ratio"] != 1.5 {
		t.Errorf("ratio = %#v, want 1.5", m["ratio"])
	}
	if m["n"] != nil {
		t.Errorf("n = %#v, want nil", m["n"])
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
