// Package value implements the cross-type value sum and comparison
// contract that the matcher coerces both sides of every predicate into
// before comparing: BinDoc views and AST literals never compare raw
// bytes or mismatched Go types directly.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ejdbq/jql/bindoc"
)

// Kind tags which field of a Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindI64
	KindF64
	KindStr
	KindNode
	KindBinary
)

// Value is a tagged struct rather than an interface so comparisons stay
// allocation-free on the matcher's hot path.
type Value struct {
	Kind   Kind
	Bool   bool
	I64    int64
	F64    float64
	Str    string
	Node   any            // decoded JSON subtree: nil/bool/int64/float64/string/map[string]any/[]any
	Binary *bindoc.Reader // a BinDoc container view
}

func Null() Value            { return Value{Kind: KindNull} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value      { return Value{Kind: KindI64, I64: i} }
func Float(f float64) Value  { return Value{Kind: KindF64, F64: f} }
func String(s string) Value  { return Value{Kind: KindStr, Str: s} }
func NodeValue(v any) Value  { return Value{Kind: KindNode, Node: v} }
func BinaryValue(r *bindoc.Reader) Value {
	return Value{Kind: KindBinary, Binary: r}
}

// FromElement coerces a decoded bindoc.Element into the comparison sum
// type. A scalar Blob has no dedicated sum-type slot, since every value
// actually produced by EncodeJSON is one of the other classes; it is
// rendered as a string of its raw bytes so it still participates in
// string-side comparisons rather than always being unmatched.
func FromElement(e bindoc.Element) Value {
	switch e.Type {
	case bindoc.TypeNull:
		return Null()
	case bindoc.TypeTrue:
		return Bool(true)
	case bindoc.TypeFalse:
		return Bool(false)
	case bindoc.TypeInt8, bindoc.TypeInt16, bindoc.TypeInt32, bindoc.TypeInt64:
		return Int(e.I64)
	case bindoc.TypeFloat64:
		return Float(e.F64)
	case bindoc.TypeString:
		return String(e.Str)
	case bindoc.TypeBlob:
		return String(string(e.Blob))
	case bindoc.TypeList, bindoc.TypeMap, bindoc.TypeObject:
		return BinaryValue(e.Sub)
	default:
		return Null()
	}
}

// FromJSON coerces one element of a decoded JSON tree (nil, bool,
// int64, float64, string, map[string]any, []any) into the comparison
// sum type, the same way FromElement does for a bindoc.Element.
func FromJSON(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case string:
		return String(t)
	default:
		return NodeValue(v)
	}
}

// canonicalNumber renders a Value known to be numeric using the
// canonical formatter: integers as plain decimal, floats as a fixed-6
// representation with trailing zeros (and a trailing dot) trimmed. This
// gives a short, round-trip-stable string within 6 fractional digits,
// which is what mixed string/number comparisons are defined against.
func canonicalNumber(v Value) string {
	switch v.Kind {
	case KindI64:
		return strconv.FormatInt(v.I64, 10)
	case KindF64:
		s := strconv.FormatFloat(v.F64, 'f', 6, 64)
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
		return s
	default:
		return ""
	}
}

func isNumeric(k Kind) bool { return k == KindI64 || k == KindF64 }

func asFloat(v Value) float64 {
	if v.Kind == KindI64 {
		return float64(v.I64)
	}
	return v.F64
}

// Compare implements the cross-type comparison contract. ok reports
// whether the comparison applies at all; when ok is false the caller
// treats the predicate as non-matching without raising an error. When ok
// is true, cmp is -1/0/1 for less/equal/greater — except for the
// Node/Binary structural case, where only cmp == 0 (equal) versus
// cmp != 0 (not equal) is meaningful; no container ordering is defined.
func Compare(a, b Value) (cmp int, ok bool) {
	switch {
	case a.Kind == KindNull && b.Kind == KindNull:
		return 0, true
	case a.Kind == KindStr && b.Kind == KindNull:
		return strCompare(a.Str, ""), true
	case a.Kind == KindNull && b.Kind == KindStr:
		return strCompare("", b.Str), true
	case a.Kind == KindNull:
		return -1, true
	case b.Kind == KindNull:
		return 1, true
	case a.Kind == KindBool && b.Kind == KindBool:
		return boolCompare(a.Bool, b.Bool), true
	case isNumeric(a.Kind) && isNumeric(b.Kind):
		return floatCompare(asFloat(a), asFloat(b)), true
	case a.Kind == KindStr && b.Kind == KindStr:
		return strCompare(a.Str, b.Str), true
	case a.Kind == KindStr && isNumeric(b.Kind):
		return strCompare(a.Str, canonicalNumber(b)), true
	case isNumeric(a.Kind) && b.Kind == KindStr:
		return strCompare(canonicalNumber(a), b.Str), true
	case a.Kind == KindNode && b.Kind == KindBinary:
		return structuralCompare(a.Node, b.Binary)
	case a.Kind == KindBinary && b.Kind == KindNode:
		return structuralCompare(b.Node, a.Binary)
	case a.Kind == KindBinary && b.Kind == KindBinary:
		av, err := bindoc.DecodeJSON(a.Binary)
		if err != nil {
			return 0, false
		}
		return structuralCompare(av, b.Binary)
	default:
		return 0, false
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func floatCompare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func strCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// structuralCompare reports whether node deep-equals the container b,
// treated as an equality-only comparison.
func structuralCompare(node any, b *bindoc.Reader) (int, bool) {
	decoded, err := bindoc.DecodeJSON(b)
	if err != nil {
		return 0, false
	}
	if !compatibleShape(node, b.Type()) {
		return 0, false
	}
	if deepEqualJSON(node, decoded) {
		return 0, true
	}
	return 1, true
}

func compatibleShape(node any, kind bindoc.Type) bool {
	switch node.(type) {
	case []any:
		return kind == bindoc.TypeList
	case map[string]any:
		return kind == bindoc.TypeObject || kind == bindoc.TypeMap
	default:
		return false
	}
}

// ToRegexInput renders v as the string a regex operator matches against.
// Numbers and booleans are stringified; containers are never valid regex
// input.
func ToRegexInput(v Value) (string, bool) {
	switch v.Kind {
	case KindStr:
		return v.Str, true
	case KindBool:
		if v.Bool {
			return "true", true
		}
		return "false", true
	case KindI64, KindF64:
		return canonicalNumber(v), true
	case KindNull:
		return "", true
	default:
		return "", false
	}
}

// In implements the `in` operator: left matches if it equals any element
// of right under Compare's equality contract.
func In(left Value, right []Value) bool {
	for _, r := range right {
		if cmp, ok := Compare(left, r); ok && cmp == 0 {
			return true
		}
	}
	return false
}

// Elements decodes v, which must be an array-shaped Binary or Node
// value, into its component Values. Used by the `ni` operator, whose
// array-typed side is the matched field's own decoded value rather
// than a literal on the operator's right.
func Elements(v Value) ([]Value, error) {
	switch v.Kind {
	case KindBinary:
		var out []Value
		err := v.Binary.Iter(func(e bindoc.Element) bool {
			out = append(out, FromElement(e))
			return true
		})
		return out, err
	case KindNode:
		arr, ok := v.Node.([]any)
		if !ok {
			return nil, fmt.Errorf("value: Elements requires an array, got %T", v.Node)
		}
		out := make([]Value, len(arr))
		for i, item := range arr {
			out[i] = FromJSON(item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value: Elements requires an array-shaped value, got kind %d", v.Kind)
	}
}
