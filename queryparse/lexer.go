package queryparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ejdbq/jql/queryast"
)

// queryLexer tokenizes query text after the JSON-literal pre-pass has
// replaced every JSON island with a JSONLit placeholder. Rule order
// matters: longer operators must precede their prefixes.
var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "JSONLit", Pattern: jsonLitPattern},
	{Name: "Number", Pattern: `-?[0-9]+(?:\.[0-9]+)?`},
	{Name: "Placeholder", Pattern: `:(?:[a-zA-Z_][a-zA-Z0-9_]*|\?)`},
	{Name: "OpNe", Pattern: `!=`},
	{Name: "OpGe", Pattern: `>=`},
	{Name: "OpLe", Pattern: `<=`},
	{Name: "OpEq", Pattern: `=`},
	{Name: "OpGt", Pattern: `>`},
	{Name: "OpLt", Pattern: `<`},
	{Name: "DStar", Pattern: `\*\*`},
	{Name: "Star", Pattern: `\*`},
	{Name: "At", Pattern: `@`},
	{Name: "Pipe", Pattern: `\|`},
	{Name: "Plus", Pattern: `\+`},
	{Name: "Minus", Pattern: `-`},
	{Name: "Slash", Pattern: `/`},
	{Name: "LBracket", Pattern: `\[`},
	{Name: "RBracket", Pattern: `\]`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "whitespace", Pattern: `\s+`},
})

// jsonLitMarker wraps the placeholder token the pre-pass substitutes for
// a balanced JSON island. It starts with a NUL byte so it can never be
// producible by real query text the lexer would otherwise tokenize.
const jsonLitMarker = "\x00JSONLIT"

var jsonLitPattern = regexp.QuoteMeta(jsonLitMarker) + `[0-9]+\x00`

var jsonLitRef = regexp.MustCompile(regexp.QuoteMeta(jsonLitMarker) + `([0-9]+)\x00`)

// extractLiterals runs a JSON-literal pre-pass over the raw query text
// so the grammar itself never has to disambiguate a `{...}`/`[...]`
// object-or-array literal from a predicate bracket: it scans for
// balanced `{...}` and non-predicate `[...]` regions and replaces each
// with a JSONLit placeholder token, stashing the raw substring for later
// decoding. A `[` opens a JSON array only when the nearest preceding
// non-whitespace rune is neither `/` (a top-level predicate bracket)
// nor `[` (the nested `[* op literal]` key-predicate form, the only
// grammar position where one `[` directly follows another). Returns the
// rewritten text and the stash, indexed by the integer embedded in each
// placeholder.
func extractLiterals(text string) (string, []string) {
	var out strings.Builder
	var stash []string

	runes := []rune(text)
	lastNonSpace := rune(0)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '{':
			end := matchBalanced(runes, i, '{', '}')
			stash = append(stash, string(runes[i:end]))
			fmt.Fprintf(&out, "%s%d\x00", jsonLitMarker, len(stash)-1)
			i = end
			lastNonSpace = '}'
		case r == '[' && lastNonSpace != '/' && lastNonSpace != '[':
			end := matchBalanced(runes, i, '[', ']')
			stash = append(stash, string(runes[i:end]))
			fmt.Fprintf(&out, "%s%d\x00", jsonLitMarker, len(stash)-1)
			i = end
			lastNonSpace = ']'
		default:
			out.WriteRune(r)
			if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
				lastNonSpace = r
			}
			i++
		}
	}
	return out.String(), stash
}

// matchBalanced returns the index one past the closing rune matching the
// opening rune at runes[start], tracking nested string literals so a
// brace/bracket inside a JSON string doesn't confuse the balance count.
func matchBalanced(runes []rune, start int, open, closeR rune) int {
	depth := 0
	inStr := false
	i := start
	for i < len(runes) {
		r := runes[i]
		switch {
		case inStr:
			if r == '\\' {
				i++
			} else if r == '"' {
				inStr = false
			}
		case r == '"':
			inStr = true
		case r == open:
			depth++
		case r == closeR:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return len(runes)
}

// decodeLiteral parses one stashed JSON substring into a queryast.JSONNode.
func decodeLiteral(a *queryast.Arena, raw string) (*queryast.JSONNode, error) {
	v, err := decodeJSONText(raw)
	if err != nil {
		return nil, err
	}
	return &queryast.JSONNode{Value: v}, nil
}

// refIndex extracts the stash index from a JSONLit token's raw text.
func refIndex(tok string) (int, error) {
	m := jsonLitRef.FindStringSubmatch(tok)
	if m == nil {
		return 0, fmt.Errorf("malformed JSONLit token %q", tok)
	}
	var idx int
	fmt.Sscanf(m[1], "%d", &idx)
	return idx, nil
}
