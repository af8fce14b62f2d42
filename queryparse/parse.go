package queryparse

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2"
)

// ParseError reports where a query failed to parse, carrying enough
// position detail for a caller to point at the offending text.
type ParseError struct {
	Line, Col int
	Detail    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query parse error at %d:%d: %s", e.Line, e.Col, e.Detail)
}

var parser = mustBuildParser()

func mustBuildParser() *participle.Parser[QueryNode] {
	p, err := NewParser()
	if err != nil {
		panic(err)
	}
	return p
}

// Parse runs the full pipeline on one query string: the JSON-literal
// pre-pass, the participle grammar, and Lower. On a grammar failure it
// returns a *ParseError with the (line, col) participle reported.
func Parse(text string) (*LowerResult, error) {
	rewritten, stash := extractLiterals(text)

	tree, err := parser.ParseString("", rewritten)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			pos := perr.Position()
			return nil, &ParseError{Line: pos.Line, Col: pos.Column, Detail: perr.Message()}
		}
		return nil, &ParseError{Detail: err.Error()}
	}

	return Lower(tree, stash)
}
