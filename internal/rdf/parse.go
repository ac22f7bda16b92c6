package rdf

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParseNode parses a single term written in N-Triples or Turtle shorthand:
// <iri>, "lexical"^^<datatype>, "lexical"@lang, _:label, bare numbers and
// booleans. The input is NFC-normalized first.
func ParseNode(text string) (Term, error) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return Term{}, fmt.Errorf("empty node")
	}
	ts, err := NewTokenStream(text)
	if err != nil {
		return Term{}, err
	}
	t, err := ts.Term(DefaultPrefixes, false)
	if err != nil {
		return Term{}, err
	}
	if !ts.AtEOF() {
		return Term{}, fmt.Errorf("trailing input after node: %s", ts.Peek())
	}
	return t, nil
}

// ParseObject converts an evaluator column into an object term. Values that
// parse as a node keep their typed form; anything else becomes a resource
// named by the raw text. It never fails.
func ParseObject(text string) Term {
	if t, err := ParseNode(text); err == nil {
		return t
	}
	return IRI(norm.NFC.String(text))
}
