package rdf

import (
	"fmt"
	"strings"
)

// ParseTurtle reads a Turtle document into a new graph.
//
// Supported: @prefix / PREFIX, @base / BASE, prefixed names, the "a"
// keyword, predicate lists (;), object lists (,), typed and language
// literals, numbers, booleans, comments and labelled blank nodes.
// Collections and anonymous [] nodes are not supported.
func ParseTurtle(text string) (*Graph, error) {
	ts, err := NewTokenStream(text)
	if err != nil {
		return nil, err
	}
	g := NewGraph()
	prefixes := NewPrefixes()
	for !ts.AtEOF() {
		if err := turtleStatement(ts, prefixes, g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func turtleStatement(ts *TokenStream, prefixes Prefixes, g *Graph) error {
	tok := ts.Peek()
	switch {
	case tok.Type == TokDirective && tok.Text == "prefix":
		ts.Next()
		if err := turtlePrefix(ts, prefixes); err != nil {
			return err
		}
		return ts.ExpectPunct(".")
	case tok.Type == TokDirective && tok.Text == "base":
		ts.Next()
		if err := turtleBase(ts); err != nil {
			return err
		}
		return ts.ExpectPunct(".")
	case tok.Type == TokName && strings.EqualFold(tok.Text, "PREFIX"):
		ts.Next()
		return turtlePrefix(ts, prefixes)
	case tok.Type == TokName && strings.EqualFold(tok.Text, "BASE"):
		ts.Next()
		return turtleBase(ts)
	}
	return turtleTriples(ts, prefixes, g)
}

func turtlePrefix(ts *TokenStream, prefixes Prefixes) error {
	label := ts.Next()
	if label.Type != TokPName || !strings.HasSuffix(label.Text, ":") || strings.Count(label.Text, ":") != 1 {
		return fmt.Errorf("expected prefix label, got %s", label)
	}
	ns := ts.Next()
	if ns.Type != TokIRI {
		return fmt.Errorf("expected namespace IRI, got %s", ns)
	}
	prefixes[strings.TrimSuffix(label.Text, ":")] = ts.resolve(ns.Text)
	return nil
}

func turtleBase(ts *TokenStream) error {
	tok := ts.Next()
	if tok.Type != TokIRI {
		return fmt.Errorf("expected base IRI, got %s", tok)
	}
	ts.Base = ts.resolve(tok.Text)
	return nil
}

func turtleTriples(ts *TokenStream, prefixes Prefixes, g *Graph) error {
	subj, err := ts.Term(prefixes, false)
	if err != nil {
		return err
	}
	if !subj.IsResource() {
		return fmt.Errorf("subject must be an IRI or blank node, got %s", subj)
	}
	for {
		pred, err := ts.Term(prefixes, true)
		if err != nil {
			return err
		}
		if !pred.IsIRI() {
			return fmt.Errorf("predicate must be an IRI, got %s", pred)
		}
		for {
			obj, err := ts.Term(prefixes, false)
			if err != nil {
				return err
			}
			g.Add(NewTriple(subj, pred, obj))
			if !ts.AcceptPunct(",") {
				break
			}
		}
		if !ts.AcceptPunct(";") {
			break
		}
		// Trailing ';' before '.' is legal.
		for ts.AcceptPunct(";") {
		}
		if ts.IsPunct(".") {
			break
		}
	}
	return ts.ExpectPunct(".")
}
