package rdf

import (
	"fmt"
	"strconv"
	"strings"
)

// TermKind distinguishes IRIs, literals and blank nodes.
type TermKind uint8

const (
	// KindIRI is a named resource.
	KindIRI TermKind = iota + 1
	// KindLiteral is a lexical value with a datatype or language tag.
	KindLiteral
	// KindBlank is an anonymous node, identified only within one graph.
	KindBlank
)

// Term is a node in a fact graph.
//
// Terms are plain comparable values so they can be used as map keys.
// For literals Datatype is always set unless Lang is set, in which case
// Datatype is rdf:langString.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// IRI returns a named resource term.
func IRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// Blank returns a blank node term with the given label.
func Blank(label string) Term {
	return Term{Kind: KindBlank, Value: label}
}

// Literal returns a plain xsd:string literal.
func Literal(lexical string) Term {
	return Term{Kind: KindLiteral, Value: lexical, Datatype: XSDString}
}

// TypedLiteral returns a literal with an explicit datatype IRI.
// An empty datatype defaults to xsd:string.
func TypedLiteral(lexical, datatype string) Term {
	if datatype == "" {
		datatype = XSDString
	}
	return Term{Kind: KindLiteral, Value: lexical, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal.
func LangLiteral(lexical, lang string) Term {
	return Term{Kind: KindLiteral, Value: lexical, Datatype: RDFLangString, Lang: strings.ToLower(lang)}
}

// Double returns an xsd:double literal for v.
func Double(v float64) Term {
	return TypedLiteral(strconv.FormatFloat(v, 'f', -1, 64), XSDDouble)
}

// Integer returns an xsd:integer literal for v.
func Integer(v int64) Term {
	return TypedLiteral(strconv.FormatInt(v, 10), XSDInteger)
}

// IsZero reports whether t is the zero Term (used as a wildcard in Match).
func (t Term) IsZero() bool {
	return t.Kind == 0
}

// IsIRI reports whether t is a named resource.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// IsBlank reports whether t is an anonymous node.
func (t Term) IsBlank() bool { return t.Kind == KindBlank }

// IsResource reports whether t can appear in subject position.
func (t Term) IsResource() bool { return t.Kind == KindIRI || t.Kind == KindBlank }

// Numeric returns the literal's value as a float64 when its datatype is one
// of the XSD numeric types, or when it is an untyped string that parses as a
// number.
func (t Term) Numeric() (float64, bool) {
	if t.Kind != KindLiteral {
		return 0, false
	}
	if !numericTypes[t.Datatype] && t.Datatype != XSDString {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Lexical returns the form used on the evaluator stream: the IRI for
// resources and the lexical form for literals.
func (t Term) Lexical() string {
	return t.Value
}

// String renders t in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + escapeIRI(t.Value) + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		lex := `"` + escapeLiteral(t.Value) + `"`
		if t.Lang != "" {
			return lex + "@" + t.Lang
		}
		if t.Datatype == "" || t.Datatype == XSDString {
			return lex
		}
		return lex + "^^<" + escapeIRI(t.Datatype) + ">"
	default:
		return "<invalid>"
	}
}

// Compare orders terms: IRIs, then blank nodes, then literals; within a kind
// by value, datatype and language tag.
func Compare(a, b Term) int {
	if a.Kind != b.Kind {
		return kindRank(a.Kind) - kindRank(b.Kind)
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	if c := strings.Compare(a.Datatype, b.Datatype); c != 0 {
		return c
	}
	return strings.Compare(a.Lang, b.Lang)
}

func kindRank(k TermKind) int {
	switch k {
	case KindIRI:
		return 1
	case KindBlank:
		return 2
	case KindLiteral:
		return 3
	}
	return 0
}

func escapeLiteral(s string) string {
	if !strings.ContainsAny(s, "\"\\\n\r\t") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func escapeIRI(s string) string {
	if !strings.ContainsAny(s, "<>\"{}|^`\\ ") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune("<>\"{}|^`\\ ", r) {
			fmt.Fprintf(&b, "\\u%04X", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
