package rdf

import (
	"fmt"
	"net/url"
	"strings"
)

// Prefixes maps prefix labels to namespace IRIs.
type Prefixes map[string]string

// NewPrefixes returns a prefix table seeded with DefaultPrefixes.
func NewPrefixes() Prefixes {
	p := make(Prefixes, len(DefaultPrefixes))
	for k, v := range DefaultPrefixes {
		p[k] = v
	}
	return p
}

// Expand resolves a prefixed name such as "fs:Hot".
func (p Prefixes) Expand(pname string) (string, error) {
	i := strings.IndexByte(pname, ':')
	if i < 0 {
		return "", fmt.Errorf("not a prefixed name: %q", pname)
	}
	ns, ok := p[pname[:i]]
	if !ok {
		return "", fmt.Errorf("undeclared prefix %q", pname[:i])
	}
	return ns + pname[i+1:], nil
}

// TokenStream is a cursor over lexer output with the term grammar shared by
// the schema reader and the rule parser.
type TokenStream struct {
	toks []Token
	pos  int
	Base string
}

// NewTokenStream tokenizes text.
func NewTokenStream(text string) (*TokenStream, error) {
	toks, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	return &TokenStream{toks: toks}, nil
}

// Peek returns the next token without consuming it.
func (ts *TokenStream) Peek() Token {
	return ts.toks[ts.pos]
}

// PeekAt returns the token n positions ahead.
func (ts *TokenStream) PeekAt(n int) Token {
	if ts.pos+n >= len(ts.toks) {
		return ts.toks[len(ts.toks)-1]
	}
	return ts.toks[ts.pos+n]
}

// Next consumes and returns the next token. EOF is sticky.
func (ts *TokenStream) Next() Token {
	tok := ts.toks[ts.pos]
	if tok.Type != TokEOF {
		ts.pos++
	}
	return tok
}

// AtEOF reports whether all tokens are consumed.
func (ts *TokenStream) AtEOF() bool {
	return ts.Peek().Type == TokEOF
}

// IsPunct reports whether the next token is the punctuation s.
func (ts *TokenStream) IsPunct(s string) bool {
	tok := ts.Peek()
	return tok.Type == TokPunct && tok.Text == s
}

// IsKeyword reports whether the next token is the bare word kw, ignoring case.
func (ts *TokenStream) IsKeyword(kw string) bool {
	tok := ts.Peek()
	return tok.Type == TokName && strings.EqualFold(tok.Text, kw)
}

// AcceptPunct consumes s if it is next.
func (ts *TokenStream) AcceptPunct(s string) bool {
	if ts.IsPunct(s) {
		ts.pos++
		return true
	}
	return false
}

// AcceptKeyword consumes kw if it is next.
func (ts *TokenStream) AcceptKeyword(kw string) bool {
	if ts.IsKeyword(kw) {
		ts.pos++
		return true
	}
	return false
}

// AcceptOp consumes the operator op if it is next.
func (ts *TokenStream) AcceptOp(op string) bool {
	tok := ts.Peek()
	if tok.Type == TokOp && tok.Text == op {
		ts.pos++
		return true
	}
	return false
}

// ExpectPunct consumes s or fails.
func (ts *TokenStream) ExpectPunct(s string) error {
	if ts.AcceptPunct(s) {
		return nil
	}
	return fmt.Errorf("expected %q, got %s", s, ts.Peek())
}

// ExpectKeyword consumes kw or fails.
func (ts *TokenStream) ExpectKeyword(kw string) error {
	if ts.AcceptKeyword(kw) {
		return nil
	}
	return fmt.Errorf("expected %s, got %s", kw, ts.Peek())
}

// Term parses one ground term: IRI, prefixed name, blank node, literal,
// number, boolean, or the keyword "a" when predicate is true.
func (ts *TokenStream) Term(prefixes Prefixes, predicate bool) (Term, error) {
	tok := ts.Next()
	switch tok.Type {
	case TokIRI:
		return IRI(ts.resolve(tok.Text)), nil
	case TokPName:
		iri, err := prefixes.Expand(tok.Text)
		if err != nil {
			return Term{}, fmt.Errorf("line %d: %w", tok.Line, err)
		}
		return IRI(iri), nil
	case TokBlank:
		return Blank(tok.Text), nil
	case TokNumber:
		return NumberLiteral(tok.Text), nil
	case TokString:
		return ts.literalSuffix(tok.Text, prefixes)
	case TokName:
		switch {
		case predicate && tok.Text == "a":
			return IRI(RDFType), nil
		case tok.Text == "true" || tok.Text == "false":
			return TypedLiteral(tok.Text, XSDBoolean), nil
		}
	}
	return Term{}, fmt.Errorf("unexpected %s", tok)
}

func (ts *TokenStream) literalSuffix(lexical string, prefixes Prefixes) (Term, error) {
	switch ts.Peek().Type {
	case TokLangTag:
		return LangLiteral(lexical, ts.Next().Text), nil
	case TokDatatype:
		ts.Next()
		dt, err := ts.Term(prefixes, false)
		if err != nil {
			return Term{}, err
		}
		if !dt.IsIRI() {
			return Term{}, fmt.Errorf("datatype must be an IRI, got %s", dt)
		}
		return TypedLiteral(lexical, dt.Value), nil
	}
	return Literal(lexical), nil
}

func (ts *TokenStream) resolve(ref string) string {
	if ts.Base == "" {
		return ref
	}
	base, err := url.Parse(ts.Base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// NumberLiteral types a bare numeric token the way Turtle does: integer,
// decimal, or double when an exponent is present.
func NumberLiteral(text string) Term {
	switch {
	case strings.ContainsAny(text, "eE"):
		return TypedLiteral(text, XSDDouble)
	case strings.Contains(text, "."):
		return TypedLiteral(text, XSDDecimal)
	default:
		return TypedLiteral(strings.TrimPrefix(text, "+"), XSDInteger)
	}
}
