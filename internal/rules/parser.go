package rules

import (
	"fmt"
	"strings"

	"github.com/roach88/provstream/internal/rdf"
)

// ParseError reports malformed rule or query text.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

type parser struct {
	ts       *rdf.TokenStream
	prefixes rdf.Prefixes
}

func newParser(text string) (*parser, error) {
	ts, err := rdf.NewTokenStream(text)
	if err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	return &parser{ts: ts, prefixes: rdf.NewPrefixes()}, nil
}

func (p *parser) fail(err error) error {
	if _, ok := err.(*ParseError); ok {
		return err
	}
	return &ParseError{Line: p.ts.Peek().Line, Message: err.Error()}
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.ts.Peek().Line, Message: fmt.Sprintf(format, args...)}
}

// ParseUpdate parses one or more update operations separated by ';'.
func ParseUpdate(text string) (*Update, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	u := &Update{}
	for {
		if err := p.prologue(); err != nil {
			return nil, err
		}
		if p.ts.AtEOF() {
			break
		}
		op, err := p.operation()
		if err != nil {
			return nil, err
		}
		u.Operations = append(u.Operations, op)
		if !p.ts.AcceptPunct(";") {
			break
		}
	}
	if !p.ts.AtEOF() {
		return nil, p.errorf("unexpected %s after operation", p.ts.Peek())
	}
	if len(u.Operations) == 0 {
		return nil, &ParseError{Message: "no update operations"}
	}
	return u, nil
}

// ParseQuery parses a CONSTRUCT or SELECT query.
func ParseQuery(text string) (*Query, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	if err := p.prologue(); err != nil {
		return nil, err
	}
	q := &Query{}
	switch {
	case p.ts.AcceptKeyword("CONSTRUCT"):
		q.Form = FormConstruct
		if q.Template, err = p.template(); err != nil {
			return nil, err
		}
	case p.ts.AcceptKeyword("SELECT"):
		q.Form = FormSelect
		q.Distinct = p.ts.AcceptKeyword("DISTINCT")
		if !p.ts.AcceptOp("*") {
			for p.ts.Peek().Type == rdf.TokVar {
				q.Vars = append(q.Vars, p.ts.Next().Text)
			}
			if len(q.Vars) == 0 {
				return nil, p.errorf("SELECT needs variables or *")
			}
		}
	default:
		return nil, p.errorf("expected CONSTRUCT or SELECT, got %s", p.ts.Peek())
	}
	p.ts.AcceptKeyword("WHERE")
	if q.Where, err = p.group(); err != nil {
		return nil, err
	}
	if !p.ts.AtEOF() {
		return nil, p.errorf("unexpected %s after query", p.ts.Peek())
	}
	return q, nil
}

func (p *parser) prologue() error {
	for {
		switch {
		case p.ts.AcceptKeyword("PREFIX"):
			label := p.ts.Next()
			if label.Type != rdf.TokPName || !strings.HasSuffix(label.Text, ":") {
				return p.errorf("expected prefix label, got %s", label)
			}
			ns := p.ts.Next()
			if ns.Type != rdf.TokIRI {
				return p.errorf("expected namespace IRI, got %s", ns)
			}
			p.prefixes[strings.TrimSuffix(label.Text, ":")] = ns.Text
		case p.ts.AcceptKeyword("BASE"):
			tok := p.ts.Next()
			if tok.Type != rdf.TokIRI {
				return p.errorf("expected base IRI, got %s", tok)
			}
			p.ts.Base = tok.Text
		default:
			return nil
		}
	}
}

func (p *parser) operation() (Operation, error) {
	switch {
	case p.ts.AcceptKeyword("INSERT"):
		if p.ts.AcceptKeyword("DATA") {
			data, err := p.groundTemplate()
			return Operation{Kind: OpInsertData, Insert: data}, err
		}
		ins, err := p.template()
		if err != nil {
			return Operation{}, err
		}
		where, err := p.where()
		return Operation{Kind: OpModify, Insert: ins, Where: where}, err

	case p.ts.AcceptKeyword("DELETE"):
		switch {
		case p.ts.AcceptKeyword("DATA"):
			data, err := p.groundTemplate()
			return Operation{Kind: OpDeleteData, Delete: data}, err
		case p.ts.AcceptKeyword("WHERE"):
			pats, err := p.template()
			if err != nil {
				return Operation{}, err
			}
			return Operation{Kind: OpDeleteWhere, Delete: pats, Where: &Group{Patterns: pats}}, nil
		}
		del, err := p.template()
		if err != nil {
			return Operation{}, err
		}
		var ins []Pattern
		if p.ts.AcceptKeyword("INSERT") {
			if ins, err = p.template(); err != nil {
				return Operation{}, err
			}
		}
		where, err := p.where()
		return Operation{Kind: OpModify, Delete: del, Insert: ins, Where: where}, err
	}
	return Operation{}, p.errorf("expected INSERT or DELETE, got %s", p.ts.Peek())
}

func (p *parser) where() (*Group, error) {
	if err := p.ts.ExpectKeyword("WHERE"); err != nil {
		return nil, p.fail(err)
	}
	return p.group()
}

// template parses '{' triples '}' without filters.
func (p *parser) template() ([]Pattern, error) {
	g, err := p.block(false)
	if err != nil {
		return nil, err
	}
	return g.Patterns, nil
}

func (p *parser) groundTemplate() ([]Pattern, error) {
	pats, err := p.template()
	if err != nil {
		return nil, err
	}
	for _, pat := range pats {
		if pat.S.IsVar() || pat.P.IsVar() || pat.O.IsVar() {
			return nil, p.errorf("variables are not allowed in DATA blocks")
		}
	}
	return pats, nil
}

func (p *parser) group() (*Group, error) {
	return p.block(true)
}

func (p *parser) block(filters bool) (*Group, error) {
	if err := p.ts.ExpectPunct("{"); err != nil {
		return nil, p.fail(err)
	}
	g := &Group{}
	for !p.ts.AcceptPunct("}") {
		switch {
		case p.ts.AtEOF():
			return nil, p.errorf("unterminated block")
		case p.ts.AcceptPunct("."):
		case filters && p.ts.AcceptKeyword("FILTER"):
			e, err := p.filter()
			if err != nil {
				return nil, err
			}
			g.Filters = append(g.Filters, e)
		default:
			pats, err := p.triples()
			if err != nil {
				return nil, err
			}
			g.Patterns = append(g.Patterns, pats...)
		}
	}
	return g, nil
}

// triples parses one subject with its predicate-object list.
func (p *parser) triples() ([]Pattern, error) {
	subj, err := p.node(false)
	if err != nil {
		return nil, err
	}
	if !subj.IsVar() && !subj.Term.IsResource() {
		return nil, p.errorf("subject must be a resource, got %s", subj)
	}
	var out []Pattern
	for {
		pred, err := p.node(true)
		if err != nil {
			return nil, err
		}
		if !pred.IsVar() && !pred.Term.IsIRI() {
			return nil, p.errorf("predicate must be an IRI, got %s", pred)
		}
		for {
			obj, err := p.node(false)
			if err != nil {
				return nil, err
			}
			out = append(out, Pattern{S: subj, P: pred, O: obj})
			if !p.ts.AcceptPunct(",") {
				break
			}
		}
		if !p.ts.AcceptPunct(";") {
			return out, nil
		}
		for p.ts.AcceptPunct(";") {
		}
		if p.ts.IsPunct(".") || p.ts.IsPunct("}") {
			return out, nil
		}
	}
}

func (p *parser) node(predicate bool) (Node, error) {
	if tok := p.ts.Peek(); tok.Type == rdf.TokVar {
		p.ts.Next()
		return Node{Var: tok.Text}, nil
	}
	t, err := p.ts.Term(p.prefixes, predicate)
	if err != nil {
		return Node{}, p.fail(err)
	}
	return Node{Term: t}, nil
}

func (p *parser) filter() (Expr, error) {
	if p.ts.IsPunct("(") {
		return p.primary()
	}
	if p.ts.IsKeyword("BOUND") {
		return p.primary()
	}
	return nil, p.errorf("expected '(' after FILTER, got %s", p.ts.Peek())
}

func (p *parser) orExpr() (Expr, error) {
	l, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.ts.AcceptOp("||") {
		r, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		l = logicExpr{and: false, l: l, r: r}
	}
	return l, nil
}

func (p *parser) andExpr() (Expr, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.ts.AcceptOp("&&") {
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = logicExpr{and: true, l: l, r: r}
	}
	return l, nil
}

func (p *parser) unary() (Expr, error) {
	if p.ts.AcceptOp("!") {
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notExpr{x: x}, nil
	}
	return p.relational()
}

var comparisonOps = []string{"=", "!=", "<", "<=", ">", ">="}

func (p *parser) relational() (Expr, error) {
	l, err := p.primary()
	if err != nil {
		return nil, err
	}
	for _, op := range comparisonOps {
		if p.ts.AcceptOp(op) {
			r, err := p.primary()
			if err != nil {
				return nil, err
			}
			return compareExpr{op: op, l: l, r: r}, nil
		}
	}
	return l, nil
}

func (p *parser) primary() (Expr, error) {
	tok := p.ts.Peek()
	switch {
	case p.ts.AcceptPunct("("):
		e, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		if err := p.ts.ExpectPunct(")"); err != nil {
			return nil, p.fail(err)
		}
		return e, nil
	case p.ts.AcceptKeyword("BOUND"):
		if err := p.ts.ExpectPunct("("); err != nil {
			return nil, p.fail(err)
		}
		v := p.ts.Next()
		if v.Type != rdf.TokVar {
			return nil, p.errorf("BOUND expects a variable, got %s", v)
		}
		if err := p.ts.ExpectPunct(")"); err != nil {
			return nil, p.fail(err)
		}
		return boundExpr{name: v.Text}, nil
	case tok.Type == rdf.TokVar:
		p.ts.Next()
		return varExpr{name: tok.Text}, nil
	}
	t, err := p.ts.Term(p.prefixes, false)
	if err != nil {
		return nil, p.fail(err)
	}
	return constExpr{term: t}, nil
}
