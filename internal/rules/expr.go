package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/provstream/internal/rdf"
)

// Expr is a FILTER expression.
type Expr interface {
	eval(b Binding) (rdf.Term, error)
	String() string
}

var (
	errUnbound   = errors.New("unbound variable")
	errTypeError = errors.New("type error")

	termTrue  = rdf.TypedLiteral("true", rdf.XSDBoolean)
	termFalse = rdf.TypedLiteral("false", rdf.XSDBoolean)
)

func boolTerm(v bool) rdf.Term {
	if v {
		return termTrue
	}
	return termFalse
}

type varExpr struct{ name string }

func (e varExpr) eval(b Binding) (rdf.Term, error) {
	t, ok := b[e.name]
	if !ok {
		return rdf.Term{}, errUnbound
	}
	return t, nil
}

func (e varExpr) String() string { return "?" + e.name }

type constExpr struct{ term rdf.Term }

func (e constExpr) eval(Binding) (rdf.Term, error) { return e.term, nil }
func (e constExpr) String() string                  { return e.term.String() }

type boundExpr struct{ name string }

func (e boundExpr) eval(b Binding) (rdf.Term, error) {
	_, ok := b[e.name]
	return boolTerm(ok), nil
}

func (e boundExpr) String() string { return "BOUND(?" + e.name + ")" }

type notExpr struct{ x Expr }

func (e notExpr) eval(b Binding) (rdf.Term, error) {
	v, err := effectiveBool(e.x, b)
	if err != nil {
		return rdf.Term{}, err
	}
	return boolTerm(!v), nil
}

func (e notExpr) String() string { return "!" + e.x.String() }

// logicExpr implements && and || with SPARQL error semantics: an error on
// one side is masked when the other side decides the result.
type logicExpr struct {
	and  bool
	l, r Expr
}

func (e logicExpr) eval(b Binding) (rdf.Term, error) {
	lv, lerr := effectiveBool(e.l, b)
	rv, rerr := effectiveBool(e.r, b)
	if e.and {
		switch {
		case lerr == nil && !lv, rerr == nil && !rv:
			return termFalse, nil
		case lerr != nil:
			return rdf.Term{}, lerr
		case rerr != nil:
			return rdf.Term{}, rerr
		}
		return termTrue, nil
	}
	switch {
	case lerr == nil && lv, rerr == nil && rv:
		return termTrue, nil
	case lerr != nil:
		return rdf.Term{}, lerr
	case rerr != nil:
		return rdf.Term{}, rerr
	}
	return termFalse, nil
}

func (e logicExpr) String() string {
	op := " || "
	if e.and {
		op = " && "
	}
	return "(" + e.l.String() + op + e.r.String() + ")"
}

type compareExpr struct {
	op   string
	l, r Expr
}

func (e compareExpr) eval(b Binding) (rdf.Term, error) {
	lt, err := e.l.eval(b)
	if err != nil {
		return rdf.Term{}, err
	}
	rt, err := e.r.eval(b)
	if err != nil {
		return rdf.Term{}, err
	}

	var c int
	lf, lok := lt.Numeric()
	rf, rok := rt.Numeric()
	switch {
	case lok && rok:
		switch {
		case lf < rf:
			c = -1
		case lf > rf:
			c = 1
		}
	case e.op == "=":
		return boolTerm(lt == rt), nil
	case e.op == "!=":
		return boolTerm(lt != rt), nil
	case lt.IsLiteral() && rt.IsLiteral():
		c = strings.Compare(lt.Value, rt.Value)
	default:
		return rdf.Term{}, errTypeError
	}

	switch e.op {
	case "=":
		return boolTerm(c == 0), nil
	case "!=":
		return boolTerm(c != 0), nil
	case "<":
		return boolTerm(c < 0), nil
	case "<=":
		return boolTerm(c <= 0), nil
	case ">":
		return boolTerm(c > 0), nil
	case ">=":
		return boolTerm(c >= 0), nil
	}
	return rdf.Term{}, fmt.Errorf("unknown operator %q", e.op)
}

func (e compareExpr) String() string {
	return "(" + e.l.String() + " " + e.op + " " + e.r.String() + ")"
}

// effectiveBool computes the SPARQL effective boolean value of x.
func effectiveBool(x Expr, b Binding) (bool, error) {
	t, err := x.eval(b)
	if err != nil {
		return false, err
	}
	if !t.IsLiteral() {
		return false, errTypeError
	}
	if t.Datatype == rdf.XSDBoolean {
		return t.Value == "true" || t.Value == "1", nil
	}
	if t.Datatype != rdf.XSDString {
		if f, ok := t.Numeric(); ok {
			return f != 0, nil
		}
	}
	return t.Value != "", nil
}

// passes reports whether every filter holds. Errors count as false.
func (g *Group) passes(b Binding) bool {
	for _, f := range g.Filters {
		ok, err := effectiveBool(f, b)
		if err != nil || !ok {
			return false
		}
	}
	return true
}
