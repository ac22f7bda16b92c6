// Package rules implements the graph-rewrite language used by inference rules
// and windowed queries: a subset of SPARQL 1.1 Update plus CONSTRUCT and
// SELECT query forms.
//
// Rule text is parsed on demand. Parsing never touches a graph, so callers
// can validate text ahead of time with ParseUpdate or ParseQuery.
package rules

import "github.com/roach88/provstream/internal/rdf"

// Node is a pattern position: either a variable or a fixed term.
type Node struct {
	Var  string
	Term rdf.Term
}

// IsVar reports whether n is a variable.
func (n Node) IsVar() bool { return n.Var != "" }

func (n Node) String() string {
	if n.IsVar() {
		return "?" + n.Var
	}
	return n.Term.String()
}

// Pattern is a triple pattern or template.
type Pattern struct {
	S, P, O Node
}

// Group is a basic graph pattern with filters. Filters apply to the whole
// group after every pattern has been joined.
type Group struct {
	Patterns []Pattern
	Filters  []Expr
}

// OpKind identifies an update operation.
type OpKind int

const (
	OpModify OpKind = iota + 1 // DELETE {..} INSERT {..} WHERE {..}
	OpInsertData
	OpDeleteData
	OpDeleteWhere
)

func (k OpKind) String() string {
	switch k {
	case OpModify:
		return "MODIFY"
	case OpInsertData:
		return "INSERT DATA"
	case OpDeleteData:
		return "DELETE DATA"
	case OpDeleteWhere:
		return "DELETE WHERE"
	}
	return "UNKNOWN"
}

// Operation is one update operation.
type Operation struct {
	Kind   OpKind
	Delete []Pattern
	Insert []Pattern
	Where  *Group
}

// Update is a sequence of operations executed in order.
type Update struct {
	Operations []Operation
}

// QueryForm is the result shape of a query.
type QueryForm int

const (
	FormConstruct QueryForm = iota + 1
	FormSelect
)

// Query is a CONSTRUCT or SELECT query.
type Query struct {
	Form     QueryForm
	Template []Pattern // CONSTRUCT
	Vars     []string  // SELECT; empty means *
	Distinct bool
	Where    *Group
}

// Binding maps variable names to terms for one solution.
type Binding map[string]rdf.Term

func (b Binding) clone() Binding {
	c := make(Binding, len(b)+3)
	for k, v := range b {
		c[k] = v
	}
	return c
}
