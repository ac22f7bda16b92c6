package rules

import (
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/roach88/provstream/internal/rdf"
)

// Result summarizes the effect of executing an update.
type Result struct {
	Solutions int
	Deleted   int
	Inserted  int
}

// Solve evaluates a group against g and returns every solution that passes
// the group's filters, in a deterministic order.
func Solve(group *Group, g *rdf.Graph) []Binding {
	solutions := []Binding{{}}
	for _, pat := range order(group.Patterns) {
		var next []Binding
		for _, b := range solutions {
			next = append(next, extend(pat, b, g)...)
		}
		solutions = next
		if len(solutions) == 0 {
			return nil
		}
	}
	out := solutions[:0]
	for _, b := range solutions {
		if group.passes(b) {
			out = append(out, b)
		}
	}
	return out
}

// order moves patterns with fixed terms ahead so joins start selective.
// Relative order is otherwise preserved.
func order(pats []Pattern) []Pattern {
	out := slices.Clone(pats)
	slices.SortStableFunc(out, func(a, b Pattern) int {
		return fixedCount(b) - fixedCount(a)
	})
	return out
}

func fixedCount(p Pattern) int {
	n := 0
	for _, node := range []Node{p.S, p.P, p.O} {
		if !node.IsVar() {
			n++
		}
	}
	return n
}

func resolve(n Node, b Binding) rdf.Term {
	if !n.IsVar() {
		return n.Term
	}
	return b[n.Var]
}

func extend(pat Pattern, b Binding, g *rdf.Graph) []Binding {
	s, p, o := resolve(pat.S, b), resolve(pat.P, b), resolve(pat.O, b)
	var out []Binding
	for _, t := range g.Match(s, p, o) {
		nb := b
		cloned := false
		ok := true
		for _, pair := range [3]struct {
			n Node
			v rdf.Term
		}{{pat.S, t.S}, {pat.P, t.P}, {pat.O, t.O}} {
			if !pair.n.IsVar() {
				continue
			}
			if cur, bound := nb[pair.n.Var]; bound {
				// Same variable used twice in one pattern.
				if cur != pair.v {
					ok = false
					break
				}
				continue
			}
			if !cloned {
				nb = b.clone()
				cloned = true
			}
			nb[pair.n.Var] = pair.v
		}
		if ok {
			out = append(out, nb)
		}
	}
	return out
}

var blankSeq atomic.Uint64

// instantiate fills a template for one solution. Template blank nodes get
// labels that are fresh for this solution. Triples with unbound variables or
// an invalid shape are skipped.
func instantiate(tmpl []Pattern, b Binding, fresh map[string]rdf.Term) []rdf.Triple {
	var out []rdf.Triple
	for _, pat := range tmpl {
		var terms [3]rdf.Term
		ok := true
		for i, n := range []Node{pat.S, pat.P, pat.O} {
			switch {
			case n.IsVar():
				t, bound := b[n.Var]
				if !bound {
					ok = false
				}
				terms[i] = t
			case n.Term.IsBlank() && fresh != nil:
				t, seen := fresh[n.Term.Value]
				if !seen {
					t = rdf.Blank("g" + strconv.FormatUint(blankSeq.Add(1), 10))
					fresh[n.Term.Value] = t
				}
				terms[i] = t
			default:
				terms[i] = n.Term
			}
		}
		t := rdf.NewTriple(terms[0], terms[1], terms[2])
		if ok && t.IsValid() {
			out = append(out, t)
		}
	}
	return out
}

// Execute applies every operation of u to g in order. Later operations see
// the effects of earlier ones.
func Execute(u *Update, g *rdf.Graph) Result {
	var res Result
	for _, op := range u.Operations {
		switch op.Kind {
		case OpInsertData:
			for _, t := range instantiate(op.Insert, nil, nil) {
				if g.Add(t) {
					res.Inserted++
				}
			}
		case OpDeleteData:
			for _, t := range instantiate(op.Delete, nil, nil) {
				if g.Remove(t) {
					res.Deleted++
				}
			}
		default:
			res = res.add(modify(op, g))
		}
	}
	return res
}

// modify evaluates WHERE once, then removes all instantiated deletes before
// adding all instantiated inserts.
func modify(op Operation, g *rdf.Graph) Result {
	solutions := Solve(op.Where, g)
	var dels, ins []rdf.Triple
	for _, b := range solutions {
		dels = append(dels, instantiate(op.Delete, b, nil)...)
		ins = append(ins, instantiate(op.Insert, b, map[string]rdf.Term{})...)
	}
	res := Result{Solutions: len(solutions)}
	for _, t := range dels {
		if g.Remove(t) {
			res.Deleted++
		}
	}
	for _, t := range ins {
		if g.Add(t) {
			res.Inserted++
		}
	}
	return res
}

func (r Result) add(o Result) Result {
	return Result{
		Solutions: r.Solutions + o.Solutions,
		Deleted:   r.Deleted + o.Deleted,
		Inserted:  r.Inserted + o.Inserted,
	}
}

// Construct evaluates a CONSTRUCT query into a new graph.
func Construct(q *Query, g *rdf.Graph) *rdf.Graph {
	out := rdf.NewGraph()
	for _, b := range Solve(q.Where, g) {
		for _, t := range instantiate(q.Template, b, map[string]rdf.Term{}) {
			out.Add(t)
		}
	}
	return out
}

// Select evaluates a SELECT query. Unbound projected variables yield zero
// terms. With no explicit projection the variables are sorted by name.
func Select(q *Query, g *rdf.Graph) (vars []string, rows [][]rdf.Term) {
	solutions := Solve(q.Where, g)
	vars = q.Vars
	if len(vars) == 0 {
		seen := map[string]bool{}
		for _, b := range solutions {
			for v := range b {
				if !seen[v] {
					seen[v] = true
					vars = append(vars, v)
				}
			}
		}
		slices.Sort(vars)
	}
	seen := map[string]bool{}
	for _, b := range solutions {
		row := make([]rdf.Term, len(vars))
		for i, v := range vars {
			row[i] = b[v]
		}
		if q.Distinct {
			key := rowKey(row)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		rows = append(rows, row)
	}
	return vars, rows
}

func rowKey(row []rdf.Term) string {
	parts := make([]string, len(row))
	for i, t := range row {
		parts[i] = t.String()
	}
	return strings.Join(parts, "\x00")
}
