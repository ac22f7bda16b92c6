package rdf

import (
	"slices"
	"strconv"
	"strings"
)

// Triple is a single subject-predicate-object statement.
type Triple struct {
	S Term
	P Term
	O Term
}

// NewTriple creates a triple from its three terms.
func NewTriple(s, p, o Term) Triple {
	return Triple{S: s, P: p, O: o}
}

// String renders the triple as one N-Triples line without the newline.
func (t Triple) String() string {
	return t.S.String() + " " + t.P.String() + " " + t.O.String() + " ."
}

// IsValid reports whether the triple is well formed: resource subject,
// IRI predicate and a non-zero object.
func (t Triple) IsValid() bool {
	return t.S.IsResource() && t.P.IsIRI() && !t.O.IsZero()
}

// CompareTriples orders triples by subject, predicate, then object.
func CompareTriples(a, b Triple) int {
	if c := Compare(a.S, b.S); c != 0 {
		return c
	}
	if c := Compare(a.P, b.P); c != 0 {
		return c
	}
	return Compare(a.O, b.O)
}

// Graph is a set of triples with subject and predicate indexes.
//
// Graph is not safe for concurrent use. Owners serialize access; the
// inference engine does so with its per-instance critical section.
type Graph struct {
	triples map[Triple]struct{}
	bySubj  map[Term]map[Triple]struct{}
	byPred  map[Term]map[Triple]struct{}
}

// NewGraph returns an empty graph, optionally seeded with triples.
func NewGraph(triples ...Triple) *Graph {
	g := &Graph{
		triples: make(map[Triple]struct{}),
		bySubj:  make(map[Term]map[Triple]struct{}),
		byPred:  make(map[Term]map[Triple]struct{}),
	}
	for _, t := range triples {
		g.Add(t)
	}
	return g
}

// Len returns the number of triples (the graph's cardinality).
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.triples)
}

// Has reports whether the triple is in the graph.
func (g *Graph) Has(t Triple) bool {
	if g == nil {
		return false
	}
	_, ok := g.triples[t]
	return ok
}

// Add inserts a triple. Returns true if it was not already present.
func (g *Graph) Add(t Triple) bool {
	if _, ok := g.triples[t]; ok {
		return false
	}
	g.triples[t] = struct{}{}
	index(g.bySubj, t.S, t)
	index(g.byPred, t.P, t)
	return true
}

// Remove deletes a triple. Returns true if it was present.
func (g *Graph) Remove(t Triple) bool {
	if _, ok := g.triples[t]; !ok {
		return false
	}
	delete(g.triples, t)
	unindex(g.bySubj, t.S, t)
	unindex(g.byPred, t.P, t)
	return true
}

// AddGraph unions other into g and returns the number of new triples.
func (g *Graph) AddGraph(other *Graph) int {
	if other == nil {
		return 0
	}
	added := 0
	for t := range other.triples {
		if g.Add(t) {
			added++
		}
	}
	return added
}

// RemoveGraph removes every triple of other from g (set difference) and
// returns the number removed.
func (g *Graph) RemoveGraph(other *Graph) int {
	if other == nil {
		return 0
	}
	removed := 0
	for t := range other.triples {
		if g.Remove(t) {
			removed++
		}
	}
	return removed
}

// Clone returns an independent copy of g.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	c.AddGraph(g)
	return c
}

// Match returns every triple matching the pattern; zero terms are
// wildcards. The result is in stable sorted order.
func (g *Graph) Match(s, p, o Term) []Triple {
	if g == nil {
		return nil
	}
	var candidates map[Triple]struct{}
	switch {
	case !s.IsZero() && !p.IsZero() && !o.IsZero():
		t := Triple{S: s, P: p, O: o}
		if g.Has(t) {
			return []Triple{t}
		}
		return nil
	case !s.IsZero():
		candidates = g.bySubj[s]
	case !p.IsZero():
		candidates = g.byPred[p]
	default:
		candidates = g.triples
	}

	var out []Triple
	for t := range candidates {
		if !p.IsZero() && t.P != p {
			continue
		}
		if !o.IsZero() && t.O != o {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, CompareTriples)
	return out
}

// Triples returns all triples in stable sorted order.
func (g *Graph) Triples() []Triple {
	if g == nil {
		return nil
	}
	out := make([]Triple, 0, len(g.triples))
	for t := range g.triples {
		out = append(out, t)
	}
	slices.SortFunc(out, CompareTriples)
	return out
}

// Equal reports whether both graphs contain exactly the same triples.
func (g *Graph) Equal(other *Graph) bool {
	if g.Len() != other.Len() {
		return false
	}
	if g.Len() == 0 {
		return true
	}
	for t := range g.triples {
		if !other.Has(t) {
			return false
		}
	}
	return true
}

// NTriples serializes the graph as sorted N-Triples, one statement per line.
func (g *Graph) NTriples() string {
	var b strings.Builder
	for _, t := range g.Triples() {
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// String summarizes the graph for error messages.
func (g *Graph) String() string {
	return "graph{size=" + strconv.Itoa(g.Len()) + "}"
}

func index(idx map[Term]map[Triple]struct{}, key Term, t Triple) {
	set, ok := idx[key]
	if !ok {
		set = make(map[Triple]struct{})
		idx[key] = set
	}
	set[t] = struct{}{}
}

func unindex(idx map[Term]map[Triple]struct{}, key Term, t Triple) {
	set := idx[key]
	delete(set, t)
	if len(set) == 0 {
		delete(idx, key)
	}
}
