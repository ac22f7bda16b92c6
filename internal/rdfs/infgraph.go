// Package rdfs materializes the RDFS subset of schema entailment used by the
// provenance engine: subclass and subproperty hierarchies plus domain and
// range typing.
//
// Rules applied (names follow the RDF Semantics recommendation):
//
//	rdfs2   p rdfs:domain c . x p y .        => x rdf:type c .
//	rdfs3   p rdfs:range c .  x p y .        => y rdf:type c .   (y not a literal)
//	rdfs5   p subPropertyOf q . q subPropertyOf r . => p subPropertyOf r .
//	rdfs7   p subPropertyOf q . x p y .      => x q y .
//	rdfs9   c subClassOf d . x rdf:type c .  => x rdf:type d .
//	rdfs11  c subClassOf d . d subClassOf e . => c subClassOf e .
//
// Closure is maintained incrementally: every added triple is pushed through a
// worklist and joined against the current closure until nothing new appears.
package rdfs

import (
	"github.com/roach88/provstream/internal/rdf"
)

var (
	rdfType       = rdf.IRI(rdf.RDFType)
	subClassOf    = rdf.IRI(rdf.RDFSSubClassOf)
	subPropertyOf = rdf.IRI(rdf.RDFSSubPropertyOf)
	domain        = rdf.IRI(rdf.RDFSDomain)
	rangeOf       = rdf.IRI(rdf.RDFSRange)
)

// InfGraph is a base graph combined with a schema under RDFS entailment.
// Like rdf.Graph it is not safe for concurrent use.
type InfGraph struct {
	schema  *rdf.Graph
	base    *rdf.Graph
	closure *rdf.Graph

	// schemaClosure is the entailment of the schema alone, kept so Reset
	// does not have to re-derive it.
	schemaClosure *rdf.Graph
}

// NewInfGraph builds the entailment of schema over an empty base graph.
func NewInfGraph(schema *rdf.Graph) *InfGraph {
	if schema == nil {
		schema = rdf.NewGraph()
	}
	g := &InfGraph{
		schema:  schema.Clone(),
		base:    rdf.NewGraph(),
		closure: rdf.NewGraph(),
	}
	for _, t := range g.schema.Triples() {
		g.assert(t)
	}
	g.schemaClosure = g.closure.Clone()
	return g
}

// Add asserts a base triple. Returns the number of triples that entered
// the closure (the triple itself plus anything it entails).
func (g *InfGraph) Add(t rdf.Triple) int {
	g.base.Add(t)
	return g.assert(t)
}

// AddGraph asserts every triple of other.
func (g *InfGraph) AddGraph(other *rdf.Graph) int {
	n := 0
	for _, t := range other.Triples() {
		n += g.Add(t)
	}
	return n
}

// Reset drops all base triples, keeping the schema and its entailments.
func (g *InfGraph) Reset() {
	g.base = rdf.NewGraph()
	g.closure = g.schemaClosure.Clone()
}

// All returns the closure: base, schema and every entailed triple. The
// returned graph is owned by g and must not be modified.
func (g *InfGraph) All() *rdf.Graph { return g.closure }

// Base returns the asserted triples only.
func (g *InfGraph) Base() *rdf.Graph { return g.base }

// Schema returns the schema triples.
func (g *InfGraph) Schema() *rdf.Graph { return g.schema }

// Len returns the size of the closure.
func (g *InfGraph) Len() int { return g.closure.Len() }

func (g *InfGraph) assert(t rdf.Triple) int {
	if !g.closure.Add(t) {
		return 0
	}
	added := 1
	queue := []rdf.Triple{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.consequences(cur) {
			if !d.IsValid() {
				continue
			}
			if g.closure.Add(d) {
				added++
				queue = append(queue, d)
			}
		}
	}
	return added
}

// consequences joins t against the closure under each rule in which t can
// take part.
func (g *InfGraph) consequences(t rdf.Triple) []rdf.Triple {
	var out []rdf.Triple
	wild := rdf.Term{}
	c := g.closure

	switch t.P {
	case rdfType:
		// rdfs9, t as the instance triple.
		for _, sc := range c.Match(t.O, subClassOf, wild) {
			out = append(out, rdf.NewTriple(t.S, rdfType, sc.O))
		}
	case subClassOf:
		// rdfs9, t as the schema triple.
		for _, inst := range c.Match(wild, rdfType, t.S) {
			out = append(out, rdf.NewTriple(inst.S, rdfType, t.O))
		}
		// rdfs11 in both directions.
		for _, up := range c.Match(t.O, subClassOf, wild) {
			out = append(out, rdf.NewTriple(t.S, subClassOf, up.O))
		}
		for _, down := range c.Match(wild, subClassOf, t.S) {
			out = append(out, rdf.NewTriple(down.S, subClassOf, t.O))
		}
	case subPropertyOf:
		// rdfs7, t as the schema triple.
		for _, use := range c.Match(wild, t.S, wild) {
			out = append(out, rdf.NewTriple(use.S, t.O, use.O))
		}
		// rdfs5 in both directions.
		for _, up := range c.Match(t.O, subPropertyOf, wild) {
			out = append(out, rdf.NewTriple(t.S, subPropertyOf, up.O))
		}
		for _, down := range c.Match(wild, subPropertyOf, t.S) {
			out = append(out, rdf.NewTriple(down.S, subPropertyOf, t.O))
		}
	case domain:
		for _, use := range c.Match(wild, t.S, wild) {
			out = append(out, rdf.NewTriple(use.S, rdfType, t.O))
		}
	case rangeOf:
		for _, use := range c.Match(wild, t.S, wild) {
			if use.O.IsResource() {
				out = append(out, rdf.NewTriple(use.O, rdfType, t.O))
			}
		}
	}

	// Every triple is also an instance of its predicate.
	for _, sp := range c.Match(t.P, subPropertyOf, wild) {
		out = append(out, rdf.NewTriple(t.S, sp.O, t.O))
	}
	for _, d := range c.Match(t.P, domain, wild) {
		out = append(out, rdf.NewTriple(t.S, rdfType, d.O))
	}
	if t.O.IsResource() {
		for _, r := range c.Match(t.P, rangeOf, wild) {
			out = append(out, rdf.NewTriple(t.O, rdfType, r.O))
		}
	}
	return out
}
