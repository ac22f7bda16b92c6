// Package assembler maps sensor readings to fact graphs in the
// food-safety vocabulary.
package assembler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
)

// Vocabulary terms.
const (
	NS          = "http://foodsafety/ns#"
	DefaultBase = "http://foodsafety/data/"

	ClassReading   = NS + "Reading"
	PropProbe      = NS + "probe"
	PropTemp       = NS + "temperature"
	PropObservedAt = NS + "observedAt"
)

// Assembler builds reading graphs under a base IRI.
type Assembler struct {
	base string
}

// New creates an assembler minting IRIs under base. An empty base uses
// DefaultBase.
func New(base string) *Assembler {
	if base == "" {
		base = DefaultBase
	}
	return &Assembler{base: base}
}

// ReadingIRI names one observation: <base>reading/<id>/<unix seconds>.
func (a *Assembler) ReadingIRI(r ir.Reading) string {
	return fmt.Sprintf("%sreading/%d/%d", a.base, r.ID, r.Timestamp.Unix())
}

// ProbeIRI names the probe that took a reading.
func (a *Assembler) ProbeIRI(id int) string {
	return a.base + "probe/" + strconv.Itoa(id)
}

// Assemble returns the fact graph of one reading.
func (a *Assembler) Assemble(r ir.Reading) *rdf.Graph {
	obs := rdf.IRI(a.ReadingIRI(r))
	return rdf.NewGraph(
		rdf.NewTriple(obs, rdf.IRI(rdf.RDFType), rdf.IRI(ClassReading)),
		rdf.NewTriple(obs, rdf.IRI(PropProbe), rdf.IRI(a.ProbeIRI(r.ID))),
		rdf.NewTriple(obs, rdf.IRI(PropTemp), rdf.Double(r.Value)),
		rdf.NewTriple(obs, rdf.IRI(PropObservedAt), rdf.TypedLiteral(r.Timestamp.Format(time.RFC3339), rdf.XSDDateTime)),
	)
}
