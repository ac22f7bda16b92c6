package testutil

import (
	"os"
	"path/filepath"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
)

// Food-safety vocabulary shared by tests.
const (
	NS     = "http://foodsafety/ns#"
	DataNS = "http://foodsafety/data/"
)

// Schema is a small food-safety schema: readings, two risk classes and the
// reading properties with their domains.
const Schema = `
@prefix fs:   <http://foodsafety/ns#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .

fs:Reading a rdfs:Class .
fs:Risk    a rdfs:Class .
fs:Hot     rdfs:subClassOf fs:Risk .
fs:Frozen  rdfs:subClassOf fs:Risk .

fs:temperature rdfs:domain fs:Reading ;
               rdfs:range  xsd:double .
fs:probe       rdfs:domain fs:Reading .
`

// HotRule classifies readings above 60 degrees as Hot.
const HotRule = `
PREFIX fs: <http://foodsafety/ns#>
INSERT { ?r a fs:Hot } WHERE { ?r fs:temperature ?t FILTER(?t > 60) }
`

// FrozenRule classifies readings below 0 degrees as Frozen.
const FrozenRule = `
PREFIX fs: <http://foodsafety/ns#>
INSERT { ?r a fs:Frozen } WHERE { ?r fs:temperature ?t FILTER(?t < 0) }
`

// Stream is the sensor stream the fixtures publish on.
const Stream = "http://foodsafety/ssn"

// TemperatureQuery windows reading temperatures into ten-second tumbling
// windows.
const TemperatureQuery = `
REGISTER QUERY temperature AS
PREFIX fs: <http://foodsafety/ns#>
CONSTRUCT { ?r fs:temperature ?t }
FROM STREAM <http://foodsafety/ssn> [RANGE 10s STEP 10s]
WHERE { ?r fs:temperature ?t }
`

// EngineCUE declares one engine over the files WriteSpecDir creates.
const EngineCUE = `package pipeline

engine: temperature: {
	stream: "http://foodsafety/ssn"
	query:  "queries/temperature.rq"
	window: "10s"
	slide:  "10s"
	schema: "schema/foodsafety.ttl"
	rules: {
		coldstart: ["rules/hot.ru"]
		warm:      ["rules/hot.ru", "rules/frozen.ru"]
	}
}
`

// SpecFiles maps the relative paths of a complete spec directory to their
// contents.
func SpecFiles() map[string]string {
	return map[string]string{
		"engines.cue":            EngineCUE,
		"queries/temperature.rq": TemperatureQuery,
		"schema/foodsafety.ttl":  Schema,
		"rules/hot.ru":           HotRule,
		"rules/frozen.ru":        FrozenRule,
	}
}

// WriteSpecDir writes files below dir, creating parent directories.
func WriteSpecDir(dir string, files map[string]string) error {
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ReadingIRI names reading id in the data namespace.
func ReadingIRI(id string) string {
	return DataNS + id
}

// Reading returns the window rows asserting that reading id measured temp,
// in the shape the windowed evaluator emits: bare IRIs, N-Triples literals.
func Reading(id string, temp float64) ir.Table {
	return ir.Table{Rows: []ir.Row{
		{ReadingIRI(id), NS + "temperature", rdf.Double(temp).String()},
		{ReadingIRI(id), NS + "probe", DataNS + "probe/" + id},
	}}
}

// Window concatenates the rows of several tables.
func Window(tables ...ir.Table) ir.Table {
	var out ir.Table
	for _, t := range tables {
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}

// Classified is the fact "reading id is a class", e.g. Classified("R1", "Hot").
func Classified(id, class string) rdf.Triple {
	return rdf.NewTriple(rdf.IRI(ReadingIRI(id)), rdf.IRI(rdf.RDFType), rdf.IRI(NS+class))
}
