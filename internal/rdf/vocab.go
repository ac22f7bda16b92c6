package rdf

// Namespace IRIs.
const (
	NamespaceRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	NamespaceXSD  = "http://www.w3.org/2001/XMLSchema#"
	NamespaceOWL  = "http://www.w3.org/2002/07/owl#"
)

// RDF and RDFS vocabulary used by the reasoner and the rule language.
const (
	RDFType           = NamespaceRDF + "type"
	RDFProperty       = NamespaceRDF + "Property"
	RDFLangString     = NamespaceRDF + "langString"
	RDFSSubClassOf    = NamespaceRDFS + "subClassOf"
	RDFSSubPropertyOf = NamespaceRDFS + "subPropertyOf"
	RDFSDomain        = NamespaceRDFS + "domain"
	RDFSRange         = NamespaceRDFS + "range"
	RDFSClass         = NamespaceRDFS + "Class"
	RDFSResource      = NamespaceRDFS + "Resource"
)

// XSD datatypes.
const (
	XSDString   = NamespaceXSD + "string"
	XSDBoolean  = NamespaceXSD + "boolean"
	XSDInteger  = NamespaceXSD + "integer"
	XSDInt      = NamespaceXSD + "int"
	XSDLong     = NamespaceXSD + "long"
	XSDDecimal  = NamespaceXSD + "decimal"
	XSDDouble   = NamespaceXSD + "double"
	XSDFloat    = NamespaceXSD + "float"
	XSDDateTime = NamespaceXSD + "dateTime"
)

var numericTypes = map[string]bool{
	XSDInteger: true,
	XSDInt:     true,
	XSDLong:    true,
	XSDDecimal: true,
	XSDDouble:  true,
	XSDFloat:   true,
}

// DefaultPrefixes are available to every schema and rule text without
// an explicit declaration.
var DefaultPrefixes = map[string]string{
	"rdf":  NamespaceRDF,
	"rdfs": NamespaceRDFS,
	"xsd":  NamespaceXSD,
	"owl":  NamespaceOWL,
}
