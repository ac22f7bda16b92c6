// Package ir holds the shared value types of the provenance pipeline:
// sensor readings, evaluator quadruples and result tables, rule stages,
// compiled engine declarations, the error taxonomy and delta identifiers.
//
// ir imports nothing internal, so every other package can depend on it
// without cycles.
package ir
