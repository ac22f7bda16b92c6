// Package harness runs inference scenarios against a real engine.
//
// A scenario declares a schema, coldstart and warm rules and a sequence of
// window result tables. Each window is delivered to a fresh engine backed by
// an in-memory SQLite provenance store, and the harness records what every
// window did: the stage that ran, the resulting lifecycle state and the
// delta that was appended.
//
// # Scenario Format
//
//	name: hot_then_frozen
//	description: "Coldstart classifies hot readings, warm adds frozen ones"
//	prefixes:
//	  fs: "http://foodsafety/ns#"
//	  d: "http://foodsafety/data/"
//	schema_file: foodsafety.ttl
//	rule_files:
//	  coldstart: [hot.ru]
//	  warm: [hot.ru, frozen.ru]
//	retention: all
//	windows:
//	  - rows:
//	      - ["d:R1", "fs:temperature", '"70"^^xsd:double']
//	    expect: { state: warm, delta: 1 }
//	assertions:
//	  - type: store_contains
//	    fact: ["d:R1", "rdf:type", "fs:Hot"]
//	  - type: delta_count
//	    count: 1
//
// Cells written as prefixed names are expanded with the scenario prefixes
// plus rdf, rdfs, xsd and owl. Other cells reach the engine unchanged, so
// literals use N-Triples or Turtle shorthand. Rule and schema files are
// resolved relative to the scenario file.
//
// # Assertion Types
//
//   - final_state: the engine ends in the given lifecycle state
//   - snapshot_size: the last snapshot holds count facts
//   - store_size: the store holds count distinct facts
//   - delta_count: count deltas were appended
//   - store_contains / store_excludes: a fact is (not) in the store
//   - error_kind: some window or the setup failed with the given kind
//
// # Golden Files
//
// Dump renders a result as plain text: one block per window followed by the
// final state and every stored fact in N-Triples order. RunWithGolden
// compares that text against testdata/golden/<name>.golden.
package harness
