// Package engine implements the provenance inference engine.
//
// An engine instance owns a schema, two ordered rule sequences (coldstart
// and warm), a working graph of asserted facts under RDFS entailment, and
// the snapshot of facts it inferred last. Each window result table is
// converted to facts, merged into the working graph, and run through the
// rules; what the rules derive beyond their input is the window's delta,
// which becomes the new snapshot and is appended to the provenance store.
//
// ARCHITECTURE:
//
// Lifecycle:
//
//	Uninitialized -> ColdstartPending -> Warm
//
// LoadSchema moves an instance out of Uninitialized. The first window runs
// the coldstart rules, which must infer at least one fact; every later
// window runs the warm rules on top of the previous snapshot. Any fatal
// error moves the instance to Failed, which rejects all further windows.
//
// Window Delivery:
// OnWindow is the synchronous contract: it processes one window inside the
// instance's critical section, so overlapping callers serialize. Deliver
// and Run are the asynchronous path: Deliver puts a window on a bounded
// FIFO queue (blocking while it is full) and Run consumes it one window at
// a time. Callback wraps Deliver for evaluator subscriptions.
//
// Distinct instances share nothing but the provenance store, which is safe
// for concurrent appenders.
//
// Windows are numbered by a per-instance Clock. The number goes into the
// delta ID, so a delta is identified by engine, window and content.
package engine
