// Package diag defines the diagnostic model shared by the loader, the escape
// pass and the summary store.
//
// Diagnostics report recoverable precision loss: an argument the pass could
// not map, an external callee analysed pessimistically, a component that did
// not converge. Fatal conditions are returned as errors and never go through
// this package.
//
// Producers emit through a Reporter so that emission stays decoupled from
// storage. BagReporter aggregates into a Bag, which supports sorting and
// deduplication for deterministic output. Rendering lives in cmd/esca.
package diag
