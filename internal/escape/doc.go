// Package escape implements the interprocedural escape analysis.
//
// The pass runs in two stages. Role extraction walks each body once and
// records, per node, its scope depth and how the value is used (returned,
// thrown, stored into a field, read from a field, written to a global,
// assigned into a variable). The interprocedural stage then visits call-graph
// components callee-first; for every function it builds a points-to graph from
// the roles, splices in the summaries of its callees, collapses the graph into
// drains and compresses it into a FunctionResult expressed in terms of the
// function's own parameters, return value and drains. Functions of one
// recursive component are refined until their summaries stop changing; a
// function whose summary changes twice falls back to the pessimistic summary.
//
// After a component settles, every allocation-like node gets a Lifetime:
// STACK, LOCAL, RETURN_VALUE or GLOBAL.
package escape
