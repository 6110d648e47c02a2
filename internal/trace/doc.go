// Package trace is the logging layer of esca.
//
// The escape pass is a batch computation whose interesting moments are phase
// boundaries (role extraction, interprocedural solving), call-graph components
// and per-function refinement rounds. Each of those is a span; fallbacks such
// as a pessimistic summary or an unmapped argument are point events.
//
// Levels gate scopes:
//
//   - LevelPhase: driver and pass spans
//   - LevelDetail: plus one span per call-graph component
//   - LevelDebug: plus per-function rounds and point events
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	sp := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "escape", 0)
//	defer sp.End("")
package trace
