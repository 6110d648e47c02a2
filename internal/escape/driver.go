package escape

import (
	"context"
	"fmt"

	"esca/internal/callgraph"
	"esca/internal/diag"
	"esca/internal/ir"
	"esca/internal/trace"
)

// Options configures Analyze.
type Options struct {
	Policy Policy
	// Imports resolves callees declared external to the module. May be nil.
	Imports SummaryReader
	// Reporter receives precision-loss diagnostics. May be nil.
	Reporter diag.Reporter
	// Jobs bounds parallel role extraction; <= 0 means unbounded.
	Jobs int
	// Graph, if set, receives the Graphviz rendering of every function's
	// final points-to graph.
	Graph func(fn string, dot []byte)
}

// FunctionStats counts the work spent on one function.
type FunctionStats struct {
	Runs        int
	Refinements int
	Pessimistic bool
}

// Result is the output of Analyze.
type Result struct {
	Summaries map[ir.FuncID]*FunctionResult
	Lifetimes map[ir.ElementID]Lifetime
	Stats     map[ir.FuncID]FunctionStats
}

// Lifetime returns the lifetime published for elem.
func (res *Result) Lifetime(elem ir.ElementID) (Lifetime, bool) {
	lt, ok := res.Lifetimes[elem]
	return lt, ok
}

type analyzer struct {
	m      *ir.Module
	cg     *callgraph.Graph
	roles  map[ir.FuncID]*FunctionRoles
	opts   Options
	rep    diag.Reporter
	tracer trace.Tracer
	res    *Result
}

// Analyze runs the pass over every body of m. Components of the call graph
// are solved callees first; a component only reads the summaries of the
// components finished before it.
func Analyze(ctx context.Context, m *ir.Module, opts Options) (res *Result, err error) {
	defer recoverInvariant(&err)

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, "escape", trace.ParentFromContext(ctx))
	defer func() {
		if err != nil {
			span.End("failed")
			return
		}
		span.End("")
	}()
	ctx = trace.WithParent(ctx, span.ID())

	roles, err := ExtractAll(ctx, m, opts.Jobs)
	if err != nil {
		return nil, fmt.Errorf("role extraction: %w", err)
	}
	cg := callgraph.Build(m)
	comps, err := cg.Components()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvariant, err)
	}

	a := &analyzer{
		m:      m,
		cg:     cg,
		roles:  roles,
		opts:   opts,
		rep:    diag.NewDedupReporter(opts.Reporter),
		tracer: tracer,
		res: &Result{
			Summaries: make(map[ir.FuncID]*FunctionResult, len(m.Funcs)),
			Lifetimes: make(map[ir.ElementID]Lifetime),
			Stats:     make(map[ir.FuncID]FunctionStats, len(m.Funcs)),
		},
	}
	if a.opts.Policy.StackArrayLimit == 0 {
		a.opts.Policy.StackArrayLimit = DefaultStackArrayLimit
	}

	done := make(map[ir.FuncID]*FunctionResult, len(m.Funcs))
	for i := len(comps) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for fn, r := range a.solve(ctx, comps[i], done) {
			done[fn] = r
		}
	}
	a.res.Summaries = done
	span.WithExtra("components", fmt.Sprint(len(comps)))
	return a.res, nil
}

// workQueue is an insertion-ordered set; re-adding a queued function keeps
// its position.
type workQueue struct {
	items  []ir.FuncID
	queued map[ir.FuncID]bool
}

func (q *workQueue) push(fn ir.FuncID) {
	if q.queued[fn] {
		return
	}
	q.queued[fn] = true
	q.items = append(q.items, fn)
}

func (q *workQueue) pop() ir.FuncID {
	fn := q.items[0]
	q.items = q.items[1:]
	delete(q.queued, fn)
	return fn
}

// solve iterates one component to a fixed point and publishes its lifetimes.
// done holds the final summaries of earlier components and is not modified.
func (a *analyzer) solve(ctx context.Context, comp callgraph.Component, done map[ir.FuncID]*FunctionResult) map[ir.FuncID]*FunctionResult {
	span := trace.Begin(a.tracer, trace.ScopeComponent, fmt.Sprintf("component#%d", comp.Index), trace.ParentFromContext(ctx))

	graphs := make(map[ir.FuncID]*pointsToGraph, len(comp.Funcs))
	current := make(map[ir.FuncID]*FunctionResult, len(comp.Funcs))
	active := make(map[ir.FuncID]bool, len(comp.Funcs))
	runs := make(map[ir.FuncID]int, len(comp.Funcs))
	queue := &workQueue{queued: make(map[ir.FuncID]bool)}
	for _, fn := range comp.Funcs {
		fr, ok := a.roles[fn]
		if !ok {
			continue
		}
		graphs[fn] = newPointsToGraph(a.m, fr)
		current[fn] = Optimistic()
		active[fn] = true
		queue.push(fn)
	}

	for len(queue.items) > 0 {
		fn := queue.pop()
		runs[fn]++
		stats := a.res.Stats[fn]
		stats.Runs = runs[fn]

		fspan := trace.Begin(a.tracer, trace.ScopeFunction, a.m.FuncName(fn), span.ID())
		start := current[fn]
		end := a.analyzeFunction(graphs[fn], fn, current, done)
		current[fn] = end
		if start.Equal(end) {
			fspan.End("stable")
			a.res.Stats[fn] = stats
			continue
		}
		stats.Refinements++
		if runs[fn] > 1 {
			sym := a.m.Symbol(fn)
			current[fn] = Pessimistic(sym.NumParams)
			delete(active, fn)
			stats.Pessimistic = true
			diag.ReportWarning(a.rep, diag.EscNotConverged, sym.Span,
				fmt.Sprintf("%s: summary still changing after %d runs", sym.Name, runs[fn])).Emit()
			trace.Point(a.tracer, trace.ScopeFunction, "pessimistic", sym.Name, fspan.ID())
		}
		fspan.End("refined")
		a.res.Stats[fn] = stats
		for _, caller := range a.cg.ReversedEdges[fn] {
			if active[caller] {
				queue.push(caller)
			}
		}
	}

	for _, fn := range comp.Funcs {
		g := graphs[fn]
		if g == nil {
			continue
		}
		g.publishLifetimes(a.m, a.opts.Policy, a.res.Lifetimes, a.rep)
		if a.opts.Graph != nil {
			a.opts.Graph(g.name, g.dot())
		}
	}
	span.End(fmt.Sprintf("%d funcs", len(graphs)))
	return current
}

func (a *analyzer) analyzeFunction(g *pointsToGraph, fn ir.FuncID, current, done map[ir.FuncID]*FunctionResult) *FunctionResult {
	for _, cs := range a.cg.DirectEdges[fn].CallSites {
		g.integrateCall(cs.Call, a.calleeResult(g, cs, current, done), a.rep)
	}
	return g.buildClosure()
}

// calleeResult picks the summary used at one call site.
func (a *analyzer) calleeResult(g *pointsToGraph, cs callgraph.CallSite, current, done map[ir.FuncID]*FunctionResult) *FunctionResult {
	sym := a.m.Symbol(cs.Callee)
	if sym == nil {
		g.fatalf("call site %d: unknown callee %d", cs.Call, cs.Callee)
	}
	span := g.roles.Body.Node(cs.Call).Span
	if cs.Virtual {
		diag.ReportInfo(a.rep, diag.EscVirtualCall, span,
			fmt.Sprintf("%s: virtual call to %s", g.name, sym.Name)).Emit()
		return Pessimistic(sym.NumParams)
	}
	if r, ok := current[cs.Callee]; ok {
		return r
	}
	if r, ok := done[cs.Callee]; ok {
		return r
	}
	if a.opts.Imports != nil {
		sum, err := a.opts.Imports.ReadSummary(sym.Name)
		switch {
		case err != nil:
			diag.ReportWarning(a.rep, diag.SumCorrupt, span,
				fmt.Sprintf("summary of %s unusable: %v", sym.Name, err)).Emit()
		case sum != nil && sum.NumParams != sym.NumParams:
			diag.ReportWarning(a.rep, diag.SumParamMismatch, span,
				fmt.Sprintf("summary of %s has %d parameters, declaration has %d", sym.Name, sum.NumParams, sym.NumParams)).Emit()
		case sum != nil:
			return sum.Result
		}
	}
	if sym.Bits != nil {
		masks := make([]uint32, sym.NumParams+1)
		copy(masks, sym.Bits.PointsTo)
		r, err := FromBits(sym.Bits.Escapes, masks)
		if err != nil {
			g.fatalf("escape bits of %s: %v", sym.Name, err)
		}
		return r
	}
	diag.ReportInfo(a.rep, diag.EscExternalPessimistic, span,
		fmt.Sprintf("%s: no summary for %s", g.name, sym.Name)).Emit()
	trace.Point(a.tracer, trace.ScopeFunction, "external-pessimistic", sym.Name, 0)
	return Pessimistic(sym.NumParams)
}
