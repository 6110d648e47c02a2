package escape

import (
	"esca/internal/ir"
)

// Depth sentinels. Smaller means "escapes further"; real scope depths are >= 0.
const (
	depthInfinity    = 1_000_000
	depthReturnValue = -1
	depthParameter   = -2
	depthEscapes     = -3
)

// reach is the classification of a graph node derived from its depth.
type reach uint8

const (
	reachStack reach = iota
	reachLocal
	reachParameter
	reachReturnValue
	reachEscapes
)

func (r reach) String() string {
	switch r {
	case reachStack:
		return "stack"
	case reachLocal:
		return "local"
	case reachParameter:
		return "parameter"
	case reachReturnValue:
		return "return"
	case reachEscapes:
		return "escapes"
	}
	return "?"
}

// ptEdge is an assignment edge when field is ir.NoField and a field edge
// otherwise.
type ptEdge struct {
	to    *ptNode
	field ir.Field
}

func (e ptEdge) isAssignment() bool { return e.field.IsNone() }

// ptNode is a points-to graph node. Nodes without an IR node are synthetic:
// field children, callee drains, collapsed drains and merge nodes.
type ptNode struct {
	id int
	ir ir.NodeID

	// baseDepth is the depth the node started with; a node whose depth was
	// lowered to a real scope depth is local rather than stack.
	baseDepth int
	depth     int

	edges []ptEdge
	// reversed holds assignment edges only.
	reversed []ptEdge
	fields   map[ir.Field]*ptNode
	drain    *ptNode
}

func (n *ptNode) synthetic() bool { return n.ir == ir.NoNodeID }

func (n *ptNode) kind() reach {
	switch {
	case n.depth == depthEscapes:
		return reachEscapes
	case n.depth == depthParameter:
		return reachParameter
	case n.depth == depthReturnValue:
		return reachReturnValue
	case n.depth != n.baseDepth:
		return reachLocal
	}
	return reachStack
}

func (n *ptNode) addAssignment(to *ptNode) {
	n.edges = append(n.edges, ptEdge{to: to})
	to.reversed = append(to.reversed, ptEdge{to: n})
}

func (n *ptNode) hasAssignment() bool {
	for _, e := range n.edges {
		if e.isAssignment() {
			return true
		}
	}
	return false
}

func (n *ptNode) pointsAt(other *ptNode) bool {
	for _, e := range n.edges {
		if e.to == other {
			return true
		}
	}
	return false
}

// pointsToGraph is the live graph of one function. It survives across the
// refinement rounds of its component, so call-site edges accumulate.
type pointsToGraph struct {
	name   string
	sym    *ir.FuncSymbol
	roles  *FunctionRoles
	all    []*ptNode
	nodes  map[ir.NodeID]*ptNode
	params []*ptNode

	returns      *ptNode
	returnValues map[*ptNode]bool
}

func (g *pointsToGraph) fatalf(format string, args ...any) {
	fatalf(g.name, format, args...)
}

// newNode appends a node. info is nil for synthetic nodes.
func (g *pointsToGraph) newNode(id ir.NodeID, kind ir.NodeKind, info *NodeInfo) *ptNode {
	n := &ptNode{id: len(g.all), ir: id, baseDepth: depthInfinity}
	if info != nil {
		n.baseDepth = info.Depth
	}
	switch {
	case info.Escapes():
		n.depth = depthEscapes
	case kind == ir.NodeParameter:
		n.depth = depthParameter
	case info.Has(RoleReturnValue):
		n.depth = depthReturnValue
	default:
		n.depth = n.baseDepth
	}
	g.all = append(g.all, n)
	return n
}

func (g *pointsToGraph) newSynthetic() *ptNode {
	return g.newNode(ir.NoNodeID, ir.NodeInvalid, nil)
}

// gotoField returns the child of n for field f, creating it with a field
// edge on first use. The child stays registered on n after the edge itself
// has moved to a drain.
func (g *pointsToGraph) gotoField(n *ptNode, f ir.Field) *ptNode {
	if c, ok := n.fields[f]; ok {
		return c
	}
	c := g.newSynthetic()
	if n.fields == nil {
		n.fields = make(map[ir.Field]*ptNode)
	}
	n.fields[f] = c
	n.edges = append(n.edges, ptEdge{to: c, field: f})
	return c
}

func (g *pointsToGraph) node(id ir.NodeID) *ptNode {
	n := g.nodes[id]
	if n == nil {
		g.fatalf("node %d has no graph node", id)
	}
	return n
}

// newPointsToGraph seeds the graph from the roles of one body.
func newPointsToGraph(m *ir.Module, fr *FunctionRoles) *pointsToGraph {
	sym := m.Symbol(fr.Func)
	g := &pointsToGraph{
		name:         sym.Name,
		sym:          sym,
		roles:        fr,
		nodes:        make(map[ir.NodeID]*ptNode, len(fr.Order)),
		returnValues: make(map[*ptNode]bool),
	}
	retInfo := &NodeInfo{Depth: depthInfinity}
	retInfo.Mark(RoleReturnValue)
	g.returns = g.newNode(ir.NoNodeID, ir.NodeInvalid, retInfo)

	body := fr.Body
	for _, id := range fr.Order {
		g.nodes[id] = g.newNode(id, body.Node(id).Kind, fr.Info(id))
	}
	for _, id := range fr.Order {
		n := g.nodes[id]
		info := fr.Info(id)
		for _, e := range info.Entries(RoleAssigned) {
			n.addAssignment(g.node(e.Node))
		}
		for _, e := range info.Entries(RoleWriteField) {
			g.gotoField(n, e.Field).addAssignment(g.node(e.Node))
		}
		for _, e := range info.Entries(RoleReadField) {
			g.node(e.Node).addAssignment(g.gotoField(n, e.Field))
		}
		if info.Has(RoleReturnValue) {
			g.gotoField(g.returns, ir.ReturnValue).addAssignment(n)
			g.returnValues[n] = true
		}
	}

	g.params = make([]*ptNode, sym.NumParams+1)
	for _, id := range body.Nodes[body.Root].Scope.Nodes {
		n := body.Node(id)
		if n.Kind == ir.NodeParameter && n.Parameter.Index < sym.NumParams {
			g.params[n.Parameter.Index] = g.nodes[id]
		}
	}
	for i := range sym.NumParams {
		if g.params[i] == nil {
			p := g.newSynthetic()
			p.depth = depthParameter
			g.params[i] = p
		}
	}
	g.params[sym.NumParams] = g.returns

	if bits := sym.Bits; bits != nil {
		for i := 0; i <= sym.NumParams && i < 32; i++ {
			if bits.Escapes&(1<<uint(i)) != 0 {
				g.params[i].depth = depthEscapes
			}
		}
	}
	return g
}

// isReturned reports whether n is one of the values the function returns.
func (g *pointsToGraph) isReturned(n *ptNode) bool {
	return g.returnValues[n]
}
