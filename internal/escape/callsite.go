package escape

import (
	"fmt"

	"esca/internal/diag"
	"esca/internal/ir"
)

// integrateCall splices the callee summary res into g at call site id.
//
// Summary slots map onto the actual arguments: for a call the arguments
// followed by the call node (the return slot); for an allocation the new
// object (the receiver) followed by the constructor arguments. Drains become
// fresh synthetic nodes.
func (g *pointsToGraph) integrateCall(id ir.NodeID, res *FunctionResult, rep diag.Reporter) {
	call := g.roles.Body.Node(id)
	var args []ir.NodeID
	if call.Kind == ir.NodeNewObject {
		args = append(args, id)
		args = append(args, call.Call.Args...)
	} else {
		args = append(args, call.Call.Args...)
		args = append(args, id)
	}
	drains := make([]*ptNode, res.NumberOfDrains)
	for i := range drains {
		drains[i] = g.newSynthetic()
	}

	unresolved := func(cn CompressedNode) {
		if rep == nil {
			return
		}
		diag.ReportWarning(rep, diag.EscUnresolvedArgument, call.Span,
			fmt.Sprintf("%s: summary node %s of callee does not map to an argument", g.name, cn)).Emit()
	}

	mapNode := func(cn CompressedNode) *ptNode {
		var root *ptNode
		switch cn.Kind {
		case KindReturn:
			if call.Kind == ir.NodeNewObject {
				root = g.nodes[args[0]]
			} else {
				root = g.nodes[args[len(args)-1]]
			}
		case KindParam:
			if cn.Index < len(args) {
				root = g.nodes[args[cn.Index]]
			}
		case KindDrain:
			if cn.Index < len(drains) {
				root = drains[cn.Index]
			}
		}
		if root == nil {
			unresolved(cn)
			return nil
		}
		n := root
		for _, f := range cn.Path {
			if f.Hash == ir.ReturnValue.Hash {
				continue
			}
			n = g.gotoField(n, f)
		}
		return n
	}

	for _, cn := range res.Escapes {
		if n := mapNode(cn); n != nil {
			n.depth = depthEscapes
		}
	}
	for _, e := range res.PointsTo {
		from := mapNode(e.From)
		to := mapNode(e.To)
		if from == nil || to == nil {
			continue
		}
		from.addAssignment(to)
	}
}
