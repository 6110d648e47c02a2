package escape

import (
	"bytes"
	"fmt"
	"strconv"
)

// dot renders g in Graphviz syntax. Drains are boxes, assignment edges are
// dashed, field edges carry the field name.
func (g *pointsToGraph) dot() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "digraph %s {\n", strconv.Quote(g.name))
	b.WriteString("  rankdir=LR;\n")
	for _, n := range g.all {
		label := fmt.Sprintf("#%d", n.id)
		switch {
		case n == g.returns:
			label = "RET"
		case !n.synthetic():
			label = fmt.Sprintf("n%d", n.ir)
		}
		shape := "ellipse"
		if n.drain == n {
			shape = "box"
		}
		fmt.Fprintf(&b, "  n%d [label=\"%s\\n%s\" shape=%s];\n", n.id, label, n.kind(), shape)
	}
	for _, n := range g.all {
		for _, e := range n.edges {
			if e.isAssignment() {
				fmt.Fprintf(&b, "  n%d -> n%d [style=dashed];\n", n.id, e.to.id)
				continue
			}
			fmt.Fprintf(&b, "  n%d -> n%d [label=%s];\n", n.id, e.to.id, strconv.Quote(e.field.String()))
		}
	}
	b.WriteString("}\n")
	return b.Bytes()
}
