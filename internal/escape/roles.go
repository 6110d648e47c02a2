package escape

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"esca/internal/ir"
	"esca/internal/trace"
)

// Role describes one way a node's value is used inside its function.
type Role uint8

const (
	RoleReturnValue Role = iota
	RoleThrowValue
	// RoleWriteField is set on a receiver; entries name the stored value.
	RoleWriteField
	// RoleReadField is set on a receiver; entries name the read node.
	RoleReadField
	RoleWrittenToGlobal
	// RoleAssigned is set on a variable; entries name its incoming values.
	RoleAssigned

	roleCount
)

var roleNames = [roleCount]string{
	RoleReturnValue:     "RETURN_VALUE",
	RoleThrowValue:      "THROW_VALUE",
	RoleWriteField:      "WRITE_FIELD",
	RoleReadField:       "READ_FIELD",
	RoleWrittenToGlobal: "WRITTEN_TO_GLOBAL",
	RoleAssigned:        "ASSIGNED",
}

func (r Role) String() string {
	if r < roleCount {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", r)
}

// RoleEntry is the payload of a role: the other node involved and, for field
// roles, the field.
type RoleEntry struct {
	Node  ir.NodeID
	Field ir.Field
}

// NodeInfo is the intraprocedural record of one node.
type NodeInfo struct {
	Depth int

	present [roleCount]bool
	entries [roleCount][]RoleEntry
}

// Mark sets role r without an entry.
func (ni *NodeInfo) Mark(r Role) {
	ni.present[r] = true
}

// Add sets role r and appends e to its entries.
func (ni *NodeInfo) Add(r Role, e RoleEntry) {
	ni.present[r] = true
	ni.entries[r] = append(ni.entries[r], e)
}

func (ni *NodeInfo) Has(r Role) bool {
	return ni != nil && ni.present[r]
}

func (ni *NodeInfo) Entries(r Role) []RoleEntry {
	if ni == nil {
		return nil
	}
	return ni.entries[r]
}

// Escapes reports whether the value leaves the function unconditionally.
func (ni *NodeInfo) Escapes() bool {
	return ni.Has(RoleWrittenToGlobal) || ni.Has(RoleThrowValue)
}

// Roles lists the roles set on ni in declaration order.
func (ni *NodeInfo) Roles() []Role {
	var out []Role
	for r := range roleCount {
		if ni.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// FunctionRoles is the output of role extraction for one body.
type FunctionRoles struct {
	Func  ir.FuncID
	Body  *ir.Function
	Infos map[ir.NodeID]*NodeInfo
	// Order lists the non-scope nodes in scope pre-order.
	Order []ir.NodeID
}

// Info returns the record of id or nil.
func (fr *FunctionRoles) Info(id ir.NodeID) *NodeInfo {
	return fr.Infos[id]
}

// ExtractRoles computes depths and roles for every non-scope node of fn.
func ExtractRoles(m *ir.Module, fn *ir.Function) (fr *FunctionRoles, err error) {
	defer recoverInvariant(&err)
	name := m.FuncName(fn.Sym)
	fr = &FunctionRoles{
		Func:  fn.Sym,
		Body:  fn,
		Infos: make(map[ir.NodeID]*NodeInfo, len(fn.Nodes)),
		Order: make([]ir.NodeID, 0, len(fn.Nodes)),
	}
	fn.Walk(func(id ir.NodeID, depth int) {
		fr.Infos[id] = &NodeInfo{Depth: depth}
		fr.Order = append(fr.Order, id)
	})

	info := func(id ir.NodeID) *NodeInfo {
		ni := fr.Infos[id]
		if ni == nil {
			fatalf(name, "no node info for node %d", id)
		}
		return ni
	}

	for _, id := range fn.Returns {
		info(id).Mark(RoleReturnValue)
	}
	for _, id := range fn.Throws {
		info(id).Mark(RoleThrowValue)
	}
	for _, id := range fr.Order {
		n := fn.Node(id)
		switch n.Kind {
		case ir.NodeFieldWrite:
			w := &n.FieldWrite
			if w.Receiver == ir.NoNodeID {
				info(w.Value).Mark(RoleWrittenToGlobal)
			} else {
				info(w.Receiver).Add(RoleWriteField, RoleEntry{Node: w.Value, Field: w.Field})
			}
		case ir.NodeSingleton:
			if n.Singleton.Type != m.Nothing {
				info(id).Mark(RoleWrittenToGlobal)
			}
		case ir.NodeFieldRead:
			r := &n.FieldRead
			if r.Receiver == ir.NoNodeID {
				info(id).Mark(RoleWrittenToGlobal)
			} else {
				info(r.Receiver).Add(RoleReadField, RoleEntry{Node: id, Field: r.Field})
			}
		case ir.NodeArrayWrite:
			w := &n.ArrayWrite
			info(w.Array).Add(RoleWriteField, RoleEntry{Node: w.Value, Field: ir.ArrayContents})
		case ir.NodeArrayRead:
			info(n.ArrayRead.Array).Add(RoleReadField, RoleEntry{Node: id, Field: ir.ArrayContents})
		case ir.NodeVariable:
			ni := info(id)
			for _, v := range n.Variable.Values {
				ni.Add(RoleAssigned, RoleEntry{Node: v})
			}
		case ir.NodeParameter, ir.NodeCall, ir.NodeNewObject, ir.NodeConst:
		default:
			fatalf(name, "unexpected %s node %d in scope walk", n.Kind, id)
		}
	}
	return fr, nil
}

// ExtractAll runs ExtractRoles for every body of m. Bodies are independent, so
// up to jobs of them are processed at once; jobs <= 0 means no limit.
func ExtractAll(ctx context.Context, m *ir.Module, jobs int) (map[ir.FuncID]*FunctionRoles, error) {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, "roles", trace.ParentFromContext(ctx))
	defer span.End("")

	ids := m.Bodies()
	out := make([]*FunctionRoles, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr, err := ExtractRoles(m, m.Funcs[id])
			if err != nil {
				return err
			}
			out[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res := make(map[ir.FuncID]*FunctionRoles, len(ids))
	for i, id := range ids {
		res[id] = out[i]
	}
	span.WithExtra("funcs", fmt.Sprint(len(ids)))
	return res, nil
}
