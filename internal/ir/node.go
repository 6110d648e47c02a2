package ir

import "esca/internal/source"

// NodeKind enumerates data-flow node kinds.
type NodeKind uint8

const (
	NodeInvalid NodeKind = iota
	// NodeParameter is a formal parameter of the enclosing function.
	NodeParameter
	// NodeCall is a direct or virtual call; its value is the call result.
	NodeCall
	// NodeNewObject allocates an object and runs its constructor.
	NodeNewObject
	NodeFieldRead
	NodeFieldWrite
	NodeArrayRead
	NodeArrayWrite
	// NodeVariable merges several values (phi).
	NodeVariable
	NodeSingleton
	NodeConst
	// NodeScope groups nodes; scopes nest.
	NodeScope
)

var nodeKindNames = [...]string{
	NodeInvalid:    "invalid",
	NodeParameter:  "param",
	NodeCall:       "call",
	NodeNewObject:  "new",
	NodeFieldRead:  "field_read",
	NodeFieldWrite: "field_write",
	NodeArrayRead:  "array_read",
	NodeArrayWrite: "array_write",
	NodeVariable:   "var",
	NodeSingleton:  "singleton",
	NodeConst:      "const",
	NodeScope:      "scope",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// ParseNodeKind is the inverse of NodeKind.String.
func ParseNodeKind(s string) (NodeKind, bool) {
	for k, name := range nodeKindNames {
		if name == s && NodeKind(k) != NodeInvalid {
			return NodeKind(k), true
		}
	}
	return NodeInvalid, false
}

// Node is a tagged variant: only the payload matching Kind is meaningful.
// NodeNewObject uses both Call (constructor and arguments) and NewObject.
type Node struct {
	ID   NodeID
	Kind NodeKind
	Elem ElementID
	Span source.Span

	Parameter  ParameterNode
	Call       CallNode
	NewObject  NewObjectNode
	FieldRead  FieldReadNode
	FieldWrite FieldWriteNode
	ArrayRead  ArrayReadNode
	ArrayWrite ArrayWriteNode
	Variable   VariableNode
	Singleton  SingletonNode
	Const      ConstNode
	Scope      ScopeNode
}

type ParameterNode struct {
	Index int
}

// CallNode is shared by calls and allocations. Callee may be NoFuncID for an
// allocation without a constructor.
type CallNode struct {
	Callee  FuncID
	Args    []NodeID
	Virtual bool
}

// NewObjectNode carries the allocated type. For array types Call.Args[0] is
// the length.
type NewObjectNode struct {
	Type TypeID
}

// FieldReadNode reads Receiver.Field; Receiver is NoNodeID for a global.
type FieldReadNode struct {
	Receiver NodeID
	Field    Field
}

// FieldWriteNode stores Value into Receiver.Field; Receiver is NoNodeID for a global.
type FieldWriteNode struct {
	Receiver NodeID
	Field    Field
	Value    NodeID
}

type ArrayReadNode struct {
	Array NodeID
	Index NodeID
}

type ArrayWriteNode struct {
	Array NodeID
	Index NodeID
	Value NodeID
}

type VariableNode struct {
	Values []NodeID
}

type SingletonNode struct {
	Type TypeID
}

type ConstNode struct {
	Value int64
}

type ScopeNode struct {
	Nodes []NodeID
}

// IsCall reports whether the node invokes a function.
func (n *Node) IsCall() bool {
	return n.Kind == NodeCall || (n.Kind == NodeNewObject && n.Call.Callee != NoFuncID)
}

// CarriesLifetime reports whether a lifetime is published for this node.
func (n *Node) CarriesLifetime() bool {
	if n.Elem == NoElementID {
		return false
	}
	switch n.Kind {
	case NodeCall, NodeNewObject, NodeFieldRead, NodeArrayRead:
		return true
	}
	return false
}

// Operands lists the node ids n refers to, NoNodeID entries skipped.
func (n *Node) Operands() []NodeID {
	var ops []NodeID
	add := func(ids ...NodeID) {
		for _, id := range ids {
			if id != NoNodeID {
				ops = append(ops, id)
			}
		}
	}
	switch n.Kind {
	case NodeCall, NodeNewObject:
		add(n.Call.Args...)
	case NodeFieldRead:
		add(n.FieldRead.Receiver)
	case NodeFieldWrite:
		add(n.FieldWrite.Receiver, n.FieldWrite.Value)
	case NodeArrayRead:
		add(n.ArrayRead.Array, n.ArrayRead.Index)
	case NodeArrayWrite:
		add(n.ArrayWrite.Array, n.ArrayWrite.Index, n.ArrayWrite.Value)
	case NodeVariable:
		add(n.Variable.Values...)
	case NodeScope:
		add(n.Scope.Nodes...)
	}
	return ops
}
