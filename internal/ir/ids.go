package ir

// FuncID indexes Module.Symbols.
type FuncID int32

// NodeID indexes Function.Nodes.
type NodeID int32

// TypeID indexes Module.Types.
type TypeID int32

// ElementID names the source element a node was lowered from. Lifetimes are
// published per element, so the code generator can find them again.
type ElementID int32

const (
	NoFuncID    FuncID    = -1
	NoNodeID    NodeID    = -1
	NoTypeID    TypeID    = -1
	NoElementID ElementID = -1
)
