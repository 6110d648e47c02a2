package ir

import (
	"fmt"

	"esca/internal/source"
)

// FuncBuilder appends nodes to a function body. New nodes join the innermost
// open scope; parameters always join the root scope.
type FuncBuilder struct {
	m      *Module
	fn     *Function
	scopes []NodeID
	span   source.Span
}

// Define creates the body of a declared, non-external symbol and returns a
// builder positioned in its root scope. Parameter nodes are created up front.
func (m *Module) Define(id FuncID) (*FuncBuilder, error) {
	sym := m.Symbol(id)
	if sym == nil {
		return nil, fmt.Errorf("define: unknown function id %d", id)
	}
	if sym.External {
		return nil, fmt.Errorf("define %s: external functions have no body", sym.Name)
	}
	if _, dup := m.Funcs[id]; dup {
		return nil, fmt.Errorf("define %s: body already defined", sym.Name)
	}
	fn := &Function{Sym: id, Root: 0}
	m.Funcs[id] = fn
	b := &FuncBuilder{m: m, fn: fn}
	b.fn.Nodes = append(b.fn.Nodes, Node{ID: 0, Kind: NodeScope, Elem: NoElementID})
	b.scopes = []NodeID{0}
	for i := range sym.NumParams {
		b.add(Node{Kind: NodeParameter, Parameter: ParameterNode{Index: i}}, true)
	}
	return b, nil
}

// Func returns the body under construction.
func (b *FuncBuilder) Func() *Function { return b.fn }

// At sets the span attached to subsequently created nodes.
func (b *FuncBuilder) At(line, col uint32) *FuncBuilder {
	b.span.Line, b.span.Col = line, col
	return b
}

// InFile sets the file of subsequently created node spans.
func (b *FuncBuilder) InFile(file source.FileID) *FuncBuilder {
	b.span.File = file
	return b
}

func (b *FuncBuilder) add(n Node, root bool) NodeID {
	return b.addElem(n, NoElementID, root)
}

func (b *FuncBuilder) addElem(n Node, elem ElementID, root bool) NodeID {
	n.ID = NodeID(mustConv[int32](len(b.fn.Nodes)))
	n.Span = b.span
	n.Elem = elem
	b.fn.Nodes = append(b.fn.Nodes, n)
	scope := b.scopes[len(b.scopes)-1]
	if root {
		scope = b.fn.Root
	}
	s := &b.fn.Nodes[scope].Scope
	s.Nodes = append(s.Nodes, n.ID)
	return n.ID
}

func (b *FuncBuilder) withElem(n Node) NodeID {
	return b.addElem(n, b.m.newElem(), false)
}

// Param returns the node of parameter i.
func (b *FuncBuilder) Param(i int) NodeID {
	for _, id := range b.fn.Nodes[b.fn.Root].Scope.Nodes {
		n := &b.fn.Nodes[id]
		if n.Kind == NodeParameter && n.Parameter.Index == i {
			return id
		}
	}
	return NoNodeID
}

// BeginScope opens a nested scope.
func (b *FuncBuilder) BeginScope() NodeID {
	id := b.add(Node{Kind: NodeScope}, false)
	b.scopes = append(b.scopes, id)
	return id
}

// Within makes subsequent nodes join scope, which must already exist.
func (b *FuncBuilder) Within(scope NodeID) error {
	n := b.fn.Node(scope)
	if n == nil || n.Kind != NodeScope {
		return fmt.Errorf("node %d is not a scope", scope)
	}
	if scope == b.fn.Root {
		b.scopes = b.scopes[:1]
		return nil
	}
	b.scopes = append(b.scopes[:1], scope)
	return nil
}

// EndScope closes the innermost nested scope.
func (b *FuncBuilder) EndScope() {
	if len(b.scopes) > 1 {
		b.scopes = b.scopes[:len(b.scopes)-1]
	}
}

// Call adds a direct call.
func (b *FuncBuilder) Call(callee FuncID, args ...NodeID) NodeID {
	return b.withElem(Node{Kind: NodeCall, Call: CallNode{Callee: callee, Args: args}})
}

// VirtualCall adds a call whose target is chosen at run time.
func (b *FuncBuilder) VirtualCall(callee FuncID, args ...NodeID) NodeID {
	return b.withElem(Node{Kind: NodeCall, Call: CallNode{Callee: callee, Args: args, Virtual: true}})
}

// New adds an allocation of typ; ctor may be NoFuncID.
func (b *FuncBuilder) New(typ TypeID, ctor FuncID, args ...NodeID) NodeID {
	return b.withElem(Node{
		Kind:      NodeNewObject,
		Call:      CallNode{Callee: ctor, Args: args},
		NewObject: NewObjectNode{Type: typ},
	})
}

func (b *FuncBuilder) ReadField(recv NodeID, f Field) NodeID {
	return b.withElem(Node{Kind: NodeFieldRead, FieldRead: FieldReadNode{Receiver: recv, Field: f}})
}

func (b *FuncBuilder) ReadGlobal(f Field) NodeID {
	return b.ReadField(NoNodeID, f)
}

func (b *FuncBuilder) WriteField(recv NodeID, f Field, value NodeID) NodeID {
	return b.add(Node{Kind: NodeFieldWrite, FieldWrite: FieldWriteNode{Receiver: recv, Field: f, Value: value}}, false)
}

func (b *FuncBuilder) WriteGlobal(f Field, value NodeID) NodeID {
	return b.WriteField(NoNodeID, f, value)
}

func (b *FuncBuilder) ReadArray(arr, index NodeID) NodeID {
	return b.withElem(Node{Kind: NodeArrayRead, ArrayRead: ArrayReadNode{Array: arr, Index: index}})
}

func (b *FuncBuilder) WriteArray(arr, index, value NodeID) NodeID {
	return b.add(Node{Kind: NodeArrayWrite, ArrayWrite: ArrayWriteNode{Array: arr, Index: index, Value: value}}, false)
}

// Var adds a merge of values; more can be added with AddValue.
func (b *FuncBuilder) Var(values ...NodeID) NodeID {
	return b.add(Node{Kind: NodeVariable, Variable: VariableNode{Values: values}}, false)
}

// AddValue appends a value to a variable created earlier.
func (b *FuncBuilder) AddValue(v, value NodeID) {
	n := b.fn.Node(v)
	if n == nil || n.Kind != NodeVariable {
		panic(fmt.Errorf("AddValue: node %d is not a variable", v))
	}
	n.Variable.Values = append(n.Variable.Values, value)
}

func (b *FuncBuilder) Singleton(typ TypeID) NodeID {
	return b.add(Node{Kind: NodeSingleton, Singleton: SingletonNode{Type: typ}}, false)
}

func (b *FuncBuilder) Const(v int64) NodeID {
	return b.add(Node{Kind: NodeConst, Const: ConstNode{Value: v}}, false)
}

// Return marks n as a returned value.
func (b *FuncBuilder) Return(n NodeID) {
	b.fn.Returns = append(b.fn.Returns, n)
}

// Throw marks n as a thrown value.
func (b *FuncBuilder) Throw(n NodeID) {
	b.fn.Throws = append(b.fn.Throws, n)
}
