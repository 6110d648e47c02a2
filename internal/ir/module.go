package ir

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"esca/internal/source"
)

// Type is the slice of a type's information the escape pass looks at.
type Type struct {
	Name    string
	IsArray bool
}

// Module is a compilation unit: declared symbols, the bodies of those that
// have one, and the types they mention.
type Module struct {
	Name    string
	Symbols []FuncSymbol
	Funcs   map[FuncID]*Function
	Types   []Type
	Nothing TypeID
	Files   *source.Files

	byName   map[string]FuncID
	types    map[string]TypeID
	nextElem ElementID
}

// NewModule creates an empty module with the nothing type predeclared.
func NewModule(name string) *Module {
	m := &Module{
		Name:   name,
		Funcs:  make(map[FuncID]*Function),
		Files:  source.NewFiles(),
		byName: make(map[string]FuncID),
		types:  make(map[string]TypeID),
	}
	m.Nothing = m.AddType("nothing", false)
	return m
}

// AddType declares a type; redeclaring a name returns the existing id.
func (m *Module) AddType(name string, isArray bool) TypeID {
	if id, ok := m.types[name]; ok {
		return id
	}
	id := TypeID(mustConv[int32](len(m.Types)))
	m.Types = append(m.Types, Type{Name: name, IsArray: isArray})
	m.types[name] = id
	return id
}

// LookupType finds a type by name.
func (m *Module) LookupType(name string) (TypeID, bool) {
	id, ok := m.types[name]
	return id, ok
}

// Type returns the type with the given id or nil.
func (m *Module) Type(id TypeID) *Type {
	if id < 0 || int(id) >= len(m.Types) {
		return nil
	}
	return &m.Types[id]
}

// Declare adds a symbol with a body to be defined later.
func (m *Module) Declare(name string, numParams int) (FuncID, error) {
	return m.declare(FuncSymbol{Name: name, NumParams: numParams})
}

// DeclareExternal adds a symbol defined in another module. bits may be nil.
func (m *Module) DeclareExternal(name string, numParams int, bits *EscapeBits) (FuncID, error) {
	return m.declare(FuncSymbol{Name: name, NumParams: numParams, External: true, Bits: bits})
}

func (m *Module) declare(sym FuncSymbol) (FuncID, error) {
	if _, dup := m.byName[sym.Name]; dup {
		return NoFuncID, fmt.Errorf("function %q declared twice", sym.Name)
	}
	if sym.NumParams < 0 {
		return NoFuncID, fmt.Errorf("function %q: negative parameter count", sym.Name)
	}
	sym.ID = FuncID(mustConv[int32](len(m.Symbols)))
	m.Symbols = append(m.Symbols, sym)
	m.byName[sym.Name] = sym.ID
	return sym.ID, nil
}

// Lookup finds a symbol by name.
func (m *Module) Lookup(name string) (FuncID, bool) {
	id, ok := m.byName[name]
	return id, ok
}

// Symbol returns the symbol with the given id or nil.
func (m *Module) Symbol(id FuncID) *FuncSymbol {
	if id < 0 || int(id) >= len(m.Symbols) {
		return nil
	}
	return &m.Symbols[id]
}

// Name returns the symbol name of id, or a placeholder.
func (m *Module) FuncName(id FuncID) string {
	if s := m.Symbol(id); s != nil {
		return s.Name
	}
	return fmt.Sprintf("<fn#%d>", id)
}

// Bodies returns the ids of functions with a body in ascending order.
func (m *Module) Bodies() []FuncID {
	ids := make([]FuncID, 0, len(m.Funcs))
	for id := range m.Funcs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Module) newElem() ElementID {
	id := m.nextElem
	m.nextElem++
	return id
}

func mustConv[T int32 | uint32](v int) T {
	out, err := safecast.Conv[T](v)
	if err != nil {
		panic(fmt.Errorf("ir id overflow: %w", err))
	}
	return out
}
