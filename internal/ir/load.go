package ir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// programFile is the on-disk description of a module.
type programFile struct {
	Module string     `toml:"module"`
	Types  []typeDecl `toml:"type"`
	Funcs  []funcDecl `toml:"func"`
}

type typeDecl struct {
	Name  string `toml:"name"`
	Array bool   `toml:"array"`
}

type funcDecl struct {
	Name     string     `toml:"name"`
	Params   []string   `toml:"params"`
	External bool       `toml:"external"`
	Escapes  *uint32    `toml:"escapes"`
	PointsTo []uint32   `toml:"points_to"`
	Returns  []string   `toml:"returns"`
	Throws   []string   `toml:"throws"`
	Nodes    []nodeDecl `toml:"node"`
	Line     uint32     `toml:"line"`
}

type nodeDecl struct {
	ID       string   `toml:"id"`
	Kind     string   `toml:"kind"`
	Scope    string   `toml:"scope"`
	Callee   string   `toml:"callee"`
	Ctor     string   `toml:"ctor"`
	Args     []string `toml:"args"`
	Virtual  bool     `toml:"virtual"`
	Type     string   `toml:"type"`
	Receiver string   `toml:"receiver"`
	Field    string   `toml:"field"`
	Value    string   `toml:"value"`
	Array    string   `toml:"array"`
	Index    string   `toml:"index"`
	Values   []string `toml:"values"`
	Const    int64    `toml:"const"`
	Line     uint32   `toml:"line"`
	Col      uint32   `toml:"col"`
}

// LoadProgram reads a module description from a TOML file.
func LoadProgram(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	return ParseProgram(path, string(data))
}

// ParseProgram decodes a module description; path is used for spans and errors.
func ParseProgram(path, text string) (*Module, error) {
	var pf programFile
	meta, err := toml.Decode(text, &pf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	name := pf.Module
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	m := NewModule(name)
	file := m.Files.Add(path)

	for _, td := range pf.Types {
		if td.Name == "" {
			return nil, fmt.Errorf("%s: type without a name", path)
		}
		if _, dup := m.LookupType(td.Name); dup {
			return nil, fmt.Errorf("%s: type %q declared twice", path, td.Name)
		}
		m.AddType(td.Name, td.Array)
	}

	var errs []error
	for i := range pf.Funcs {
		fd := &pf.Funcs[i]
		var bits *EscapeBits
		if fd.Escapes != nil || fd.PointsTo != nil {
			bits = &EscapeBits{PointsTo: fd.PointsTo}
			if fd.Escapes != nil {
				bits.Escapes = *fd.Escapes
			}
		}
		var id FuncID
		if fd.External {
			if len(fd.Nodes) > 0 || len(fd.Returns) > 0 || len(fd.Throws) > 0 {
				errs = append(errs, fmt.Errorf("%s: external function %q has a body", path, fd.Name))
				continue
			}
			id, err = m.DeclareExternal(fd.Name, len(fd.Params), bits)
		} else {
			id, err = m.Declare(fd.Name, len(fd.Params))
			if err == nil && bits != nil {
				m.Symbols[id].Bits = bits
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		m.Symbols[id].Span.File = file
		m.Symbols[id].Span.Line = fd.Line
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for i := range pf.Funcs {
		fd := &pf.Funcs[i]
		if fd.External {
			continue
		}
		id, _ := m.Lookup(fd.Name)
		if err := loadBody(m, id, fd); err != nil {
			errs = append(errs, fmt.Errorf("%s: function %s: %w", path, fd.Name, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := Validate(m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func loadBody(m *Module, id FuncID, fd *funcDecl) error {
	b, err := m.Define(id)
	if err != nil {
		return err
	}
	b.InFile(m.Symbols[id].Span.File)
	names := make(map[string]NodeID, len(fd.Params)+len(fd.Nodes))
	for i, p := range fd.Params {
		if _, dup := names[p]; dup {
			return fmt.Errorf("parameter %q declared twice", p)
		}
		names[p] = b.Param(i)
	}
	ref := func(what, name string) (NodeID, error) {
		if name == "" {
			return NoNodeID, nil
		}
		n, ok := names[name]
		if !ok {
			return NoNodeID, fmt.Errorf("%s refers to unknown node %q", what, name)
		}
		return n, nil
	}
	refs := func(what string, list []string) ([]NodeID, error) {
		out := make([]NodeID, 0, len(list))
		for _, name := range list {
			n, err := ref(what, name)
			if err != nil {
				return nil, err
			}
			if n == NoNodeID {
				return nil, fmt.Errorf("%s has an empty entry", what)
			}
			out = append(out, n)
		}
		return out, nil
	}

	type pendingVar struct {
		node   NodeID
		values []string
	}
	var vars []pendingVar
	for i := range fd.Nodes {
		nd := &fd.Nodes[i]
		if nd.ID == "" {
			return fmt.Errorf("node #%d has no id", i)
		}
		if _, dup := names[nd.ID]; dup {
			return fmt.Errorf("node %q declared twice", nd.ID)
		}
		kind, ok := ParseNodeKind(nd.Kind)
		if !ok || kind == NodeParameter {
			return fmt.Errorf("node %q: unsupported kind %q", nd.ID, nd.Kind)
		}
		scope, err := ref("scope", nd.Scope)
		if err != nil {
			return fmt.Errorf("node %q: %w", nd.ID, err)
		}
		if scope == NoNodeID {
			scope = b.fn.Root
		}
		if err := b.Within(scope); err != nil {
			return fmt.Errorf("node %q: %w", nd.ID, err)
		}
		b.At(nd.Line, nd.Col)
		n, err := loadNode(m, b, kind, nd, ref, refs)
		if err != nil {
			return fmt.Errorf("node %q: %w", nd.ID, err)
		}
		if kind == NodeVariable {
			vars = append(vars, pendingVar{node: n, values: nd.Values})
		}
		names[nd.ID] = n
	}
	for _, v := range vars {
		values, err := refs("values", v.values)
		if err != nil {
			return err
		}
		for _, val := range values {
			b.AddValue(v.node, val)
		}
	}
	rets, err := refs("returns", fd.Returns)
	if err != nil {
		return err
	}
	for _, r := range rets {
		b.Return(r)
	}
	throws, err := refs("throws", fd.Throws)
	if err != nil {
		return err
	}
	for _, t := range throws {
		b.Throw(t)
	}
	return nil
}

func loadNode(
	m *Module,
	b *FuncBuilder,
	kind NodeKind,
	nd *nodeDecl,
	ref func(string, string) (NodeID, error),
	refs func(string, []string) ([]NodeID, error),
) (NodeID, error) {
	callee := func(name string) (FuncID, error) {
		if name == "" {
			return NoFuncID, nil
		}
		id, ok := m.Lookup(name)
		if !ok {
			return NoFuncID, fmt.Errorf("unknown function %q", name)
		}
		return id, nil
	}
	field := func() (Field, error) {
		if nd.Field == "" {
			return NoField, fmt.Errorf("%s without a field", kind)
		}
		return NewField(nd.Field), nil
	}
	typ := func(name string) (TypeID, error) {
		id, ok := m.LookupType(name)
		if !ok {
			return NoTypeID, fmt.Errorf("unknown type %q", name)
		}
		return id, nil
	}

	switch kind {
	case NodeScope:
		id := b.BeginScope()
		b.EndScope()
		return id, nil
	case NodeCall:
		fn, err := callee(nd.Callee)
		if err != nil {
			return NoNodeID, err
		}
		if fn == NoFuncID {
			return NoNodeID, fmt.Errorf("call without a callee")
		}
		args, err := refs("args", nd.Args)
		if err != nil {
			return NoNodeID, err
		}
		if nd.Virtual {
			return b.VirtualCall(fn, args...), nil
		}
		return b.Call(fn, args...), nil
	case NodeNewObject:
		t, err := typ(nd.Type)
		if err != nil {
			return NoNodeID, err
		}
		ctor, err := callee(nd.Ctor)
		if err != nil {
			return NoNodeID, err
		}
		args, err := refs("args", nd.Args)
		if err != nil {
			return NoNodeID, err
		}
		return b.New(t, ctor, args...), nil
	case NodeFieldRead:
		recv, err := ref("receiver", nd.Receiver)
		if err != nil {
			return NoNodeID, err
		}
		f, err := field()
		if err != nil {
			return NoNodeID, err
		}
		return b.ReadField(recv, f), nil
	case NodeFieldWrite:
		recv, err := ref("receiver", nd.Receiver)
		if err != nil {
			return NoNodeID, err
		}
		val, err := ref("value", nd.Value)
		if err != nil {
			return NoNodeID, err
		}
		f, err := field()
		if err != nil {
			return NoNodeID, err
		}
		return b.WriteField(recv, f, val), nil
	case NodeArrayRead:
		arr, err := ref("array", nd.Array)
		if err != nil {
			return NoNodeID, err
		}
		idx, err := ref("index", nd.Index)
		if err != nil {
			return NoNodeID, err
		}
		return b.ReadArray(arr, idx), nil
	case NodeArrayWrite:
		arr, err := ref("array", nd.Array)
		if err != nil {
			return NoNodeID, err
		}
		idx, err := ref("index", nd.Index)
		if err != nil {
			return NoNodeID, err
		}
		val, err := ref("value", nd.Value)
		if err != nil {
			return NoNodeID, err
		}
		return b.WriteArray(arr, idx, val), nil
	case NodeVariable:
		return b.Var(), nil
	case NodeSingleton:
		t, err := typ(nd.Type)
		if err != nil {
			return NoNodeID, err
		}
		return b.Singleton(t), nil
	case NodeConst:
		return b.Const(nd.Const), nil
	}
	return NoNodeID, fmt.Errorf("unsupported kind %s", kind)
}
