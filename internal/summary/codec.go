// Package summary stores escape summaries outside the process that computed
// them, so that a module can be analyzed against summaries of modules
// compiled earlier.
package summary

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"esca/internal/escape"
	"esca/internal/ir"
	"esca/internal/version"
)

var (
	// ErrSchema reports a payload written by an incompatible build.
	ErrSchema = errors.New("summary schema mismatch")
	// ErrCorrupt reports a payload that decodes but is not a valid summary.
	ErrCorrupt = errors.New("corrupt summary")
)

// payload is the on-wire form of one summary.
type payload struct {
	Schema    uint16     `msgpack:"schema"`
	Name      string     `msgpack:"name"`
	NumParams uint32     `msgpack:"params"`
	Drains    uint32     `msgpack:"drains"`
	Escapes   []wireNode `msgpack:"escapes"`
	Edges     []wireEdge `msgpack:"edges"`
}

type wireNode struct {
	Kind  uint8       `msgpack:"k"`
	Index uint32      `msgpack:"i"`
	Path  []wireField `msgpack:"p,omitempty"`
}

type wireField struct {
	Hash int64  `msgpack:"h"`
	Name string `msgpack:"n,omitempty"`
}

type wireEdge struct {
	From wireNode `msgpack:"f"`
	To   wireNode `msgpack:"t"`
}

// Encode serializes sum.
func Encode(sum *escape.Summary) ([]byte, error) {
	p, err := toPayload(sum)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", sum.Name, err)
	}
	return msgpack.Marshal(p)
}

// Decode parses a payload produced by Encode and checks that every index
// it carries is in range.
func Decode(data []byte) (*escape.Summary, error) {
	var p payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if p.Schema != version.SummarySchema {
		return nil, fmt.Errorf("%w: %s has schema %d, want %d", ErrSchema, p.Name, p.Schema, version.SummarySchema)
	}
	return fromPayload(&p)
}

func toPayload(sum *escape.Summary) (*payload, error) {
	params, err := safecast.Conv[uint32](sum.NumParams)
	if err != nil {
		return nil, err
	}
	drains, err := safecast.Conv[uint32](sum.Result.NumberOfDrains)
	if err != nil {
		return nil, err
	}
	p := &payload{
		Schema:    version.SummarySchema,
		Name:      sum.Name,
		NumParams: params,
		Drains:    drains,
		Escapes:   make([]wireNode, 0, len(sum.Result.Escapes)),
		Edges:     make([]wireEdge, 0, len(sum.Result.PointsTo)),
	}
	for _, n := range sum.Result.Escapes {
		w, err := toWire(n)
		if err != nil {
			return nil, err
		}
		p.Escapes = append(p.Escapes, w)
	}
	for _, e := range sum.Result.PointsTo {
		from, err := toWire(e.From)
		if err != nil {
			return nil, err
		}
		to, err := toWire(e.To)
		if err != nil {
			return nil, err
		}
		p.Edges = append(p.Edges, wireEdge{From: from, To: to})
	}
	return p, nil
}

func toWire(n escape.CompressedNode) (wireNode, error) {
	idx, err := safecast.Conv[uint32](n.Index)
	if err != nil {
		return wireNode{}, fmt.Errorf("node %s: %w", n, err)
	}
	w := wireNode{Kind: uint8(n.Kind), Index: idx}
	for _, f := range n.Path {
		w.Path = append(w.Path, wireField{Hash: f.Hash, Name: f.Name})
	}
	return w, nil
}

func fromPayload(p *payload) (*escape.Summary, error) {
	numParams, err := safecast.Conv[int](p.NumParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, p.Name, err)
	}
	drains, err := safecast.Conv[int](p.Drains)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, p.Name, err)
	}
	// Every drain must be referenced, which also bounds drains by the
	// payload size.
	referenced := make(map[int]struct{})
	node := func(w wireNode) (escape.CompressedNode, error) {
		idx, err := safecast.Conv[int](w.Index)
		if err != nil {
			return escape.CompressedNode{}, err
		}
		var n escape.CompressedNode
		switch escape.CompressedKind(w.Kind) {
		case escape.KindReturn:
			n = escape.ReturnNode()
		case escape.KindParam:
			if idx >= numParams {
				return n, fmt.Errorf("parameter %d of %d", idx, numParams)
			}
			n = escape.ParamNode(idx)
		case escape.KindDrain:
			if idx >= drains {
				return n, fmt.Errorf("drain %d of %d", idx, drains)
			}
			referenced[idx] = struct{}{}
			n = escape.DrainNode(idx)
		default:
			return n, fmt.Errorf("node kind %d", w.Kind)
		}
		for _, f := range w.Path {
			if f.Hash == 0 {
				return n, errors.New("empty field in path")
			}
			n = n.Field(ir.Field{Hash: f.Hash, Name: f.Name})
		}
		return n, nil
	}

	escapes := make([]escape.CompressedNode, 0, len(p.Escapes))
	for _, w := range p.Escapes {
		n, err := node(w)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: escape: %w", ErrCorrupt, p.Name, err)
		}
		escapes = append(escapes, n)
	}
	edges := make([]escape.CompressedEdge, 0, len(p.Edges))
	for _, w := range p.Edges {
		from, err := node(w.From)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: edge source: %w", ErrCorrupt, p.Name, err)
		}
		to, err := node(w.To)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: edge target: %w", ErrCorrupt, p.Name, err)
		}
		edges = append(edges, escape.CompressedEdge{From: from, To: to})
	}
	if len(referenced) != drains {
		return nil, fmt.Errorf("%w: %s: %d drains declared, %d referenced", ErrCorrupt, p.Name, drains, len(referenced))
	}
	return &escape.Summary{
		Name:      p.Name,
		NumParams: numParams,
		Result:    escape.NewFunctionResult(drains, edges, escapes),
	}, nil
}
