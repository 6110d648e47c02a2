package ir

import (
	"hash/fnv"

	"golang.org/x/text/unicode/norm"
)

// Field identifies an object slot. Hash orders fields inside summaries, so it
// must be stable across modules; Name is carried for display only.
type Field struct {
	Hash int64
	Name string
}

var (
	// ArrayContents stands for every element of an array at once.
	ArrayContents = Field{Hash: 1, Name: "inte$tines"}
	// ReturnValue is the pseudo-field of the returns node holding the result.
	ReturnValue = Field{Hash: 2, Name: "v@lue"}
)

// NoField marks assignment edges in the points-to graph.
var NoField = Field{}

// reservedHashes are the hashes NewField never produces.
const reservedHashes = 3

// NewField returns the field named name. Names are NFC-normalized before
// hashing so that visually identical names from different producers agree.
func NewField(name string) Field {
	name = norm.NFC.String(name)
	h := fnv.New64a()
	h.Write([]byte(name)) //nolint:errcheck
	hash := int64(h.Sum64()) //nolint:gosec // wrap-around is part of the hash
	if hash >= 0 && hash < reservedHashes {
		hash += reservedHashes
	}
	return Field{Hash: hash, Name: name}
}

func (f Field) IsNone() bool { return f.Hash == 0 }

func (f Field) String() string {
	if f.IsNone() {
		return "<none>"
	}
	return f.Name
}

// CompareFields orders by hash; names break ties only for hash collisions.
func CompareFields(a, b Field) int {
	switch {
	case a.Hash < b.Hash:
		return -1
	case a.Hash > b.Hash:
		return 1
	case a.Name < b.Name:
		return -1
	case a.Name > b.Name:
		return 1
	}
	return 0
}
