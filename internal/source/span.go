package source

import (
	"fmt"
)

// FileID identifies a program file registered in a Files table.
type FileID uint32

// Span points at a line and column of a program file.
type Span struct {
	File FileID
	Line uint32 // 1-based, 0 when unknown
	Col  uint32 // 1-based, 0 when unknown
}

func (s Span) Known() bool {
	return s.Line != 0
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d:%d", s.File, s.Line, s.Col)
}

// Before reports whether s sorts ahead of other (file, line, col).
func (s Span) Before(other Span) bool {
	if s.File != other.File {
		return s.File < other.File
	}
	if s.Line != other.Line {
		return s.Line < other.Line
	}
	return s.Col < other.Col
}
