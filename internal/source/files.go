package source

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// Files maps FileIDs to the paths they were loaded from.
// ID 0 is reserved for spans that have no file.
type Files struct {
	mu    sync.RWMutex
	paths []string
	index map[string]FileID
}

func NewFiles() *Files {
	return &Files{
		paths: []string{""},
		index: make(map[string]FileID),
	}
}

// Add registers path and returns its id; adding the same path twice returns the same id.
func (f *Files) Add(path string) FileID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.index[path]; ok {
		return id
	}
	id, err := safecast.Conv[FileID](len(f.paths))
	if err != nil {
		panic(fmt.Errorf("file id overflow: %w", err))
	}
	f.paths = append(f.paths, path)
	f.index[path] = id
	return id
}

func (f *Files) Path(id FileID) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if int(id) >= len(f.paths) {
		return ""
	}
	return f.paths[id]
}

// Format renders span as path:line:col, falling back to the numeric form.
func (f *Files) Format(span Span) string {
	if f == nil || !span.Known() {
		return "<unknown>"
	}
	path := f.Path(span.File)
	if path == "" {
		return span.String()
	}
	if span.Col == 0 {
		return fmt.Sprintf("%s:%d", path, span.Line)
	}
	return fmt.Sprintf("%s:%d:%d", path, span.Line, span.Col)
}
