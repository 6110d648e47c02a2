package summary

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"esca/internal/escape"
)

// Digest is the key a summary is stored under.
type Digest [32]byte

// DigestOf hashes a symbol name.
func DigestOf(name string) Digest {
	return sha256.Sum256([]byte(name))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

const fileExt = ".mp"

// DiskStore keeps one file per function in a directory. It is safe for
// concurrent use within one process.
type DiskStore struct {
	mu  sync.RWMutex
	dir string
}

// OpenDiskStore opens dir, creating it if needed.
func OpenDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open summary store: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) pathFor(name string) string {
	return filepath.Join(s.dir, DigestOf(name).String()+fileExt)
}

// Put writes sum, replacing any previous summary of the same function. The
// file is replaced atomically.
func (s *DiskStore) Put(sum *escape.Summary) (err error) {
	data, err := Encode(sum)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), s.pathFor(sum.Name))
}

// PutAll writes every summary of sums.
func (s *DiskStore) PutAll(sums *escape.Summaries) error {
	for _, name := range sums.Names() {
		if err := s.Put(sums.Get(name)); err != nil {
			return fmt.Errorf("store %s: %w", name, err)
		}
	}
	return nil
}

// ReadSummary implements escape.SummaryReader. A missing file yields
// (nil, nil).
func (s *DiskStore) ReadSummary(name string) (*escape.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.pathFor(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sum, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if sum.Name != name {
		return nil, fmt.Errorf("%w: file for %s holds %s", ErrCorrupt, name, sum.Name)
	}
	return sum, nil
}

// List decodes every stored summary, ordered by name.
func (s *DiskStore) List() ([]*escape.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []*escape.Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		sum, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b *escape.Summary) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Load reads the whole store into memory.
func (s *DiskStore) Load() (*escape.Summaries, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	out := escape.NewSummaries()
	for _, sum := range list {
		out.Put(sum)
	}
	return out, nil
}
