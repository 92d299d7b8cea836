package vectordb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
)

// IndexFile is the name of the active index inside the index directory.
const IndexFile = "index.db"

const stagingSuffix = ".db.tmp"

// Store implements ports.IndexStore. The active index is an immutable
// snapshot behind an atomic pointer; a rebuild stages a complete SQLite file
// next to the active one, renames it into place and then swaps the pointer.
// Queries in flight keep the snapshot they started with.
type Store struct {
	dir    string // empty for a store that never touches disk
	active atomic.Pointer[MemoryIndex]
	mu     sync.Mutex // serialises rebuilds
	now    func() time.Time
}

// NewSQLiteStore opens dir, creating it if needed, and loads the persisted
// index if one exists. Staging files left by an interrupted rebuild are removed.
func NewSQLiteStore(ctx context.Context, dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("index directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	s := &Store{dir: dir, now: time.Now}

	stale, _ := filepath.Glob(filepath.Join(dir, "index-*"+stagingSuffix))
	for _, p := range stale {
		_ = os.Remove(p)
	}

	path := filepath.Join(dir, IndexFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	meta, entries, err := readSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	idx, err := NewMemoryIndex(meta, entries)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	s.active.Store(idx)
	return s, nil
}

// NewMemoryStore returns a store that keeps indexes in memory only.
func NewMemoryStore() *Store {
	return &Store{now: time.Now}
}

// Path returns the active index file, or "" for a memory store.
func (s *Store) Path() string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, IndexFile)
}

// Active returns the current snapshot or entities.ErrIndexNotBuilt.
func (s *Store) Active(ctx context.Context) (ports.VectorIndex, error) {
	idx := s.active.Load()
	if idx == nil {
		return nil, entities.ErrIndexNotBuilt
	}
	return idx, nil
}

// Rebuild replaces the active index with entries. Nothing observable changes
// unless every step succeeds.
func (s *Store) Rebuild(ctx context.Context, meta entities.IndexMeta, entries []entities.IndexEntry) (entities.IndexMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta.BuildID = uuid.NewString()
	meta.BuiltAt = s.now().UTC()
	meta.Chunks = len(entries)

	idx, err := NewMemoryIndex(meta, entries)
	if err != nil {
		return entities.IndexMeta{}, err
	}

	if s.dir != "" {
		if err := s.persist(ctx, idx.Meta(), entries); err != nil {
			return entities.IndexMeta{}, err
		}
	}
	s.active.Store(idx)
	return idx.Meta(), nil
}

func (s *Store) persist(ctx context.Context, meta entities.IndexMeta, entries []entities.IndexEntry) (err error) {
	staging := filepath.Join(s.dir, "index-"+meta.BuildID+stagingSuffix)
	defer func() {
		if err != nil {
			_ = os.Remove(staging)
		}
	}()

	if err = writeSQLite(ctx, staging, meta, entries); err != nil {
		return fmt.Errorf("staging index: %w", err)
	}

	// Read the staged file back before it becomes the active one.
	stored, storedEntries, err := readSQLite(ctx, staging)
	if err != nil {
		return fmt.Errorf("verifying staged index: %w", err)
	}
	if stored.BuildID != meta.BuildID || len(storedEntries) != len(entries) {
		return fmt.Errorf("verifying staged index: wrote %d chunks, read back %d", len(entries), len(storedEntries))
	}

	if err = os.Rename(staging, filepath.Join(s.dir, IndexFile)); err != nil {
		return fmt.Errorf("activating index: %w", err)
	}
	return nil
}

// StagingFiles lists leftover staging files; used by tests and diagnostics.
func (s *Store) StagingFiles() []string {
	if s.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), stagingSuffix) {
			out = append(out, e.Name())
		}
	}
	return out
}
