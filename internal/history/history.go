// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package history persists the set of remote video paths that have already
// been downloaded, so restarts never fetch the same video twice.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ManuGH/framehaul/internal/fsutil"
	"github.com/ManuGH/framehaul/internal/metrics"
	"github.com/ManuGH/framehaul/internal/remote"
)

// Store is a persisted, append-only set of remote paths. It is safe for
// concurrent use; the harvester writes while the status endpoint reads.
type Store struct {
	path string

	mu    sync.RWMutex
	set   map[string]struct{}
	order []string
}

// Load reads the history file at path. A missing file yields an empty store;
// a corrupt one is an error.
func Load(path string) (*Store, error) {
	s := &Store{path: path, set: make(map[string]struct{})}

	data, err := os.ReadFile(path) // #nosec G304 -- configured state file
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read download history %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return nil, fmt.Errorf("parse download history %s: %w", path, err)
	}
	for _, p := range paths {
		s.add(p)
	}
	metrics.SetHistorySize(len(s.order))
	return s, nil
}

// NewMemory returns a store that is never written to disk.
func NewMemory(paths ...string) *Store {
	s := &Store{set: make(map[string]struct{})}
	for _, p := range paths {
		s.add(p)
	}
	return s
}

func (s *Store) add(p string) bool {
	p = remote.Clean(p)
	if _, ok := s.set[p]; ok {
		return false
	}
	s.set[p] = struct{}{}
	s.order = append(s.order, p)
	return true
}

// Path returns the backing file, empty for memory stores.
func (s *Store) Path() string { return s.path }

// Contains reports whether p was downloaded before.
func (s *Store) Contains(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[remote.Clean(p)]
	return ok
}

// Len returns the number of recorded paths.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Paths returns the recorded paths in recording order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Record adds p to the in-memory set without persisting.
func (s *Store) Record(p string) {
	s.mu.Lock()
	s.add(p)
	n := len(s.order)
	s.mu.Unlock()
	metrics.SetHistorySize(n)
}

// Persist atomically rewrites the history file with the full set.
func (s *Store) Persist() error {
	if s.path == "" {
		return nil
	}
	paths := s.Paths()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	if err := fsutil.WriteJSON(s.path, paths); err != nil {
		return fmt.Errorf("persist download history: %w", err)
	}
	return nil
}

// RecordAndPersist records p and persists the result. The in-memory set is
// updated even when persisting fails.
func (s *Store) RecordAndPersist(p string) error {
	s.Record(p)
	return s.Persist()
}
