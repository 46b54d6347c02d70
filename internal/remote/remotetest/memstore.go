// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package remotetest provides an in-memory remote.Store with failure
// injection for tests.
package remotetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ManuGH/framehaul/internal/remote"
)

// Op names used for failure injection and call counting.
const (
	OpList     = "list"
	OpIsDir    = "isdir"
	OpDownload = "download"
	OpUpload   = "upload"
)

// MemStore is a remote.Store backed by a map of file contents. Directories
// exist implicitly as prefixes of files, or explicitly through Mkdir.
type MemStore struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	order map[string][]string
	fails map[string][]error
	calls map[string]int
	hooks map[string]func(path string)
}

// NewMemStore returns an empty store containing only the root directory.
func NewMemStore() *MemStore {
	return &MemStore{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
		order: make(map[string][]string),
		fails: make(map[string][]error),
		calls: make(map[string]int),
		hooks: make(map[string]func(string)),
	}
}

// Put stores a file and registers its parent directories.
func (m *MemStore) Put(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(remote.Clean(p), data)
}

func (m *MemStore) put(p string, data []byte) {
	m.files[p] = append([]byte(nil), data...)
	m.mkdirAll(remote.Dir(p))
}

func (m *MemStore) mkdirAll(p string) {
	for d := p; !m.dirs[d]; d = remote.Dir(d) {
		m.dirs[d] = true
	}
}

// Mkdir registers an (empty) directory.
func (m *MemStore) Mkdir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAll(remote.Clean(p))
}

// SetOrder fixes the listing order of dir. Children not named follow in
// sorted order; listings are sorted by default.
func (m *MemStore) SetOrder(dir string, names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order[remote.Clean(dir)] = names
}

// FailNext queues errors returned by the next calls of op, one per call.
func (m *MemStore) FailNext(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fails[op] = append(m.fails[op], errs...)
}

// OnCall registers a hook run (outside the lock) after every successful op.
func (m *MemStore) OnCall(op string, fn func(path string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[op] = fn
}

// Calls returns how many times op was invoked.
func (m *MemStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// File returns the stored content of p.
func (m *MemStore) File(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[remote.Clean(p)]
	return data, ok
}

// Files returns every stored file path in sorted order.
func (m *MemStore) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MemStore) begin(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if q := m.fails[op]; len(q) > 0 {
		m.fails[op] = q[1:]
		return q[0]
	}
	return nil
}

func (m *MemStore) after(op, p string) {
	m.mu.Lock()
	hook := m.hooks[op]
	m.mu.Unlock()
	if hook != nil {
		hook(p)
	}
}

// List implements remote.Store.
func (m *MemStore) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.begin(OpList); err != nil {
		return nil, err
	}
	dir = remote.Clean(dir)

	m.mu.Lock()
	if !m.dirs[dir] {
		m.mu.Unlock()
		return nil, fmt.Errorf("list %s: %w", dir, remote.ErrNotFound)
	}
	names := m.children(dir)
	m.mu.Unlock()

	m.after(OpList, dir)
	return names, nil
}

func (m *MemStore) children(dir string) []string {
	set := make(map[string]bool)
	for p := range m.files {
		if remote.Dir(p) == dir {
			set[remote.Base(p)] = true
		}
	}
	for p := range m.dirs {
		if p != dir && remote.Dir(p) == dir {
			set[remote.Base(p)] = true
		}
	}

	names := make([]string, 0, len(set))
	for _, n := range m.order[dir] {
		if set[n] {
			names = append(names, n)
			delete(set, n)
		}
	}
	rest := make([]string, 0, len(set))
	for n := range set {
		rest = append(rest, n)
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// IsDir implements remote.Store.
func (m *MemStore) IsDir(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := m.begin(OpIsDir); err != nil {
		return false, err
	}
	p = remote.Clean(p)
	m.mu.Lock()
	isDir := m.dirs[p]
	_, isFile := m.files[p]
	m.mu.Unlock()
	if !isDir && !isFile {
		return false, fmt.Errorf("stat %s: %w", p, remote.ErrNotFound)
	}
	m.after(OpIsDir, p)
	return isDir, nil
}

// Download implements remote.Store.
func (m *MemStore) Download(ctx context.Context, remotePath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.begin(OpDownload); err != nil {
		return err
	}
	remotePath = remote.Clean(remotePath)
	m.mu.Lock()
	data, ok := m.files[remotePath]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("download %s: %w", remotePath, remote.ErrNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return err
	}
	m.after(OpDownload, remotePath)
	return nil
}

// Upload implements remote.Store.
func (m *MemStore) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.begin(OpUpload); err != nil {
		return err
	}
	data, err := os.ReadFile(localPath) // #nosec G304 -- test helper
	if err != nil {
		return err
	}
	remotePath = remote.Clean(remotePath)
	m.mu.Lock()
	m.put(remotePath, data)
	m.mu.Unlock()
	m.after(OpUpload, remotePath)
	return nil
}

// CountSuffix counts files directly under dir whose name has suffix.
func (m *MemStore) CountSuffix(dir, suffix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = remote.Clean(dir)
	n := 0
	for p := range m.files {
		if remote.Dir(p) == dir && strings.HasSuffix(p, suffix) {
			n++
		}
	}
	return n
}

var _ remote.Store = (*MemStore)(nil)
