// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package localfs exposes a local directory (for example an rclone mount)
// as a remote.Store.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ManuGH/framehaul/internal/fsutil"
	"github.com/ManuGH/framehaul/internal/remote"
)

// Store maps remote paths onto files below Root.
type Store struct {
	Root string
}

// New returns a store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) resolve(p string) (string, error) {
	local, err := fsutil.ConfineRelPath(s.Root, remote.Clean(p))
	if err != nil {
		return "", mapErr(err)
	}
	return local, nil
}

func mapErr(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", remote.ErrNotFound, err)
	}
	return err
}

// List implements remote.Store.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	local, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(local)
	if err != nil {
		return nil, mapErr(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// IsDir implements remote.Store.
func (s *Store) IsDir(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	local, err := s.resolve(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(local)
	if err != nil {
		return false, mapErr(err)
	}
	return info.IsDir(), nil
}

// Download implements remote.Store.
func (s *Store) Download(ctx context.Context, remotePath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := s.resolve(remotePath)
	if err != nil {
		return err
	}
	if err := fsutil.IsRegularFile(src); err != nil {
		return mapErr(err)
	}
	f, err := os.Open(src) // #nosec G304 -- confined to Root
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = f.Close() }()
	return fsutil.CopyToFile(localPath, f)
}

// Upload implements remote.Store.
func (s *Store) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.resolve(remotePath)
	if err != nil {
		return err
	}
	f, err := os.Open(localPath) // #nosec G304 -- caller-controlled local path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return fsutil.CopyToFile(dst, f)
}

var _ remote.Store = (*Store)(nil)
