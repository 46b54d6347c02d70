// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package remote defines the hierarchical remote store surface consumed by the
// harvester and the path rules shared by every backend.
package remote

import (
	"context"
	"errors"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrNotFound is returned (wrapped) by backends when a path does not exist.
var ErrNotFound = errors.New("remote path not found")

// Store is a hierarchical file repository addressed by slash-separated paths.
type Store interface {
	// List returns the entry names (not full paths) directly under dir.
	List(ctx context.Context, dir string) ([]string, error)
	// IsDir reports whether p is a directory.
	IsDir(ctx context.Context, p string) (bool, error)
	// Download copies the remote file byte-exactly to localPath.
	Download(ctx context.Context, remotePath, localPath string) error
	// Upload copies localPath byte-exactly to remotePath, overwriting it.
	Upload(ctx context.Context, localPath, remotePath string) error
}

// Clean normalizes a remote path: NFC form, no doubled separators, no
// trailing separator except for the root.
func Clean(p string) string {
	p = norm.NFC.String(p)
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// Join joins elements with "/" and normalizes the result.
func Join(elem ...string) string {
	return Clean(strings.Join(elem, "/"))
}

// Dir returns the parent directory of p.
func Dir(p string) string {
	return path.Dir(Clean(p))
}

// Base returns the last element of p.
func Base(p string) string {
	return path.Base(Clean(p))
}

// Equal reports whether two remote paths name the same entry.
func Equal(a, b string) bool {
	return Clean(a) == Clean(b)
}

// Retryable is the retry predicate for store calls: a missing path will not
// appear by asking again.
func Retryable(err error) bool {
	return !errors.Is(err, ErrNotFound)
}
