// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package traverse walks the remote video tree lazily and yields candidate
// video paths one at a time.
package traverse

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/remote"
	"github.com/ManuGH/framehaul/internal/retry"
	"github.com/ManuGH/framehaul/internal/video"
)

// Seen reports whether a path has already been downloaded.
type Seen interface {
	Contains(path string) bool
}

// Walker holds what every cursor needs. The zero value is not usable; build
// one with NewWalker.
type Walker struct {
	store      remote.Store
	policy     retry.Policy
	extensions []string
	blacklist  []string
	seen       Seen
	logger     zerolog.Logger
}

// Options tune a Walker.
type Options struct {
	Extensions []string // video extensions, default "mp4"
	Blacklist  []string // registrator tokens; names containing one are skipped
	Seen       Seen     // optional download history
	Policy     retry.Policy
}

// NewWalker returns a walker over store.
func NewWalker(store remote.Store, opts Options) *Walker {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{"mp4"}
	}
	policy := opts.Policy
	if policy.Attempts == 0 {
		policy = retry.Default("")
	}
	if policy.Retryable == nil {
		policy.Retryable = remote.Retryable
	}
	return &Walker{
		store:      store,
		policy:     policy,
		extensions: exts,
		blacklist:  opts.Blacklist,
		seen:       opts.Seen,
		logger:     xglog.WithComponent("traverse"),
	}
}

// Blacklisted reports whether name contains a blacklisted registrator token.
func (w *Walker) Blacklisted(name string) bool {
	for _, token := range w.blacklist {
		if token != "" && strings.Contains(name, token) {
			return true
		}
	}
	return false
}

// IsVideo reports whether name carries one of the video extensions.
func (w *Walker) IsVideo(name string) bool {
	return video.HasExtension(name, w.extensions)
}

// Walk returns a cursor over the subtree rooted at root.
func (w *Walker) Walk(root string) *Cursor {
	return &Cursor{w: w, stack: []*frame{{dir: remote.Clean(root)}}}
}

// WalkRegistrators returns a cursor over base whose direct children are
// registrator directories; blacklisted registrators are never entered. The
// children are walked one after another in listing order.
func (w *Walker) WalkRegistrators(base string) *Cursor {
	return &Cursor{w: w, stack: []*frame{{dir: remote.Clean(base), registrators: true}}}
}

func (w *Walker) list(ctx context.Context, dir string) ([]string, error) {
	return retry.Value(ctx, w.policy.WithOp("list"), func(ctx context.Context) ([]string, error) {
		return w.store.List(ctx, dir)
	})
}

func (w *Walker) isDir(ctx context.Context, p string) (bool, error) {
	return retry.Value(ctx, w.policy.WithOp("isdir"), func(ctx context.Context) (bool, error) {
		return w.store.IsDir(ctx, p)
	})
}
