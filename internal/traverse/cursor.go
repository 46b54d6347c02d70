// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package traverse

import (
	"context"

	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/remote"
)

// frame is one directory on the explicit walk stack.
type frame struct {
	dir          string
	registrators bool

	listed bool
	videos []string
	others []string
	vi, oi int
}

// Cursor is a resumable position in a depth-first walk. Within a directory
// videos are yielded first, then subdirectories are descended in listing
// order, each subtree exhausted before its next sibling.
type Cursor struct {
	w     *Walker
	stack []*frame
	err   error
}

// Next returns the next qualifying video path. ok is false once the walk is
// exhausted or ctx is done; Err distinguishes the two. Listing and stat
// failures are logged and the affected branch is skipped.
func (c *Cursor) Next(ctx context.Context) (path string, ok bool) {
	for len(c.stack) > 0 {
		if err := ctx.Err(); err != nil {
			c.err = err
			return "", false
		}
		top := c.stack[len(c.stack)-1]

		if !top.listed {
			if !c.load(ctx, top) {
				c.pop()
				continue
			}
		}

		if top.vi < len(top.videos) {
			name := top.videos[top.vi]
			top.vi++
			if p, yield := c.qualify(top.dir, name); yield {
				return p, true
			}
			continue
		}

		if top.oi < len(top.others) {
			name := top.others[top.oi]
			top.oi++
			c.descend(ctx, top, name)
			continue
		}

		c.pop()
	}
	return "", false
}

// Err returns the context error that stopped the walk, if any.
func (c *Cursor) Err() error { return c.err }

func (c *Cursor) pop() {
	c.stack[len(c.stack)-1] = nil
	c.stack = c.stack[:len(c.stack)-1]
}

func (c *Cursor) load(ctx context.Context, f *frame) bool {
	f.listed = true
	names, err := c.w.list(ctx, f.dir)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.w.logger.Warn().Err(err).Str(xglog.FieldRemotePath, f.dir).Msg("listing failed, skipping branch")
		return false
	}
	for _, name := range names {
		if c.w.IsVideo(name) {
			f.videos = append(f.videos, name)
		} else {
			f.others = append(f.others, name)
		}
	}
	return true
}

func (c *Cursor) qualify(dir, name string) (string, bool) {
	p := remote.Join(dir, name)
	if c.w.Blacklisted(name) {
		c.w.logger.Debug().Str(xglog.FieldRemotePath, p).Msg("skipping blacklisted video")
		return "", false
	}
	if c.w.seen != nil && c.w.seen.Contains(p) {
		return "", false
	}
	return p, true
}

func (c *Cursor) descend(ctx context.Context, f *frame, name string) {
	if f.registrators && c.w.Blacklisted(name) {
		c.w.logger.Info().Str(xglog.FieldRegistrator, name).Msg("skipping blacklisted registrator")
		return
	}
	p := remote.Join(f.dir, name)
	isDir, err := c.w.isDir(ctx, p)
	if err != nil {
		if ctx.Err() == nil {
			c.w.logger.Warn().Err(err).Str(xglog.FieldRemotePath, p).Msg("stat failed, skipping entry")
		}
		return
	}
	if isDir {
		c.stack = append(c.stack, &frame{dir: p})
	}
}
