// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package capacity implements the backpressure gate: the number of frames in
// the remote frame store is compared against a ceiling before new work starts.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/framehaul/internal/metrics"
	"github.com/ManuGH/framehaul/internal/remote"
	"github.com/ManuGH/framehaul/internal/retry"
)

// DefaultFrameExt is the extension of frame files.
const DefaultFrameExt = ".jpg"

// Gate counts frames in FrameDir.
type Gate struct {
	store    remote.Store
	frameDir string
	ext      string
	policy   retry.Policy
}

// NewGate returns a gate over frameDir. An empty ext selects ".jpg".
func NewGate(store remote.Store, frameDir, ext string, policy retry.Policy) *Gate {
	if ext == "" {
		ext = DefaultFrameExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if policy.Retryable == nil {
		policy.Retryable = remote.Retryable
	}
	return &Gate{
		store:    store,
		frameDir: remote.Clean(frameDir),
		ext:      strings.ToLower(ext),
		policy:   policy.WithOp("count_frames"),
	}
}

// FrameDir returns the directory the gate counts.
func (g *Gate) FrameDir() string { return g.frameDir }

// FramesInStore lists the frame directory and counts frame files.
func (g *Gate) FramesInStore(ctx context.Context) (int, error) {
	names, err := retry.Value(ctx, g.policy, func(ctx context.Context) ([]string, error) {
		return g.store.List(ctx, g.frameDir)
	})
	if errors.Is(err, remote.ErrNotFound) {
		// No frame was ever uploaded.
		metrics.SetFramesInStore(0)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count frames in %s: %w", g.frameDir, err)
	}
	n := 0
	for _, name := range names {
		if strings.HasSuffix(strings.ToLower(name), g.ext) {
			n++
		}
	}
	metrics.SetFramesInStore(n)
	return n, nil
}

// HasCapacity reports whether the store holds fewer than ceiling frames.
func (g *Gate) HasCapacity(ctx context.Context, ceiling int) (bool, int, error) {
	n, err := g.FramesInStore(ctx)
	if err != nil {
		return false, 0, err
	}
	return n < ceiling, n, nil
}
