// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package traverse

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/framehaul/internal/remote"
	"github.com/ManuGH/framehaul/internal/video"
)

// ErrNotResolved is returned when a single target video cannot be located.
var ErrNotResolved = errors.New("video not resolved")

// Resolve locates filename under base using the recorder directory layout
// "<base>/<REGID>/<YYYY.M.D>/<filename>".
func (w *Walker) Resolve(ctx context.Context, base, filename string) (string, error) {
	cand, err := video.Parse(filename)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotResolved, err)
	}

	dir := cand.DayDir(base)
	names, err := w.list(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("%w: list %s: %w", ErrNotResolved, dir, err)
	}
	for _, name := range names {
		if remote.Equal(name, cand.FileName) {
			return remote.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("%w: %s not in %s", ErrNotResolved, cand.FileName, dir)
}
