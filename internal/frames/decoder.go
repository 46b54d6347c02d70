// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package frames

import (
	"context"
	"image"
)

// Decoder opens local video files for sequential frame reads.
type Decoder interface {
	Open(ctx context.Context, path string) (Stream, error)
}

// Stream yields decoded frames in presentation order.
type Stream interface {
	// FPS is the source frame rate; non-positive means unknown.
	FPS() float64
	// Next returns the next frame, or io.EOF after the last one. The image
	// is only valid until the following call.
	Next() (image.Image, error)
	Close() error
}
