// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package frames

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/framehaul/internal/remote/remotetest"
	"github.com/ManuGH/framehaul/internal/retry"
)

type fakeDecoder struct {
	fps     float64
	frames  int
	openErr error
	failAt  int // ordinal whose read fails; 0 disables
	opened  int
	closed  int
}

func (d *fakeDecoder) Open(_ context.Context, _ string) (Stream, error) {
	d.opened++
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &fakeStream{d: d, img: image.NewRGBA(image.Rect(0, 0, 4, 4))}, nil
}

type fakeStream struct {
	d   *fakeDecoder
	img *image.RGBA
	pos int
}

func (s *fakeStream) FPS() float64 { return s.d.fps }

func (s *fakeStream) Next() (image.Image, error) {
	if s.d.failAt > 0 && s.pos == s.d.failAt {
		return nil, errors.New("corrupt packet")
	}
	if s.pos >= s.d.frames {
		return nil, io.EOF
	}
	s.img.Set(0, 0, color.RGBA{R: uint8(s.pos), A: 255})
	s.pos++
	return s.img, nil
}

func (s *fakeStream) Close() error {
	s.d.closed++
	return nil
}

type fixedCounter struct {
	n   int
	err error
}

func (c fixedCounter) FramesInStore(context.Context) (int, error) { return c.n, c.err }

func newSampler(t *testing.T, s *remotetest.MemStore, dec Decoder, counter FrameCounter) (*Sampler, string) {
	t.Helper()
	tmp := t.TempDir()
	return NewSampler(Config{
		Store:    s,
		Counter:  counter,
		Decoder:  dec,
		FrameDir: "/frames",
		TempDir:  tmp,
		Upload:   retry.Policy{Attempts: 3},
	}), tmp
}

func TestExtract_SamplesAtIntervalAndNamesSequentially(t *testing.T) {
	s := remotetest.NewMemStore()
	dec := &fakeDecoder{fps: 25, frames: 100}
	sampler, tmp := newSampler(t, s, dec, nil)

	res := sampler.Extract(context.Background(), "/work/clip.mp4", 1, 1000)
	require.True(t, res.Success, res.Reason)
	assert.Equal(t, 4, res.Frames)
	assert.Equal(t, 25, res.Interval)
	assert.Equal(t, 25.0, res.SourceFPS)
	assert.Equal(t, []string{
		"/frames/clip_000000.jpg",
		"/frames/clip_000001.jpg",
		"/frames/clip_000002.jpg",
		"/frames/clip_000003.jpg",
	}, s.Files())
	assert.Equal(t, 1, dec.closed)

	// Temp copies are removed after upload.
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	data, ok := s.File("/frames/clip_000000.jpg")
	require.True(t, ok)
	_, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestExtract_LowTargetRate(t *testing.T) {
	s := remotetest.NewMemStore()
	sampler, _ := newSampler(t, s, &fakeDecoder{fps: 25, frames: 250}, nil)

	res := sampler.Extract(context.Background(), "/work/clip.mp4", 0.25, 1000)
	require.True(t, res.Success)
	assert.Equal(t, 100, res.Interval)
	assert.Equal(t, 3, res.Frames)
}

func TestExtract_PartialFailureKeepsUploadedFrames(t *testing.T) {
	s := remotetest.NewMemStore()
	boom := errors.New("507 insufficient storage")
	uploads := 0
	s.OnCall(remotetest.OpUpload, func(string) {
		uploads++
		if uploads == 4 {
			s.FailNext(remotetest.OpUpload, boom, boom, boom)
		}
	})
	sampler, tmp := newSampler(t, s, &fakeDecoder{fps: 10, frames: 100}, nil)

	res := sampler.Extract(context.Background(), "/work/clip.mp4", 1, 1000)
	assert.False(t, res.Success)
	assert.Equal(t, 4, res.Frames)
	assert.ErrorIs(t, res.Err, ErrUploadExhausted)
	assert.ErrorIs(t, res.Err, boom)
	assert.Len(t, s.Files(), 4)
	assert.Equal(t, 4+3, s.Calls(remotetest.OpUpload))

	// The frame that failed is left in the temp dir.
	_, err := os.Stat(filepath.Join(tmp, "clip_000004.jpg"))
	assert.NoError(t, err)
}

func TestExtract_TransientUploadFailureRetried(t *testing.T) {
	s := remotetest.NewMemStore()
	s.FailNext(remotetest.OpUpload, errors.New("timeout"), errors.New("timeout"))
	sampler, _ := newSampler(t, s, &fakeDecoder{fps: 1, frames: 2}, nil)

	res := sampler.Extract(context.Background(), "/work/clip.mp4", 1, 1000)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Frames)
}

func TestExtract_HardFailures(t *testing.T) {
	tests := []struct {
		name    string
		dec     *fakeDecoder
		counter FrameCounter
		want    error
		opened  int
	}{
		{"open fails", &fakeDecoder{openErr: errors.New("moov atom not found")}, nil, ErrOpen, 1},
		{"no frame rate", &fakeDecoder{fps: 0, frames: 10}, nil, ErrNoFrameRate, 1},
		{"empty video", &fakeDecoder{fps: 25}, nil, ErrEmptyVideo, 1},
		{"at capacity", &fakeDecoder{fps: 25, frames: 10}, fixedCounter{n: 50}, ErrCapacity, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := remotetest.NewMemStore()
			sampler, _ := newSampler(t, s, tt.dec, tt.counter)

			res := sampler.Extract(context.Background(), "/work/clip.mp4", 1, 50)
			assert.False(t, res.Success)
			assert.Equal(t, 0, res.Frames)
			assert.ErrorIs(t, res.Err, tt.want)
			assert.Equal(t, tt.opened, tt.dec.opened)
			assert.Equal(t, 0, s.Calls(remotetest.OpUpload))
		})
	}
}

func TestExtract_CounterErrorProceeds(t *testing.T) {
	s := remotetest.NewMemStore()
	sampler, _ := newSampler(t, s, &fakeDecoder{fps: 1, frames: 1}, fixedCounter{err: errors.New("propfind failed")})

	res := sampler.Extract(context.Background(), "/work/clip.mp4", 1, 10)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Frames)
}

func TestExtract_DecodeErrorEndsStream(t *testing.T) {
	s := remotetest.NewMemStore()
	sampler, _ := newSampler(t, s, &fakeDecoder{fps: 1, frames: 10, failAt: 3}, nil)

	res := sampler.Extract(context.Background(), "/work/clip.mp4", 1, 100)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Frames)
}

func TestExtract_Cancelled(t *testing.T) {
	s := remotetest.NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	s.OnCall(remotetest.OpUpload, func(string) { cancel() })
	sampler, _ := newSampler(t, s, &fakeDecoder{fps: 1, frames: 10}, nil)

	res := sampler.Extract(ctx, "/work/clip.mp4", 1, 100)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Frames)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestFFmpegDecoder_Integration(t *testing.T) {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
	_, err := FFmpegDecoder{}.Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}
