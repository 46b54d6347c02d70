// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package frames samples frames from local videos and uploads them to the
// remote frame store.
package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/framehaul/internal/fsutil"
	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/metrics"
	"github.com/ManuGH/framehaul/internal/remote"
	"github.com/ManuGH/framehaul/internal/retry"
)

var (
	// ErrOpen means the video could not be opened for decoding.
	ErrOpen = errors.New("cannot open video")
	// ErrNoFrameRate means the source frame rate is unknown.
	ErrNoFrameRate = errors.New("video has no frame rate")
	// ErrUploadExhausted means a frame upload failed on every attempt.
	ErrUploadExhausted = errors.New("frame upload attempts exhausted")
	// ErrCapacity means the frame store was full before extraction started.
	ErrCapacity = errors.New("frame store at capacity")
	// ErrEmptyVideo means the video opened but produced no decodable frame.
	ErrEmptyVideo = errors.New("video produced no frames")
	// ErrFrameWrite means a sampled frame could not be written locally.
	ErrFrameWrite = errors.New("cannot write frame")
)

const (
	defaultUploadAttempts = 3
	defaultUploadDelay    = 5 * time.Second
	jpegQuality           = 95
)

// FrameCounter is the pre-flight capacity check.
type FrameCounter interface {
	FramesInStore(ctx context.Context) (int, error)
}

// Result describes the extraction of one video.
type Result struct {
	VideoPath string  `json:"video_path"`
	Frames    int     `json:"frames_extracted"`
	Success   bool    `json:"success"`
	SourceFPS float64 `json:"source_fps,omitempty"`
	Interval  int     `json:"interval,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Err       error   `json:"-"`
}

func (r Result) fail(err error) Result {
	r.Success = false
	r.Err = err
	r.Reason = err.Error()
	return r
}

// Config wires a Sampler.
type Config struct {
	Store    remote.Store
	Counter  FrameCounter // optional pre-flight gate
	Decoder  Decoder      // defaults to FFmpegDecoder
	FrameDir string       // remote frame directory
	TempDir  string       // local scratch directory for encoded frames
	// Upload retries each frame; zero fields select 3 attempts 5s apart.
	Upload retry.Policy
}

// Sampler extracts and uploads frames.
type Sampler struct {
	store    remote.Store
	counter  FrameCounter
	decoder  Decoder
	frameDir string
	tempDir  string
	upload   retry.Policy
	logger   zerolog.Logger
}

// NewSampler returns a sampler for cfg.
func NewSampler(cfg Config) *Sampler {
	dec := cfg.Decoder
	if dec == nil {
		dec = FFmpegDecoder{}
	}
	up := cfg.Upload
	if up.Attempts == 0 {
		up.Attempts = defaultUploadAttempts
		up.Delay = defaultUploadDelay
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Sampler{
		store:    cfg.Store,
		counter:  cfg.Counter,
		decoder:  dec,
		frameDir: remote.Clean(cfg.FrameDir),
		tempDir:  tempDir,
		upload:   up.WithOp("upload_frame"),
		logger:   xglog.WithComponent("frames"),
	}
}

// Extract samples localVideoPath at targetFPS and uploads every sampled frame.
// Frames uploaded before a failure stay in the store; Frames counts them.
func (s *Sampler) Extract(ctx context.Context, localVideoPath string, targetFPS float64, frameCeiling int) Result {
	res := Result{VideoPath: localVideoPath}
	logger := s.logger.With().Str(xglog.FieldLocalPath, localVideoPath).Logger()

	if s.counter != nil {
		n, err := s.counter.FramesInStore(ctx)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("frame count unavailable, proceeding")
		case n >= frameCeiling:
			logger.Warn().Int(xglog.FieldFramesInStore, n).Int(xglog.FieldCeiling, frameCeiling).
				Msg("frame store at capacity, skipping video")
			return res.fail(fmt.Errorf("%w: %d >= %d", ErrCapacity, n, frameCeiling))
		}
	}

	if err := os.MkdirAll(s.tempDir, 0o750); err != nil {
		return res.fail(fmt.Errorf("%w: temp dir: %w", ErrFrameWrite, err))
	}

	stream, err := s.decoder.Open(ctx, localVideoPath)
	if err != nil {
		logger.Error().Err(err).Msg("cannot open video")
		return res.fail(fmt.Errorf("%w: %w", ErrOpen, err))
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("close decoder")
		}
	}()

	res.SourceFPS = stream.FPS()
	if res.SourceFPS <= 0 {
		logger.Error().Msg("frame rate unknown")
		return res.fail(ErrNoFrameRate)
	}
	res.Interval = Interval(res.SourceFPS, targetFPS)

	logger.Info().
		Float64(xglog.FieldFPS, res.SourceFPS).
		Float64(xglog.FieldTargetFPS, targetFPS).
		Int(xglog.FieldInterval, res.Interval).
		Msg("extracting frames")

	base := filepath.Base(localVideoPath)
	base = base[:len(base)-len(filepath.Ext(base))]

	decoded := 0
	for ordinal := 0; ; ordinal++ {
		if err := ctx.Err(); err != nil {
			return res.fail(err)
		}
		img, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Decoder gave up mid-stream; keep what was sampled so far.
			logger.Warn().Err(err).Int("ordinal", ordinal).Msg("decoding stopped early")
			break
		}
		decoded++
		if ordinal%res.Interval != 0 {
			continue
		}

		if err := s.emit(ctx, img, FrameName(base, res.Frames)); err != nil {
			logger.Error().Err(err).Int(xglog.FieldFrames, res.Frames).Msg("aborting video")
			return res.fail(err)
		}
		res.Frames++
	}

	if decoded == 0 {
		return res.fail(ErrEmptyVideo)
	}
	res.Success = true
	logger.Info().Int(xglog.FieldFrames, res.Frames).Msg("frames extracted and uploaded")
	return res
}

// emit encodes img to the temp dir, uploads it and removes the temp copy.
func (s *Sampler) emit(ctx context.Context, img image.Image, name string) error {
	local := filepath.Join(s.tempDir, name)
	err := fsutil.WriteAtomic(local, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	})
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrFrameWrite, name, err)
	}

	dst := remote.Join(s.frameDir, name)
	err = retry.Do(ctx, s.upload, func(ctx context.Context) error {
		return s.store.Upload(ctx, local, dst)
	})
	if err != nil {
		metrics.RecordFrameUploadFailure()
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrUploadExhausted, dst, err)
	}
	metrics.RecordFrameUploaded()

	if err := os.Remove(local); err != nil {
		s.logger.Warn().Err(err).Str(xglog.FieldFramePath, local).Msg("remove temp frame")
	}
	return nil
}
