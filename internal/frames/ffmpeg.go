// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package frames

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ManuGH/framehaul/internal/procgroup"
)

// stopGrace is how long ffmpeg may take to exit after Close.
const stopGrace = 2 * time.Second

// FFmpegDecoder decodes videos with the ffmpeg/ffprobe binaries on PATH.
type FFmpegDecoder struct{}

type probeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

type videoInfo struct {
	width, height int
	fps           float64
}

// parseRate parses ffprobe rates such as "25/1", "30000/1001" or "0/0".
func parseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseProbe(data string) (videoInfo, error) {
	var pr probeResult
	if err := json.Unmarshal([]byte(data), &pr); err != nil {
		return videoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, s := range pr.Streams {
		if s.CodecType != "video" {
			continue
		}
		fps := parseRate(s.AvgFrameRate)
		if fps <= 0 {
			fps = parseRate(s.RFrameRate)
		}
		if s.Width <= 0 || s.Height <= 0 {
			return videoInfo{}, errors.New("video stream has no geometry")
		}
		return videoInfo{width: s.Width, height: s.Height, fps: fps}, nil
	}
	return videoInfo{}, errors.New("no video stream")
}

// Open probes path and starts an ffmpeg process piping raw RGBA frames.
func (FFmpegDecoder) Open(ctx context.Context, path string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	info, err := parseProbe(out)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	pr, pw := io.Pipe()
	cmd := ffmpeg.Input(path).
		Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgba", "loglevel": "error"}).
		WithOutput(pw).
		Compile()
	procgroup.Set(cmd)
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, fmt.Errorf("start ffmpeg for %s: %w", path, err)
	}

	s := &ffmpegStream{
		cmd:  cmd,
		r:    pr,
		info: info,
		img:  image.NewRGBA(image.Rect(0, 0, info.width, info.height)),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		pw.CloseWithError(cmd.Wait())
	}()
	return s, nil
}

type ffmpegStream struct {
	cmd  *exec.Cmd
	r    *io.PipeReader
	info videoInfo
	img  *image.RGBA
	done chan struct{}

	closeOnce sync.Once
}

func (s *ffmpegStream) FPS() float64 { return s.info.fps }

func (s *ffmpegStream) Next() (image.Image, error) {
	_, err := io.ReadFull(s.r, s.img.Pix)
	switch {
	case err == nil:
		return s.img, nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Truncated trailing frame.
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("read frame: %w", err)
	}
}

// Close stops ffmpeg if it is still running and waits for it to exit.
func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.r.Close()
		procgroup.Terminate(s.cmd, s.done, stopGrace)
		<-s.done
	})
	return nil
}
