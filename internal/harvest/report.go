// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package harvest

import (
	"time"

	"github.com/ManuGH/framehaul/internal/classify"
	"github.com/ManuGH/framehaul/internal/frames"
)

// Params are the per-run knobs.
type Params struct {
	// MaxFrames is the frame store ceiling.
	MaxFrames int
	// Cargo restricts the run to one cargo type; empty means all.
	Cargo classify.CargoType
	// FPS overrides the cargo-dependent sampling rate when positive.
	FPS float64
	// Video switches to single-video mode for this file name.
	Video string
}

// VideoResult is one processed candidate.
type VideoResult struct {
	RemotePath     string             `json:"remote_path"`
	LocalPath      string             `json:"local_path,omitempty"`
	Outcome        string             `json:"outcome"`
	Cargo          classify.CargoType `json:"cargo,omitempty"`
	Classification *classify.Outcome  `json:"classification,omitempty"`
	TargetFPS      float64            `json:"target_fps,omitempty"`
	Extraction     *frames.Result     `json:"extraction,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// RunResult is the structured report of one run.
type RunResult struct {
	RunID                 string        `json:"run_id"`
	StartedAt             time.Time     `json:"started_at"`
	FinishedAt            time.Time     `json:"finished_at"`
	State                 State         `json:"state"`
	Error                 string        `json:"error,omitempty"`
	Downloaded            int           `json:"videos_downloaded"`
	TotalFramesDownloaded int           `json:"total_frames_downloaded"`
	TotalFramesInStorage  int           `json:"total_frames_in_storage"`
	Videos                []VideoResult `json:"videos"`
}

// Failed reports whether the run carries an error.
func (r RunResult) Failed() bool { return r.Error != "" }

// Duration is the wall time of the run.
func (r RunResult) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Rates are the default target sampling rates.
type Rates struct {
	Euro    float64
	Default float64
}

// DefaultRates sample euro loads at 1 fps and everything else at 0.25 fps.
var DefaultRates = Rates{Euro: 1, Default: 0.25}

// For returns the target rate for cargo.
func (r Rates) For(cargo classify.CargoType) float64 {
	if cargo == classify.CargoEuro {
		return r.Euro
	}
	return r.Default
}
