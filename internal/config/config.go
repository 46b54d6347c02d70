// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads framehaul configuration with the precedence
// ENV > YAML file > defaults.
package config

import (
	"path/filepath"
	"time"
)

// Store kinds.
const (
	StoreWebDAV = "webdav"
	StoreGCS    = "gcs"
	StoreLocal  = "local"
)

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	DataDir   string `yaml:"dataDir"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// Source is the store holding the recorder videos.
	Source StoreConfig `yaml:"source"`
	// Frames is the store receiving sampled frames. An empty kind reuses Source.
	Frames StoreConfig `yaml:"frames"`

	Harvest   HarvestConfig   `yaml:"harvest"`
	Retry     RetryConfig     `yaml:"retry"`
	Upload    RetryConfig     `yaml:"upload"`
	Sampling  SamplingConfig  `yaml:"sampling"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	Version string `yaml:"-"`
}

// StoreConfig selects and configures a remote store backend.
type StoreConfig struct {
	Kind     string        `yaml:"kind"`
	URL      string        `yaml:"url"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
	Bucket   string        `yaml:"bucket"`
	Prefix   string        `yaml:"prefix"`
	Root     string        `yaml:"root"`
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// HarvestConfig describes what to harvest and where frames go.
type HarvestConfig struct {
	BaseDir     string   `yaml:"baseDir"`
	FrameDir    string   `yaml:"frameDir"`
	FrameExt    string   `yaml:"frameExt"`
	Extensions  []string `yaml:"extensions"`
	SidecarName string   `yaml:"sidecarName"`
	Blacklist   []string `yaml:"blacklist"`
	MaxFrames   int      `yaml:"maxFrames"`
	KeepVideos  bool     `yaml:"keepVideos"`
	// HistoryFile is relative to DataDir unless absolute.
	HistoryFile string `yaml:"historyFile"`
}

// RetryConfig is a retry policy.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	Jitter   time.Duration `yaml:"jitter"`
}

// SamplingConfig holds target frame rates per cargo type.
type SamplingConfig struct {
	EuroFPS    float64 `yaml:"euroFps"`
	DefaultFPS float64 `yaml:"defaultFps"`
}

// DaemonConfig configures the long-running mode.
type DaemonConfig struct {
	Interval time.Duration `yaml:"interval"`
	Listen   string        `yaml:"listen"`
}

// TelemetryConfig configures OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is "grpc" or "http".
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// DefaultBlacklist lists registrators whose footage is never harvested.
var DefaultBlacklist = []string{"018270348452", "104039", "2024050601", "118270348452"}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:   "data",
		LogLevel:  "info",
		LogFormat: "json",
		Source: StoreConfig{
			Kind:    StoreWebDAV,
			Timeout: 60 * time.Second,
		},
		Harvest: HarvestConfig{
			BaseDir:     "/Tracker/Видео выгрузок",
			FrameDir:    "/Tracker/annotation_frames",
			FrameExt:    ".jpg",
			Extensions:  []string{"mp4"},
			SidecarName: "report.json",
			Blacklist:   append([]string(nil), DefaultBlacklist...),
			MaxFrames:   3000,
			HistoryFile: "downloaded_videos.json",
		},
		Retry:    RetryConfig{Attempts: 3, Delay: time.Second, Jitter: 500 * time.Millisecond},
		Upload:   RetryConfig{Attempts: 3, Delay: 5 * time.Second},
		Sampling: SamplingConfig{EuroFPS: 1, DefaultFPS: 0.25},
		Daemon:   DaemonConfig{Interval: time.Hour, Listen: ":9464"},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// FrameStore returns the effective frame store configuration.
func (c AppConfig) FrameStore() StoreConfig {
	if c.Frames.Kind == "" {
		return c.Source
	}
	return c.Frames
}

// HistoryPath returns the absolute download history file.
func (c AppConfig) HistoryPath() string {
	if filepath.IsAbs(c.Harvest.HistoryFile) {
		return c.Harvest.HistoryFile
	}
	return filepath.Join(c.DataDir, c.Harvest.HistoryFile)
}

// VideoDir is the local directory for downloaded videos.
func (c AppConfig) VideoDir() string { return filepath.Join(c.DataDir, "videos") }

// FrameTempDir is the local scratch directory for encoded frames.
func (c AppConfig) FrameTempDir() string { return filepath.Join(c.DataDir, "frames") }

// LastRunPath is where the latest run report is persisted.
func (c AppConfig) LastRunPath() string { return filepath.Join(c.DataDir, "last_run.json") }
