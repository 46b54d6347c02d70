// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"github.com/ManuGH/framehaul/internal/validate"
)

var storeKinds = []string{StoreWebDAV, StoreGCS, StoreLocal}

// Validate checks a resolved configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("dataDir", cfg.DataDir, false)
	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", err.Error(), cfg.LogLevel)
	}
	v.OneOf("logFormat", cfg.LogFormat, []string{"json", "console"})

	validateStore(v, "source", cfg.Source)
	if cfg.Frames.Kind != "" {
		validateStore(v, "frames", cfg.Frames)
	}

	v.RemotePath("harvest.baseDir", cfg.Harvest.BaseDir)
	v.RemotePath("harvest.frameDir", cfg.Harvest.FrameDir)
	v.NotEmpty("harvest.frameExt", cfg.Harvest.FrameExt)
	v.NotEmpty("harvest.sidecarName", cfg.Harvest.SidecarName)
	v.NotEmpty("harvest.historyFile", cfg.Harvest.HistoryFile)
	if len(cfg.Harvest.Extensions) == 0 {
		v.AddError("harvest.extensions", "at least one video extension is required", cfg.Harvest.Extensions)
	}
	v.Positive("harvest.maxFrames", cfg.Harvest.MaxFrames)

	v.Range("retry.attempts", cfg.Retry.Attempts, 1, 20)
	v.NonNegativeDuration("retry.delay", cfg.Retry.Delay)
	v.NonNegativeDuration("retry.jitter", cfg.Retry.Jitter)
	v.Range("upload.attempts", cfg.Upload.Attempts, 1, 20)
	v.NonNegativeDuration("upload.delay", cfg.Upload.Delay)

	v.PositiveFloat("sampling.euroFps", cfg.Sampling.EuroFPS)
	v.PositiveFloat("sampling.defaultFps", cfg.Sampling.DefaultFPS)

	if cfg.Daemon.Interval <= 0 {
		v.AddError("daemon.interval", "interval must be positive", cfg.Daemon.Interval)
	}
	if cfg.Daemon.Listen != "" {
		v.ListenAddr("daemon.listen", cfg.Daemon.Listen)
	}

	if t := cfg.Telemetry; t.Enabled {
		v.OneOf("telemetry.exporter", t.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", t.Endpoint)
		if t.SamplingRate < 0 || t.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate", "sampling rate must be between 0 and 1", t.SamplingRate)
		}
	}

	return v.Err()
}

func validateStore(v *validate.Validator, field string, s StoreConfig) {
	v.OneOf(field+".kind", s.Kind, storeKinds)
	switch s.Kind {
	case StoreWebDAV:
		v.URL(field+".url", s.URL, []string{"http", "https"})
	case StoreGCS:
		v.NotEmpty(field+".bucket", s.Bucket)
	case StoreLocal:
		v.Directory(field+".root", s.Root, true)
	}
	if s.RateLimit < 0 {
		v.AddError(field+".rateLimit", "rate limit cannot be negative", s.RateLimit)
	}
	v.NonNegative(field+".rateBurst", s.RateBurst)
	v.NonNegativeDuration(field+".timeout", s.Timeout)
}
