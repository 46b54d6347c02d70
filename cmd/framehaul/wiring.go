// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/time/rate"

	"github.com/ManuGH/framehaul/internal/capacity"
	"github.com/ManuGH/framehaul/internal/classify"
	"github.com/ManuGH/framehaul/internal/config"
	"github.com/ManuGH/framehaul/internal/frames"
	"github.com/ManuGH/framehaul/internal/fsutil"
	"github.com/ManuGH/framehaul/internal/harvest"
	"github.com/ManuGH/framehaul/internal/history"
	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/remote"
	"github.com/ManuGH/framehaul/internal/remote/gcs"
	"github.com/ManuGH/framehaul/internal/remote/localfs"
	"github.com/ManuGH/framehaul/internal/remote/webdav"
	"github.com/ManuGH/framehaul/internal/retry"
	"github.com/ManuGH/framehaul/internal/traverse"
)

// pipeline is the fully wired harvest stack for one configuration.
type pipeline struct {
	cfg     config.AppConfig
	gate    *capacity.Gate
	history *history.Store
	orch    *harvest.Orchestrator
	closers []func() error
}

// openStore builds the backend selected by sc. The returned close func is
// never nil.
func openStore(ctx context.Context, sc config.StoreConfig) (remote.Store, func() error, error) {
	var (
		s       remote.Store
		closeFn = func() error { return nil }
	)
	switch sc.Kind {
	case config.StoreWebDAV:
		w, err := webdav.New(webdav.Config{
			URL:      sc.URL,
			User:     sc.User,
			Password: sc.Password,
			Timeout:  sc.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		s = w
	case config.StoreGCS:
		g, err := gcs.Open(ctx, sc.Bucket, sc.Prefix)
		if err != nil {
			return nil, nil, err
		}
		s, closeFn = g, g.Close
	case config.StoreLocal:
		s = localfs.New(sc.Root)
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", sc.Kind)
	}
	if sc.RateLimit > 0 {
		s = remote.RateLimited(s, rate.Limit(sc.RateLimit), sc.RateBurst)
	}
	return s, closeFn, nil
}

func retryPolicy(rc config.RetryConfig) retry.Policy {
	return retry.Policy{Attempts: rc.Attempts, Delay: rc.Delay, Jitter: rc.Jitter, Retryable: remote.Retryable}
}

func openHistory(cfg config.AppConfig) (*history.Store, error) {
	h, err := history.Load(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("load download history: %w", err)
	}
	return h, nil
}

func buildPipeline(ctx context.Context, cfg config.AppConfig) (*pipeline, error) {
	p := &pipeline{cfg: cfg}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	source, closeSource, err := openStore(ctx, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("open source store: %w", err)
	}
	p.closers = append(p.closers, closeSource)

	frameStore := source
	if fc := cfg.FrameStore(); fc != cfg.Source {
		fs, closeFrames, err := openStore(ctx, fc)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("open frame store: %w", err)
		}
		p.closers = append(p.closers, closeFrames)
		frameStore = fs
	}

	if p.history, err = openHistory(cfg); err != nil {
		_ = p.Close()
		return nil, err
	}

	policy := retryPolicy(cfg.Retry)
	p.gate = capacity.NewGate(frameStore, cfg.Harvest.FrameDir, cfg.Harvest.FrameExt, policy)

	walker := traverse.NewWalker(source, traverse.Options{
		Extensions: cfg.Harvest.Extensions,
		Blacklist:  cfg.Harvest.Blacklist,
		Seen:       p.history,
		Policy:     policy,
	})
	sampler := frames.NewSampler(frames.Config{
		Store:    frameStore,
		Counter:  p.gate,
		FrameDir: cfg.Harvest.FrameDir,
		TempDir:  cfg.FrameTempDir(),
		Upload:   retryPolicy(cfg.Upload),
	})

	p.orch = harvest.New(harvest.Deps{
		Store:      source,
		Walker:     walker,
		Gate:       p.gate,
		Classifier: classify.NewClassifier(source, policy, cfg.Harvest.SidecarName, cfg.FrameTempDir()),
		Extractor:  sampler,
		History:    p.history,
	}, harvest.Options{
		BaseDir:  cfg.Harvest.BaseDir,
		VideoDir: cfg.VideoDir(),
		Rates:    harvest.Rates{Euro: cfg.Sampling.EuroFPS, Default: cfg.Sampling.DefaultFPS},
		Download: policy,
	})
	return p, nil
}

// afterRun persists the run report and removes local videos.
func (p *pipeline) afterRun(res harvest.RunResult) {
	logger := xglog.WithComponent("main")
	if err := fsutil.WriteJSON(p.cfg.LastRunPath(), res); err != nil {
		logger.Warn().Err(err).Msg("cannot persist run report")
	}
	p.cleanup(res)
}

func (p *pipeline) cleanup(harvest.RunResult) {
	if p.cfg.Harvest.KeepVideos {
		return
	}
	logger := xglog.WithComponent("main")
	n, err := harvest.CleanupLocalVideos(p.cfg.VideoDir(), p.cfg.Harvest.Extensions)
	if err != nil {
		logger.Warn().Err(err).Msg("local video cleanup incomplete")
	}
	if n > 0 {
		logger.Info().Int("removed", n).Msg("removed local videos")
	}
}

func (p *pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	return errors.Join(errs...)
}
