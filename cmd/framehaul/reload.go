// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"sync"

	"github.com/ManuGH/framehaul/internal/config"
	"github.com/ManuGH/framehaul/internal/harvest"
	xglog "github.com/ManuGH/framehaul/internal/log"
)

// reloadingPipeline serves daemon cycles and rebuilds the pipeline before a
// run when the configuration changed since the previous one.
type reloadingPipeline struct {
	holder *config.Holder
	// fixedMaxFrames keeps the command-line ceiling across reloads.
	fixedMaxFrames bool
	dataDir        string

	mu  sync.Mutex
	gen uint64
	p   *pipeline
}

func newReloadingPipeline(ctx context.Context, holder *config.Holder, fixedMaxFrames bool) (*reloadingPipeline, error) {
	cfg, gen := holder.Get()
	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &reloadingPipeline{
		holder:         holder,
		fixedMaxFrames: fixedMaxFrames,
		dataDir:        cfg.DataDir,
		gen:            gen,
		p:              p,
	}, nil
}

func (r *reloadingPipeline) current() *pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.p
}

func (r *reloadingPipeline) refresh(ctx context.Context) {
	cfg, gen := r.holder.Get()
	r.mu.Lock()
	stale := gen != r.gen
	r.mu.Unlock()
	if !stale {
		return
	}

	logger := xglog.WithComponent("main")
	// Reports and health checks stay on the startup data dir.
	cfg.DataDir = r.dataDir
	next, err := buildPipeline(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Uint64("generation", gen).Msg("cannot apply reloaded configuration, keeping previous pipeline")
		r.mu.Lock()
		r.gen = gen
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	prev := r.p
	r.p, r.gen = next, gen
	r.mu.Unlock()
	if err := prev.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing previous pipeline")
	}
	logger.Info().Uint64("generation", gen).Msg("pipeline rebuilt from reloaded configuration")
}

// Run implements daemon.Runner.
func (r *reloadingPipeline) Run(ctx context.Context, params harvest.Params) harvest.RunResult {
	r.refresh(ctx)
	p := r.current()
	if !r.fixedMaxFrames {
		params.MaxFrames = p.cfg.Harvest.MaxFrames
	}
	return p.orch.Run(ctx, params)
}

// Len implements daemon.HistorySize.
func (r *reloadingPipeline) Len() int { return r.current().history.Len() }

func (r *reloadingPipeline) cleanup(res harvest.RunResult) { r.current().cleanup(res) }

func (r *reloadingPipeline) Close() error { return r.current().Close() }
