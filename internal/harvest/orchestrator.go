// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package harvest drives one harvesting run: check capacity, pick the next
// video, classify, download, extract frames, record history, repeat.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/framehaul/internal/classify"
	"github.com/ManuGH/framehaul/internal/frames"
	"github.com/ManuGH/framehaul/internal/history"
	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/metrics"
	"github.com/ManuGH/framehaul/internal/remote"
	"github.com/ManuGH/framehaul/internal/retry"
	"github.com/ManuGH/framehaul/internal/telemetry"
	"github.com/ManuGH/framehaul/internal/traverse"
	"github.com/ManuGH/framehaul/internal/video"
)

const tracerName = "framehaul/harvest"

// Gate is the backpressure check.
type Gate interface {
	HasCapacity(ctx context.Context, ceiling int) (bool, int, error)
	FramesInStore(ctx context.Context) (int, error)
}

// Classifier assigns a cargo type to a remote video.
type Classifier interface {
	Classify(ctx context.Context, videoPath string) classify.Outcome
}

// Extractor samples and uploads frames of a local video.
type Extractor interface {
	Extract(ctx context.Context, localVideoPath string, targetFPS float64, frameCeiling int) frames.Result
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store      remote.Store // video store, used for downloads
	Walker     *traverse.Walker
	Gate       Gate
	Classifier Classifier
	Extractor  Extractor
	History    *history.Store
}

// Options configure an Orchestrator.
type Options struct {
	BaseDir  string // remote root of the registrator directories
	VideoDir string // local directory for downloaded videos
	Rates    Rates
	Download retry.Policy
}

// Orchestrator runs harvests. Runs are sequential; Run must not be called
// concurrently.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New returns an orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.Rates == (Rates{}) {
		opts.Rates = DefaultRates
	}
	if opts.Download.Attempts == 0 {
		opts.Download = retry.Default("")
	}
	if opts.Download.Retryable == nil {
		opts.Download.Retryable = remote.Retryable
	}
	opts.Download = opts.Download.WithOp("download_video")
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: xglog.WithComponent("harvest"),
		now:    time.Now,
	}
}

// run holds the mutable state of one Run call.
type run struct {
	o      *Orchestrator
	ctx    context.Context
	params Params
	logger zerolog.Logger
	cursor *traverse.Cursor
	state  State
	res    *RunResult

	single bool
}

// Run executes one harvest and returns its report. It never panics on remote
// failures; the report's State and Error describe how the run ended.
func (o *Orchestrator) Run(ctx context.Context, p Params) RunResult {
	id := uuid.NewString()
	ctx = xglog.ContextWithRunID(ctx, id)
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "harvest.run", trace.WithAttributes(
		attribute.String(telemetry.RunIDKey, id),
		attribute.Int(telemetry.RunCeilingKey, p.MaxFrames),
		attribute.String(telemetry.RunCargoKey, string(p.Cargo)),
	))
	defer span.End()

	res := RunResult{RunID: id, StartedAt: o.now().UTC(), Videos: []VideoResult{}}
	r := &run{
		o:      o,
		ctx:    ctx,
		params: p,
		logger: o.logger.With().Str(xglog.FieldRunID, id).Logger(),
		state:  StateInit,
		res:    &res,
		single: p.Video != "",
	}

	r.logger.Info().
		Int(xglog.FieldCeiling, p.MaxFrames).
		Str(xglog.FieldCargo, string(p.Cargo)).
		Float64(xglog.FieldTargetFPS, p.FPS).
		Str("video", p.Video).
		Msg("harvest run started")

	r.loop()

	res.State = r.state
	r.finalCount()
	res.FinishedAt = o.now().UTC()
	metrics.RecordRun(string(res.State), res.Duration())
	span.SetAttributes(
		attribute.String(telemetry.RunStateKey, string(res.State)),
		attribute.Int(telemetry.RunVideosKey, res.Downloaded),
		attribute.Int(telemetry.RunFramesKey, res.TotalFramesDownloaded),
	)
	if res.Failed() {
		span.SetStatus(codes.Error, res.Error)
	}

	ev := r.logger.Info()
	if res.Failed() {
		ev = r.logger.Warn().Str("error", res.Error)
	}
	ev.Str("state", string(res.State)).
		Int("videos_downloaded", res.Downloaded).
		Int("frames_downloaded", res.TotalFramesDownloaded).
		Int(xglog.FieldFramesInStore, res.TotalFramesInStorage).
		Dur("duration", res.Duration()).
		Msg("harvest run finished")
	return res
}

func (r *run) to(next State) {
	r.logger.Debug().Str(xglog.FieldOldState, string(r.state)).Str(xglog.FieldNewState, string(next)).Msg("state transition")
	r.state = next
}

func (r *run) fail(next State, err error) {
	r.res.Error = err.Error()
	r.to(next)
}

func (r *run) loop() {
	if err := os.MkdirAll(r.o.opts.VideoDir, 0o750); err != nil {
		r.fail(StateInitError, fmt.Errorf("create video dir: %w", err))
		return
	}
	if !r.single {
		r.cursor = r.o.deps.Walker.WalkRegistrators(r.o.opts.BaseDir)
	}
	r.to(StateCheckCapacity)

	for !r.state.Terminal() {
		if err := r.ctx.Err(); err != nil {
			r.fail(StateCancelled, err)
			return
		}
		r.step()
	}
}

// step runs one candidate from check_capacity through record_history, or
// ends the run.
func (r *run) step() {
	if !r.checkCapacity() {
		return
	}

	r.to(StateFetchCandidate)
	path, ok := r.fetch()
	if !ok {
		return
	}
	r.processCandidate(path)

	if r.single {
		r.to(StateExhausted)
		return
	}
	r.to(StateCheckCapacity)
}

func (r *run) checkCapacity() bool {
	ok, n, err := r.o.deps.Gate.HasCapacity(r.ctx, r.params.MaxFrames)
	if err != nil {
		if r.ctx.Err() != nil {
			r.fail(StateCancelled, r.ctx.Err())
			return false
		}
		r.logger.Error().Err(err).Msg("cannot determine frame store capacity")
		r.fail(StateCapacityUnknown, fmt.Errorf("capacity check: %w", err))
		return false
	}
	r.res.TotalFramesInStorage = n
	if ok {
		r.logger.Info().Int(xglog.FieldFramesInStore, n).Int(xglog.FieldCeiling, r.params.MaxFrames).
			Msg("frame store has capacity, continuing")
		return true
	}

	r.logger.Info().Int(xglog.FieldFramesInStore, n).Int(xglog.FieldCeiling, r.params.MaxFrames).
		Msg("frame ceiling reached, stopping downloads")
	if r.res.Downloaded == 0 {
		r.fail(StateCapacityReached, fmt.Errorf("frame store already holds %d of %d frames, nothing was downloaded", n, r.params.MaxFrames))
		return false
	}
	r.to(StateCapacityReached)
	return false
}

func (r *run) fetch() (string, bool) {
	if r.single {
		p, err := r.o.deps.Walker.Resolve(r.ctx, r.o.opts.BaseDir, r.params.Video)
		if err != nil {
			if r.ctx.Err() != nil {
				r.fail(StateCancelled, r.ctx.Err())
				return "", false
			}
			r.logger.Error().Err(err).Str("video", r.params.Video).Msg("cannot resolve target video")
			r.fail(StateResolutionError, err)
			return "", false
		}
		return p, true
	}

	for {
		p, ok := r.cursor.Next(r.ctx)
		if !ok {
			if err := r.cursor.Err(); err != nil {
				r.fail(StateCancelled, err)
				return "", false
			}
			r.logger.Info().Msg("all videos processed")
			r.to(StateExhausted)
			return "", false
		}
		if r.o.deps.History.Contains(p) {
			r.logger.Debug().Str(xglog.FieldRemotePath, p).Msg("already downloaded, skipping")
			continue
		}
		return p, true
	}
}

func (r *run) record(span trace.Span, v VideoResult) {
	r.res.Videos = append(r.res.Videos, v)
	metrics.RecordVideo(v.Outcome)
	frames := 0
	if v.Extraction != nil {
		frames = v.Extraction.Frames
	}
	span.SetAttributes(telemetry.VideoAttributes(v.Outcome, string(v.Cargo), frames)...)
	if v.Outcome == OutcomeDownloadFailed || v.Outcome == OutcomeExtractFailed {
		span.SetStatus(codes.Error, v.Error)
	}
}

func (r *run) processCandidate(remotePath string) {
	logger := r.logger.With().Str(xglog.FieldRemotePath, remotePath).Logger()
	ctx, span := telemetry.Tracer(tracerName).Start(r.ctx, "harvest.video",
		trace.WithAttributes(attribute.String(telemetry.VideoPathKey, remotePath)))
	defer span.End()

	cand, err := video.Parse(remotePath)
	if err != nil {
		logger.Warn().Err(err).Msg("malformed video name, skipping")
		r.record(span, VideoResult{RemotePath: remotePath, Outcome: OutcomeMalformed, Error: err.Error()})
		return
	}

	r.to(StateClassify)
	outcome := r.o.deps.Classifier.Classify(ctx, remotePath)
	if r.params.Cargo != "" && outcome.Cargo != r.params.Cargo {
		logger.Info().Str(xglog.FieldCargo, outcome.Cargo.String()).Str("filter", r.params.Cargo.String()).
			Msg("cargo type does not match filter, skipping")
		r.record(span, VideoResult{RemotePath: remotePath, Outcome: OutcomeFiltered, Cargo: outcome.Cargo, Classification: &outcome})
		return
	}

	r.to(StateDownload)
	local := filepath.Join(r.o.opts.VideoDir, cand.FileName)
	vr := VideoResult{
		RemotePath:     remotePath,
		LocalPath:      local,
		Cargo:          outcome.Cargo,
		Classification: &outcome,
	}
	if err := r.download(ctx, remotePath, local); err != nil {
		if r.ctx.Err() != nil {
			return
		}
		logger.Error().Err(err).Msg("download failed")
		vr.Outcome = OutcomeDownloadFailed
		vr.Error = err.Error()
		r.record(span, vr)
		return
	}
	r.res.Downloaded++
	logger.Info().Str(xglog.FieldLocalPath, local).Msg("video downloaded")

	r.to(StateExtract)
	vr.TargetFPS = r.params.FPS
	if vr.TargetFPS <= 0 {
		vr.TargetFPS = r.o.opts.Rates.For(outcome.Cargo)
	}
	ext := r.o.deps.Extractor.Extract(ctx, local, vr.TargetFPS, r.params.MaxFrames)
	vr.Extraction = &ext
	r.res.TotalFramesDownloaded += ext.Frames
	if ext.Success {
		vr.Outcome = OutcomeExtracted
	} else {
		vr.Outcome = OutcomeExtractFailed
		vr.Error = ext.Reason
		logger.Warn().Str("reason", ext.Reason).Int(xglog.FieldFrames, ext.Frames).Msg("frame extraction failed")
	}
	r.record(span, vr)

	r.to(StateRecordHistory)
	if err := r.o.deps.History.RecordAndPersist(remotePath); err != nil {
		logger.Error().Err(err).Msg("cannot persist download history")
	}
}

// download fetches remotePath to "<local>.part" and renames it into place,
// so local never holds a partial file.
func (r *run) download(ctx context.Context, remotePath, local string) error {
	part := local + ".part"
	err := retry.Do(ctx, r.o.opts.Download, func(ctx context.Context) error {
		return r.o.deps.Store.Download(ctx, remotePath, part)
	})
	if err != nil {
		_ = os.Remove(part)
		return err
	}
	if err := os.Rename(part, local); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}

// finalCount refreshes TotalFramesInStorage; failures keep the last value.
func (r *run) finalCount() {
	if r.state == StateCapacityReached || r.state == StateCapacityUnknown || r.state == StateInitError {
		return
	}
	ctx := r.ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
	}
	n, err := r.o.deps.Gate.FramesInStore(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Warn().Err(err).Msg("final frame count unavailable")
		}
		return
	}
	r.res.TotalFramesInStorage = n
}

// CleanupLocalVideos removes downloaded videos with one of exts from dir and
// returns how many were deleted.
func CleanupLocalVideos(dir string, exts []string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read video dir: %w", err)
	}
	var errs []error
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !video.HasExtension(e.Name(), exts) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
