// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon repeats harvest runs on a fixed cycle and serves their
// status over HTTP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/framehaul/internal/fsutil"
	"github.com/ManuGH/framehaul/internal/harvest"
	"github.com/ManuGH/framehaul/internal/health"
	xglog "github.com/ManuGH/framehaul/internal/log"
)

const defaultShutdownTimeout = 10 * time.Second

// Runner executes one harvest.
type Runner interface {
	Run(ctx context.Context, p harvest.Params) harvest.RunResult
}

// HistorySize reports the number of downloaded videos.
type HistorySize interface {
	Len() int
}

// Config configures a Daemon.
type Config struct {
	Interval        time.Duration
	Listen          string // empty disables the HTTP server
	Params          harvest.Params
	ReportPath      string // last run report; empty disables persisting it
	ShutdownTimeout time.Duration
	Version         string
}

// Deps are the collaborators of a Daemon.
type Deps struct {
	Runner  Runner
	History HistorySize
	// AfterRun is called after every cycle, e.g. to clean up local videos.
	AfterRun func(harvest.RunResult)
	// Checkers are added to the readiness probe.
	Checkers []health.Checker
}

// Daemon runs harvest cycles until its context ends.
type Daemon struct {
	cfg    Config
	deps   Deps
	health *health.Manager
	logger zerolog.Logger

	mu      sync.RWMutex
	last    *harvest.RunResult
	running bool
	next    time.Time
	cycles  int

	addrMu sync.Mutex
	addr   net.Addr
	ready  chan struct{}
}

// New returns a daemon.
func New(cfg Config, deps Deps) (*Daemon, error) {
	if deps.Runner == nil {
		return nil, ErrMissingRunner
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, cfg.Interval)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	d := &Daemon{
		cfg:    cfg,
		deps:   deps,
		health: health.NewManager(cfg.Version),
		logger: xglog.WithComponent("daemon"),
		ready:  make(chan struct{}),
	}
	for _, c := range deps.Checkers {
		d.health.RegisterChecker(c)
	}
	d.health.RegisterChecker(health.NewCheckFunc("last_run", d.checkLastRun))
	return d, nil
}

// checkLastRun degrades health while the latest run carries an error.
func (d *Daemon) checkLastRun(context.Context) health.CheckResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch {
	case d.last == nil:
		return health.CheckResult{Status: health.StatusHealthy, Message: "no run finished yet"}
	case d.last.Failed():
		return health.CheckResult{Status: health.StatusDegraded, Message: string(d.last.State), Error: d.last.Error}
	default:
		return health.CheckResult{Status: health.StatusHealthy, Message: string(d.last.State)}
	}
}

// Run starts the cycle loop and the status server and blocks until ctx is
// cancelled or the server fails. A cancelled context is not an error.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info().
		Dur(xglog.FieldInterval, d.cfg.Interval).
		Str("listen", d.cfg.Listen).
		Msg("starting daemon")

	var ln net.Listener
	if d.cfg.Listen != "" {
		var err error
		ln, err = net.Listen("tcp", d.cfg.Listen)
		if err != nil {
			close(d.ready)
			return fmt.Errorf("listen %s: %w", d.cfg.Listen, err)
		}
		d.addrMu.Lock()
		d.addr = ln.Addr()
		d.addrMu.Unlock()
	}
	close(d.ready)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.cycle(ctx)
		return nil
	})

	if ln != nil {
		srv := &http.Server{
			Handler:           d.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			d.logger.Info().Str("addr", ln.Addr().String()).Msg("status server listening")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("status server shutdown: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	d.logger.Info().Msg("daemon stopped")
	return err
}

// Addr returns the bound status server address once Run has started it.
func (d *Daemon) Addr() net.Addr {
	<-d.ready
	d.addrMu.Lock()
	defer d.addrMu.Unlock()
	return d.addr
}

func (d *Daemon) cycle(ctx context.Context) {
	for {
		d.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		d.mu.Lock()
		d.next = time.Now().Add(d.cfg.Interval)
		d.mu.Unlock()
		d.logger.Info().Dur(xglog.FieldInterval, d.cfg.Interval).Msg("waiting for next cycle")

		t := time.NewTimer(d.cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context) {
	d.mu.Lock()
	d.running = true
	d.cycles++
	d.mu.Unlock()

	res := d.deps.Runner.Run(ctx, d.cfg.Params)

	d.mu.Lock()
	d.running = false
	d.last = &res
	d.mu.Unlock()

	if d.cfg.ReportPath != "" {
		if err := fsutil.WriteJSON(d.cfg.ReportPath, res); err != nil {
			d.logger.Error().Err(err).Str(xglog.FieldLocalPath, d.cfg.ReportPath).Msg("cannot persist run report")
		}
	}
	if d.deps.AfterRun != nil {
		d.deps.AfterRun(res)
	}
}

// Status is the body of the /status endpoint.
type Status struct {
	Running     bool               `json:"running"`
	Cycles      int                `json:"cycles"`
	NextRun     *time.Time         `json:"next_run,omitempty"`
	HistorySize int                `json:"history_size"`
	LastRun     *harvest.RunResult `json:"last_run,omitempty"`
}

// Status returns a snapshot of the daemon state.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	st := Status{Running: d.running, Cycles: d.cycles}
	if d.last != nil {
		last := *d.last
		st.LastRun = &last
	}
	if !d.next.IsZero() && !d.running {
		next := d.next
		st.NextRun = &next
	}
	d.mu.RUnlock()

	if d.deps.History != nil {
		st.HistorySize = d.deps.History.Len()
	}
	return st
}
