// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/framehaul/internal/classify"
	"github.com/ManuGH/framehaul/internal/config"
	"github.com/ManuGH/framehaul/internal/daemon"
	"github.com/ManuGH/framehaul/internal/harvest"
	"github.com/ManuGH/framehaul/internal/health"
	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/version"
)

func main() {
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "framehaul",
		Version: version.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		logger := xglog.WithComponent("main")
		logger.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "framehaul",
		Usage:   "Harvest annotation frames from recorder videos",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file (YAML)",
				Sources: cli.EnvVars(config.EnvPrefix + "CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			daemonCommand(),
			statusCommand(),
			historyCommand(),
		},
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "max-frames",
			Usage: "frame store ceiling (default: harvest.maxFrames)",
		},
		&cli.StringFlag{
			Name:  "cargo",
			Usage: "only harvest videos of this cargo type (bunker, euro, unknown)",
		},
		&cli.Float64Flag{
			Name:  "fps",
			Usage: "target sampling rate, overrides the cargo default",
		},
	}
}

func runCommand() *cli.Command {
	flags := append(runFlags(), &cli.StringFlag{
		Name:  "video",
		Usage: "process only this video file name",
	})
	return &cli.Command{
		Name:  "run",
		Usage: "run one harvest and print its report",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			params, err := paramsFromFlags(cmd, cfg)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			shutdown, err := startTelemetry(ctx, cfg)
			if err != nil {
				return err
			}
			defer shutdown()
			p, err := buildPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			res := p.orch.Run(ctx, params)
			p.afterRun(res)

			if err := writeJSON(cmd.Root().Writer, res); err != nil {
				return err
			}
			if res.Failed() {
				return cli.Exit(fmt.Sprintf("run ended in %s: %s", res.State, res.Error), 1)
			}
			return nil
		},
	}
}

func daemonCommand() *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "repeat harvest runs on a fixed cycle and serve their status",
		Flags: runFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			params, err := paramsFromFlags(cmd, cfg)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			shutdown, err := startTelemetry(ctx, cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			holder := config.NewHolder(cfg, config.NewLoader(cmd.String("config"), version.Version))
			p, err := newReloadingPipeline(ctx, holder, cmd.IsSet("max-frames"))
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			d, err := daemon.New(daemon.Config{
				Interval:   cfg.Daemon.Interval,
				Listen:     cfg.Daemon.Listen,
				Params:     params,
				ReportPath: cfg.LastRunPath(),
				Version:    cfg.Version,
			}, daemon.Deps{
				Runner:   p,
				History:  p,
				AfterRun: p.cleanup,
				Checkers: []health.Checker{health.NewWritableDirChecker("data_dir", cfg.DataDir)},
			})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := holder.Watch(gctx); err != nil {
					logger := xglog.WithComponent("main")
					logger.Warn().Err(err).Msg("config hot reload unavailable")
				}
				return nil
			})
			g.Go(func() error { return d.Run(gctx) })
			return g.Wait()
		},
	}
}

// storeStatus is printed by the status command.
type storeStatus struct {
	FramesInStore int  `json:"frames_in_store"`
	Ceiling       int  `json:"ceiling"`
	HasCapacity   bool `json:"has_capacity"`
	HistorySize   int  `json:"history_size"`
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show frames in store against the ceiling and the history size",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := buildPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			ok, n, err := p.gate.HasCapacity(ctx, cfg.Harvest.MaxFrames)
			if err != nil {
				return fmt.Errorf("count frames: %w", err)
			}
			return writeJSON(cmd.Root().Writer, storeStatus{
				FramesInStore: n,
				Ceiling:       cfg.Harvest.MaxFrames,
				HasCapacity:   ok,
				HistorySize:   p.history.Len(),
			})
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "print the download history",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			h, err := openHistory(cfg)
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			for _, p := range h.Paths() {
				if _, err := fmt.Fprintln(w, p); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func loadConfig(cmd *cli.Command) (config.AppConfig, error) {
	path := cmd.String("config")
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return cfg, fmt.Errorf("load configuration: %w", err)
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "framehaul",
		Version: cfg.Version,
	})
	logger := xglog.WithComponent("main")
	logger.Debug().Str("config_path", path).Str("data_dir", cfg.DataDir).Msg("configuration loaded")
	return cfg, nil
}

func paramsFromFlags(cmd *cli.Command, cfg config.AppConfig) (harvest.Params, error) {
	p := harvest.Params{
		MaxFrames: cfg.Harvest.MaxFrames,
		FPS:       cmd.Float64("fps"),
	}
	if n := cmd.Int("max-frames"); n != 0 {
		if n < 0 {
			return p, fmt.Errorf("max-frames must be positive, got %d", n)
		}
		p.MaxFrames = n
	}
	if p.FPS < 0 {
		return p, fmt.Errorf("fps must be positive, got %g", p.FPS)
	}
	if s := cmd.String("cargo"); s != "" {
		c, err := classify.ParseCargoType(s)
		if err != nil {
			return p, err
		}
		p.Cargo = c
	}
	if cmd.IsSet("video") {
		p.Video = cmd.String("video")
	}
	return p, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
