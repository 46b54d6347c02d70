// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/framehaul/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// Holder keeps the current configuration and replaces it when the config
// file changes. Every successful reload bumps the generation.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	gen     uint64

	loader   *Loader
	logger   zerolog.Logger
	debounce time.Duration
}

// NewHolder returns a holder starting at generation 0 with initial.
func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		logger:   xglog.WithComponent("config"),
		debounce: defaultDebounce,
	}
}

// Get returns the current configuration and its generation.
func (h *Holder) Get() (AppConfig, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.gen
}

// Reload loads and validates the configuration again. On failure the
// previous configuration stays in place.
func (h *Holder) Reload() error {
	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("configuration reload failed, keeping previous")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.gen++
	gen := h.gen
	h.mu.Unlock()

	h.logChanges(prev, next)
	h.logger.Info().Str("event", "config.reload_success").Uint64("generation", gen).Msg("configuration reloaded")
	return nil
}

// Watch reloads the configuration whenever the config file is written or
// replaced, until ctx is done. Without a config file it returns immediately.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.configPath
	if path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	// Editors and deploy tools replace the file by rename, which drops a
	// watch on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str("event", "config.watcher_started").Str("path", path).Msg("watching config file for changes")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			h.logger.Debug().Str("event", "config.file_changed").Str("op", ev.Op.String()).Msg("config file changed")
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				timer.Reset(h.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			_ = h.Reload()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// logChanges reports the reloaded keys. Some sections are read once at
// startup and need a restart.
func (h *Holder) logChanges(prev, next AppConfig) {
	if prev.Harvest.MaxFrames != next.Harvest.MaxFrames {
		h.logger.Info().Int("old", prev.Harvest.MaxFrames).Int("new", next.Harvest.MaxFrames).Msg("config changed: harvest.maxFrames")
	}
	if !slices.Equal(prev.Harvest.Blacklist, next.Harvest.Blacklist) {
		h.logger.Info().Strs("old", prev.Harvest.Blacklist).Strs("new", next.Harvest.Blacklist).Msg("config changed: harvest.blacklist")
	}
	if prev.Sampling != next.Sampling {
		h.logger.Info().
			Float64("old_euro", prev.Sampling.EuroFPS).Float64("new_euro", next.Sampling.EuroFPS).
			Float64("old_default", prev.Sampling.DefaultFPS).Float64("new_default", next.Sampling.DefaultFPS).
			Msg("config changed: sampling")
	}
	if prev.DataDir != next.DataDir || prev.Daemon != next.Daemon || prev.Telemetry != next.Telemetry {
		h.logger.Warn().Msg("restart required for dataDir/daemon/telemetry changes")
	}
}
