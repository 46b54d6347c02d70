// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup starts helper processes (ffmpeg) in their own process
// group so the whole tree can be stopped at once.
package procgroup

import (
	"os/exec"
	"time"

	xglog "github.com/ManuGH/framehaul/internal/log"
)

// Set configures cmd to start in a new process group. It must be called
// before cmd.Start.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Terminate stops the process group of cmd: a graceful signal first, a kill
// once grace has passed. done must be closed when the process has been
// reaped; Terminate returns after that. Safe on commands that never started.
func Terminate(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	select {
	case <-done:
		return
	default:
	}

	logger := xglog.WithComponent("procgroup")
	pid := cmd.Process.Pid
	if err := signalGroup(cmd, false); err != nil {
		logger.Debug().Err(err).Int("pid", pid).Msg("graceful stop failed")
	}

	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
		return
	case <-t.C:
	}

	logger.Warn().Int("pid", pid).Dur("grace", grace).Msg("grace period exceeded, killing process group")
	if err := signalGroup(cmd, true); err != nil {
		logger.Debug().Err(err).Int("pid", pid).Msg("kill failed")
	}
	<-done
}
