// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"

	"github.com/ManuGH/framehaul/internal/config"
	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/telemetry"
)

// startTelemetry installs the tracer provider and returns its shutdown func.
func startTelemetry(ctx context.Context, cfg config.AppConfig) (func(), error) {
	p, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "framehaul",
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("start telemetry: %w", err)
	}
	return func() {
		if err := p.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger := xglog.WithComponent("main")
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}, nil
}
