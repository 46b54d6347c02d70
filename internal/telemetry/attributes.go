// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by harvest spans.
const (
	RunIDKey        = "run.id"
	RunStateKey     = "run.state"
	RunCeilingKey   = "run.ceiling"
	RunCargoKey     = "run.cargo_filter"
	RunVideosKey    = "run.videos_downloaded"
	RunFramesKey    = "run.frames_downloaded"
	VideoPathKey    = "video.remote_path"
	VideoOutcomeKey = "video.outcome"
	VideoCargoKey   = "video.cargo"
	VideoFramesKey  = "video.frames"
	RemoteOpKey     = "remote.op"
	AttemptsKey     = "retry.attempts"
)

// VideoAttributes describes the result of one processed video.
func VideoAttributes(outcome, cargo string, frames int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(VideoOutcomeKey, outcome)}
	if cargo != "" {
		attrs = append(attrs, attribute.String(VideoCargoKey, cargo))
	}
	if frames > 0 {
		attrs = append(attrs, attribute.Int(VideoFramesKey, frames))
	}
	return attrs
}

// Fail records err on span and marks it as failed. A nil err is ignored.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
