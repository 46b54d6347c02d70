// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/metrics"
	"github.com/ManuGH/framehaul/internal/remote"
	"github.com/ManuGH/framehaul/internal/retry"
)

// DefaultSidecarName is the report stored beside every day's videos.
const DefaultSidecarName = "report.json"

// FallbackCargo is applied when no usable report exists.
const FallbackCargo = CargoEuro

// Outcome is the result of classifying one video. Degraded outcomes carry the
// fallback cargo type and the reason the report could not be used.
type Outcome struct {
	Cargo      CargoType `json:"cargo"`
	SwitchCode *int      `json:"switch_code,omitempty"`
	Degraded   bool      `json:"degraded,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

type report struct {
	SwitchEvents []map[string]json.RawMessage `json:"switch_events"`
}

// Classifier reads sidecar reports from a remote store.
type Classifier struct {
	store       remote.Store
	policy      retry.Policy
	sidecarName string
	tempDir     string
	logger      zerolog.Logger
}

// NewClassifier returns a classifier. Empty sidecarName selects report.json;
// empty tempDir selects the OS temp directory.
func NewClassifier(store remote.Store, policy retry.Policy, sidecarName, tempDir string) *Classifier {
	if sidecarName == "" {
		sidecarName = DefaultSidecarName
	}
	if policy.Retryable == nil {
		policy.Retryable = remote.Retryable
	}
	return &Classifier{
		store:       store,
		policy:      policy.WithOp("download_sidecar"),
		sidecarName: sidecarName,
		tempDir:     tempDir,
		logger:      xglog.WithComponent("classify"),
	}
}

// SidecarPath returns the report path for videoPath.
func (c *Classifier) SidecarPath(videoPath string) string {
	return remote.Join(remote.Dir(videoPath), c.sidecarName)
}

// Classify never fails: problems with the report yield a degraded outcome.
func (c *Classifier) Classify(ctx context.Context, videoPath string) Outcome {
	sidecar := c.SidecarPath(videoPath)
	logger := c.logger.With().Str(xglog.FieldRemotePath, videoPath).Logger()

	out, err := c.classify(ctx, sidecar)
	if err != nil {
		out = Outcome{Cargo: FallbackCargo, Degraded: true, Reason: err.Error()}
		logger.Warn().Err(err).Str("sidecar", sidecar).Str(xglog.FieldCargo, out.Cargo.String()).
			Msg("sidecar unusable, applying fallback cargo type")
	} else {
		ev := logger.Info().Str(xglog.FieldCargo, out.Cargo.String())
		if out.SwitchCode != nil {
			ev = ev.Int(xglog.FieldSwitchCode, *out.SwitchCode)
		}
		ev.Msg("classified video")
	}
	metrics.RecordClassification(out.Cargo.String(), out.Degraded)
	return out
}

var errNoSwitchEvents = errors.New("report has no switch_events")

func (c *Classifier) classify(ctx context.Context, sidecar string) (Outcome, error) {
	if c.tempDir != "" {
		if err := os.MkdirAll(c.tempDir, 0o750); err != nil {
			return Outcome{}, fmt.Errorf("create sidecar temp dir: %w", err)
		}
	}
	f, err := os.CreateTemp(c.tempDir, "sidecar-*.json")
	if err != nil {
		return Outcome{}, fmt.Errorf("create temp sidecar: %w", err)
	}
	local := f.Name()
	_ = f.Close()
	defer func() { _ = os.Remove(local) }()

	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		return c.store.Download(ctx, sidecar, local)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("download %s: %w", sidecar, err)
	}

	data, err := os.ReadFile(local) // #nosec G304 -- temp file created above
	if err != nil {
		return Outcome{}, fmt.Errorf("read sidecar: %w", err)
	}
	return ParseReport(data)
}

// ParseReport extracts the cargo type from report content. A missing or
// empty switch_events array is an error; a first event without an integer
// "switch" field (null included) is CargoUnknown.
func ParseReport(data []byte) (Outcome, error) {
	var r report
	if err := json.Unmarshal(data, &r); err != nil {
		return Outcome{}, fmt.Errorf("parse sidecar: %w", err)
	}
	if len(r.SwitchEvents) == 0 {
		return Outcome{}, errNoSwitchEvents
	}

	raw, ok := r.SwitchEvents[0]["switch"]
	if !ok || string(raw) == "null" {
		return Outcome{Cargo: CargoUnknown, Reason: "first switch event has no switch code"}, nil
	}
	var code int
	if err := json.Unmarshal(raw, &code); err != nil {
		return Outcome{Cargo: CargoUnknown, Reason: fmt.Sprintf("switch code %s is not an integer", raw)}, nil
	}
	return Outcome{Cargo: CargoFromSwitch(code), SwitchCode: &code}, nil
}
