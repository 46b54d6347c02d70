// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package classify

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/framehaul/internal/remote/remotetest"
	"github.com/ManuGH/framehaul/internal/retry"
)

const videoPath = "/videos/018/2024.5.6/018_2024.5.6 10-11.mp4"

func newClassifier(t *testing.T, s *remotetest.MemStore) *Classifier {
	t.Helper()
	return NewClassifier(s, retry.Policy{Attempts: 3}, "", t.TempDir())
}

func TestClassify_SwitchCodes(t *testing.T) {
	tests := []struct {
		name     string
		report   string
		want     CargoType
		degraded bool
	}{
		{"bunker", `{"switch_events":[{"switch":22},{"switch":23}]}`, CargoBunker, false},
		{"euro", `{"switch_events":[{"switch":23}]}`, CargoEuro, false},
		{"other code", `{"switch_events":[{"switch":7}]}`, CargoUnknown, false},
		{"no switch field", `{"switch_events":[{"time":"10:00"}]}`, CargoUnknown, false},
		{"null switch", `{"switch_events":[{"switch":null}]}`, CargoUnknown, false},
		{"non integer switch", `{"switch_events":[{"switch":"22"}]}`, CargoUnknown, false},
		{"empty events", `{"switch_events":[]}`, CargoEuro, true},
		{"missing events", `{"speed":3}`, CargoEuro, true},
		{"not json", `<html>`, CargoEuro, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := remotetest.NewMemStore()
			s.Put("/videos/018/2024.5.6/report.json", []byte(tt.report))

			out := newClassifier(t, s).Classify(context.Background(), videoPath)
			assert.Equal(t, tt.want, out.Cargo)
			assert.Equal(t, tt.degraded, out.Degraded)
			if tt.degraded {
				assert.NotEmpty(t, out.Reason)
			}
		})
	}
}

func TestParseReport_NullSwitchHasNoCode(t *testing.T) {
	out, err := ParseReport([]byte(`{"switch_events":[{"switch":null},{"switch":22}]}`))
	require.NoError(t, err)
	assert.Equal(t, CargoUnknown, out.Cargo)
	assert.Nil(t, out.SwitchCode)
}

func TestClassify_CreatesMissingTempDir(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/videos/018/2024.5.6/report.json", []byte(`{"switch_events":[{"switch":22}]}`))
	tmp := filepath.Join(t.TempDir(), "data", "frames")

	out := NewClassifier(s, retry.Policy{Attempts: 1}, "", tmp).Classify(context.Background(), videoPath)
	assert.Equal(t, CargoBunker, out.Cargo)
	assert.False(t, out.Degraded, out.Reason)
	require.NotNil(t, out.SwitchCode)
	assert.Equal(t, 22, *out.SwitchCode)
	assert.DirExists(t, tmp)
}

func TestClassify_SwitchCodeRecorded(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/videos/018/2024.5.6/report.json", []byte(`{"switch_events":[{"switch":22}]}`))

	out := newClassifier(t, s).Classify(context.Background(), videoPath)
	require.NotNil(t, out.SwitchCode)
	assert.Equal(t, 22, *out.SwitchCode)
}

func TestClassify_MissingSidecarIsNotRetried(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put(videoPath, nil)

	out := newClassifier(t, s).Classify(context.Background(), videoPath)
	assert.Equal(t, CargoEuro, out.Cargo)
	assert.True(t, out.Degraded)
	assert.Equal(t, 1, s.Calls(remotetest.OpDownload))
}

func TestClassify_TransientFailureRetried(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/videos/018/2024.5.6/report.json", []byte(`{"switch_events":[{"switch":22}]}`))
	s.FailNext(remotetest.OpDownload, errors.New("timeout"))

	out := newClassifier(t, s).Classify(context.Background(), videoPath)
	assert.Equal(t, CargoBunker, out.Cargo)
	assert.False(t, out.Degraded)
	assert.Equal(t, 2, s.Calls(remotetest.OpDownload))
}

func TestSidecarPath_CustomName(t *testing.T) {
	c := NewClassifier(remotetest.NewMemStore(), retry.Policy{}, "meta.json", "")
	assert.Equal(t, "/videos/018/2024.5.6/meta.json", c.SidecarPath(videoPath))
}

func TestParseCargoType(t *testing.T) {
	c, err := ParseCargoType(" Euro ")
	require.NoError(t, err)
	assert.Equal(t, CargoEuro, c)
	_, err = ParseCargoType("gravel")
	assert.Error(t, err)
}
