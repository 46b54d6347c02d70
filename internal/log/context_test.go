// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIDRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
	}{
		{name: "nil context", ctx: nil, id: "run-1"},
		{name: "background context", ctx: context.Background(), id: "run-2"},
		{name: "empty id", ctx: context.Background(), id: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRunID(tt.ctx, tt.id)
			assert.Equal(t, tt.id, RunIDFromContext(ctx))
		})
	}
}

func TestRunIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, RunIDFromContext(context.Background()))
	assert.Empty(t, RunIDFromContext(nil))
}

func TestFromContext_CarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test"})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRunID(context.Background(), "abc")
	l := WithComponentFromContext(ctx, "harvest")
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry[FieldRunID])
	assert.Equal(t, "harvest", entry[FieldComponent])
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "hello", entry["message"])
}

func TestFromContext_FallsBackToBase(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	FromContext(context.Background()).Info().Msg("base")
	assert.Contains(t, buf.String(), `"service":"framehaul"`)
}

func TestConfigure_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("x")
	l.Info().Msg("dropped")
	l.Warn().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
