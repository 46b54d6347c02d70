// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package traverse

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/framehaul/internal/history"
	"github.com/ManuGH/framehaul/internal/remote"
	"github.com/ManuGH/framehaul/internal/remote/remotetest"
	"github.com/ManuGH/framehaul/internal/retry"
)

var errFlaky = errors.New("connection reset")

func fastPolicy() retry.Policy {
	return retry.Policy{Attempts: 3}
}

func collect(t *testing.T, c *Cursor) []string {
	t.Helper()
	var out []string
	for {
		p, ok := c.Next(context.Background())
		if !ok {
			require.NoError(t, c.Err())
			return out
		}
		out = append(out, p)
	}
}

func TestWalk_VideosBeforeSubdirectories(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/root/sub/c.mp4", nil)
	s.Put("/root/a.mp4", nil)
	s.Put("/root/b.mp4", nil)
	s.Put("/root/notes.txt", nil)
	s.SetOrder("/root", "sub", "a.mp4", "notes.txt", "b.mp4")

	w := NewWalker(s, Options{Policy: fastPolicy()})
	got := collect(t, w.Walk("/root"))

	want := []string{"/root/a.mp4", "/root/b.mp4", "/root/sub/c.mp4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("walk order mismatch (-want +got):\n%s", diff)
	}
}

func TestWalk_SubtreeExhaustedBeforeSibling(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/r/x/deep/1.mp4", nil)
	s.Put("/r/x/2.mp4", nil)
	s.Put("/r/y/3.mp4", nil)

	w := NewWalker(s, Options{Policy: fastPolicy()})
	got := collect(t, w.Walk("/r"))
	assert.Equal(t, []string{"/r/x/2.mp4", "/r/x/deep/1.mp4", "/r/y/3.mp4"}, got)
}

func TestWalk_FiltersBlacklistAndHistory(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/r/104039_2024.5.6 10-11.mp4", nil)
	s.Put("/r/018_2024.5.6 10-11.mp4", nil)
	s.Put("/r/018_2024.5.6 11-12.mp4", nil)

	seen := history.NewMemory("/r/018_2024.5.6 10-11.mp4")
	w := NewWalker(s, Options{Blacklist: []string{"104039"}, Seen: seen, Policy: fastPolicy()})

	assert.Equal(t, []string{"/r/018_2024.5.6 11-12.mp4"}, collect(t, w.Walk("/r")))
}

func TestWalk_IsLazy(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/r/a.mp4", nil)
	s.Put("/r/sub/b.mp4", nil)

	w := NewWalker(s, Options{Policy: fastPolicy()})
	c := w.Walk("/r")

	p, ok := c.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, "/r/a.mp4", p)
	assert.Equal(t, 1, s.Calls(remotetest.OpList))
	assert.Equal(t, 0, s.Calls(remotetest.OpIsDir))
}

func TestWalk_ListFailureSkipsBranchOnly(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/r/bad/a.mp4", nil)
	s.Put("/r/good/b.mp4", nil)
	w := NewWalker(s, Options{Policy: fastPolicy()})

	// Root listing succeeds, then "bad" fails on every attempt.
	s.OnCall(remotetest.OpList, func(p string) {
		if p == "/r" {
			s.FailNext(remotetest.OpList, errFlaky, errFlaky, errFlaky)
		}
	})
	assert.Equal(t, []string{"/r/good/b.mp4"}, collect(t, w.Walk("/r")))
}

func TestWalk_TransientFailureIsRetried(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/r/sub/a.mp4", nil)
	s.FailNext(remotetest.OpList, errFlaky)
	s.FailNext(remotetest.OpIsDir, errFlaky)

	w := NewWalker(s, Options{Policy: fastPolicy()})
	assert.Equal(t, []string{"/r/sub/a.mp4"}, collect(t, w.Walk("/r")))
	assert.Equal(t, 3, s.Calls(remotetest.OpList))
}

func TestWalk_IsDirFailureSkipsEntry(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/r/sub/a.mp4", nil)
	s.FailNext(remotetest.OpIsDir, errFlaky, errFlaky, errFlaky)

	w := NewWalker(s, Options{Policy: fastPolicy()})
	assert.Empty(t, collect(t, w.Walk("/r")))
}

func TestWalk_StopsOnCancelledContext(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/r/a.mp4", nil)
	w := NewWalker(s, Options{Policy: fastPolicy()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := w.Walk("/r")
	_, ok := c.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, c.Err(), context.Canceled)
}

func TestWalkRegistrators_SkipsBlacklistedDirectories(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/base/018270348452/2024.5.6/018270348452_2024.5.6 1-2.mp4", nil)
	s.Put("/base/200/2024.5.6/200_2024.5.6 1-2.mp4", nil)
	s.Put("/base/100/2024.5.7/100_2024.5.7 1-2.mp4", nil)
	s.SetOrder("/base", "200", "018270348452", "100")

	w := NewWalker(s, Options{Blacklist: []string{"018270348452"}, Policy: fastPolicy()})
	got := collect(t, w.WalkRegistrators("/base"))
	assert.Equal(t, []string{
		"/base/200/2024.5.6/200_2024.5.6 1-2.mp4",
		"/base/100/2024.5.7/100_2024.5.7 1-2.mp4",
	}, got)
	// The blacklisted registrator is not even stat'ed.
	assert.Equal(t, 4, s.Calls(remotetest.OpIsDir))
}

func TestResolve(t *testing.T) {
	s := remotetest.NewMemStore()
	s.Put("/base/018/2024.5.6/018_2024.5.6 10-11.mp4", nil)
	w := NewWalker(s, Options{Policy: fastPolicy()})
	ctx := context.Background()

	p, err := w.Resolve(ctx, "/base", "018_2024.5.6 10-11.mp4")
	require.NoError(t, err)
	assert.Equal(t, "/base/018/2024.5.6/018_2024.5.6 10-11.mp4", p)

	_, err = w.Resolve(ctx, "/base", "018_2024.5.6 12-13.mp4")
	assert.ErrorIs(t, err, ErrNotResolved)

	_, err = w.Resolve(ctx, "/base", "019_2024.5.6 10-11.mp4")
	assert.ErrorIs(t, err, ErrNotResolved)
	assert.ErrorIs(t, err, remote.ErrNotFound)

	_, err = w.Resolve(ctx, "/base", "garbage.mp4")
	assert.ErrorIs(t, err, ErrNotResolved)
	// Not-found is not retried.
	assert.Equal(t, 3, s.Calls(remotetest.OpList))
}
