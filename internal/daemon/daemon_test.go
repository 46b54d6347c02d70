// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/framehaul/internal/harvest"
	"github.com/ManuGH/framehaul/internal/health"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	params []harvest.Params
	// cancel is invoked once the given number of runs happened.
	cancelAfter int
	cancel      context.CancelFunc
}

func (f *fakeRunner) Run(_ context.Context, p harvest.Params) harvest.RunResult {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.params = append(f.params, p)
	f.mu.Unlock()
	if f.cancel != nil && n == f.cancelAfter {
		f.cancel()
	}
	return harvest.RunResult{RunID: "run-" + strconv.Itoa(n), State: harvest.StateExhausted, Downloaded: n}
}

type fixedHistory int

func (h fixedHistory) Len() int { return int(h) }

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Interval: time.Second}, Deps{})
	assert.ErrorIs(t, err, ErrMissingRunner)

	_, err = New(Config{}, Deps{Runner: &fakeRunner{}})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestRun_RepeatsCyclesAndPersistsReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{cancelAfter: 3, cancel: cancel}
	report := filepath.Join(t.TempDir(), "state", "last_run.json")

	var after []harvest.RunResult
	d, err := New(Config{
		Interval:   time.Millisecond,
		Params:     harvest.Params{MaxFrames: 42},
		ReportPath: report,
	}, Deps{
		Runner:   runner,
		AfterRun: func(r harvest.RunResult) { after = append(after, r) },
	})
	require.NoError(t, err)

	require.NoError(t, d.Run(ctx))

	assert.Equal(t, 3, runner.calls)
	for _, p := range runner.params {
		assert.Equal(t, 42, p.MaxFrames)
	}
	assert.Len(t, after, 3)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var last harvest.RunResult
	require.NoError(t, json.Unmarshal(data, &last))
	assert.Equal(t, "run-3", last.RunID)
	assert.Equal(t, 3, last.Downloaded)

	st := d.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 3, st.Cycles)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "run-3", st.LastRun.RunID)
}

func TestRun_ServesStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := New(Config{Interval: time.Hour, Listen: "127.0.0.1:0"}, Deps{
		Runner:  &fakeRunner{},
		History: fixedHistory(7),
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	url := "http://" + d.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/status") //nolint:noctx
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var st Status
		if json.NewDecoder(resp.Body).Decode(&st) != nil {
			return false
		}
		return st.LastRun != nil && st.HistorySize == 7 && st.NextRun != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	http.DefaultClient.CloseIdleConnections()
}

func TestRun_ListenFailure(t *testing.T) {
	d, err := New(Config{Interval: time.Hour, Listen: "256.0.0.1:bad"}, Deps{Runner: &fakeRunner{}})
	require.NoError(t, err)
	assert.Error(t, d.Run(context.Background()))
}

func TestHandler(t *testing.T) {
	d, err := New(Config{Interval: time.Hour}, Deps{Runner: &fakeRunner{}, History: fixedHistory(3)})
	require.NoError(t, err)
	h := d.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var st Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, 3, st.HistorySize)
	assert.Nil(t, st.LastRun)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type failingRunner struct{}

func (failingRunner) Run(context.Context, harvest.Params) harvest.RunResult {
	return harvest.RunResult{State: harvest.StateCapacityUnknown, Error: "count frames: 503"}
}

func TestReadiness(t *testing.T) {
	down := health.NewCheckFunc("store", func(context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusUnhealthy}
	})
	d, err := New(Config{Interval: time.Hour}, Deps{Runner: failingRunner{}, Checkers: []health.Checker{down}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	d2, err := New(Config{Interval: time.Hour}, Deps{Runner: cancelAfterRun{failingRunner{}, cancel}})
	require.NoError(t, err)
	require.NoError(t, d2.Run(ctx))

	rec = httptest.NewRecorder()
	d2.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp health.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, health.StatusDegraded, resp.Status)
	assert.Equal(t, "count frames: 503", resp.Checks["last_run"].Error)
}

type cancelAfterRun struct {
	Runner
	cancel context.CancelFunc
}

func (c cancelAfterRun) Run(ctx context.Context, p harvest.Params) harvest.RunResult {
	defer c.cancel()
	return c.Runner.Run(ctx, p)
}
