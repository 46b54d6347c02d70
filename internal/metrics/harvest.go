// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framehaul_runs_total",
		Help: "Total number of harvest runs by terminal state",
	}, []string{"terminal"}) // terminal=capacity_reached|exhausted|resolution_error|capacity_unknown|cancelled|init_error

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framehaul_run_duration_seconds",
		Help:    "Wall-clock duration of harvest runs",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
	})

	videosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framehaul_videos_total",
		Help: "Candidate videos by outcome",
	}, []string{"outcome"}) // outcome=extracted|extract_failed|filtered|download_failed|malformed

	framesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framehaul_frames_uploaded_total",
		Help: "Total number of sampled frames uploaded to the frame store",
	})

	frameUploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framehaul_frame_upload_failures_total",
		Help: "Frames whose upload exhausted every attempt",
	})

	framesInStore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framehaul_frames_in_store",
		Help: "Frames observed in the remote frame store (last capacity check)",
	})

	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framehaul_classifications_total",
		Help: "Cargo classifications by result",
	}, []string{"cargo", "degraded"})

	historySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framehaul_download_history_size",
		Help: "Number of remote videos recorded in the download history",
	})
)

// RecordRun records the terminal state and duration of a finished run.
func RecordRun(terminal string, d time.Duration) {
	runsTotal.WithLabelValues(terminal).Inc()
	runDuration.Observe(d.Seconds())
}

// RecordVideo counts a candidate video by outcome.
func RecordVideo(outcome string) {
	videosTotal.WithLabelValues(outcome).Inc()
}

// RecordFrameUploaded counts one successfully uploaded frame.
func RecordFrameUploaded() {
	framesUploaded.Inc()
}

// RecordFrameUploadFailure counts one frame that could not be uploaded.
func RecordFrameUploadFailure() {
	frameUploadFailures.Inc()
}

// SetFramesInStore publishes the latest frame-store count.
func SetFramesInStore(n int) {
	framesInStore.Set(float64(n))
}

// RecordClassification counts a classifier outcome.
func RecordClassification(cargo string, degraded bool) {
	d := "false"
	if degraded {
		d = "true"
	}
	classificationsTotal.WithLabelValues(cargo, d).Inc()
}

// SetHistorySize publishes the size of the download history.
func SetHistorySize(n int) {
	historySize.Set(float64(n))
}
