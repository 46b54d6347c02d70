// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framehaul_remote_retries_total",
		Help: "Failed remote-store attempts that were followed by a retry",
	}, []string{"op"})

	remoteGiveUps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framehaul_remote_give_ups_total",
		Help: "Remote-store operations that failed after exhausting their attempts",
	}, []string{"op"})
)

// RecordRetry counts a failed attempt that will be retried.
func RecordRetry(op string) {
	remoteRetries.WithLabelValues(op).Inc()
}

// RecordGiveUp counts an operation that exhausted its retry budget.
func RecordGiveUp(op string) {
	remoteGiveUps.WithLabelValues(op).Inc()
}
