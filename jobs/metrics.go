// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var pollCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "visionclient",
		Name:      "job_polls_total",
		Help:      "Job status queries, by resulting state",
	},
	[]string{"state"},
)

var pollTimeouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "visionclient",
		Name:      "job_poll_timeouts_total",
		Help:      "Polling loops that ran out of attempts",
	},
)

func init() {
	prometheus.MustRegister(pollCounter, pollTimeouts)
}

func observePoll(state string) {
	pollCounter.With(prometheus.Labels{"state": state}).Inc()
}
