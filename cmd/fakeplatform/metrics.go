// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/diffeo/go-visionclient/memory"
)

var jobSummary = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "diffeo",
		Subsystem: "fakeplatform",
		Name:      "jobs",
		Help:      "Number of fake platform jobs by type and last reported state",
	},
	[]string{
		"job_type",
		"state",
	},
)

func init() {
	prometheus.MustRegister(jobSummary)
}

func observe(platform *memory.Platform) {
	for range time.Tick(5 * time.Second) {
		jobSummary.Reset()
		for _, record := range platform.Summary() {
			jobSummary.With(prometheus.Labels{
				"job_type": record.JobType,
				"state":    record.State,
			}).Set(float64(record.Count))
		}
	}
}
