// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package upload

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "visionclient",
		Name:      "upload_bytes_total",
		Help:      "Upload bytes acknowledged by the server",
	})
	uploadChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "visionclient",
		Name:      "upload_chunks_total",
		Help:      "Upload chunks acknowledged by the server",
	})
	uploadPauses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "visionclient",
		Name:      "upload_pauses_total",
		Help:      "Uploads paused by a transport failure",
	})
)

func init() {
	prometheus.MustRegister(uploadBytes, uploadChunks, uploadPauses)
}

func observeChunk(n int64) {
	uploadBytes.Add(float64(n))
	uploadChunks.Inc()
}
