// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var requestCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "visionclient",
		Name:      "requests_total",
		Help:      "Platform requests issued, by method and status class",
	},
	[]string{
		"method",
		"status",
	},
)

func init() {
	prometheus.MustRegister(requestCounter)
}

// statusClass buckets an HTTP status code as "2xx", "4xx" and so on.
// Zero means no response was received.
func statusClass(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

func observeRequest(method string, code int) {
	requestCounter.With(prometheus.Labels{
		"method": method,
		"status": statusClass(code),
	}).Inc()
}
