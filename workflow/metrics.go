// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
)

var workflowCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "visionclient",
		Name:      "workflows_total",
		Help:      "Completed workflows, by workflow and outcome",
	},
	[]string{"workflow", "outcome"},
)

func init() {
	prometheus.MustRegister(workflowCounter)
}

func observeWorkflow(workflow, outcome string) {
	workflowCounter.With(prometheus.Labels{"workflow": workflow, "outcome": outcome}).Inc()
}
