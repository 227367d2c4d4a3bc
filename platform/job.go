// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package platform

import "math"

// JobState is the state of a server-side asynchronous job.  The server
// sends it as a literal string.  States other than the ones named here
// are preserved as-is and are never terminal, so that a client keeps
// polling through intermediate states it does not know about.
type JobState string

const (
	// JobPending is a job that has been submitted but not started.
	JobPending JobState = "pending"

	// JobRunning is a job that is actively running.
	JobRunning JobState = "running"

	// JobFinished is a job that completed successfully.
	JobFinished JobState = "finished"

	// JobFailed is a job that completed unsuccessfully.
	JobFailed JobState = "failed"

	// JobCanceled is a job that was canceled before completion.
	JobCanceled JobState = "canceled"
)

// Terminal reports whether a job in this state will never change
// state again.
func (s JobState) Terminal() bool {
	switch s {
	case JobFinished, JobFailed, JobCanceled:
		return true
	default:
		return false
	}
}

// Known reports whether s is one of the named job states.
func (s JobState) Known() bool {
	switch s {
	case JobPending, JobRunning, JobFinished, JobFailed, JobCanceled:
		return true
	default:
		return false
	}
}

// Step is a single named step of a job, with its progress.
type Step struct {
	Name string

	// Progress is a percentage, always in [0, 100].
	Progress float64
}

// Job is a snapshot of a server-side asynchronous job.
type Job struct {
	// ID is the opaque job identifier.
	ID string

	// Type is the server's name for the kind of job, if it
	// reported one.
	Type string

	// State is the job state as of the snapshot.
	State JobState

	// Steps is the server's ordered list of job steps.
	Steps []Step

	// Metadata holds arbitrary server-provided values, such as
	// the identifier of a resource the job produced.
	Metadata map[string]interface{}
}

// FirstStep returns the first step of the job, if there is one.
func (j *Job) FirstStep() (Step, bool) {
	if j == nil || len(j.Steps) == 0 {
		return Step{}, false
	}
	return j.Steps[0], true
}

// Copy returns a deep copy of the job, or nil if j is nil.  Metadata
// values are copied one level deep.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	result := *j
	if j.Steps != nil {
		result.Steps = append([]Step(nil), j.Steps...)
	}
	if j.Metadata != nil {
		result.Metadata = make(map[string]interface{}, len(j.Metadata))
		for k, v := range j.Metadata {
			result.Metadata[k] = v
		}
	}
	return &result
}

// ClampProgress limits a progress percentage to [0, 100].  The server
// reports a negative progress for steps that have not started.
func ClampProgress(progress float64) float64 {
	if progress < 0 || math.IsNaN(progress) {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// WorkflowResult is the outcome of a multi-step workflow.
type WorkflowResult struct {
	// Succeeded is true if every step finished.
	Succeeded bool

	// ProducedResourceID is the identifier of the resource the
	// workflow created, such as a new project ID, if any.
	ProducedResourceID string

	// FailureReason describes why the workflow did not succeed:
	// the terminal state of a failed job, or an error message.
	FailureReason string

	// JobIDs lists the jobs submitted, in order.
	JobIDs []string
}
