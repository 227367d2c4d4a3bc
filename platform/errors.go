// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package platform

import (
	"errors"
	"fmt"
)

// ErrHandleBusy is returned from upload operations if another
// operation on the same upload handle is already in flight.
var ErrHandleBusy = errors.New("Upload handle is busy")

// ErrUploadCanceled is returned when trying to resume an upload that
// was canceled.
var ErrUploadCanceled = errors.New("Upload was canceled")

// ErrUploadCompleted is returned when trying to cancel an upload that
// has already finished.
var ErrUploadCompleted = errors.New("Upload already completed")

// ErrOffsetMismatch is returned when the server reports an upload
// offset that is inconsistent with what the client has sent.
var ErrOffsetMismatch = errors.New("Server upload offset does not match")

// ErrNoWorkspace is returned when workspace discovery finds no
// workspace for the organization.
var ErrNoWorkspace = errors.New("No workspace available")

// ErrNoResourceURL is returned when an upload handle has no resource
// URL, because the upload was never created.
var ErrNoResourceURL = errors.New("Upload handle has no resource URL")

// TransportError is returned when a request could not be completed at
// all: a connection failure, a broken pipe, a timeout.  There is no
// response, and so nothing is known about what the server did with
// the request.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v %v: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is returned when the server responded with a non-2xx
// status.
type APIError struct {
	// StatusCode is the numeric HTTP status.
	StatusCode int

	// Status is the HTTP status line, e.g. "404 Not Found".
	Status string

	// Message is a server-provided error message, if the
	// response body could be decoded as one.
	Message string

	// Body holds the raw response body, presumed to be text.
	Body string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Status + ": " + e.Message
	}
	return e.Status
}

// PollingTimeout is returned when a job was polled the maximum number
// of times without reaching a terminal state.  The job may well still
// be running on the server.
type PollingTimeout struct {
	JobID    string
	Attempts int

	// Last is the job as of the final poll.
	Last *Job
}

func (e *PollingTimeout) Error() string {
	state := JobState("")
	if e.Last != nil {
		state = e.Last.State
	}
	return fmt.Sprintf("job %v still %q after %d polls", e.JobID, state, e.Attempts)
}

// JobError is returned when a job reached a terminal state other than
// finished.
type JobError struct {
	JobID string
	State JobState

	// Job is the terminal job.
	Job *Job
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %v %v", e.JobID, e.State)
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
