// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/platform/platformtest"
	"github.com/diffeo/go-visionclient/restdata"
	"github.com/diffeo/go-visionclient/workflow"
)

// scripted answers job submissions from a fixed template-to-job-id
// table, and job status queries from a JobScript.
type scripted struct {
	Script       *platformtest.JobScript
	Transport    *platformtest.Transport
	Orchestrator *workflow.Orchestrator
	submit       map[string]string
}

func newScripted(t *testing.T) *scripted {
	s := &scripted{
		Script: platformtest.NewJobScript(),
		submit: make(map[string]string),
	}
	s.Transport = platformtest.New(func(call platformtest.Call) (platformtest.Response, error) {
		if resp, ok := s.Script.Handle(call); ok {
			return resp, nil
		}
		if call.Method == http.MethodPost {
			if jobID, ok := s.submit[call.Template]; ok {
				return platformtest.Response{Body: `{"job_id":"` + jobID + `"}`}, nil
			}
		}
		t.Errorf("unexpected call %v", call)
		return platformtest.Response{Status: http.StatusNotFound}, nil
	})
	s.Orchestrator = workflow.New(s.Transport)
	s.Orchestrator.Logger = logrus.New()
	s.Orchestrator.Poller.Logger = logrus.New()
	s.Orchestrator.PollInterval = 0
	return s
}

// job scripts the job submitted to a template.
func (s *scripted) job(template, jobID string, states ...string) {
	s.submit[template] = jobID
	s.Script.Script(jobID, states...)
}

func (s *scripted) post(template string) []platformtest.Call {
	var calls []platformtest.Call
	for _, call := range s.Transport.Calls() {
		if call.Method == http.MethodPost && call.Template == template {
			calls = append(calls, call)
		}
	}
	return calls
}

func TestImportDatasetAsProject(t *testing.T) {
	s := newScripted(t)
	s.job(restdata.PrepareDatasetURL, "j1", "running", "finished")
	s.job(restdata.ImportDatasetAsProjectURL, "j2", "pending", "running", "finished")
	s.Script.SetMetadata("j2", map[string]interface{}{"project_id": "p1"})

	result, err := s.Orchestrator.ImportDatasetAsProject(context.Background(), "f1", workflow.NewProject{
		Name:     "Cats",
		TaskType: "detection",
		Labels:   []restdata.Label{{Name: "cat"}},
	})
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, "p1", result.ProducedResourceID)
	assert.Equal(t, []string{"j1", "j2"}, result.JobIDs)
	assert.Empty(t, result.FailureReason)
	assert.Equal(t, 2, s.Script.Polls("j1"))
	assert.Equal(t, 3, s.Script.Polls("j2"))

	if prepare := s.post(restdata.PrepareDatasetURL); assert.Len(t, prepare, 1) {
		assert.Equal(t, platform.Vars{"file_id": "f1"}, prepare[0].Vars)
		assert.Nil(t, prepare[0].In)
	}
	if imports := s.post(restdata.ImportDatasetAsProjectURL); assert.Len(t, imports, 1) {
		assert.Equal(t, restdata.ImportDatasetAsProject{
			FileID:      "f1",
			ProjectName: "Cats",
			TaskType:    "detection",
			Labels:      []restdata.Label{{Name: "cat"}},
		}, imports[0].In)
	}
}

// TestPrepareFailed checks that a failed preparation job ends the
// workflow before the import is submitted.
func TestPrepareFailed(t *testing.T) {
	s := newScripted(t)
	s.job(restdata.PrepareDatasetURL, "j1", "running", "failed")
	s.job(restdata.ImportDatasetAsProjectURL, "j2", "finished")

	result, err := s.Orchestrator.ImportDatasetAsProject(context.Background(), "f1", workflow.NewProject{Name: "x", TaskType: "classification"})
	var jobErr *platform.JobError
	if assert.True(t, errors.As(err, &jobErr)) {
		assert.Equal(t, "j1", jobErr.JobID)
		assert.Equal(t, platform.JobFailed, jobErr.State)
	}
	assert.False(t, result.Succeeded)
	assert.Equal(t, "failed", result.FailureReason)
	assert.Equal(t, []string{"j1"}, result.JobIDs)
	assert.Empty(t, s.post(restdata.ImportDatasetAsProjectURL))
}

func TestImportCanceled(t *testing.T) {
	s := newScripted(t)
	s.job(restdata.PrepareDatasetURL, "j1", "finished")
	s.job(restdata.ImportDatasetAsProjectURL, "j2", "running", "canceled")

	result, err := s.Orchestrator.ImportDatasetAsProject(context.Background(), "f1", workflow.NewProject{Name: "x", TaskType: "detection"})
	var jobErr *platform.JobError
	if assert.True(t, errors.As(err, &jobErr)) {
		assert.Equal(t, platform.JobCanceled, jobErr.State)
	}
	assert.False(t, result.Succeeded)
	assert.Equal(t, "canceled", result.FailureReason)
	assert.Equal(t, []string{"j1", "j2"}, result.JobIDs)
	assert.Empty(t, result.ProducedResourceID)
}

func TestNilLabelsSentAsEmpty(t *testing.T) {
	s := newScripted(t)
	s.job(restdata.PrepareDatasetURL, "j1", "finished")
	s.job(restdata.ImportDatasetAsProjectURL, "j2", "finished")

	_, err := s.Orchestrator.ImportDatasetAsProject(context.Background(), "f1", workflow.NewProject{Name: "x", TaskType: "detection"})
	require.NoError(t, err)
	if imports := s.post(restdata.ImportDatasetAsProjectURL); assert.Len(t, imports, 1) {
		req := imports[0].In.(restdata.ImportDatasetAsProject)
		assert.NotNil(t, req.Labels)
		assert.Empty(t, req.Labels)
	}
}

func TestNumericProjectID(t *testing.T) {
	s := newScripted(t)
	s.job(restdata.ImportProjectURL, "j1", "finished")
	s.Script.SetMetadata("j1", map[string]interface{}{"project_id": 42})

	result, err := s.Orchestrator.ImportProject(context.Background(), "f1", "")
	require.NoError(t, err)
	assert.Equal(t, "42", result.ProducedResourceID)
}

func TestImportDatasetIntoProject(t *testing.T) {
	s := newScripted(t)
	s.job(restdata.PrepareDatasetForProjectURL, "j1", "finished")
	s.job(restdata.ImportDatasetIntoProjectURL, "j2", "running", "finished")
	s.Script.SetMetadata("j2", map[string]interface{}{"project_id": "p1", "dataset_id": "d2"})

	labels := map[string]string{"src": "dst"}
	result, err := s.Orchestrator.ImportDatasetIntoProject(context.Background(), "f1", "p1", "Extra", labels)
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, "d2", result.ProducedResourceID)
	assert.Equal(t, []string{"j1", "j2"}, result.JobIDs)

	if prepare := s.post(restdata.PrepareDatasetForProjectURL); assert.Len(t, prepare, 1) {
		assert.Equal(t, platform.Vars{"project_id": "p1"}, prepare[0].Vars)
		assert.Equal(t, restdata.PrepareForProject{FileID: "f1"}, prepare[0].In)
	}
	if imports := s.post(restdata.ImportDatasetIntoProjectURL); assert.Len(t, imports, 1) {
		assert.Equal(t, platform.Vars{"project_id": "p1"}, imports[0].Vars)
		assert.Equal(t, restdata.ImportDatasetIntoProject{
			FileID:      "f1",
			DatasetName: "Extra",
			LabelsMap:   labels,
		}, imports[0].In)
	}
}

func TestPrepareForProjectFailed(t *testing.T) {
	s := newScripted(t)
	s.job(restdata.PrepareDatasetForProjectURL, "j1", "running", "running", "failed")
	s.job(restdata.ImportDatasetIntoProjectURL, "j2", "finished")

	result, err := s.Orchestrator.ImportDatasetIntoProject(context.Background(), "f1", "p1", "Extra", nil)
	var jobErr *platform.JobError
	if assert.True(t, errors.As(err, &jobErr)) {
		assert.Equal(t, "j1", jobErr.JobID)
		assert.Equal(t, platform.JobFailed, jobErr.State)
	}
	assert.False(t, result.Succeeded)
	assert.Equal(t, "failed", result.FailureReason)
	assert.Equal(t, []string{"j1"}, result.JobIDs)
	assert.Empty(t, s.post(restdata.ImportDatasetIntoProjectURL))
}

func TestEmptyLabelsMapOmitted(t *testing.T) {
	s := newScripted(t)
	s.job(restdata.PrepareDatasetForProjectURL, "j1", "finished")
	s.job(restdata.ImportDatasetIntoProjectURL, "j2", "finished")

	result, err := s.Orchestrator.ImportDatasetIntoProject(context.Background(), "f1", "p1", "Extra", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "p1", result.ProducedResourceID)
	if imports := s.post(restdata.ImportDatasetIntoProjectURL); assert.Len(t, imports, 1) {
		assert.Nil(t, imports[0].In.(restdata.ImportDatasetIntoProject).LabelsMap)
	}
}

func TestImportProject(t *testing.T) {
	s := newScripted(t)
	s.job(restdata.ImportProjectURL, "j1", "pending", "running", "finished")
	s.Script.SetMetadata("j1", map[string]interface{}{"project_id": "p9"})

	result, err := s.Orchestrator.ImportProject(context.Background(), "f1", "Restored")
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, "p9", result.ProducedResourceID)
	assert.Equal(t, []string{"j1"}, result.JobIDs)
	if imports := s.post(restdata.ImportProjectURL); assert.Len(t, imports, 1) {
		assert.Equal(t, restdata.ImportProject{FileID: "f1", ProjectName: "Restored"}, imports[0].In)
	}
}

func TestPollingTimeout(t *testing.T) {
	s := newScripted(t)
	s.Orchestrator.MaxAttempts = 3
	s.job(restdata.PrepareDatasetURL, "j1", "running")
	s.job(restdata.ImportDatasetAsProjectURL, "j2", "finished")

	result, err := s.Orchestrator.ImportDatasetAsProject(context.Background(), "f1", workflow.NewProject{Name: "x", TaskType: "detection"})
	var timeout *platform.PollingTimeout
	if assert.True(t, errors.As(err, &timeout)) {
		assert.Equal(t, "j1", timeout.JobID)
		assert.Equal(t, 3, timeout.Attempts)
		if assert.NotNil(t, timeout.Last) {
			assert.Equal(t, platform.JobRunning, timeout.Last.State)
		}
	}
	assert.False(t, result.Succeeded)
	assert.NotEmpty(t, result.FailureReason)
	assert.Equal(t, []string{"j1"}, result.JobIDs)
	assert.Equal(t, 3, s.Script.Polls("j1"))
	assert.Empty(t, s.post(restdata.ImportDatasetAsProjectURL))
}

func TestSubmissionRejected(t *testing.T) {
	transport := platformtest.New(func(call platformtest.Call) (platformtest.Response, error) {
		return platformtest.Response{
			Status: http.StatusBadRequest,
			Body:   `{"error_code":"bad_request","message":"not prepared"}`,
		}, nil
	})
	o := workflow.New(transport)
	o.Logger = logrus.New()

	result, err := o.ImportProject(context.Background(), "f1", "")
	var apiErr *platform.APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	}
	assert.False(t, result.Succeeded)
	assert.NotEmpty(t, result.FailureReason)
	assert.Empty(t, result.JobIDs)
}

func TestTransportErrorWhilePolling(t *testing.T) {
	polls := 0
	transport := platformtest.New(func(call platformtest.Call) (platformtest.Response, error) {
		if call.Method == http.MethodPost {
			return platformtest.Response{Body: `{"job_id":"j1"}`}, nil
		}
		polls++
		if polls == 1 {
			return platformtest.Response{Body: `{"id":"j1","state":"running"}`}, nil
		}
		return platformtest.Response{}, &platform.TransportError{
			Method: call.Method,
			URL:    call.Template,
			Err:    errors.New("connection reset"),
		}
	})
	o := workflow.New(transport)
	o.Logger = logrus.New()
	o.Poller.Logger = logrus.New()
	o.PollInterval = 0

	result, err := o.ImportProject(context.Background(), "f1", "")
	var waitErr *workflow.WaitError
	if assert.True(t, errors.As(err, &waitErr)) {
		assert.Equal(t, "j1", waitErr.JobID)
		assert.Equal(t, platform.JobRunning, waitErr.State)
	}
	assert.True(t, platform.IsTransport(err))
	assert.False(t, result.Succeeded)
	assert.Equal(t, []string{"j1"}, result.JobIDs)
	assert.Equal(t, 2, polls)
}
