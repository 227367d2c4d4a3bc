// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package workflow chains uploads and platform jobs into the
// multi-step flows the platform requires to get data into a project.
//
// A dataset archive is imported in two jobs: one preparing the
// uploaded file, and one creating or extending the project from it.
// Each job only starts once the previous one finished; a job that
// fails or is canceled ends the workflow, and nothing is retried.
//
//     o := workflow.New(ws)
//     up, err := o.UploadDataset(ctx, "coco.zip")
//     result, err := o.ImportDatasetAsProject(ctx, up.FileID, workflow.NewProject{
//         Name:     "Cats",
//         TaskType: "detection",
//         Labels:   []restdata.Label{{Name: "cat"}},
//     })
//     fmt.Println(result.ProducedResourceID)
//
// Every workflow returns a *platform.WorkflowResult even when it
// fails, listing the jobs it submitted.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-visionclient/jobs"
	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
	"github.com/diffeo/go-visionclient/store"
	"github.com/diffeo/go-visionclient/upload"
)

const (
	// DefaultPollInterval is the wait between job status queries.
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxAttempts is the number of status queries made
	// before giving up on a job.
	DefaultMaxAttempts = 60

	// DefaultStandardUploadLimit is the file size at which
	// dataset uploads switch to the resumable protocol.
	DefaultStandardUploadLimit = 100 * 1024 * 1024
)

// NewProject describes the project created by ImportDatasetAsProject.
type NewProject struct {
	Name     string
	TaskType string
	Labels   []restdata.Label
}

// WaitError reports a failure while waiting for a submitted job, other
// than the job itself failing.
type WaitError struct {
	JobID string

	// State is the job state as of the last successful poll, or
	// empty if there was none.
	State platform.JobState

	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("waiting for job %v (last state %q): %v", e.JobID, e.State, e.Err)
}

// Unwrap returns the underlying error.
func (e *WaitError) Unwrap() error {
	return e.Err
}

// Orchestrator runs workflows against a single workspace.  The
// exported fields may be changed after New and before the first call.
// It is safe for concurrent use.
type Orchestrator struct {
	// Transport issues every request.
	Transport platform.Transport

	// Poller waits for submitted jobs.
	Poller *jobs.Poller

	// Store, if non-nil, saves unfinished resumable uploads
	// keyed by the absolute path of the uploaded file.
	Store store.Store

	// Logger receives workflow progress.
	Logger logrus.FieldLogger

	PollInterval        time.Duration
	MaxAttempts         int
	ChunkSize           int64
	StandardUploadLimit int64

	// Progress, if non-nil, is called as upload content is sent,
	// with the uploaded file's base name.
	Progress func(filename string, sent, total int64)

	sessionsLock sync.Mutex
	sessions     map[string]*upload.Session
}

// New creates an orchestrator with the default settings.
func New(transport platform.Transport) *Orchestrator {
	return &Orchestrator{
		Transport:           transport,
		Poller:              jobs.New(transport),
		Logger:              logrus.StandardLogger(),
		PollInterval:        DefaultPollInterval,
		MaxAttempts:         DefaultMaxAttempts,
		ChunkSize:           upload.DefaultChunkSize,
		StandardUploadLimit: DefaultStandardUploadLimit,
	}
}

// step submits one job and waits until it is terminal.  A job that did
// not finish produces a *platform.JobError.
func (o *Orchestrator) step(ctx context.Context, result *platform.WorkflowResult, name, template string, vars platform.Vars, in interface{}) (*platform.Job, error) {
	logger := o.Logger.WithField("step", name)

	var submitted restdata.JobSubmitted
	err := o.Transport.PostTo(ctx, template, vars, in, &submitted)
	if err == nil && submitted.JobID == "" {
		err = errors.New("no job id in response")
	}
	if err != nil {
		result.FailureReason = err.Error()
		logger.WithError(err).Error("job submission failed")
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	result.JobIDs = append(result.JobIDs, submitted.JobID)
	logger = logger.WithField("job", submitted.JobID)
	logger.Info("job submitted")

	job, err := o.Poller.PollUntilTerminal(ctx, submitted.JobID, o.PollInterval, o.MaxAttempts)
	if err != nil {
		result.FailureReason = err.Error()
		logger.WithError(err).Error("job did not complete")
		var timeout *platform.PollingTimeout
		if errors.As(err, &timeout) {
			return job, err
		}
		waitErr := &WaitError{JobID: submitted.JobID, Err: err}
		if job != nil {
			waitErr.State = job.State
		}
		return job, waitErr
	}
	if job.State != platform.JobFinished {
		result.FailureReason = string(job.State)
		logger.WithField("state", job.State).Warn("job did not finish")
		return job, &platform.JobError{JobID: job.ID, State: job.State, Job: job}
	}
	logger.Info("job finished")
	return job, nil
}

// importMetadata decodes the resource identifiers a finished job
// reports.  Numeric identifiers are accepted and converted to strings.
func importMetadata(job *platform.Job) (restdata.ImportJobMetadata, error) {
	var metadata restdata.ImportJobMetadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &metadata,
	})
	if err != nil {
		return metadata, err
	}
	err = decoder.Decode(job.Metadata)
	return metadata, err
}

// finish records the outcome of a workflow.
func (o *Orchestrator) finish(name string, result *platform.WorkflowResult, err error) (*platform.WorkflowResult, error) {
	outcome := "succeeded"
	var jobErr *platform.JobError
	switch {
	case err == nil:
		result.Succeeded = true
		result.FailureReason = ""
	case errors.As(err, &jobErr):
		outcome = "failed"
	default:
		outcome = "error"
	}
	observeWorkflow(name, outcome)
	o.Logger.WithFields(logrus.Fields{
		"workflow": name,
		"outcome":  outcome,
		"jobs":     result.JobIDs,
		"resource": result.ProducedResourceID,
	}).Info("workflow done")
	return result, err
}

// ImportDatasetAsProject prepares an uploaded dataset and creates a
// new project from it.  On success the result names the new project.
func (o *Orchestrator) ImportDatasetAsProject(ctx context.Context, fileID string, project NewProject) (*platform.WorkflowResult, error) {
	const name = "import_dataset_as_project"
	result := &platform.WorkflowResult{}
	_, err := o.step(ctx, result, "prepare", restdata.PrepareDatasetURL, platform.Vars{"file_id": fileID}, nil)
	if err != nil {
		return o.finish(name, result, err)
	}

	labels := project.Labels
	if labels == nil {
		labels = []restdata.Label{}
	}
	job, err := o.step(ctx, result, "import", restdata.ImportDatasetAsProjectURL, nil, restdata.ImportDatasetAsProject{
		FileID:      fileID,
		ProjectName: project.Name,
		TaskType:    project.TaskType,
		Labels:      labels,
	})
	if err != nil {
		return o.finish(name, result, err)
	}
	metadata, err := importMetadata(job)
	if err != nil {
		return o.finish(name, result, err)
	}
	result.ProducedResourceID = metadata.ProjectID
	return o.finish(name, result, nil)
}

// ImportDatasetIntoProject prepares an uploaded dataset and adds it to
// an existing project as a new dataset.  labelsMap maps label ids in
// the archive to the project's label ids; if it is empty the platform
// matches labels itself.  On success the result names the new dataset,
// or the project if the platform did not report a dataset.
func (o *Orchestrator) ImportDatasetIntoProject(ctx context.Context, fileID, projectID, datasetName string, labelsMap map[string]string) (*platform.WorkflowResult, error) {
	const name = "import_dataset_into_project"
	result := &platform.WorkflowResult{}
	vars := platform.Vars{"project_id": projectID}
	_, err := o.step(ctx, result, "prepare", restdata.PrepareDatasetForProjectURL, vars, restdata.PrepareForProject{FileID: fileID})
	if err != nil {
		return o.finish(name, result, err)
	}

	req := restdata.ImportDatasetIntoProject{
		FileID:      fileID,
		DatasetName: datasetName,
	}
	if len(labelsMap) > 0 {
		req.LabelsMap = labelsMap
	}
	job, err := o.step(ctx, result, "import", restdata.ImportDatasetIntoProjectURL, vars, req)
	if err != nil {
		return o.finish(name, result, err)
	}
	metadata, err := importMetadata(job)
	if err != nil {
		return o.finish(name, result, err)
	}
	result.ProducedResourceID = metadata.DatasetID
	if result.ProducedResourceID == "" {
		result.ProducedResourceID = projectID
	}
	return o.finish(name, result, nil)
}

// ImportProject imports an exported project archive.  projectName may
// be empty to keep the archive's name.  On success the result names
// the new project.
func (o *Orchestrator) ImportProject(ctx context.Context, fileID, projectName string) (*platform.WorkflowResult, error) {
	const name = "import_project"
	result := &platform.WorkflowResult{}
	job, err := o.step(ctx, result, "import", restdata.ImportProjectURL, nil, restdata.ImportProject{
		FileID:      fileID,
		ProjectName: projectName,
	})
	if err != nil {
		return o.finish(name, result, err)
	}
	metadata, err := importMetadata(job)
	if err != nil {
		return o.finish(name, result, err)
	}
	result.ProducedResourceID = metadata.ProjectID
	return o.finish(name, result, nil)
}
