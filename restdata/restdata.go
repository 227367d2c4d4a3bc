// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines the data structures exchanged with the
// vision platform REST API, shared between the restclient package and
// the restserver fake.  Everything is passed across the wire as
// application/json.
//
// API Usage
//
// All paths are RFC 6570 URI templates.  The organization and
// workspace templates are relative to the API root, <host>/api/v1/;
// everything else is relative to the workspace URL,
//
//     <host>/api/v1/organizations/{organization_id}/workspaces/{workspace_id}/
//
// Several platform endpoints are "custom methods" with a colon in the
// final path segment, "projects:import" for instance.  A relative
// reference whose first segment contains a colon would parse as a URL
// scheme, so those templates start with "./".
//
// Encoding Considerations
//
// Responses are decoded leniently: fields the client does not know
// about are ignored, and absent fields are left at their zero value.
// Job states are plain strings; see platform.JobState.
//
// Errors
//
// Failing responses carry an ErrorResponse body when the platform
// generated them.  Anything else is reported by its HTTP status line.
package restdata

import (
	"github.com/diffeo/go-visionclient/platform"
)

// JSONMediaType is the media type of every request and response body
// other than file content.
const JSONMediaType = "application/json"

// TusResumable is the only version of the resumable upload protocol
// this package speaks.  It is sent as the Tus-Resumable header.
const TusResumable = "1.0.0"

// TusContentType is the required content type of upload chunks.
const TusContentType = "application/offset+octet-stream"

// Templates relative to the API root.
const (
	// OrganizationURL returns the OrganizationResponse of the
	// organization owning the caller's API key.
	OrganizationURL = "personal_access_tokens/organization"

	// WorkspacesURL returns a WorkspaceList.
	WorkspacesURL = "organizations/{organization_id}/workspaces"

	// WorkspaceURL is the root of every other template.  It
	// ends in a slash so that relative references resolve
	// beneath it.
	WorkspaceURL = "organizations/{organization_id}/workspaces/{workspace_id}/"
)

// Templates relative to the workspace URL.
const (
	// DatasetUploadsURL accepts a multipart "file" and returns
	// FileUploaded.
	DatasetUploadsURL = "datasets/uploads"

	// DatasetResumableUploadsURL is the resumable-protocol
	// creation endpoint for dataset archives.
	DatasetResumableUploadsURL = "datasets/uploads/resumable"

	// ProjectResumableUploadsURL is the resumable-protocol
	// creation endpoint for project archives.
	ProjectResumableUploadsURL = "projects/uploads/resumable"

	// PrepareDatasetURL starts a job preparing an uploaded
	// dataset for import as a new project.  Returns JobSubmitted.
	PrepareDatasetURL = "./datasets:prepare-for-import{?file_id}"

	// PrepareDatasetForProjectURL starts a job preparing an
	// uploaded dataset for import into an existing project.
	// Accepts PrepareForProject; returns JobSubmitted.
	PrepareDatasetForProjectURL = "projects/{project_id}/datasets:prepare-for-import"

	// ImportDatasetAsProjectURL accepts ImportDatasetAsProject and
	// returns JobSubmitted.
	ImportDatasetAsProjectURL = "./projects:import-from-dataset"

	// ImportDatasetIntoProjectURL accepts
	// ImportDatasetIntoProject and returns JobSubmitted.
	ImportDatasetIntoProjectURL = "projects/{project_id}:import-from-dataset"

	// ImportProjectURL accepts ImportProject and returns
	// JobSubmitted.
	ImportProjectURL = "./projects:import"

	// JobURL returns a JobStatus.
	JobURL = "jobs/{job_id}"

	// ProjectsURL returns a ProjectList on GET, and accepts a
	// ProjectCreate on POST, returning the Project.
	ProjectsURL = "projects"

	// ProjectURL returns a single Project.
	ProjectURL = "projects/{project_id}"

	// MediaURL accepts a multipart "file", and optionally an
	// "upload_info" UploadInfo, and returns a Media.
	// media_type is "images" or "videos".
	MediaURL = "projects/{project_id}/datasets/{dataset_id}/media/{media_type}"

	// PredictURL accepts a multipart "file" image and returns an
	// opaque prediction document.
	PredictURL = "projects/{project_id}/pipelines/active:predict"
)

// OrganizationResponse identifies the caller's organization.
type OrganizationResponse struct {
	OrganizationID string `json:"organizationId"`
}

// Workspace is a single workspace.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// WorkspaceList lists the workspaces of an organization.
type WorkspaceList struct {
	Workspaces []Workspace `json:"workspaces"`
}

// FileUploaded is returned from a standard upload.
type FileUploaded struct {
	FileID string `json:"file_id"`
}

// JobSubmitted is returned from every endpoint that starts a job.
type JobSubmitted struct {
	JobID string `json:"job_id"`
}

// JobStep is a single step of a JobStatus.
type JobStep struct {
	StepName string `json:"step_name"`

	// Progress is a percentage.  The platform sends -1 for a step
	// that has not started.
	Progress float64 `json:"progress"`
}

// JobStatus is the representation of a job.
type JobStatus struct {
	ID       string                 `json:"id,omitempty"`
	Type     string                 `json:"type,omitempty"`
	State    string                 `json:"state"`
	Steps    []JobStep              `json:"steps,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJob converts the wire representation to a platform.Job.  id is
// used if the representation does not carry its own.
func (j *JobStatus) ToJob(id string) *platform.Job {
	job := &platform.Job{
		ID:       j.ID,
		Type:     j.Type,
		State:    platform.JobState(j.State),
		Metadata: j.Metadata,
	}
	if job.ID == "" {
		job.ID = id
	}
	if len(j.Steps) > 0 {
		job.Steps = make([]platform.Step, len(j.Steps))
		for i, step := range j.Steps {
			job.Steps[i] = platform.Step{
				Name:     step.StepName,
				Progress: platform.ClampProgress(step.Progress),
			}
		}
	}
	return job
}

// ImportJobMetadata holds the metadata values an import job reports
// when it finishes.
type ImportJobMetadata struct {
	ProjectID string `mapstructure:"project_id"`

	// DatasetID is reported by imports into an existing project.
	DatasetID string `mapstructure:"dataset_id"`
}

// Label is a project label.  ID is assigned by the platform.
type Label struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Group string `json:"group,omitempty"`
}

// PrepareForProject is the body for PrepareDatasetForProjectURL.
type PrepareForProject struct {
	FileID string `json:"file_id"`
}

// ImportDatasetAsProject is the body for ImportDatasetAsProjectURL.
type ImportDatasetAsProject struct {
	FileID      string  `json:"file_id"`
	ProjectName string  `json:"project_name"`
	TaskType    string  `json:"task_type"`
	Labels      []Label `json:"labels"`
}

// ImportDatasetIntoProject is the body for
// ImportDatasetIntoProjectURL.  LabelsMap maps source label IDs to
// destination label IDs; if it is absent the platform picks its own
// mapping.
type ImportDatasetIntoProject struct {
	FileID      string            `json:"file_id"`
	DatasetName string            `json:"dataset_name"`
	LabelsMap   map[string]string `json:"labels_map,omitempty"`
}

// ImportProject is the body for ImportProjectURL.
type ImportProject struct {
	FileID      string `json:"file_id"`
	ProjectName string `json:"project_name,omitempty"`
}

// Task is a single task in a project pipeline.
type Task struct {
	ID       string  `json:"id,omitempty"`
	TaskType string  `json:"task_type"`
	Title    string  `json:"title"`
	Labels   []Label `json:"labels,omitempty"`
}

// Connection joins two pipeline tasks by title.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Pipeline is a project's task graph.
type Pipeline struct {
	Tasks       []Task       `json:"tasks"`
	Connections []Connection `json:"connections"`
}

// ProjectCreate is the body for a POST to ProjectsURL.
type ProjectCreate struct {
	Name     string   `json:"name"`
	Pipeline Pipeline `json:"pipeline"`
}

// Dataset is a dataset within a project.
type Dataset struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Project is the representation of a project.
type Project struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Pipeline Pipeline  `json:"pipeline"`
	Datasets []Dataset `json:"datasets,omitempty"`
}

// ProjectList is returned from ProjectsURL.
type ProjectList struct {
	Projects []Project `json:"projects"`
}

// UploadInfo is the "upload_info" form field of a media upload.
type UploadInfo struct {
	LabelIDs []string `json:"label_ids"`
}

// Media is the representation of an uploaded image or video.
type Media struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

// Media types, as they appear in MediaURL.
const (
	MediaImages = "images"
	MediaVideos = "videos"
)
