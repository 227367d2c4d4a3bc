// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package project manages projects within a workspace: creating and
// listing them, adding images and videos to their datasets, and
// running their active pipeline on an image.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
	"github.com/diffeo/go-visionclient/worker"
)

// ErrNoDataset is returned when a project has no datasets.
var ErrNoDataset = errors.New("Project has no datasets")

// ErrUnsupportedMedia is returned when a file extension is neither a
// known image nor a known video type.
var ErrUnsupportedMedia = errors.New("Unsupported media file extension")

var mediaTypes = map[string]string{
	".jpg":  restdata.MediaImages,
	".jpeg": restdata.MediaImages,
	".png":  restdata.MediaImages,
	".bmp":  restdata.MediaImages,
	".tiff": restdata.MediaImages,
	".jfif": restdata.MediaImages,
	".webp": restdata.MediaImages,
	".mp4":  restdata.MediaVideos,
	".avi":  restdata.MediaVideos,
	".mov":  restdata.MediaVideos,
	".webm": restdata.MediaVideos,
	".mkv":  restdata.MediaVideos,
	".m4v":  restdata.MediaVideos,
}

// MediaType returns restdata.MediaImages or restdata.MediaVideos
// depending on a file's extension, ignoring case.
func MediaType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if mediaType, ok := mediaTypes[ext]; ok {
		return mediaType, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMedia, ext)
}

// Client operates on the projects of one workspace.
type Client struct {
	Transport platform.Transport
	Logger    logrus.FieldLogger
}

// New creates a client.
func New(transport platform.Transport) *Client {
	return &Client{Transport: transport, Logger: logrus.StandardLogger()}
}

// SingleTaskPipeline builds the usual pipeline of a dataset feeding one
// task.
func SingleTaskPipeline(taskType, title string, labels []restdata.Label) restdata.Pipeline {
	return restdata.Pipeline{
		Tasks: []restdata.Task{
			{TaskType: "dataset", Title: "Dataset"},
			{TaskType: taskType, Title: title, Labels: labels},
		},
		Connections: []restdata.Connection{{From: "Dataset", To: title}},
	}
}

// Create creates a new project.
func (c *Client) Create(ctx context.Context, name string, pipeline restdata.Pipeline) (*restdata.Project, error) {
	var project restdata.Project
	err := c.Transport.PostTo(ctx, restdata.ProjectsURL, nil, restdata.ProjectCreate{
		Name:     name,
		Pipeline: pipeline,
	}, &project)
	if err != nil {
		return nil, err
	}
	c.Logger.WithFields(logrus.Fields{
		"project": project.ID,
		"name":    project.Name,
	}).Info("project created")
	return &project, nil
}

// List returns every project in the workspace.
func (c *Client) List(ctx context.Context) ([]restdata.Project, error) {
	var list restdata.ProjectList
	if err := c.Transport.GetFrom(ctx, restdata.ProjectsURL, nil, &list); err != nil {
		return nil, err
	}
	return list.Projects, nil
}

// Get returns a single project.
func (c *Client) Get(ctx context.Context, projectID string) (*restdata.Project, error) {
	var project restdata.Project
	err := c.Transport.GetFrom(ctx, restdata.ProjectURL, platform.Vars{"project_id": projectID}, &project)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Labels maps the name of every label in a project's pipeline to its
// id.  If two tasks have labels of the same name, the later task wins.
func Labels(project *restdata.Project) map[string]string {
	labels := make(map[string]string)
	for _, task := range project.Pipeline.Tasks {
		for _, label := range task.Labels {
			labels[label.Name] = label.ID
		}
	}
	return labels
}

// LabelIDs resolves label names to ids.
func LabelIDs(project *restdata.Project, names []string) ([]string, error) {
	labels := Labels(project)
	ids := make([]string, len(names))
	for i, name := range names {
		id, ok := labels[name]
		if !ok {
			return nil, fmt.Errorf("project %v has no label %q", project.ID, name)
		}
		ids[i] = id
	}
	return ids, nil
}

// DefaultDataset returns the id of a project's first dataset.
func DefaultDataset(project *restdata.Project) (string, error) {
	if len(project.Datasets) == 0 {
		return "", ErrNoDataset
	}
	return project.Datasets[0].ID, nil
}

// MediaUpload describes one image or video to add to a dataset.
type MediaUpload struct {
	ProjectID string
	DatasetID string
	Path      string

	// LabelIDs, if non-empty, are assigned to the whole media
	// item.
	LabelIDs []string

	// Progress, if non-nil, is called as file content is sent.
	Progress func(sent, total int64)
}

// UploadMedia adds an image or video to a dataset.  The media type is
// chosen from the file extension.
func (c *Client) UploadMedia(ctx context.Context, up MediaUpload) (*restdata.Media, error) {
	mediaType, err := MediaType(up.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(up.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	form := &platform.Form{
		Files: []platform.FormFile{{
			Field:    "file",
			Filename: filepath.Base(up.Path),
			Content:  f,
			Size:     info.Size(),
		}},
		Progress: up.Progress,
	}
	if len(up.LabelIDs) > 0 {
		encoded, err := restdata.EncodeBytes(restdata.UploadInfo{LabelIDs: up.LabelIDs})
		if err != nil {
			return nil, err
		}
		form.Fields = map[string]string{"upload_info": string(encoded)}
	}

	var media restdata.Media
	err = c.Transport.PostTo(ctx, restdata.MediaURL, platform.Vars{
		"project_id": up.ProjectID,
		"dataset_id": up.DatasetID,
		"media_type": mediaType,
	}, form, &media)
	if err != nil {
		return nil, err
	}
	c.Logger.WithFields(logrus.Fields{
		"file":  up.Path,
		"media": media.ID,
		"type":  mediaType,
	}).Info("media uploaded")
	return &media, nil
}

// MediaResult is the outcome of one upload in UploadMediaFiles.
type MediaResult struct {
	Path  string
	Media *restdata.Media
	Err   error
}

// UploadMediaFiles uploads several files to the same dataset, running
// at most concurrency uploads at once (runtime.NumCPU() if it is not
// positive).  Every file is attempted; results are in path order.
func (c *Client) UploadMediaFiles(ctx context.Context, template MediaUpload, paths []string, concurrency int) []MediaResult {
	results := make([]MediaResult, len(paths))
	tasks := make([]worker.Task, len(paths))
	for i, path := range paths {
		i, up := i, template
		up.Path = path
		results[i].Path = path
		tasks[i] = worker.Task{
			Name: path,
			Run: func(ctx context.Context) error {
				media, err := c.UploadMedia(ctx, up)
				results[i].Media = media
				return err
			},
		}
	}
	w := worker.Worker{Concurrency: concurrency, Logger: c.Logger}
	for i, result := range w.Run(ctx, tasks) {
		results[i].Err = result.Err
	}
	return results
}
