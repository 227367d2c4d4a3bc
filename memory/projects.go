// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"errors"
	"fmt"
	"time"

	"github.com/diffeo/go-visionclient/restdata"
)

// createProject assigns identifiers and stores a new project.  The
// caller holds the lock.
func (p *Platform) createProject(req restdata.ProjectCreate) *restdata.Project {
	project := &restdata.Project{
		ID:   newID(),
		Name: req.Name,
		Pipeline: restdata.Pipeline{
			Tasks:       make([]restdata.Task, len(req.Pipeline.Tasks)),
			Connections: append([]restdata.Connection(nil), req.Pipeline.Connections...),
		},
		Datasets: []restdata.Dataset{{ID: newID(), Name: "Dataset"}},
	}
	for i, task := range req.Pipeline.Tasks {
		task.ID = newID()
		if len(task.Labels) > 0 {
			labels := make([]restdata.Label, len(task.Labels))
			for j, label := range task.Labels {
				label.ID = newID()
				labels[j] = label
			}
			task.Labels = labels
		}
		project.Pipeline.Tasks[i] = task
	}
	p.projects[project.ID] = project
	p.order = append(p.order, project.ID)
	return project
}

// project finds a project.  The caller holds the lock.
func (p *Platform) project(id string) (*restdata.Project, error) {
	project := p.projects[id]
	if project == nil {
		return nil, restdata.ErrNotFound{Err: fmt.Errorf("no such project %q", id)}
	}
	return project, nil
}

func hasLabel(project *restdata.Project, labelID string) bool {
	for _, task := range project.Pipeline.Tasks {
		for _, label := range task.Labels {
			if label.ID == labelID {
				return true
			}
		}
	}
	return false
}

// copyProject returns a copy of a project that shares no slices with
// the stored one.
func copyProject(project *restdata.Project) restdata.Project {
	result := *project
	result.Pipeline.Tasks = make([]restdata.Task, len(project.Pipeline.Tasks))
	for i, task := range project.Pipeline.Tasks {
		task.Labels = append([]restdata.Label(nil), task.Labels...)
		result.Pipeline.Tasks[i] = task
	}
	result.Pipeline.Connections = append([]restdata.Connection(nil), project.Pipeline.Connections...)
	result.Datasets = append([]restdata.Dataset(nil), project.Datasets...)
	return result
}

// CreateProject creates a new project with a single default dataset.
func (p *Platform) CreateProject(req restdata.ProjectCreate) (restdata.Project, error) {
	if req.Name == "" {
		return restdata.Project{}, restdata.ErrBadRequest{Err: errors.New("project name is required")}
	}
	if len(req.Pipeline.Tasks) == 0 {
		return restdata.Project{}, restdata.ErrBadRequest{Err: errors.New("pipeline has no tasks")}
	}
	titles := make(map[string]bool)
	for _, task := range req.Pipeline.Tasks {
		titles[task.Title] = true
	}
	for _, conn := range req.Pipeline.Connections {
		if !titles[conn.From] || !titles[conn.To] {
			return restdata.Project{}, restdata.ErrBadRequest{Err: fmt.Errorf("connection %q -> %q names an unknown task", conn.From, conn.To)}
		}
	}

	p.lock()
	defer p.unlock()
	return copyProject(p.createProject(req)), nil
}

// Projects lists every project in creation order.
func (p *Platform) Projects() restdata.ProjectList {
	p.lock()
	defer p.unlock()
	list := restdata.ProjectList{Projects: make([]restdata.Project, 0, len(p.order))}
	for _, id := range p.order {
		list.Projects = append(list.Projects, copyProject(p.projects[id]))
	}
	return list
}

// Project returns a single project.
func (p *Platform) Project(id string) (restdata.Project, error) {
	p.lock()
	defer p.unlock()
	project, err := p.project(id)
	if err != nil {
		return restdata.Project{}, err
	}
	return copyProject(project), nil
}

// dataset checks that a dataset belongs to a project.  The caller
// holds the lock.
func (p *Platform) dataset(project *restdata.Project, datasetID string) error {
	for _, dataset := range project.Datasets {
		if dataset.ID == datasetID {
			return nil
		}
	}
	return restdata.ErrNotFound{Err: fmt.Errorf("no such dataset %q", datasetID)}
}

// UploadMedia adds an image or video to a dataset.
func (p *Platform) UploadMedia(projectID, datasetID, mediaType, filename string, info restdata.UploadInfo) (restdata.Media, error) {
	var kind string
	switch mediaType {
	case restdata.MediaImages:
		kind = "image"
	case restdata.MediaVideos:
		kind = "video"
	default:
		return restdata.Media{}, restdata.ErrNotFound{Err: fmt.Errorf("no such media type %q", mediaType)}
	}

	p.lock()
	defer p.unlock()
	project, err := p.project(projectID)
	if err != nil {
		return restdata.Media{}, err
	}
	if err = p.dataset(project, datasetID); err != nil {
		return restdata.Media{}, err
	}
	for _, labelID := range info.LabelIDs {
		if !hasLabel(project, labelID) {
			return restdata.Media{}, restdata.ErrBadRequest{Err: fmt.Errorf("label %q is not in the project", labelID)}
		}
	}
	media := restdata.Media{ID: newID(), Type: kind, Name: filename}
	p.media[datasetID] = append(p.media[datasetID], media)
	return media, nil
}

// Media lists the media in a dataset, in upload order.
func (p *Platform) Media(datasetID string) []restdata.Media {
	p.lock()
	defer p.unlock()
	return append([]restdata.Media(nil), p.media[datasetID]...)
}

// Predict produces a canned prediction for an image: one full-image
// rectangle carrying the project's first label.
func (p *Platform) Predict(projectID string, size int64) (map[string]interface{}, error) {
	p.lock()
	defer p.unlock()
	project, err := p.project(projectID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, restdata.ErrBadRequest{Err: errors.New("empty image")}
	}

	predictions := []interface{}{}
	for _, task := range project.Pipeline.Tasks {
		if len(task.Labels) == 0 {
			continue
		}
		label := task.Labels[0]
		predictions = append(predictions, map[string]interface{}{
			"labels": []interface{}{
				map[string]interface{}{
					"id":          label.ID,
					"name":        label.Name,
					"probability": 0.9,
				},
			},
			"shape": map[string]interface{}{
				"type":   "RECTANGLE",
				"x":      0,
				"y":      0,
				"width":  1,
				"height": 1,
			},
		})
		break
	}
	return map[string]interface{}{
		"predictions": predictions,
		"created":     p.clock.Now().UTC().Format(time.RFC3339),
	}, nil
}
