// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"fmt"
	"sort"

	"github.com/diffeo/go-visionclient/restdata"
)

// Job types, as reported in a job's "type".
const (
	PrepareNewProjectJob      = "prepare_import_to_new_project"
	ImportNewProjectJob       = "perform_import_to_new_project"
	PrepareExistingProjectJob = "prepare_import_to_existing_project"
	ImportExistingProjectJob  = "perform_import_to_existing_project"
	ImportProjectJob          = "import_project"
)

// DefaultJobScript is the sequence of states an unscripted job moves
// through.
var DefaultJobScript = []string{"running", "finished"}

var stepNames = map[string]string{
	PrepareNewProjectJob:      "Prepare dataset for import",
	ImportNewProjectJob:       "Create project from dataset",
	PrepareExistingProjectJob: "Prepare dataset for import",
	ImportExistingProjectJob:  "Import dataset to project",
	ImportProjectJob:          "Import project",
}

type job struct {
	id       string
	jobType  string
	states   []string
	polls    int
	metadata map[string]interface{}

	// onFinish runs, under the platform lock, the first time the
	// job is observed finished.
	onFinish func(*job)
	finished bool
}

// SetJobScript sets the states that jobs of a given type, submitted
// from now on, move through.  The last state repeats forever.
func (p *Platform) SetJobScript(jobType string, states ...string) {
	p.lock()
	defer p.unlock()
	p.scripts[jobType] = append([]string(nil), states...)
}

// submit creates a new job.  The caller holds the lock.
func (p *Platform) submit(jobType string, metadata map[string]interface{}, onFinish func(*job)) restdata.JobSubmitted {
	states := p.scripts[jobType]
	if len(states) == 0 {
		states = DefaultJobScript
	}
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	j := &job{
		id:       newID(),
		jobType:  jobType,
		states:   states,
		metadata: metadata,
		onFinish: onFinish,
	}
	p.jobs[j.id] = j
	return restdata.JobSubmitted{JobID: j.id}
}

// Job returns the current status of a job, and advances it to its next
// scripted state.
func (p *Platform) Job(id string) (restdata.JobStatus, error) {
	p.lock()
	defer p.unlock()

	j := p.jobs[id]
	if j == nil {
		return restdata.JobStatus{}, restdata.ErrNotFound{Err: fmt.Errorf("no such job %q", id)}
	}
	n := j.polls
	if n >= len(j.states) {
		n = len(j.states) - 1
	}
	j.polls++
	state := j.states[n]

	progress := 100 * float64(n) / float64(len(j.states))
	switch state {
	case "pending":
		progress = -1
	case "finished":
		progress = 100
		if !j.finished {
			j.finished = true
			if j.onFinish != nil {
				j.onFinish(j)
			}
		}
	}

	metadata := make(map[string]interface{}, len(j.metadata))
	for k, v := range j.metadata {
		metadata[k] = v
	}
	return restdata.JobStatus{
		ID:    j.id,
		Type:  j.jobType,
		State: state,
		Steps: []restdata.JobStep{
			{StepName: stepNames[j.jobType], Progress: progress},
		},
		Metadata: metadata,
	}, nil
}

// JobPolls returns the number of status queries a job has seen.
func (p *Platform) JobPolls(id string) int {
	p.lock()
	defer p.unlock()
	if j := p.jobs[id]; j != nil {
		return j.polls
	}
	return 0
}

// PrepareDataset starts preparing an uploaded dataset for import as a
// new project.
func (p *Platform) PrepareDataset(fileID string) (restdata.JobSubmitted, error) {
	p.lock()
	defer p.unlock()
	f, err := p.file(fileID, DatasetFile)
	if err != nil {
		return restdata.JobSubmitted{}, err
	}
	return p.submit(PrepareNewProjectJob, map[string]interface{}{"file_id": fileID}, func(*job) {
		f.prepared = true
		f.preparedFor = ""
	}), nil
}

// PrepareDatasetForProject starts preparing an uploaded dataset for
// import into an existing project.
func (p *Platform) PrepareDatasetForProject(projectID string, req restdata.PrepareForProject) (restdata.JobSubmitted, error) {
	p.lock()
	defer p.unlock()
	if _, err := p.project(projectID); err != nil {
		return restdata.JobSubmitted{}, err
	}
	f, err := p.file(req.FileID, DatasetFile)
	if err != nil {
		return restdata.JobSubmitted{}, err
	}
	return p.submit(PrepareExistingProjectJob, map[string]interface{}{
		"file_id":    req.FileID,
		"project_id": projectID,
	}, func(*job) {
		f.prepared = true
		f.preparedFor = projectID
	}), nil
}

// ImportDatasetAsProject starts creating a new project from a prepared
// dataset.  The finished job's metadata names the new project.
func (p *Platform) ImportDatasetAsProject(req restdata.ImportDatasetAsProject) (restdata.JobSubmitted, error) {
	p.lock()
	defer p.unlock()
	f, err := p.file(req.FileID, DatasetFile)
	if err != nil {
		return restdata.JobSubmitted{}, err
	}
	if !f.prepared || f.preparedFor != "" {
		return restdata.JobSubmitted{}, restdata.ErrBadRequest{Err: fmt.Errorf("dataset %q is not prepared for import", req.FileID)}
	}
	if req.ProjectName == "" || req.TaskType == "" {
		return restdata.JobSubmitted{}, restdata.ErrBadRequest{Err: fmt.Errorf("project_name and task_type are required")}
	}
	create := restdata.ProjectCreate{
		Name: req.ProjectName,
		Pipeline: restdata.Pipeline{
			Tasks: []restdata.Task{
				{TaskType: "dataset", Title: "Dataset"},
				{TaskType: req.TaskType, Title: req.TaskType, Labels: req.Labels},
			},
			Connections: []restdata.Connection{{From: "Dataset", To: req.TaskType}},
		},
	}
	return p.submit(ImportNewProjectJob, nil, func(j *job) {
		project := p.createProject(create)
		j.metadata["project_id"] = project.ID
	}), nil
}

// ImportDatasetIntoProject starts adding a prepared dataset to an
// existing project.
func (p *Platform) ImportDatasetIntoProject(projectID string, req restdata.ImportDatasetIntoProject) (restdata.JobSubmitted, error) {
	p.lock()
	defer p.unlock()
	project, err := p.project(projectID)
	if err != nil {
		return restdata.JobSubmitted{}, err
	}
	f, err := p.file(req.FileID, DatasetFile)
	if err != nil {
		return restdata.JobSubmitted{}, err
	}
	if !f.prepared || f.preparedFor != projectID {
		return restdata.JobSubmitted{}, restdata.ErrBadRequest{Err: fmt.Errorf("dataset %q is not prepared for project %q", req.FileID, projectID)}
	}
	for source, target := range req.LabelsMap {
		if !hasLabel(project, target) {
			return restdata.JobSubmitted{}, restdata.ErrBadRequest{Err: fmt.Errorf("label %q (mapped from %q) is not in the project", target, source)}
		}
	}
	name := req.DatasetName
	if name == "" {
		name = f.Filename
	}
	return p.submit(ImportExistingProjectJob, map[string]interface{}{"project_id": projectID}, func(j *job) {
		dataset := restdata.Dataset{ID: newID(), Name: name}
		project.Datasets = append(project.Datasets, dataset)
		j.metadata["dataset_id"] = dataset.ID
	}), nil
}

// ImportProject starts importing an exported project archive.
func (p *Platform) ImportProject(req restdata.ImportProject) (restdata.JobSubmitted, error) {
	p.lock()
	defer p.unlock()
	f, err := p.file(req.FileID, ProjectFile)
	if err != nil {
		return restdata.JobSubmitted{}, err
	}
	name := req.ProjectName
	if name == "" {
		name = f.Filename
	}
	create := restdata.ProjectCreate{
		Name: name,
		Pipeline: restdata.Pipeline{
			Tasks: []restdata.Task{{TaskType: "dataset", Title: "Dataset"}},
		},
	}
	return p.submit(ImportProjectJob, nil, func(j *job) {
		project := p.createProject(create)
		j.metadata["project_id"] = project.ID
	}), nil
}

// SummaryRecord counts the jobs of one type in one state.
type SummaryRecord struct {
	JobType string
	State   string
	Count   int
}

// Summary counts jobs by type and by the state they last reported.
// Jobs that have never been polled are counted as "submitted".
func (p *Platform) Summary() []SummaryRecord {
	p.lock()
	defer p.unlock()
	type key struct{ jobType, state string }
	counts := make(map[key]int)
	for _, j := range p.jobs {
		state := "submitted"
		if j.polls > 0 {
			n := j.polls - 1
			if n >= len(j.states) {
				n = len(j.states) - 1
			}
			state = j.states[n]
		}
		counts[key{j.jobType, state}]++
	}
	result := make([]SummaryRecord, 0, len(counts))
	for k, count := range counts {
		result = append(result, SummaryRecord{JobType: k.jobType, State: k.state, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].JobType != result[j].JobType {
			return result[i].JobType < result[j].JobType
		}
		return result[i].State < result[j].State
	})
	return result
}
