// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"

	"github.com/diffeo/go-visionclient/restdata"
)

type Suite struct {
	suite.Suite
	Clock    *clock.Mock
	Platform *Platform
}

func (s *Suite) SetupTest() {
	s.Clock = clock.NewMock()
	s.Platform = NewWithClock(s.Clock)
}

func TestPlatform(t *testing.T) {
	suite.Run(t, &Suite{})
}

// finish polls a job until it reports finished.
func (s *Suite) finish(jobID string) restdata.JobStatus {
	for i := 0; i < 10; i++ {
		status, err := s.Platform.Job(jobID)
		s.Require().NoError(err)
		if status.State == "finished" {
			return status
		}
	}
	s.FailNow("job never finished", jobID)
	return restdata.JobStatus{}
}

func (s *Suite) detectionProject() restdata.Project {
	project, err := s.Platform.CreateProject(restdata.ProjectCreate{
		Name: "Vehicles",
		Pipeline: restdata.Pipeline{
			Tasks: []restdata.Task{
				{TaskType: "dataset", Title: "Dataset"},
				{TaskType: "detection", Title: "Detection Task", Labels: []restdata.Label{
					{Name: "Car"}, {Name: "Truck"},
				}},
			},
			Connections: []restdata.Connection{{From: "Dataset", To: "Detection Task"}},
		},
	})
	s.Require().NoError(err)
	return project
}

func (s *Suite) TestWorkspaces() {
	list, err := s.Platform.Workspaces(s.Platform.OrganizationID)
	if s.NoError(err) && s.Len(list.Workspaces, 1) {
		s.Equal(s.Platform.WorkspaceID, list.Workspaces[0].ID)
	}
	_, err = s.Platform.Workspaces("other")
	s.IsType(restdata.ErrNotFound{}, err)

	s.NoError(s.Platform.CheckWorkspace(s.Platform.OrganizationID, s.Platform.WorkspaceID))
	s.Error(s.Platform.CheckWorkspace(s.Platform.OrganizationID, "other"))
}

func (s *Suite) TestJobScript() {
	s.Platform.SetJobScript(PrepareNewProjectJob, "pending", "running", "running", "finished")
	fileID := s.Platform.AddFile(DatasetFile, "data.zip", 100)
	submitted, err := s.Platform.PrepareDataset(fileID)
	s.Require().NoError(err)

	var states []string
	for i := 0; i < 6; i++ {
		status, err := s.Platform.Job(submitted.JobID)
		s.Require().NoError(err)
		states = append(states, status.State)
		s.Equal(PrepareNewProjectJob, status.Type)
		if s.Len(status.Steps, 1) && status.State == "pending" {
			s.Equal(-1.0, status.Steps[0].Progress)
		}
	}
	s.Equal([]string{"pending", "running", "running", "finished", "finished", "finished"}, states)
	s.Equal(6, s.Platform.JobPolls(submitted.JobID))
}

func (s *Suite) TestSummary() {
	s.Empty(s.Platform.Summary())

	first, err := s.Platform.PrepareDataset(s.Platform.AddFile(DatasetFile, "a.zip", 1))
	s.Require().NoError(err)
	_, err = s.Platform.PrepareDataset(s.Platform.AddFile(DatasetFile, "b.zip", 1))
	s.Require().NoError(err)
	s.Equal([]SummaryRecord{
		{JobType: PrepareNewProjectJob, State: "submitted", Count: 2},
	}, s.Platform.Summary())

	s.finish(first.JobID)
	s.Equal([]SummaryRecord{
		{JobType: PrepareNewProjectJob, State: "finished", Count: 1},
		{JobType: PrepareNewProjectJob, State: "submitted", Count: 1},
	}, s.Platform.Summary())
}

func (s *Suite) TestNoSuchJob() {
	_, err := s.Platform.Job("nope")
	s.IsType(restdata.ErrNotFound{}, err)
}

func (s *Suite) TestImportRequiresPrepare() {
	fileID := s.Platform.AddFile(DatasetFile, "data.zip", 100)
	req := restdata.ImportDatasetAsProject{FileID: fileID, ProjectName: "P", TaskType: "detection"}
	_, err := s.Platform.ImportDatasetAsProject(req)
	s.IsType(restdata.ErrBadRequest{}, err)

	prepare, err := s.Platform.PrepareDataset(fileID)
	s.Require().NoError(err)
	s.finish(prepare.JobID)

	submitted, err := s.Platform.ImportDatasetAsProject(req)
	s.Require().NoError(err)
	status := s.finish(submitted.JobID)
	projectID, _ := status.Metadata["project_id"].(string)
	s.Require().NotEmpty(projectID)

	project, err := s.Platform.Project(projectID)
	if s.NoError(err) {
		s.Equal("P", project.Name)
		s.Len(project.Datasets, 1)
	}
}

func (s *Suite) TestFailedPrepare() {
	s.Platform.SetJobScript(PrepareExistingProjectJob, "running", "failed")
	project := s.detectionProject()
	fileID := s.Platform.AddFile(DatasetFile, "more.zip", 100)

	prepare, err := s.Platform.PrepareDatasetForProject(project.ID, restdata.PrepareForProject{FileID: fileID})
	s.Require().NoError(err)
	for i := 0; i < 3; i++ {
		_, err = s.Platform.Job(prepare.JobID)
		s.NoError(err)
	}
	_, err = s.Platform.ImportDatasetIntoProject(project.ID, restdata.ImportDatasetIntoProject{FileID: fileID, DatasetName: "more"})
	s.IsType(restdata.ErrBadRequest{}, err)
}

func (s *Suite) TestImportIntoProject() {
	project := s.detectionProject()
	fileID := s.Platform.AddFile(DatasetFile, "more.zip", 100)

	prepare, err := s.Platform.PrepareDatasetForProject(project.ID, restdata.PrepareForProject{FileID: fileID})
	s.Require().NoError(err)
	s.finish(prepare.JobID)

	_, err = s.Platform.ImportDatasetIntoProject(project.ID, restdata.ImportDatasetIntoProject{
		FileID:    fileID,
		LabelsMap: map[string]string{"src": "not-a-label"},
	})
	s.IsType(restdata.ErrBadRequest{}, err)

	car := project.Pipeline.Tasks[1].Labels[0].ID
	submitted, err := s.Platform.ImportDatasetIntoProject(project.ID, restdata.ImportDatasetIntoProject{
		FileID:      fileID,
		DatasetName: "more",
		LabelsMap:   map[string]string{"src": car},
	})
	s.Require().NoError(err)
	s.finish(submitted.JobID)

	updated, err := s.Platform.Project(project.ID)
	if s.NoError(err) && s.Len(updated.Datasets, 2) {
		s.Equal("more", updated.Datasets[1].Name)
	}
}

func (s *Suite) TestImportProject() {
	_, err := s.Platform.ImportProject(restdata.ImportProject{FileID: "missing"})
	s.IsType(restdata.ErrNotFound{}, err)

	datasetID := s.Platform.AddFile(DatasetFile, "data.zip", 1)
	_, err = s.Platform.ImportProject(restdata.ImportProject{FileID: datasetID})
	s.IsType(restdata.ErrNotFound{}, err)

	fileID := s.Platform.AddFile(ProjectFile, "cards.zip", 1)
	submitted, err := s.Platform.ImportProject(restdata.ImportProject{FileID: fileID})
	s.Require().NoError(err)
	status := s.finish(submitted.JobID)
	project, err := s.Platform.Project(status.Metadata["project_id"].(string))
	if s.NoError(err) {
		s.Equal("cards.zip", project.Name)
	}
}

func (s *Suite) TestCreateProject() {
	project := s.detectionProject()
	s.NotEmpty(project.ID)
	for _, task := range project.Pipeline.Tasks {
		s.NotEmpty(task.ID)
		for _, label := range task.Labels {
			s.NotEmpty(label.ID)
		}
	}

	// Mutating the copy does not affect the stored project
	project.Pipeline.Tasks[1].Labels[0].Name = "changed"
	stored, err := s.Platform.Project(project.ID)
	if s.NoError(err) {
		s.Equal("Car", stored.Pipeline.Tasks[1].Labels[0].Name)
	}

	list := s.Platform.Projects()
	if s.Len(list.Projects, 1) {
		s.Equal(project.ID, list.Projects[0].ID)
	}

	_, err = s.Platform.CreateProject(restdata.ProjectCreate{Name: "x"})
	s.IsType(restdata.ErrBadRequest{}, err)
	_, err = s.Platform.CreateProject(restdata.ProjectCreate{
		Name: "x",
		Pipeline: restdata.Pipeline{
			Tasks:       []restdata.Task{{TaskType: "dataset", Title: "Dataset"}},
			Connections: []restdata.Connection{{From: "Dataset", To: "Nowhere"}},
		},
	})
	s.IsType(restdata.ErrBadRequest{}, err)
}

func (s *Suite) TestUploadMedia() {
	project := s.detectionProject()
	datasetID := project.Datasets[0].ID
	car := project.Pipeline.Tasks[1].Labels[0].ID

	media, err := s.Platform.UploadMedia(project.ID, datasetID, restdata.MediaImages, "a.jpg", restdata.UploadInfo{LabelIDs: []string{car}})
	if s.NoError(err) {
		s.Equal("image", media.Type)
	}
	_, err = s.Platform.UploadMedia(project.ID, datasetID, restdata.MediaVideos, "b.mp4", restdata.UploadInfo{})
	s.NoError(err)
	_, err = s.Platform.UploadMedia(project.ID, datasetID, "audio", "c.wav", restdata.UploadInfo{})
	s.IsType(restdata.ErrNotFound{}, err)
	_, err = s.Platform.UploadMedia(project.ID, "other", restdata.MediaImages, "d.jpg", restdata.UploadInfo{})
	s.IsType(restdata.ErrNotFound{}, err)
	_, err = s.Platform.UploadMedia(project.ID, datasetID, restdata.MediaImages, "e.jpg", restdata.UploadInfo{LabelIDs: []string{"bogus"}})
	s.IsType(restdata.ErrBadRequest{}, err)

	all := s.Platform.Media(datasetID)
	if s.Len(all, 2) {
		s.Equal("a.jpg", all[0].Name)
		s.Equal("b.mp4", all[1].Name)
	}
}

func (s *Suite) TestPredict() {
	project := s.detectionProject()
	s.Clock.Add(90 * time.Minute)
	doc, err := s.Platform.Predict(project.ID, 10)
	s.Require().NoError(err)
	s.Equal("1970-01-01T01:30:00Z", doc["created"])
	predictions := doc["predictions"].([]interface{})
	s.Len(predictions, 1)

	_, err = s.Platform.Predict(project.ID, 0)
	s.IsType(restdata.ErrBadRequest{}, err)
	_, err = s.Platform.Predict("nope", 10)
	s.IsType(restdata.ErrNotFound{}, err)
}
