// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package project_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-visionclient/memory"
	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/project"
	"github.com/diffeo/go-visionclient/restclient"
	"github.com/diffeo/go-visionclient/restdata"
	"github.com/diffeo/go-visionclient/restserver"
)

type fixture struct {
	Platform *memory.Platform
	Client   *project.Client
	Dir      string
}

func newFixture(t *testing.T) *fixture {
	p := memory.New()
	router, err := restserver.NewRouter(p, restserver.Config{UploadDir: t.TempDir(), Logger: logrus.New()})
	require.NoError(t, err)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	client, err := restclient.New(restclient.Config{Host: server.URL, Logger: logrus.New()})
	require.NoError(t, err)
	ws, err := client.Workspace(context.Background())
	require.NoError(t, err)

	c := project.New(ws)
	c.Logger = logrus.New()
	return &fixture{Platform: p, Client: c, Dir: t.TempDir()}
}

func (f *fixture) file(t *testing.T, name string) string {
	path := filepath.Join(f.Dir, name)
	require.NoError(t, os.WriteFile(path, []byte("not really media"), 0644))
	return path
}

func (f *fixture) vehicles(t *testing.T) *restdata.Project {
	p, err := f.Client.Create(context.Background(), "Vehicle detection", project.SingleTaskPipeline("detection", "Detection task", []restdata.Label{
		{Name: "Vehicle", Color: "#ff0000", Group: "default_detection"},
		{Name: "Person", Color: "#00ff00", Group: "default_detection"},
	}))
	require.NoError(t, err)
	return p
}

func TestMediaType(t *testing.T) {
	for path, expected := range map[string]string{
		"a.jpg":          restdata.MediaImages,
		"b.JPEG":         restdata.MediaImages,
		"dir/c.png":      restdata.MediaImages,
		"d.bmp":          restdata.MediaImages,
		"e.tiff":         restdata.MediaImages,
		"f.jfif":         restdata.MediaImages,
		"g.webp":         restdata.MediaImages,
		"h.mp4":          restdata.MediaVideos,
		"i.avi":          restdata.MediaVideos,
		"j.MOV":          restdata.MediaVideos,
		"k.webm":         restdata.MediaVideos,
		"l.mkv":          restdata.MediaVideos,
		"m.m4v":          restdata.MediaVideos,
		"archive.tar.gz": "",
		"noext":          "",
	} {
		mediaType, err := project.MediaType(path)
		if expected == "" {
			assert.True(t, errors.Is(err, project.ErrUnsupportedMedia), path)
		} else if assert.NoError(t, err, path) {
			assert.Equal(t, expected, mediaType, path)
		}
	}
}

func TestCreateListGet(t *testing.T) {
	f := newFixture(t)
	created := f.vehicles(t)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Vehicle detection", created.Name)

	list, err := f.Client.List(context.Background())
	require.NoError(t, err)
	if assert.Len(t, list, 1) {
		assert.Equal(t, created.ID, list[0].ID)
	}

	got, err := f.Client.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	if assert.Len(t, got.Pipeline.Tasks, 2) {
		assert.Equal(t, "dataset", got.Pipeline.Tasks[0].TaskType)
		assert.Equal(t, "detection", got.Pipeline.Tasks[1].TaskType)
	}
	assert.Equal(t, []restdata.Connection{{From: "Dataset", To: "Detection task"}}, got.Pipeline.Connections)

	labels := project.Labels(got)
	assert.Len(t, labels, 2)
	assert.NotEmpty(t, labels["Vehicle"])
	assert.NotEmpty(t, labels["Person"])

	dataset, err := project.DefaultDataset(got)
	assert.NoError(t, err)
	assert.NotEmpty(t, dataset)
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.Client.Get(context.Background(), "nope")
	var apiErr *platform.APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	}
}

func TestCreateInvalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.Client.Create(context.Background(), "", project.SingleTaskPipeline("detection", "Detection", nil))
	var apiErr *platform.APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	}
}

func TestLabelIDs(t *testing.T) {
	p := &restdata.Project{
		ID: "p1",
		Pipeline: restdata.Pipeline{Tasks: []restdata.Task{
			{Labels: []restdata.Label{{ID: "1", Name: "Q"}, {ID: "2", Name: "Clubs"}}},
		}},
	}
	ids, err := project.LabelIDs(p, []string{"Clubs", "Q"})
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"2", "1"}, ids)
	}
	_, err = project.LabelIDs(p, []string{"Hearts"})
	assert.Error(t, err)
}

func TestNoDataset(t *testing.T) {
	_, err := project.DefaultDataset(&restdata.Project{ID: "p1"})
	assert.Equal(t, project.ErrNoDataset, err)
}

func TestUploadMedia(t *testing.T) {
	f := newFixture(t)
	p := f.vehicles(t)
	dataset, err := project.DefaultDataset(p)
	require.NoError(t, err)
	labels := project.Labels(p)

	var sent int64
	image, err := f.Client.UploadMedia(context.Background(), project.MediaUpload{
		ProjectID: p.ID,
		DatasetID: dataset,
		Path:      f.file(t, "card.jpeg"),
		LabelIDs:  []string{labels["Vehicle"]},
		Progress:  func(s, total int64) { sent = s },
	})
	require.NoError(t, err)
	assert.Equal(t, "image", image.Type)
	assert.Equal(t, "card.jpeg", image.Name)
	assert.Equal(t, int64(len("not really media")), sent)

	video, err := f.Client.UploadMedia(context.Background(), project.MediaUpload{
		ProjectID: p.ID,
		DatasetID: dataset,
		Path:      f.file(t, "video.mp4"),
	})
	require.NoError(t, err)
	assert.Equal(t, "video", video.Type)

	media := f.Platform.Media(dataset)
	if assert.Len(t, media, 2) {
		assert.Equal(t, image.ID, media[0].ID)
		assert.Equal(t, video.ID, media[1].ID)
	}
}

func TestUploadMediaUnknownLabel(t *testing.T) {
	f := newFixture(t)
	p := f.vehicles(t)
	dataset, err := project.DefaultDataset(p)
	require.NoError(t, err)

	_, err = f.Client.UploadMedia(context.Background(), project.MediaUpload{
		ProjectID: p.ID,
		DatasetID: dataset,
		Path:      f.file(t, "card.jpg"),
		LabelIDs:  []string{"not-a-label"},
	})
	var apiErr *platform.APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	}
	assert.Empty(t, f.Platform.Media(dataset))
}

func TestUploadMediaFiles(t *testing.T) {
	f := newFixture(t)
	p := f.vehicles(t)
	dataset, err := project.DefaultDataset(p)
	require.NoError(t, err)

	paths := []string{
		f.file(t, "1.jpg"),
		f.file(t, "2.png"),
		f.file(t, "notes.txt"),
		f.file(t, "3.mkv"),
		f.file(t, "4.webp"),
	}
	results := f.Client.UploadMediaFiles(context.Background(), project.MediaUpload{
		ProjectID: p.ID,
		DatasetID: dataset,
	}, paths, 2)
	require.Len(t, results, 5)
	for i, result := range results {
		assert.Equal(t, paths[i], result.Path)
		if i == 2 {
			assert.True(t, errors.Is(result.Err, project.ErrUnsupportedMedia))
			assert.Nil(t, result.Media)
			continue
		}
		if assert.NoError(t, result.Err, result.Path) {
			assert.Equal(t, filepath.Base(paths[i]), result.Media.Name)
		}
	}
	assert.Len(t, f.Platform.Media(dataset), 4)
}

func TestPredict(t *testing.T) {
	f := newFixture(t)
	p := f.vehicles(t)

	prediction, err := f.Client.Predict(context.Background(), p.ID, f.file(t, "card.jpeg"))
	require.NoError(t, err)
	assert.Equal(t, 1, prediction.Count())
	assert.Equal(t, []project.PredictedLabel{{
		ID:          project.Labels(p)["Vehicle"],
		Name:        "Vehicle",
		Probability: 0.9,
		Shape:       "RECTANGLE",
	}}, prediction.Labels())
	assert.Equal(t, int64(1), prediction.Get("predictions.0.shape.width").Int())
	assert.True(t, prediction.Get("created").Exists())
}

func TestPredictionLabels(t *testing.T) {
	prediction := &project.Prediction{Raw: []byte(`{
		"predictions": [
			{"labels": [{"id": "1", "name": "cat", "probability": 0.75}],
			 "shape": {"type": "RECTANGLE", "x": 1, "y": 2, "width": 3, "height": 4}},
			{"labels": [{"id": "2", "name": "dog", "probability": 0.5},
			            {"id": "3", "name": "pet", "probability": 0.25}],
			 "shape": {"type": "ELLIPSE"}}
		]
	}`)}
	assert.Equal(t, 2, prediction.Count())
	assert.Equal(t, []project.PredictedLabel{
		{ID: "1", Name: "cat", Probability: 0.75, Shape: "RECTANGLE"},
		{ID: "2", Name: "dog", Probability: 0.5, Shape: "ELLIPSE"},
		{ID: "3", Name: "pet", Probability: 0.25, Shape: "ELLIPSE"},
	}, prediction.Labels())

	empty := &project.Prediction{Raw: []byte(`{"predictions": []}`)}
	assert.Equal(t, 0, empty.Count())
	assert.Empty(t, empty.Labels())
}
