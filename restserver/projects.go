// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/gorilla/mux"

	"github.com/diffeo/go-visionclient/restdata"
)

func (api *restAPI) GetProjects(ctx *context) (interface{}, error) {
	return api.Platform.Projects(), nil
}

// PostProject creates a project, returning it with its Location.
func (api *restAPI) PostProject(ctx *context, in interface{}) (interface{}, error) {
	req, valid := in.(restdata.ProjectCreate)
	if !valid {
		return nil, errUnmarshal
	}
	project, err := api.Platform.CreateProject(req)
	if err != nil {
		return nil, err
	}
	vars := mux.Vars(ctx.Request)
	resp := responseCreated{Body: project}
	err = buildURLs(api.Router,
		"organization_id", vars["organization_id"],
		"workspace_id", vars["workspace_id"],
		"project_id", project.ID).
		URL(&resp.Location, "project").
		Error
	return resp, err
}

func (api *restAPI) GetProject(ctx *context) (interface{}, error) {
	return api.Platform.Project(ctx.ProjectID)
}

// PostMedia accepts an image or video, with an optional "upload_info"
// field naming labels for the whole media item.
func (api *restAPI) PostMedia(ctx *context, in interface{}) (interface{}, error) {
	form, err := readForm(ctx.Request)
	if err != nil {
		return nil, err
	}
	var info restdata.UploadInfo
	if field := form.Fields["upload_info"]; field != "" {
		if err = restdata.DecodeBytes([]byte(field), &info); err != nil {
			return nil, restdata.ErrBadRequest{Err: err}
		}
	}
	return api.Platform.UploadMedia(ctx.ProjectID, ctx.DatasetID, ctx.MediaType, form.Filename, info)
}

// Predict runs the project's active pipeline on an uploaded image.
func (api *restAPI) Predict(ctx *context, in interface{}) (interface{}, error) {
	form, err := readForm(ctx.Request)
	if err != nil {
		return nil, err
	}
	return api.Platform.Predict(ctx.ProjectID, form.Size)
}
