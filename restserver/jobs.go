// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/diffeo/go-visionclient/restdata"
)

// GetJob returns the status of a job, advancing it one scripted step.
func (api *restAPI) GetJob(ctx *context) (interface{}, error) {
	return api.Platform.Job(ctx.JobID)
}

// PrepareDataset starts a prepare job for the file_id query
// parameter.
func (api *restAPI) PrepareDataset(ctx *context, in interface{}) (interface{}, error) {
	return api.Platform.PrepareDataset(ctx.QueryParams.Get("file_id"))
}

func (api *restAPI) PrepareDatasetForProject(ctx *context, in interface{}) (interface{}, error) {
	req, valid := in.(restdata.PrepareForProject)
	if !valid {
		return nil, errUnmarshal
	}
	return api.Platform.PrepareDatasetForProject(ctx.ProjectID, req)
}

func (api *restAPI) ImportDatasetAsProject(ctx *context, in interface{}) (interface{}, error) {
	req, valid := in.(restdata.ImportDatasetAsProject)
	if !valid {
		return nil, errUnmarshal
	}
	return api.Platform.ImportDatasetAsProject(req)
}

func (api *restAPI) ImportDatasetIntoProject(ctx *context, in interface{}) (interface{}, error) {
	req, valid := in.(restdata.ImportDatasetIntoProject)
	if !valid {
		return nil, errUnmarshal
	}
	return api.Platform.ImportDatasetIntoProject(ctx.ProjectID, req)
}

func (api *restAPI) ImportProject(ctx *context, in interface{}) (interface{}, error) {
	req, valid := in.(restdata.ImportProject)
	if !valid {
		return nil, errUnmarshal
	}
	return api.Platform.ImportProject(req)
}
