// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/diffeo/go-visionclient/restdata"
)

// errUnmarshal is returned if the post contract is violated and a
// handler function is passed the wrong type.
var errUnmarshal = restdata.ErrBadRequest{
	Err: errors.New("Invalid input format"),
}

// context holds all of the information that can be extracted from URL
// parameters.
type context struct {
	Request     *http.Request
	ProjectID   string
	DatasetID   string
	JobID       string
	MediaType   string
	QueryParams url.Values
}

// Context builds a context for a request, checking that any
// organization and workspace in the URL name this platform's.
func (api *restAPI) Context(req *http.Request) (*context, error) {
	vars := mux.Vars(req)
	ctx := &context{
		Request:     req,
		ProjectID:   vars["project_id"],
		DatasetID:   vars["dataset_id"],
		JobID:       vars["job_id"],
		MediaType:   vars["media_type"],
		QueryParams: req.URL.Query(),
	}
	if org, present := vars["organization_id"]; present {
		if err := api.Platform.CheckWorkspace(org, vars["workspace_id"]); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}
