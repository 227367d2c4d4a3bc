// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-visionclient/memory"
	"github.com/diffeo/go-visionclient/restdata"
)

// APIRoot is the path prefix of every platform resource.
const APIRoot = "/api/v1"

// Config holds the server settings that are not part of the platform
// state.
type Config struct {
	// UploadDir holds the content of resumable uploads.  It is
	// created if it does not exist.
	UploadDir string

	// Logger receives request diagnostics.  If nil, the logrus
	// standard logger is used.
	Logger *logrus.Logger
}

// NewRouter creates a new HTTP handler that serves the platform API
// from a fake platform.  All resources are under APIRoot.  For more
// control over this setup, create a mux.Router and call
// PopulateRouter instead.
func NewRouter(p *memory.Platform, config Config) (http.Handler, error) {
	r := mux.NewRouter()
	if err := PopulateRouter(r, p, config); err != nil {
		return nil, err
	}
	return r, nil
}

// PopulateRouter adds the platform routes to an existing
// github.com/gorilla/mux router object.  Every route requires the
// platform's API key, if it has one, in an x-api-key header.
func PopulateRouter(r *mux.Router, p *memory.Platform, config Config) error {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	api := &restAPI{Platform: p, Router: r, Config: config}
	r.Use(api.checkAPIKey)
	return api.PopulateRouter(r)
}

// restAPI holds the persistent state for the platform REST API.
type restAPI struct {
	Platform *memory.Platform
	Router   *mux.Router
	Config   Config
}

func (api *restAPI) checkAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		if api.Platform.APIKey != "" && req.Header.Get("x-api-key") != api.Platform.APIKey {
			api.Config.Logger.WithField("path", req.URL.Path).Info("rejected API key")
			writeError(resp, restdata.ErrUnauthorized{})
			return
		}
		next.ServeHTTP(resp, req)
	})
}

// Route variables may not contain a colon, so that custom methods
// like "projects/{project_id}:import-from-dataset" match.
const idPattern = "[^/:]+"

// PopulateRouter adds all platform URL paths to a router.
func (api *restAPI) PopulateRouter(r *mux.Router) error {
	root := r.PathPrefix(APIRoot).Subrouter()
	root.Path("/personal_access_tokens/organization").Name("organization").Handler(&resourceHandler{
		Context: api.Context,
		Get:     api.GetOrganization,
	})
	root.Path("/organizations/{organization_id}/workspaces").Name("workspaces").Handler(&resourceHandler{
		Context: api.Context,
		Get:     api.GetWorkspaces,
	})

	ws := root.PathPrefix("/organizations/{organization_id}/workspaces/{workspace_id}").Subrouter()
	ws.Path("/datasets/uploads").Name("dataset_uploads").Handler(&resourceHandler{
		Context: api.Context,
		Post:    api.PostDatasetUpload,
	})
	if err := api.populateResumable(ws); err != nil {
		return err
	}
	ws.Path("/datasets:prepare-for-import").Name("prepare_dataset").Handler(&resourceHandler{
		Context: api.Context,
		Post:    api.PrepareDataset,
	})
	ws.Path("/projects:import-from-dataset").Name("import_dataset_as_project").Handler(&resourceHandler{
		Representation: restdata.ImportDatasetAsProject{},
		Context:        api.Context,
		Post:           api.ImportDatasetAsProject,
	})
	ws.Path("/projects:import").Name("import_project").Handler(&resourceHandler{
		Representation: restdata.ImportProject{},
		Context:        api.Context,
		Post:           api.ImportProject,
	})
	ws.Path("/jobs/{job_id}").Name("job").Handler(&resourceHandler{
		Context: api.Context,
		Get:     api.GetJob,
	})
	ws.Path("/projects").Name("projects").Handler(&resourceHandler{
		Representation: restdata.ProjectCreate{},
		Context:        api.Context,
		Get:            api.GetProjects,
		Post:           api.PostProject,
	})

	project := "/projects/{project_id:" + idPattern + "}"
	ws.Path(project).Name("project").Handler(&resourceHandler{
		Context: api.Context,
		Get:     api.GetProject,
	})
	ws.Path(project + "/datasets:prepare-for-import").Name("prepare_dataset_for_project").Handler(&resourceHandler{
		Representation: restdata.PrepareForProject{},
		Context:        api.Context,
		Post:           api.PrepareDatasetForProject,
	})
	ws.Path(project + ":import-from-dataset").Name("import_dataset_into_project").Handler(&resourceHandler{
		Representation: restdata.ImportDatasetIntoProject{},
		Context:        api.Context,
		Post:           api.ImportDatasetIntoProject,
	})
	ws.Path(project + "/datasets/{dataset_id:" + idPattern + "}/media/{media_type}").Name("media").Handler(&resourceHandler{
		Context: api.Context,
		Post:    api.PostMedia,
	})
	ws.Path(project + "/pipelines/active:predict").Name("predict").Handler(&resourceHandler{
		Context: api.Context,
		Post:    api.Predict,
	})
	return nil
}

// GetOrganization returns the organization owning the API key.
func (api *restAPI) GetOrganization(ctx *context) (interface{}, error) {
	return api.Platform.Organization(), nil
}

// GetWorkspaces lists the workspaces of an organization.
func (api *restAPI) GetWorkspaces(ctx *context) (interface{}, error) {
	return api.Platform.Workspaces(mux.Vars(ctx.Request)["organization_id"])
}
