// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tus/tusd/pkg/filestore"
	tusd "github.com/tus/tusd/pkg/handler"
	"github.com/tus/tusd/pkg/memorylocker"

	"github.com/diffeo/go-visionclient/memory"
	"github.com/diffeo/go-visionclient/restdata"
)

// PostDatasetUpload accepts a dataset archive in a single multipart
// request.
func (api *restAPI) PostDatasetUpload(ctx *context, in interface{}) (interface{}, error) {
	form, err := readForm(ctx.Request)
	if err != nil {
		return nil, err
	}
	id := api.Platform.AddFile(memory.DatasetFile, form.Filename, form.Size)
	api.Config.Logger.WithFields(logrus.Fields{
		"file_id":  id,
		"filename": form.Filename,
		"size":     form.Size,
	}).Info("dataset uploaded")
	return restdata.FileUploaded{FileID: id}, nil
}

// resumableEndpoint is one resumable-protocol upload collection.
type resumableEndpoint struct {
	Route string
	Path  string
	Kind  memory.FileKind
}

var resumableEndpoints = []resumableEndpoint{
	{"dataset_resumable", "/" + restdata.DatasetResumableUploadsURL, memory.DatasetFile},
	{"project_resumable", "/" + restdata.ProjectResumableUploadsURL, memory.ProjectFile},
}

// populateResumable adds the resumable upload collections.  Each gets
// its own tusd handler and file store directory; the handler's base
// path is fixed to this platform's workspace, and requests naming any
// other workspace are rejected before tusd sees them.
func (api *restAPI) populateResumable(ws *mux.Router) error {
	dir := api.Config.UploadDir
	if dir == "" {
		var err error
		if dir, err = ioutil.TempDir("", "visionserver"); err != nil {
			return err
		}
		api.Config.UploadDir = dir
	}
	for _, endpoint := range resumableEndpoints {
		creation := ws.Path(endpoint.Path).Name(endpoint.Route)
		var basePath string
		err := buildURLs(api.Router,
			"organization_id", api.Platform.OrganizationID,
			"workspace_id", api.Platform.WorkspaceID).
			URL(&basePath, endpoint.Route).
			Error
		if err != nil {
			return err
		}
		handler, err := api.newTusHandler(filepath.Join(dir, string(endpoint.Kind)), basePath, endpoint.Kind)
		if err != nil {
			return err
		}
		wrap := func(f http.HandlerFunc) http.Handler {
			return api.checkWorkspace(handler.Middleware(f))
		}
		creation.Methods(http.MethodPost).Handler(wrap(handler.PostFile))
		upload := endpoint.Path + "/{upload_id}"
		ws.Path(upload).Methods(http.MethodHead).Handler(wrap(handler.HeadFile))
		ws.Path(upload).Methods(http.MethodPatch).Handler(wrap(handler.PatchFile))
		ws.Path(upload).Methods(http.MethodDelete).Handler(wrap(handler.DelFile))
	}
	return nil
}

func (api *restAPI) newTusHandler(dir, basePath string, kind memory.FileKind) (*tusd.UnroutedHandler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	store := filestore.New(dir)
	locker := memorylocker.New()
	composer := tusd.NewStoreComposer()
	store.UseIn(composer)
	locker.UseIn(composer)

	logger := api.Config.Logger
	config := tusd.Config{
		StoreComposer: composer,
		BasePath:      basePath,
		Logger:        log.New(logger.WriterLevel(logrus.DebugLevel), "", 0),
	}
	config.PreFinishResponseCallback = func(hook tusd.HookEvent) error {
		filename := hook.Upload.MetaData["filename"]
		api.Platform.RegisterFile(hook.Upload.ID, kind, filename, hook.Upload.Size)
		logger.WithFields(logrus.Fields{
			"file_id":  hook.Upload.ID,
			"kind":     kind,
			"filename": filename,
			"size":     hook.Upload.Size,
		}).Info("resumable upload complete")
		return nil
	}
	return tusd.NewUnroutedHandler(config)
}

func (api *restAPI) checkWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		if err := api.Platform.CheckWorkspace(vars["organization_id"], vars["workspace_id"]); err != nil {
			writeError(resp, err)
			return
		}
		next.ServeHTTP(resp, req)
	})
}
