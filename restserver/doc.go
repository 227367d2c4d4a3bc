// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes a fake vision platform (see the memory
// package) as an HTTP REST service.  It speaks the same wire format as
// the real platform, so the restclient package, and everything built
// on it, can be run against it end to end.
//
//     import "github.com/diffeo/go-visionclient/memory"
//     import "github.com/diffeo/go-visionclient/restserver"
//     p := memory.New()
//     router, err := restserver.NewRouter(p, restserver.Config{})
//     go http.ListenAndServe(":8080", router)
//
// Resumable uploads are served by tusd, with upload content kept in
// Config.UploadDir.  A completed upload becomes a platform file whose
// identifier is the upload's identifier, and whose name is the
// "filename" upload metadata.
//
// The URL tree, all under /api/v1:
//
//     /personal_access_tokens/organization
//     /organizations/{organization_id}/workspaces
//     /organizations/{organization_id}/workspaces/{workspace_id}/...
//       datasets/uploads
//       datasets/uploads/resumable[/{upload_id}]
//       projects/uploads/resumable[/{upload_id}]
//       datasets:prepare-for-import?file_id=...
//       projects:import-from-dataset
//       projects:import
//       jobs/{job_id}
//       projects
//       projects/{project_id}
//       projects/{project_id}/datasets:prepare-for-import
//       projects/{project_id}:import-from-dataset
//       projects/{project_id}/datasets/{dataset_id}/media/{media_type}
//       projects/{project_id}/pipelines/active:predict
//
// If the platform has an APIKey, every request must carry it in an
// x-api-key header.
package restserver
