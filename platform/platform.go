// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package platform defines the shared data model and abstract transport
// used by the vision platform client.
//
// The remote platform is addressed as a tree of REST resources rooted at
// a workspace.  Components in this module (the upload session, the job
// poller, the workflow orchestrator) do not talk HTTP directly; they go
// through a Transport, which in production is a restclient.Workspace
// and in tests is frequently something much smaller.
//
// Most objects here are plain values.  An UploadHandle or a Job is a
// snapshot of some server-side state at the time it was last observed;
// calling the owning component again produces a new snapshot.
package platform

import (
	"context"
	"io"
	"net/http"
)

// Vars holds URI template variables.  String values are substituted
// as-is (and percent-encoded as RFC 6570 requires); other values are
// formatted with fmt.
type Vars map[string]interface{}

// Transport is the interface through which every component issues
// requests.  Each path argument is an RFC 6570 URI template, expanded
// with vars and then resolved relative to the transport's base URL.
// Absolute URLs are accepted and pass through unchanged.
//
// Implementations must be safe for concurrent use by independent
// callers.
//
// A request that never produced a response fails with a
// *TransportError.  A response with a non-2xx status fails with an
// *APIError.
type Transport interface {
	// GetFrom retrieves a resource and decodes its JSON
	// representation into out, which must be of pointer type.
	GetFrom(ctx context.Context, template string, vars Vars, out interface{}) error

	// PostTo submits in to a resource.  in may be nil (no body), a
	// *Form (multipart/form-data), a Raw body, or any other value,
	// which is encoded as JSON.  If out is non-nil the response is
	// decoded into it.
	PostTo(ctx context.Context, template string, vars Vars, in, out interface{}) error

	// DeleteAt deletes a resource, sending header along with the
	// request, and returns the HTTP status code of the response.
	// A non-2xx status is returned along with an *APIError.
	DeleteAt(ctx context.Context, template string, vars Vars, header http.Header) (int, error)

	// Send issues an arbitrary request with a fixed byte body and
	// returns the response status and headers.  The resumable
	// upload protocol is built on this.
	Send(ctx context.Context, method, template string, vars Vars, header http.Header, body []byte) (*Reply, error)
}

// Reply is the result of Transport.Send.
type Reply struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Location is the Location header of the response resolved
	// against the request URL, or empty if there was none.
	Location string
}

// Form is a multipart/form-data request body.
type Form struct {
	// Fields are plain form fields, such as an "upload_info" JSON
	// document.
	Fields map[string]string

	// Files are file parts.  Each file's Content is read exactly
	// once while the request is being sent.
	Files []FormFile

	// Progress, if non-nil, is called as file content is
	// written, with the number of content bytes sent so far and
	// the total declared in the files' Size fields.
	Progress func(sent, total int64)
}

// FormFile is a single file part of a Form.
type FormFile struct {
	// Field is the form field name, typically "file".
	Field string

	// Filename is reported to the server as the part's file name.
	Filename string

	// Content is the file content.
	Content io.Reader

	// Size is the content length if known, used only for
	// progress reporting.
	Size int64
}

// Raw is a request body sent verbatim with its own content type.
type Raw struct {
	ContentType string
	Content     io.Reader
}
