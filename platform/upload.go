// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package platform

import (
	"fmt"
	"net/url"
	"path"
)

// UploadStatus is the state of a resumable upload as the client sees it.
type UploadStatus int

const (
	// UploadInProgress is an upload whose chunks are being sent.
	UploadInProgress UploadStatus = iota

	// UploadPaused is an upload that stopped because of a
	// transport failure; it can be resumed.
	UploadPaused

	// UploadCompleted is an upload whose every byte was
	// acknowledged by the server.
	UploadCompleted

	// UploadCanceled is an upload that was terminated on the
	// server.
	UploadCanceled

	// UploadFailed is an upload the server rejected, or whose
	// server state is inconsistent with the client's.
	UploadFailed
)

// UploadHandle is the client-side record of a resumable upload.  It can
// be saved and handed back to the upload session later to resume.
type UploadHandle struct {
	// ResourceURL is the absolute URL of the upload resource on
	// the server.  It is empty if the upload was never created.
	ResourceURL string `json:"resource_url" yaml:"resource_url"`

	// BytesSent is the number of bytes the server has
	// acknowledged.  It never exceeds TotalSize and never
	// decreases.
	BytesSent int64 `json:"bytes_sent" yaml:"bytes_sent"`

	// TotalSize is the full payload size.
	TotalSize int64 `json:"total_size" yaml:"total_size"`

	// ChunkSize is the maximum number of bytes sent in one
	// request.
	ChunkSize int64 `json:"chunk_size" yaml:"chunk_size"`

	// Status is the current upload status.
	Status UploadStatus `json:"status" yaml:"status"`

	// Filename is the name reported to the server when the
	// upload was created.
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`

	// Metadata holds the Upload-Metadata pairs sent when the
	// upload was created.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// FileID returns the platform file identifier for the upload, which is
// the last path segment of its resource URL.
func (h *UploadHandle) FileID() string {
	if h.ResourceURL == "" {
		return ""
	}
	u, err := url.Parse(h.ResourceURL)
	if err != nil {
		return path.Base(h.ResourceURL)
	}
	return path.Base(u.Path)
}

// Remaining returns the number of bytes not yet acknowledged.
func (h *UploadHandle) Remaining() int64 {
	return h.TotalSize - h.BytesSent
}

// MarshalText returns a string representing an upload status.
func (status UploadStatus) MarshalText() ([]byte, error) {
	switch status {
	case UploadInProgress:
		return []byte("in_progress"), nil
	case UploadPaused:
		return []byte("paused"), nil
	case UploadCompleted:
		return []byte("completed"), nil
	case UploadCanceled:
		return []byte("canceled"), nil
	case UploadFailed:
		return []byte("failed"), nil
	default:
		return nil, fmt.Errorf("invalid status (marshal, %+v)", int(status))
	}
}

// UnmarshalText populates an upload status from a string.
func (status *UploadStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "in_progress":
		*status = UploadInProgress
	case "paused":
		*status = UploadPaused
	case "completed":
		*status = UploadCompleted
	case "canceled":
		*status = UploadCanceled
	case "failed":
		*status = UploadFailed
	default:
		return fmt.Errorf("invalid status (unmarshal, %+v)", string(text))
	}
	return nil
}

// String returns the same name as MarshalText, or a placeholder for
// invalid values.
func (status UploadStatus) String() string {
	text, err := status.MarshalText()
	if err != nil {
		return fmt.Sprintf("UploadStatus(%d)", int(status))
	}
	return string(text)
}
