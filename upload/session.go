// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package upload implements the client side of the tus 1.0.0
// resumable upload protocol on top of a platform.Transport.
//
// An upload is created with a POST to a creation endpoint, which
// answers 201 Created with the upload's resource URL in its Location
// header.  Content is then sent in sequential PATCH requests, each
// carrying the offset it starts at; the server answers each with its
// new Upload-Offset.  A HEAD reports the server's offset, which is
// where a resumed upload continues from.  A DELETE terminates the
// upload.
//
// Every operation returns an *platform.UploadHandle describing the
// upload as of the end of the operation.  A transport failure part way
// through leaves the handle paused, and Resume picks it up again.
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
)

// DefaultChunkSize is the chunk size used when none is configured.
const DefaultChunkSize = 10 * 1024 * 1024

// Session creates and transfers resumable uploads against a single
// creation endpoint.  It is safe for concurrent use, but refuses to run
// two operations on the same upload at once.
type Session struct {
	// Transport issues the protocol requests.
	Transport platform.Transport

	// Endpoint is the creation endpoint template, for instance
	// restdata.DatasetResumableUploadsURL.
	Endpoint string

	// Logger receives chunk progress and pauses.
	Logger logrus.FieldLogger

	// Progress, if non-nil, is called with a copy of the handle
	// after every acknowledged chunk.
	Progress func(platform.UploadHandle)

	lock sync.Mutex
	busy map[string]bool
}

// New creates a session for a creation endpoint.
func New(transport platform.Transport, endpoint string) *Session {
	return &Session{
		Transport: transport,
		Endpoint:  endpoint,
		Logger:    logrus.StandardLogger(),
	}
}

// acquire marks an upload as busy, failing if it already was.
func (s *Session) acquire(resourceURL string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.busy == nil {
		s.busy = make(map[string]bool)
	}
	if s.busy[resourceURL] {
		return platform.ErrHandleBusy
	}
	s.busy[resourceURL] = true
	return nil
}

func (s *Session) release(resourceURL string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.busy, resourceURL)
}

func protocolHeader() http.Header {
	header := http.Header{}
	header.Set("Tus-Resumable", restdata.TusResumable)
	return header
}

// EncodeMetadata produces an Upload-Metadata header value: comma
// separated "key base64(value)" pairs, in key order.
func EncodeMetadata(metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + " " + base64.StdEncoding.EncodeToString([]byte(metadata[k]))
	}
	return strings.Join(pairs, ",")
}

// Start creates a new upload of totalSize bytes and sends src to it in
// chunks of at most chunkSize bytes.
func (s *Session) Start(ctx context.Context, src io.ReaderAt, totalSize, chunkSize int64) (*platform.UploadHandle, error) {
	return s.StartWithMetadata(ctx, src, totalSize, chunkSize, nil)
}

// StartWithMetadata is Start, additionally sending the given
// Upload-Metadata pairs.  A "filename" entry is recorded in the
// handle's Filename.
//
// If the upload cannot be created the handle is failed and has no
// resource URL.  If a chunk request gets no response the handle is
// paused and the error is a *platform.TransportError; any other chunk
// failure leaves the handle failed.
func (s *Session) StartWithMetadata(ctx context.Context, src io.ReaderAt, totalSize, chunkSize int64, metadata map[string]string) (*platform.UploadHandle, error) {
	if totalSize < 0 {
		return nil, fmt.Errorf("upload: negative size %d", totalSize)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("upload: invalid chunk size %d", chunkSize)
	}

	handle := &platform.UploadHandle{
		TotalSize: totalSize,
		ChunkSize: chunkSize,
		Status:    platform.UploadInProgress,
		Filename:  metadata["filename"],
		Metadata:  metadata,
	}

	header := protocolHeader()
	header.Set("Upload-Length", strconv.FormatInt(totalSize, 10))
	if len(metadata) > 0 {
		header.Set("Upload-Metadata", EncodeMetadata(metadata))
	}
	reply, err := s.Transport.Send(ctx, http.MethodPost, s.Endpoint, nil, header, nil)
	if err == nil && reply.Location == "" {
		err = platform.ErrNoResourceURL
	}
	if err != nil {
		handle.Status = platform.UploadFailed
		s.Logger.WithError(err).WithField("endpoint", s.Endpoint).Error("upload creation failed")
		return handle, err
	}
	handle.ResourceURL = reply.Location
	s.Logger.WithFields(logrus.Fields{
		"upload": handle.ResourceURL,
		"size":   totalSize,
	}).Info("upload created")

	if err = s.acquire(handle.ResourceURL); err != nil {
		return handle, err
	}
	defer s.release(handle.ResourceURL)
	err = s.transfer(ctx, src, handle)
	return handle, err
}

// Resume continues a paused upload from the offset the server reports.
// The handle passed in is not modified; the returned handle reflects
// the outcome.  A completed handle is returned as-is without contacting
// the server, and a canceled one produces platform.ErrUploadCanceled.
//
// If the server's offset is behind the handle's BytesSent, or its
// length differs from the handle's TotalSize, the result is failed with
// platform.ErrOffsetMismatch.
func (s *Session) Resume(ctx context.Context, src io.ReaderAt, handle *platform.UploadHandle) (*platform.UploadHandle, error) {
	if handle.ResourceURL == "" {
		return nil, platform.ErrNoResourceURL
	}
	h := *handle
	switch h.Status {
	case platform.UploadCompleted:
		return &h, nil
	case platform.UploadCanceled:
		return &h, platform.ErrUploadCanceled
	}
	if h.ChunkSize <= 0 {
		h.ChunkSize = DefaultChunkSize
	}

	if err := s.acquire(h.ResourceURL); err != nil {
		return &h, err
	}
	defer s.release(h.ResourceURL)

	offset, length, err := s.head(ctx, h.ResourceURL)
	if err != nil {
		if !platform.IsTransport(err) {
			h.Status = platform.UploadFailed
		}
		return &h, err
	}
	if length >= 0 && length != h.TotalSize {
		h.Status = platform.UploadFailed
		return &h, fmt.Errorf("%w: server length %d, expected %d", platform.ErrOffsetMismatch, length, h.TotalSize)
	}
	if offset < h.BytesSent || offset > h.TotalSize {
		h.Status = platform.UploadFailed
		return &h, fmt.Errorf("%w: server offset %d, sent %d", platform.ErrOffsetMismatch, offset, h.BytesSent)
	}

	s.Logger.WithFields(logrus.Fields{
		"upload": h.ResourceURL,
		"offset": offset,
		"size":   h.TotalSize,
	}).Info("resuming upload")
	h.BytesSent = offset
	h.Status = platform.UploadInProgress
	err = s.transfer(ctx, src, &h)
	return &h, err
}

// Cancel terminates an upload on the server.  It returns true only if
// the server answered 204 No Content, in which case the handle becomes
// canceled.  Otherwise the handle is untouched; canceling an upload that
// is already gone returns false along with the server's 404 error.  A
// completed upload is refused with ErrUploadCompleted without contacting
// the server.
func (s *Session) Cancel(ctx context.Context, handle *platform.UploadHandle) (bool, error) {
	if handle.ResourceURL == "" {
		return false, platform.ErrNoResourceURL
	}
	if handle.Status == platform.UploadCompleted {
		return false, platform.ErrUploadCompleted
	}
	if err := s.acquire(handle.ResourceURL); err != nil {
		return false, err
	}
	defer s.release(handle.ResourceURL)

	code, err := s.Transport.DeleteAt(ctx, handle.ResourceURL, nil, protocolHeader())
	if err != nil {
		return false, err
	}
	if code != http.StatusNoContent {
		return false, nil
	}
	handle.Status = platform.UploadCanceled
	s.Logger.WithField("upload", handle.ResourceURL).Info("upload canceled")
	return true, nil
}

// Status asks the server for an upload's current offset without
// changing anything.
func (s *Session) Status(ctx context.Context, handle *platform.UploadHandle) (int64, error) {
	if handle.ResourceURL == "" {
		return 0, platform.ErrNoResourceURL
	}
	offset, _, err := s.head(ctx, handle.ResourceURL)
	return offset, err
}

// head returns the server's Upload-Offset and Upload-Length, the
// latter -1 if the server did not send one.
func (s *Session) head(ctx context.Context, resourceURL string) (offset, length int64, err error) {
	reply, err := s.Transport.Send(ctx, http.MethodHead, resourceURL, nil, protocolHeader(), nil)
	if err != nil {
		return 0, -1, err
	}
	offset, err = strconv.ParseInt(reply.Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		return 0, -1, fmt.Errorf("%w: bad Upload-Offset %q", platform.ErrOffsetMismatch, reply.Header.Get("Upload-Offset"))
	}
	length = -1
	if value := reply.Header.Get("Upload-Length"); value != "" {
		length, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, -1, fmt.Errorf("%w: bad Upload-Length %q", platform.ErrOffsetMismatch, value)
		}
	}
	return offset, length, nil
}

// transfer sends chunks from handle.BytesSent to the end.  The caller
// holds the handle's busy mark.
func (s *Session) transfer(ctx context.Context, src io.ReaderAt, handle *platform.UploadHandle) error {
	logger := s.Logger.WithField("upload", handle.ResourceURL)
	var buf []byte
	for handle.BytesSent < handle.TotalSize {
		n := handle.ChunkSize
		if remaining := handle.Remaining(); remaining < n {
			n = remaining
		}
		if int64(cap(buf)) < n {
			buf = make([]byte, n)
		}
		chunk := buf[:n]

		read, err := src.ReadAt(chunk, handle.BytesSent)
		if int64(read) < n {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			handle.Status = platform.UploadPaused
			logger.WithError(err).Warn("upload source read failed")
			return fmt.Errorf("upload: reading source at %d: %w", handle.BytesSent, err)
		}

		header := protocolHeader()
		header.Set("Content-Type", restdata.TusContentType)
		header.Set("Upload-Offset", strconv.FormatInt(handle.BytesSent, 10))
		reply, err := s.Transport.Send(ctx, http.MethodPatch, handle.ResourceURL, nil, header, chunk)
		if err != nil {
			if platform.IsTransport(err) {
				handle.Status = platform.UploadPaused
				uploadPauses.Inc()
				logger.WithError(err).WithField("offset", handle.BytesSent).Warn("upload paused")
			} else {
				handle.Status = platform.UploadFailed
				logger.WithError(err).Error("upload failed")
			}
			return err
		}

		expected := handle.BytesSent + n
		offset, err := strconv.ParseInt(reply.Header.Get("Upload-Offset"), 10, 64)
		if err != nil || offset != expected {
			handle.Status = platform.UploadFailed
			return fmt.Errorf("%w: sent through %d, server at %q", platform.ErrOffsetMismatch, expected, reply.Header.Get("Upload-Offset"))
		}
		handle.BytesSent = offset
		observeChunk(n)
		logger.WithFields(logrus.Fields{
			"offset": handle.BytesSent,
			"size":   handle.TotalSize,
		}).Debug("chunk sent")
		if s.Progress != nil {
			s.Progress(*handle)
		}
	}
	handle.Status = platform.UploadCompleted
	logger.Info("upload completed")
	return nil
}
