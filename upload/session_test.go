// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package upload_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/platform/platformtest"
	"github.com/diffeo/go-visionclient/restdata"
	"github.com/diffeo/go-visionclient/upload"
)

const mb = 1 << 20

// tusServer is a minimal in-process tus server behind a
// platformtest.Transport.
type tusServer struct {
	lock    sync.Mutex
	uploads map[string]*tusUpload
	next    int

	// patches records the length of every PATCH body received.
	patches []int

	// dropAt, if non-zero, makes the dropAt'th PATCH fail with a
	// transport error.  If applyDropped is set the chunk is
	// stored first, as though only the response was lost.
	dropAt       int
	applyDropped bool

	// rejectCreate makes creation fail with a 413.
	rejectCreate bool
}

type tusUpload struct {
	length   int64
	data     []byte
	metadata string
}

func newTusServer() *tusServer {
	return &tusServer{uploads: make(map[string]*tusUpload)}
}

func (s *tusServer) Handle(call platformtest.Call) (platformtest.Response, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if call.Header.Get("Tus-Resumable") != restdata.TusResumable {
		return platformtest.Response{Status: http.StatusPreconditionFailed}, nil
	}
	switch call.Method {
	case http.MethodPost:
		if s.rejectCreate {
			return platformtest.Response{Status: http.StatusRequestEntityTooLarge}, nil
		}
		length, err := strconv.ParseInt(call.Header.Get("Upload-Length"), 10, 64)
		if err != nil {
			return platformtest.Response{Status: http.StatusBadRequest}, nil
		}
		s.next++
		location := fmt.Sprintf("https://platform.test/uploads/file-%d", s.next)
		s.uploads[location] = &tusUpload{length: length, metadata: call.Header.Get("Upload-Metadata")}
		return platformtest.Response{Status: http.StatusCreated, Location: location}, nil

	case http.MethodHead:
		up := s.uploads[call.Template]
		if up == nil {
			return platformtest.Response{Status: http.StatusNotFound}, nil
		}
		header := http.Header{}
		header.Set("Upload-Offset", strconv.Itoa(len(up.data)))
		header.Set("Upload-Length", strconv.FormatInt(up.length, 10))
		return platformtest.Response{Status: http.StatusOK, Header: header}, nil

	case http.MethodPatch:
		up := s.uploads[call.Template]
		if up == nil {
			return platformtest.Response{Status: http.StatusNotFound}, nil
		}
		if call.Header.Get("Content-Type") != restdata.TusContentType {
			return platformtest.Response{Status: http.StatusUnsupportedMediaType}, nil
		}
		offset, _ := strconv.Atoi(call.Header.Get("Upload-Offset"))
		if offset != len(up.data) {
			return platformtest.Response{Status: http.StatusConflict}, nil
		}
		if int64(len(up.data)+len(call.Body)) > up.length {
			return platformtest.Response{Status: http.StatusRequestEntityTooLarge}, nil
		}
		s.patches = append(s.patches, len(call.Body))
		if s.dropAt == len(s.patches) {
			if s.applyDropped {
				up.data = append(up.data, call.Body...)
			}
			return platformtest.Response{}, &platform.TransportError{
				Method: call.Method,
				URL:    call.Template,
				Err:    errors.New("connection reset by peer"),
			}
		}
		up.data = append(up.data, call.Body...)
		header := http.Header{}
		header.Set("Upload-Offset", strconv.Itoa(len(up.data)))
		return platformtest.Response{Status: http.StatusNoContent, Header: header}, nil

	case http.MethodDelete:
		if s.uploads[call.Template] == nil {
			return platformtest.Response{Status: http.StatusNotFound}, nil
		}
		delete(s.uploads, call.Template)
		return platformtest.Response{Status: http.StatusNoContent}, nil
	}
	return platformtest.Response{Status: http.StatusMethodNotAllowed}, nil
}

func (s *tusServer) Data(location string) []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	if up := s.uploads[location]; up != nil {
		return up.data
	}
	return nil
}

func (s *tusServer) Patches() []int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]int(nil), s.patches...)
}

func newSession(server *tusServer) (*upload.Session, *platformtest.Transport) {
	transport := platformtest.New(server.Handle)
	session := upload.New(transport, restdata.DatasetResumableUploadsURL)
	session.Logger = logrus.New()
	return session, transport
}

func payload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// Test25MBIn10MBChunks uploads 25MB in 10MB chunks, which takes
// exactly three chunks.
func Test25MBIn10MBChunks(t *testing.T) {
	server := newTusServer()
	session, transport := newSession(server)
	data := payload(25 * mb)

	handle, err := session.Start(context.Background(), bytes.NewReader(data), int64(len(data)), 10*mb)
	require.NoError(t, err)
	assert.Equal(t, platform.UploadCompleted, handle.Status)
	assert.Equal(t, int64(25*mb), handle.BytesSent)
	assert.Equal(t, []int{10 * mb, 10 * mb, 5 * mb}, server.Patches())
	assert.Equal(t, data, server.Data(handle.ResourceURL))
	assert.Equal(t, "file-1", handle.FileID())
	assert.Equal(t, 1, transport.Count(http.MethodPost, restdata.DatasetResumableUploadsURL))
}

// TestChunkCount checks that a size S in chunks of C takes ceil(S/C)
// chunks, none of them empty.
func TestChunkCount(t *testing.T) {
	for _, tc := range []struct {
		size, chunk int
	}{
		{1, 1},
		{1, 10},
		{10, 10},
		{11, 10},
		{99, 10},
		{100, 10},
		{1000, 7},
	} {
		t.Run(fmt.Sprintf("%d/%d", tc.size, tc.chunk), func(t *testing.T) {
			server := newTusServer()
			session, _ := newSession(server)
			data := payload(tc.size)
			handle, err := session.Start(context.Background(), bytes.NewReader(data), int64(tc.size), int64(tc.chunk))
			require.NoError(t, err)
			assert.Equal(t, platform.UploadCompleted, handle.Status)

			patches := server.Patches()
			assert.Len(t, patches, (tc.size+tc.chunk-1)/tc.chunk)
			total := 0
			for _, n := range patches {
				assert.True(t, n > 0 && n <= tc.chunk, "chunk of %d bytes", n)
				total += n
			}
			assert.Equal(t, tc.size, total)
		})
	}
}

func TestEmptyUpload(t *testing.T) {
	server := newTusServer()
	session, transport := newSession(server)
	handle, err := session.Start(context.Background(), bytes.NewReader(nil), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, platform.UploadCompleted, handle.Status)
	assert.Equal(t, int64(0), handle.BytesSent)
	assert.NotEmpty(t, handle.ResourceURL)
	assert.Empty(t, server.Patches())
	assert.Equal(t, []string{"POST " + restdata.DatasetResumableUploadsURL}, transport.Requests())
}

func TestInvalidArguments(t *testing.T) {
	session, transport := newSession(newTusServer())
	_, err := session.Start(context.Background(), bytes.NewReader(nil), 10, 0)
	assert.Error(t, err)
	_, err = session.Start(context.Background(), bytes.NewReader(nil), -1, 10)
	assert.Error(t, err)
	assert.Empty(t, transport.Calls())
}

func TestMetadata(t *testing.T) {
	assert.Equal(t, "", upload.EncodeMetadata(nil))
	assert.Equal(t, "filename ZGF0YS56aXA=,type ZGF0YXNldA==",
		upload.EncodeMetadata(map[string]string{"type": "dataset", "filename": "data.zip"}))

	server := newTusServer()
	session, transport := newSession(server)
	handle, err := session.StartWithMetadata(context.Background(), bytes.NewReader([]byte("x")), 1, 1,
		map[string]string{"filename": "data.zip"})
	require.NoError(t, err)
	assert.Equal(t, "data.zip", handle.Filename)
	calls := transport.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "filename ZGF0YS56aXA=", calls[0].Header.Get("Upload-Metadata"))
}

func TestCreationFailure(t *testing.T) {
	server := newTusServer()
	server.rejectCreate = true
	session, _ := newSession(server)
	handle, err := session.Start(context.Background(), bytes.NewReader(payload(10)), 10, 5)
	var apiErr *platform.APIError
	assert.True(t, errors.As(err, &apiErr))
	if assert.NotNil(t, handle) {
		assert.Equal(t, platform.UploadFailed, handle.Status)
		assert.Equal(t, "", handle.ResourceURL)
	}
}

// TestPauseAndResume breaks the connection on the second chunk, then
// resumes without re-sending acknowledged bytes.
func TestPauseAndResume(t *testing.T) {
	server := newTusServer()
	server.dropAt = 2
	session, transport := newSession(server)
	data := payload(35)
	ctx := context.Background()

	handle, err := session.Start(ctx, bytes.NewReader(data), 35, 10)
	assert.True(t, platform.IsTransport(err))
	require.NotNil(t, handle)
	assert.Equal(t, platform.UploadPaused, handle.Status)
	assert.Equal(t, int64(10), handle.BytesSent)
	assert.NotEmpty(t, handle.ResourceURL)

	resumed, err := session.Resume(ctx, bytes.NewReader(data), handle)
	require.NoError(t, err)
	assert.Equal(t, platform.UploadCompleted, resumed.Status)
	assert.Equal(t, int64(35), resumed.BytesSent)
	assert.Equal(t, handle.ResourceURL, resumed.ResourceURL)
	assert.Equal(t, data, server.Data(resumed.ResourceURL))

	// The old handle is a snapshot and did not change
	assert.Equal(t, platform.UploadPaused, handle.Status)

	// The dropped chunk is the only one sent twice
	assert.Equal(t, []int{10, 10, 10, 10, 5}, server.Patches())
	assert.Equal(t, 1, transport.Count(http.MethodHead, handle.ResourceURL))
}

// TestResumeTrustsServer loses the response to a chunk the server did
// store, so the server is ahead of the handle on resume.
func TestResumeTrustsServer(t *testing.T) {
	server := newTusServer()
	server.dropAt = 2
	server.applyDropped = true
	session, _ := newSession(server)
	data := payload(35)
	ctx := context.Background()

	handle, err := session.Start(ctx, bytes.NewReader(data), 35, 10)
	assert.True(t, platform.IsTransport(err))
	assert.Equal(t, int64(10), handle.BytesSent)

	resumed, err := session.Resume(ctx, bytes.NewReader(data), handle)
	require.NoError(t, err)
	assert.Equal(t, platform.UploadCompleted, resumed.Status)
	assert.Equal(t, data, server.Data(resumed.ResourceURL))
	assert.Equal(t, []int{10, 10, 10, 5}, server.Patches())
}

func TestResumeServerBehind(t *testing.T) {
	server := newTusServer()
	server.dropAt = 2
	session, _ := newSession(server)
	data := payload(35)
	ctx := context.Background()

	handle, _ := session.Start(ctx, bytes.NewReader(data), 35, 10)
	handle.BytesSent = 20
	resumed, err := session.Resume(ctx, bytes.NewReader(data), handle)
	assert.True(t, errors.Is(err, platform.ErrOffsetMismatch))
	assert.Equal(t, platform.UploadFailed, resumed.Status)
	assert.Equal(t, int64(20), resumed.BytesSent)
}

func TestResumeLengthMismatch(t *testing.T) {
	server := newTusServer()
	server.dropAt = 1
	session, _ := newSession(server)
	ctx := context.Background()

	handle, _ := session.Start(ctx, bytes.NewReader(payload(20)), 20, 10)
	handle.TotalSize = 30
	resumed, err := session.Resume(ctx, bytes.NewReader(payload(30)), handle)
	assert.True(t, errors.Is(err, platform.ErrOffsetMismatch))
	assert.Equal(t, platform.UploadFailed, resumed.Status)
}

func TestResumeCompletedAndCanceled(t *testing.T) {
	server := newTusServer()
	session, transport := newSession(server)
	ctx := context.Background()

	done := &platform.UploadHandle{ResourceURL: "https://platform.test/uploads/x", Status: platform.UploadCompleted}
	h, err := session.Resume(ctx, bytes.NewReader(nil), done)
	assert.NoError(t, err)
	assert.Equal(t, platform.UploadCompleted, h.Status)

	canceled := &platform.UploadHandle{ResourceURL: "https://platform.test/uploads/x", Status: platform.UploadCanceled}
	_, err = session.Resume(ctx, bytes.NewReader(nil), canceled)
	assert.Equal(t, platform.ErrUploadCanceled, err)

	_, err = session.Resume(ctx, bytes.NewReader(nil), &platform.UploadHandle{})
	assert.Equal(t, platform.ErrNoResourceURL, err)

	assert.Empty(t, transport.Calls())
}

// TestResumeAlreadyComplete resumes a handle that is behind a server
// which already has every byte.
func TestResumeAlreadyComplete(t *testing.T) {
	server := newTusServer()
	session, _ := newSession(server)
	ctx := context.Background()

	handle, err := session.Start(ctx, bytes.NewReader(payload(5)), 5, 10)
	require.NoError(t, err)
	assert.Equal(t, platform.UploadCompleted, handle.Status)

	stale := *handle
	stale.Status = platform.UploadPaused
	stale.BytesSent = 0
	resumed, err := session.Resume(ctx, bytes.NewReader(payload(5)), &stale)
	require.NoError(t, err)
	assert.Equal(t, platform.UploadCompleted, resumed.Status)
	assert.Equal(t, int64(5), resumed.BytesSent)
	assert.Equal(t, []int{5}, server.Patches())
}

func TestPatchConflictFails(t *testing.T) {
	transport := platformtest.New(func(call platformtest.Call) (platformtest.Response, error) {
		switch call.Method {
		case http.MethodPost:
			return platformtest.Response{Status: http.StatusCreated, Location: "https://platform.test/uploads/f"}, nil
		default:
			return platformtest.Response{Status: http.StatusConflict}, nil
		}
	})
	session := upload.New(transport, restdata.ProjectResumableUploadsURL)
	session.Logger = logrus.New()
	handle, err := session.Start(context.Background(), bytes.NewReader(payload(10)), 10, 4)
	var apiErr *platform.APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	}
	assert.Equal(t, platform.UploadFailed, handle.Status)
	assert.Equal(t, int64(0), handle.BytesSent)
}

func TestPatchOffsetMismatch(t *testing.T) {
	transport := platformtest.New(func(call platformtest.Call) (platformtest.Response, error) {
		switch call.Method {
		case http.MethodPost:
			return platformtest.Response{Status: http.StatusCreated, Location: "https://platform.test/uploads/f"}, nil
		default:
			header := http.Header{}
			header.Set("Upload-Offset", "1")
			return platformtest.Response{Status: http.StatusNoContent, Header: header}, nil
		}
	})
	session := upload.New(transport, restdata.ProjectResumableUploadsURL)
	session.Logger = logrus.New()
	handle, err := session.Start(context.Background(), bytes.NewReader(payload(10)), 10, 4)
	assert.True(t, errors.Is(err, platform.ErrOffsetMismatch))
	assert.Equal(t, platform.UploadFailed, handle.Status)
}

func TestShortSource(t *testing.T) {
	server := newTusServer()
	session, _ := newSession(server)
	handle, err := session.Start(context.Background(), bytes.NewReader(payload(15)), 20, 10)
	assert.Error(t, err)
	assert.Equal(t, platform.UploadPaused, handle.Status)
	assert.Equal(t, int64(10), handle.BytesSent)
}

// TestCancelTwice checks that only the first cancel succeeds.
func TestCancelTwice(t *testing.T) {
	server := newTusServer()
	server.dropAt = 1
	session, _ := newSession(server)
	ctx := context.Background()

	handle, _ := session.Start(ctx, bytes.NewReader(payload(20)), 20, 10)
	require.Equal(t, platform.UploadPaused, handle.Status)

	ok, err := session.Cancel(ctx, handle)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, platform.UploadCanceled, handle.Status)

	before := *handle
	ok, err = session.Cancel(ctx, handle)
	assert.False(t, ok)
	var apiErr *platform.APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	}
	assert.Equal(t, before, *handle)
}

func TestCancelCompleted(t *testing.T) {
	server := newTusServer()
	session, _ := newSession(server)
	ctx := context.Background()

	handle, err := session.Start(ctx, bytes.NewReader(payload(20)), 20, 10)
	require.NoError(t, err)
	require.Equal(t, platform.UploadCompleted, handle.Status)

	before := *handle
	ok, err := session.Cancel(ctx, handle)
	assert.False(t, ok)
	assert.Equal(t, platform.ErrUploadCompleted, err)
	assert.Equal(t, before, *handle)
	// The server still has the upload, so no DELETE was sent.
	assert.Equal(t, payload(20), server.Data(handle.ResourceURL))
}

func TestCancelNoURL(t *testing.T) {
	session, _ := newSession(newTusServer())
	ok, err := session.Cancel(context.Background(), &platform.UploadHandle{})
	assert.False(t, ok)
	assert.Equal(t, platform.ErrNoResourceURL, err)
}

// TestBusy tries to cancel an upload from inside its own progress
// callback, while the transfer holds it.
func TestBusy(t *testing.T) {
	server := newTusServer()
	session, _ := newSession(server)
	ctx := context.Background()
	var progress []int64
	var busyErr error
	session.Progress = func(h platform.UploadHandle) {
		progress = append(progress, h.BytesSent)
		if busyErr == nil {
			_, busyErr = session.Cancel(ctx, &h)
		}
	}
	handle, err := session.Start(ctx, bytes.NewReader(payload(25)), 25, 10)
	require.NoError(t, err)
	assert.Equal(t, platform.UploadCompleted, handle.Status)
	assert.Equal(t, platform.ErrHandleBusy, busyErr)
	assert.Equal(t, []int64{10, 20, 25}, progress)

	// Once done the handle is free again
	ok, err := session.Cancel(ctx, handle)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestStatus(t *testing.T) {
	server := newTusServer()
	server.dropAt = 3
	session, _ := newSession(server)
	ctx := context.Background()
	handle, _ := session.Start(ctx, bytes.NewReader(payload(50)), 50, 10)
	offset, err := session.Status(ctx, handle)
	assert.NoError(t, err)
	assert.Equal(t, int64(20), offset)
}
