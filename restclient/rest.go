// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides generic REST client code.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/jtacoma/uritemplates"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
)

// session holds the state shared by every resource created from one
// Client.  It is immutable after construction.
type session struct {
	client *http.Client
	header http.Header
	logger logrus.FieldLogger
}

// resource is any object that has a URL.
type resource struct {
	URL     *url.URL
	session *session
}

// Template expands an RFC 6570 URI template and resolves the result
// relative to the resource's own URL.
func (r *resource) Template(template string, vars platform.Vars) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}

	// Only strings go into the template; copy so the caller's map
	// is untouched
	values := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		if s, isString := v.(string); isString {
			values[k] = s
		} else if v != nil {
			values[k] = fmt.Sprint(v)
		}
	}

	expanded, err := tmpl.Expand(values)
	if err != nil {
		return nil, err
	}

	return r.URL.Parse(expanded)
}

// body converts an input value into a request body and its content
// type.  The returned reader may be nil.  If the returned channel is
// non-nil, it is closed once the body has been completely produced.
func (r *resource) body(in interface{}) (io.Reader, string, <-chan struct{}, error) {
	switch v := in.(type) {
	case nil:
		return nil, "", nil, nil
	case []byte:
		return bytes.NewReader(v), "", nil, nil
	case platform.Raw:
		return v.Content, v.ContentType, nil, nil
	case *platform.Raw:
		return v.Content, v.ContentType, nil, nil
	case *platform.Form:
		reader, contentType, finished := streamForm(v)
		return reader, contentType, finished, nil
	default:
		encoded, err := restdata.EncodeBytes(in)
		if err != nil {
			return nil, "", nil, err
		}
		return bytes.NewReader(encoded), restdata.JSONMediaType, nil, nil
	}
}

// streamForm encodes a multipart form through a pipe, so that file
// content is never held in memory in full.  The pipe writer is closed,
// possibly with an error, once every part is written; if the HTTP
// transport gives up early it closes the reader, which unblocks the
// encoding goroutine.
func streamForm(form *platform.Form) (io.Reader, string, <-chan struct{}) {
	reader, writer := io.Pipe()
	finished := make(chan struct{})
	mw := multipart.NewWriter(writer)
	var total int64
	for _, file := range form.Files {
		total += file.Size
	}
	go func() {
		defer close(finished)
		err := writeForm(mw, form, total)
		err = firstError(err, mw.Close())
		writer.CloseWithError(err)
	}()
	return reader, mw.FormDataContentType(), finished
}

func writeForm(mw *multipart.Writer, form *platform.Form, total int64) error {
	for name, value := range form.Fields {
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	var sent int64
	for _, file := range form.Files {
		part, err := mw.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return err
		}
		var dst io.Writer = part
		if form.Progress != nil {
			dst = &progressWriter{w: part, sent: &sent, total: total, report: form.Progress}
		}
		if _, err = io.Copy(dst, file.Content); err != nil {
			return err
		}
	}
	return nil
}

// progressWriter counts bytes on their way into a multipart part.
type progressWriter struct {
	w      io.Writer
	sent   *int64
	total  int64
	report func(sent, total int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	*p.sent += int64(n)
	p.report(*p.sent, p.total)
	return n, err
}

// Do performs some HTTP action.  If in is non-nil, it is sent as the
// request body (see platform.Transport.PostTo for the accepted types).
// If out is non-nil, the response data (if any) is deserialized into
// this object, which must be of pointer type; a *[]byte receives the
// raw response body.  The response is returned with its body already
// consumed and closed.
func (r *resource) Do(ctx context.Context, method string, u *url.URL, header http.Header, in, out interface{}) (*http.Response, error) {
	body, contentType, finished, err := r.body(in)
	if err != nil {
		return nil, err
	}
	if finished != nil {
		// The transport closes the body when it is done with it,
		// whether or not it was read through
		defer func() { <-finished }()
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		if closer, isCloser := body.(io.Closer); isCloser {
			closer.Close()
		}
		return nil, err
	}
	req = req.WithContext(ctx)
	for k, vv := range r.session.header {
		req.Header[k] = append([]string(nil), vv...)
	}
	for k, vv := range header {
		req.Header[k] = append([]string(nil), vv...)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := r.session.client.Do(req)
	if err != nil {
		observeRequest(method, 0)
		return nil, &platform.TransportError{Method: method, URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	// Always collect the entire body; it is needed as the error
	// fallback and can only be read once
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		observeRequest(method, 0)
		return nil, &platform.TransportError{Method: method, URL: u.String(), Err: err}
	}
	observeRequest(method, resp.StatusCode)
	r.session.logger.WithFields(logrus.Fields{
		"method":   method,
		"url":      u.String(),
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("platform request")

	if err = checkHTTPStatus(resp, data); err != nil {
		return resp, err
	}

	if out != nil && len(data) > 0 {
		if raw, isRaw := out.(*[]byte); isRaw {
			*raw = data
		} else {
			contentType := resp.Header.Get("Content-Type")
			err = restdata.Decode(contentType, bytes.NewReader(data), out)
		}
	}
	return resp, err
}

// GetFrom retrieves a resource from some other URL.  template is
// interpreted as a URI template, modified by vars, and the result
// taken relative to the resource's URL.  The result is stored in
// out, which must be of pointer type.
func (r *resource) GetFrom(ctx context.Context, template string, vars platform.Vars, out interface{}) error {
	u, err := r.Template(template, vars)
	if err == nil {
		_, err = r.Do(ctx, http.MethodGet, u, nil, nil, out)
	}
	return err
}

// PostTo submits data to a service at some other URL.  template is
// interpreted as a URI template, modified by vars, and the result
// taken relative to the resource's URL.  The server response is
// stored in out, which must be of pointer type.
func (r *resource) PostTo(ctx context.Context, template string, vars platform.Vars, in, out interface{}) error {
	u, err := r.Template(template, vars)
	if err == nil {
		_, err = r.Do(ctx, http.MethodPost, u, nil, in, out)
	}
	return err
}

// DeleteAt deletes the resource at some other URL and returns the
// response status code, or 0 if there was no response.
func (r *resource) DeleteAt(ctx context.Context, template string, vars platform.Vars, header http.Header) (int, error) {
	u, err := r.Template(template, vars)
	if err != nil {
		return 0, err
	}
	resp, err := r.Do(ctx, http.MethodDelete, u, header, nil, nil)
	if resp == nil {
		return 0, err
	}
	return resp.StatusCode, err
}

// Send issues an arbitrary request with a byte body.
func (r *resource) Send(ctx context.Context, method, template string, vars platform.Vars, header http.Header, body []byte) (*platform.Reply, error) {
	u, err := r.Template(template, vars)
	if err != nil {
		return nil, err
	}
	var in interface{}
	if body != nil {
		in = body
	}
	resp, err := r.Do(ctx, method, u, header, in, nil)
	if resp == nil {
		return nil, err
	}
	reply := &platform.Reply{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}
	if location, lerr := resp.Location(); lerr == nil {
		reply.Location = location.String()
	}
	return reply, err
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.
func checkHTTPStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &platform.APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}

	// Take a shot at decoding it as a better error
	var errResp restdata.ErrorResponse
	contentType := resp.Header.Get("Content-Type")
	if len(body) > 0 && restdata.Decode(contentType, bytes.NewReader(body), &errResp) == nil {
		apiErr.Message = errResp.Description()
	}
	return apiErr
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}
