// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains various HTTP-related helpers.

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/diffeo/go-visionclient/restdata"
)

type urlBuilder struct {
	Router *mux.Router
	Params []string
	Error  error
}

func buildURLs(router *mux.Router, params ...string) *urlBuilder {
	for i, value := range params {
		if i%2 == 1 {
			params[i] = url.PathEscape(value)
		}
	}
	return &urlBuilder{Router: router, Params: params}
}

func (u *urlBuilder) Route(route string) *mux.Route {
	if u.Error != nil {
		return nil
	}
	r := u.Router.Get(route)
	if r == nil {
		u.Error = fmt.Errorf("No such route %q", route)
	}
	return r
}

func (u *urlBuilder) URL(out *string, route string) *urlBuilder {
	var r *mux.Route
	var url *url.URL
	if u.Error == nil {
		r = u.Route(route)
	}
	if u.Error == nil {
		url, u.Error = r.URL(u.Params...)
	}
	if u.Error == nil {
		*out = url.String()
	}
	return u
}

// maxFieldSize bounds the non-file fields of a multipart form.
const maxFieldSize = 1 << 20

// formData is the result of reading a multipart form.  File content
// is counted and discarded; the fake platform keeps no file data.
type formData struct {
	Filename string
	Size     int64
	HaveFile bool
	Fields   map[string]string
}

// readForm streams a multipart request body.  The file part is named
// "file"; every other part is a short text field.
func readForm(req *http.Request) (*formData, error) {
	reader, err := req.MultipartReader()
	if err != nil {
		return nil, restdata.ErrBadRequest{Err: err}
	}
	form := &formData{Fields: make(map[string]string)}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, restdata.ErrBadRequest{Err: err}
		}
		if part.FormName() == "file" {
			form.HaveFile = true
			form.Filename = part.FileName()
			form.Size, err = io.Copy(ioutil.Discard, part)
		} else {
			var value []byte
			value, err = ioutil.ReadAll(io.LimitReader(part, maxFieldSize))
			form.Fields[part.FormName()] = string(value)
		}
		part.Close()
		if err != nil {
			return nil, restdata.ErrBadRequest{Err: err}
		}
	}
	if !form.HaveFile {
		return nil, restdata.ErrBadRequest{Err: fmt.Errorf("missing \"file\" form field")}
	}
	return form, nil
}
