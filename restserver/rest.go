// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains a REST skeleton framework.
//
// The bulk of this is dealing with HTTP content type negotiation, and
// providing a standard way to deal with input and output values.  The
// platform only ever speaks JSON, so negotiation mostly decides
// whether a request is acceptable at all.

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/diffeo/go-visionclient/restdata"
)

var typeMap = map[string]string{
	"text/json":            restdata.JSONMediaType,
	restdata.JSONMediaType: restdata.JSONMediaType,
}

// errBadAccept is returned from negotiateResponse() if the Accept:
// header is malformed (and no more specific error applies).
var errBadAccept = errors.New("Invalid Accept: header")

// errNotAcceptable is returned from negotiateResponse() if the Accept:
// header does not mention any media types we can actually return.
type errNotAcceptable struct{}

func (e errNotAcceptable) Error() string {
	return "No acceptable representation for response"
}

func (e errNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// errMethodNotAllowed is used within the resourceHandler implementation
// to flag an error if a particular HTTP method is not allowed.  This
// corresponds exactly to the 405 Method Not Allowed HTTP status code.
type errMethodNotAllowed struct {
	Method string
}

func (e errMethodNotAllowed) Error() string {
	return fmt.Sprintf("Method %v not allowed", e.Method)
}

func (e errMethodNotAllowed) HTTPStatus() int {
	return http.StatusMethodNotAllowed
}

// responseCreated is returned as a value response from handler
// functions that want to indicate that a new resource was created.
type responseCreated struct {
	// Location holds the canonical URL to the newly created resource.
	Location string

	// Body contains the object sent in the body of the response.
	Body interface{}
}

type resourceHandler struct {
	// Representation is an object representing the request body.
	// A copy of this object will be passed to Post handlers.  If
	// it is nil the body is not decoded, and the handler reads
	// it from the context's request, as for multipart uploads.
	Representation interface{}

	// Context reads an HTTP request and produces a context object.
	Context func(req *http.Request) (*context, error)

	// Get, if non-nil, returns a representation of the object.
	Get func(*context) (interface{}, error)

	// Post, if non-nil, takes some arbitrary action.  The
	// interface parameter is the decoded body, of the same type
	// as Representation.  The return can be any useful return
	// value, including responseCreated.
	Post func(*context, interface{}) (interface{}, error)

	// Delete, if non-nil, deletes the object.
	Delete func(*context) (interface{}, error)
}

// writeError sends err as an ErrorResponse, with the status code the
// error carries or 500.
func writeError(resp http.ResponseWriter, err error) {
	response := restdata.ErrorResponse{}
	response.FromError(err)
	resp.Header().Set("Content-Type", restdata.JSONMediaType)
	resp.WriteHeader(response.HTTPStatus)
	_ = restdata.Encode(resp, response)
}

func (h *resourceHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	var (
		ctx          *context
		in, out      interface{}
		err          error
		status       int
		responseType string
	)

	// Recover from panics by sending an HTTP error.
	defer func() {
		if recovered := recover(); recovered != nil {
			writeError(resp, fmt.Errorf("panic: %v", recovered))
		}
	}()

	// Start by trying to come up with a response type, even before
	// trying to parse the input.  This determines what format an
	// error message could be sent back as.
	status = http.StatusBadRequest
	responseType, err = negotiateResponse(req)
	if err != nil {
		responseType = restdata.JSONMediaType
	}

	// Get bits from URL parameters
	if err == nil {
		ctx, err = h.Context(req)
	}

	// Read the JSON body, if this resource has one
	if err == nil && req.Method == http.MethodPost && h.Representation != nil {
		ptr := reflect.New(reflect.TypeOf(h.Representation))
		err = restdata.Decode(req.Header.Get("Content-Type"), req.Body, ptr.Interface())
		if err == nil {
			in = ptr.Elem().Interface()
		} else if _, isStatus := err.(restdata.ErrorStatus); !isStatus {
			err = restdata.ErrBadRequest{Err: err}
		}
	}

	// Actually call the handler method
	if err == nil {
		err = errMethodNotAllowed{Method: req.Method}
		status = http.StatusInternalServerError
		switch req.Method {
		case http.MethodGet, http.MethodHead:
			if h.Get != nil {
				out, err = h.Get(ctx)
			}
		case http.MethodPost:
			if h.Post != nil {
				out, err = h.Post(ctx, in)
			}
		case http.MethodDelete:
			if h.Delete != nil {
				out, err = h.Delete(ctx)
			}
		}
	}

	// Fix up the final result based on what we know.
	if err != nil {
		response := restdata.ErrorResponse{}
		response.FromError(err)
		if _, hasStatus := err.(restdata.ErrorStatus); hasStatus {
			status = response.HTTPStatus
		} else {
			response.HTTPStatus = status
		}
		out = response
	} else if out == nil {
		status = http.StatusNoContent
	} else if created, isCreated := out.(responseCreated); isCreated {
		status = http.StatusCreated
		if created.Location != "" {
			resp.Header().Set("Location", created.Location)
		}
		out = created.Body
	} else {
		status = http.StatusOK
	}
	if req.Method == http.MethodHead {
		out = nil
	}
	if typeMap[responseType] != restdata.JSONMediaType {
		// Negotiation should have failed before this point
		status = http.StatusInternalServerError
		out = restdata.ErrorResponse{ErrorCode: "internal_server_error", Message: "Invalid response type " + responseType}
		responseType = restdata.JSONMediaType
	}

	// Actually send the response.  If encoding fails the status
	// line is already out, so there is nothing better to do.
	if out != nil {
		resp.Header().Set("Content-Type", responseType)
	}
	resp.WriteHeader(status)
	if out != nil {
		_ = restdata.Encode(resp, out)
	}
}

// negotiateResponse returns a supported MIME type for the response
// body, following the path laid out in RFC 7231 section 5.3.
func negotiateResponse(req *http.Request) (string, error) {
	accept := req.Header.Get("Accept")
	if accept == "" {
		accept = "*/*"
	}
	bestType := ""
	bestQ := 0.0
	for _, mediaRange := range strings.Split(accept, ",") {
		mediaRange = strings.TrimSpace(mediaRange)
		mediaType, params, err := mime.ParseMediaType(mediaRange)
		if err != nil {
			return "", err
		}

		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil {
				return "", err
			}
			if q < 0.0 || q > 1.0 {
				return "", errBadAccept
			}
		}
		if q < bestQ {
			continue
		}

		// Specific types override wildcards; the first one at
		// a given q wins.
		if mediaType == "*/*" {
			if q > bestQ {
				bestType = mediaType
				bestQ = q
			}
		} else if mediaType == "text/*" || mediaType == "application/*" {
			if q > bestQ || bestType == "*/*" {
				bestType = mediaType
				bestQ = q
			}
		} else if _, knownType := typeMap[mediaType]; knownType {
			if q > bestQ || strings.HasSuffix(bestType, "/*") {
				bestType = mediaType
				bestQ = q
			}
		}
	}
	if bestQ == 0.0 {
		return "", errNotAcceptable{}
	}
	switch bestType {
	case "*/*", "application/*":
		return restdata.JSONMediaType, nil
	case "text/*":
		return "text/json", nil
	default:
		return bestType, nil
	}
}
