// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"fmt"
	"net/http"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrorResponse is the body of a failing platform response.
type ErrorResponse struct {
	// ErrorCode is a short machine-readable error name.
	ErrorCode string `json:"error_code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// HTTPStatus repeats the response status code.
	HTTPStatus int `json:"http_status,omitempty"`
}

// Description returns the most informative text in the response, or
// an empty string if there is none.
func (e *ErrorResponse) Description() string {
	switch {
	case e.Message != "" && e.ErrorCode != "":
		return e.ErrorCode + ": " + e.Message
	case e.Message != "":
		return e.Message
	default:
		return e.ErrorCode
	}
}

// FromError populates an ErrorResponse from an error value, picking
// up a status code if the error has one.
func (e *ErrorResponse) FromError(err error) {
	e.Message = err.Error()
	e.HTTPStatus = http.StatusInternalServerError
	if errS, hasStatus := err.(ErrorStatus); hasStatus {
		e.HTTPStatus = errS.HTTPStatus()
	}
	if e.ErrorCode == "" {
		e.ErrorCode = errorCode(e.HTTPStatus)
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "resource_not_found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusConflict:
		return "conflict"
	default:
		return "internal_server_error"
	}
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest is returned as an error when there is an error decoding
// HTTP headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// ErrUnauthorized is returned by a server that did not accept the
// request's API key.
type ErrUnauthorized struct{}

func (e ErrUnauthorized) Error() string {
	return "Missing or invalid API key"
}

// HTTPStatus returns a fixed 401 Unauthorized HTTP status code.
func (e ErrUnauthorized) HTTPStatus() int {
	return http.StatusUnauthorized
}
