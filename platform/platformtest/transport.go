// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package platformtest provides a scripted platform.Transport for unit
// tests of components built on it.
package platformtest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
)

// Call records a single request made through a Transport.
type Call struct {
	Method   string
	Template string
	Vars     platform.Vars
	Header   http.Header

	// In is the value passed to PostTo.
	In interface{}

	// Body is the byte body passed to Send.
	Body []byte
}

// String returns "METHOD template".
func (c Call) String() string {
	return c.Method + " " + c.Template
}

// Response is a scripted reply.  A zero Status means 200 OK.
type Response struct {
	Status   int
	Header   http.Header
	Location string

	// Body is a JSON document decoded into the caller's output
	// value, if any.
	Body string
}

// Handler produces the response to one call.  A non-nil error is
// returned to the caller as-is, as though no response was received.
type Handler func(call Call) (Response, error)

// Transport is a platform.Transport that records every call and
// answers through a Handler.  It is safe for concurrent use.
type Transport struct {
	Handler Handler

	lock  sync.Mutex
	calls []Call
}

// New creates a transport running handler.
func New(handler Handler) *Transport {
	return &Transport{Handler: handler}
}

// Calls returns a copy of the calls made so far.
func (t *Transport) Calls() []Call {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]Call(nil), t.calls...)
}

// Requests returns the String() of every call made so far.
func (t *Transport) Requests() []string {
	calls := t.Calls()
	result := make([]string, len(calls))
	for i, call := range calls {
		result[i] = call.String()
	}
	return result
}

// Count returns the number of calls made with method and template.
func (t *Transport) Count(method, template string) int {
	n := 0
	for _, call := range t.Calls() {
		if call.Method == method && call.Template == template {
			n++
		}
	}
	return n
}

func (t *Transport) do(ctx context.Context, call Call) (Response, error) {
	t.lock.Lock()
	t.calls = append(t.calls, call)
	t.lock.Unlock()

	if err := ctx.Err(); err != nil {
		return Response{}, &platform.TransportError{Method: call.Method, URL: call.Template, Err: err}
	}
	resp, err := t.Handler(call)
	if err != nil {
		return resp, err
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return resp, &platform.APIError{
			StatusCode: resp.Status,
			Status:     fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
			Body:       resp.Body,
		}
	}
	return resp, nil
}

func decode(resp Response, out interface{}) error {
	if out == nil || resp.Body == "" {
		return nil
	}
	if raw, isRaw := out.(*[]byte); isRaw {
		*raw = []byte(resp.Body)
		return nil
	}
	return restdata.DecodeBytes([]byte(resp.Body), out)
}

// GetFrom records a GET call.
func (t *Transport) GetFrom(ctx context.Context, template string, vars platform.Vars, out interface{}) error {
	resp, err := t.do(ctx, Call{Method: http.MethodGet, Template: template, Vars: vars})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// PostTo records a POST call.
func (t *Transport) PostTo(ctx context.Context, template string, vars platform.Vars, in, out interface{}) error {
	resp, err := t.do(ctx, Call{Method: http.MethodPost, Template: template, Vars: vars, In: in})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// DeleteAt records a DELETE call.
func (t *Transport) DeleteAt(ctx context.Context, template string, vars platform.Vars, header http.Header) (int, error) {
	resp, err := t.do(ctx, Call{Method: http.MethodDelete, Template: template, Vars: vars, Header: header})
	return resp.Status, err
}

// Send records an arbitrary call.
func (t *Transport) Send(ctx context.Context, method, template string, vars platform.Vars, header http.Header, body []byte) (*platform.Reply, error) {
	resp, err := t.do(ctx, Call{Method: method, Template: template, Vars: vars, Header: header, Body: body})
	if resp.Status == 0 {
		return nil, err
	}
	reply := &platform.Reply{
		StatusCode: resp.Status,
		Header:     resp.Header,
		Location:   resp.Location,
	}
	if reply.Header == nil {
		reply.Header = http.Header{}
	}
	return reply, err
}

var _ platform.Transport = &Transport{}
