// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/negroni"

	"github.com/diffeo/go-visionclient/memory"
	"github.com/diffeo/go-visionclient/restserver"
)

// HTTP serves the fake platform's REST API.
type HTTP struct {
	platform    *memory.Platform
	laddr       string
	logRequests bool
	config      restserver.Config
}

// Handler builds the complete HTTP handler: the platform API, plus
// Prometheus metrics at /metrics, behind panic recovery and optional
// request logging.
func (h *HTTP) Handler() (http.Handler, error) {
	// The API router checks API keys on every route, so it does
	// not also serve /metrics.
	api := mux.NewRouter()
	if err := restserver.PopulateRouter(api, h.platform, h.config); err != nil {
		return nil, err
	}
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.PathPrefix(restserver.APIRoot).Handler(api)

	n := negroni.New(negroni.NewRecovery())
	if h.logRequests {
		n.Use(negroni.NewLogger())
	}
	n.UseHandler(r)
	return n, nil
}

// Serve runs an HTTP server on the configured local address.  It
// serves connections until the listener fails.
func (h *HTTP) Serve() error {
	handler, err := h.Handler()
	if err != nil {
		return err
	}
	return http.ListenAndServe(h.laddr, handler)
}
