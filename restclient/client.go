// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient provides an authenticated HTTP client for the
// vision platform REST API.
//
// Call New() with the platform host and an API key, then resolve the
// workspace that every other operation runs in:
//
//     c, err := restclient.New(restclient.Config{
//         Host:   "https://geti.example.com",
//         APIKey: key,
//     })
//     ws, err := c.Workspace(ctx)
//
// The returned *Workspace implements platform.Transport, and is what
// the upload, jobs, workflow and project packages are built on.
package restclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
)

// APIRoot is the path of the REST API beneath the platform host.
const APIRoot = "api/v1/"

// Config describes how to reach the platform.
type Config struct {
	// Host is the platform base URL, e.g. "https://geti.example.com".
	Host string

	// APIKey is sent as the x-api-key header on every request.
	APIKey string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// OrganizationID and WorkspaceID, if both set, skip workspace
	// discovery.
	OrganizationID string
	WorkspaceID    string

	// HTTPClient is used for all requests if non-nil; otherwise a
	// client is built honoring InsecureSkipVerify.  There is no
	// overall request timeout, since a chunk upload can take
	// arbitrarily long.
	HTTPClient *http.Client

	// Logger receives per-request debug logging.  Defaults to
	// the logrus standard logger.
	Logger logrus.FieldLogger
}

// Client is rooted at the platform's API root.  It is safe for
// concurrent use.
type Client struct {
	resource
	config Config
}

// New creates a new client.  It does not contact the server.
func New(config Config) (*Client, error) {
	if config.Host == "" {
		return nil, errors.New("restclient: empty host URL")
	}
	host := config.Host
	if !strings.HasSuffix(host, "/") {
		host += "/"
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("restclient: host must be an absolute URL")
	}
	root, err := base.Parse(APIRoot)
	if err != nil {
		return nil, err
	}

	client := config.HTTPClient
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if config.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		client = &http.Client{Transport: transport}
	}

	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	header := http.Header{}
	header.Set("Accept", restdata.JSONMediaType)
	if config.APIKey != "" {
		header.Set("x-api-key", config.APIKey)
	}

	return &Client{
		resource: resource{
			URL: root,
			session: &session{
				client: client,
				header: header,
				logger: logger,
			},
		},
		config: config,
	}, nil
}

// Organization returns the id of the organization owning the API key.
func (c *Client) Organization(ctx context.Context) (string, error) {
	var resp restdata.OrganizationResponse
	err := c.GetFrom(ctx, restdata.OrganizationURL, nil, &resp)
	if err != nil {
		return "", err
	}
	return resp.OrganizationID, nil
}

// Workspaces lists the workspaces of an organization.
func (c *Client) Workspaces(ctx context.Context, organizationID string) ([]restdata.Workspace, error) {
	var resp restdata.WorkspaceList
	err := c.GetFrom(ctx, restdata.WorkspacesURL, platform.Vars{
		"organization_id": organizationID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Workspaces, nil
}

// Workspace resolves the workspace named in the configuration, or if
// none is, the first workspace of the caller's organization.
func (c *Client) Workspace(ctx context.Context) (*Workspace, error) {
	orgID := c.config.OrganizationID
	wsID := c.config.WorkspaceID
	var err error
	if orgID == "" {
		orgID, err = c.Organization(ctx)
		if err != nil {
			return nil, err
		}
	}
	if wsID == "" {
		var list []restdata.Workspace
		list, err = c.Workspaces(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, platform.ErrNoWorkspace
		}
		wsID = list[0].ID
	}
	return c.WorkspaceByID(orgID, wsID)
}

// WorkspaceByID returns a workspace without contacting the server.
func (c *Client) WorkspaceByID(organizationID, workspaceID string) (*Workspace, error) {
	if organizationID == "" || workspaceID == "" {
		return nil, platform.ErrNoWorkspace
	}
	u, err := c.Template(restdata.WorkspaceURL, platform.Vars{
		"organization_id": organizationID,
		"workspace_id":    workspaceID,
	})
	if err != nil {
		return nil, err
	}
	return &Workspace{
		resource:       resource{URL: u, session: c.session},
		OrganizationID: organizationID,
		WorkspaceID:    workspaceID,
	}, nil
}

// Workspace is a platform.Transport whose templates resolve relative
// to a single workspace URL.
type Workspace struct {
	resource
	OrganizationID string
	WorkspaceID    string
}

// BaseURL returns the workspace URL, which always ends in a slash.
func (w *Workspace) BaseURL() string {
	return w.URL.String()
}

var _ platform.Transport = &Workspace{}
