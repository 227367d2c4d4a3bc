// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package visionctl is a command-line client for the vision platform:
// uploading datasets and project archives, importing them as projects,
// managing media, and running predictions.
//
// Connection settings come from $GETI_HOST and $GETI_API_KEY (also read
// from a .env file in the current directory), or from a YAML file
// named with --config.  An interrupted resumable upload is saved to the
// --store backend, and "visionctl upload resume FILE" picks it up.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/diffeo/go-visionclient/backend"
	"github.com/diffeo/go-visionclient/config"
	"github.com/diffeo/go-visionclient/jobs"
	"github.com/diffeo/go-visionclient/project"
	"github.com/diffeo/go-visionclient/restclient"
	"github.com/diffeo/go-visionclient/store"
	"github.com/diffeo/go-visionclient/workflow"
)

// environment is the state shared by every command, set up in the
// application's Before hook.
type environment struct {
	Config config.Config
	Logger *logrus.Logger
	Store  store.Store
	Out    io.Writer

	// Context is canceled on SIGINT or SIGTERM.
	Context context.Context
	stop    context.CancelFunc

	once      sync.Once
	workspace *restclient.Workspace
	err       error
}

var env environment

// Workspace connects to the platform, discovering the workspace if the
// configuration does not name one.
func (e *environment) Workspace() (*restclient.Workspace, error) {
	e.once.Do(func() {
		if e.err = e.Config.Validate(); e.err != nil {
			return
		}
		rc := e.Config.RestClient()
		rc.Logger = e.Logger
		var client *restclient.Client
		client, e.err = restclient.New(rc)
		if e.err != nil {
			return
		}
		e.workspace, e.err = client.Workspace(e.Context)
		if e.err == nil {
			e.Logger.WithFields(logrus.Fields{
				"organization": e.workspace.OrganizationID,
				"workspace":    e.workspace.WorkspaceID,
			}).Debug("workspace resolved")
		}
	})
	return e.workspace, e.err
}

// Orchestrator returns a workflow orchestrator for the workspace.
func (e *environment) Orchestrator() (*workflow.Orchestrator, error) {
	ws, err := e.Workspace()
	if err != nil {
		return nil, err
	}
	o := workflow.New(ws)
	o.Logger = e.Logger
	o.Poller.Logger = e.Logger
	o.Store = e.Store
	e.Config.Apply(o)
	o.Progress = newProgressPrinter(os.Stderr).Report
	return o, nil
}

// Poller returns a job poller for the workspace.
func (e *environment) Poller() (*jobs.Poller, error) {
	ws, err := e.Workspace()
	if err != nil {
		return nil, err
	}
	p := jobs.New(ws)
	p.Logger = e.Logger
	return p, nil
}

// Projects returns a project client for the workspace.
func (e *environment) Projects() (*project.Client, error) {
	ws, err := e.Workspace()
	if err != nil {
		return nil, err
	}
	c := project.New(ws)
	c.Logger = e.Logger
	return c, nil
}

// loadDotEnv reads a .env file into the environment without
// overriding variables that are already set.  The default file may be
// absent; a named one must exist.
func loadDotEnv(filename string) error {
	if filename != "" {
		return godotenv.Load(filename)
	}
	err := godotenv.Load()
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func setup(c *cli.Context) error {
	if err := loadDotEnv(c.String("env-file")); err != nil {
		return fmt.Errorf("could not load environment file: %w", err)
	}

	cfg := config.Default()
	if filename := c.String("config"); filename != "" {
		var err error
		cfg, err = config.Load(filename)
		if err != nil {
			return fmt.Errorf("could not load configuration: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.Bool("insecure") {
		cfg.VerifySSL = false
	}
	if c.IsSet("store") {
		cfg.Store = c.String("store")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	logger := logrus.StandardLogger()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if c.Bool("log-json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	var b backend.Backend
	if err = b.Set(cfg.Store); err != nil {
		return err
	}
	s, err := b.Store()
	if err != nil {
		return fmt.Errorf("could not open upload store %v: %w", b.String(), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	env = environment{
		Config:  cfg,
		Logger:  logger,
		Store:   s,
		Out:     c.App.Writer,
		Context: ctx,
		stop:    stop,
	}
	return nil
}

func teardown(c *cli.Context) error {
	if env.stop != nil {
		env.stop()
	}
	if env.Store != nil {
		return env.Store.Close()
	}
	return nil
}

var workspaceCommand = cli.Command{
	Name:  "workspace",
	Usage: "show the organization and workspace in use",
	Action: func(c *cli.Context) error {
		ws, err := env.Workspace()
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Out, "organization %v\nworkspace %v\n%v\n", ws.OrganizationID, ws.WorkspaceID, ws.BaseURL())
		return nil
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "visionctl"
	app.Usage = "upload data to and import projects into the vision platform"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML configuration file",
		},
		cli.StringFlag{
			Name:  "env-file",
			Usage: "read environment variables from this file (default .env, if present)",
		},
		cli.StringFlag{
			Name:  "host",
			Usage: "platform base URL (overrides $" + config.EnvHost + ")",
		},
		cli.BoolFlag{
			Name:  "insecure",
			Usage: "do not verify the platform's TLS certificate",
		},
		cli.StringFlag{
			Name:  "store",
			Usage: "impl[:address] where unfinished uploads are saved (none, memory, file, postgres, redis)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "logging level (debug, info, warning, error)",
		},
		cli.BoolFlag{
			Name:  "log-json",
			Usage: "log in JSON format",
		},
	}
	app.Commands = []cli.Command{
		workspaceCommand,
		uploadCommand,
		importCommand,
		jobCommand,
		projectCommand,
		mediaCommand,
		predictCommand,
	}
	app.Before = setup
	app.After = teardown
	app.RunAndExitOnError()
}
