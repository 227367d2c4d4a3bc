// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package fakeplatform serves an in-memory imitation of the vision
// platform's REST API, for trying out visionctl and for integration
// testing.  It accepts uploads, runs import jobs through scripted
// states, and keeps projects and media in memory only.
//
// A YAML configuration file can preset job scripts:
//
//     api_key: secret
//     job_scripts:
//       prepare_import_to_new_project: [pending, running, finished]
//       import_project: [running, failed]
package main

import (
	"flag"
	"io/ioutil"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/diffeo/go-visionclient/memory"
	"github.com/diffeo/go-visionclient/restserver"
)

type serverConfig struct {
	APIKey     string              `yaml:"api_key"`
	JobScripts map[string][]string `yaml:"job_scripts"`
}

func main() {
	var err error

	httpBind := flag.String("http", ":5980",
		"[ip]:port for HTTP REST interface")
	uploadDir := flag.String("upload-dir", "",
		"directory for resumable upload content (default a temporary directory)")
	apiKey := flag.String("api-key", "", "require this API key")
	config := flag.String("config", "", "server configuration YAML file")
	logRequests := flag.Bool("log-requests", false, "log all requests")
	flag.Parse()

	var sConfig serverConfig
	if *config != "" {
		sConfig, err = loadConfigYaml(*config)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Fatal("Could not load YAML configuration")
			return
		}
	}

	if *uploadDir == "" {
		*uploadDir, err = ioutil.TempDir("", "fakeplatform")
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Fatal("Could not create upload directory")
			return
		}
		defer os.RemoveAll(*uploadDir)
	}

	platform := memory.New()
	platform.APIKey = sConfig.APIKey
	if *apiKey != "" {
		platform.APIKey = *apiKey
	}
	for jobType, states := range sConfig.JobScripts {
		platform.SetJobScript(jobType, states...)
	}

	logger := logrus.StandardLogger()
	if *logRequests {
		logger = &logrus.Logger{
			Out:       logger.Out,
			Formatter: logger.Formatter,
			Hooks:     logger.Hooks,
			Level:     logrus.DebugLevel,
		}
	}

	logrus.WithFields(logrus.Fields{
		"organization": platform.OrganizationID,
		"workspace":    platform.WorkspaceID,
		"http":         *httpBind,
	}).Info("Serving fake platform")

	go observe(platform)
	h := HTTP{
		platform:    platform,
		laddr:       *httpBind,
		logRequests: *logRequests,
		config:      restserver.Config{UploadDir: *uploadDir, Logger: logger},
	}
	if err = h.Serve(); err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("HTTP server failed")
	}
}

func loadConfigYaml(filename string) (serverConfig, error) {
	var result serverConfig
	bytes, err := ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.UnmarshalStrict(bytes, &result)
	}
	return result, err
}
