// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package config holds the settings shared by the command-line tools:
// how to reach the platform, and how uploads and job polling behave.
//
// Settings come from three places, each overriding the last: the
// defaults, a YAML file, and the environment.  A configuration file
// looks like
//
//     host: https://geti.example.com
//     verify_ssl: false
//     chunk_size: 5242880
//     poll_interval: 2s
//     max_attempts: 120
//     store: file:/var/lib/visionctl/uploads.yaml
//
// The API key is usually left out of the file and taken from
// $GETI_API_KEY.
package config

import (
	"errors"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"

	"github.com/diffeo/go-visionclient/restclient"
	"github.com/diffeo/go-visionclient/upload"
	"github.com/diffeo/go-visionclient/workflow"
)

// Config is the complete client configuration.
type Config struct {
	// Host is the platform base URL.
	Host string `mapstructure:"host"`

	// APIKey authenticates every request.
	APIKey string `mapstructure:"api_key"`

	// VerifySSL enables TLS certificate verification.
	VerifySSL bool `mapstructure:"verify_ssl"`

	// OrganizationID and WorkspaceID select a workspace; if
	// either is empty the workspace is discovered.
	OrganizationID string `mapstructure:"organization_id"`
	WorkspaceID    string `mapstructure:"workspace_id"`

	ChunkSize           int64         `mapstructure:"chunk_size"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	StandardUploadLimit int64         `mapstructure:"standard_upload_limit"`

	// Store is the "impl:address" description of where
	// unfinished upload handles are saved; see the backend
	// package.
	Store string `mapstructure:"store"`

	// LogLevel is a logrus level name.
	LogLevel string `mapstructure:"log_level"`
}

// Environment variables read by ApplyEnv.
const (
	EnvHost           = "GETI_HOST"
	EnvAPIKey         = "GETI_API_KEY"
	EnvVerifySSL      = "GETI_VERIFY_SSL"
	EnvOrganizationID = "ORGANIZATION_ID"
	EnvWorkspaceID    = "WORKSPACE_ID"
)

// Default returns the default configuration, which has no host or API
// key.
func Default() Config {
	return Config{
		VerifySSL:           true,
		ChunkSize:           upload.DefaultChunkSize,
		PollInterval:        workflow.DefaultPollInterval,
		MaxAttempts:         workflow.DefaultMaxAttempts,
		StandardUploadLimit: workflow.DefaultStandardUploadLimit,
		Store:               "none",
		LogLevel:            "info",
	}
}

// Load reads a YAML configuration file on top of the defaults.  Keys
// the file does not mention keep their default values; unknown keys
// are an error.
func Load(filename string) (Config, error) {
	config := Default()
	bytes, err := ioutil.ReadFile(filename)
	if err != nil {
		return config, err
	}
	var values map[string]interface{}
	if err = yaml.Unmarshal(bytes, &values); err != nil {
		return config, err
	}
	err = config.Merge(values)
	return config, err
}

// Merge decodes a map of settings into c.  Values are converted
// leniently, so "10" is accepted as a number and "30s" as a duration.
func (c *Config) Merge(values map[string]interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}

// ApplyEnv overrides settings from the process environment.
func (c *Config) ApplyEnv() error {
	return c.ApplyLookup(os.LookupEnv)
}

// ApplyLookup overrides settings from an environment lookup function.
// GETI_VERIFY_SSL disables verification only if it is "false" (or
// another false boolean value); any other value enables it.
func (c *Config) ApplyLookup(lookup func(string) (string, bool)) error {
	if value, ok := lookup(EnvHost); ok {
		c.Host = value
	}
	if value, ok := lookup(EnvAPIKey); ok {
		c.APIKey = value
	}
	if value, ok := lookup(EnvVerifySSL); ok {
		verify, err := strconv.ParseBool(strings.TrimSpace(value))
		c.VerifySSL = err != nil || verify
	}
	if value, ok := lookup(EnvOrganizationID); ok {
		c.OrganizationID = value
	}
	if value, ok := lookup(EnvWorkspaceID); ok {
		c.WorkspaceID = value
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("no platform host configured (set " + EnvHost + ")")
	}
	if c.APIKey == "" {
		return errors.New("no API key configured (set " + EnvAPIKey + ")")
	}
	if c.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("max_attempts must be positive")
	}
	if c.PollInterval < 0 {
		return errors.New("poll_interval must not be negative")
	}
	return nil
}

// RestClient returns the restclient configuration for c.
func (c *Config) RestClient() restclient.Config {
	return restclient.Config{
		Host:               c.Host,
		APIKey:             c.APIKey,
		InsecureSkipVerify: !c.VerifySSL,
		OrganizationID:     c.OrganizationID,
		WorkspaceID:        c.WorkspaceID,
	}
}

// Apply copies the upload and polling settings into an orchestrator.
func (c *Config) Apply(o *workflow.Orchestrator) {
	o.ChunkSize = c.ChunkSize
	o.PollInterval = c.PollInterval
	o.MaxAttempts = c.MaxAttempts
	o.StandardUploadLimit = c.StandardUploadLimit
}
