// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
	"github.com/diffeo/go-visionclient/workflow"
)

var fileIDFlag = cli.StringFlag{
	Name:  "file-id",
	Usage: "import a file already uploaded with this id",
}

// fileID returns the --file-id flag or uploads the file named on the
// command line.
func fileID(c *cli.Context, o *workflow.Orchestrator, upload uploadFunc) (string, error) {
	if id := c.String("file-id"); id != "" {
		return id, nil
	}
	if c.NArg() != 1 {
		return "", errors.New("need either --file-id or one file to upload")
	}
	path := c.Args().First()
	up, err := upload(o, env.Context, path)
	if err = reportUpload(path, up, err); err != nil {
		return "", err
	}
	if up.FileID == "" {
		return "", fmt.Errorf("%v: upload did not complete", path)
	}
	return up.FileID, nil
}

// reportWorkflow prints the outcome of an import workflow.
func reportWorkflow(result *platform.WorkflowResult, err error) error {
	if result == nil {
		return err
	}
	for _, id := range result.JobIDs {
		fmt.Fprintf(env.Out, "job %v\n", id)
	}
	if result.Succeeded {
		fmt.Fprintf(env.Out, "succeeded: %v\n", result.ProducedResourceID)
		return nil
	}
	fmt.Fprintf(env.Out, "failed: %v\n", result.FailureReason)
	if err == nil {
		err = errors.New("import did not succeed")
	}
	return err
}

// parseLabelsMap turns "source=target" pairs into a map.
func parseLabelsMap(pairs []string) (map[string]string, error) {
	labels := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid label mapping %q, want source=target", pair)
		}
		labels[parts[0]] = parts[1]
	}
	return labels, nil
}

var importCommand = cli.Command{
	Name:  "import",
	Usage: "import uploaded archives as projects",
	Subcommands: []cli.Command{
		{
			Name:      "dataset",
			Usage:     "create a new project from a dataset archive",
			ArgsUsage: "[FILE]",
			Flags: []cli.Flag{
				fileIDFlag,
				cli.StringFlag{
					Name:  "name",
					Usage: "name of the new project",
				},
				cli.StringFlag{
					Name:  "task-type",
					Usage: "task type of the new project, such as detection",
				},
				cli.StringSliceFlag{
					Name:  "label",
					Usage: "label to import (may be repeated; default all)",
				},
			},
			Action: func(c *cli.Context) error {
				if c.String("name") == "" || c.String("task-type") == "" {
					return errors.New("--name and --task-type are required")
				}
				o, err := env.Orchestrator()
				if err != nil {
					return err
				}
				id, err := fileID(c, o, (*workflow.Orchestrator).UploadDataset)
				if err != nil {
					return err
				}
				var labels []restdata.Label
				for _, name := range c.StringSlice("label") {
					labels = append(labels, restdata.Label{Name: name})
				}
				return reportWorkflow(o.ImportDatasetAsProject(env.Context, id, workflow.NewProject{
					Name:     c.String("name"),
					TaskType: c.String("task-type"),
					Labels:   labels,
				}))
			},
		},
		{
			Name:      "into",
			Usage:     "add a dataset archive to an existing project",
			ArgsUsage: "[FILE]",
			Flags: []cli.Flag{
				fileIDFlag,
				cli.StringFlag{
					Name:  "project",
					Usage: "id of the project to import into",
				},
				cli.StringFlag{
					Name:  "dataset-name",
					Usage: "name of the new dataset",
				},
				cli.StringSliceFlag{
					Name:  "map",
					Usage: "map a dataset label to a project label, as source=target (may be repeated)",
				},
			},
			Action: func(c *cli.Context) error {
				if c.String("project") == "" || c.String("dataset-name") == "" {
					return errors.New("--project and --dataset-name are required")
				}
				labelsMap, err := parseLabelsMap(c.StringSlice("map"))
				if err != nil {
					return err
				}
				o, err := env.Orchestrator()
				if err != nil {
					return err
				}
				id, err := fileID(c, o, (*workflow.Orchestrator).UploadDataset)
				if err != nil {
					return err
				}
				return reportWorkflow(o.ImportDatasetIntoProject(env.Context, id, c.String("project"), c.String("dataset-name"), labelsMap))
			},
		},
		{
			Name:      "project",
			Usage:     "recreate a project from an exported project archive",
			ArgsUsage: "[FILE]",
			Flags: []cli.Flag{
				fileIDFlag,
				cli.StringFlag{
					Name:  "name",
					Usage: "name of the new project",
				},
			},
			Action: func(c *cli.Context) error {
				if c.String("name") == "" {
					return errors.New("--name is required")
				}
				o, err := env.Orchestrator()
				if err != nil {
					return err
				}
				id, err := fileID(c, o, (*workflow.Orchestrator).UploadProject)
				if err != nil {
					return err
				}
				return reportWorkflow(o.ImportProject(env.Context, id, c.String("name")))
			},
		},
	},
}

var jobCommand = cli.Command{
	Name:  "job",
	Usage: "inspect platform jobs",
	Subcommands: []cli.Command{
		{
			Name:      "status",
			Usage:     "show a job's current state",
			ArgsUsage: "JOB-ID",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return errors.New("expected exactly one job id")
				}
				p, err := env.Poller()
				if err != nil {
					return err
				}
				job, err := p.PollOnce(env.Context, c.Args().First())
				if err != nil {
					return err
				}
				printJob(job)
				return nil
			},
		},
		{
			Name:      "wait",
			Usage:     "wait for a job to finish",
			ArgsUsage: "JOB-ID",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return errors.New("expected exactly one job id")
				}
				p, err := env.Poller()
				if err != nil {
					return err
				}
				job, err := p.PollUntilTerminal(env.Context, c.Args().First(), env.Config.PollInterval, env.Config.MaxAttempts)
				if job != nil {
					printJob(job)
				}
				if err == nil && job.State != platform.JobFinished {
					err = &platform.JobError{JobID: job.ID, State: job.State, Job: job}
				}
				return err
			},
		},
	},
}

func printJob(job *platform.Job) {
	fmt.Fprintf(env.Out, "%v\t%v\t%v\n", job.ID, job.Type, job.State)
	for _, step := range job.Steps {
		fmt.Fprintf(env.Out, "  %v\t%.0f%%\n", step.Name, platform.ClampProgress(step.Progress))
	}
}
