// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/urfave/cli"

	"github.com/diffeo/go-visionclient/project"
	"github.com/diffeo/go-visionclient/restdata"
)

func projectAndArg(c *cli.Context, what string) (*project.Client, string, error) {
	if c.NArg() != 1 {
		return nil, "", fmt.Errorf("expected exactly one %v", what)
	}
	client, err := env.Projects()
	return client, c.Args().First(), err
}

var projectCommand = cli.Command{
	Name:  "project",
	Usage: "list, inspect, and create projects",
	Subcommands: []cli.Command{
		{
			Name:  "list",
			Usage: "list the workspace's projects",
			Action: func(c *cli.Context) error {
				client, err := env.Projects()
				if err != nil {
					return err
				}
				projects, err := client.List(env.Context)
				if err != nil {
					return err
				}
				for _, p := range projects {
					fmt.Fprintf(env.Out, "%v\t%v\n", p.ID, p.Name)
				}
				return nil
			},
		},
		{
			Name:      "get",
			Usage:     "print a project as JSON",
			ArgsUsage: "PROJECT-ID",
			Action: func(c *cli.Context) error {
				client, id, err := projectAndArg(c, "project id")
				if err != nil {
					return err
				}
				p, err := client.Get(env.Context, id)
				if err != nil {
					return err
				}
				return restdata.Encode(env.Out, p)
			},
		},
		{
			Name:      "labels",
			Usage:     "list a project's labels",
			ArgsUsage: "PROJECT-ID",
			Action: func(c *cli.Context) error {
				client, id, err := projectAndArg(c, "project id")
				if err != nil {
					return err
				}
				p, err := client.Get(env.Context, id)
				if err != nil {
					return err
				}
				labels := project.Labels(p)
				names := make([]string, 0, len(labels))
				for name := range labels {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(env.Out, "%v\t%v\n", labels[name], name)
				}
				return nil
			},
		},
		{
			Name:  "create",
			Usage: "create a single-task project",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "name",
					Usage: "project name",
				},
				cli.StringFlag{
					Name:  "task-type",
					Usage: "task type, such as detection or classification",
				},
				cli.StringFlag{
					Name:  "task-title",
					Usage: "task title (default the task type)",
				},
				cli.StringSliceFlag{
					Name:  "label",
					Usage: "label name (may be repeated)",
				},
			},
			Action: func(c *cli.Context) error {
				if c.String("name") == "" || c.String("task-type") == "" {
					return errors.New("--name and --task-type are required")
				}
				client, err := env.Projects()
				if err != nil {
					return err
				}
				title := c.String("task-title")
				if title == "" {
					title = c.String("task-type")
				}
				var labels []restdata.Label
				for _, name := range c.StringSlice("label") {
					labels = append(labels, restdata.Label{Name: name})
				}
				p, err := client.Create(env.Context, c.String("name"), project.SingleTaskPipeline(c.String("task-type"), title, labels))
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%v\t%v\n", p.ID, p.Name)
				return nil
			},
		},
	},
}

var mediaCommand = cli.Command{
	Name:  "media",
	Usage: "manage project media",
	Subcommands: []cli.Command{
		{
			Name:      "upload",
			Usage:     "upload images and videos into a project dataset",
			ArgsUsage: "FILE...",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "project",
					Usage: "project id",
				},
				cli.StringFlag{
					Name:  "dataset",
					Usage: "dataset id (default the project's first dataset)",
				},
				cli.StringSliceFlag{
					Name:  "label",
					Usage: "label name to apply to every file (may be repeated)",
				},
				cli.IntFlag{
					Name:  "concurrency",
					Value: 4,
					Usage: "number of files to upload at once",
				},
			},
			Action: func(c *cli.Context) error {
				if c.String("project") == "" {
					return errors.New("--project is required")
				}
				if c.NArg() == 0 {
					return errors.New("no files to upload")
				}
				client, err := env.Projects()
				if err != nil {
					return err
				}
				p, err := client.Get(env.Context, c.String("project"))
				if err != nil {
					return err
				}
				dataset := c.String("dataset")
				if dataset == "" {
					if dataset, err = project.DefaultDataset(p); err != nil {
						return err
					}
				}
				labelIDs, err := project.LabelIDs(p, c.StringSlice("label"))
				if err != nil {
					return err
				}

				results := client.UploadMediaFiles(env.Context, project.MediaUpload{
					ProjectID: p.ID,
					DatasetID: dataset,
					LabelIDs:  labelIDs,
				}, c.Args(), c.Int("concurrency"))
				failed := 0
				for _, result := range results {
					if result.Err != nil {
						failed++
						fmt.Fprintf(env.Out, "%v: %v\n", result.Path, result.Err)
						continue
					}
					fmt.Fprintf(env.Out, "%v: %v %v\n", result.Path, result.Media.Type, result.Media.ID)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d uploads failed", failed, len(results))
				}
				return nil
			},
		},
	},
}

var predictCommand = cli.Command{
	Name:      "predict",
	Usage:     "run a project's model on an image",
	ArgsUsage: "FILE",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "project",
			Usage: "project id",
		},
		cli.BoolFlag{
			Name:  "raw",
			Usage: "print the platform's JSON response",
		},
	},
	Action: func(c *cli.Context) error {
		if c.String("project") == "" {
			return errors.New("--project is required")
		}
		client, path, err := projectAndArg(c, "file")
		if err != nil {
			return err
		}
		prediction, err := client.Predict(env.Context, c.String("project"), path)
		if err != nil {
			return err
		}
		if c.Bool("raw") {
			_, err = fmt.Fprintf(env.Out, "%s\n", prediction.Raw)
			return err
		}
		fmt.Fprintf(env.Out, "%d predictions\n", prediction.Count())
		for _, label := range prediction.Labels() {
			fmt.Fprintf(env.Out, "%v\t%v\t%.3f\n", label.Name, label.Shape, label.Probability)
		}
		return nil
	},
}
