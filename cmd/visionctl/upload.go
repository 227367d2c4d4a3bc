// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/urfave/cli"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/workflow"
)

// progressPrinter writes a line each time an upload's whole-percent
// progress changes.
type progressPrinter struct {
	w    io.Writer
	lock sync.Mutex
	last map[string]int64
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, last: make(map[string]int64)}
}

func (p *progressPrinter) Report(filename string, sent, total int64) {
	percent := int64(100)
	if total > 0 {
		percent = sent * 100 / total
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if last, ok := p.last[filename]; ok && last == percent {
		return
	}
	p.last[filename] = percent
	fmt.Fprintf(p.w, "%v: %d%% (%d/%d bytes)\n", filename, percent, sent, total)
}

// reportUpload prints the outcome of an upload.  A paused upload is
// not an error if its handle was saved.
func reportUpload(path string, up *workflow.Upload, err error) error {
	if up == nil {
		return err
	}
	if up.Handle == nil {
		if err == nil {
			fmt.Fprintf(env.Out, "%v: uploaded as file %v\n", path, up.FileID)
		}
		return err
	}
	switch up.Handle.Status {
	case platform.UploadCompleted:
		fmt.Fprintf(env.Out, "%v: uploaded as file %v\n", path, up.FileID)
		return nil
	case platform.UploadCanceled:
		fmt.Fprintf(env.Out, "%v: upload canceled\n", path)
		return err
	}
	fmt.Fprintf(env.Out, "%v: upload %v at %d of %d bytes\n", path, up.Handle.Status, up.Handle.BytesSent, up.Handle.TotalSize)
	if env.Store != nil && up.Handle.ResourceURL != "" {
		fmt.Fprintf(env.Out, "%v: run \"visionctl upload resume %v\" to continue\n", path, path)
	}
	return err
}

type uploadFunc func(*workflow.Orchestrator, context.Context, string) (*workflow.Upload, error)

func uploadAction(upload uploadFunc) func(*cli.Context) error {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("expected exactly one file to upload")
		}
		o, err := env.Orchestrator()
		if err != nil {
			return err
		}
		path := c.Args().First()
		up, err := upload(o, env.Context, path)
		return reportUpload(path, up, err)
	}
}

var uploadCommand = cli.Command{
	Name:  "upload",
	Usage: "upload dataset or project archives",
	Subcommands: []cli.Command{
		{
			Name:      "dataset",
			Usage:     "upload a dataset archive",
			ArgsUsage: "FILE",
			Action:    uploadAction((*workflow.Orchestrator).UploadDataset),
		},
		{
			Name:      "project",
			Usage:     "upload an exported project archive",
			ArgsUsage: "FILE",
			Action:    uploadAction((*workflow.Orchestrator).UploadProject),
		},
		{
			Name:      "resume",
			Usage:     "continue an interrupted resumable upload",
			ArgsUsage: "FILE",
			Action: uploadAction(func(o *workflow.Orchestrator, ctx context.Context, path string) (*workflow.Upload, error) {
				return o.ResumeUpload(ctx, path, nil)
			}),
		},
		{
			Name:      "cancel",
			Usage:     "terminate an interrupted resumable upload",
			ArgsUsage: "FILE",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return errors.New("expected exactly one file")
				}
				o, err := env.Orchestrator()
				if err != nil {
					return err
				}
				path := c.Args().First()
				canceled, err := o.CancelUpload(env.Context, path, nil)
				if err != nil {
					return err
				}
				if canceled {
					fmt.Fprintf(env.Out, "%v: upload canceled\n", path)
				} else {
					fmt.Fprintf(env.Out, "%v: upload was not canceled\n", path)
				}
				return nil
			},
		},
		{
			Name:  "list",
			Usage: "list unfinished uploads in the store",
			Action: func(c *cli.Context) error {
				o := workflow.New(nil)
				o.Store = env.Store
				pending, err := o.PendingUploads(env.Context)
				if err != nil {
					return err
				}
				paths := make([]string, 0, len(pending))
				for path := range pending {
					paths = append(paths, path)
				}
				sort.Strings(paths)
				for _, path := range paths {
					h := pending[path]
					fmt.Fprintf(env.Out, "%v\t%v\t%d/%d\t%v\n", path, h.Status, h.BytesSent, h.TotalSize, h.ResourceURL)
				}
				return nil
			},
		},
	},
}
