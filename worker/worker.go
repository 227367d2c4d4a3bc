// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package worker runs a batch of independent tasks with bounded
// concurrency.  It is used for bulk operations such as uploading a
// directory of media files, where each file is its own request and one
// failure should not stop the rest.
package worker

import (
	"context"
	"runtime"

	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// Task is a single unit of work.
type Task struct {
	// Name identifies the task in results and logs, for instance
	// a file path.
	Name string

	// Run performs the task.  The context is canceled if the
	// whole batch is.
	Run func(ctx context.Context) error
}

// Result is the outcome of one task.
type Result struct {
	Name string
	Err  error
}

// Worker runs tasks.
type Worker struct {
	// Concurrency states how many tasks should run in parallel.
	// If unset, uses runtime.NumCPU().
	Concurrency int

	// ErrorHandler, if non-nil, is called with the name of every
	// task that fails, as it fails.
	ErrorHandler func(name string, err error)

	// Logger receives task completions.  If unset, uses the
	// logrus standard logger.
	Logger logrus.FieldLogger

	// childWorkers identifies the child workers, each of which
	// runs one task at a time.
	childWorkers map[string]bool

	// idleWorkers is an unordered list of child worker IDs that
	// do not have work.
	idleWorkers []string
}

// setDefaults sets default values for any Worker fields that are
// uninitialized.
func (w *Worker) setDefaults() {
	if w.Concurrency <= 0 {
		w.Concurrency = runtime.NumCPU()
	}
	if w.Logger == nil {
		w.Logger = logrus.StandardLogger()
	}
	w.childWorkers = make(map[string]bool)
	w.idleWorkers = nil
}

// finishedTask is sent by a child when its task returns.
type finishedTask struct {
	child string
	index int
	err   error
}

// Run runs every task and returns their results in task order.  If ctx
// is canceled, tasks not yet started are not run and report the
// context's error; Run still waits for running tasks to return.
func (w *Worker) Run(ctx context.Context, tasks []Task) []Result {
	w.setDefaults()
	results := make([]Result, len(tasks))
	for i, task := range tasks {
		results[i].Name = task.Name
	}

	// This channel is signaled at the end of doWork() with the
	// child ID and the task outcome.
	finished := make(chan finishedTask)

	next := 0
	running := 0
	start := func() {
		for next < len(tasks) && ctx.Err() == nil {
			child := w.getIdleChild()
			if child == "" {
				return
			}
			go w.doWork(ctx, child, next, tasks[next], finished)
			next++
			running++
		}
	}
	start()

	done := ctx.Done()
	for running > 0 {
		select {
		case <-done:
			// Stop handing out work, but collect the
			// children still running
			done = nil

		case f := <-finished:
			running--
			results[f.index].Err = f.err
			w.report(tasks[f.index].Name, f.err)
			w.returnIdleChild(f.child)
			start()
		}
	}

	for i := next; i < len(tasks); i++ {
		results[i].Err = ctx.Err()
	}
	return results
}

// getIdleChild returns the ID of a child worker that is not currently
// doing anything, creating one if there is room, or an empty string if
// every child is busy.  Removes the returned worker from the idle
// workers list.
func (w *Worker) getIdleChild() string {
	if len(w.idleWorkers) > 0 {
		child := w.idleWorkers[0]
		w.idleWorkers = w.idleWorkers[1:]
		return child
	}
	if len(w.childWorkers) < w.Concurrency {
		id := uuid.NewV4().String()
		w.childWorkers[id] = true
		return id
	}
	return ""
}

// returnIdleChild puts a child worker back into the idle children
// list.
func (w *Worker) returnIdleChild(id string) {
	w.idleWorkers = append(w.idleWorkers, id)
}

// doWork runs one task.  It assumes it is running in its own
// goroutine, and signals finished immediately before returning.
func (w *Worker) doWork(ctx context.Context, child string, index int, task Task, finished chan<- finishedTask) {
	taskCtx, cancellation := context.WithCancel(ctx)
	defer cancellation()
	err := task.Run(taskCtx)
	finished <- finishedTask{child: child, index: index, err: err}
}

func (w *Worker) report(name string, err error) {
	if err == nil {
		w.Logger.WithField("task", name).Debug("task done")
		return
	}
	w.Logger.WithError(err).WithField("task", name).Warn("task failed")
	if w.ErrorHandler != nil {
		w.ErrorHandler(name, err)
	}
}
