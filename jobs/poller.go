// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package jobs polls asynchronous platform jobs until they reach a
// terminal state.
//
// A job moves from pending to running and then to exactly one of
// finished, failed or canceled.  The Poller treats any other state
// string as an intermediate state and keeps polling.  Once a job is
// seen in a terminal state it is cached, and further polls of the same
// job id return the cached job without contacting the server.
//
// Waiting between polls goes through a clock.Clock, so tests can drive
// the poller with clock.NewMock() instead of sleeping.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
)

// DefaultCacheSize is the number of terminal jobs a Poller remembers.
const DefaultCacheSize = 256

// Poller queries job status.  It is safe for concurrent use; polls of
// the same job id are serialized, polls of different jobs are not.
type Poller struct {
	// Transport issues the status requests.
	Transport platform.Transport

	// Clock times the waits between polls.
	Clock clock.Clock

	// Logger receives step progress.
	Logger logrus.FieldLogger

	// Observer, if non-nil, is called with every job the poller
	// observes, including cached terminal jobs.  It must not
	// block for long.
	Observer func(*platform.Job)

	cache *lru

	locksLock sync.Mutex
	locks     map[string]*jobLock
}

// jobLock serializes polls of one job.  refs counts the goroutines
// holding or waiting for it, so the entry can be dropped when idle.
type jobLock struct {
	sync.Mutex
	refs int
}

// New creates a poller using the wall clock.
func New(transport platform.Transport) *Poller {
	return NewWithClock(transport, clock.New())
}

// NewWithClock creates a poller using a specified time source.
func NewWithClock(transport platform.Transport, clk clock.Clock) *Poller {
	return &Poller{
		Transport: transport,
		Clock:     clk,
		Logger:    logrus.StandardLogger(),
		cache:     newLRU(DefaultCacheSize),
		locks:     make(map[string]*jobLock),
	}
}

func (p *Poller) lock(jobID string) func() {
	p.locksLock.Lock()
	l := p.locks[jobID]
	if l == nil {
		l = &jobLock{}
		p.locks[jobID] = l
	}
	l.refs++
	p.locksLock.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.locksLock.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, jobID)
		}
		p.locksLock.Unlock()
	}
}

// PollOnce performs a single status query for a job.  A terminal job
// already seen by this poller is returned without a query.
func (p *Poller) PollOnce(ctx context.Context, jobID string) (*platform.Job, error) {
	defer p.lock(jobID)()
	return p.poll(ctx, jobID)
}

// PollUntilTerminal polls a job until it reaches a terminal state,
// issuing at most maxAttempts queries (at least one) and waiting
// interval between consecutive queries.  A terminal job is returned
// with a nil error whatever its state; deciding what a failed job
// means is up to the caller.  If the attempts run out, the result is
// a *platform.PollingTimeout along with the last observed job.  A
// transport or API error stops polling immediately, and is returned
// with the job as of the previous poll, if there was one.
func (p *Poller) PollUntilTerminal(ctx context.Context, jobID string, interval time.Duration, maxAttempts int) (*platform.Job, error) {
	defer p.lock(jobID)()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var job *platform.Job
	for attempt := 1; ; attempt++ {
		next, err := p.poll(ctx, jobID)
		if err != nil {
			return job, err
		}
		job = next
		if job.State.Terminal() {
			return job, nil
		}
		if attempt >= maxAttempts {
			pollTimeouts.Inc()
			return job, &platform.PollingTimeout{
				JobID:    jobID,
				Attempts: attempt,
				Last:     job,
			}
		}
		if err := p.wait(ctx, interval); err != nil {
			return job, err
		}
	}
}

// Forget drops a job from the terminal cache, so that the next poll
// queries the server again.
func (p *Poller) Forget(jobID string) {
	p.cache.Remove(jobID)
}

func (p *Poller) wait(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.Clock.After(interval):
		return nil
	}
}

// poll is PollOnce without the lock.
func (p *Poller) poll(ctx context.Context, jobID string) (*platform.Job, error) {
	if cached := p.cache.Get(jobID); cached != nil {
		job := cached.Copy()
		p.report(job)
		return job, nil
	}

	var status restdata.JobStatus
	err := p.Transport.GetFrom(ctx, restdata.JobURL, platform.Vars{"job_id": jobID}, &status)
	if err != nil {
		observePoll("error")
		return nil, err
	}
	job := status.ToJob(jobID)
	if job.State.Known() {
		observePoll(string(job.State))
	} else {
		observePoll("unknown")
	}
	if job.State.Terminal() {
		p.cache.Put(job.Copy())
	}
	p.report(job)
	return job, nil
}

// report surfaces a job's progress.  It never affects control flow.
func (p *Poller) report(job *platform.Job) {
	fields := logrus.Fields{
		"job":   job.ID,
		"state": job.State,
	}
	if step, ok := job.FirstStep(); ok {
		fields["step"] = step.Name
		fields["progress"] = step.Progress
	}
	p.Logger.WithFields(fields).Info("job status")
	if p.Observer != nil {
		p.Observer(job)
	}
}
