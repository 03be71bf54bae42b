// Package jobs starts asynchronous Storage API jobs and waits for them.
//
// Waiting uses capped exponential backoff driven by a timer, so a poll loop
// never spins. A job that is still running when the wait budget runs out
// yields errors.ErrJobTimeout; the job itself keeps running on the server
// and can be polled again later.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/internal/api"
	"github.com/kbcstorage/storage-go/storagetypes"
)

const (
	// DefaultInterval is the delay before the second status query.
	DefaultInterval = time.Second
	// DefaultMaxInterval caps the delay between status queries.
	DefaultMaxInterval = 20 * time.Second
	// DefaultMaxWait bounds the total time spent waiting for one job.
	DefaultMaxWait = 30 * time.Minute
)

// Requester is the subset of the Storage API transport used by the poller.
type Requester interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	PostForm(ctx context.Context, path string, form url.Values, out any) error
}

// Config controls how a job is waited for. Zero fields take the defaults.
type Config struct {
	Interval    time.Duration
	MaxInterval time.Duration
	MaxWait     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultMaxInterval
	}
	if c.MaxInterval < c.Interval {
		c.MaxInterval = c.Interval
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	return c
}

// Poller starts jobs and drives them to a terminal state.
type Poller struct {
	api    Requester
	logger *slog.Logger
}

// New creates a Poller.
func New(api Requester, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{api: api, logger: logger}
}

// Start posts form to an asynchronous endpoint and returns the created job.
func (p *Poller) Start(ctx context.Context, path string, form url.Values) (*storagetypes.Job, error) {
	var job storagetypes.Job
	if err := p.api.PostForm(ctx, path, form, &job); err != nil {
		return nil, errors.NewError("job.start", err).WithStatus(api.StatusCode(err))
	}
	if job.ID == 0 {
		return nil, errors.NewError("job.start", errors.ErrInvalidResponse).
			WithMessage("response carries no job id")
	}

	p.logger.DebugContext(ctx, "job started",
		"job_id", job.ID,
		"operation", job.Operation,
		"status", job.Status)

	return &job, nil
}

// Status queries the current state of a job once.
func (p *Poller) Status(ctx context.Context, jobID int64) (*storagetypes.Job, error) {
	var job storagetypes.Job
	if err := p.api.Get(ctx, fmt.Sprintf("jobs/%d", jobID), nil, &job); err != nil {
		return nil, errors.NewJobError("job.status", jobID, err).WithStatus(api.StatusCode(err))
	}
	return &job, nil
}

// RunToCompletion polls a job until it succeeds, fails or the wait budget
// runs out.
//
// On success the final job is returned. A failed job yields an error
// matching errors.ErrJobFailed that carries the server message as a
// *errors.JobFailure; an exhausted budget yields errors.ErrJobTimeout. In
// both cases the last observed job is returned alongside the error.
func (p *Poller) RunToCompletion(ctx context.Context, jobID int64, cfg Config) (*storagetypes.Job, error) {
	cfg = cfg.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Interval
	b.MaxInterval = cfg.MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	deadline := time.Now().Add(cfg.MaxWait)
	polls := 0

	for {
		job, err := p.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		polls++

		switch job.Status {
		case storagetypes.JobSuccess:
			p.logger.DebugContext(ctx, "job finished",
				"job_id", jobID, "operation", job.Operation, "polls", polls)
			return job, nil

		case storagetypes.JobErrored:
			failure := &errors.JobFailure{JobID: jobID}
			if job.Error != nil {
				failure.Message = job.Error.Message
				failure.Code = job.Error.Code
			}
			p.logger.WarnContext(ctx, "job failed",
				"job_id", jobID, "operation", job.Operation, "message", failure.Message)
			return job, errors.NewJobError("job.wait", jobID, failure)

		case storagetypes.JobWaiting, storagetypes.JobProcessing:

		default:
			return job, errors.NewJobError("job.wait", jobID, errors.ErrInvalidResponse).
				WithMessage(fmt.Sprintf("unknown job status %q", job.Status))
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.logger.WarnContext(ctx, "job wait budget exhausted",
				"job_id", jobID, "status", job.Status, "max_wait", cfg.MaxWait)
			return job, errors.NewJobError("job.wait", jobID, errors.ErrJobTimeout).
				WithMessage(fmt.Sprintf("still %s after %s", job.Status, cfg.MaxWait))
		}

		wait := min(b.NextBackOff(), remaining)
		p.logger.DebugContext(ctx, "job pending",
			"job_id", jobID, "status", job.Status, "next_poll", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.NewJobError("job.wait", jobID, ctx.Err())
		case <-timer.C:
		}
	}
}
