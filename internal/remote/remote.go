// Package remote packages projects on a remote packaging service.
package remote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/morrisclay/sb3pack/internal/api"
	"github.com/morrisclay/sb3pack/internal/logger"
	"github.com/morrisclay/sb3pack/internal/model"
	"github.com/morrisclay/sb3pack/internal/packager"
	"github.com/morrisclay/sb3pack/internal/stream"
	"github.com/morrisclay/sb3pack/internal/ws"
)

// DefaultPollInterval is used when the service offers no event stream.
const DefaultPollInterval = time.Second

// JobError is returned when the service reports a failed job.
type JobError struct {
	JobID   string
	Message string
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("packaging job %s failed", e.JobID)
	}
	return fmt.Sprintf("packaging job %s failed: %s", e.JobID, e.Message)
}

// Packager submits projects to a remote service.
type Packager struct {
	Client       *api.Client
	PollInterval time.Duration
	OnProgress   func(packager.Progress)
}

// New creates a remote packager.
func New(client *api.Client) *Packager {
	return &Packager{Client: client, PollInterval: DefaultPollInterval}
}

// eventSource is the part of ws.Client and stream.Client used here.
type eventSource interface {
	Connect(ctx context.Context) error
	Done() <-chan struct{}
	Close() error
}

// Package uploads projectData with opts, waits for the job to finish, and
// downloads the result.
func (p *Packager) Package(ctx context.Context, projectData []byte, opts packager.Options, filename string) (*packager.Result, error) {
	log := logger.FromContext(ctx)

	rawOpts, err := opts.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}

	job, err := p.Client.SubmitJob(ctx, model.JobRequest{
		Project:  base64.StdEncoding.EncodeToString(projectData),
		Options:  rawOpts,
		Filename: filename,
	})
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.IsTooLarge() {
			return nil, fmt.Errorf("project is too large for %s: %w", p.Client.Host(), err)
		}
		return nil, fmt.Errorf("submitting job: %w", err)
	}
	log.Info("remote.job.submitted", "job", job.ID, "host", p.Client.Host(), "events", job.EventsURL)

	if job.EventsURL != "" {
		err = p.follow(ctx, job)
	} else {
		err = p.poll(ctx, job)
	}
	if err != nil {
		return nil, err
	}

	data, contentType, err := p.Client.DownloadArtifact(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("downloading artifact: %w", err)
	}
	log.Info("remote.job.downloaded", "job", job.ID, "bytes", len(data), "type", contentType)

	p.progress(packager.Progress{Phase: packager.PhaseDone, Loaded: int64(len(data)), Total: int64(len(data))})
	return &packager.Result{
		Type:     contentType,
		Data:     data,
		Filename: filename,
		BuildID:  job.ID,
	}, nil
}

// follow consumes the job's event stream until it reports done or error.
func (p *Packager) follow(ctx context.Context, job *model.Job) error {
	eventsURL, err := p.Client.ResolveURL(job.EventsURL)
	if err != nil {
		return fmt.Errorf("events url: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered so the reader goroutine never blocks on the final event
	result := make(chan error, 1)
	finish := func(err error) {
		select {
		case result <- err:
		default:
		}
	}
	onEvent := func(ev model.JobEvent) {
		switch ev.Type {
		case model.EventProgress:
			p.progress(packager.Progress{Phase: packager.Phase(ev.Phase), Loaded: ev.Loaded, Total: ev.Total})
		case model.EventDone:
			finish(nil)
		case model.EventError:
			finish(&JobError{JobID: job.ID, Message: ev.Message})
		}
	}
	onError := func(err error) {
		logger.FromContext(ctx).Warn("remote.events.error", "job", job.ID, "err", err)
	}

	src, err := p.newEventSource(eventsURL, onEvent, onError)
	if err != nil {
		return err
	}
	if err := src.Connect(ctx); err != nil {
		// fall back to polling when the stream is unavailable
		logger.FromContext(ctx).Warn("remote.events.connect_failed", "job", job.ID, "err", err)
		return p.poll(ctx, job)
	}
	defer src.Close()

	select {
	case err := <-result:
		return err
	case <-src.Done():
		// the stream ended without a verdict; ask the API
		select {
		case err := <-result:
			return err
		default:
		}
		return p.poll(ctx, job)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Packager) newEventSource(eventsURL string, onEvent func(model.JobEvent), onError func(error)) (eventSource, error) {
	u, err := url.Parse(eventsURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "ws", "wss":
		c := ws.NewClient(eventsURL, p.Client.APIKey())
		c.OnEvent = onEvent
		c.OnError = onError
		return c, nil
	case "http", "https":
		c := stream.NewClient(eventsURL, p.Client.APIKey())
		c.OnEvent = onEvent
		c.OnError = onError
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported events url scheme %q", u.Scheme)
	}
}

// poll asks for the job status until it is finished.
func (p *Packager) poll(ctx context.Context, job *model.Job) error {
	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	current := job
	for {
		if current.IsFinished() {
			if current.Status == model.JobStatusFailed {
				return &JobError{JobID: current.ID, Message: current.Error}
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		next, err := p.Client.GetJob(ctx, job.ID)
		if err != nil {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) && apiErr.IsNotFound() {
				return fmt.Errorf("job %s disappeared: %w", job.ID, err)
			}
			return fmt.Errorf("checking job: %w", err)
		}
		current = next
	}
}

func (p *Packager) progress(pr packager.Progress) {
	if p.OnProgress != nil {
		p.OnProgress(pr)
	}
}
