package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Poller repeatedly fetches a job's status until its results are ready.
type Poller struct {
	http        Doer
	apiKey      string
	maxAttempts int
	logger      zerolog.Logger
}

// NewPoller creates a poller using cfg's transport, key and attempt limit.
func NewPoller(cfg Config) (*Poller, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return newPoller(cfg), nil
}

func newPoller(cfg Config) *Poller {
	return &Poller{
		http:        cfg.HTTPClient,
		apiKey:      cfg.APIKey,
		maxAttempts: cfg.MaxPollAttempts,
		logger:      *cfg.Logger,
	}
}

// Poll blocks until job is ready and returns its results in input order.
// Pending and malformed responses are retried every interval. Polling stops
// early only when ctx ends or the configured attempt limit is reached.
func (p *Poller) Poll(ctx context.Context, job Job, interval time.Duration) ([]json.RawMessage, error) {
	return p.poll(ctx, job, interval, nil)
}

func (p *Poller) poll(ctx context.Context, job Job, interval time.Duration, prog *progress) ([]json.RawMessage, error) {
	target, err := withAPIKey(job.Handle, p.apiKey)
	if err != nil {
		return nil, &ProtocolError{Chunk: job.Chunk, Start: job.Start, End: job.End, Message: "invalid job handle", Err: err}
	}
	handle := RedactHandle(job.Handle)

	for attempt := 1; ; attempt++ {
		status := p.fetch(ctx, target)
		pollsTotal.WithLabelValues(status.Kind.String()).Inc()

		switch status.Kind {
		case StatusReady:
			if n := job.Size(); n > 0 && len(status.Results) != n {
				return nil, &ProtocolError{
					Chunk:   job.Chunk,
					Start:   job.Start,
					End:     job.End,
					Message: fmt.Sprintf("job returned %d results for %d inputs", len(status.Results), n),
				}
			}
			prog.done(job)
			return status.Results, nil

		case StatusPending:
			p.logger.Debug().
				Str("handle", handle).
				Int("attempt", attempt).
				Dur("interval", interval).
				Msg("Job pending")

		default:
			p.logger.Warn().
				Str("handle", handle).
				Int("attempt", attempt).
				Str("status", status.Kind.String()).
				Str("reason", status.Reason).
				Msg("Unexpected job status response, will retry")
		}

		if p.maxAttempts > 0 && attempt >= p.maxAttempts {
			return nil, &PollError{Handle: handle, Chunk: job.Chunk, Attempts: attempt, Err: ErrPollAttemptsExhausted}
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &PollError{Handle: handle, Chunk: job.Chunk, Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// fetch performs one status GET. Transport and decoding problems are reported
// as StatusMalformed so the caller keeps polling.
func (p *Poller) fetch(ctx context.Context, target string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Status{Kind: StatusMalformed, Reason: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return Status{Kind: StatusMalformed, Reason: fmt.Sprintf("transport: %v", stripURL(err))}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Status{Kind: StatusMalformed, Reason: fmt.Sprintf("read body: %v", err)}
	}

	return decodeStatus(body)
}
