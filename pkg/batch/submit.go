package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/huels-originals/geobatch/pkg/ratelimit"
)

// defaultFormat is the output format requested unless params override it.
const defaultFormat = "json"

// jobRequest is the job creation body.
type jobRequest struct {
	API    string            `json:"api"`
	Params map[string]string `json:"params"`
	Inputs []jobInput        `json:"inputs"`
}

type jobInput struct {
	Params Item `json:"params"`
}

// jobResponse is the part of the job creation response we read.
type jobResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Submitter creates one remote job per chunk.
type Submitter struct {
	http     Doer
	url      string
	throttle *ratelimit.Throttle
	logger   zerolog.Logger
}

// NewSubmitter creates a submitter posting to cfg's batch endpoint.
func NewSubmitter(cfg Config) (*Submitter, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return newSubmitter(cfg), nil
}

func newSubmitter(cfg Config) *Submitter {
	return &Submitter{
		http:     cfg.HTTPClient,
		url:      cfg.batchURL(),
		throttle: ratelimit.NewThrottle(cfg.SubmitDelay),
		logger:   *cfg.Logger,
	}
}

// SubmitAll submits chunks in order and returns their jobs in the same order.
// The first failure aborts: later chunks are not submitted and the returned
// error names the failed chunk's input range.
func (s *Submitter) SubmitAll(ctx context.Context, api string, params map[string]string, chunks []Chunk) ([]Job, error) {
	merged := mergeParams(params)
	jobs := make([]Job, 0, len(chunks))

	for _, chunk := range chunks {
		if err := s.throttle.Wait(ctx); err != nil {
			submitFailuresTotal.WithLabelValues("transport").Inc()
			return nil, &TransportError{Chunk: chunk.Index, Start: chunk.Start, End: chunk.End, Err: err}
		}

		job, err := s.submit(ctx, api, merged, chunk)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("api", api).
				Int("chunk", chunk.Index).
				Int("start", chunk.Start).
				Int("end", chunk.End).
				Msg("Job submission failed, aborting batch")
			return nil, err
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

// SubmitChunk creates the job for a single chunk.
func (s *Submitter) SubmitChunk(ctx context.Context, api string, params map[string]string, chunk Chunk) (Job, error) {
	if err := s.throttle.Wait(ctx); err != nil {
		return Job{}, &TransportError{Chunk: chunk.Index, Start: chunk.Start, End: chunk.End, Err: err}
	}
	return s.submit(ctx, api, mergeParams(params), chunk)
}

func (s *Submitter) submit(ctx context.Context, api string, params map[string]string, chunk Chunk) (Job, error) {
	inputs := make([]jobInput, len(chunk.Items))
	for i, item := range chunk.Items {
		inputs[i] = jobInput{Params: item}
	}

	body, err := json.Marshal(jobRequest{API: api, Params: params, Inputs: inputs})
	if err != nil {
		return Job{}, invalidArgument("encode chunk %d: %v", chunk.Index, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Job{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		submitFailuresTotal.WithLabelValues("transport").Inc()
		return Job{}, &TransportError{Chunk: chunk.Index, Start: chunk.Start, End: chunk.End, Err: stripURL(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		submitFailuresTotal.WithLabelValues("transport").Inc()
		return Job{}, &TransportError{Chunk: chunk.Index, Start: chunk.Start, End: chunk.End, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		submitFailuresTotal.WithLabelValues("status").Inc()
		return Job{}, &JobCreationError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Chunk:      chunk.Index,
			Start:      chunk.Start,
			End:        chunk.End,
		}
	}

	var jr jobResponse
	if err := json.Unmarshal(respBody, &jr); err != nil {
		submitFailuresTotal.WithLabelValues("protocol").Inc()
		return Job{}, &ProtocolError{Chunk: chunk.Index, Start: chunk.Start, End: chunk.End, Message: "decode job response", Err: err}
	}
	if jr.URL == "" {
		submitFailuresTotal.WithLabelValues("protocol").Inc()
		return Job{}, &ProtocolError{Chunk: chunk.Index, Start: chunk.Start, End: chunk.End, Message: "job response has no url"}
	}

	jobsSubmittedTotal.WithLabelValues(api).Inc()
	itemsSubmittedTotal.WithLabelValues(api).Add(float64(chunk.Len()))

	job := Job{Handle: jr.URL, Chunk: chunk.Index, Start: chunk.Start, End: chunk.End}

	s.logger.Info().
		Str("api", api).
		Int("chunk", chunk.Index).
		Int("start", chunk.Start).
		Int("end", chunk.End).
		Str("handle", RedactHandle(job.Handle)).
		Msg("Job submitted")

	return job, nil
}

// mergeParams returns {format: json} overlaid with params.
func mergeParams(params map[string]string) map[string]string {
	merged := map[string]string{"format": defaultFormat}
	maps.Copy(merged, params)
	return merged
}
