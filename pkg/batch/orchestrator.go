package batch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Orchestrator runs batches end to end: partition, submit, poll, reassemble.
type Orchestrator struct {
	config    Config
	submitter *Submitter
	poller    *Poller
	logger    zerolog.Logger
}

// jobOutcome is the result of polling one job.
type jobOutcome struct {
	index   int
	records []json.RawMessage
	err     error
}

// New creates an orchestrator. It returns ErrInvalidArgument when the API
// key is missing or the base URL is not http(s).
func New(cfg Config) (*Orchestrator, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		config:    cfg,
		submitter: newSubmitter(cfg),
		poller:    newPoller(cfg),
		logger:    *cfg.Logger,
	}, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// PollInterval returns the poll interval used for a batch of nItems inputs:
// Config.PollInterval when set, otherwise SleepInterval with Config.Backoff.
func (o *Orchestrator) PollInterval(nItems int) time.Duration {
	if o.config.PollInterval > 0 {
		return o.config.PollInterval
	}
	return SleepInterval(nItems, o.config.Backoff)
}

// SubmitAndCollect submits inputs as jobs of at most batchLen items on the
// given API route and returns one result record per input, in input order.
func (o *Orchestrator) SubmitAndCollect(ctx context.Context, api string, inputs []Item, params map[string]string, batchLen int) ([]json.RawMessage, error) {
	jobs, err := o.Submit(ctx, api, inputs, params, batchLen)
	if err != nil {
		return nil, err
	}
	return o.Collect(ctx, jobs, o.PollInterval(len(inputs)))
}

// Submit partitions inputs and creates one job per chunk, sequentially.
// Any failure aborts before the remaining chunks are sent.
func (o *Orchestrator) Submit(ctx context.Context, api string, inputs []Item, params map[string]string, batchLen int) ([]Job, error) {
	if api == "" {
		return nil, invalidArgument("api route is required")
	}

	chunks, err := Partition(inputs, batchLen)
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("api", api).
		Int("items", len(inputs)).
		Int("chunks", len(chunks)).
		Int("batch_len", ClampBatchLen(batchLen)).
		Msg("Submitting batch")

	return o.submitter.SubmitAll(ctx, api, params, chunks)
}

// Collect polls jobs concurrently and returns their results concatenated in
// job order, regardless of completion order. A non-positive interval is
// derived from the jobs' total size. The first polling error cancels the
// remaining pollers and is returned.
func (o *Orchestrator) Collect(ctx context.Context, jobs []Job, interval time.Duration) ([]json.RawMessage, error) {
	if len(jobs) == 0 {
		return nil, invalidArgument("no jobs to collect")
	}
	if interval <= 0 {
		interval = o.PollInterval(totalItems(jobs))
	}

	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan int, len(jobs))
	for i := range jobs {
		queue <- i
	}
	close(queue)

	outcomes := make(chan jobOutcome, len(jobs))
	prog := newProgress(len(jobs), o.logger)
	workers := min(o.config.MaxConcurrency, len(jobs))

	o.logger.Info().
		Int("total", len(jobs)).
		Int("workers", workers).
		Dur("interval", interval).
		Msg("Collecting batch results")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go o.worker(ctx, jobs, queue, outcomes, interval, prog, &wg)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	perJob := make([][]json.RawMessage, len(jobs))
	var firstErr error
	for out := range outcomes {
		if out.err != nil {
			if firstErr == nil {
				firstErr = out.err
				cancel()
			}
			continue
		}
		perJob[out.index] = out.records
	}

	if firstErr != nil {
		completed, total := prog.snapshot()
		o.logger.Error().
			Err(firstErr).
			Int("completed", completed).
			Int("total", total).
			Msg("Batch collection failed")
		return nil, firstErr
	}

	results := make([]json.RawMessage, 0, totalItems(jobs))
	for _, records := range perJob {
		results = append(results, records...)
	}

	elapsed := time.Since(start)
	collectDuration.Observe(elapsed.Seconds())
	o.logger.Info().
		Int("total", len(jobs)).
		Int("results", len(results)).
		Dur("duration", elapsed).
		Msg("Batch complete")

	return results, nil
}

// worker polls jobs taken from queue until it is drained. Every index taken
// produces exactly one outcome.
func (o *Orchestrator) worker(ctx context.Context, jobs []Job, queue <-chan int, outcomes chan<- jobOutcome, interval time.Duration, prog *progress, wg *sync.WaitGroup) {
	defer wg.Done()

	for idx := range queue {
		job := jobs[idx]

		if err := ctx.Err(); err != nil {
			outcomes <- jobOutcome{index: idx, err: &PollError{Handle: RedactHandle(job.Handle), Chunk: job.Chunk, Err: err}}
			continue
		}

		jobsInFlight.Inc()
		records, err := o.poller.poll(ctx, job, interval, prog)
		jobsInFlight.Dec()

		outcomes <- jobOutcome{index: idx, records: records, err: err}
	}
}

// totalItems sums the known job sizes, falling back to the job count.
func totalItems(jobs []Job) int {
	n := 0
	for _, j := range jobs {
		n += j.Size()
	}
	if n == 0 {
		return len(jobs)
	}
	return n
}
