package batch

import (
	"sync"

	"github.com/rs/zerolog"
)

// progress counts completed jobs of one Collect call.
type progress struct {
	mu        sync.Mutex
	completed int
	total     int
	logger    zerolog.Logger
}

func newProgress(total int, logger zerolog.Logger) *progress {
	return &progress{total: total, logger: logger}
}

// done records a finished job and logs completed/total. Safe on a nil receiver.
func (p *progress) done(job Job) int {
	if p == nil {
		return 0
	}

	p.mu.Lock()
	p.completed++
	completed := p.completed
	p.mu.Unlock()

	p.logger.Info().
		Str("handle", RedactHandle(job.Handle)).
		Int("chunk", job.Chunk).
		Int("completed", completed).
		Int("total", p.total).
		Msgf("Job done: %d/%d completed", completed, p.total)

	return completed
}

// snapshot returns the current counters.
func (p *progress) snapshot() (completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.total
}
