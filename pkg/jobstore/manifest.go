// Package jobstore persists submitted batch jobs so they can be collected
// later, possibly by another process.
package jobstore

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/huels-originals/geobatch/pkg/batch"
)

// ErrNotFound is returned when no manifest exists for an id.
var ErrNotFound = errors.New("manifest not found")

// Manifest describes one submitted batch run.
type Manifest struct {
	ID        uuid.UUID   `json:"id"`
	API       string      `json:"api"`
	Endpoint  string      `json:"endpoint"`
	CreatedAt time.Time   `json:"created_at"`
	BatchLen  int         `json:"batch_len"`
	Items     int         `json:"items"`
	Jobs      []batch.Job `json:"jobs"`
}

// NewManifest creates a manifest with a fresh id. Job handles are stored
// without the API key.
func NewManifest(api, endpoint string, batchLen, items int, jobs []batch.Job) *Manifest {
	return &Manifest{
		ID:        uuid.New(),
		API:       api,
		Endpoint:  endpoint,
		CreatedAt: time.Now().UTC(),
		BatchLen:  batchLen,
		Items:     items,
		Jobs:      redactJobs(jobs),
	}
}

// Handles returns the result URLs of the jobs in submission order.
func (m *Manifest) Handles() []string {
	handles := make([]string, len(m.Jobs))
	for i, j := range m.Jobs {
		handles[i] = j.Handle
	}
	return handles
}

func redactJobs(jobs []batch.Job) []batch.Job {
	out := make([]batch.Job, len(jobs))
	for i, j := range jobs {
		j.Handle = batch.RedactHandle(j.Handle)
		out[i] = j
	}
	return out
}
