package batch

import (
	"net/url"
)

// apiKeyParam is the query parameter carrying the Geoapify API key.
const apiKeyParam = "apiKey"

// Job is one submitted chunk: the opaque result URL the service returned plus
// the input range it covers. Jobs are plain values and can be persisted and
// collected later.
type Job struct {
	// Handle is the result URL returned by the service.
	Handle string `json:"handle"`

	// Chunk is the submission index of the job.
	Chunk int `json:"chunk"`

	// Start and End delimit the job's inputs: [Start, End). Both are zero
	// when the job was rebuilt from a bare handle.
	Start int `json:"start"`
	End   int `json:"end"`
}

// Size returns the number of inputs covered by the job, or 0 if unknown.
func (j Job) Size() int {
	return j.End - j.Start
}

// JobsFromHandles rebuilds jobs from result URLs, e.g. read back from a URL
// file. Their input ranges are unknown.
func JobsFromHandles(handles []string) []Job {
	jobs := make([]Job, len(handles))
	for i, h := range handles {
		jobs[i] = Job{Handle: h, Chunk: i}
	}
	return jobs
}

// RedactHandle removes the apiKey query parameter from a job handle so it can
// be logged or written to disk. Unparseable handles are returned unchanged.
func RedactHandle(handle string) string {
	u, err := url.Parse(handle)
	if err != nil {
		return handle
	}
	q := u.Query()
	if !q.Has(apiKeyParam) {
		return handle
	}
	q.Del(apiKeyParam)
	u.RawQuery = q.Encode()
	return u.String()
}

// withAPIKey returns handle with the apiKey parameter set, unless it already
// carries one.
func withAPIKey(handle, apiKey string) (string, error) {
	u, err := url.Parse(handle)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if q.Get(apiKeyParam) != "" || apiKey == "" {
		return handle, nil
	}
	q.Set(apiKeyParam, apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
