// Package testutil provides a mock Geoapify server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for a synchronous endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// JobScript controls how a batch job answers status polls. The job first
// returns Malformed unexpected bodies, then Pending pending bodies, then its
// results.
type JobScript struct {
	Malformed int
	Pending   int
}

// SubmitFailure makes a job creation request fail.
type SubmitFailure struct {
	StatusCode int
	Body       string

	// OmitURL answers 202 without a url field instead of an error status.
	OmitURL bool
}

// Submission is a recorded job creation request.
type Submission struct {
	API    string                    `json:"api"`
	Params map[string]string         `json:"params"`
	Inputs []struct {
		Params map[string]any `json:"params"`
	} `json:"inputs"`
	APIKey string `json:"-"`
}

type mockJob struct {
	id         string
	submission Submission
	script     JobScript
	polls      int
}

// MockGeoapify is a configurable in-process Geoapify API for testing.
// Job creation on /v1/batch returns handles on the same server; polling a
// handle follows the job's JobScript.
type MockGeoapify struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	jobs       []*mockJob
	scripts    map[int]JobScript
	failures   map[int]SubmitFailure
	readyOrder []int

	// ResultFunc builds the result record of one input. The default echoes
	// the input as a geocoding response.
	ResultFunc func(api string, params map[string]any) any

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastRequestQuery  string
}

// NewMockGeoapify starts a mock server.
func NewMockGeoapify() *MockGeoapify {
	mock := &MockGeoapify{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		scripts:    make(map[int]JobScript),
		failures:   make(map[int]SubmitFailure),
		ResultFunc: EchoResult,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastRequestQuery = r.URL.RawQuery
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		if r.URL.Path == "/v1/batch" {
			switch r.Method {
			case http.MethodPost:
				mock.createJob(w, r)
			case http.MethodGet:
				mock.pollJob(w, r)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
			return
		}

		writeJSON(w, http.StatusNotFound, `{"statusCode":404,"error":"Not Found"}`)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockGeoapify) URL() string {
	return m.server.URL
}

// Client returns an HTTP client for the server.
func (m *MockGeoapify) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockGeoapify) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a path.
func (m *MockGeoapify) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockGeoapify) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJobScript sets the poll behavior of the job created by the index-th
// submission (zero-based).
func (m *MockGeoapify) SetJobScript(index int, script JobScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[index] = script
}

// FailSubmission makes the index-th job creation request (zero-based) fail.
func (m *MockGeoapify) FailSubmission(index int, failure SubmitFailure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[index] = failure
}

// SubmitCount returns the number of job creation requests received,
// including failed ones.
func (m *MockGeoapify) SubmitCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// Submissions returns the recorded job creation requests in arrival order.
func (m *MockGeoapify) Submissions() []Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := make([]Submission, len(m.jobs))
	for i, j := range m.jobs {
		subs[i] = j.submission
	}
	return subs
}

// PollCount returns how many status GETs the index-th job received.
func (m *MockGeoapify) PollCount(index int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.jobs) {
		return 0
	}
	return m.jobs[index].polls
}

// TotalPolls returns the number of status GETs across all jobs.
func (m *MockGeoapify) TotalPolls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, j := range m.jobs {
		total += j.polls
	}
	return total
}

// ReadyOrder returns job indexes in the order their results were served.
func (m *MockGeoapify) ReadyOrder() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.readyOrder...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockGeoapify) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastRequestQuery returns the raw query of the most recent request.
func (m *MockGeoapify) GetLastRequestQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestQuery
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockGeoapify) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

func (m *MockGeoapify) createJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"unreadable body"}`)
		return
	}

	var sub Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"invalid json"}`)
		return
	}
	sub.APIKey = r.URL.Query().Get("apiKey")

	m.mu.Lock()
	index := len(m.jobs)
	job := &mockJob{id: fmt.Sprintf("job-%d", index), submission: sub, script: m.scripts[index]}
	m.jobs = append(m.jobs, job)
	failure, failed := m.failures[index]
	m.mu.Unlock()

	if failed {
		if failure.OmitURL {
			writeJSON(w, http.StatusAccepted, fmt.Sprintf(`{"id":%q,"status":"pending"}`, job.id))
			return
		}
		writeJSON(w, failure.StatusCode, failure.Body)
		return
	}

	handle := fmt.Sprintf("%s/v1/batch?id=%s&apiKey=%s", m.server.URL, job.id, sub.APIKey)
	writeJSON(w, http.StatusAccepted, fmt.Sprintf(`{"id":%q,"status":"pending","url":%q}`, job.id, handle))
}

func (m *MockGeoapify) pollJob(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	m.mu.Lock()
	var job *mockJob
	index := -1
	for i, j := range m.jobs {
		if j.id == id {
			job, index = j, i
			break
		}
	}
	if job == nil {
		m.mu.Unlock()
		writeJSON(w, http.StatusNotFound, `{"error":"unknown job"}`)
		return
	}
	job.polls++
	polls := job.polls
	script := job.script
	if polls > script.Malformed+script.Pending {
		m.readyOrder = append(m.readyOrder, index)
	}
	resultFunc := m.ResultFunc
	m.mu.Unlock()

	switch {
	case polls <= script.Malformed:
		writeJSON(w, http.StatusOK, `{"message":"try again later"}`)
	case polls <= script.Malformed+script.Pending:
		writeJSON(w, http.StatusAccepted, fmt.Sprintf(`{"id":%q,"status":"pending"}`, job.id))
	default:
		results := make([]any, len(job.submission.Inputs))
		for i, in := range job.submission.Inputs {
			results[i] = resultFunc(job.submission.API, in.Params)
		}
		body, _ := json.Marshal(map[string]any{"id": job.id, "status": "finished", "results": results})
		writeJSON(w, http.StatusOK, string(body))
	}
}

// EchoResult answers every input with a single-feature geocoding result whose
// formatted address is the input's text (or "lon,lat").
func EchoResult(api string, params map[string]any) any {
	formatted, _ := params["text"].(string)
	if formatted == "" {
		formatted = fmt.Sprintf("%v,%v", params["lon"], params["lat"])
	}
	return map[string]any{
		"params": params,
		"result": map[string]any{
			"results": []any{map[string]any{
				"formatted": formatted,
				"api":       strings.TrimPrefix(api, "/"),
				"lat":       params["lat"],
				"lon":       params["lon"],
			}},
			"query": params,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
