package batch

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrInvalidArgument is returned for bad caller input: empty inputs,
	// non-positive batch length, missing or conflicting parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPollAttemptsExhausted is returned when a job did not become ready
	// within Config.MaxPollAttempts polls.
	ErrPollAttemptsExhausted = errors.New("poll attempts exhausted")
)

// invalidArgument wraps ErrInvalidArgument with a reason.
func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// TransportError reports a network failure while creating the job for a chunk.
// Chunks after the failed one were not submitted.
type TransportError struct {
	Chunk int
	Start int
	End   int
	Err   error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("submit chunk %d (inputs %d:%d): transport: %v", e.Chunk, e.Start, e.End, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// JobCreationError reports a non-success HTTP status on job creation.
// Retry by resubmitting inputs[Start:End].
type JobCreationError struct {
	StatusCode int
	Body       string
	Chunk      int
	Start      int
	End        int
}

// Error implements the error interface.
func (e *JobCreationError) Error() string {
	return fmt.Sprintf("submit chunk %d (inputs %d:%d): service failed to create job: status %d: %s",
		e.Chunk, e.Start, e.End, e.StatusCode, truncate(e.Body, 200))
}

// ProtocolError reports a success response that does not have the expected
// shape: a job creation response without a url, or a ready job whose result
// count does not match its chunk.
type ProtocolError struct {
	Chunk   int
	Start   int
	End     int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chunk %d (inputs %d:%d): protocol: %s: %v", e.Chunk, e.Start, e.End, e.Message, e.Err)
	}
	return fmt.Sprintf("chunk %d (inputs %d:%d): protocol: %s", e.Chunk, e.Start, e.End, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// PollError reports that polling a job stopped before it became ready, either
// because MaxPollAttempts was reached or the context ended.
type PollError struct {
	Handle   string
	Chunk    int
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *PollError) Error() string {
	return fmt.Sprintf("poll job %s (chunk %d) after %d attempts: %v", e.Handle, e.Chunk, e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PollError) Unwrap() error {
	return e.Err
}

// stripURL drops the *url.Error wrapper of a transport error. Its message
// repeats the request URL, which carries the API key.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
