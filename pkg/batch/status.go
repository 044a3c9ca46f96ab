package batch

import (
	"encoding/json"
	"fmt"
)

// pendingMarker is the status value the service reports while a job runs.
const pendingMarker = "pending"

// StatusKind classifies a job status response.
type StatusKind int

const (
	// StatusMalformed is any response that is neither ready nor pending.
	// It is logged and treated as still pending.
	StatusMalformed StatusKind = iota

	// StatusPending means the service is still computing the job.
	StatusPending

	// StatusReady means the results are in the response.
	StatusReady
)

// String returns the metric/log label of the kind.
func (k StatusKind) String() string {
	switch k {
	case StatusReady:
		return "ready"
	case StatusPending:
		return "pending"
	default:
		return "malformed"
	}
}

// Status is one decoded job status response.
type Status struct {
	Kind StatusKind

	// Results holds one record per input of the job when Kind is StatusReady.
	Results []json.RawMessage

	// Reason describes why a response was classified as malformed.
	Reason string
}

// decodeStatus classifies a job status body. A results array wins over a
// status field; anything else is malformed.
func decodeStatus(body []byte) Status {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Status{Kind: StatusMalformed, Reason: fmt.Sprintf("decode body: %v", err)}
	}

	if raw, ok := fields["results"]; ok {
		var results []json.RawMessage
		if err := json.Unmarshal(raw, &results); err != nil || results == nil {
			return Status{Kind: StatusMalformed, Reason: "results field is not an array"}
		}
		return Status{Kind: StatusReady, Results: results}
	}

	if raw, ok := fields["status"]; ok {
		var status string
		if err := json.Unmarshal(raw, &status); err == nil && status == pendingMarker {
			return Status{Kind: StatusPending}
		}
		return Status{Kind: StatusMalformed, Reason: fmt.Sprintf("unexpected status %s", string(raw))}
	}

	return Status{Kind: StatusMalformed, Reason: "neither results nor status in response"}
}
