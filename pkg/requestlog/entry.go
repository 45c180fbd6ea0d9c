package requestlog

import "time"

// Outcome classifies how a call was answered.
type Outcome string

const (
	// OutcomeHandled means a route handler produced the response.
	OutcomeHandled Outcome = "handled"
	// OutcomePassthrough means the call was forwarded to the real network.
	OutcomePassthrough Outcome = "passthrough"
	// OutcomeUnmatched means no route matched and a 404 was synthesized.
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeCancelled means the call was abandoned during its delay.
	OutcomeCancelled Outcome = "cancelled"
)

// Entry is one handled call.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Method      string              `json:"method"`
	URL         string              `json:"url"`
	Path        string              `json:"path"`
	QueryString string              `json:"queryString,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`
	// Body is the request body, truncated for large payloads.
	Body string `json:"body,omitempty"`

	// Route is the matched pattern, e.g. "/contacts/:id".
	Route  string            `json:"route,omitempty"`
	Params map[string]string `json:"params,omitempty"`

	Outcome  Outcome       `json:"outcome"`
	Status   int           `json:"status"`
	Duration time.Duration `json:"durationNs"`
	Error    string        `json:"error,omitempty"`
}
