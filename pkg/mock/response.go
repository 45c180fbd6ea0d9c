package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the synthesized answer to a Request.
type Response struct {
	Status  int
	Headers http.Header
	// Body is []byte or string for raw payloads, nil for none, and any
	// other value is encoded as JSON.
	Body any
}

// NewResponse creates a Response with the given status and body.
func NewResponse(status int, body any) *Response {
	return &Response{Status: status, Headers: http.Header{}, Body: body}
}

// JSON creates a JSON response.
func JSON(status int, body any) *Response {
	resp := NewResponse(status, body)
	resp.Headers.Set("Content-Type", "application/json")
	return resp
}

// Empty creates a response without a body.
func Empty(status int) *Response {
	return NewResponse(status, nil)
}

// Error creates the JSON error body used for failed dispatches.
func Error(status int, code, message string) *Response {
	return JSON(status, map[string]string{"error": code, "message": message})
}

// WithHeader sets a header and returns r.
func (r *Response) WithHeader(key, value string) *Response {
	if r.Headers == nil {
		r.Headers = http.Header{}
	}
	r.Headers.Set(key, value)
	return r
}

// Bytes encodes the body for the wire.
func (r *Response) Bytes() ([]byte, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode response body: %w", err)
		}
		return data, nil
	}
}

// ContentType returns the Content-Type to send, defaulting to JSON for
// structured bodies.
func (r *Response) ContentType() string {
	if ct := r.Headers.Get("Content-Type"); ct != "" {
		return ct
	}
	switch r.Body.(type) {
	case nil:
		return ""
	case []byte:
		return "application/octet-stream"
	case string:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}
