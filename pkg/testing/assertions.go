package testing

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/getmockd/mirage/pkg/requestlog"
)

// RequestLog is a recorded call, for assertions.
type RequestLog struct {
	Method      string
	Path        string
	QueryString string
	Headers     http.Header
	Body        string
	// Route is the pattern that answered the call, if any.
	Route   string
	Params  map[string]string
	Outcome requestlog.Outcome
	Status  int
}

func newRequestLog(e *requestlog.Entry) RequestLog {
	return RequestLog{
		Method:      e.Method,
		Path:        e.Path,
		QueryString: e.QueryString,
		Headers:     http.Header(e.Headers),
		Body:        e.Body,
		Route:       e.Route,
		Params:      e.Params,
		Outcome:     e.Outcome,
		Status:      e.Status,
	}
}

// AssertJSONBody asserts that the request body matches the expected JSON.
// expected may be a string, []byte, or any value that encodes to JSON.
func (r *RequestLog) AssertJSONBody(t testing.TB, expected any) {
	t.Helper()

	var expectedJSON, actualJSON any
	var raw []byte
	switch v := expected.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Errorf("failed to marshal expected value: %v", err)
			return
		}
		raw = data
	}
	if err := json.Unmarshal(raw, &expectedJSON); err != nil {
		t.Errorf("failed to parse expected JSON: %v", err)
		return
	}
	if err := json.Unmarshal([]byte(r.Body), &actualJSON); err != nil {
		t.Errorf("request body is not valid JSON: %v\nbody: %s", err, r.Body)
		return
	}

	if !reflect.DeepEqual(actualJSON, expectedJSON) {
		expectedBytes, _ := json.MarshalIndent(expectedJSON, "", "  ")
		actualBytes, _ := json.MarshalIndent(actualJSON, "", "  ")
		t.Errorf("request body does not match expected JSON\nexpected:\n%s\nactual:\n%s",
			string(expectedBytes), string(actualBytes))
	}
}

// AssertBodyContains asserts that the request body contains substr.
func (r *RequestLog) AssertBodyContains(t testing.TB, substr string) {
	t.Helper()
	if !strings.Contains(r.Body, substr) {
		t.Errorf("request body does not contain %q\nbody: %s", substr, r.Body)
	}
}

// AssertHeader asserts that the request had the header with the expected value.
func (r *RequestLog) AssertHeader(t testing.TB, key, expected string) {
	t.Helper()
	values := r.Headers.Values(key)
	if len(values) == 0 {
		t.Errorf("request does not have header %q", key)
		return
	}
	if values[0] != expected {
		t.Errorf("header %q value mismatch\nexpected: %q\nactual: %q", key, expected, values[0])
	}
}

// AssertParam asserts the value of a captured route parameter.
func (r *RequestLog) AssertParam(t testing.TB, name, expected string) {
	t.Helper()
	actual, ok := r.Params[name]
	if !ok {
		t.Errorf("request has no route parameter %q", name)
		return
	}
	if actual != expected {
		t.Errorf("route parameter %q mismatch\nexpected: %q\nactual: %q", name, expected, actual)
	}
}

// AssertStatus asserts the status the call was answered with.
func (r *RequestLog) AssertStatus(t testing.TB, expected int) {
	t.Helper()
	if r.Status != expected {
		t.Errorf("response status mismatch\nexpected: %d\nactual: %d", expected, r.Status)
	}
}
