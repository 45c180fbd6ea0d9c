package testing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getmockd/mirage/pkg/config"
	"github.com/getmockd/mirage/pkg/engine"
	"github.com/getmockd/mirage/pkg/logging"
	"github.com/getmockd/mirage/pkg/requestlog"
	"github.com/getmockd/mirage/pkg/route"
	"github.com/getmockd/mirage/pkg/schema"
)

// shutdownTimeout bounds the cleanup of a test server.
const shutdownTimeout = 5 * time.Second

// MockServer is a mirage backend owned by one test.
type MockServer struct {
	t      testing.TB
	server *engine.Server

	mu      sync.Mutex
	httpSrv *httptest.Server
}

// New builds a server from a schema and route table. Construction errors
// fail the test.
func New(t testing.TB, s *schema.Schema, routes *route.Table, opts ...engine.Option) *MockServer {
	t.Helper()
	srv, err := engine.New(s, routes, withTestDefaults(opts)...)
	if err != nil {
		t.Fatalf("failed to create mock server: %v", err)
	}
	return attach(t, srv)
}

// FromScenario builds a server from a scenario file or directory.
func FromScenario(t testing.TB, path string, opts ...engine.Option) *MockServer {
	t.Helper()
	sc, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load scenario: %v", err)
	}
	return build(t, sc, opts)
}

// FromYAML builds a server from an inline YAML scenario.
func FromYAML(t testing.TB, scenario string, opts ...engine.Option) *MockServer {
	t.Helper()
	sc, err := config.Parse([]byte(scenario), "scenario.yaml")
	if err != nil {
		t.Fatalf("failed to parse scenario: %v", err)
	}
	return build(t, sc, opts)
}

func build(t testing.TB, sc *config.Scenario, opts []engine.Option) *MockServer {
	t.Helper()
	srv, err := sc.Build(withTestDefaults(opts)...)
	if err != nil {
		t.Fatalf("failed to build scenario: %v", err)
	}
	return attach(t, srv)
}

// withTestDefaults silences the server unless MIRAGE_TEST_LOG is set.
func withTestDefaults(opts []engine.Option) []engine.Option {
	log := logging.Nop()
	if name := os.Getenv("MIRAGE_TEST_LOG"); name != "" {
		if level, err := logging.ParseLevel(name); err == nil {
			log = logging.New(logging.Config{Level: level, Output: os.Stderr})
		}
	}
	return append([]engine.Option{engine.WithLogger(log)}, opts...)
}

func attach(t testing.TB, srv *engine.Server) *MockServer {
	m := &MockServer{t: t, server: srv}
	t.Cleanup(m.stop)
	return m
}

func (m *MockServer) stop() {
	m.mu.Lock()
	httpSrv := m.httpSrv
	m.httpSrv = nil
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = m.server.Shutdown(ctx)
	if httpSrv != nil {
		httpSrv.Close()
	}
}

// Client returns an http.Client whose requests are answered in process.
// Any host works; pass-through requests go to the real network.
func (m *MockServer) Client() *http.Client {
	return &http.Client{Transport: m.server.Transport()}
}

// Start serves the mock over a local listener and returns its base URL.
// Calling it again returns the same URL.
func (m *MockServer) Start() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.httpSrv == nil {
		m.httpSrv = httptest.NewServer(m.server.Handler())
	}
	return m.httpSrv.URL
}

// URL returns the base URL of the listener, or "" before Start.
func (m *MockServer) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.httpSrv == nil {
		return ""
	}
	return m.httpSrv.URL
}

// Server returns the underlying engine.Server.
func (m *MockServer) Server() *engine.Server {
	return m.server
}

// Schema returns the server's schema for seeding or inspecting records.
func (m *MockServer) Schema() *schema.Schema {
	return m.server.Schema()
}

// Reset reseeds the store and clears the call log.
func (m *MockServer) Reset() {
	m.t.Helper()
	if err := m.server.Reset(); err != nil {
		m.t.Fatalf("failed to reset mock server: %v", err)
	}
}

// Requests returns the recorded calls, oldest first.
func (m *MockServer) Requests() []RequestLog {
	entries := m.server.Calls(nil)
	out := make([]RequestLog, len(entries))
	for i, e := range entries {
		out[i] = newRequestLog(e)
	}
	return out
}

// LastRequest returns the most recent call matching method and path.
// path may contain :name or {name} parameters.
func (m *MockServer) LastRequest(t testing.TB, method, path string) *RequestLog {
	t.Helper()
	calls := m.calls(method, path)
	if len(calls) == 0 {
		t.Errorf("expected %s %s to be called, but it was not called", method, path)
		return nil
	}
	return &calls[len(calls)-1]
}

// AssertCalled asserts that an endpoint was called at least once.
func (m *MockServer) AssertCalled(t testing.TB, method, path string) {
	t.Helper()
	if len(m.calls(method, path)) == 0 {
		t.Errorf("expected %s %s to be called, but it was not called", method, path)
	}
}

// AssertCalledTimes asserts that an endpoint was called exactly n times.
func (m *MockServer) AssertCalledTimes(t testing.TB, method, path string, times int) {
	t.Helper()
	if count := len(m.calls(method, path)); count != times {
		t.Errorf("expected %s %s to be called %d times, but was called %d times",
			method, path, times, count)
	}
}

// AssertNotCalled asserts that an endpoint was not called.
func (m *MockServer) AssertNotCalled(t testing.TB, method, path string) {
	t.Helper()
	if count := len(m.calls(method, path)); count > 0 {
		t.Errorf("expected %s %s to not be called, but it was called %d times",
			method, path, count)
	}
}

// AssertPassedThrough asserts that a call to path was forwarded to the
// real network.
func (m *MockServer) AssertPassedThrough(t testing.TB, method, path string) {
	t.Helper()
	for _, c := range m.calls(method, path) {
		if c.Outcome == requestlog.OutcomePassthrough {
			return
		}
	}
	t.Errorf("expected %s %s to pass through, but it did not", method, path)
}

func (m *MockServer) calls(method, path string) []RequestLog {
	var out []RequestLog
	for _, e := range m.server.Calls(&requestlog.Filter{Method: method}) {
		if matchesPath(e.Path, path) {
			out = append(out, newRequestLog(e))
		}
	}
	return out
}

// matchesPath compares a request path with an expected path in which
// :name and {name} segments match any value.
func matchesPath(actual, expected string) bool {
	if actual == expected {
		return true
	}
	actualParts := strings.Split(actual, "/")
	expectedParts := strings.Split(expected, "/")
	if len(actualParts) != len(expectedParts) {
		return false
	}
	for i, exp := range expectedParts {
		if strings.HasPrefix(exp, ":") || (strings.HasPrefix(exp, "{") && strings.HasSuffix(exp, "}")) {
			continue
		}
		if exp != actualParts[i] {
			return false
		}
	}
	return true
}
