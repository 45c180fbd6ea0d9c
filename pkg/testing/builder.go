package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/route"
	"github.com/getmockd/mirage/pkg/schema"
)

// RouteBuilder configures a static route using a fluent API.
type RouteBuilder struct {
	server *MockServer
	method string
	path   string

	status  int
	headers http.Header
	body    any
	timing  *time.Duration
	handler route.Handler
	err     error // First error encountered during building
}

// Route starts a route for method and path. Reply registers it.
//
// Example:
//
//	m.Route("GET", "/users/:id").
//	    WithStatus(200).
//	    WithJSON(map[string]string{"id": "123"}).
//	    Reply()
func (m *MockServer) Route(method, path string) *RouteBuilder {
	return &RouteBuilder{
		server:  m,
		method:  method,
		path:    path,
		status:  http.StatusOK,
		headers: http.Header{},
	}
}

// Resource registers shorthand CRUD routes for a model of the schema.
func (m *MockServer) Resource(name string, opts ...route.Option) {
	m.t.Helper()
	tbl := m.server.Routes()
	tbl.Resource(name, opts...)
	if err := tbl.CheckModels(m.server.Schema()); err != nil {
		m.t.Fatalf("failed to register resource %s: %v", name, err)
	}
}

// setError records the first error encountered during building.
func (b *RouteBuilder) setError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns any error encountered during building.
func (b *RouteBuilder) Err() error {
	return b.err
}

// WithStatus sets the HTTP response status code. Default is 200.
func (b *RouteBuilder) WithStatus(status int) *RouteBuilder {
	b.status = status
	return b
}

// WithBody sets a raw response body.
func (b *RouteBuilder) WithBody(body string) *RouteBuilder {
	b.body = body
	return b
}

// WithJSON sets the response body as JSON.
func (b *RouteBuilder) WithJSON(body any) *RouteBuilder {
	data, err := json.Marshal(body)
	if err != nil {
		b.setError(fmt.Errorf("WithJSON: failed to marshal body: %w", err))
		return b
	}
	b.body = json.RawMessage(data)
	b.headers.Set("Content-Type", "application/json")
	return b
}

// WithHeader adds a response header.
func (b *RouteBuilder) WithHeader(key, value string) *RouteBuilder {
	b.headers.Set(key, value)
	return b
}

// WithHeaders sets multiple response headers at once.
func (b *RouteBuilder) WithHeaders(headers map[string]string) *RouteBuilder {
	for k, v := range headers {
		b.headers.Set(k, v)
	}
	return b
}

// WithDelay overrides the server timing for this route.
// Accepts duration strings like "100ms" or "1s".
func (b *RouteBuilder) WithDelay(delay string) *RouteBuilder {
	d, err := time.ParseDuration(delay)
	if err != nil || d < 0 {
		b.setError(fmt.Errorf("WithDelay: invalid duration %q", delay))
		return b
	}
	b.timing = &d
	return b
}

// WithHandler answers with fn instead of a static response.
func (b *RouteBuilder) WithHandler(fn route.Handler) *RouteBuilder {
	b.handler = fn
	return b
}

// Reply registers the route. Build errors fail the test.
func (b *RouteBuilder) Reply() {
	m := b.server
	m.t.Helper()
	if b.err != nil {
		m.t.Fatalf("invalid route %s %s: %v", b.method, b.path, b.err)
	}

	h := b.handler
	if h == nil {
		h = b.static()
	}
	var opts []route.Option
	if b.timing != nil {
		opts = append(opts, route.WithTiming(*b.timing))
	}

	tbl := m.server.Routes()
	tbl.Handle(b.method, b.path, h, opts...)
	if err := tbl.Finalize(); err != nil {
		m.t.Fatalf("failed to register route %s %s: %v", b.method, b.path, err)
	}
}

func (b *RouteBuilder) static() route.Handler {
	status, headers, body := b.status, b.headers.Clone(), b.body
	return func(*schema.Schema, *mock.Request) (any, error) {
		return &mock.Response{Status: status, Headers: headers.Clone(), Body: body}, nil
	}
}
